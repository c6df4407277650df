package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/reelpick/reelpick/internal/api"
	"github.com/reelpick/reelpick/internal/catalog"
	"github.com/reelpick/reelpick/internal/chatbot"
	"github.com/reelpick/reelpick/internal/config"
	"github.com/reelpick/reelpick/internal/core"
	"github.com/reelpick/reelpick/internal/mail"
	"github.com/reelpick/reelpick/internal/recommend"
	"github.com/reelpick/reelpick/internal/store"
	"github.com/reelpick/reelpick/internal/tmdb"
	"github.com/reelpick/reelpick/internal/translate"
)

func main() {
	config.LoadConfig()

	if level, err := log.ParseLevel(config.AppConfig.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.Warnf("Unknown log level %q, using info", config.AppConfig.LogLevel)
	}

	ingestQAFlag := flag.String("ingest-qa", "", "Ingest the QA bank from the given JSON file and exit")
	flag.Parse()

	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	ctx := context.Background()

	// The embedding model is optional: without it the chatbot still answers
	// with canned replies, so a failure here only degrades the QA path.
	var embedder chatbot.Embedder
	embeddingService, err := core.NewEmbeddingService(ctx)
	if err != nil {
		log.WithError(err).Warn("Embedding service unavailable, QA matching disabled")
	} else {
		defer embeddingService.Close()
		embedder = embeddingService
	}

	if *ingestQAFlag != "" {
		if embeddingService == nil {
			log.Fatal("QA ingestion requires a configured embedding service")
		}
		numIngested, err := dbStore.IngestQAFromFile(*ingestQAFlag, func(text string) ([]float32, error) {
			return embeddingService.Embed(ctx, text)
		})
		if err != nil {
			log.Fatalf("QA ingestion failed: %v", err)
		}
		log.Infof("QA ingestion complete, ingested %d entries. Exiting.", numIngested)
		os.Exit(0)
	}

	index, err := catalog.Load(config.AppConfig.DatasetPath)
	if err != nil {
		log.WithError(err).Warn("Movie dataset unavailable, running on TMDB fallback only")
	}

	qaEntries, err := dbStore.GetAllQAEntries()
	if err != nil {
		log.WithError(err).Warn("Failed to load QA bank, QA matching disabled")
	}
	matcher := chatbot.NewMatcher(qaEntries, embedder)
	if !matcher.Ready() {
		log.Warn("QA matcher not ready, chatbot will use canned replies for questions")
	}

	gateway := tmdb.NewClient(config.AppConfig.TMDBAPIKey)
	resolver := recommend.NewResolver(index, gateway)
	translator := translate.New()

	chatService := chatbot.NewService(
		index, gateway, resolver, matcher, translator, dbStore, config.AppConfig.DefaultCountry)

	mailer := mail.New(mail.Options{
		Host:     config.AppConfig.MailHost,
		Port:     config.AppConfig.MailPort,
		Username: config.AppConfig.MailUsername,
		Password: config.AppConfig.MailPassword,
		From:     config.AppConfig.MailFrom,
		FromName: config.AppConfig.MailFromName,
	})
	if !mailer.Enabled() {
		log.Warn("Mail is not configured, verification and reset emails will be skipped")
	}

	apiHandler := api.NewAPIHandler(dbStore, chatService, resolver, gateway, index, mailer)
	router := api.NewRouter(apiHandler)

	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // translation retries and TMDB calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exiting gracefully")
}
