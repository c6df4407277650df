package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/reelpick/reelpick/internal/auth"
	"github.com/reelpick/reelpick/internal/catalog"
	"github.com/reelpick/reelpick/internal/config"
	"github.com/reelpick/reelpick/internal/mail"
	"github.com/reelpick/reelpick/internal/store"
	"github.com/reelpick/reelpick/internal/tmdb"
)

const (
	verificationTokenTTL = 24 * time.Hour
	resetTokenTTL        = time.Hour

	fuzzyTitleLimit     = 3
	fuzzyScoreThreshold = 82
	datasetTopN         = 4
	fallbackTopN        = 8
	suggestLimit        = 5
	trendingLimit       = 8
)

// ChatService produces one reply per user message.
type ChatService interface {
	Reply(ctx context.Context, userID, message string) string
}

// Recommender resolves a movie title into recommendation cards.
type Recommender interface {
	FromDataset(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard
	Fallback(ctx context.Context, title string, topN int, country string) []tmdb.MovieCard
}

// Gateway is the slice of the TMDB client the handlers use directly.
type Gateway interface {
	Trending(ctx context.Context, limit int) []tmdb.SearchResult
	BuildCard(ctx context.Context, res *tmdb.SearchResult, country string) *tmdb.MovieCard
}

type APIHandler struct {
	store       *store.SQLiteStore
	chat        ChatService
	recommender Recommender
	gateway     Gateway
	index       *catalog.Index
	mailer      *mail.Mailer
}

func NewAPIHandler(
	st *store.SQLiteStore,
	chat ChatService,
	recommender Recommender,
	gateway Gateway,
	index *catalog.Index,
	mailer *mail.Mailer,
) *APIHandler {
	return &APIHandler{
		store:       st,
		chat:        chat,
		recommender: recommender,
		gateway:     gateway,
		index:       index,
		mailer:      mailer,
	}
}

func jsonError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func jsonResponse(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *APIHandler) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		jsonError(w, "Username, email and password are required", http.StatusBadRequest)
		return
	}
	if !emailPattern.MatchString(req.Email) {
		jsonError(w, "Invalid email address", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	exists, err := h.store.UserExists(req.Username, req.Email)
	if err != nil {
		log.WithError(err).Error("Failed to check for existing user")
		jsonError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}
	if exists {
		jsonError(w, "Username or email is already registered", http.StatusConflict)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.WithError(err).Errorf("Failed to hash password for user %s", req.Username)
		jsonError(w, "Failed to process password", http.StatusInternalServerError)
		return
	}

	token, err := auth.GenerateToken()
	if err != nil {
		log.WithError(err).Error("Failed to generate verification token")
		jsonError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	user := &store.User{
		ID:                uuid.New().String(),
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hashedPassword,
		Verified:          false,
		VerificationToken: &token,
		CreatedAt:         time.Now(),
	}
	if err := h.store.CreateUser(user); err != nil {
		log.WithError(err).Errorf("Failed to create user %s", req.Username)
		jsonError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	link := fmt.Sprintf("%s/api/verify-email/%s", config.AppConfig.BaseURL, token)
	if err := h.mailer.SendVerification(user.Email, user.Username, link); err != nil {
		log.WithError(err).Warnf("Failed to send verification email to %s", user.Email)
	}

	jsonResponse(w, http.StatusCreated, map[string]string{
		"message": "Account created. Please check your email to verify your account.",
	})
}

func (h *APIHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	user, err := h.store.GetUserByVerificationToken(token)
	if err != nil {
		log.WithError(err).Error("Failed to look up verification token")
		jsonError(w, "Failed to verify email", http.StatusInternalServerError)
		return
	}
	if user == nil {
		jsonError(w, "Invalid or expired verification link", http.StatusNotFound)
		return
	}

	// Stale signups are removed so the username and email free up again.
	if time.Since(user.CreatedAt) > verificationTokenTTL {
		if err := h.store.DeleteUser(user.ID); err != nil {
			log.WithError(err).Warnf("Failed to delete expired signup %s", user.ID)
		}
		jsonError(w, "Verification link expired, please sign up again", http.StatusGone)
		return
	}

	if err := h.store.MarkUserVerified(user.ID); err != nil {
		log.WithError(err).Errorf("Failed to mark user %s verified", user.ID)
		jsonError(w, "Failed to verify email", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"message": "Email verified. You can now log in.",
	})
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Username == "" || req.Password == "" {
		jsonError(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByUsername(req.Username)
	if err != nil {
		log.WithError(err).Errorf("Failed to look up user %s", req.Username)
		jsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if user == nil || !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		jsonError(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if !user.Verified {
		jsonError(w, "Please verify your email before logging in", http.StatusForbidden)
		return
	}

	token, err := auth.GenerateJWT(user.ID)
	if err != nil {
		log.WithError(err).Errorf("Failed to generate JWT for user %s", user.ID)
		jsonError(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"user":  user,
	})
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPasswordHandler always answers with the same message so the
// endpoint cannot be used to probe which emails are registered.
func (h *APIHandler) ForgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	genericReply := func() {
		jsonResponse(w, http.StatusOK, map[string]string{
			"message": "If that email is registered, a reset link has been sent.",
		})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		genericReply()
		return
	}

	user, err := h.store.GetUserByEmail(email)
	if err != nil {
		log.WithError(err).Error("Failed to look up user for password reset")
		genericReply()
		return
	}
	if user == nil {
		genericReply()
		return
	}

	token, err := auth.GenerateToken()
	if err != nil {
		log.WithError(err).Error("Failed to generate reset token")
		genericReply()
		return
	}
	if err := h.store.SetResetToken(user.ID, token, time.Now().Add(resetTokenTTL)); err != nil {
		log.WithError(err).Errorf("Failed to store reset token for user %s", user.ID)
		genericReply()
		return
	}

	link := fmt.Sprintf("%s/api/reset-password/%s", config.AppConfig.BaseURL, token)
	if err := h.mailer.SendPasswordReset(user.Email, user.Username, link, clientIP(r)); err != nil {
		log.WithError(err).Warnf("Failed to send reset email to %s", user.Email)
	}

	genericReply()
}

type ResetPasswordRequest struct {
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *APIHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	var req ResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Password != req.ConfirmPassword {
		jsonError(w, "Passwords do not match", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := h.store.GetUserByValidResetToken(token, time.Now())
	if err != nil {
		log.WithError(err).Error("Failed to look up reset token")
		jsonError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if user == nil {
		jsonError(w, "Invalid or expired reset link", http.StatusBadRequest)
		return
	}

	hashedPassword, err := auth.HashPassword(req.Password)
	if err != nil {
		log.WithError(err).Errorf("Failed to hash new password for user %s", user.ID)
		jsonError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if err := h.store.UpdatePassword(user.ID, hashedPassword); err != nil {
		log.WithError(err).Errorf("Failed to update password for user %s", user.ID)
		jsonError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{
		"message": "Password updated. You can now log in.",
	})
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	userID := UserIDFromContext(r.Context())
	reply := h.chat.Reply(r.Context(), userID, req.Message)
	jsonResponse(w, http.StatusOK, ChatResponse{Reply: reply})
}

type RecommendRequest struct {
	Title   string `json:"title"`
	Country string `json:"country,omitempty"`
}

type RecommendResponse struct {
	Results  []tmdb.MovieCard `json:"results"`
	NotFound bool             `json:"not_found"`
}

func (h *APIHandler) RecommendHandler(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		jsonError(w, "Title is required", http.StatusBadRequest)
		return
	}

	country := h.resolveCountry(r, req.Country)

	// Dataset titles close to the query drive the recommendations; only
	// when nothing in the dataset is close enough does TMDB take over.
	cards := []tmdb.MovieCard{}
	seenIDs := make(map[int]bool)
	seenTitles := make(map[string]bool)

	for _, match := range h.index.FindFuzzy(title, fuzzyTitleLimit, fuzzyScoreThreshold) {
		for _, card := range h.recommender.FromDataset(r.Context(), match, datasetTopN, country) {
			if card.ID != 0 {
				if seenIDs[card.ID] {
					continue
				}
				seenIDs[card.ID] = true
			} else {
				key := strings.ToLower(card.Title)
				if seenTitles[key] {
					continue
				}
				seenTitles[key] = true
			}
			cards = append(cards, card)
		}
	}

	if len(cards) == 0 {
		cards = h.recommender.Fallback(r.Context(), title, fallbackTopN, country)
	}

	jsonResponse(w, http.StatusOK, RecommendResponse{
		Results:  cards,
		NotFound: len(cards) == 0,
	})
}

func (h *APIHandler) resolveCountry(r *http.Request, requested string) string {
	if requested != "" {
		return strings.ToUpper(requested)
	}
	if guessed := guessCountry(clientIP(r)); guessed != "" {
		return guessed
	}
	return config.AppConfig.DefaultCountry
}

type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

func (h *APIHandler) SuggestHandler(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	suggestions := h.index.Suggest(query, suggestLimit)
	if suggestions == nil {
		suggestions = []string{}
	}
	jsonResponse(w, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

type TrendingResponse struct {
	Results []tmdb.MovieCard `json:"results"`
}

func (h *APIHandler) TrendingHandler(w http.ResponseWriter, r *http.Request) {
	country := h.resolveCountry(r, strings.TrimSpace(r.URL.Query().Get("country")))

	cards := []tmdb.MovieCard{}
	for _, res := range h.gateway.Trending(r.Context(), trendingLimit) {
		res := res
		if card := h.gateway.BuildCard(r.Context(), &res, country); card != nil {
			cards = append(cards, *card)
		}
	}
	jsonResponse(w, http.StatusOK, TrendingResponse{Results: cards})
}

func (h *APIHandler) ListConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	conversations, err := h.store.GetConversationsByUserID(userID)
	if err != nil {
		log.WithError(err).Errorf("Failed to list conversations for user %s", userID)
		jsonError(w, "Failed to list conversations", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, conversations)
}

func (h *APIHandler) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	conversation, err := h.store.GetConversation(conversationID, userID)
	if err != nil {
		log.WithError(err).Errorf("Failed to get conversation %s", conversationID)
		jsonError(w, "Failed to get conversation", http.StatusInternalServerError)
		return
	}
	if conversation == nil {
		jsonError(w, "Conversation not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, http.StatusOK, conversation)
}

func (h *APIHandler) ClearConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	if err := h.store.ClearConversationMessages(conversationID, userID); err != nil {
		if err.Error() == "conversation not found" {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.WithError(err).Errorf("Failed to clear conversation %s", conversationID)
		jsonError(w, "Failed to clear conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())
	conversationID := chi.URLParam(r, "conversationID")

	if err := h.store.DeleteConversation(conversationID, userID); err != nil {
		if err.Error() == "conversation not found" {
			jsonError(w, err.Error(), http.StatusNotFound)
			return
		}
		log.WithError(err).Errorf("Failed to delete conversation %s", conversationID)
		jsonError(w, "Failed to delete conversation", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) DeleteAllConversationsHandler(w http.ResponseWriter, r *http.Request) {
	userID := UserIDFromContext(r.Context())

	deleted, err := h.store.DeleteAllConversations(userID)
	if err != nil {
		log.WithError(err).Errorf("Failed to delete conversations for user %s", userID)
		jsonError(w, "Failed to delete conversations", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"deleted": deleted})
}
