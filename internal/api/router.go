package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/signup", apiHandler.SignupHandler)
		r.Get("/verify-email/{token}", apiHandler.VerifyEmailHandler)
		r.Post("/login", apiHandler.LoginHandler)
		r.Post("/forgot-password", apiHandler.ForgotPasswordHandler)
		r.Post("/reset-password/{token}", apiHandler.ResetPasswordHandler)
		r.Get("/suggest", apiHandler.SuggestHandler)
		r.Get("/trending", apiHandler.TrendingHandler)
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		// Chat works anonymously; conversation history only with a token.
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.OptionalAuthMiddleware)
			r.Post("/chat", apiHandler.ChatHandler)
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Post("/recommend", apiHandler.RecommendHandler)

			r.Get("/conversations", apiHandler.ListConversationsHandler)
			r.Delete("/conversations", apiHandler.DeleteAllConversationsHandler)
			r.Get("/conversations/{conversationID}", apiHandler.GetConversationHandler)
			r.Post("/conversations/{conversationID}/clear", apiHandler.ClearConversationHandler)
			r.Delete("/conversations/{conversationID}", apiHandler.DeleteConversationHandler)
		})
	})

	return r
}
