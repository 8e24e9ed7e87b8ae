package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"quizforge-backend/internal/handlers"
	"quizforge-backend/internal/middleware"
	"quizforge-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authLimiter *middleware.RateLimiter,
	authHandler *handlers.AuthHandler,
	questionHandler *handlers.QuestionHandler,
	quizHandler *handlers.QuizHandler,
	attemptHandler *handlers.AttemptHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/admin/login", authHandler.AdminLogin)
			r.Post("/login", authHandler.UserLogin)
		})

		// ──── Quiz Catalogue & Attempts ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", quizHandler.List)
			r.Get("/{id}", quizHandler.Get)
			r.Get("/{id}/stats", quizHandler.Stats)
			r.With(middleware.RequireUser).Post("/{id}/attempts", attemptHandler.Start)
		})

		r.Route("/attempts", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(middleware.RequireUser)
			r.Get("/{id}", attemptHandler.State)
			r.Post("/{id}/answers", attemptHandler.Answer)
			r.Post("/{id}/skip", attemptHandler.Skip)
			r.Post("/{id}/complete", attemptHandler.Complete)
			r.Post("/{id}/abandon", attemptHandler.Abandon)
			r.Get("/{id}/results", attemptHandler.Results)
		})

		// ──── Personal Analytics ────
		r.Route("/me", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/stats", analyticsHandler.Stats)
			r.Get("/history", analyticsHandler.History)
			r.Get("/trend", analyticsHandler.Trend)
		})

		// ──── Admin ────
		r.Route("/admin", func(r chi.Router) {
			// The websocket authenticates with its token query parameter.
			r.Get("/ws", wsHub.HandleWebSocket)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Use(middleware.RequireAdmin)

				r.Route("/questions", func(r chi.Router) {
					r.Get("/", questionHandler.List)
					r.Post("/", questionHandler.Create)
					r.Post("/validate", questionHandler.Preview)
					r.Post("/revalidate-pending", questionHandler.RevalidatePending)
					r.Get("/{id}", questionHandler.Get)
					r.Put("/{id}", questionHandler.Update)
					r.Delete("/{id}", questionHandler.Delete)
					r.Post("/{id}/validate", questionHandler.Revalidate)
					r.Post("/{id}/resolve", questionHandler.Resolve)
					r.Post("/{id}/unflag", questionHandler.Unflag)
					r.Get("/{id}/quizzes", questionHandler.Quizzes)
				})

				r.Get("/review-queue", questionHandler.ReviewQueue)

				r.Route("/quizzes", func(r chi.Router) {
					r.Post("/", quizHandler.Create)
					r.Put("/{id}", quizHandler.Update)
					r.Delete("/{id}", quizHandler.Delete)
					r.Get("/{id}/questions", quizHandler.Questions)
					r.Post("/{id}/questions", quizHandler.AddQuestions)
					r.Delete("/{id}/questions/{questionID}", quizHandler.RemoveQuestion)
					r.Post("/{id}/assemble", quizHandler.Assemble)
				})
			})
		})
	})

	return r
}
