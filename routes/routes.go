package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/2hm1901/tournament-management/handlers"
	"github.com/2hm1901/tournament-management/middleware"
	"github.com/2hm1901/tournament-management/models"
)

// SetupRoutes собирает все HTTP-маршруты приложения.
func SetupRoutes(
	router *chi.Mux,
	jwtSecret []byte,
	authHandler *handlers.AuthHandler,
	tournamentHandler *handlers.TournamentHandler,
	participantHandler *handlers.ParticipantHandler,
	matchHandler *handlers.MatchHandler,
	bracketHandler *handlers.BracketHandler,
	playerHandler *handlers.PlayerHandler,
	teamHandler *handlers.TeamHandler,
	userHandler *handlers.UserHandler,
	webSocketHandler *handlers.WebSocketHandler,
) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)
	organizerOnly := middleware.Authorize(models.RoleOrganizer, models.RoleAdmin)

	router.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	router.Post("/auth/register", authHandler.RegisterHandler)
	router.Post("/auth/login", authHandler.LoginHandler)

	router.Route("/tournaments", func(r chi.Router) {
		r.Get("/", tournamentHandler.ListHandler)
		r.Get("/{tournamentID}", tournamentHandler.GetByIDHandler)
		r.Get("/slug/{slug}", tournamentHandler.GetBySlugHandler)
		r.Get("/{tournamentID}/participants", participantHandler.ListHandler)
		r.Get("/{tournamentID}/matches", matchHandler.ListHandler)
		r.Get("/{tournamentID}/bracket", bracketHandler.GetHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/{tournamentID}/participants", participantHandler.RegisterHandler)

			r.Group(func(r chi.Router) {
				r.Use(organizerOnly)

				r.Post("/", tournamentHandler.CreateHandler)
				r.Put("/{tournamentID}", tournamentHandler.UpdateHandler)
				r.Delete("/{tournamentID}", tournamentHandler.DeleteHandler)
				r.Post("/{tournamentID}/logo", tournamentHandler.UploadLogoHandler)

				r.Post("/{tournamentID}/registration/open", tournamentHandler.OpenRegistrationHandler)
				r.Post("/{tournamentID}/registration/close", tournamentHandler.CloseRegistrationHandler)
				r.Post("/{tournamentID}/start", tournamentHandler.StartHandler)
				r.Post("/{tournamentID}/complete", tournamentHandler.CompleteHandler)
				r.Post("/{tournamentID}/cancel", tournamentHandler.CancelHandler)

				r.Post("/{tournamentID}/seeds/auto", participantHandler.AutoSeedHandler)
				r.Put("/{tournamentID}/seeds", participantHandler.SeedHandler)
				r.Post("/{tournamentID}/bracket", bracketHandler.GenerateHandler)
			})
		})
	})

	router.Route("/participants", func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/{participantID}/withdraw", participantHandler.WithdrawHandler)

		r.Group(func(r chi.Router) {
			r.Use(organizerOnly)

			r.Post("/{participantID}/confirm", participantHandler.ConfirmHandler)
			r.Post("/{participantID}/reject", participantHandler.RejectHandler)
			r.Post("/{participantID}/disqualify", participantHandler.DisqualifyHandler)
			r.Post("/{participantID}/payment", participantHandler.MarkPaidHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}", matchHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(organizerOnly)

			r.Post("/{matchID}/start", matchHandler.StartHandler)
			r.Post("/{matchID}/complete", matchHandler.CompleteHandler)
			r.Post("/{matchID}/walkover", matchHandler.WalkoverHandler)
			r.Post("/{matchID}/postpone", matchHandler.PostponeHandler)
			r.Post("/{matchID}/cancel", matchHandler.CancelHandler)
			r.Post("/{matchID}/propagate", bracketHandler.RepairHandler)
			r.Put("/{matchID}/schedule", matchHandler.RescheduleHandler)
		})
	})

	router.Route("/players", func(r chi.Router) {
		r.Get("/{playerID}", playerHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", playerHandler.CreateHandler)
			r.Put("/{playerID}", playerHandler.UpdateHandler)
			r.Post("/{playerID}/logo", playerHandler.UploadLogoHandler)
		})
	})

	router.Route("/teams", func(r chi.Router) {
		r.Get("/{teamID}", teamHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Post("/", teamHandler.CreateHandler)
			r.Post("/{teamID}/logo", teamHandler.UploadLogoHandler)
		})
	})

	router.With(authenticate).Get("/users/{userID}", userHandler.GetByIDHandler)

	router.Get("/ws/tournaments/{tournamentID}", webSocketHandler.ServeWs)
}
