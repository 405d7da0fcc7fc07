package router

import (
	"log"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/gradgrid/config"
	"github.com/sahilchouksey/gradgrid/database"
	"github.com/sahilchouksey/gradgrid/handlers"
	column_handlers "github.com/sahilchouksey/gradgrid/handlers/column"
	events_handlers "github.com/sahilchouksey/gradgrid/handlers/events"
	research_handlers "github.com/sahilchouksey/gradgrid/handlers/research"
	subscription_handlers "github.com/sahilchouksey/gradgrid/handlers/subscription"
	university_handlers "github.com/sahilchouksey/gradgrid/handlers/university"
	"github.com/sahilchouksey/gradgrid/services"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/services/retrieval"
	"github.com/sahilchouksey/gradgrid/utils/auth"
	"github.com/sahilchouksey/gradgrid/utils/cache"
	"github.com/sahilchouksey/gradgrid/utils/middleware"
)

// Deps carries the shared infrastructure the routes are built on
type Deps struct {
	Store     *database.GORMStore
	Redis     *cache.RedisCache
	Broker    *events.Broker
	Retrieval *retrieval.Client
}

func SetupRoutes(app *fiber.App, deps Deps) {
	getEnv, err := config.Get()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}
	if getEnv.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := getEnv.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "gradgrid-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: getEnv.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	db := deps.Store.DB()
	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	// Services
	enrichmentService := services.NewEnrichmentService(db, deps.Retrieval, deps.Broker)

	// Handlers
	universityHandler := university_handlers.NewUniversityHandler(db, enrichmentService)
	columnHandler := column_handlers.NewColumnHandler(db, enrichmentService)
	subscriptionHandler := subscription_handlers.NewSubscriptionHandler(db, deps.Redis, deps.Broker)
	researchHandler := research_handlers.NewResearchHandler(db, deps.Retrieval)
	eventsHandler := events_handlers.NewEventsHandler(deps.Broker)

	// Apply security middleware
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,             // 100 requests
		RateLimitWindow:   1 * time.Minute, // per minute
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(deps.Store))

	// Everything under /api is a session-authenticated grid endpoint
	api := app.Group("/api", authMiddleware.Required())

	// Universities: rows of the grid
	universities := api.Group("/universities")
	universities.Get("/", universityHandler.ListUniversities)
	universities.Post("/", universityHandler.CreateUniversity)
	universities.Post("/details", universityHandler.GetDetails)
	universities.Delete("/:id", universityHandler.DeleteUniversity)

	// Columns and cell data
	columns := api.Group("/columns")
	columns.Get("/", columnHandler.ListColumns)
	columns.Post("/", columnHandler.CreateColumn)
	columns.Delete("/:id", columnHandler.DeleteColumn)
	columns.Post("/data", columnHandler.SaveCellValue)
	columns.Post("/data/batch", columnHandler.BatchCellData)

	// Subscription tier
	subscription := api.Group("/subscription")
	subscription.Get("/status", subscriptionHandler.GetStatus)
	subscription.Post("/reactivate", subscriptionHandler.Reactivate)

	// Retrieval proxy
	api.Post("/rag", researchHandler.Ask)

	// Push channel
	api.Get("/events", eventsHandler.Stream)
}
