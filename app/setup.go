package app

import (
	"fmt"
	"os"

	"github.com/sahilchouksey/gradgrid/api"
	"github.com/sahilchouksey/gradgrid/config"
	"github.com/sahilchouksey/gradgrid/database"
	"github.com/sahilchouksey/gradgrid/router"
	"github.com/sahilchouksey/gradgrid/services/cron"
	"github.com/sahilchouksey/gradgrid/services/events"
	"github.com/sahilchouksey/gradgrid/services/retrieval"
	"github.com/sahilchouksey/gradgrid/utils/cache"
)

func SetupAndRunServer() error {

	// Load ENV
	if err := config.LoadENV(); err != nil {
		return err

	}

	getEnv, err := config.Get()
	if err != nil {
		return err
	}

	// Initialize GORM database connection
	store, err := database.StartGORM()
	if err != nil {
		print("Check whether the Postgres is running or not\n")
		print("If not running, run the following command:\n")
		print("  make docker-up   (for Docker setup)\n")
		print("  make db-up       (for local PostgreSQL)\n")
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		print("Error running migrations:\n")
		return err
	}

	// Redis backs both the subscription cache and the push channel
	redisURL := getEnv.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		print("Check whether Redis is running or not\n")
		return err
	}

	broker := events.NewBroker(redisCache)

	retrievalClient := retrieval.NewClient(retrieval.Config{
		BaseURL: getEnv.RETRIEVAL_API_URL,
		APIKey:  getEnv.RETRIEVAL_API_KEY,
	})

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		cronManager = cron.NewCronManager(store.DB(), broker)
		if err := cronManager.Start(); err != nil {
			print("Warning: Failed to start cron jobs\n")
			print("Error: ", err.Error(), "\n")
			// Don't fail the app, just log the warning
		}
	}

	// Defer Closing DB, Redis and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		redisCache.Close()
		store.Close()
	}()

	// Init API
	var server *api.APIServer = api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes
	router.SetupRoutes(app, router.Deps{
		Store:     store,
		Redis:     redisCache,
		Broker:    broker,
		Retrieval: retrievalClient,
	})

	// Get the PORT & Start the Server
	return server.Run()

}
