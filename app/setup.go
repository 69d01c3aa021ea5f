package app

import (
	"fmt"
	"os"

	"github.com/kodexa-lms/commerce-api/api"
	"github.com/kodexa-lms/commerce-api/config"
	"github.com/kodexa-lms/commerce-api/database"
	"github.com/kodexa-lms/commerce-api/router"
	"github.com/kodexa-lms/commerce-api/services/cron"
	"gorm.io/gorm"
)

// SetupAndRunServer loads config, connects storage, starts the background
// jobs and serves the API until the listener stops.
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
		return err
	}

	if err := store.Init(); err != nil {
		print("Failed to initialize database tables\n")
		return err
	}

	// Optional development seed data
	if os.Getenv("SEED_DB") == "true" {
		if db, ok := store.GetDB().(*gorm.DB); ok {
			if err := database.RunSeeds(db); err != nil {
				return err
			}
		}
	}

	// Initialize Cron Manager (only if enabled via environment variable)
	var cronManager *cron.CronManager
	if os.Getenv("CRON_ENABLED") != "false" { // Default to enabled
		db, ok := store.GetDB().(*gorm.DB)
		if !ok {
			print("Warning: Failed to get database connection for cron jobs\n")
		} else {
			cronManager = cron.NewCronManager(db)
			if err := cronManager.Start(); err != nil {
				print("Warning: Failed to start cron jobs\n")
				print("Error: ", err.Error(), "\n")
				// Don't fail the app, just log the warning
			}
		}
	}

	// Defer Closing DB and stopping cron jobs
	defer func() {
		if cronManager != nil {
			cronManager.Stop()
		}
		store.Close()
	}()

	// Init API
	server := api.NewAPIServer(fmt.Sprintf(":%d", getEnv.PORT))
	app := server.GetEngine()

	// Setup Routes (security middleware is attached inside)
	router.SetupRoutes(app, store, getEnv)

	return server.Run()
}
