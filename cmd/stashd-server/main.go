package main

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stashd/stashd/pkg/stashd/antiforgery"
	"github.com/stashd/stashd/pkg/stashd/credentials"
	"github.com/stashd/stashd/pkg/stashd/database"
	"github.com/stashd/stashd/pkg/stashd/models"
	"github.com/stashd/stashd/pkg/stashd/store"
	"github.com/stashd/stashd/pkg/stashd/upload"
)

func main() {
	// Get database path from environment or use default
	dbPath := os.Getenv("STASHD_DB_PATH")
	if dbPath == "" {
		dbPath = "stashd.db"
	}

	// Connect to database
	if err := database.Connect(dbPath); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(database.GetDB()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Get spool directory from environment or use default
	spoolDir := os.Getenv("STASHD_SPOOL_DIR")
	if spoolDir == "" {
		spoolDir = "spool"
	}

	credentialStore := store.New(database.GetDB())
	gate := antiforgery.New(antiforgery.DefaultWindow)

	// Set up Gin router
	r := gin.Default()

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"status":  "ok",
				"service": "stashd",
			})
		})

		// Anti-forgery token issue endpoint (pure read, sets the session cookie)
		antiforgeryHandler := antiforgery.NewHandler(gate)
		antiforgeryHandler.RegisterRoutes(api)

		// Credential lifecycle routes; mutations require a fresh token
		credentialsHandler := credentials.NewHandler(credentialStore)
		credentialsHandler.RegisterRoutes(api, antiforgery.Middleware(gate))
	}

	// Upload ingestion (credential bearer auth, sole writer of usage counters)
	uploadHandler := upload.NewHandler(spoolDir)
	uploadHandler.RegisterRoutes(r.Group("", upload.CredentialAuthMiddleware(credentialStore)))

	// Get port from environment or use default
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting stashd server on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
