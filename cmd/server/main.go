package main

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/devcircle/devcircle-server/internal/activity"
	"github.com/devcircle/devcircle-server/internal/api"
	"github.com/devcircle/devcircle-server/internal/auth"
	"github.com/devcircle/devcircle-server/internal/cache"
	"github.com/devcircle/devcircle-server/internal/config"
	"github.com/devcircle/devcircle-server/internal/repository"
	"github.com/devcircle/devcircle-server/internal/service"
	"github.com/devcircle/devcircle-server/internal/utils"
)

func main() {
	// Load .env if present, then configuration from the environment
	_ = godotenv.Load()
	cfg := config.LoadConfig()

	utils.SetupLogging(cfg.Server.LogLevel)

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to set up database: %v", err)
	}
	defer db.Close()

	// Set up Redis (optional; caching is disabled without it)
	redisClient, err := config.SetupRedis(cfg)
	if err != nil {
		log.Fatalf("Failed to set up Redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Create the best-effort activity recorder
	recorder := activity.NewRecorder(repo, 0)
	defer recorder.Close()

	// Create the GitHub identity provider
	identity := auth.NewGithubProvider(cfg.Auth.GithubClientID, cfg.Auth.GithubClientSecret)

	// Create service
	svc := service.NewDefaultService(
		repo,
		recorder,
		identity,
		cache.NewLeaderboardCache(redisClient),
		cfg.Auth.JWTSecret,
		cfg.Auth.CollegeID,
		cfg.Auth.InitialKarma,
	)

	// Create API handler
	handler := api.NewHandler(svc, cfg.Server.ClientURL)

	// Set up Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.Server.ClientURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		AllowCredentials: true,
	}))

	// Add middleware for JWT secret
	router.Use(func(c *gin.Context) {
		c.Set("jwtSecret", []byte(cfg.Auth.JWTSecret))
		c.Next()
	})

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("Starting server on %s", serverAddr)
	if err := http.ListenAndServe(serverAddr, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
