package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"culturascape/api/analytics"
	"culturascape/api/database"
	"culturascape/api/docstore"
	"culturascape/api/handlers"
	"culturascape/api/middleware"
	"culturascape/api/models"
	"culturascape/api/profile"
	"culturascape/api/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading .env: %v", err)
	}

	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// --- Remote document store (sessions, consultations, profiles) ---
	// The pipeline runs degraded when this is down; nothing fatals.
	var docStore docstore.Store
	mongoClient, err := database.NewMongoDB()
	if err != nil {
		log.Printf("Document store unavailable, running local-only: %v", err)
	} else {
		defer mongoClient.Close()
		docStore = docstore.NewMongoStore(mongoClient.DB)
	}

	// --- ClickHouse raw-event archive (optional) ---
	var analyticsStore *store.AnalyticsStore
	chClient, err := database.NewClickHouseDB()
	if err != nil {
		log.Printf("Event archive unavailable, skipping raw archival: %v", err)
	} else {
		defer chClient.Close()
		analyticsStore = store.NewAnalyticsStore(chClient)
	}

	// --- PostgreSQL dashboard accounts (optional) ---
	var userStore *store.UserStore
	dbClient, err := database.NewPostgresDB()
	if err != nil {
		log.Printf("Account database unavailable, dashboard disabled: %v", err)
	} else {
		defer dbClient.Close()
		userStore = store.NewUserStore(dbClient.DB)
	}

	// --- Local profile slot ---
	profilePath := os.Getenv("PROFILE_DB_PATH")
	if profilePath == "" {
		profilePath = "profiles.db"
	}
	localStore, err := profile.OpenLocalStore(profilePath)
	if err != nil {
		log.Fatalf("Failed to open local profile store: %v", err)
	}
	profiles := profile.NewService(localStore, docStore)
	defer profiles.Close()

	// --- Session registry ---
	opts := analytics.Options{}
	if analyticsStore != nil {
		opts.Archive = analyticsStore
	}
	registry := analytics.NewRegistry(func(id string, meta models.StartSessionRequest) *analytics.Manager {
		return analytics.NewManager(id, docStore, meta, opts)
	})

	trackHandlers := handlers.NewTrackHandlers(registry, docStore)
	consultationHandlers := handlers.NewConsultationHandlers(registry, profiles)
	profileHandlers := handlers.NewProfileHandlers(profiles)

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())

	api := r.Group("/api")
	{
		api.POST("/sessions", trackHandlers.StartSession)
		api.POST("/sessions/:id/end", trackHandlers.EndSession)
		api.POST("/events", trackHandlers.TrackEvent)
		api.POST("/track", trackHandlers.Beacon)
		api.POST("/performance", trackHandlers.TrackPerformance)
		api.POST("/engagement", trackHandlers.UpdateEngagement)

		api.POST("/consultations", consultationHandlers.SubmitConsultation)
		api.POST("/newsletter", consultationHandlers.SubscribeNewsletter)

		api.GET("/preferences", profileHandlers.GetPreferences)
		api.PUT("/preferences", profileHandlers.UpdatePreferences)
		api.GET("/profile", profileHandlers.GetProfile)
		api.PUT("/profile/user", profileHandlers.SetUserInfo)

		if userStore != nil {
			authHandlers := handlers.NewAuthHandlers(userStore)
			api.POST("/signup", authHandlers.Signup)
			api.POST("/login", authHandlers.Login)
			api.POST("/logout", authHandlers.Logout)

			if analyticsStore != nil {
				statsHandlers := handlers.NewStatsHandlers(analyticsStore)
				statsGroup := api.Group("/stats")
				statsGroup.Use(middleware.AuthRequired())
				{
					statsGroup.GET("/event-counts", statsHandlers.GetEventCountsOverTime)
					statsGroup.GET("/top-actions", statsHandlers.GetTopActions)
					statsGroup.GET("/unique-sessions", statsHandlers.GetUniqueSessionsOverTime)
				}
			}
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	go func() {
		log.Printf("Culturascape API server starting on http://localhost:%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Flush and end every live session before the listener goes away.
	registry.CloseAll(ctx)

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting.")
}
