package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voicewave/cache"
	"voicewave/config"
	"voicewave/core/auth"
	"voicewave/core/room"
	"voicewave/db"
	"voicewave/logger"
	"voicewave/model"
	"voicewave/repository"
	"voicewave/storage"

	"github.com/gorilla/mux"
)

// Start initializes dependencies and runs the HTTP server until a
// termination signal arrives.
func Start() {
	cfg := config.Load()

	logger.InitLogger(logger.Config{
		Level:      logger.LogLevel(cfg.LogLevel),
		OutputPath: cfg.LogPath,
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})

	if err := storage.InitMinio(cfg); err != nil {
		logger.Fatal("failed to initialize MinIO", logger.ErrorField(err))
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := db.AutoMigrateModels(&model.Comment{}); err != nil {
		logger.Fatal("failed to migrate comment model", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	userRepo := repository.NewMySQLUserRepository(db.DB)
	audioRepo := repository.NewMySQLAudioRepository(db.DB)
	commentRepo := repository.NewGormCommentRepository(db.GormDB)
	likes := repository.NewMySQLLikeStore(db.DB)

	store := storage.NewMinioStore(cfg)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.JWTExpiryHrs)*time.Hour)
	trending := cache.NewTrendingCache(cache.RedisClient, time.Duration(cfg.TrendingCacheTTLs)*time.Second)

	hub := room.NewCommentHub()
	go hub.Run()
	defer hub.Stop()

	apiHandler := NewAPIHandler(cfg, userRepo, audioRepo, commentRepo, likes, store, tokens, hub, trending)
	router := NewRouter(apiHandler)

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", logger.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("server stopped")
}

// NewRouter wires the route table.
func NewRouter(h *APIHandler) *mux.Router {
	router := mux.NewRouter()

	router.Use(corsMiddleware)

	// Auth and account.
	router.HandleFunc("/api/auth/register", h.RegisterHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.AuthMiddleware(h.MeHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/users/me", h.AuthMiddleware(h.UpdateProfileHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/users/me/avatar", h.AuthMiddleware(h.UploadAvatarHandler)).Methods(http.MethodPut)

	// Users and the social graph. Search and follow register before the
	// username routes so they are not swallowed by the wildcard.
	router.HandleFunc("/api/users/search", h.SearchUsersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users/follow/{id}", h.AuthMiddleware(h.FollowHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/users/{username}", h.OptionalAuthMiddleware(h.GetProfileHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{username}/audios", h.OptionalAuthMiddleware(h.GetUserAudiosHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{username}/followers", h.ListFollowersHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{username}/following", h.ListFollowingHandler).Methods(http.MethodGet)

	// Audios.
	router.HandleFunc("/api/audios", h.OptionalAuthMiddleware(h.ListAudiosHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audios", h.AuthMiddleware(h.UploadAudioHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/audios/trending", h.TrendingHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/audios/feed", h.AuthMiddleware(h.FeedHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audios/{id}", h.OptionalAuthMiddleware(h.GetAudioHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audios/{id}", h.AuthMiddleware(h.DeleteAudioHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/api/audios/{id}/like", h.AuthMiddleware(h.LikeAudioHandler)).Methods(http.MethodPut)

	// Comments.
	router.HandleFunc("/api/audios/{id}/comments", h.OptionalAuthMiddleware(h.ListCommentsHandler)).Methods(http.MethodGet)
	router.HandleFunc("/api/audios/{id}/comments", h.AuthMiddleware(h.CreateCommentHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/comments/{id}/like", h.AuthMiddleware(h.LikeCommentHandler)).Methods(http.MethodPut)
	router.HandleFunc("/api/comments/{id}", h.AuthMiddleware(h.DeleteCommentHandler)).Methods(http.MethodDelete)

	// Realtime comment rooms.
	router.HandleFunc("/ws/audio/{audioId}", h.AudioRoomHandler).Methods(http.MethodGet)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
