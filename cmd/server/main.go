package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"showtrackr/api"
	"showtrackr/config"
	"showtrackr/handlers"
	"showtrackr/internal/database"
	"showtrackr/services/accounts"
	"showtrackr/services/credentials"
	"showtrackr/services/library"
	"showtrackr/services/refresh"
	"showtrackr/services/sessions"
	"showtrackr/utils"
)

const envDataDir = "SHOWTRACKR_DATA_DIR"

func main() {
	dataDir := os.Getenv(envDataDir)
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		log.Fatalf("[main] create data dir: %v", err)
	}

	setupLogging(dataDir)

	cfg := config.NewManager(filepath.Join(dataDir, "settings.json"))
	settings, err := cfg.Load()
	if err != nil {
		log.Fatalf("[main] load settings: %v", err)
	}

	db, err := database.NewDB(database.Config{DatabasePath: filepath.Join(dataDir, "showtrackr.db")})
	if err != nil {
		log.Fatalf("[main] open database: %v", err)
	}
	defer db.Close()

	conn := db.Connection()
	credRepo := database.NewCredentialRepository(conn)
	libraryRepo := database.NewLibraryRepository(conn)
	cacheRepo := database.NewShowCacheRepository(conn)

	accountsSvc, err := accounts.NewService(dataDir)
	if err != nil {
		log.Fatalf("[main] accounts service: %v", err)
	}
	sessionsSvc, err := sessions.NewService(dataDir, sessions.DefaultSessionDuration)
	if err != nil {
		log.Fatalf("[main] sessions service: %v", err)
	}

	credsSvc := credentials.NewService(credRepo)
	librarySvc := library.NewService(libraryRepo, cacheRepo)
	refreshSvc := refresh.NewService(cfg, credsSvc, libraryRepo, cacheRepo, accountsSvc)

	authHandler := handlers.NewAuthHandler(accountsSvc, sessionsSvc)
	showsHandler := handlers.NewShowsHandler(librarySvc, cacheRepo, refreshSvc)
	episodesHandler := handlers.NewEpisodesHandler(cfg, librarySvc, cacheRepo, refreshSvc)
	refreshHandler := handlers.NewRefreshHandler(cfg, credsSvc, refreshSvc)
	credsHandler := handlers.NewCredentialsHandler(credsSvc)

	router := utils.NewRouter()

	// Public routes. Login is rate limited per IP: 5 attempts per minute.
	loginLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	router.HandleFunc("/api/auth/login", api.RateLimitHandlerFunc(loginLimiter, authHandler.Login)).Methods(http.MethodPost, http.MethodOptions)
	router.HandleFunc("/api/auth/logout", authHandler.Logout).Methods(http.MethodPost, http.MethodOptions)

	// Everything else under /api requires a session.
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(api.AccountAuthMiddleware(sessionsSvc))

	protected.HandleFunc("/auth/me", authHandler.Me).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/auth/password", authHandler.ChangePassword).Methods(http.MethodPost, http.MethodOptions)

	protected.HandleFunc("/shows/search", showsHandler.Search).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/shows", showsHandler.Add).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/shows", showsHandler.List).Methods(http.MethodGet)
	protected.HandleFunc("/shows/{tvdbId}", showsHandler.Remove).Methods(http.MethodDelete, http.MethodOptions)

	protected.HandleFunc("/episodes", episodesHandler.Get).Methods(http.MethodGet, http.MethodOptions)
	protected.HandleFunc("/episodes/watch", episodesHandler.Watch).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/episodes/watch", episodesHandler.Unwatch).Methods(http.MethodDelete)

	protected.HandleFunc("/tvdb/pin", credsHandler.SavePIN).Methods(http.MethodPost, http.MethodOptions)
	protected.HandleFunc("/tvdb/status", credsHandler.Status).Methods(http.MethodGet, http.MethodOptions)

	protected.HandleFunc("/refresh", refreshHandler.Refresh).Methods(http.MethodPost, http.MethodOptions)

	scheduler := refresh.NewScheduler(cfg, refreshSvc)
	scheduler.Start(context.Background())

	addr := fmt.Sprintf("%s:%d", settings.Server.Host, settings.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("[main] listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[main] server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Printf("[main] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	scheduler.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[main] shutdown error: %v", err)
	}
}

// setupLogging writes logs to stdout and a size-rotated file under the
// data directory.
func setupLogging(dataDir string) {
	rotated := &lumberjack.Logger{
		Filename:   filepath.Join(dataDir, "logs", "showtrackr.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, rotated))
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
}
