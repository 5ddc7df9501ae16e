package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/ecanizalez/orgreq/internal/cache"
	"github.com/ecanizalez/orgreq/internal/config"
	"github.com/ecanizalez/orgreq/internal/gormw"
	"github.com/ecanizalez/orgreq/internal/handlers/abuse"
	"github.com/ecanizalez/orgreq/internal/handlers/middleware"
	"github.com/ecanizalez/orgreq/internal/handlers/portal"
	"github.com/ecanizalez/orgreq/internal/handlers/requests"
	"github.com/ecanizalez/orgreq/internal/lifecycle"
	"github.com/ecanizalez/orgreq/internal/mailer"
	"github.com/ecanizalez/orgreq/internal/storage"
)

var (
	configPath = flag.String("c", os.Getenv("CONFIG_PATH"), "Path to configuration file")
)

func main() {
	flag.Parse()
	if *configPath == "" {
		log.Fatal().Msg("Config path must be provided via CONFIG_PATH env var or -c flag")
	}

	// Load configuration
	cfg := config.LoadConfig(*configPath)

	// cron schedule
	scheduler, _ := gocron.NewScheduler()
	scheduler.Start()

	// Initialize database
	db, err := gormw.Open(&cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	if err := storage.SeedStatuses(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed invitation statuses")
	}
	statuses, err := storage.LoadStatusRegistry(db)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load status registry")
	}

	sender := mailer.NewSMTPSender(cfg.SMTP)
	engine := lifecycle.New(cfg.Lifecycle, db, statuses, sender, cache.New())
	lifecycle.RegisterExpiryReminder(scheduler, engine)

	// Set up Gin router
	gin.SetMode(cfg.GinMode)
	router := gin.Default()

	// add firewall middleware
	guard := abuse.New(&cfg.Firewall)
	router.Use(guard.Middleware())

	auth := middleware.NewAuth(&cfg.Auth)
	requests.New(db, engine, statuses, auth).RegisterHandlers(router.Group("/"))

	portal.RegisterHandlers(router.Group("/"))

	// Manual firewall controls live on the internal listener only.
	if cfg.BanHandlersPort != 0 {
		banRouter := gin.Default()
		guard.RegisterHandlers(banRouter.Group("/"))
		go func() {
			addr := fmt.Sprintf(":%d", cfg.BanHandlersPort)
			if err := banRouter.Run(addr); err != nil {
				log.Fatal().Err(err).Msg("Failed to start ban handlers server")
			}
		}()
	}

	// Start server
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Port),
		// Good practice to set timeouts to avoid Slowloris attacks.
		WriteTimeout: time.Second * 15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	// Run our server in a goroutine so that it doesn't block.
	go func() {
		log.Printf("start server at %q", srv.Addr)
		if err := srv.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	c := make(chan os.Signal, 1)
	// We'll accept graceful shutdowns when quit via SIGINT (Ctrl+C)
	// SIGKILL, SIGQUIT or SIGTERM (Ctrl+/) will not be caught.
	signal.Notify(c, os.Interrupt)

	// Block until we receive our signal.
	<-c

	// Create a deadline to wait for.
	wait := time.Second * 15
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	// Doesn't block if no connections, but will otherwise wait
	// until the timeout deadline.
	srv.Shutdown(ctx)

	log.Info().Msg("shutting down")
	os.Exit(0)
}
