package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/ats-backend/internal/auth"
	"github.com/justsurfingit/ats-backend/internal/config"
	"github.com/justsurfingit/ats-backend/internal/database"
	"github.com/justsurfingit/ats-backend/internal/handlers"
	"github.com/justsurfingit/ats-backend/internal/logging"
	"github.com/justsurfingit/ats-backend/internal/queue"
	"github.com/justsurfingit/ats-backend/internal/services"
	"github.com/justsurfingit/ats-backend/internal/storage"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"gorm.io/gorm"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database connection and schema
	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer database.Close(db)
	if err := database.Migrate(ctx, db); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}
	if err := database.EnsureAdmin(db, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.WithError(err).Fatal("bootstrap admin failed")
	}

	// 3. Storage and parse queue
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}
	parseQueue, err := queue.New(cfg.Queue)
	if err != nil {
		log.WithError(err).Fatal("queue init failed")
	}

	// 4. Core services
	llmService := services.NewLLMService(db, cfg.AI)
	settingsService := services.NewSettingsService(db, llmService)
	matcherService := services.NewMatcherService(db)
	auditService := services.NewAuditService(db)
	authService := services.NewAuthService(db, cfg.SessionTTL)
	candidateService := services.NewCandidateService(db, store)
	jobService := services.NewJobService(db, llmService)
	applicationService := services.NewApplicationService(db)

	resumeService := services.NewResumeService(db, store, services.NewResumeParser(llmService), parseQueue, cfg.MaxUploadBytes)
	resumeService.Matcher = matcherService
	resumeService.Settings = settingsService

	worker := services.NewParseWorker(parseQueue, resumeService, cfg.Queue.Workers)
	if err := worker.Start(ctx, cfg.Queue.Backend == queue.BackendMemory); err != nil {
		log.WithError(err).Fatal("parse worker failed to start")
	}

	// 5. Gmail inbox watcher
	var inbox *services.InboxService
	if cfg.Gmail.Enabled {
		inbox = startInbox(ctx, cfg, db, resumeService)
	}

	// 6. Handlers
	h := &handlers.Handlers{
		Health:       handlers.HealthCheck(func(ctx context.Context) error { return database.Ping(ctx, db) }),
		Auth:         handlers.NewAuthHandler(authService, auditService),
		Users:        handlers.NewUserHandler(services.NewUserService(db), auditService),
		Audit:        handlers.NewAuditHandler(auditService),
		Candidates:   handlers.NewCandidateHandler(candidateService, auditService),
		Resumes:      handlers.NewResumeHandler(resumeService, auditService, cfg.MaxUploadBytes),
		Jobs:         handlers.NewJobHandler(jobService, auditService),
		Matches:      handlers.NewMatchHandler(matcherService, auditService),
		Applications: handlers.NewApplicationHandler(applicationService, auditService),
		Settings:     handlers.NewSettingsHandler(settingsService, auditService),
		Chat:         handlers.NewChatHandler(services.NewChatService(db, llmService, settingsService)),
		Reports:      handlers.NewReportHandler(services.NewReportService(db, applicationService)),
	}

	// 7. Router & CORS
	r := gin.New()
	r.Use(gin.Recovery(), logging.Middleware())
	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 0 || cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", logging.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{"Content-Disposition", logging.RequestIDHeader}
	r.Use(cors.New(corsConfig))
	r.MaxMultipartMemory = cfg.MaxUploadBytes + 1<<20

	handlers.RegisterRoutes(r.Group("/api/v1"), h, authService)

	// 8. Serve until signalled
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if inbox != nil {
		inbox.Stop()
	}
	// parses in flight get their own window; interrupted ones go back to pending
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if err := worker.Stop(drainCtx); err != nil {
		log.WithError(err).Warn("parse worker shutdown")
	}
	log.Info("bye")
}

// startInbox connects to Gmail with the saved token. A missing token only
// disables the watcher.
func startInbox(ctx context.Context, cfg *config.Config, db *gorm.DB, resumes *services.ResumeService) *services.InboxService {
	logger := logging.Component("inbox")
	httpClient, err := auth.GmailClient(ctx, cfg.Gmail.CredentialsFile, cfg.Gmail.TokenFile)
	if err != nil {
		logger.WithError(err).Warn("gmail disabled")
		return nil
	}
	gmailService, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		logger.WithError(err).Warn("failed to create gmail service")
		return nil
	}
	logger.Info("gmail service connected")

	inbox := services.NewInboxService(db, resumes, gmailService, cfg.Gmail.Query, cfg.Gmail.PollInterval)
	inbox.StartWatcher(ctx)
	return inbox
}
