package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ippt_reminder_bot/internal/app"
	"ippt_reminder_bot/internal/infra/config"
	idb "ippt_reminder_bot/internal/infra/database"
	"ippt_reminder_bot/internal/infra/logger"
	"ippt_reminder_bot/internal/infra/scheduler"
	"ippt_reminder_bot/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	mainLogger := logger.Get().WithField("component", "main")
	mainLogger.Infof("Configuration loaded. Environment: %s, TZ: %s, window: %d days, interval: %d days",
		cfg.Environment, cfg.Location.String(), cfg.WindowDays, cfg.ReminderIntervalDays)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()
	if err := idb.EnsureSchema(ctx, db); err != nil {
		mainLogger.Fatalf("FATAL: Could not ensure database schema: %v", err)
	}
	mainLogger.Info("Database connection established")

	// Repositories
	personRepo := idb.NewPostgresPersonRepository(db)
	completionRepo := idb.NewPostgresCompletionRepository(db)
	defermentRepo := idb.NewPostgresDefermentRepository(db)
	cursorRepo := idb.NewPostgresReminderCursorRepository(db)
	auditSink := idb.NewPostgresAuditSink(db)

	// Telegram bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			entry := logger.Get().WithField("component", "telebot").WithError(err)
			if c != nil && c.Sender() != nil {
				entry = entry.WithField("sender_id", c.Sender().ID)
			}
			entry.Error("Handler error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Services
	adminPolicy := app.NewAdminPolicy(cfg.AdminTelegramIDs)
	complianceService := app.NewComplianceService(
		personRepo, completionRepo, defermentRepo,
		cfg.WindowDays, cfg.ReminderIntervalDays, cfg.Location, time.Now,
	)
	overrideService := app.NewOverrideService(
		personRepo, completionRepo, defermentRepo, auditSink, adminPolicy,
		cfg.WindowDays, cfg.Location, time.Now,
	)
	rosterService := app.NewRosterService(personRepo, auditSink, adminPolicy)
	reportService := app.NewReportService(
		personRepo, completionRepo, defermentRepo,
		cfg.WindowDays, cfg.Location, time.Now,
	)
	reminderService := app.NewReminderService(
		personRepo, completionRepo, defermentRepo, cursorRepo,
		telegram.NewTelebotAdapter(bot),
		logger.Get().WithField("component", "reminder_service"),
		cfg.WindowDays, cfg.ReminderIntervalDays, cfg.Location, time.Now,
	)

	// Daily sweep scheduler
	sweepScheduler := scheduler.NewSweepScheduler(
		reminderService,
		logger.Get().WithField("component", "scheduler"),
		cfg.CronSpecDailySweep,
		cfg.Location,
	)
	if err := sweepScheduler.Start(); err != nil {
		mainLogger.Fatalf("FATAL: Could not start sweep scheduler: %v", err)
	}

	// Handlers
	handlerLogger := logger.Get().WithField("component", "telegram")
	telegram.RegisterUserHandlers(ctx, bot, complianceService, handlerLogger)
	telegram.RegisterAdminHandlers(ctx, bot, overrideService, rosterService, reportService, adminPolicy, handlerLogger)

	mainLogger.Info("Application setup complete. Bot and scheduler are starting...")
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	cancel()
	sweepScheduler.Stop()
	bot.Stop()
	mainLogger.Info("Application shut down gracefully")
}
