package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"event-calendar/internal/bot"
	"event-calendar/internal/config"
	mcpserver "event-calendar/internal/mcp"
	"event-calendar/internal/repository"
	"event-calendar/internal/service"
	"event-calendar/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	db, err := repository.NewDB(cfg.DatabaseURL, logger)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}
	logger.Info("database ready", "dsn", cfg.DatabaseURL)

	categoryRepo := repository.NewCategoryRepository(db)
	eventRepo := repository.NewEventRepository(db)
	subscriberRepo := repository.NewSubscriberRepository(db)

	categorySvc := service.NewCategoryService(categoryRepo, eventRepo)
	eventSvc := service.NewEventService(eventRepo, categoryRepo)
	calendarSvc := service.NewCalendarService(eventRepo, categoryRepo, cfg.TagRules)
	reminderSvc := service.NewReminderService(calendarSvc, cfg.Labels)

	if name := cfg.UpcomingExcludeCategory; name != "" {
		if _, err := categoryRepo.FindByName(ctx, name); err != nil {
			logger.Warn("upcoming exclude category not found", "category", name, "error", err)
		}
	}

	webSrv, err := web.NewServer(&cfg, logger, calendarSvc, eventSvc, categorySvc)
	if err != nil {
		log.Fatalf("web: %v", err)
	}

	mcpSrv := mcpserver.NewServer(calendarSvc, categorySvc, func() time.Time {
		return time.Now().In(cfg.Location)
	})
	mcpHTTP := server.NewStreamableHTTPServer(mcpSrv)
	webSrv.Mount("POST /mcp", mcpHTTP)
	webSrv.Mount("GET /mcp", mcpHTTP)
	webSrv.Mount("DELETE /mcp", mcpHTTP)

	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(&cfg, logger, subscriberRepo, categorySvc, eventSvc, calendarSvc, reminderSvc)
		if err != nil {
			log.Fatalf("bot: %v", err)
		}

		scheduler := service.NewSchedulerService(cfg.Location, logger)
		id, err := scheduler.ScheduleAgenda(ctx, cfg.AgendaTime, telegramBot, 30*time.Second)
		if err != nil {
			log.Fatalf("schedule agenda: %v", err)
		}
		scheduler.Start()
		defer scheduler.Stop()
		logger.Debug("next agenda run", "at", scheduler.NextRun(id))
		logger.Info("daily agenda scheduled", "at", cfg.AgendaTime, "allowed_users", len(cfg.TelegramAllowedIDs))

		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot stopped with error", "error", err)
			}
		}()
	} else {
		logger.Info("TELEGRAM_TOKEN not set, telegram bot disabled")
	}

	if err := webSrv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http: %v", err)
	}
	logger.Info("shutdown complete")
}
