// Package app assembles the assistant's services from configuration. The
// binaries under cmd/ share it so the API server and the reminder worker
// see the same store, locks and mail pipeline.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/hackgods/clinic-appointment-assistant/internal/booking"
	"github.com/hackgods/clinic-appointment-assistant/internal/chat"
	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/db"
	"github.com/hackgods/clinic-appointment-assistant/internal/extract"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/matching"
	"github.com/hackgods/clinic-appointment-assistant/internal/metrics"
	"github.com/hackgods/clinic-appointment-assistant/internal/notify"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
	redisclient "github.com/hackgods/clinic-appointment-assistant/internal/redis"
	"github.com/hackgods/clinic-appointment-assistant/internal/reminders"
	"github.com/hackgods/clinic-appointment-assistant/internal/reports"
	"github.com/hackgods/clinic-appointment-assistant/internal/session"
	"github.com/hackgods/clinic-appointment-assistant/internal/textgen"
)

type App struct {
	Config    config.Config
	Logger    *logging.Logger
	Metrics   *metrics.AssistantMetrics
	Pool      *pgxpool.Pool // nil for the memory backend
	Redis     *redis.Client // nil when Redis is unreachable
	Repo      records.Repository
	Locker    redisclient.Locker
	Sessions  session.Store[chat.SessionState]
	Generator textgen.Generator // nil without an API key
	Mailer    *notify.Mailer
	Booking   *booking.Service
	Scheduler *reminders.Scheduler
	Matcher   *matching.Matcher
	Reports   *reports.Service
	Engine    *chat.Engine

	closers []func()
}

// New connects the configured backends. Postgres is mandatory when
// selected; Redis and Gemini are optional and degrade to in-process
// locks, in-memory sessions and templated text.
func New(ctx context.Context, cfg config.Config, logger *logging.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Metrics: metrics.NewAssistantMetrics(reg)}

	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		a.Repo = records.NewMemoryRepository()
		logger.Warn("using in-memory record store; data is lost on restart")
	default:
		pgCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pool, err := db.Connect(pgCtx, cfg.PostgresDSN, db.PoolOptions{
			AppName:  "clinic-api",
			MaxConns: int32(cfg.PostgresMaxConn),
			MinConns: 1,
			Logger:   logger,
		})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.Pool = pool
		a.closers = append(a.closers, pool.Close)
		a.Repo = records.NewPgRepository(pool)
	}

	rdb, err := redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis unavailable, using in-process locks and sessions", "addr", cfg.RedisAddr, "error", err)
		a.Locker = redisclient.NewLocalLocker()
		a.Sessions = session.NewMemoryStore[chat.SessionState]()
	} else {
		a.Redis = rdb
		a.closers = append(a.closers, func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("error closing redis", "error", err)
			}
		})
		a.Locker = redisclient.NewRedisLocker(rdb, cfg.LockTTL)
		a.Sessions = session.NewRedisStore[chat.SessionState](rdb, cfg.SessionTTL)
		logger.Info("connected to redis", "addr", cfg.RedisAddr)
	}

	if cfg.GeminiAPIKey != "" {
		gem, err := textgen.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = gem.Close() })
		a.Generator = textgen.NewResilient(gem, textgen.Options{
			Timeout:     cfg.LLMTimeout,
			MaxAttempts: cfg.LLMMaxAttempts,
		}, logger, a.Metrics)
	} else {
		logger.Info("GEMINI_API_KEY not set, replies use templates")
	}

	var sender notify.EmailSender = notify.NewStubEmailSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		sender = sg
	} else {
		logger.Info("SENDGRID_API_KEY not set, e-mails are logged only")
	}
	form, err := notify.LoadIntakeForm(cfg.IntakeFormPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	notifier := notify.NewNotifier(sender, notify.NotifierOptions{
		Timeout:     cfg.NotifyTimeout,
		MaxAttempts: cfg.NotifyMaxAttempts,
	}, logger)
	a.Mailer = notify.NewMailer(notifier, cfg.PublicBaseURL, form)

	a.Booking = booking.NewService(a.Repo, a.Locker, logger, a.Metrics)
	a.Scheduler = reminders.NewScheduler(a.Repo, a.Mailer, a.Locker, reminders.Config{
		LookaheadDays: cfg.ReminderLookaheadDays,
		Location:      cfg.Timezone,
	}, logger, a.Metrics)
	a.Matcher = matching.NewMatcher(a.Repo, logger)
	a.Reports = reports.NewService(a.Repo, a.Generator, logger)
	a.Engine = chat.NewEngine(chat.Deps{
		Matcher:   a.Matcher,
		Booking:   a.Booking,
		Patients:  a.Repo,
		Mailer:    a.Mailer,
		Reminders: a.Scheduler,
		Insurance: extract.NewInsuranceExtractor(a.Generator, logger),
		Generator: a.Generator,
		Location:  cfg.Timezone,
		Logger:    logger,
		Metrics:   a.Metrics,
	})

	return a, nil
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
