package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/seating-planner/internal/audit"
	"github.com/iliyamo/seating-planner/internal/clock"
	"github.com/iliyamo/seating-planner/internal/config" // Internal config loader
	"github.com/iliyamo/seating-planner/internal/database"
	"github.com/iliyamo/seating-planner/internal/handler"
	"github.com/iliyamo/seating-planner/internal/lock"
	"github.com/iliyamo/seating-planner/internal/logging"
	"github.com/iliyamo/seating-planner/internal/planner"
	"github.com/iliyamo/seating-planner/internal/queue"
	"github.com/iliyamo/seating-planner/internal/repository"
	"github.com/iliyamo/seating-planner/internal/router" // Internal router setup
	"github.com/iliyamo/seating-planner/internal/seating"
	queue_publisher "github.com/iliyamo/seating-planner/internal/service"
	"github.com/iliyamo/seating-planner/internal/snapshot"
	"github.com/iliyamo/seating-planner/internal/utils"
	"github.com/iliyamo/seating-planner/internal/version"
)

// eventStore is what the engines need from persistence.
type eventStore interface {
	version.Store
	lock.Store
	planner.Store
}

func main() {
	config.LoadDotEnv()  // Load .env if present
	cfg := config.Load() // Load environment config

	log := logging.New(os.Stdout, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		events eventStore
		snaps  snapshot.Store
		audits audit.Store
	)
	switch cfg.Storage {
	case config.StorageMemory:
		mem := repository.NewMemoryStore()
		events, snaps, audits = mem, mem, mem
		log.Warn(ctx, "using in-memory storage; data is lost on restart")
	default:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			log.Error(ctx, "open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := database.Migrate(ctx, db); err != nil {
			log.Error(ctx, "run migrations", "error", err)
			os.Exit(1)
		}
		events, snaps, audits = repository.NewEventRepo(db), repository.NewSnapshotRepo(db), repository.NewAuditRepo(db)
	}

	// Audit events go to RabbitMQ only when a broker is configured.  The
	// publisher stays a nil interface otherwise.
	var pub audit.Publisher
	if cfg.RabbitURL != "" {
		pub = queue_publisher.New(cfg.RabbitURL)
		if cfg.AuditConsumer {
			go func() {
				if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.AuditLogDir, log); err != nil && !errors.Is(err, context.Canceled) {
					log.Error(ctx, "audit consumer stopped", "error", err)
				}
			}()
		}
	}

	clk := clock.Real{}
	ids := utils.UUIDGenerator{}
	recorder := audit.NewRecorder(audits, pub, clk, log)

	counter := version.NewCounter(events, clk)
	locks := lock.NewManager(events, clk, recorder, lock.Options{
		MinTTL:    cfg.LockMinTTL,
		MaxTTL:    cfg.LockMaxTTL,
		OwnerOnly: cfg.LockOwnerOnly,
	})
	seats := seating.NewEngine(counter, clk, recorder)
	snapshots := snapshot.NewManager(counter, snaps, clk, ids, recorder, cfg.SnapshotListLimit)
	editor := planner.NewEditor(events, counter, snapshots, clk, ids, recorder)

	// Redis backs rate limiting and the snapshot cache; both degrade to
	// pass-through when it is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn(ctx, "redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	router.RegisterRoutes(e, log) // Register global middleware and health check
	router.RegisterEvents(e, handler.NewEventHandler(editor, locks, seats, snapshots, clk, log),
		cfg.JWTSecret, rdb, config.LoadRateLimitConfig(), config.LoadCacheConfig(), log)

	addr := ":" + cfg.Port // Address string with port
	go func() {
		log.Info(ctx, "listening", "addr", addr, "env", cfg.Env, "storage", cfg.Storage)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown", "error", err)
	}
	log.Info(shutdownCtx, "server stopped")
}
