/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/salahatech/KFSH-Ordering-sub001/internal/api"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/audit"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/batching"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/cache"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/capacity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/catalog"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/clock"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/config"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/db"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/events"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/eventbus"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/expiry"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/export"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/integrity"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/leadership"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/orders"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/outbox"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/reservation"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/scheduling"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/storage"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/telemetry"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/version"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/webhooks"
	"github.com/salahatech/KFSH-Ordering-sub001/internal/windowgen"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error
	nodeID     string

	db          *gorm.DB
	redis       *redis.Client
	nats        *nats.Conn
	cache       *cache.Cache
	bus         events.Broker
	svc         *scheduling.Service
	sweeper     *expiry.Sweeper
	leaderAware *expiry.LeaderAware
	deliverer   *outbox.Deliverer
	auditSvc    *audit.Service
	api         *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server, wires dependencies and starts background workers.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	srv, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("kfsh-scheduler-api"))
	router.Use(telemetry.MetricsMiddleware)
	// The events websocket is long lived; everything else gets a deadline.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})
	srv.router = router

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:              addr,
		Handler:           srv.router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket feed; the middleware
		// timeout covers ordinary routes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

// Open wires the database and domain services without serving HTTP or
// starting workers. The CLI maintenance commands use it directly.
func Open(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	srv := &Server{cfg: cfg, logger: logger}
	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}
	return srv, nil
}

// Service returns the scheduling service.
func (s *Server) Service() *scheduling.Service {
	return s.svc
}

// Deliverer returns the outbox deliverer, or nil when no sink is configured.
func (s *Server) Deliverer() *outbox.Deliverer {
	return s.deliverer
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })
	if err := db.Migrate(database); err != nil {
		return err
	}

	products, err := catalog.LoadFile(s.cfg.ProductCatalog, s.cfg.PlannerBuffer)
	if err != nil {
		return err
	}

	if s.cfg.CacheEnabled || s.cfg.LeaderElectionEnabled || s.cfg.EventBus == config.EventBusRedis {
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		s.redis = eventbus.NewRedisClient(redisCfg)
		s.DeferClose(func() error { return s.redis.Close() })
	}

	if err := s.initEventBus(); err != nil {
		return err
	}

	if s.cfg.CacheEnabled {
		s.cache = cache.New(s.redis, cache.DefaultConfig(), s.logger)
	}

	clk := clock.NewSystem()
	loc := s.cfg.Location
	windows := capacity.NewStore(database, s.logger)
	ledger := reservation.NewLedger(database, windows, s.logger,
		reservation.WithClock(clk),
		reservation.WithLocation(loc),
		reservation.WithScope(s.cfg.ReservationScope),
		reservation.WithNumberPrefix(s.cfg.ReservationPrefix),
	)
	orderStore := orders.NewStore(database)

	s.sweeper = expiry.NewSweeper(ledger, clk, s.bus, expiry.Config{
		Grace:     s.cfg.ExpiryGrace,
		Interval:  s.cfg.ExpiryInterval,
		BatchSize: s.cfg.ExpiryBatchSize,
		Location:  loc,
	}, s.logger)

	if s.cfg.LeaderElectionEnabled {
		electionCfg := leadership.DefaultConfig()
		electionCfg.ElectionKey = "kfsh:leader:expiry"
		electionCfg.InstanceID = s.instanceID()
		election, err := leadership.NewElection(s.redis, electionCfg, s.logger)
		if err != nil {
			return fmt.Errorf("create leader election: %w", err)
		}
		s.leaderAware = expiry.NewLeaderAware(s.sweeper, election, s.logger)
		s.DeferClose(func() error { return s.leaderAware.Stop() })
		s.logger.Info().
			Str("redis_addr", s.cfg.RedisAddr).
			Str("instance_id", electionCfg.InstanceID).
			Msg("leader election enabled for expiry sweep")
	}

	exporter, err := s.initExporter(clk)
	if err != nil {
		return err
	}

	s.svc = scheduling.New(scheduling.Deps{
		DB:        database,
		Windows:   windows,
		Ledger:    ledger,
		Orders:    orderStore,
		Catalog:   products,
		Planner:   batching.NewPlanner(orderStore, products, windows, clk, loc, batching.Anchor(s.cfg.PlannerAnchor), s.logger),
		Generator: windowgen.New(loc, s.cfg.WeekendDays),
		Sweeper:   s.sweeper,
		Integrity: integrity.NewService(database, windows, s.logger),
		Exporter:  exporter,
		Cache:     s.cache,
		Bus:       s.bus,
		Clock:     clk,
		Location:  loc,
	}, s.logger)

	if sink := s.orderRequestSink(); sink != nil {
		s.deliverer = outbox.NewDeliverer(outbox.NewStore(database), sink, clk, outbox.DelivererConfig{
			Interval: s.cfg.OutboxInterval,
		}, s.logger)
	} else {
		s.logger.Warn().Msg("no order-creation sink configured, order requests stay pending in the outbox")
	}

	s.auditSvc = audit.NewService(database, s.bus, s.logger)
	s.api = api.New(s.svc, database, []byte(s.cfg.JWTSigningKey), s.bus, s.auditSvc, s.logger)
	return nil
}

func (s *Server) instanceID() string {
	if s.nodeID == "" {
		s.nodeID = s.cfg.InstanceID
		if s.nodeID == "" {
			s.nodeID = uuid.NewString()
		}
	}
	return s.nodeID
}

func (s *Server) initEventBus() error {
	switch s.cfg.EventBus {
	case config.EventBusRedis:
		bus := eventbus.NewRedisBus(s.redis, s.instanceID(), eventbus.DefaultRedisConfig().MaxFailures, s.logger)
		s.bus = bus
		s.DeferClose(bus.Close)
	case config.EventBusNATS:
		conn, err := s.natsConn()
		if err != nil {
			return err
		}
		bus := eventbus.NewNATSBus(conn, s.instanceID(), s.logger)
		s.bus = bus
		s.DeferClose(bus.Close)
	default:
		s.bus = events.NewBus()
	}
	s.logger.Info().Str("event_bus", s.cfg.EventBus).Msg("event bus ready")
	return nil
}

func (s *Server) natsConn() (*nats.Conn, error) {
	if s.nats != nil {
		return s.nats, nil
	}
	natsCfg := eventbus.DefaultNATSConfig()
	natsCfg.URL = s.cfg.NATSURL
	conn, err := eventbus.Connect(natsCfg, s.logger)
	if err != nil {
		return nil, err
	}
	s.nats = conn
	s.DeferClose(func() error { conn.Close(); return nil })
	return conn, nil
}

// orderRequestSink prefers the webhook, then NATS. Nil means no delivery.
func (s *Server) orderRequestSink() outbox.Sink {
	if s.cfg.OrderWebhookURL != "" {
		return webhooks.NewSink(s.cfg.OrderWebhookURL, s.cfg.OrderWebhookSecret, s.logger)
	}
	if s.cfg.NATSURL == "" {
		return nil
	}
	conn, err := s.natsConn()
	if err != nil {
		s.logger.Warn().Err(err).Str("url", s.cfg.NATSURL).Msg("nats unavailable for order-creation requests")
		return nil
	}
	return outbox.NewNATSSink(conn, s.cfg.OrderRequestSubject)
}

func (s *Server) initExporter(clk clock.Clock) (*export.Exporter, error) {
	if s.cfg.S3Bucket != "" {
		s3Cfg := storage.S3Config{
			Bucket:          s.cfg.S3Bucket,
			Region:          s.cfg.S3Region,
			Endpoint:        s.cfg.S3Endpoint,
			UsePathStyle:    s.cfg.S3UsePathStyle,
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
		}
		client, err := storage.NewS3Client(context.Background(), s3Cfg)
		if err != nil {
			return nil, err
		}
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("calendar exports go to S3")
		return export.NewExporter(storage.NewS3Store(client, s3Cfg, s.logger), clk, s.logger), nil
	}

	if s.cfg.ExportDir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(s.cfg.ExportDir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory %s: %w", s.cfg.ExportDir, err)
	}
	fs := storage.NewFilesystemStore(s.cfg.ExportDir, s.logger)
	if err := fs.CheckAccess(); err != nil {
		return nil, err
	}
	s.logger.Info().Str("path", s.cfg.ExportDir).Msg("calendar exports go to the filesystem")
	return export.NewExporter(fs, clk, s.logger), nil
}

// HTTPServer exposes the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases resources in reverse order of acquisition.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()

	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// DeferClose registers a function to run on Close.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.leaderAware != nil {
		if err := s.leaderAware.Start(ctx); err != nil {
			s.logger.Error().Err(err).Msg("leader-aware sweep failed to start")
		}
	} else if s.sweeper != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error().Err(err).Msg("expiry sweep loop exited")
			}
		}()
	}

	if s.deliverer != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.deliverer.Run(ctx)
		}()
	}

	if s.auditSvc != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.auditSvc.Start(ctx)
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.cache.Listen(ctx, s.bus)
		}()
	}

	if s.db != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db)
				}
			}
		}()
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Leader   *bool        `json:"leader,omitempty"`
	Build    version.Info `json:"build"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok", Build: version.Get()}
	status := http.StatusOK

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := pingDB(ctx, s.db); err != nil {
		s.logger.Warn().Err(err).Msg("health check database ping failed")
		resp.Status = "degraded"
		resp.Database = "unreachable"
		status = http.StatusServiceUnavailable
	}

	if s.leaderAware != nil {
		leader := s.leaderAware.IsLeader()
		resp.Leader = &leader
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

func pingDB(ctx context.Context, database *gorm.DB) error {
	if database == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := database.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", telemetry.Handler())
	}
	s.api.Routes(s.router)
}
