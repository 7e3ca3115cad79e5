// Package service wires the pieces together: stored bars are run through the
// indicator engine on a schedule (or on demand), and the resulting snapshots
// are persisted, cached, broadcast, and alerted on.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"stockpulse/config"
	"stockpulse/internal/api"
	"stockpulse/internal/gateway"
	"stockpulse/internal/logger"
	"stockpulse/internal/markethours"
	"stockpulse/internal/metrics"
	"stockpulse/internal/model"
	"stockpulse/internal/notification"
	"stockpulse/internal/store/redis"
	"stockpulse/internal/store/sqlite"
	"stockpulse/internal/technical"
)

// Service is the top-level orchestrator.
type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	symbols []string

	store    *sqlite.Store
	cache    *redis.Cache // nil when Redis is unreachable at startup
	hub      *gateway.Hub // nil when cache is nil
	engine   *technical.Engine
	met      *metrics.Metrics
	health   *metrics.HealthStatus
	metSrv   *metrics.Server
	apiSrv   *api.Server
	notifier notification.Notifier
	sched    *cron.Cron

	biasMu   sync.Mutex
	lastBias map[string]model.Signal
}

// New builds the service from configuration. SQLite is required; Redis is
// optional — without it the cache, PubSub fan-out, and WebSocket stream are
// disabled but scheduled computation and the REST API keep working.
func New(cfg *config.Config) (*Service, error) {
	lg := logger.Init("stockpulse", logger.ParseLevel(cfg.LogLevel))

	store, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	met := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	symbols := cfg.ParseSymbols()
	health.SetSymbols(symbols)

	s := &Service{
		cfg:      cfg,
		log:      lg,
		symbols:  symbols,
		store:    store,
		engine:   technical.NewEngine(lg),
		met:      met,
		health:   health,
		lastBias: make(map[string]model.Signal),
	}

	cache, err := redis.New(redis.Config{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		OnBreakerChange: func(state int) {
			met.RedisBreakerState.Set(float64(state))
			if state == redis.BreakerOpen {
				met.RedisBreakerTrips.Inc()
				lg.Warn("redis breaker opened", "addr", cfg.RedisAddr)
			}
		},
	})
	if err != nil {
		lg.Warn("redis unavailable, running without cache", "addr", cfg.RedisAddr, "err", err)
	} else {
		s.cache = cache
		s.hub = gateway.NewHub(cache.Client(), met)
	}

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		s.notifier = notification.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		lg.Info("telegram notifier enabled")
	} else {
		s.notifier = notification.NewLogNotifier()
	}

	s.metSrv = metrics.NewServer(cfg.MetricsAddr, health)
	s.apiSrv = api.New(cfg.APIAddr, store, s.cache, s.hub, met, health, s)

	s.sched = cron.New(cron.WithSeconds(), cron.WithLocation(markethours.IST))
	if _, err := s.sched.AddFunc(cfg.RefreshCron, s.scheduledRefresh); err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid refresh cron %q: %w", cfg.RefreshCron, err)
	}

	return s, nil
}

// Run starts all components and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	var rdb *goredis.Client
	if s.cache != nil {
		rdb = s.cache.Client()
		go s.hub.Run(ctx)
	}
	s.health.StartLivenessChecker(ctx, rdb, s.store.DB(), 15*time.Second)

	s.metSrv.Start()
	s.apiSrv.Start()
	s.sched.Start()

	s.log.Info("service started",
		"symbols", s.symbols,
		"api", s.cfg.APIAddr,
		"metrics", s.cfg.MetricsAddr,
		"cron", s.cfg.RefreshCron,
		"cache", s.cache != nil)

	// Warm the caches from whatever bars are already stored.
	s.refreshAll(ctx)

	<-ctx.Done()
	s.shutdown()
	return ctx.Err()
}

func (s *Service) shutdown() {
	s.log.Info("shutting down")

	cronCtx := s.sched.Stop()
	<-cronCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.apiSrv.Stop(ctx)
	s.metSrv.Stop(ctx)

	if s.cache != nil {
		s.cache.Close()
	}
	if err := s.store.Close(); err != nil {
		s.log.Error("sqlite close failed", "err", err)
	}
}

// scheduledRefresh is the cron entry point. The cron spec fires on weekdays;
// exchange holidays are filtered here against the NSE calendar.
func (s *Service) scheduledRefresh() {
	now := time.Now()
	if !markethours.IsTradingDay(now) {
		s.log.Info("skipping refresh, not a trading day", "date", now.In(markethours.IST).Format("2006-01-02"))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	s.refreshAll(ctx)
}

func (s *Service) refreshAll(ctx context.Context) {
	start := time.Now()
	var failed int
	for _, sym := range s.symbols {
		if err := s.RefreshSymbol(ctx, sym); err != nil {
			failed++
			s.log.Error("refresh failed", "symbol", sym, "err", err)
		}
	}
	s.health.SetLastRefresh(time.Now())
	s.log.Info("refresh cycle complete",
		"symbols", len(s.symbols),
		"failed", failed,
		"took", time.Since(start).Round(time.Millisecond).String())
}

// RefreshSymbol recomputes the technical snapshot for one symbol from its
// stored bars, then persists, caches, publishes, and checks for a bias flip.
func (s *Service) RefreshSymbol(ctx context.Context, symbol string) error {
	series, err := s.store.ReadBars(ctx, symbol)
	if err != nil {
		s.met.RefreshErrors.WithLabelValues("read").Inc()
		return fmt.Errorf("read bars for %s: %w", symbol, err)
	}

	computeStart := time.Now()
	snap := s.engine.Compute(symbol, series)
	s.met.ComputeDur.Observe(time.Since(computeStart).Seconds())
	s.met.SnapshotsComputed.Inc()
	if snap.IsEmpty() {
		s.met.EmptySnapshots.Inc()
	}
	for _, e := range snap.Entries {
		s.met.IndicatorsEmitted.WithLabelValues(e.Name).Inc()
	}

	if err := s.store.SaveSnapshot(ctx, &snap); err != nil {
		s.met.RefreshErrors.WithLabelValues("persist").Inc()
		return fmt.Errorf("persist snapshot for %s: %w", symbol, err)
	}

	if s.cache != nil {
		if err := s.cache.SetLatest(ctx, &snap, s.cfg.SnapshotTTL); err != nil {
			s.met.RefreshErrors.WithLabelValues("cache").Inc()
			s.log.Warn("cache write failed", "symbol", symbol, "err", err)
			// PubSub rode the same pipeline; push to connected WS clients
			// directly so they are not starved while the breaker is open.
			if errors.Is(err, redis.ErrBreakerOpen) && s.hub != nil {
				s.hub.Publish(symbol, snap.JSON())
			}
		}
	}

	s.checkBiasFlip(&snap)

	s.log.Info("snapshot refreshed",
		"symbol", symbol,
		"bars", len(series),
		"indicators", len(snap.Entries),
		"bias", string(snap.Bias()))
	return nil
}

// checkBiasFlip alerts when a symbol's aggregate bias changes between
// consecutive non-empty snapshots.
func (s *Service) checkBiasFlip(snap *model.Snapshot) {
	if snap.IsEmpty() {
		return
	}
	cur := snap.Bias()

	s.biasMu.Lock()
	prev, seen := s.lastBias[snap.Symbol]
	s.lastBias[snap.Symbol] = cur
	s.biasMu.Unlock()

	if !seen || prev == cur {
		return
	}

	alert := notification.Alert{
		Level:  notification.AlertInfo,
		Symbol: snap.Symbol,
		Title:  fmt.Sprintf("bias flip: %s to %s", prev, cur),
		Message: fmt.Sprintf("As of %s. Indicators: %s",
			snap.AsOf.Format("2006-01-02"), string(snap.Indicators())),
	}
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.Send(sendCtx, alert); err != nil {
			s.log.Error("alert delivery failed", "symbol", snap.Symbol, "err", err)
		}
	}()
}
