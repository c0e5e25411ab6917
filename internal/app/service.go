// Package service wires the stores, domain components and notification
// outlets into the HTTP API and runs their background loops.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/http/api"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/queue"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/mq/worker"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/notify"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/dynamostore"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/middleware"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/repository/sqlstore"
	"github.com/poio911/futbol-app-pwa-sub004/internal/adapters/storage"
	"github.com/poio911/futbol-app-pwa-sub004/internal/config"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/balancer"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/dedupe"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/evaluation"
	"github.com/poio911/futbol-app-pwa-sub004/internal/domain/matches"
	"github.com/poio911/futbol-app-pwa-sub004/internal/i18n"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/logger"
	"github.com/poio911/futbol-app-pwa-sub004/pkg/metrics"
)

// Lifecycle and construction errors.
var (
	ErrUnknownDriver = errors.New("unknown store driver")
	ErrStopped       = errors.New("service stopped")
)

const mqttDisconnectQuiesce = 250 // milliseconds

// Service owns every long-lived component of the process.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	// Store stack: backing <- instrumented <- offline (player writes only)
	backing      repository.Store
	backend      string
	instrumented *middleware.Instrumented
	offline      *middleware.Offline

	writeQueue *queue.InMemoryQueue
	replayPool *worker.Pool

	hub        *notify.Hub
	sinks      notify.Multi
	extraSinks []notify.Sink
	closers    []func() error

	coordinator *evaluation.Coordinator
	matches     *matches.Manager
	photos      *storage.PhotoStore
	deduper     dedupe.Deduper
	api         *api.Server

	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New builds the service from cfg. It opens the store and connects the
// optional notification outlets but starts no goroutines.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	catalog, err := i18n.Load(cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("load translations: %w", err)
	}
	loc := catalog.Locale(cfg.Language)

	if s.backing == nil {
		s.backing, s.backend, err = openStore(ctx, cfg.Store, s.logger)
		if err != nil {
			return nil, err
		}
	}
	s.instrumented = middleware.NewInstrumented(s.backing, s.backend, s.logger)

	s.writeQueue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.Offline.QueueSize))
	s.offline = middleware.NewOffline(s.instrumented, s.writeQueue, s.logger)
	s.replayPool = worker.NewPool(cfg.Offline.Workers, s.writeQueue, s.offline,
		worker.WithLogger(s.logger),
		worker.WithMaxAttempts(cfg.Offline.MaxAttempts),
		worker.WithBackoff(cfg.Offline.Backoff),
		worker.WithRetryIf(repository.IsTransient),
	)

	s.hub = notify.NewHub(s.logger)
	s.sinks = notify.Multi{notify.NewLogSink(s.logger), s.hub}
	s.connectSinks(cfg.Notify)
	s.sinks = append(s.sinks, s.extraSinks...)

	s.coordinator = evaluation.New(s.instrumented, s.sinks,
		evaluation.WithLogger(s.logger),
		evaluation.WithLocalizer(loc),
		evaluation.WithDeadline(cfg.Evaluation.Deadline),
		evaluation.WithThreshold(cfg.Evaluation.Threshold),
		evaluation.WithTargetsPerEvaluator(cfg.Evaluation.TargetsPerEvaluator),
		evaluation.WithClaimTimeout(cfg.Evaluation.ClaimTimeout),
	)
	s.matches = matches.New(s.instrumented, balancer.New(), s.coordinator,
		matches.WithLogger(s.logger),
		matches.WithNotifier(s.sinks),
		matches.WithLocalizer(loc),
	)

	deps := api.Deps{
		Players:     s.offline,
		Matches:     s.matches,
		Evaluations: s.coordinator,
		Feed:        s.hub,
		Stats:       s,
		Catalog:     catalog,
	}
	if cfg.Photos.Bucket != "" {
		s.photos, err = storage.New(ctx, storage.Config{
			Endpoint:        cfg.Photos.Endpoint,
			Region:          cfg.Photos.Region,
			Bucket:          cfg.Photos.Bucket,
			AccessKeyID:     cfg.Photos.AccessKeyID,
			SecretAccessKey: cfg.Photos.SecretAccessKey,
			PublicBaseURL:   cfg.Photos.PublicBaseURL,
		}, s.logger)
		if err != nil {
			s.closeResources()
			return nil, fmt.Errorf("photo storage: %w", err)
		}
		deps.Photos = s.photos
	}

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(cfg.HTTP.IdempotencySize),
		dedupe.WithTTL(cfg.HTTP.IdempotencyTTL),
	)
	deps.Deduper = s.deduper

	s.api = api.NewServer(deps,
		api.WithLogger(s.logger),
		api.WithJWTSecret(cfg.HTTP.JWTSecret),
		api.WithCORSOrigins(cfg.HTTP.CORSOrigins),
		api.WithMaxRankingLimit(cfg.HTTP.MaxRankingLimit),
		api.WithSubmitLimit(cfg.HTTP.SubmitRate, cfg.HTTP.SubmitBurst),
	)
	return s, nil
}

func openStore(ctx context.Context, cfg config.StoreConfig, l logger.Logger) (repository.Store, string, error) {
	switch cfg.Driver {
	case "", config.DriverMemory:
		return repository.NewMemStore(ctx), config.DriverMemory, nil
	case config.DriverSQLite, config.DriverPostgres:
		driver := sqlstore.DriverSQLite
		if cfg.Driver == config.DriverPostgres {
			driver = sqlstore.DriverPostgres
		}
		store, err := sqlstore.Open(ctx, driver, cfg.DSN,
			sqlstore.WithLogger(l),
			sqlstore.WithMaxRetries(cfg.MaxRetries))
		if err != nil {
			return nil, "", fmt.Errorf("open %s store: %w", cfg.Driver, err)
		}
		return store, cfg.Driver, nil
	case config.DriverDynamoDB:
		loadOpts := []func(*awsconfig.LoadOptions) error{}
		if cfg.DynamoRegion != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.DynamoRegion))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, "", fmt.Errorf("load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoEndpoint)
			}
		})
		return dynamostore.New(client, cfg.DynamoTablePrefix,
			dynamostore.WithLogger(l),
			dynamostore.WithMaxRetries(cfg.MaxRetries)), config.DriverDynamoDB, nil
	}
	return nil, "", fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

// connectSinks dials the configured brokers. An outlet that cannot connect
// is skipped; notifications are best effort.
func (s *Service) connectSinks(cfg config.NotifyConfig) {
	ctx := context.Background()
	if cfg.AMQPURL != "" {
		sink, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, s.logger)
		if err != nil {
			s.logger.Warn(ctx, "amqp outlet disabled", logger.Error(err))
		} else {
			s.sinks = append(s.sinks, sink)
			s.closers = append(s.closers, sink.Close)
		}
	}
	if cfg.MQTTBroker != "" {
		sink, client, err := notify.ConnectMQTT(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTUsername, cfg.MQTTPassword, s.logger)
		if err != nil {
			s.logger.Warn(ctx, "mqtt outlet disabled", logger.Error(err))
		} else {
			s.sinks = append(s.sinks, sink)
			s.closers = append(s.closers, func() error {
				client.Disconnect(mqttDisconnectQuiesce)
				return nil
			})
		}
	}
	if cfg.DiscordToken != "" {
		dg, err := notify.OpenDiscord(cfg.DiscordToken)
		if err != nil {
			s.logger.Warn(ctx, "discord outlet disabled", logger.Error(err))
		} else {
			s.sinks = append(s.sinks, notify.NewDiscordSink(dg, cfg.DiscordChannel, cfg.DiscordChannels, s.logger))
			s.closers = append(s.closers, dg.Close)
		}
	}
}

// Start runs the replay workers, the live feed and the evaluation sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.replayPool.Start(runCtx)
	metrics.UpdateQueueCapacity(s.cfg.Offline.QueueSize)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.hub.Run(runCtx)
	}()
	go func() {
		defer s.wg.Done()
		s.sweepLoop(runCtx)
	}()

	s.started = true
	s.logger.Info(ctx, "futbol service started",
		logger.String("store", s.backend),
		logger.Int("replayWorkers", s.cfg.Offline.Workers),
		logger.Duration("sweepInterval", s.cfg.Evaluation.SweepInterval),
		logger.Bool("photos", s.photos != nil),
		logger.Int("outlets", len(s.sinks)),
	)
	return nil
}

func (s *Service) sweepLoop(ctx context.Context) {
	if s.cfg.Evaluation.SweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.Evaluation.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep closes overdue evaluation rounds and retries recalculations that
// stalled after reaching the threshold.
func (s *Service) Sweep(ctx context.Context) (expired, recalculated int) {
	expired, err := s.coordinator.CleanupExpiredEvaluations(ctx)
	if err != nil {
		s.logger.Error(ctx, "evaluation cleanup failed", logger.Error(err))
		metrics.RecordErrorByComponent("sweep", "cleanup")
	}
	recalculated, err = s.coordinator.RetryPendingRecalculations(ctx)
	if err != nil {
		s.logger.Error(ctx, "recalculation retry failed", logger.Error(err))
		metrics.RecordErrorByComponent("sweep", "recalculate")
	}
	if expired > 0 || recalculated > 0 {
		s.logger.Info(ctx, "evaluation sweep",
			logger.Int("expired", expired),
			logger.Int("recalculated", recalculated))
	}
	return expired, recalculated
}

// Stop drains the replay queue, stops the background loops and releases
// the store and broker connections. It is safe to call more than once.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return nil
	}
	s.stopped = true
	s.logger.Info(ctx, "stopping futbol service...")

	var errs []error
	if s.started {
		if err := s.replayPool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("replay workers: %w", err))
		}
		s.cancel()
		s.wg.Wait()
	} else {
		_ = s.writeQueue.Close()
	}
	if err := s.closeResources(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "futbol service stopped")
	return errors.Join(errs...)
}

func (s *Service) closeResources() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	if s.instrumented != nil {
		if err := s.instrumented.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	} else if s.backing != nil {
		if err := s.backing.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	return s.api.Handler()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats(ctx context.Context) map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queueLen := s.writeQueue.Len(ctx)
	metrics.UpdateQueueSize(queueLen)

	stats := map[string]interface{}{
		"started":       s.started,
		"store":         s.backend,
		"replayWorkers": s.cfg.Offline.Workers,
		"queueCapacity": s.cfg.Offline.QueueSize,
		"queueLength":   queueLen,
		"dedupeSize":    s.deduper.Size(),
		"photos":        s.photos != nil,
		"outlets":       len(s.sinks),
	}
	if st, err := s.instrumented.Stats(ctx); err != nil {
		s.logger.Warn(ctx, "store stats unavailable", logger.Error(err))
	} else {
		stats["players"] = st.Players
		stats["matches"] = st.Matches
		stats["evaluations"] = st.Evaluations
		stats["pendingEvaluations"] = st.PendingEvaluations
	}
	return stats
}
