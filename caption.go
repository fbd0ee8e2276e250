package caption

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Jamesmini007/AX2-Caption/backend"
	"github.com/Jamesmini007/AX2-Caption/plugin"
	"github.com/Jamesmini007/AX2-Caption/store"
)

// Session identifies the caller of every user-facing operation. Signed-in and
// anonymous use of the same account keep fully separate credit pools.
type Session struct {
	AccountID string
	SignedIn  bool
}

// Service is the main translation front-end engine: credit ledger, free trial
// gate, storage policy, and the job lifecycle state machine.
type Service struct {
	store   store.Store
	backend backend.TranslationBackend
	blobs   backend.BlobStore
	plugins *plugin.Registry
	logger  *slog.Logger

	// Per-account locks serializing all ledger mutations
	lockMu sync.Mutex
	locks  map[string]*sync.Mutex

	// Live job runners, keyed by job ID
	runMu   sync.Mutex
	runners map[string]*runner

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	sweepInterval    time.Duration
	stageTimeout     time.Duration
	translateWorkers int
}

// New creates a new Service instance.
func New(s store.Store, opts ...Option) *Service {
	svc := &Service{
		store:            s,
		backend:          &backend.Simulator{},
		blobs:            backend.NewMemoryBlobStore(),
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		locks:            make(map[string]*sync.Mutex),
		runners:          make(map[string]*runner),
		stopChan:         make(chan struct{}),
		sweepInterval:    time.Hour,
		stageTimeout:     10 * time.Minute,
		translateWorkers: 2,
	}

	for _, opt := range opts {
		opt(svc)
	}

	return svc
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
		s.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Service) {
		_ = s.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithBackend sets the translation pipeline implementation.
func WithBackend(b backend.TranslationBackend) Option {
	return func(s *Service) {
		s.backend = b
	}
}

// WithBlobStore sets the media blob store.
func WithBlobStore(b backend.BlobStore) Option {
	return func(s *Service) {
		s.blobs = b
	}
}

// WithSweepInterval sets how often expired artifacts are swept.
func WithSweepInterval(d time.Duration) Option {
	return func(s *Service) {
		s.sweepInterval = d
	}
}

// WithStageTimeout bounds each pipeline stage of a running job.
func WithStageTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.stageTimeout = d
	}
}

// WithTranslateWorkers bounds the translation fan-out per job.
func WithTranslateWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.translateWorkers = n
		}
	}
}

// Start begins background workers.
func (s *Service) Start(ctx context.Context) error {
	// Migrate database
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	// Initialize plugins
	s.plugins.EmitInit(ctx, s)

	// Evict anything that lapsed while the service was down; the worker
	// only fires after a full interval.
	if _, err := s.SweepExpiredArtifacts(ctx); err != nil {
		s.logger.Error("startup artifact sweep failed", "error", err)
	}

	// Start artifact expiry sweeper
	s.wg.Add(1)
	go s.sweepWorker(ctx)

	s.logger.Info("caption service started",
		"sweep_interval", s.sweepInterval,
		"stage_timeout", s.stageTimeout,
	)

	return nil
}

// Stop shuts down the Service. Running jobs are cancelled and their
// reservations refunded before the store is closed.
func (s *Service) Stop() error {
	close(s.stopChan)

	s.runMu.Lock()
	for _, r := range s.runners {
		r.cancel()
	}
	s.runMu.Unlock()

	s.wg.Wait()

	ctx := context.Background()
	s.plugins.EmitShutdown(ctx)

	return s.store.Close()
}

// sweepWorker periodically evicts expired artifacts.
func (s *Service) sweepWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.SweepExpiredArtifacts(ctx); err != nil {
				s.logger.Error("artifact sweep failed", "error", err)
			}
		}
	}
}

// accountLock returns the mutex serializing mutations for one account.
// All balance, reservation, and trial writes happen under this lock so two
// concurrent requests can never double-grant or double-spend.
func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()

	mu, ok := s.locks[accountID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[accountID] = mu
	}
	return mu
}
