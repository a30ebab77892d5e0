package keyset

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/FuhengZhao/foundationdb/observe"
)

// DefaultRefreshInterval is the key source polling interval when none is
// configured.
const DefaultRefreshInterval = 30 * time.Second

// ErrNoSource indicates a Store was created without a key source.
var ErrNoSource = errors.New("keyset: no source configured")

// StoreConfig configures the key store.
type StoreConfig struct {
	// Source is the external key document location. Required.
	Source Source

	// RefreshInterval is the polling interval for Run.
	// Default: DefaultRefreshInterval.
	RefreshInterval time.Duration

	// Logger receives operational diagnostics. Optional.
	Logger observe.Logger

	// Metrics records refresh outcomes. Optional.
	Metrics observe.Metrics
}

// Store holds the active KeySet and keeps it fresh.
//
// Request paths call Current and only ever see an immutable snapshot obtained
// through an atomic pointer read; refresh runs on its own timer and swaps the
// pointer on full success. Concurrent explicit refreshes are coalesced.
type Store struct {
	cfg     StoreConfig
	log     observe.Logger
	metrics observe.Metrics

	current atomic.Pointer[KeySet]
	sf      singleflight.Group
}

// NewStore creates a key store. Call Load before serving to populate the
// first snapshot, then Run to keep it refreshed.
func NewStore(cfg StoreConfig) (*Store, error) {
	if cfg.Source == nil {
		return nil, ErrNoSource
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NopMetrics()
	}

	s := &Store{
		cfg:     cfg,
		log:     cfg.Logger.WithComponent("keyset"),
		metrics: cfg.Metrics,
	}
	s.current.Store(newKeySet(nil))
	return s, nil
}

// Current returns the active KeySet snapshot. Never nil, never an
// interleaving of two sets; lock-free.
func (s *Store) Current() *KeySet {
	return s.current.Load()
}

// Load performs the initial fetch. Unlike the periodic refresh, a failure
// here is returned to the caller: starting with an empty trust set is a
// deployment decision, not a silent default.
func (s *Store) Load(ctx context.Context) error {
	return s.Refresh(ctx)
}

// Refresh fetches and parses the key document, swapping in the new KeySet
// only if the whole document parses. On failure the prior set stays active.
// Concurrent calls share one fetch.
func (s *Store) Refresh(ctx context.Context) error {
	_, err, _ := s.sf.Do("refresh", func() (any, error) {
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Store) refresh(ctx context.Context) error {
	data, err := s.cfg.Source.Fetch(ctx)
	if err != nil {
		s.metrics.RecordKeyRefresh(ctx, 0, err)
		return err
	}

	ks, err := ParseKeySet(data)
	if err != nil {
		s.metrics.RecordKeyRefresh(ctx, 0, err)
		return err
	}

	prev := s.current.Swap(ks)
	s.metrics.RecordKeyRefresh(ctx, ks.Len(), nil)
	if prev == nil || !sameKIDs(prev, ks) {
		s.log.Info(ctx, "key set updated",
			observe.Field{Key: "keys", Value: ks.Len()},
			observe.Field{Key: "kids", Value: ks.KIDs()},
		)
	}
	return nil
}

// Run polls the source on the configured interval until ctx is canceled.
// Failures keep the prior KeySet and are retried on the next tick; they are
// logged, never propagated to request handling.
func (s *Store) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				s.log.Warn(ctx, "key refresh failed",
					observe.Field{Key: "error", Value: err.Error()},
				)
			}
		}
	}
}

func sameKIDs(a, b *KeySet) bool {
	if a.Len() != b.Len() {
		return false
	}
	for _, kid := range a.KIDs() {
		if _, ok := b.Lookup(kid); !ok {
			return false
		}
	}
	return true
}
