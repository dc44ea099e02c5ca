package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/validator-dashboard/internal/circuitbreaker"
	"github.com/validator-dashboard/internal/logging"
	"github.com/validator-dashboard/internal/metrics"
	"github.com/validator-dashboard/internal/models"
	"github.com/validator-dashboard/internal/overlay"
	"github.com/validator-dashboard/internal/policy"
	"github.com/validator-dashboard/internal/retry"
	"github.com/validator-dashboard/internal/rollup"
	"github.com/validator-dashboard/internal/timerange"
	"github.com/validator-dashboard/internal/types"
	"github.com/validator-dashboard/internal/valuation"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/validator-dashboard/internal/errors"
)

// fanOutLimit bounds concurrent per-network queries
const fanOutLimit = 4

// SnapshotStore defines the snapshot queries the dashboard needs
type SnapshotStore interface {
	History(ctx context.Context, network string, since time.Time) ([]models.Snapshot, error)
	Latest(ctx context.Context, network string) (*models.Snapshot, error)
	LatestPerValidator(ctx context.Context, network string) ([]models.Snapshot, error)
	AggregateHistory(ctx context.Context, since time.Time) ([]models.AggregateTotals, error)
	AggregateLatest(ctx context.Context) (*models.AggregateTotals, error)
}

// HistoryCache caches history rows keyed by network and resolved start
type HistoryCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	HistoryKey(network string, since time.Time) string
	AggregateKey(since time.Time) string
}

// DashboardService answers dashboard queries by reading snapshots and
// running them through the valuation, rollup and overlay engine
type DashboardService struct {
	store    SnapshotStore
	cache    HistoryCache
	registry *policy.Registry
	resolver *timerange.Resolver
	logger   *logging.Logger
	retry    retry.Config
}

// NewDashboardService creates a new dashboard service. cache may be nil.
func NewDashboardService(
	store SnapshotStore,
	cache HistoryCache,
	registry *policy.Registry,
	resolver *timerange.Resolver,
	logger *logging.Logger,
) *DashboardService {
	if registry == nil {
		registry = policy.DefaultRegistry()
	}
	if resolver == nil {
		resolver = timerange.NewResolver(nil, nil)
	}
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &DashboardService{
		store:    store,
		cache:    cache,
		registry: registry,
		resolver: resolver,
		logger:   logger.WithField(logging.FieldComponent, "dashboard_service"),
		retry:    retry.DefaultConfig(),
	}
}

// HistoryResult is a network's snapshot history from a resolved start
type HistoryResult struct {
	Network   string            `json:"network"`
	Since     time.Time         `json:"since"`
	Snapshots []models.Snapshot `json:"snapshots"`
	Cached    bool              `json:"cached"`
}

// NormalizedHistory is one network's USD series for one delegation field
type NormalizedHistory struct {
	Network string                  `json:"network"`
	Label   string                  `json:"label"`
	Field   types.DelegationField   `json:"field"`
	Since   time.Time               `json:"since"`
	Points  []types.NormalizedPoint `json:"points"`
}

// OverlayResult is the multi-network overlay for one delegation field
type OverlayResult struct {
	Field  types.DelegationField `json:"field"`
	Since  time.Time             `json:"since"`
	Series []types.NetworkSeries `json:"series"`
}

// ListNetworks returns the selectable networks, "all" first
func (s *DashboardService) ListNetworks() []string {
	return append([]string{types.AllNetworks}, s.registry.Networks()...)
}

// GetLatest returns the newest snapshot of a network, or nil when it has
// none. For "all" it returns the aggregate rendered as USD amounts.
func (s *DashboardService) GetLatest(ctx context.Context, network string) (*models.Snapshot, error) {
	network, err := s.checkNetwork(network)
	if err != nil {
		return nil, err
	}

	if network == types.AllNetworks {
		agg, err := s.aggregateLatest(ctx)
		if err != nil {
			return nil, err
		}
		snapshot := agg.ToSnapshot()
		return &snapshot, nil
	}

	var latest *models.Snapshot
	err = s.timed(ctx, "latest", func() error {
		var qerr error
		latest, qerr = s.store.Latest(ctx, network)
		return qerr
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("latest", err)
	}
	return latest, nil
}

// GetLatestPerValidator returns the newest snapshot of each validator. For
// "all" it returns the single aggregate row.
func (s *DashboardService) GetLatestPerValidator(ctx context.Context, network string) ([]models.Snapshot, error) {
	network, err := s.checkNetwork(network)
	if err != nil {
		return nil, err
	}

	if network == types.AllNetworks {
		agg, err := s.aggregateLatest(ctx)
		if err != nil {
			return nil, err
		}
		return []models.Snapshot{agg.ToSnapshot()}, nil
	}

	var rows []models.Snapshot
	err = s.timed(ctx, "latest_per_validator", func() error {
		var qerr error
		rows, qerr = s.store.LatestPerValidator(ctx, network)
		return qerr
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("latest_per_validator", err)
	}
	return rows, nil
}

// GetAllLatest returns the newest snapshot of every served network. A
// network whose query fails maps to nil rather than failing the call.
func (s *DashboardService) GetAllLatest(ctx context.Context) (map[string]*models.Snapshot, error) {
	networks := s.registry.Networks()
	results := make(map[string]*models.Snapshot, len(networks))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, network := range networks {
		network := network
		g.Go(func() error {
			latest, err := s.store.Latest(gctx, network)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.WithField(logging.FieldNetwork, network).WithError(err).Warn("latest snapshot unavailable")
				metrics.QueryErrors.WithLabelValues("latest").Inc()
				latest = nil
			}
			mu.Lock()
			results[network] = latest
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.NewInternalError("all latest cancelled", err)
	}
	return results, nil
}

// GetHistory returns a network's snapshots since the resolved start. A
// non-empty since overrides the range token.
func (s *DashboardService) GetHistory(ctx context.Context, network, rangeToken, since string) (*HistoryResult, error) {
	network, err := s.checkNetwork(network)
	if err != nil {
		return nil, err
	}

	start, err := s.resolve(rangeToken, since)
	if err != nil {
		return nil, err
	}

	rows, cached, err := s.history(ctx, network, start)
	if err != nil {
		return nil, err
	}

	return &HistoryResult{
		Network:   network,
		Since:     start,
		Snapshots: rows,
		Cached:    cached,
	}, nil
}

// GetNormalizedHistory returns a network's USD series for one field
func (s *DashboardService) GetNormalizedHistory(ctx context.Context, network string, field types.DelegationField, rangeToken, since string) (*NormalizedHistory, error) {
	network, err := s.checkNetwork(network)
	if err != nil {
		return nil, err
	}

	start, err := s.resolve(rangeToken, since)
	if err != nil {
		return nil, err
	}

	rows, _, err := s.history(ctx, network, start)
	if err != nil {
		return nil, err
	}

	s.countUnpriced(network, rows, field)
	metrics.SnapshotsProcessed.WithLabelValues(network, "normalize").Add(float64(len(rows)))

	return &NormalizedHistory{
		Network: network,
		Label:   overlay.DisplayName(network),
		Field:   field,
		Since:   start,
		Points:  valuation.NormalizeSeries(rows, field),
	}, nil
}

// GetMonthlyRewards rolls up a network's reward counter by UTC month over the
// window selected by windowToken. "all" and networks without a monthly view
// return an empty rollup marked hidden.
func (s *DashboardService) GetMonthlyRewards(ctx context.Context, network, windowToken string) (*rollup.MonthlyRollup, error) {
	network, err := s.checkNetwork(network)
	if err != nil {
		return nil, err
	}

	p := s.registry.PolicyFor(network)
	if network == types.AllNetworks || p.HideMonthly {
		hidden := rollup.Hidden(network, p)
		return &hidden, nil
	}

	start := s.resolver.MonthWindow(windowToken)
	rows, _, err := s.history(ctx, network, start)
	if err != nil {
		return nil, err
	}

	metrics.SnapshotsProcessed.WithLabelValues(network, "rollup").Add(float64(len(rows)))
	result := rollup.Build(network, rows, p)
	return &result, nil
}

// GetOverlay fetches every served network's history concurrently and merges
// the selected field into per-network USD series. Networks whose query fails
// are logged and left out.
func (s *DashboardService) GetOverlay(ctx context.Context, field types.DelegationField, rangeToken string) (*OverlayResult, error) {
	start := s.resolver.ResolveRange(rangeToken)

	perNetwork := make(map[string][]models.Snapshot)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fanOutLimit)
	for _, network := range s.registry.Networks() {
		if s.registry.PolicyFor(network).ExcludedFromOverlay {
			continue
		}
		network := network
		g.Go(func() error {
			rows, _, err := s.history(gctx, network, start)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.WithField(logging.FieldNetwork, network).WithError(err).Warn("overlay history unavailable")
				return nil
			}
			s.countUnpriced(network, rows, field)
			mu.Lock()
			perNetwork[network] = rows
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, apperrors.NewInternalError("overlay cancelled", err)
	}

	return &OverlayResult{
		Field:  field,
		Since:  start,
		Series: overlay.MergeOrdered(perNetwork, field, s.registry),
	}, nil
}

// checkNetwork lowercases the name and rejects networks outside the registry
func (s *DashboardService) checkNetwork(network string) (string, error) {
	network = strings.ToLower(strings.TrimSpace(network))
	if network == types.AllNetworks {
		return network, nil
	}
	if !s.registry.Known(network) {
		return "", apperrors.NewNetworkNotFoundError(network)
	}
	return network, nil
}

func (s *DashboardService) resolve(rangeToken, since string) (time.Time, error) {
	start, err := s.resolver.Resolve(rangeToken, since)
	if err != nil {
		if errors.Is(err, timerange.ErrInvalidTimestamp) {
			return time.Time{}, apperrors.NewInvalidTimestampError(since, err)
		}
		return time.Time{}, err
	}
	return start, nil
}

// history loads rows with timestamp >= start, reading through the cache.
// "all" reads the aggregate table rendered as USD snapshots.
func (s *DashboardService) history(ctx context.Context, network string, start time.Time) ([]models.Snapshot, bool, error) {
	var key string
	if s.cache != nil {
		if network == types.AllNetworks {
			key = s.cache.AggregateKey(start)
		} else {
			key = s.cache.HistoryKey(network, start)
		}

		var cached []models.Snapshot
		hit, err := s.cache.Get(ctx, key, &cached)
		switch {
		case errors.Is(err, circuitbreaker.ErrCircuitOpen):
			metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
			s.logger.WithField("key", key).Debug("history cache bypassed, circuit open")
		case err != nil:
			metrics.CacheRequests.WithLabelValues(metrics.CacheError).Inc()
			s.logger.WithField("key", key).WithError(apperrors.NewCacheError("get", err)).Warn("history cache read failed")
		case hit:
			metrics.CacheRequests.WithLabelValues(metrics.CacheHit).Inc()
			for i := range cached {
				cached[i].Network = network
			}
			return cached, true, nil
		default:
			metrics.CacheRequests.WithLabelValues(metrics.CacheMiss).Inc()
		}
	}

	var rows []models.Snapshot
	err := s.timed(ctx, "history", func() error {
		if network != types.AllNetworks {
			var qerr error
			rows, qerr = s.store.History(ctx, network, start)
			return qerr
		}

		totals, qerr := s.store.AggregateHistory(ctx, start)
		if qerr != nil {
			return qerr
		}
		rows = make([]models.Snapshot, 0, len(totals))
		for i := range totals {
			rows = append(rows, totals[i].ToSnapshot())
		}
		return nil
	})
	if err != nil {
		return nil, false, apperrors.NewDatabaseError("history", err)
	}
	if rows == nil {
		rows = []models.Snapshot{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, rows); err != nil && !errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			s.logger.WithField("key", key).WithError(apperrors.NewCacheError("set", err)).Warn("history cache write failed")
		}
	}

	return rows, false, nil
}

func (s *DashboardService) aggregateLatest(ctx context.Context) (*models.AggregateTotals, error) {
	var agg *models.AggregateTotals
	err := s.timed(ctx, "aggregate_latest", func() error {
		var qerr error
		agg, qerr = s.store.AggregateLatest(ctx)
		return qerr
	})
	if err != nil {
		return nil, apperrors.NewDatabaseError("aggregate_latest", err)
	}
	if agg == nil {
		agg = &models.AggregateTotals{Timestamp: s.resolver.Now().UTC()}
	}
	return agg, nil
}

// timed runs a store query, retrying transient connection failures, and
// records its latency and failure
func (s *DashboardService) timed(ctx context.Context, operation string, fn func() error) error {
	start := time.Now()
	err := retry.Do(ctx, s.retry, func(ctx context.Context, attempt int) error {
		return fn()
	})
	metrics.QueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryErrors.WithLabelValues(operation).Inc()
	}
	return err
}

// countUnpriced tracks points that normalize to 0 for lack of a usable price
func (s *DashboardService) countUnpriced(network string, rows []models.Snapshot, field types.DelegationField) {
	var n int
	for i := range rows {
		if valuation.Parse(rows[i].Delegation(field)).IsExplicitUSD {
			continue
		}
		if !rows[i].Price.Valid || !rows[i].Price.Decimal.IsPositive() {
			n++
		}
	}
	if n > 0 {
		metrics.UnpricedPoints.WithLabelValues(network).Add(float64(n))
	}
}
