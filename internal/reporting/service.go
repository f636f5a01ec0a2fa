package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/trunkline-ops/trunkline/internal/shared"
)

// KPIClient is the slice of the reporting service API the dashboard consumes.
type KPIClient interface {
	Ping(ctx context.Context) error
	RevenueKPIs(ctx context.Context, period string) (RevenueKPIs, error)
	CollectionsKPIs(ctx context.Context, period string) (CollectionsKPIs, error)
	ReceivablesKPIs(ctx context.Context) (ReceivablesKPIs, error)
	VehicleParkStats(ctx context.Context) (VehicleParkStats, error)
}

// Service assembles KPI blocks from the reporting service through the
// versioned cache. Outside production an unreachable service is papered over
// with sample data; in production the error surfaces.
type Service struct {
	client          KPIClient
	cache           *Cache
	logger          *slog.Logger
	fallbackAllowed bool
	now             func() time.Time
	fill            singleflight.Group
}

// NewService constructs the reporting service.
func NewService(client KPIClient, cache *Cache, logger *slog.Logger, fallbackAllowed bool) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client:          client,
		cache:           cache,
		logger:          logger,
		fallbackAllowed: fallbackAllowed,
		now:             time.Now,
	}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Health reports whether the reporting service answers its health probe.
func (s *Service) Health(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// Revenue returns the billed/collected revenue block for a month.
// An empty period means the current month.
func (s *Service) Revenue(ctx context.Context, period string) (RevenueKPIs, error) {
	period, err := normalizePeriod(period, s.now())
	if err != nil {
		return RevenueKPIs{}, err
	}
	var out RevenueKPIs
	err = s.fetch(ctx, keyRevenue(period), &out, func(ctx context.Context) (any, error) {
		block, err := s.client.RevenueKPIs(ctx, period)
		if err != nil {
			return nil, err
		}
		decorateRevenue(&block)
		return block, nil
	})
	if err != nil {
		if s.canFallback(err) {
			s.warnFallback("revenue", err)
			return sampleRevenue(period), nil
		}
		return RevenueKPIs{}, err
	}
	return out, nil
}

// Collections returns the collection campaign block for a month.
func (s *Service) Collections(ctx context.Context, period string) (CollectionsKPIs, error) {
	period, err := normalizePeriod(period, s.now())
	if err != nil {
		return CollectionsKPIs{}, err
	}
	var out CollectionsKPIs
	err = s.fetch(ctx, keyCollections(period), &out, func(ctx context.Context) (any, error) {
		block, err := s.client.CollectionsKPIs(ctx, period)
		if err != nil {
			return nil, err
		}
		decorateCollections(&block)
		return block, nil
	})
	if err != nil {
		if s.canFallback(err) {
			s.warnFallback("collections", err)
			return sampleCollections(period), nil
		}
		return CollectionsKPIs{}, err
	}
	return out, nil
}

// Receivables returns the aging snapshot keyed to the current day.
func (s *Service) Receivables(ctx context.Context) (ReceivablesKPIs, error) {
	asOf := s.now().UTC()
	var out ReceivablesKPIs
	err := s.fetch(ctx, keyReceivables(asOf), &out, func(ctx context.Context) (any, error) {
		block, err := s.client.ReceivablesKPIs(ctx)
		if err != nil {
			return nil, err
		}
		if block.AsOf == "" {
			block.AsOf = asOf.Format("2006-01-02")
		}
		decorateReceivables(&block)
		return block, nil
	})
	if err != nil {
		if s.canFallback(err) {
			s.warnFallback("receivables", err)
			return sampleReceivables(asOf), nil
		}
		return ReceivablesKPIs{}, err
	}
	return out, nil
}

// VehiclePark returns the corporate vehicle park block.
func (s *Service) VehiclePark(ctx context.Context) (VehicleParkStats, error) {
	var out VehicleParkStats
	err := s.fetch(ctx, keyFleet(), &out, func(ctx context.Context) (any, error) {
		return s.client.VehicleParkStats(ctx)
	})
	if err != nil {
		if s.canFallback(err) {
			s.warnFallback("vehicle_park", err)
			return sampleVehiclePark(), nil
		}
		return VehicleParkStats{}, err
	}
	return out, nil
}

// Summary loads every KPI block concurrently for the dashboard landing page.
func (s *Service) Summary(ctx context.Context, period string) (Summary, error) {
	var out Summary

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		block, err := s.Revenue(gctx, period)
		if err != nil {
			return err
		}
		out.Revenue = block
		return nil
	})

	g.Go(func() error {
		block, err := s.Collections(gctx, period)
		if err != nil {
			return err
		}
		out.Collections = block
		return nil
	})

	g.Go(func() error {
		block, err := s.Receivables(gctx)
		if err != nil {
			return err
		}
		out.Receivables = block
		return nil
	})

	g.Go(func() error {
		block, err := s.VehiclePark(gctx)
		if err != nil {
			return err
		}
		out.VehiclePark = block
		return nil
	})

	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	out.GeneratedAt = s.now().UTC()
	for _, src := range []string{out.Revenue.Source, out.Collections.Source, out.Receivables.Source, out.VehiclePark.Source} {
		if src == SourceFallback {
			out.Source = SourceFallback
			break
		}
	}
	return out, nil
}

// Warmup bumps the cache version and refills every block for the current
// month. The worker runs this on a schedule so dashboard loads hit warm keys.
func (s *Service) Warmup(ctx context.Context) error {
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
	_, err := s.Summary(ctx, "")
	return err
}

// fetch resolves one block through the cache. Upstream errors from the
// loader propagate untouched; cache infrastructure errors degrade to a
// direct load so a Redis outage cannot take the dashboard down with it.
func (s *Service) fetch(ctx context.Context, part string, dest any, load func(context.Context) (any, error)) error {
	sfLoad := func(ctx context.Context) (any, error) {
		return s.dedupFill(ctx, part, load)
	}

	key, err := s.cache.BuildKey(ctx, part)
	if err == nil {
		err = s.cache.FetchJSON(ctx, key, dest, sfLoad)
		if err == nil {
			return nil
		}
		if isLoadError(err) || ctx.Err() != nil {
			return err
		}
	}
	s.logger.Warn("report cache degraded, loading direct", slog.String("block", part), slog.Any("error", err))

	value, err := sfLoad(ctx)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

// isLoadError distinguishes loader verdicts from cache plumbing failures.
func isLoadError(err error) bool {
	return errors.Is(err, shared.ErrServiceUnavailable) ||
		errors.Is(err, shared.ErrUpstream) ||
		errors.Is(err, shared.ErrInvalidInput) ||
		errors.Is(err, shared.ErrNotFound)
}

func (s *Service) canFallback(err error) bool {
	return s.fallbackAllowed &&
		(errors.Is(err, shared.ErrServiceUnavailable) || errors.Is(err, shared.ErrUpstream))
}

func (s *Service) warnFallback(block string, err error) {
	s.logger.Warn("reporting service unreachable, serving sample data",
		slog.String("block", block),
		slog.Any("error", err))
}
