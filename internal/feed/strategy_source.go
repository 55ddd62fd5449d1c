package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"filingscout/internal/ports"
)

// StrategySource implements ports.FeedSource via registered fetcher
// strategies. Strategies are tried in configured order; the first one that
// returns records wins, so the HTML table can back up the JSON API when the
// exchange reshapes it.
type StrategySource struct {
	registry   *Registry
	strategies []string
	logger     *slog.Logger
}

var _ ports.FeedSource = (*StrategySource)(nil)

// NewStrategySource wires the fetcher registry with the configured strategy
// order.
func NewStrategySource(reg *Registry, strategies []string, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry:   reg,
		strategies: strategies,
		logger:     log,
	}
}

// Fetch executes strategies in order until one succeeds.
func (s *StrategySource) Fetch(ctx context.Context, q ports.FeedQuery) ([]ports.RawRecord, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("feed registry is not configured")
	}
	if len(s.strategies) == 0 {
		return nil, fmt.Errorf("no feed strategies configured")
	}

	req := Request{
		Index:    q.Index,
		FromDate: q.FromDate,
		ToDate:   q.ToDate,
		Symbol:   q.Symbol,
	}

	var errs []error
	for _, name := range s.strategies {
		strategy, err := s.registry.Resolve(name)
		if err != nil {
			return nil, err
		}

		records, err := strategy.Fetch(ctx, req)
		if err != nil {
			s.debug("strategy failed", "strategy", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		s.debug("strategy produced records", "strategy", name, "count", len(records))
		return records, nil
	}

	return nil, fmt.Errorf("all feed strategies failed: %w", errors.Join(errs...))
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
