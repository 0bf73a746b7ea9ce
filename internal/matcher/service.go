package matcher

import (
	"context"
	"log/slog"

	"galleryvault/internal/logging"
	"galleryvault/internal/provider"
	"galleryvault/internal/registry"
)

// Strategies lists matcher instances in priority order.
type Strategies interface {
	Matchers(q registry.Query) []registry.MatcherEntry
}

// Service walks every enabled matcher in priority order.
type Service struct {
	strategies Strategies
	engine     *Engine
	logger     *slog.Logger
}

// NewService binds an engine to a strategy source.
func NewService(strategies Strategies, engine *Engine, logger *slog.Logger) *Service {
	return &Service{
		strategies: strategies,
		engine:     engine,
		logger:     logging.NewComponentLogger(logger, "matcher"),
	}
}

// MatchFile matches a local archive by its path.
func (s *Service) MatchFile(ctx context.Context, path string, rq registry.Query) (*Result, error) {
	return s.Match(ctx, provider.Query{Path: path}, rq)
}

// MatchTitle matches a remote title.
func (s *Service) MatchTitle(ctx context.Context, title string, rq registry.Query) (*Result, error) {
	return s.Match(ctx, provider.Query{Title: title}, rq)
}

// Match returns the first populated result of the matchers selected by rq.
func (s *Service) Match(ctx context.Context, q provider.Query, rq registry.Query) (*Result, error) {
	for _, entry := range s.strategies.Matchers(rq) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := s.engine.Match(ctx, entry.Matcher, q)
		if err != nil {
			return nil, err
		}
		if result != nil {
			s.logger.Info("match found",
				logging.String(logging.FieldProvider, result.Provider),
				logging.String("matcher", result.MatcherType),
				logging.String("title", result.Title),
				logging.Float64("score", result.Score),
				logging.Int("candidates", result.Count),
			)
			return result, nil
		}
	}
	return nil, nil
}

// Rank runs a multi-match on every selected matcher and returns each one's
// ranked candidates keyed by "provider/type".
func (s *Service) Rank(ctx context.Context, q provider.Query, rq registry.Query, cutoff float64, limit int) (map[string][]Ranked, error) {
	out := make(map[string][]Ranked)
	for _, entry := range s.strategies.Matchers(rq) {
		ranked, err := s.engine.MatchRanked(ctx, entry.Matcher, q, cutoff, limit)
		if err != nil {
			return nil, err
		}
		if len(ranked) > 0 {
			out[entry.Provider+"/"+entry.Type] = ranked
		}
	}
	return out, nil
}
