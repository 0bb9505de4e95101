package discovery

import (
	"context"

	"go.uber.org/zap"

	"github.com/geekdaily/escape-the-algo/internal/models"
	"github.com/geekdaily/escape-the-algo/pkg/logger"
)

// Provider is the external video-search collaborator. An empty result and an
// explicit error are distinct outcomes: the first escalates the radius, the
// second terminates the run.
type Provider interface {
	Search(ctx context.Context, params models.SearchParameters) ([]models.Video, error)
}

// OutcomeKind classifies how a discovery run ended.
type OutcomeKind string

// Outcome kinds for a discovery run.
const (
	OutcomeFound     OutcomeKind = "found"
	OutcomeExhausted OutcomeKind = "exhausted"
	OutcomeFailed    OutcomeKind = "failed"
)

// Outcome is the terminal result of one discovery run.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type Outcome struct {
	Kind        OutcomeKind
	Video       *models.Video // set when Kind is OutcomeFound
	RadiusMiles int           // radius of the last step attempted
	Steps       int           // provider queries issued
	Err         error         // set when Kind is OutcomeFailed
}

// Engine walks the radius schedule, querying the provider once per radius
// value and never retrying a radius within a run.
type Engine struct {
	provider    Provider
	startRadius int
	maxResults  int
}

// NewEngine returns an engine starting each run at startRadius and
// requesting at most maxResults candidates per step.
func NewEngine(provider Provider, startRadius, maxResults int) *Engine {
	if startRadius <= 0 {
		startRadius = DefaultStartRadiusMiles
	}
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Engine{
		provider:    provider,
		startRadius: startRadius,
		maxResults:  maxResults,
	}
}

// Discover runs one end-to-end attempt to find an unseen video near loc.
// The excluded set is a snapshot owned by the caller and is not mutated.
// Radius steps run strictly sequentially; cancelling ctx ends the run with
// a failed outcome, which the caller is expected to discard.
func (e *Engine) Discover(ctx context.Context, loc models.GeoLocation, excluded map[string]struct{}) Outcome {
	radius := e.startRadius
	steps := 0

	for {
		if err := ctx.Err(); err != nil {
			return Outcome{Kind: OutcomeFailed, RadiusMiles: radius, Steps: steps, Err: err}
		}

		params := models.SearchParameters{
			Location:    loc,
			RadiusMiles: radius,
			MaxResults:  e.maxResults,
			ExcludedIDs: excluded,
		}

		candidates, err := e.provider.Search(ctx, params)
		steps++
		if err != nil {
			// Provider errors are terminal; retry is user-initiated only.
			return Outcome{Kind: OutcomeFailed, RadiusMiles: radius, Steps: steps, Err: err}
		}

		if video := SelectFrom(candidates, excluded); video != nil {
			logger.Log.Info("video selected",
				zap.String("videoId", video.ID),
				zap.Int("radiusMiles", radius),
				zap.Int("steps", steps),
			)
			return Outcome{Kind: OutcomeFound, Video: video, RadiusMiles: radius, Steps: steps}
		}

		// Zero candidates and "all candidates excluded" both escalate.
		next, ok := NextRadius(radius)
		if !ok {
			logger.Log.Info("radius schedule exhausted",
				zap.Int("radiusMiles", radius),
				zap.Int("steps", steps),
			)
			return Outcome{Kind: OutcomeExhausted, RadiusMiles: radius, Steps: steps}
		}
		radius = next
	}
}
