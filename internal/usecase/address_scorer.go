package usecase

import (
	"context"
	"errors"
	"time"

	"SybilScan/internal/domain/models"
	drepo "SybilScan/internal/domain/repository"
	"SybilScan/internal/services/features"
	"SybilScan/internal/services/scoring"
)

// AddressScorer runs fetch, extract and score for a single address.
type AddressScorer struct {
	src       drepo.ActivitySource
	extractor *features.Extractor
	scorer    *scoring.Scorer
	metrics   drepo.Metrics
}

// NewAddressScorer wires the per-address pipeline.
func NewAddressScorer(src drepo.ActivitySource, extractor *features.Extractor, scorer *scoring.Scorer, metrics drepo.Metrics) *AddressScorer {
	return &AddressScorer{src: src, extractor: extractor, scorer: scorer, metrics: metrics}
}

// ModelName reports the risk model in use.
func (a *AddressScorer) ModelName() string { return a.scorer.ModelName() }

// ScoreAddress always returns a usable result. On failure the result is in
// the error tier and err carries the typed cause for logging.
func (a *AddressScorer) ScoreAddress(ctx context.Context, index int, address string, chain models.Chain) (models.ScoreResult, error) {
	start := time.Now()
	defer func() { a.metrics.RecordLatency("score_address", time.Since(start).Seconds()) }()

	act, err := a.src.FetchActivity(ctx, address, chain)
	if err != nil {
		a.metrics.RecordError(errorKind(err))
		return models.ErrorResult(index, address, chain, err), err
	}
	act.Address = address
	act.Chain = chain

	ext := a.extractor.Extract(act)
	s, err := a.scorer.Score(ctx, ext.Vector, ext.HasHistory)
	if err != nil {
		err = &models.ScoringError{Address: address, Err: err}
		a.metrics.RecordError("scoring")
		return models.ErrorResult(index, address, chain, err), err
	}

	p, sybil := s.Probability, s.SybilScore
	r := models.ScoreResult{
		Index:       index,
		Address:     address,
		Chain:       chain,
		Score:       &p,
		SybilScore:  &sybil,
		Risk:        s.Tier,
		SybilType:   s.SybilType,
		DataSource:  s.Source,
		LGBScore:    s.LGBScore,
		IFScore:     s.IFScore,
		TopFeatures: s.TopFeatures,
	}
	r.WithSummary(ext.Summary)
	return r, nil
}

func errorKind(err error) string {
	var fe *models.FetchError
	switch {
	case models.IsValidation(err):
		return "validation"
	case errors.As(err, &fe) && errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	case errors.As(err, &fe):
		return "fetch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "unknown"
	}
}
