package scoring

import (
	"context"
	"errors"
	"math"
	"sort"

	"SybilScan/internal/domain/models"
	domsvc "SybilScan/internal/domain/service"
)

const (
	HighThreshold   = 0.6
	MediumThreshold = 0.3

	// UnknownProbability is reported for addresses without any history.
	UnknownProbability = 0.05
)

// Sybil type labels.
const (
	TypeHyperactiveBot = "hyperactive_bot"
	TypeMidVolume      = "mid_volume"
	TypeNewWallet      = "new_wallet"
	TypeRetailHunter   = "retail_hunter"
	TypeUnknown        = "unknown"
)

// Scored is the scorer's verdict for one feature vector.
type Scored struct {
	Probability float64
	Tier        models.RiskTier
	SybilType   string
	SybilScore  int
	Source      models.DataSource
	LGBScore    *float64
	IFScore     *float64
	TopFeatures []models.FeatureContribution
}

// Scorer applies a RiskModel and the tiering policy.
type Scorer struct {
	model domsvc.RiskModel
	topN  int
}

// NewScorer creates a Scorer. topN <= 0 disables feature explanations.
func NewScorer(model domsvc.RiskModel, topN int) *Scorer {
	return &Scorer{model: model, topN: topN}
}

// ModelName reports the backing model.
func (s *Scorer) ModelName() string {
	if s.model == nil {
		return ""
	}
	return s.model.Name()
}

// Score maps fv to a probability and tier. Without history the model is
// not consulted and the unknown sentinel is returned.
func (s *Scorer) Score(ctx context.Context, fv models.FeatureVector, hasHistory bool) (Scored, error) {
	if !hasHistory {
		return Scored{
			Probability: UnknownProbability,
			Tier:        models.RiskUnknown,
			SybilType:   TypeUnknown,
			SybilScore:  SybilScoreOf(UnknownProbability),
			Source:      models.SourceNoHistory,
		}, nil
	}
	if !fv.Valid() {
		return Scored{}, errors.New("feature vector contains non-finite values")
	}
	if s.model == nil {
		return Scored{}, models.ErrModelUnavailable
	}

	pred, err := s.model.Predict(ctx, fv)
	if err != nil {
		return Scored{}, err
	}
	if math.IsNaN(pred.Probability) || math.IsInf(pred.Probability, 0) {
		return Scored{}, errors.New("model returned a non-finite probability")
	}
	p := clamp01(pred.Probability)

	return Scored{
		Probability: p,
		Tier:        TierFor(p),
		SybilType:   SybilTypeFor(fv),
		SybilScore:  SybilScoreOf(p),
		Source:      models.SourceLive,
		LGBScore:    pred.LGBScore,
		IFScore:     pred.IFScore,
		TopFeatures: s.top(fv, pred.Contributions),
	}, nil
}

// TierFor discretizes a probability: >= 0.6 high, >= 0.3 medium, else low.
func TierFor(p float64) models.RiskTier {
	switch {
	case p >= HighThreshold:
		return models.RiskHigh
	case p >= MediumThreshold:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// SybilTypeFor labels the behavioural profile behind a vector.
func SybilTypeFor(fv models.FeatureVector) string {
	buys := fv.Get(models.FeatBuyCount)
	switch {
	case buys > 9000 || fv.Get(models.FeatBlendInCount) > 100:
		return TypeHyperactiveBot
	case buys > 794:
		return TypeMidVolume
	case fv.Get(models.FeatWalletAgeDays) < 30:
		return TypeNewWallet
	default:
		return TypeRetailHunter
	}
}

// SybilScoreOf converts a probability to the 0..100 display score.
func SybilScoreOf(p float64) int {
	return int(math.Round(clamp01(p) * 100))
}

func (s *Scorer) top(fv models.FeatureVector, contribs []models.FeatureContribution) []models.FeatureContribution {
	if s.topN <= 0 || len(contribs) == 0 {
		return nil
	}
	idx := make(map[string]models.Feature, models.NumFeatures)
	for i, name := range models.FeatureNames {
		idx[name] = models.Feature(i)
	}

	out := make([]models.FeatureContribution, 0, len(contribs))
	for _, c := range contribs {
		f, ok := idx[c.Feature]
		if !ok {
			continue
		}
		c.Label = models.FeatureLabels[c.Feature]
		c.Value = round4(fv.Get(f))
		c.Contribution = round4(c.Contribution)
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Contribution) > math.Abs(out[j].Contribution)
	})
	if len(out) > s.topN {
		out = out[:s.topN]
	}
	return out
}

func clamp01(p float64) float64 {
	return math.Min(1, math.Max(0, p))
}

func round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
