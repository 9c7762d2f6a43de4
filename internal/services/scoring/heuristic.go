package scoring

import (
	"context"
	"math"

	"SybilScan/internal/domain/models"
	domsvc "SybilScan/internal/domain/service"
)

// Blend weights of the supervised and outlier components.
const (
	SupervisedWeight = 0.7
	OutlierWeight    = 0.3
)

// HeuristicModel is a deterministic stand-in for the trained models, used
// when no model service is configured. A logistic term over log-scaled
// features plays the classifier; saturation against bot-scale reference
// levels plays the outlier detector.
type HeuristicModel struct {
	bias    float64
	weights map[models.Feature]float64
	refs    []reference
}

type reference struct {
	feature models.Feature
	level   float64
}

// NewHeuristicModel returns the fallback model with built-in weights.
func NewHeuristicModel() *HeuristicModel {
	return &HeuristicModel{
		bias: -2.0,
		weights: map[models.Feature]float64{
			models.FeatBuyCount:           0.30,
			models.FeatBlendInCount:       0.45,
			models.FeatBlendOutCount:      0.20,
			models.FeatRecentActivity:     0.15,
			models.FeatSellRatio:          0.60,
			models.FeatTotalTradeCount:    0.05,
			models.FeatWalletAgeDays:      -0.30,
			models.FeatUniqueInteractions: -0.20,
			models.FeatLPCount:            -0.10,
			models.FeatDeLPCount:          -0.10,
		},
		refs: []reference{
			{models.FeatBuyCount, 9000},
			{models.FeatBlendInCount, 100},
			{models.FeatRecentActivity, 500},
			{models.FeatTotalTradeCount, 10000},
		},
	}
}

func (m *HeuristicModel) Name() string { return "heuristic" }

func (m *HeuristicModel) Predict(_ context.Context, fv models.FeatureVector) (domsvc.Prediction, error) {
	z := m.bias
	contribs := make([]models.FeatureContribution, 0, len(m.weights))
	for f := models.Feature(0); f < models.NumFeatures; f++ {
		w, ok := m.weights[f]
		if !ok {
			continue
		}
		c := w * squash(f, fv.Get(f))
		z += c
		contribs = append(contribs, models.FeatureContribution{Feature: f.Name(), Contribution: c})
	}
	lgb := 1 / (1 + math.Exp(-z))

	var sat float64
	for _, r := range m.refs {
		sat += math.Min(1, math.Log1p(math.Max(0, fv.Get(r.feature)))/math.Log1p(r.level))
	}
	iso := sat / float64(len(m.refs))

	return domsvc.Prediction{
		Probability:   SupervisedWeight*lgb + OutlierWeight*iso,
		LGBScore:      &lgb,
		IFScore:       &iso,
		Contributions: contribs,
	}, nil
}

// squash keeps heavy-tailed counts comparable; ratios are capped instead.
func squash(f models.Feature, x float64) float64 {
	if f == models.FeatSellRatio {
		return math.Min(math.Max(x, 0), 5)
	}
	return math.Log1p(math.Max(0, x))
}

var _ domsvc.RiskModel = (*HeuristicModel)(nil)
