package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"SybilScan/internal/domain/models"
	domsvc "SybilScan/internal/domain/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedModel struct {
	pred  domsvc.Prediction
	err   error
	calls int
}

func (m *fixedModel) Name() string { return "fixed" }

func (m *fixedModel) Predict(context.Context, models.FeatureVector) (domsvc.Prediction, error) {
	m.calls++
	return m.pred, m.err
}

func TestTierFor(t *testing.T) {
	cases := []struct {
		p    float64
		want models.RiskTier
	}{
		{1, models.RiskHigh},
		{0.6, models.RiskHigh},
		{0.5999, models.RiskMedium},
		{0.3, models.RiskMedium},
		{0.2999, models.RiskLow},
		{0, models.RiskLow},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, TierFor(c.p), "p=%v", c.p)
	}
}

func TestScoreWithoutHistoryIsUnknown(t *testing.T) {
	m := &fixedModel{pred: domsvc.Prediction{Probability: 0.9}}
	s := NewScorer(m, 3)

	got, err := s.Score(context.Background(), models.FeatureVector{}, false)
	require.NoError(t, err)
	assert.Equal(t, models.RiskUnknown, got.Tier)
	assert.Equal(t, UnknownProbability, got.Probability)
	assert.Equal(t, models.SourceNoHistory, got.Source)
	assert.Equal(t, TypeUnknown, got.SybilType)
	assert.Equal(t, 5, got.SybilScore)
	assert.Zero(t, m.calls)
}

func TestScoreClampsAndLabels(t *testing.T) {
	var fv models.FeatureVector
	fv.Set(models.FeatBuyCount, 1000)
	fv.Set(models.FeatWalletAgeDays, 400)

	s := NewScorer(&fixedModel{pred: domsvc.Prediction{Probability: 1.3}}, 3)
	got, err := s.Score(context.Background(), fv, true)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got.Probability)
	assert.Equal(t, models.RiskHigh, got.Tier)
	assert.Equal(t, 100, got.SybilScore)
	assert.Equal(t, TypeMidVolume, got.SybilType)
	assert.Equal(t, models.SourceLive, got.Source)
}

func TestScoreRejectsNonFiniteProbability(t *testing.T) {
	s := NewScorer(&fixedModel{pred: domsvc.Prediction{Probability: math.NaN()}}, 3)
	_, err := s.Score(context.Background(), models.FeatureVector{}, true)
	assert.Error(t, err)
}

func TestScoreRejectsNonFiniteVector(t *testing.T) {
	var fv models.FeatureVector
	fv[models.FeatBuyValue] = math.Inf(1)
	m := &fixedModel{pred: domsvc.Prediction{Probability: 0.5}}
	_, err := NewScorer(m, 3).Score(context.Background(), fv, true)
	assert.Error(t, err)
	assert.Zero(t, m.calls)
}

func TestScorePropagatesModelError(t *testing.T) {
	s := NewScorer(&fixedModel{err: models.ErrModelUnavailable}, 3)
	_, err := s.Score(context.Background(), models.FeatureVector{}, true)
	assert.ErrorIs(t, err, models.ErrModelUnavailable)
}

func TestSybilTypeFor(t *testing.T) {
	mk := func(buys, blendIn, age float64) models.FeatureVector {
		var fv models.FeatureVector
		fv.Set(models.FeatBuyCount, buys)
		fv.Set(models.FeatBlendInCount, blendIn)
		fv.Set(models.FeatWalletAgeDays, age)
		return fv
	}
	assert.Equal(t, TypeHyperactiveBot, SybilTypeFor(mk(9001, 0, 400)))
	assert.Equal(t, TypeHyperactiveBot, SybilTypeFor(mk(0, 101, 400)))
	assert.Equal(t, TypeMidVolume, SybilTypeFor(mk(795, 0, 10)))
	assert.Equal(t, TypeNewWallet, SybilTypeFor(mk(794, 100, 29.9)))
	assert.Equal(t, TypeRetailHunter, SybilTypeFor(mk(5, 1, 30)))
}

func TestTopFeaturesOrderedByMagnitude(t *testing.T) {
	var fv models.FeatureVector
	fv.Set(models.FeatBuyCount, 12)
	fv.Set(models.FeatWalletAgeDays, 3.14159)

	m := &fixedModel{pred: domsvc.Prediction{
		Probability: 0.4,
		Contributions: []models.FeatureContribution{
			{Feature: "buy_count", Contribution: 0.1},
			{Feature: "wallet_age_days", Contribution: -0.7},
			{Feature: "not_a_feature", Contribution: 9},
			{Feature: "sell_ratio", Contribution: 0.3},
		},
	}}
	got, err := NewScorer(m, 2).Score(context.Background(), fv, true)
	require.NoError(t, err)
	require.Len(t, got.TopFeatures, 2)
	assert.Equal(t, "wallet_age_days", got.TopFeatures[0].Feature)
	assert.Equal(t, 3.1416, got.TopFeatures[0].Value)
	assert.Equal(t, models.FeatureLabels["wallet_age_days"], got.TopFeatures[0].Label)
	assert.Equal(t, "sell_ratio", got.TopFeatures[1].Feature)
}

func TestHeuristicModelRangesAndOrdering(t *testing.T) {
	m := NewHeuristicModel()

	var retail models.FeatureVector
	retail.Set(models.FeatBuyCount, 3)
	retail.Set(models.FeatWalletAgeDays, 900)
	retail.Set(models.FeatUniqueInteractions, 80)

	var bot models.FeatureVector
	bot.Set(models.FeatBuyCount, 12000)
	bot.Set(models.FeatBlendInCount, 300)
	bot.Set(models.FeatRecentActivity, 800)
	bot.Set(models.FeatTotalTradeCount, 15000)
	bot.Set(models.FeatSellRatio, 2)
	bot.Set(models.FeatWalletAgeDays, 5)

	r, err := m.Predict(context.Background(), retail)
	require.NoError(t, err)
	b, err := m.Predict(context.Background(), bot)
	require.NoError(t, err)

	for _, p := range []domsvc.Prediction{r, b} {
		assert.GreaterOrEqual(t, p.Probability, 0.0)
		assert.LessOrEqual(t, p.Probability, 1.0)
		require.NotNil(t, p.LGBScore)
		require.NotNil(t, p.IFScore)
		assert.InDelta(t, SupervisedWeight*(*p.LGBScore)+OutlierWeight*(*p.IFScore), p.Probability, 1e-12)
	}
	assert.Greater(t, b.Probability, r.Probability)
	assert.Equal(t, 1.0, *b.IFScore)
	assert.Equal(t, models.RiskLow, TierFor(r.Probability))
	assert.Equal(t, models.RiskHigh, TierFor(b.Probability))

	again, _ := m.Predict(context.Background(), bot)
	assert.Equal(t, b.Probability, again.Probability)
}

func TestHTTPModelPredict(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		var req predictReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Features, int(models.NumFeatures))
		assert.Equal(t, "buy_count", req.FeatureNames[0])
		assert.Equal(t, 7.0, req.Features[0])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"probability":   0.72,
			"lgb_score":     0.8,
			"if_score":      0.53,
			"contributions": []map[string]interface{}{{"feature": "buy_count", "contribution": 0.4}},
		})
	}))
	defer server.Close()

	m := NewHTTPModel(server.URL+"/", time.Second, 2)
	m.base.backoff = time.Millisecond

	var fv models.FeatureVector
	fv.Set(models.FeatBuyCount, 7)
	p, err := m.Predict(context.Background(), fv)
	require.NoError(t, err)
	assert.Equal(t, 0.72, p.Probability)
	require.NotNil(t, p.LGBScore)
	assert.Equal(t, 0.8, *p.LGBScore)
	require.Len(t, p.Contributions, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPModelUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	m := NewHTTPModel(server.URL, time.Second, 1)
	_, err := m.Predict(context.Background(), models.FeatureVector{})
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}
