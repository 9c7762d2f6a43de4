package features

import (
	"testing"
	"time"

	"SybilScan/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	subject = "0x00000000000000000000000000000000000000aa"
	other   = "0x00000000000000000000000000000000000000bb"
	third   = "0x00000000000000000000000000000000000000cc"
	uniV2   = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
)

var refTime = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func fixedExtractor() *Extractor {
	return New(WithClock(func() time.Time { return refTime }))
}

func eth(n float64) decimal.Decimal {
	return decimal.NewFromFloat(n).Shift(18)
}

func native(ts time.Time, from, to string, value decimal.Decimal) models.RawActivityRecord {
	return models.RawActivityRecord{Timestamp: ts.Unix(), From: from, To: to, Value: value, Kind: models.KindNative}
}

func token(ts time.Time, from, to, contract string, amount int64) models.RawActivityRecord {
	return models.RawActivityRecord{
		Timestamp:     ts.Unix(),
		From:          from,
		To:            to,
		Value:         decimal.NewFromInt(amount),
		Kind:          models.KindToken,
		Contract:      contract,
		TokenDecimals: 0,
	}
}

func TestExtractEmpty(t *testing.T) {
	out := fixedExtractor().Extract(models.Activity{Address: subject})

	assert.False(t, out.HasHistory)
	assert.True(t, out.Vector.Valid())
	for f := models.Feature(0); f < models.NumFeatures; f++ {
		switch f {
		case models.FeatDaysSinceLastBuy:
			assert.Equal(t, float64(NeverBoughtDays), out.Vector.Get(f))
		default:
			assert.Zero(t, out.Vector.Get(f), f.Name())
		}
	}
	assert.Equal(t, models.FeatureSummary{}, out.Summary)
}

func TestExtractNativeValues(t *testing.T) {
	day := func(n int) time.Time { return refTime.AddDate(0, 0, -n) }
	act := models.Activity{
		Address: subject,
		Native: []models.RawActivityRecord{
			native(day(100), other, subject, eth(1)),
			native(day(50), other, subject, eth(2)),
			native(day(10), third, subject, eth(3)),
			native(day(5), subject, other, eth(0.5)),
		},
	}

	out := fixedExtractor().Extract(act)
	v := out.Vector

	require.True(t, out.HasHistory)
	assert.InDelta(t, 6.0, v.Get(models.FeatBuyValue), 1e-9)
	assert.InDelta(t, 0.5, v.Get(models.FeatSellValue), 1e-9)
	assert.InDelta(t, 5.5, v.Get(models.FeatPnLProxy), 1e-9)
	assert.Equal(t, 4.0, v.Get(models.FeatTxCount))
	assert.InDelta(t, 100.0, v.Get(models.FeatWalletAgeDays), 1e-9)
	assert.Equal(t, float64(day(100).Unix()), v.Get(models.FeatFirstTxTS))
	assert.Equal(t, 2.0, v.Get(models.FeatRecentActivity))
	// destinations: subject and other
	assert.Equal(t, 2.0, v.Get(models.FeatUniqueInteractions))

	assert.Equal(t, 4, out.Summary.TxCount)
	assert.InDelta(t, 6.5, out.Summary.TotalVolumeETH, 1e-9)
	assert.Equal(t, 2, out.Summary.UniqueContracts)
}

func TestExtractRouterCounts(t *testing.T) {
	ts := refTime.AddDate(0, 0, -40)
	act := models.Activity{
		Address: subject,
		Native: []models.RawActivityRecord{
			native(ts, subject, uniV2, eth(1)),
			native(ts.Add(time.Hour), subject, uniV2, eth(1)),
			native(ts.Add(2*time.Hour), uniV2, subject, eth(1)),
			native(ts.Add(3*time.Hour), subject, other, eth(1)),
		},
	}

	v := fixedExtractor().Extract(act).Vector
	assert.Equal(t, 2.0, v.Get(models.FeatLPCount))
	assert.Equal(t, 1.0, v.Get(models.FeatDeLPCount))
	assert.Zero(t, v.Get(models.FeatRecentActivity))
}

func TestExtractTokenTransfers(t *testing.T) {
	day := func(n int) time.Time { return refTime.AddDate(0, 0, -n) }
	act := models.Activity{
		Address: subject,
		Token: []models.RawActivityRecord{
			token(day(20), other, subject, "0xt1", 1),
			token(day(15), other, subject, "0xt2", 10),
			token(day(12), other, subject, "0xt1", 100),
			token(day(8), subject, other, "0xt1", 5),
			token(day(2), subject, third, "0xt3", 50),
		},
	}

	out := fixedExtractor().Extract(act)
	v := out.Vector

	assert.Equal(t, 3.0, v.Get(models.FeatBuyCount))
	assert.Equal(t, 2.0, v.Get(models.FeatSellCount))
	assert.Equal(t, 5.0, v.Get(models.FeatTotalTradeCount))
	assert.Equal(t, 2.0, v.Get(models.FeatBuyCollections))
	assert.Equal(t, float64(day(20).Unix()), v.Get(models.FeatBuyFirstTS))
	assert.Equal(t, float64(day(12).Unix()), v.Get(models.FeatBuyLastTS))
	assert.InDelta(t, 12.0, v.Get(models.FeatDaysSinceLastBuy), 1e-9)

	// sell/(buy+1) = 2/4, and ratio mirrors it
	assert.InDelta(t, 0.5, v.Get(models.FeatSellRatio), 1e-12)
	assert.Equal(t, v.Get(models.FeatSellRatio), v.Get(models.FeatRatio))

	// median of {1,10,100,5,50} is 10: above it are 100 (in) and 50 (out)
	assert.Equal(t, 1.0, v.Get(models.FeatBlendInCount))
	assert.Equal(t, 1.0, v.Get(models.FeatBlendOutCount))
	assert.Equal(t, 0.0, v.Get(models.FeatBlendNetValue))

	assert.Equal(t, 2, out.Summary.NFTCollections)
	// token transfers alone do not age the wallet
	assert.Zero(t, v.Get(models.FeatWalletAgeDays))
	assert.True(t, out.HasHistory)
}

func TestExtractMedianEvenCount(t *testing.T) {
	act := models.Activity{
		Address: subject,
		Token: []models.RawActivityRecord{
			token(refTime, other, subject, "0xt", 2),
			token(refTime, other, subject, "0xt", 4),
			token(refTime, other, subject, "0xt", 6),
			token(refTime, subject, other, "0xt", 8),
		},
	}
	// median 5: 6 in, 8 out
	v := fixedExtractor().Extract(act).Vector
	assert.Equal(t, 1.0, v.Get(models.FeatBlendInCount))
	assert.Equal(t, 1.0, v.Get(models.FeatBlendOutCount))
}

func TestExtractEqualAmountsHaveNoBlend(t *testing.T) {
	act := models.Activity{
		Address: subject,
		Token: []models.RawActivityRecord{
			token(refTime, other, subject, "0xt", 7),
			token(refTime, subject, other, "0xt", 7),
		},
	}
	v := fixedExtractor().Extract(act).Vector
	assert.Zero(t, v.Get(models.FeatBlendInCount))
	assert.Zero(t, v.Get(models.FeatBlendOutCount))
}

func TestExtractSortsUnorderedInput(t *testing.T) {
	later := refTime.AddDate(0, 0, -1)
	earlier := refTime.AddDate(0, 0, -3)
	act := models.Activity{
		Address: subject,
		Native: []models.RawActivityRecord{
			native(later, other, subject, eth(1)),
			native(earlier, other, subject, eth(1)),
		},
		Token: []models.RawActivityRecord{
			token(later, other, subject, "0xt", 1),
			token(earlier, other, subject, "0xt", 1),
		},
	}

	v := fixedExtractor().Extract(act).Vector
	assert.Equal(t, float64(earlier.Unix()), v.Get(models.FeatFirstTxTS))
	assert.Equal(t, float64(earlier.Unix()), v.Get(models.FeatBuyFirstTS))
	assert.Equal(t, float64(later.Unix()), v.Get(models.FeatBuyLastTS))
	assert.InDelta(t, 3.0, v.Get(models.FeatWalletAgeDays), 1e-9)
}

func TestExtractFutureTimestampsClampToZero(t *testing.T) {
	future := refTime.Add(48 * time.Hour)
	act := models.Activity{
		Address: subject,
		Native:  []models.RawActivityRecord{native(future, other, subject, eth(1))},
		Token:   []models.RawActivityRecord{token(future, other, subject, "0xt", 1)},
	}
	v := fixedExtractor().Extract(act).Vector
	assert.Zero(t, v.Get(models.FeatWalletAgeDays))
	assert.Zero(t, v.Get(models.FeatDaysSinceLastBuy))
	assert.True(t, v.Valid())
}

func TestFeatureOrderIsStable(t *testing.T) {
	assert.Equal(t, 22, int(models.NumFeatures))
	assert.Equal(t, "buy_count", models.FeatureNames[0])
	assert.Equal(t, "ratio", models.FeatRatio.Name())
	assert.Equal(t, "DeLP_count", models.FeatureNames[models.NumFeatures-1])
}
