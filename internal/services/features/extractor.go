package features

import (
	"math"
	"sort"
	"time"

	"SybilScan/internal/domain/models"
)

const (
	secondsPerDay = 86400
	recentWindow  = 30 * secondsPerDay

	// NeverBoughtDays is days_since_last_buy for an address with no incoming transfers.
	NeverBoughtDays = 999
)

// DefaultRouters are well-known DEX router contracts (lowercase).
var DefaultRouters = []string{
	"0x7a250d5630b4cf539739df2c5dacb4c659f2488d", // uniswap v2
	"0xe592427a0aece92de3edee1f18e0157c05861564", // uniswap v3
	"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad", // uniswap universal
	"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f", // sushiswap
	"0x1111111254eeb25477b68fb85ed929f73a960582", // 1inch v5
}

// Extraction is the outcome of reducing one address's activity.
type Extraction struct {
	Vector     models.FeatureVector
	Summary    models.FeatureSummary
	HasHistory bool
}

// Extractor turns raw activity into the fixed 22-feature vector.
// It is stateless apart from its configuration and safe for concurrent use.
type Extractor struct {
	now     func() time.Time
	routers map[string]struct{}
}

// Option configures Extractor.
type Option func(*Extractor)

// WithClock fixes the reference time used for age and recency features.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithRouters replaces the DEX router list.
func WithRouters(addrs []string) Option {
	return func(e *Extractor) {
		e.routers = make(map[string]struct{}, len(addrs))
		for _, a := range addrs {
			if n, err := models.NormalizeAddress(a); err == nil {
				e.routers[n] = struct{}{}
			}
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now}
	WithRouters(DefaultRouters)(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract computes the feature vector for act. Streams are sorted in place
// when they are not already in ascending time order.
func (e *Extractor) Extract(act models.Activity) Extraction {
	now := e.now().Unix()
	addr := act.Address
	models.SortByTime(act.Native)
	models.SortByTime(act.Token)

	var fv models.FeatureVector

	// native history
	var (
		buyValue, sellValue float64
		lp, delp, recent    int
		firstTx             int64
		dests               = make(map[string]struct{})
	)
	if len(act.Native) > 0 {
		firstTx = act.Native[0].Timestamp
	}
	for _, r := range act.Native {
		if r.To != "" {
			dests[r.To] = struct{}{}
		}
		amt := r.Amount()
		switch {
		case r.From == addr:
			sellValue += amt
			if e.isRouter(r.To) {
				lp++
			}
		case r.To == addr:
			buyValue += amt
			if e.isRouter(r.From) {
				delp++
			}
		}
		if now-r.Timestamp <= recentWindow {
			recent++
		}
	}

	walletAge := 0.0
	if firstTx > 0 {
		walletAge = math.Max(0, float64(now-firstTx)/secondsPerDay)
	}

	// token transfers
	var (
		buyCount, sellCount int
		buyFirst, buyLast   int64
		collections         = make(map[string]struct{})
		amounts             = make([]float64, len(act.Token))
	)
	for i, r := range act.Token {
		amounts[i] = r.Amount()
		if r.To == addr {
			buyCount++
			if r.Contract != "" {
				collections[r.Contract] = struct{}{}
			}
			if buyFirst == 0 {
				buyFirst = r.Timestamp
			}
			buyLast = r.Timestamp
		} else if r.From == addr {
			sellCount++
		}
	}

	daysSinceBuy := float64(NeverBoughtDays)
	if buyCount > 0 {
		daysSinceBuy = math.Max(0, float64(now-buyLast)/secondsPerDay)
	}

	// wash-trading proxy: transfers strictly above the median amount
	var blendIn, blendOut int
	if len(amounts) > 0 {
		m := median(amounts)
		for i, r := range act.Token {
			if amounts[i] <= m {
				continue
			}
			if r.To == addr {
				blendIn++
			} else if r.From == addr {
				blendOut++
			}
		}
	}

	sellRatio := float64(sellCount) / float64(buyCount+1)

	fv.Set(models.FeatBuyCount, float64(buyCount))
	fv.Set(models.FeatBuyValue, buyValue)
	fv.Set(models.FeatBuyCollections, float64(len(collections)))
	fv.Set(models.FeatSellCount, float64(sellCount))
	fv.Set(models.FeatSellValue, sellValue)
	fv.Set(models.FeatTxCount, float64(len(act.Native)))
	fv.Set(models.FeatTotalTradeCount, float64(buyCount+sellCount))
	fv.Set(models.FeatSellRatio, sellRatio)
	fv.Set(models.FeatPnLProxy, buyValue-sellValue)
	fv.Set(models.FeatWalletAgeDays, walletAge)
	fv.Set(models.FeatDaysSinceLastBuy, daysSinceBuy)
	fv.Set(models.FeatRecentActivity, float64(recent))
	fv.Set(models.FeatBlendInCount, float64(blendIn))
	fv.Set(models.FeatBlendOutCount, float64(blendOut))
	fv.Set(models.FeatBlendNetValue, float64(blendIn-blendOut))
	fv.Set(models.FeatLPCount, float64(lp))
	fv.Set(models.FeatUniqueInteractions, float64(len(dests)))
	// ratio is a legacy alias read by older consumers
	fv.Set(models.FeatRatio, sellRatio)
	fv.Set(models.FeatBuyLastTS, float64(buyLast))
	fv.Set(models.FeatBuyFirstTS, float64(buyFirst))
	fv.Set(models.FeatFirstTxTS, float64(firstTx))
	fv.Set(models.FeatDeLPCount, float64(delp))

	return Extraction{
		Vector: fv,
		Summary: models.FeatureSummary{
			TxCount:         len(act.Native),
			WalletAgeDays:   round(walletAge, 2),
			NFTCollections:  len(collections),
			UniqueContracts: len(dests),
			TotalVolumeETH:  round(buyValue+sellValue, 4),
		},
		HasHistory: !act.Empty(),
	}
}

func (e *Extractor) isRouter(a string) bool {
	_, ok := e.routers[a]
	return ok
}

func median(xs []float64) float64 {
	s := append([]float64(nil), xs...)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func round(x float64, places int) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}
