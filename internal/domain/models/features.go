package models

import "math"

// Feature indexes into a FeatureVector. The order is the model input layout
// and must never change.
type Feature int

const (
	FeatBuyCount Feature = iota
	FeatBuyValue
	FeatBuyCollections
	FeatSellCount
	FeatSellValue
	FeatTxCount
	FeatTotalTradeCount
	FeatSellRatio
	FeatPnLProxy
	FeatWalletAgeDays
	FeatDaysSinceLastBuy
	FeatRecentActivity
	FeatBlendInCount
	FeatBlendOutCount
	FeatBlendNetValue
	FeatLPCount
	FeatUniqueInteractions
	FeatRatio
	FeatBuyLastTS
	FeatBuyFirstTS
	FeatFirstTxTS
	FeatDeLPCount

	NumFeatures
)

// FeatureNames lists feature names in model input order.
var FeatureNames = [NumFeatures]string{
	"buy_count",
	"buy_value",
	"buy_collections",
	"sell_count",
	"sell_value",
	"tx_count",
	"total_trade_count",
	"sell_ratio",
	"pnl_proxy",
	"wallet_age_days",
	"days_since_last_buy",
	"recent_activity",
	"blend_in_count",
	"blend_out_count",
	"blend_net_value",
	"LP_count",
	"unique_interactions",
	"ratio",
	"buy_last_ts",
	"buy_first_ts",
	"first_tx_ts",
	"DeLP_count",
}

// FeatureLabels are human-readable names used in top-feature explanations.
var FeatureLabels = map[string]string{
	"buy_count":           "Token buy count",
	"buy_value":           "Inbound volume (native)",
	"buy_collections":     "Token collections",
	"sell_count":          "Sell count",
	"sell_value":          "Outbound volume (native)",
	"tx_count":            "Total transactions",
	"total_trade_count":   "Total trades",
	"sell_ratio":          "Sell ratio",
	"pnl_proxy":           "PnL proxy (native)",
	"wallet_age_days":     "Wallet age (days)",
	"days_since_last_buy": "Days since last buy",
	"recent_activity":     "Recent activity (30d)",
	"blend_in_count":      "Above-median inbound transfers",
	"blend_out_count":     "Above-median outbound transfers",
	"blend_net_value":     "Blend net count",
	"LP_count":            "DEX router deposits",
	"unique_interactions": "Unique counterparties",
	"ratio":               "Sell ratio (legacy)",
	"buy_last_ts":         "Last buy timestamp",
	"buy_first_ts":        "First buy timestamp",
	"first_tx_ts":         "First tx timestamp",
	"DeLP_count":          "DEX router withdrawals",
}

// Name returns the feature's schema name.
func (f Feature) Name() string {
	if f < 0 || f >= NumFeatures {
		return ""
	}
	return FeatureNames[f]
}

// FeatureVector is the fixed-order numeric summary of an address.
type FeatureVector [NumFeatures]float64

// Get returns a feature value.
func (v *FeatureVector) Get(f Feature) float64 { return v[f] }

// Set stores a feature value, replacing NaN and infinities with 0.
func (v *FeatureVector) Set(f Feature, x float64) {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		x = 0
	}
	v[f] = x
}

// Slice returns the values in model input order.
func (v FeatureVector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// Map returns a name-keyed copy for JSON transport.
func (v FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, name := range FeatureNames {
		m[name] = v[i]
	}
	return m
}

// Valid reports whether every value is finite.
func (v FeatureVector) Valid() bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// FeatureSummary carries display-oriented aggregates alongside a score.
type FeatureSummary struct {
	TxCount         int     `json:"tx_count"`
	WalletAgeDays   float64 `json:"wallet_age_days"`
	NFTCollections  int     `json:"nft_collections"`
	UniqueContracts int     `json:"unique_contracts"`
	TotalVolumeETH  float64 `json:"total_volume_eth"`
}

// FeatureContribution explains how much one feature moved a prediction.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Label        string  `json:"label"`
	Value        float64 `json:"value"`
	Contribution float64 `json:"contribution"`
}
