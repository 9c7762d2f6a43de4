package models

// RiskTier is the discretized bucket derived from a score.
type RiskTier string

const (
	RiskHigh    RiskTier = "high"
	RiskMedium  RiskTier = "medium"
	RiskLow     RiskTier = "low"
	RiskUnknown RiskTier = "unknown"
	RiskError   RiskTier = "error"
)

// DataSource records where the features behind a result came from.
type DataSource string

const (
	SourceLive      DataSource = "live"
	SourceNoHistory DataSource = "no_history"
	SourceError     DataSource = "error"
)

// ScoreResult is the per-address outcome. Optional fields are pointers and are
// omitted from JSON when absent.
type ScoreResult struct {
	Index      int        `json:"index"`
	Address    string     `json:"address"`
	Chain      Chain      `json:"chain"`
	Score      *float64   `json:"score"`
	SybilScore *int       `json:"sybil_score,omitempty"`
	Risk       RiskTier   `json:"risk"`
	SybilType  string     `json:"sybil_type"`
	DataSource DataSource `json:"data_source"`
	Error      string     `json:"error,omitempty"`

	LGBScore    *float64              `json:"lgb_score,omitempty"`
	IFScore     *float64              `json:"if_score,omitempty"`
	TopFeatures []FeatureContribution `json:"top_features,omitempty"`

	TxCount         *int     `json:"tx_count,omitempty"`
	WalletAgeDays   *float64 `json:"wallet_age_days,omitempty"`
	NFTCollections  *int     `json:"nft_collections,omitempty"`
	UniqueContracts *int     `json:"unique_contracts,omitempty"`
	TotalVolumeETH  *float64 `json:"total_volume_eth,omitempty"`
}

// WithSummary copies display aggregates onto the result.
func (r *ScoreResult) WithSummary(s FeatureSummary) {
	r.TxCount = &s.TxCount
	r.WalletAgeDays = &s.WalletAgeDays
	r.NFTCollections = &s.NFTCollections
	r.UniqueContracts = &s.UniqueContracts
	r.TotalVolumeETH = &s.TotalVolumeETH
}

// ErrorResult builds the error-tier result recorded when an address fails.
func ErrorResult(index int, address string, chain Chain, err error) ScoreResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return ScoreResult{
		Index:      index,
		Address:    address,
		Chain:      chain,
		Risk:       RiskError,
		SybilType:  string(RiskError),
		DataSource: SourceError,
		Error:      msg,
	}
}

// Summary counts results by tier.
type Summary struct {
	Total   int `json:"total"`
	High    int `json:"high"`
	Medium  int `json:"medium"`
	Low     int `json:"low"`
	Unknown int `json:"unknown"`
	Error   int `json:"error"`
}

// Add tallies one result.
func (s *Summary) Add(r RiskTier) {
	s.Total++
	switch r {
	case RiskHigh:
		s.High++
	case RiskMedium:
		s.Medium++
	case RiskLow:
		s.Low++
	case RiskUnknown:
		s.Unknown++
	default:
		s.Error++
	}
}
