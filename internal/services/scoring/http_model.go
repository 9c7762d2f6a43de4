package scoring

import (
	"context"
	"fmt"
	"time"

	"SybilScan/internal/domain/models"
	domsvc "SybilScan/internal/domain/service"
)

// HTTPModel calls an external model service that hosts the trained
// classifier and outlier detector.
type HTTPModel struct {
	base     *HTTPServiceBase
	attempts int
}

// NewHTTPModel creates a remote model client.
func NewHTTPModel(baseURL string, timeout time.Duration, attempts int) *HTTPModel {
	if attempts < 1 {
		attempts = 1
	}
	return &HTTPModel{base: NewHTTPServiceBase(baseURL, timeout), attempts: attempts}
}

type predictReq struct {
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

type predictResp struct {
	Probability   *float64 `json:"probability"`
	LGBScore      *float64 `json:"lgb_score"`
	IFScore       *float64 `json:"if_score"`
	Contributions []struct {
		Feature      string  `json:"feature"`
		Contribution float64 `json:"contribution"`
	} `json:"contributions"`
}

func (m *HTTPModel) Name() string { return "remote" }

// Predict posts the vector in model input order to /predict.
func (m *HTTPModel) Predict(ctx context.Context, fv models.FeatureVector) (domsvc.Prediction, error) {
	req := predictReq{FeatureNames: models.FeatureNames[:], Features: fv.Slice()}

	var resp predictResp
	if err := m.base.PostJSONWithRetry(ctx, "/predict", req, &resp, m.attempts); err != nil {
		return domsvc.Prediction{}, fmt.Errorf("%w: %v", models.ErrModelUnavailable, err)
	}
	if resp.Probability == nil {
		return domsvc.Prediction{}, fmt.Errorf("model response missing probability")
	}

	p := domsvc.Prediction{
		Probability: *resp.Probability,
		LGBScore:    resp.LGBScore,
		IFScore:     resp.IFScore,
	}
	for _, c := range resp.Contributions {
		p.Contributions = append(p.Contributions, models.FeatureContribution{
			Feature:      c.Feature,
			Contribution: c.Contribution,
		})
	}
	return p, nil
}

var _ domsvc.RiskModel = (*HTTPModel)(nil)
