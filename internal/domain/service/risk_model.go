package service

import (
	"context"

	"SybilScan/internal/domain/models"
)

// Prediction is the raw output of a risk model.
type Prediction struct {
	Probability   float64
	LGBScore      *float64
	IFScore       *float64
	Contributions []models.FeatureContribution
}

// RiskModel maps a feature vector to a sybil probability. Model internals are
// owned by the implementation (remote service or local fallback).
type RiskModel interface {
	Name() string
	Predict(ctx context.Context, fv models.FeatureVector) (Prediction, error)
}
