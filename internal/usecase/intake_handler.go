package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"SybilScan/internal/domain/models"
	pkgkafka "SybilScan/pkg/kafka"
	applogger "SybilScan/pkg/logger"
)

// submitter is the part of JobManager the intake needs.
type submitter interface {
	Submit(ctx context.Context, addresses []string, chain string) (models.Job, error)
}

// IntakeHandler turns SubmitJobRequest messages from Kafka into jobs.
type IntakeHandler struct {
	topic string
	jobs  submitter
	l     *applogger.Logger
}

// NewIntakeHandler creates a handler for topic.
func NewIntakeHandler(topic string, jobs submitter, l *applogger.Logger) *IntakeHandler {
	if l == nil {
		l = applogger.Nop()
	}
	return &IntakeHandler{topic: topic, jobs: jobs, l: l}
}

func (h *IntakeHandler) Topic() string { return h.topic }

// Handle submits one batch. Undecodable or invalid requests are permanent
// failures; anything else may be retried by the consumer.
func (h *IntakeHandler) Handle(ctx context.Context, payload []byte) error {
	var req models.SubmitJobRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return pkgkafka.Permanent(fmt.Errorf("decode intake message: %w", err))
	}
	job, err := h.jobs.Submit(ctx, req.Addresses, req.Chain)
	if err != nil {
		if models.IsValidation(err) {
			return pkgkafka.Permanent(err)
		}
		return err
	}
	h.l.Info("job submitted from kafka",
		applogger.String("job_id", job.ID),
		applogger.String("topic", h.topic),
		applogger.Int("addresses", job.Total),
	)
	return nil
}

var _ pkgkafka.MessageHandler = (*IntakeHandler)(nil)
