package api

import (
	"context"
	"net/http"
	"time"

	"SybilScan/internal/domain/models"
	xlogger "SybilScan/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ProgressMessage is one frame of the job progress stream. Results are only
// attached to the final frame.
type ProgressMessage struct {
	Type      string               `json:"type"`
	JobID     string               `json:"job_id"`
	Status    models.JobStatus     `json:"status"`
	Completed int                  `json:"completed"`
	Total     int                  `json:"total"`
	Progress  float64              `json:"progress"`
	Summary   models.Summary       `json:"summary"`
	Error     string               `json:"error,omitempty"`
	Results   []models.ScoreResult `json:"results,omitempty"`
}

func progressOf(j models.Job) ProgressMessage {
	m := ProgressMessage{
		Type:      "progress",
		JobID:     j.ID,
		Status:    j.Status,
		Completed: j.Completed,
		Total:     j.Total,
		Progress:  j.Progress,
		Summary:   j.Summary,
		Error:     j.Error,
	}
	if j.Status.Terminal() {
		m.Type = "final"
		m.Results = j.Results
	}
	return m
}

// Stream pushes progress snapshots over a WebSocket until the job finishes
// or the client goes away.
func (h *JobsHandler) Stream(c echo.Context) error {
	id := c.Param("id")
	job, err := h.jobs.Get(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, "stream", err)
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", xlogger.String("job_id", id), xlogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// read pump: detect client disconnect
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.streamEvery)
	defer ticker.Stop()

	last := -1
	for {
		if job.Completed != last || job.Status.Terminal() {
			last = job.Completed
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(progressOf(job)); err != nil {
				h.logger.Debug("websocket write", xlogger.String("job_id", id), xlogger.Error(err))
				return nil
			}
		}
		if job.Status.Terminal() {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
				time.Now().Add(time.Second))
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if job, err = h.jobs.Get(ctx, id); err != nil {
			h.logger.Warn("stream snapshot", xlogger.String("job_id", id), xlogger.Error(err))
			return nil
		}
	}
}
