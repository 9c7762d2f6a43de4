package api

import (
	"net/http"
	"time"

	"SybilScan/internal/domain/models"
	"SybilScan/internal/usecase"
	xhttp "SybilScan/pkg/http"
	xlogger "SybilScan/pkg/logger"

	"github.com/labstack/echo/v4"
)

// JobsHandler serves batch scoring, single-address verification and job
// inspection.
type JobsHandler struct {
	logger      *xlogger.Logger
	jobs        *usecase.JobManager
	auth        echo.MiddlewareFunc
	limit       echo.MiddlewareFunc
	streamEvery time.Duration
}

// JobsOption configures JobsHandler.
type JobsOption func(*JobsHandler)

// WithAuth guards every /v1 job route.
func WithAuth(mw echo.MiddlewareFunc) JobsOption {
	return func(h *JobsHandler) { h.auth = mw }
}

// WithRateLimit throttles the scoring routes.
func WithRateLimit(mw echo.MiddlewareFunc) JobsOption {
	return func(h *JobsHandler) { h.limit = mw }
}

// WithStreamInterval sets how often the progress stream polls the job.
func WithStreamInterval(d time.Duration) JobsOption {
	return func(h *JobsHandler) {
		if d > 0 {
			h.streamEvery = d
		}
	}
}

func NewJobsHandler(logger *xlogger.Logger, jobs *usecase.JobManager, opts ...JobsOption) *JobsHandler {
	h := &JobsHandler{logger: logger, jobs: jobs, streamEvery: time.Second}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *JobsHandler) RegisterRoutes(e *echo.Echo) {
	var guard, scoring []echo.MiddlewareFunc
	if h.auth != nil {
		guard = append(guard, h.auth)
	}
	scoring = append(scoring, guard...)
	if h.limit != nil {
		scoring = append(scoring, h.limit)
	}

	g := e.Group("/v1")
	g.POST("/score", h.Submit, scoring...)
	g.POST("/verify", h.Verify, scoring...)
	g.GET("/jobs", h.List, guard...)
	g.GET("/jobs/:id", h.Get, guard...)
	g.DELETE("/jobs/:id", h.Cancel, guard...)
	g.GET("/jobs/:id/results", h.Results, guard...)
	g.GET("/jobs/:id/export", h.Export, guard...)
	g.GET("/jobs/:id/ws", h.Stream, guard...)

	e.GET("/health", h.Health)
}

// Submit accepts a batch and returns the job id immediately.
func (h *JobsHandler) Submit(c echo.Context) error {
	req := &models.SubmitJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	job, err := h.jobs.Submit(c.Request().Context(), req.Addresses, req.Chain)
	if err != nil {
		return h.fail(c, "submit", err)
	}
	return xhttp.DataResponse(c, http.StatusAccepted, models.SubmitJobResponse{
		JobID:  job.ID,
		Status: job.Status,
		Total:  job.Total,
	})
}

// Verify scores one address synchronously.
func (h *JobsHandler) Verify(c echo.Context) error {
	req := &models.VerifyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.jobs.Score(c.Request().Context(), req.Address, req.Chain)
	if err != nil {
		return h.fail(c, "verify", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *JobsHandler) List(c echo.Context) error {
	jobs, err := h.jobs.List(c.Request().Context(), 50)
	if err != nil {
		return h.fail(c, "list", err)
	}
	rows := make([]models.SubmitJobResponse, 0, len(jobs))
	for _, j := range jobs {
		rows = append(rows, models.SubmitJobResponse{JobID: j.ID, Status: j.Status, Total: j.Total})
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *JobsHandler) Get(c echo.Context) error {
	job, err := h.jobs.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "get", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *JobsHandler) Cancel(c echo.Context) error {
	job, err := h.jobs.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.fail(c, "cancel", err)
	}
	return xhttp.SuccessResponse(c, job)
}

func (h *JobsHandler) Results(c echo.Context) error {
	req := &models.JobResultsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	rows, total, err := h.jobs.Results(c.Request().Context(), req.ID, req.Offset, req.Limit)
	if err != nil {
		return h.fail(c, "results", err)
	}
	return xhttp.PageResponse(c, rows, int64(total), req.Offset, req.Limit)
}

// Export streams the recorded results as a csv or tsv attachment.
func (h *JobsHandler) Export(c echo.Context) error {
	req := &models.ExportRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	format, err := usecase.ParseExport(req.Format)
	if err != nil {
		return h.fail(c, "export", err)
	}

	job, err := h.jobs.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, "export", err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, format.ContentType())
	resp.Header().Set(echo.HeaderContentDisposition, `attachment; filename="sybilscan-`+job.ID+`.`+string(format)+`"`)
	resp.WriteHeader(http.StatusOK)
	if err := usecase.WriteExport(resp, format, job.Results); err != nil {
		h.logger.Error("export write", xlogger.String("job_id", job.ID), xlogger.Error(err))
	}
	return nil
}

type healthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
	Model       string `json:"model,omitempty"`
}

func (h *JobsHandler) Health(c echo.Context) error {
	name := h.jobs.ModelName()
	return xhttp.SuccessResponse(c, healthResponse{Status: "ok", ModelLoaded: name != "", Model: name})
}

func (h *JobsHandler) fail(c echo.Context, op string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", xlogger.String("path", c.Path()), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
