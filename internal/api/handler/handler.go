package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/escrow-be/internal/api/dto"
	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/shared/postgresql"
)

// CallerHeader carries the authenticated caller identity, set by the
// upstream identity provider. The marketplace trusts it as-is.
const CallerHeader = "X-Caller-Id"

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger   *slog.Logger
	Engine   *escrow.Engine
	DBClient *postgresql.Client
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger *slog.Logger
	engine *escrow.Engine
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger: deps.Logger,
		engine: deps.Engine,
	}
}

// caller extracts the authenticated identity, aborting with 401 when the
// header is missing.
func (h *JobHandler) caller(c *gin.Context) (domain.Identity, bool) {
	id := c.GetHeader(CallerHeader)
	if id == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "caller identity is required",
		})
		return "", false
	}
	return domain.Identity(id), true
}

// respondError maps domain errors onto HTTP statuses.
func (h *JobHandler) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidJobID):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidState),
		errors.Is(err, domain.ErrAlreadyAssigned),
		errors.Is(err, domain.ErrDeadlineExceeded),
		errors.Is(err, domain.ErrTimeNotElapsed),
		errors.Is(err, domain.ErrReentrantCall):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrTransferFailed):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()),
		)
	}

	c.JSON(status, gin.H{
		"error": err.Error(),
	})
}

func toJobDTO(job *domain.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:         job.ID,
		Client:        string(job.Client),
		Contractor:    string(job.Contractor),
		DepositAmount: job.DepositAmount,
		Asset:         string(job.Asset),
		Status:        string(job.Status),
		Title:         job.Title,
		Description:   job.Description,
		MetadataURI:   job.MetadataURI,
		Deadline:      job.Deadline.Format(time.RFC3339),
		SubmissionURI: job.SubmissionURI,
		CreatedAt:     job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     job.UpdatedAt.Format(time.RFC3339),
	}
	if !job.DeliveredAt.IsZero() {
		out.DeliveredAt = job.DeliveredAt.Format(time.RFC3339)
	}
	return out
}
