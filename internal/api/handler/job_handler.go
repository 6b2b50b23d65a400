package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tdhoang/escrow-be/internal/api/dto"
	"github.com/tdhoang/escrow-be/internal/escrow"
	"github.com/tdhoang/escrow-be/internal/escrow/domain"
	"github.com/tdhoang/escrow-be/internal/escrow/registry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateJob handles POST /api/v1/jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.engine.CreateJob(c.Request.Context(), caller, escrow.CreateParams{
		Asset:       domain.Asset(req.Asset),
		Amount:      req.Amount,
		Title:       req.Title,
		Description: req.Description,
		MetadataURI: req.MetadataURI,
		Deadline:    req.Deadline,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Job created",
		slog.Int64("job_id", job.ID),
		slog.String("client", string(caller)),
	)
	c.JSON(http.StatusCreated, toJobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.engine.GetJob(c.Request.Context(), jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	jobs, err := h.engine.ListJobs(c.Request.Context(), registry.Filter{
		Status:     domain.Status(req.Status),
		Client:     domain.Identity(req.Client),
		Contractor: domain.Identity(req.Contractor),
		PageSize:   req.PageSize,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		out[i] = toJobDTO(&jobs[i])
	}
	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: out})
}

// ApplyForJob handles POST /api/v1/jobs/:job_id/apply
func (h *JobHandler) ApplyForJob(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.ApplyForJob(c.Request.Context(), caller, jobID)
	})
}

// StartContract handles POST /api/v1/jobs/:job_id/start
func (h *JobHandler) StartContract(c *gin.Context) {
	var req dto.StartContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.StartContract(c.Request.Context(), caller, jobID, domain.Identity(req.ExpectedContractor))
	})
}

// DeliverWork handles POST /api/v1/jobs/:job_id/deliver
func (h *JobHandler) DeliverWork(c *gin.Context) {
	var req dto.DeliverWorkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.DeliverWork(c.Request.Context(), caller, jobID, req.SubmissionURI)
	})
}

// ApproveAndComplete handles POST /api/v1/jobs/:job_id/approve
func (h *JobHandler) ApproveAndComplete(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.ApproveAndComplete(c.Request.Context(), caller, jobID)
	})
}

// WithdrawPayment handles POST /api/v1/jobs/:job_id/withdraw
func (h *JobHandler) WithdrawPayment(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.WithdrawPayment(c.Request.Context(), caller, jobID)
	})
}

// AutoApprove handles POST /api/v1/jobs/:job_id/auto-approve
func (h *JobHandler) AutoApprove(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.AutoApproveIfTimeoutPassed(c.Request.Context(), caller, jobID)
	})
}

// AutoCancel handles POST /api/v1/jobs/:job_id/auto-cancel
func (h *JobHandler) AutoCancel(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.AutoCancelIfDeadlinePassed(c.Request.Context(), caller, jobID)
	})
}

// RaiseDispute handles POST /api/v1/jobs/:job_id/dispute
func (h *JobHandler) RaiseDispute(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.RaiseDispute(c.Request.Context(), caller, jobID)
	})
}

// ResolveDispute handles POST /api/v1/jobs/:job_id/resolve
func (h *JobHandler) ResolveDispute(c *gin.Context) {
	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.ResolveDispute(c.Request.Context(), caller, jobID, req.Verdict)
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.transition(c, func(caller domain.Identity, jobID int64) (*domain.Job, error) {
		return h.engine.CancelJob(c.Request.Context(), caller, jobID)
	})
}

// SetDisputeResolver handles PUT /api/v1/settings/resolver
func (h *JobHandler) SetDisputeResolver(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req dto.SetResolverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	if err := h.engine.SetDisputeResolver(c.Request.Context(), caller, domain.Identity(req.Resolver)); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"resolver": req.Resolver,
	})
}

// transition runs a single lifecycle operation and writes the updated job.
func (h *JobHandler) transition(c *gin.Context, op func(domain.Identity, int64) (*domain.Job, error)) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := op(caller, jobID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.logger.Info("Job transition applied",
		slog.Int64("job_id", job.ID),
		slog.String("status", string(job.Status)),
		slog.String("caller", string(caller)),
	)
	c.JSON(http.StatusOK, toJobDTO(job))
}

func (h *JobHandler) jobID(c *gin.Context) (int64, bool) {
	raw := c.Param("job_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a positive integer",
		})
		return 0, false
	}
	return id, true
}
