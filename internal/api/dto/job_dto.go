package dto

import "time"

type CreateJobRequest struct {
	Asset       string    `json:"asset" binding:"required"`
	Amount      uint64    `json:"amount" binding:"required"`
	Title       string    `json:"title" binding:"required"`
	Description string    `json:"description"`
	MetadataURI string    `json:"metadata_uri"`
	Deadline    time.Time `json:"deadline" binding:"required"`
}

type StartContractRequest struct {
	ExpectedContractor string `json:"expected_contractor" binding:"required"`
}

type DeliverWorkRequest struct {
	SubmissionURI string `json:"submission_uri" binding:"required"`
}

type ResolveDisputeRequest struct {
	Verdict string `json:"verdict" binding:"required"`
}

type SetResolverRequest struct {
	Resolver string `json:"resolver" binding:"required"`
}

type ListJobsRequest struct {
	Status     string `form:"status"`
	Client     string `form:"client"`
	Contractor string `form:"contractor"`
	PageSize   int    `form:"page_size"`
}

type ListJobsResponse struct {
	Jobs []JobDTO `json:"jobs"`
}

type JobDTO struct {
	JobID         int64  `json:"job_id"`
	Client        string `json:"client"`
	Contractor    string `json:"contractor,omitempty"`
	DepositAmount uint64 `json:"deposit_amount"`
	Asset         string `json:"asset"`
	Status        string `json:"status"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	MetadataURI   string `json:"metadata_uri,omitempty"`
	Deadline      string `json:"deadline"`
	DeliveredAt   string `json:"delivered_at,omitempty"`
	SubmissionURI string `json:"submission_uri,omitempty"`
	CreatedAt     string `json:"created_at"`
	UpdatedAt     string `json:"updated_at"`
}
