package domain

import "time"

// Identity is an authenticated caller identity supplied by the upstream
// identity provider. The marketplace never verifies it; it is trusted as-is.
type Identity string

// Verdict values accepted by dispute resolution.
const (
	VerdictClientUpheld     = "CLIENT_UPHELD"
	VerdictContractorUpheld = "CONTRACTOR_UPHELD"
)

// Job is one escrow agreement between a client and a contractor.
// Records are never deleted; RESOLVED and CANCELLED are logical end of life.
type Job struct {
	ID            int64     `db:"job_id"`
	Client        Identity  `db:"client"`
	Contractor    Identity  `db:"contractor"`
	DepositAmount uint64    `db:"deposit_amount"`
	Asset         Asset     `db:"asset"`
	Status        Status    `db:"status"`
	Title         string    `db:"title"`
	Description   string    `db:"description"`
	MetadataURI   string    `db:"metadata_uri"`
	Deadline      time.Time `db:"deadline"`
	DeliveredAt   time.Time `db:"delivered_at"`
	SubmissionURI string    `db:"submission_uri"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// Clone returns an independent copy, used for pre-mutation snapshots.
func (j *Job) Clone() *Job {
	c := *j
	return &c
}

// HasContractor reports whether a contractor has been assigned.
func (j *Job) HasContractor() bool {
	return j.Contractor != ""
}
