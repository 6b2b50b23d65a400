package escrow

import "github.com/tdhoang/escrow-be/internal/escrow/domain"

// Authorization predicates are pure: stored roles and a caller identity in,
// boolean out. The caller identity is already authenticated upstream.

func isClient(job *domain.Job, caller domain.Identity) bool {
	return caller != "" && caller == job.Client
}

func isContractor(job *domain.Job, caller domain.Identity) bool {
	return caller != "" && caller == job.Contractor
}

// isParty reports whether the caller is either side of the agreement.
func isParty(job *domain.Job, caller domain.Identity) bool {
	return isClient(job, caller) || isContractor(job, caller)
}
