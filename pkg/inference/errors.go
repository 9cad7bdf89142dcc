package inference

import (
	"fmt"
	"strings"
)

// ConflictError reports an idempotence violation: an opportunity id already
// exists in the graph with different content. Replays of identical content
// are silent no-ops; a conflicting rewrite must surface to the caller and is
// never applied.
type ConflictError struct {
	OpportunityID string
	ExistingHash  string
	IncomingHash  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("opportunity %s already exists with different content (stored %.12s, incoming %.12s)",
		e.OpportunityID, e.ExistingHash, e.IncomingHash)
}

// FailureCause is one failed unit of work inside a discovery run: a rule
// application or a cross-domain entity that could not be processed.
type FailureCause struct {
	// SourceID identifies the rule or entity that failed.
	SourceID string
	Err      error
}

// PartialFailure accumulates per-rule and per-entity failures from a
// discovery run. The run itself still returns every opportunity that
// succeeded; one bad rule must not sink the rest.
type PartialFailure struct {
	RequirementID string
	Causes        []FailureCause
}

func (e *PartialFailure) Error() string {
	parts := make([]string, len(e.Causes))
	for i, c := range e.Causes {
		parts[i] = fmt.Sprintf("%s: %v", c.SourceID, c.Err)
	}
	return fmt.Sprintf("discovery for %s partially failed (%d causes): %s",
		e.RequirementID, len(e.Causes), strings.Join(parts, "; "))
}

// Unwrap exposes the underlying causes to errors.Is and errors.As.
func (e *PartialFailure) Unwrap() []error {
	errs := make([]error, len(e.Causes))
	for i, c := range e.Causes {
		errs[i] = c.Err
	}
	return errs
}
