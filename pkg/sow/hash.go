package sow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// ContentHash returns a deterministic digest of the opportunity's content,
// excluding identity and bookkeeping fields (ID, CreatedAt, Status).
//
// Two opportunities regenerated from the same requirement, rule set, and
// graph snapshot hash identically, which is what makes replayed discovery
// writes collapsible: a node that already exists with the same id and the
// same hash is a no-op, the same id with a different hash is a conflict that
// must surface to the caller.
func (o *AnalyticalOpportunity) ContentHash() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%.2f\x00%.6f\x00%s\x00%s\x00%s\x00%d\x00%.2f",
		o.Description,
		o.Complexity,
		o.BusinessValue,
		o.ConfidenceScore,
		o.DiscoveryMethod,
		strings.Join(o.RelatedRequirements, ","),
		o.ImplementationApproach,
		o.EstimatedHours,
		o.ROIProjection,
	)
	return hex.EncodeToString(h.Sum(nil))
}
