package sow

import (
	"fmt"

	"github.com/orneryd/sowgraph/pkg/storage"
)

// TransitionOpportunity moves a stored opportunity to the next lifecycle
// state and persists the result. Replaying an already-applied transition is
// a no-op returning the current record, so callers can retry safely.
func TransitionOpportunity(engine storage.Engine, id string, next OpportunityStatus) (*AnalyticalOpportunity, error) {
	node, err := engine.GetNode(storage.NodeID(id))
	if err != nil {
		return nil, fmt.Errorf("opportunity %s: %w", id, err)
	}
	opp := OpportunityFromNode(node)

	updated, err := opp.Status.Transition(next)
	if err != nil {
		return nil, fmt.Errorf("opportunity %s: %w", id, err)
	}
	if updated == opp.Status {
		return opp, nil
	}

	opp.Status = updated
	node.Properties[PropStatus] = string(updated)
	if err := engine.UpsertNode(node); err != nil {
		return nil, fmt.Errorf("failed to persist status of %s: %w", id, err)
	}
	return opp, nil
}
