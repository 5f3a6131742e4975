package dispatch

import (
	"fmt"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// ReconciliationPolicy decides which quantities must be recorded before a sub-dispatch advances.
type ReconciliationPolicy string

const (
	// PolicyLenient lets a sub-dispatch advance with quantities still unrecorded.
	PolicyLenient ReconciliationPolicy = "lenient"
	// PolicyStrict requires packedQty on every item before packed
	// and receivedQty on every item before received.
	PolicyStrict ReconciliationPolicy = "strict"
)

// IsValid checks if the policy is known.
func (p ReconciliationPolicy) IsValid() bool {
	return p == PolicyLenient || p == PolicyStrict
}

// CanReceiveNewItems evaluates whether late items may be appended to a sub-dispatch.
// Rules:
// - Status must be pending or packing
func CanReceiveNewItems(sub SubDispatch) GuardResult {
	switch sub.Status {
	case StatusPending, StatusPacking:
		return GuardResult{Allowed: true}
	case StatusIssue:
		return GuardResult{
			Allowed: false,
			Reason:  "branch has an open issue",
		}
	}
	return GuardResult{
		Allowed: false,
		Reason:  fmt.Sprintf("already %s", sub.Status),
	}
}

// AdvanceContext provides context for status transition guards.
type AdvanceContext struct {
	Sub    SubDispatch
	Target Status
	Policy ReconciliationPolicy
}

// CanAdvance evaluates whether a sub-dispatch may move to the target status.
// Rules:
// - Target must be a known status
// - (current, target) must be in the transition table
// - Under the strict policy, required quantities must be recorded on every item
func CanAdvance(ctx AdvanceContext) GuardResult {
	from := ctx.Sub.Status
	if !ctx.Target.IsValid() {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown status %q", ctx.Target),
		}
	}

	if from == StatusIssue {
		return GuardResult{
			Allowed: false,
			Reason:  "branch has an open issue; resolve it first",
		}
	}

	if !CanTransition(from, ctx.Target) {
		reason := "not a permitted transition"
		switch {
		case from.IsTerminal():
			reason = fmt.Sprintf("%s is terminal", from)
		case ctx.Target.Rank() >= 0 && ctx.Target.Rank() < from.Rank():
			reason = "status cannot move backwards"
		case ctx.Target.Rank() > from.Rank()+1:
			reason = fmt.Sprintf("must pass through %s first", flow[from.Rank()+1])
		}
		return GuardResult{Allowed: false, Reason: reason}
	}

	if ctx.Policy == PolicyStrict {
		if missing := MissingQuantities(ctx.Sub, ctx.Target); len(missing) > 0 {
			return GuardResult{
				Allowed: false,
				Reason: fmt.Sprintf("%d item(s) missing %s quantity (%s)",
					len(missing), quantityLabel(ctx.Target), strings.Join(missing, ", ")),
			}
		}
	}

	return GuardResult{Allowed: true}
}

// CanResolveIssue evaluates whether an issue can be resolved back into the flow.
// Rules:
// - Status must be issue
// - The state the issue was raised from must be known
func CanResolveIssue(sub SubDispatch) GuardResult {
	if sub.Status != StatusIssue {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("can only resolve branches in issue (current status: %s)", sub.Status),
		}
	}
	if !sub.StatusBeforeIssue.IsValid() || sub.StatusBeforeIssue == StatusIssue {
		return GuardResult{
			Allowed: false,
			Reason:  "status before the issue is unknown",
		}
	}
	return GuardResult{Allowed: true}
}

// MissingQuantities lists the names of items lacking the quantity the target status requires.
func MissingQuantities(sub SubDispatch, target Status) []string {
	var missing []string
	for _, it := range sub.Items {
		switch target {
		case StatusPacked:
			if !it.PackedQty.Valid {
				missing = append(missing, it.Name)
			}
		case StatusReceived:
			if !it.ReceivedQty.Valid {
				missing = append(missing, it.Name)
			}
		}
	}
	return missing
}

func quantityLabel(target Status) string {
	if target == StatusReceived {
		return "received"
	}
	return "packed"
}
