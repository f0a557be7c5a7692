// Package gate models the pipeline state machine persisted as issue labels.
//
// The label set on an issue IS the pipeline state. Transitions recompute the
// full pipeline label set from the target state instead of incrementally
// adding and removing labels, so a re-run after a crash converges to a
// consistent set. Labels outside the pipeline vocabulary are preserved
// untouched.
package gate

import "sort"

// Pipeline label vocabulary.
const (
	LabelDuplicatesChecked    = "req/duplicatas-verificadas"
	LabelBlockedRuleViolation = "blocked/rn-violation"
	LabelAnalysisPending      = "req/bar-aguardando"
	LabelBlockedQA            = "qa/bloqueado"
	LabelGate2Ready           = "gate/2-aguardando"
)

// vocabulary is the full set of labels the pipeline owns.
var vocabulary = map[string]bool{
	LabelDuplicatesChecked:    true,
	LabelBlockedRuleViolation: true,
	LabelAnalysisPending:      true,
	LabelBlockedQA:            true,
	LabelGate2Ready:           true,
}

// State is the per-issue pipeline stage-state.
type State int

const (
	// StateNew: no stage has run yet.
	StateNew State = iota
	// StateBlockedRuleViolation: stage 0 found an explicit rule conflict or
	// a critical duplicate. Terminal until a human clears the block.
	StateBlockedRuleViolation
	// StateDuplicatesChecked: stage 0 passed.
	StateDuplicatesChecked
	// StateAnalysisPending: stage A published a BAR awaiting human review.
	StateAnalysisPending
	// StateEscalatedQA: stage A escalated (low confidence, regulated scope,
	// or critical ambiguity). Terminal until a human clears the block.
	StateEscalatedQA
	// StateEscalatedRegulated: stage 2 short-circuited on declared regulated
	// scope. Terminal until a human clears the block.
	StateEscalatedRegulated
	// StateGate2Ready: stage 2 published canonical use cases for Gate 2.
	StateGate2Ready
)

// String returns the state name for diagnostics.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateBlockedRuleViolation:
		return "blocked-rule-violation"
	case StateDuplicatesChecked:
		return "duplicates-checked"
	case StateAnalysisPending:
		return "analysis-pending"
	case StateEscalatedQA:
		return "escalated-qa"
	case StateEscalatedRegulated:
		return "escalated-regulated"
	case StateGate2Ready:
		return "gate2-ready"
	}
	return "unknown"
}

// Blocked reports whether the state requires human intervention before the
// pipeline may continue. The pipeline never auto-clears a block.
func (s State) Blocked() bool {
	switch s {
	case StateBlockedRuleViolation, StateEscalatedQA, StateEscalatedRegulated:
		return true
	}
	return false
}

// Labels returns the full pipeline label set encoding the state.
func (s State) Labels() []string {
	switch s {
	case StateBlockedRuleViolation:
		return []string{LabelBlockedRuleViolation}
	case StateDuplicatesChecked:
		return []string{LabelDuplicatesChecked}
	case StateAnalysisPending:
		return []string{LabelDuplicatesChecked, LabelAnalysisPending}
	case StateEscalatedQA:
		return []string{LabelDuplicatesChecked, LabelAnalysisPending, LabelBlockedQA}
	case StateEscalatedRegulated:
		return []string{LabelDuplicatesChecked, LabelAnalysisPending, LabelBlockedQA}
	case StateGate2Ready:
		return []string{LabelDuplicatesChecked, LabelAnalysisPending, LabelGate2Ready}
	}
	return nil
}

// Transition computes the label set to persist for the target state: labels
// outside the pipeline vocabulary are kept, pipeline labels are replaced by
// the state's encoding. The result is sorted and suitable for a single
// set-replace call. Applying the same transition twice is a no-op.
func Transition(current []string, target State) []string {
	var out []string
	for _, l := range current {
		if !vocabulary[l] {
			out = append(out, l)
		}
	}
	out = append(out, target.Labels()...)
	sort.Strings(out)
	return out
}

// FromLabels recovers the stage-state encoded in a label set. Used for
// status display only; stage preconditions are derived from artifacts, not
// labels, so a crash between artifact and label leaves re-runs unaffected.
func FromLabels(labels []string) State {
	has := make(map[string]bool, len(labels))
	for _, l := range labels {
		has[l] = true
	}
	switch {
	case has[LabelBlockedRuleViolation]:
		return StateBlockedRuleViolation
	case has[LabelGate2Ready]:
		return StateGate2Ready
	case has[LabelBlockedQA] && has[LabelAnalysisPending]:
		return StateEscalatedQA
	case has[LabelAnalysisPending]:
		return StateAnalysisPending
	case has[LabelDuplicatesChecked]:
		return StateDuplicatesChecked
	}
	return StateNew
}
