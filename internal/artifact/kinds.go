// Package artifact defines the comment-artifact formats the pipeline posts
// to issues and the predicates that recognize them in a comment history.
//
// Artifact kinds form a small tagged union with a shared recognize predicate
// per kind; "latest artifact of kind X" is a single backward scan.
package artifact

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the artifact formats the pipeline recognizes.
type Kind int

const (
	// KindDuplicateReport is the stage-0 report: "## DuplicateReport-<issue>".
	KindDuplicateReport Kind = iota
	// KindBAR is the stage-A business-analysis report: "## BAR-<issue>".
	KindBAR
	// KindUseCase is a stage-2 use-case document: "## UC-<id>: <name>".
	KindUseCase
	// KindDecisionRecord is an audit record: contains "## DecisionRecord".
	KindDecisionRecord
)

// Recognize reports whether the comment body is an artifact of this kind.
func (k Kind) Recognize(body string) bool {
	switch k {
	case KindDuplicateReport:
		return strings.HasPrefix(body, "## DuplicateReport-")
	case KindBAR:
		return strings.HasPrefix(body, "## BAR-")
	case KindUseCase:
		return strings.HasPrefix(body, "## UC-")
	case KindDecisionRecord:
		return strings.Contains(body, "## DecisionRecord")
	}
	return false
}

// Latest scans the comment bodies backward and returns the most recent
// artifact of the given kind.
func Latest(comments []string, k Kind) (string, bool) {
	for i := len(comments) - 1; i >= 0; i-- {
		if k.Recognize(comments[i]) {
			return comments[i], true
		}
	}
	return "", false
}

var (
	rulePattern       = regexp.MustCompile(`RN-[0-9]{2}`)
	confidencePattern = regexp.MustCompile(`confidence_score:\s*([0-9]*\.?[0-9]+)`)
	lgpdPattern       = regexp.MustCompile(`(?i)lgpd_scope:\s*true`)
	classPattern      = regexp.MustCompile(`Classificação:\s*(T[0-3])`)
)

// Rules returns the sorted unique rule identifiers mentioned in a BAR.
func Rules(bar string) []string {
	found := rulePattern.FindAllString(bar, -1)
	seen := make(map[string]bool, len(found))
	var out []string
	for _, rn := range found {
		if !seen[rn] {
			seen[rn] = true
			out = append(out, rn)
		}
	}
	sort.Strings(out)
	return out
}

// Confidence parses the numeric confidence field from a BAR, defaulting to
// 0.6 when absent.
func Confidence(bar string) float64 {
	m := confidencePattern.FindStringSubmatch(bar)
	if m == nil {
		return 0.6
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0.6
	}
	return v
}

// DeclaresLGPD reports whether the artifact explicitly declares regulated
// (LGPD) data scope.
func DeclaresLGPD(body string) bool {
	return lgpdPattern.MatchString(body)
}

// Classification extracts the approved tier from a BAR, defaulting to T1.
func Classification(bar string) string {
	m := classPattern.FindStringSubmatch(bar)
	if m == nil {
		return "T1"
	}
	return m[1]
}

// UCRow is one provisional use case listed in a BAR table.
type UCRow struct {
	ID   string
	Name string
}

// UCRows parses the provisional use-case rows from a BAR's markdown table.
// When no row is found it falls back to a single main-flow use case so that
// stage 2 always has something to model.
func UCRows(bar string, issueNumber int) []UCRow {
	prefix := "UC-" + strconv.Itoa(issueNumber)
	var rows []UCRow
	for _, line := range strings.Split(bar, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "|") || !strings.Contains(trimmed, prefix) {
			continue
		}
		parts := splitTableRow(trimmed)
		if len(parts) >= 2 && strings.HasPrefix(parts[0], "UC-") {
			rows = append(rows, UCRow{ID: parts[0], Name: parts[1]})
		}
	}
	if len(rows) == 0 {
		rows = append(rows, UCRow{ID: prefix + "-01", Name: "Fluxo principal"})
	}
	return rows
}

// splitTableRow splits a markdown table row into trimmed cells.
func splitTableRow(line string) []string {
	line = strings.Trim(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
