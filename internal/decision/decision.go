// Package decision implements the per-stage evaluation policies: what each
// pipeline stage concludes from an issue, its artifacts, and the catalog.
//
// The policies are deterministic and side-effect free; the pipeline package
// turns their results into posted artifacts and label transitions.
package decision

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/deep-ion/reqgate/internal/artifact"
	"github.com/deep-ion/reqgate/internal/catalog"
	"github.com/deep-ion/reqgate/internal/conflict"
	"github.com/deep-ion/reqgate/internal/similarity"
)

// Stage confidence and weight constants, one set per decision record kind.
const (
	Stage0BlockConfidence = 0.7
	Stage0AlertConfidence = 0.9

	CheckpointWeight        = 0.4
	CheckpointMinConfidence = 0.65

	GateConfidence     = 0.8
	GateLGPDConfidence = 0.6
)

// ParallelWindow is how far back stage 0 looks for open issues touching the
// same modules.
const ParallelWindow = 30 * 24 * time.Hour

// Default trigger scope when the issue text names no known module or action.
// Stage 0 then evaluates the full catalog surface instead of nothing, so an
// issue written without catalog vocabulary still gets every rule considered.
var (
	defaultModules = []string{"transacao", "conta", "categoria", "relatorio", "orcamento", "meta"}
	defaultActions = []string{"analisar"}
)

// RecentIssue is the slice of tracker state stage 0 needs for parallel-work
// detection.
type RecentIssue struct {
	Number    int
	Title     string
	Body      string
	CreatedAt time.Time
}

// Stage0Input carries everything the dedup stage evaluates.
type Stage0Input struct {
	IssueNumber int
	Title       string
	Body        string
	Matches     []similarity.Match // duplicates at or above threshold
	Recent      []RecentIssue      // open issues, newest first
	Now         time.Time
}

// Stage0Result is the dedup stage's verdict.
type Stage0Result struct {
	Modules   []string
	Actions   []string
	Triggered []string // rule IDs in scope for this issue
	Conflicts []string // rule IDs with explicit violations in the text

	ParallelWarnings      []string
	DependencyWarnings    []string
	ClassificationWarning string
	EstimatedTier         string

	DuplicateCritical bool
	RuleViolation     bool
	ShouldBlock       bool
	Confidence        float64
}

// EvaluateStage0 runs the dedup-stage policy over the issue text.
func EvaluateStage0(in Stage0Input, cat *catalog.Catalog) Stage0Result {
	text := in.Title + "\n" + in.Body

	res := Stage0Result{
		Modules:   cat.ModulesIn(text),
		Actions:   cat.ActionsIn(text),
		Conflicts: conflict.Detect(text),
	}

	modules := res.Modules
	if len(modules) == 0 {
		modules = defaultModules
	}
	actions := res.Actions
	if len(actions) == 0 {
		actions = defaultActions
	}
	triggered := make(map[string]bool)
	for _, module := range modules {
		for _, action := range actions {
			for _, rn := range cat.Lookup(module, action) {
				triggered[rn] = true
			}
		}
	}
	for rn := range triggered {
		res.Triggered = append(res.Triggered, rn)
	}
	sort.Strings(res.Triggered)

	res.ParallelWarnings = parallelWarnings(in, res.Modules)
	res.DependencyWarnings = dependencyWarnings(text, knownUCIDs(in.Matches))
	res.EstimatedTier = estimateTier(text, res.Triggered)
	res.ClassificationWarning = tierWarning(text, res.EstimatedTier)

	res.DuplicateCritical = len(in.Matches) > 0 && len(res.Triggered) > 0 && len(res.Modules) > 0
	res.RuleViolation = len(res.Conflicts) > 0
	res.ShouldBlock = res.DuplicateCritical || res.RuleViolation

	res.Confidence = Stage0AlertConfidence
	if len(res.Conflicts) > 0 {
		res.Confidence = Stage0BlockConfidence
	}

	return res
}

// Justification names the strongest reason behind the stage-0 verdict.
func (r Stage0Result) Justification() string {
	switch {
	case r.RuleViolation:
		return "Violação de RN detectada"
	case r.DuplicateCritical:
		return "Duplicata crítica detectada"
	default:
		return "Sem bloqueios"
	}
}

func knownUCIDs(matches []similarity.Match) []string {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.UCID
	}
	return ids
}

func parallelWarnings(in Stage0Input, modules []string) []string {
	if len(modules) == 0 {
		return nil
	}
	cutoff := in.Now.Add(-ParallelWindow)
	var warnings []string
	for _, issue := range in.Recent {
		if issue.Number == in.IssueNumber {
			continue
		}
		if issue.CreatedAt.IsZero() || issue.CreatedAt.Before(cutoff) {
			continue
		}
		content := strings.ToLower(issue.Title + "\n" + issue.Body)
		var overlaps []string
		for _, module := range modules {
			if strings.Contains(content, module) {
				overlaps = append(overlaps, module)
			}
		}
		if len(overlaps) > 0 {
			warnings = append(warnings, fmt.Sprintf("Issue #%d com módulos em paralelo: %s", issue.Number, strings.Join(overlaps, ", ")))
		}
	}
	return warnings
}

var ucRefPattern = regexp.MustCompile(`UC-[A-Za-z0-9._-]+`)

func dependencyWarnings(text string, knownUCIDs []string) []string {
	known := make(map[string]bool, len(knownUCIDs))
	for _, id := range knownUCIDs {
		known[id] = true
	}
	missing := make(map[string]bool)
	for _, dep := range ucRefPattern.FindAllString(text, -1) {
		if !known[dep] {
			missing[dep] = true
		}
	}
	var sorted []string
	for dep := range missing {
		sorted = append(sorted, dep)
	}
	sort.Strings(sorted)
	var warnings []string
	for _, dep := range sorted {
		warnings = append(warnings, "Dependência não implementada: "+dep)
	}
	return warnings
}

var tierPattern = regexp.MustCompile(`\bT([0-3])\b`)

func estimateTier(text string, triggered []string) string {
	if m := tierPattern.FindStringSubmatch(strings.ToUpper(text)); m != nil {
		return "T" + m[1]
	}
	for _, rn := range triggered {
		switch rn {
		case "RN-01", "RN-02", "RN-03":
			return "T2"
		}
	}
	if len(triggered) > 0 {
		return "T1"
	}
	return "T0"
}

func tierWarning(text, estimated string) string {
	m := tierPattern.FindStringSubmatch(strings.ToUpper(text))
	if m == nil {
		return ""
	}
	declared := "T" + m[1]
	if declared == estimated {
		return ""
	}
	return fmt.Sprintf("Classificação divergente: declarada %s, estimada %s (sugestão: /reclassify).", declared, estimated)
}

// AnalysisResult is the checkpoint-A verdict over a published BAR.
type AnalysisResult struct {
	Confidence        float64
	LGPD              bool
	CriticalAmbiguity bool
	ShouldEscalate    bool
}

// EvaluateAnalysis runs the checkpoint-A policy: escalate to human QA on low
// confidence, regulated-data scope, or unresolved critical ambiguity.
func EvaluateAnalysis(bar, issueText string) AnalysisResult {
	res := AnalysisResult{
		Confidence:        artifact.Confidence(bar),
		LGPD:              lgpdScope(bar, issueText),
		CriticalAmbiguity: hasCriticalAmbiguity(bar),
	}
	res.ShouldEscalate = res.Confidence < CheckpointMinConfidence || res.LGPD || res.CriticalAmbiguity
	return res
}

var lgpdTextPattern = regexp.MustCompile(`(?i)lgpd|cpf|cnpj|dados pessoais`)

func lgpdScope(bar, issueText string) bool {
	if artifact.DeclaresLGPD(bar) {
		return true
	}
	return lgpdTextPattern.MatchString(issueText)
}

const ambiguityMarker = "Ambiguidades não resolvidas"

// criticalTerms flag an ambiguity section that cannot be waved through: it
// touches the main flow, a business rule, or something explicitly undefined.
var criticalTerms = []string{"crítica", "critica", "fluxo principal", "rn", "não definido", "nao definido"}

func hasCriticalAmbiguity(bar string) bool {
	_, section, found := strings.Cut(bar, ambiguityMarker)
	if !found {
		return true
	}
	runes := []rune(section)
	if len(runes) > 500 {
		runes = runes[:500]
	}
	lowered := strings.ToLower(string(runes))
	for _, term := range criticalTerms {
		if strings.Contains(lowered, term) {
			return true
		}
	}
	return false
}
