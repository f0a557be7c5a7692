// Package pipeline orchestrates the requirements gate: each Run* method is
// one stage invocation that reads tracker state, evaluates the stage policy,
// publishes artifacts, and applies the matching label transition.
//
// Every stage appends exactly one decision record, and the record's decision
// always agrees with the label transition applied in the same invocation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deep-ion/reqgate/internal/artifact"
	"github.com/deep-ion/reqgate/internal/catalog"
	"github.com/deep-ion/reqgate/internal/config"
	"github.com/deep-ion/reqgate/internal/debug"
	"github.com/deep-ion/reqgate/internal/decision"
	"github.com/deep-ion/reqgate/internal/gate"
	"github.com/deep-ion/reqgate/internal/ledger"
	"github.com/deep-ion/reqgate/internal/similarity"
	"github.com/deep-ion/reqgate/internal/textgen"
	"github.com/deep-ion/reqgate/internal/tracker"
)

// Skill identifiers stamped on decision records, one per stage.
const (
	SkillDedup    = "SKILL-REQ-00"
	SkillAnalysis = "SKILL-REQ-01"
	SkillModeling = "SKILL-REQ-02"
)

// ErrMissingBAR is returned by RunModeling when the issue has no published
// business-analysis artifact. Stage 2 never synthesizes use cases without one.
var ErrMissingBAR = errors.New("approved BAR not found on issue")

// Tracker is the tracker surface the pipeline drives.
type Tracker interface {
	FetchIssue(ctx context.Context, number int) (*tracker.Issue, error)
	ListComments(ctx context.Context, number int) ([]tracker.Comment, error)
	PostComment(ctx context.Context, number int, body string) (*tracker.Comment, error)
	GetLabels(ctx context.Context, number int) ([]string, error)
	SetLabels(ctx context.Context, number int, labels []string) error
	ListRecentIssues(ctx context.Context, state string) ([]tracker.Issue, error)
}

// Pipeline wires the stages to a tracker, a catalog, and an optional text
// generator. A nil Generator means deterministic fallback documents only.
type Pipeline struct {
	Tracker    Tracker
	Generator  textgen.Generator
	Catalog    *catalog.Catalog
	Threshold  float64
	PromptsDir string
	Clock      func() time.Time
}

// New creates a pipeline with default catalog, threshold, and clock.
func New(t Tracker) *Pipeline {
	return &Pipeline{
		Tracker:    t,
		Catalog:    catalog.Builtin(),
		Threshold:  similarity.DefaultThreshold,
		PromptsDir: config.DefaultPromptsDir,
		Clock:      time.Now,
	}
}

func (p *Pipeline) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now()
}

// transition applies the target gate state to the issue's labels.
func (p *Pipeline) transition(ctx context.Context, number int, target gate.State) error {
	current, err := p.Tracker.GetLabels(ctx, number)
	if err != nil {
		return err
	}
	next := gate.Transition(current, target)
	debug.Logf("pipeline: issue #%d labels %v -> %v\n", number, current, next)
	return p.Tracker.SetLabels(ctx, number, next)
}

// DedupResult reports the stage-0 outcome to the caller.
type DedupResult struct {
	Blocked bool
	Report  string
}

// RunDedup executes stage 0: duplicate and conflict detection.
func (p *Pipeline) RunDedup(ctx context.Context, number int) (*DedupResult, error) {
	var (
		issue  *tracker.Issue
		corpus []tracker.Issue
		open   []tracker.Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issue, err = p.Tracker.FetchIssue(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		corpus, err = p.Tracker.ListRecentIssues(gctx, "all")
		return err
	})
	g.Go(func() error {
		var err error
		open, err = p.Tracker.ListRecentIssues(gctx, "open")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("dedup stage: %w", err)
	}

	text := issue.Title + "\n" + issue.Body

	var fragments []similarity.Fragment
	for i := range corpus {
		fragments = append(fragments, similarity.ExtractFragments(corpus[i].Body, corpus[i].Number, corpus[i].Title)...)
	}
	matches := similarity.NewIndex(fragments).FindSimilar(text, p.Threshold)

	recent := make([]decision.RecentIssue, 0, len(open))
	for i := range open {
		var created time.Time
		if open[i].CreatedAt != nil {
			created = *open[i].CreatedAt
		}
		recent = append(recent, decision.RecentIssue{
			Number:    open[i].Number,
			Title:     open[i].Title,
			Body:      open[i].Body,
			CreatedAt: created,
		})
	}

	res := decision.EvaluateStage0(decision.Stage0Input{
		IssueNumber: number,
		Title:       issue.Title,
		Body:        issue.Body,
		Matches:     matches,
		Recent:      recent,
		Now:         p.now(),
	}, p.Catalog)

	report := dedupReport(number, matches, res)
	if _, err := p.Tracker.PostComment(ctx, number, report); err != nil {
		return nil, fmt.Errorf("dedup stage: post report: %w", err)
	}

	target := gate.StateDuplicatesChecked
	decisionType := ledger.TypeAlert
	verdict := ledger.DecisionAdvance
	if res.ShouldBlock {
		target = gate.StateBlockedRuleViolation
		decisionType = ledger.TypeBlock
		verdict = ledger.DecisionBlock
	}
	if err := p.transition(ctx, number, target); err != nil {
		return nil, fmt.Errorf("dedup stage: labels: %w", err)
	}

	rec := ledger.Record{
		Skill:           SkillDedup,
		IssueID:         strconv.Itoa(number),
		DecisionType:    decisionType,
		Decision:        verdict,
		Confidence:      res.Confidence,
		RulesTriggered:  res.Triggered,
		ModulesAffected: res.Modules,
		ApprovalWeight:  0.0,
		Justification:   res.Justification(),
		Artifacts:       []string{fmt.Sprintf("DuplicateReport-%d", number)},
		LGPDScope:       false,
	}
	if _, err := p.Tracker.PostComment(ctx, number, rec.Markdown(p.now())); err != nil {
		return nil, fmt.Errorf("dedup stage: post decision record: %w", err)
	}

	return &DedupResult{Blocked: res.ShouldBlock, Report: report}, nil
}

// AnalysisResult reports the stage-A outcome to the caller.
type AnalysisResult struct {
	Escalated bool
	BAR       string
}

// RunAnalysis executes stage A: business analysis and checkpoint decision.
func (p *Pipeline) RunAnalysis(ctx context.Context, number int) (*AnalysisResult, error) {
	var (
		issue    *tracker.Issue
		comments []tracker.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issue, err = p.Tracker.FetchIssue(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = p.Tracker.ListComments(gctx, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis stage: %w", err)
	}

	issueText := issue.Title + "\n" + issue.Body
	duplicateReport, _ := artifact.Latest(tracker.CommentBodies(comments), artifact.KindDuplicateReport)

	head := textgen.BARPromptHead(p.PromptsDir)
	prompt := textgen.BARPrompt(head, p.Catalog.Markdown(), number, issue.Title, issue.Body, duplicateReport)
	fallback := artifact.FallbackBAR(number, issue.Title, issue.Body, duplicateReport, p.Catalog, p.now())
	bar := textgen.GenerateOr(ctx, p.Generator, prompt, fallback, func(s string) bool {
		return strings.HasPrefix(s, "## BAR-")
	})

	if _, err := p.Tracker.PostComment(ctx, number, bar); err != nil {
		return nil, fmt.Errorf("analysis stage: post BAR: %w", err)
	}

	res := decision.EvaluateAnalysis(bar, issueText)

	target := gate.StateAnalysisPending
	verdict := ledger.DecisionAdvance
	justification := "BAR gerado para revisão humana"
	if res.ShouldEscalate {
		target = gate.StateEscalatedQA
		verdict = ledger.DecisionEscalate
		justification = "Checkpoint A bloqueado por ambiguidades críticas/LGPD/confiança"
	}
	if err := p.transition(ctx, number, target); err != nil {
		return nil, fmt.Errorf("analysis stage: labels: %w", err)
	}

	rec := ledger.Record{
		Skill:           SkillAnalysis,
		IssueID:         strconv.Itoa(number),
		DecisionType:    ledger.TypeCheckpoint,
		Decision:        verdict,
		Confidence:      res.Confidence,
		RulesTriggered:  p.Catalog.MatchText(issueText),
		ModulesAffected: []string{"transacao"},
		ApprovalWeight:  decision.CheckpointWeight,
		Justification:   justification,
		Artifacts:       []string{fmt.Sprintf("BAR-%d", number)},
		LGPDScope:       res.LGPD,
	}
	if _, err := p.Tracker.PostComment(ctx, number, rec.Markdown(p.now())); err != nil {
		return nil, fmt.Errorf("analysis stage: post decision record: %w", err)
	}

	return &AnalysisResult{Escalated: res.ShouldEscalate, BAR: bar}, nil
}

// ModelingResult reports the stage-2 outcome to the caller.
type ModelingResult struct {
	LGPDBlocked bool
	Document    string
}

// RunModeling executes stage 2: use-case modeling from the approved BAR.
func (p *Pipeline) RunModeling(ctx context.Context, number int) (*ModelingResult, error) {
	comments, err := p.Tracker.ListComments(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("modeling stage: %w", err)
	}

	bar, ok := artifact.Latest(tracker.CommentBodies(comments), artifact.KindBAR)
	if !ok {
		return nil, fmt.Errorf("modeling stage: issue #%d: %w", number, ErrMissingBAR)
	}
	rules := artifact.Rules(bar)

	// Regulated-scope short-circuit: no generation, no use-case artifact.
	if artifact.DeclaresLGPD(bar) {
		rec := ledger.Record{
			Skill:           SkillModeling,
			IssueID:         strconv.Itoa(number),
			DecisionType:    ledger.TypeGate,
			Decision:        ledger.DecisionEscalate,
			Confidence:      decision.GateLGPDConfidence,
			RulesTriggered:  rules,
			ModulesAffected: []string{"transacao"},
			ApprovalWeight:  0.0,
			Justification:   "LGPD detectado sem aprovação humana explícita.",
			Artifacts:       []string{},
			LGPDScope:       true,
		}
		if _, err := p.Tracker.PostComment(ctx, number, rec.Markdown(p.now())); err != nil {
			return nil, fmt.Errorf("modeling stage: post decision record: %w", err)
		}
		if err := p.transition(ctx, number, gate.StateEscalatedRegulated); err != nil {
			return nil, fmt.Errorf("modeling stage: labels: %w", err)
		}
		return &ModelingResult{LGPDBlocked: true}, nil
	}

	classification := artifact.Classification(bar)

	head := textgen.UCPromptHead(p.PromptsDir)
	prompt := textgen.UCPrompt(head, bar, number, classification)
	fallback := artifact.FallbackUseCase(number, classification, bar, p.Catalog)
	doc := textgen.GenerateOr(ctx, p.Generator, prompt, fallback, func(s string) bool {
		return strings.HasPrefix(s, "## UC-")
	})

	// Deterministic complement: every triggered rule's canonical failure
	// message must appear in the published document.
	missing := artifact.MissingFailures(doc, rules, p.Catalog)
	doc = artifact.AppendComplement(doc, missing, p.Catalog)

	if _, err := p.Tracker.PostComment(ctx, number, doc); err != nil {
		return nil, fmt.Errorf("modeling stage: post document: %w", err)
	}
	if err := p.transition(ctx, number, gate.StateGate2Ready); err != nil {
		return nil, fmt.Errorf("modeling stage: labels: %w", err)
	}

	rec := ledger.Record{
		Skill:           SkillModeling,
		IssueID:         strconv.Itoa(number),
		DecisionType:    ledger.TypeGate,
		Decision:        ledger.DecisionAdvance,
		Confidence:      decision.GateConfidence,
		RulesTriggered:  rules,
		ModulesAffected: []string{"transacao"},
		ApprovalWeight:  0.0,
		Justification:   "UCs canônicos e matriz publicados para Gate 2.",
		Artifacts:       []string{fmt.Sprintf("UC-%d", number), "Matriz de Rastreabilidade"},
		LGPDScope:       false,
	}
	if _, err := p.Tracker.PostComment(ctx, number, rec.Markdown(p.now())); err != nil {
		return nil, fmt.Errorf("modeling stage: post decision record: %w", err)
	}

	return &ModelingResult{LGPDBlocked: false, Document: doc}, nil
}

// StatusReport summarizes an issue's gate position for display.
type StatusReport struct {
	Issue        *tracker.Issue
	Labels       []string
	State        gate.State
	HasDupReport bool
	HasBAR       bool
	HasUseCases  bool
	LatestRecord *ledger.Payload
}

// Status collects the issue's current pipeline state without side effects.
func (p *Pipeline) Status(ctx context.Context, number int) (*StatusReport, error) {
	var (
		issue    *tracker.Issue
		comments []tracker.Comment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		issue, err = p.Tracker.FetchIssue(gctx, number)
		return err
	})
	g.Go(func() error {
		var err error
		comments, err = p.Tracker.ListComments(gctx, number)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("status: %w", err)
	}

	bodies := tracker.CommentBodies(comments)
	labels := tracker.LabelNames(issue.Labels)

	report := &StatusReport{
		Issue:  issue,
		Labels: labels,
		State:  gate.FromLabels(labels),
	}
	_, report.HasDupReport = artifact.Latest(bodies, artifact.KindDuplicateReport)
	_, report.HasBAR = artifact.Latest(bodies, artifact.KindBAR)
	_, report.HasUseCases = artifact.Latest(bodies, artifact.KindUseCase)
	if payload, ok := ledger.Latest(bodies); ok {
		report.LatestRecord = &payload
	}
	return report, nil
}
