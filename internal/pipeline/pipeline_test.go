package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/deep-ion/reqgate/internal/artifact"
	"github.com/deep-ion/reqgate/internal/gate"
	"github.com/deep-ion/reqgate/internal/ledger"
	"github.com/deep-ion/reqgate/internal/textgen"
	"github.com/deep-ion/reqgate/internal/tracker"
)

var testNow = time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)

// fakeTracker is an in-memory Tracker for stage tests.
type fakeTracker struct {
	issues  map[int]*tracker.Issue
	labels  map[int][]string
	history map[int][]tracker.Comment
	recent  map[string][]tracker.Issue
	posted  map[int][]string
}

func newFakeTracker() *fakeTracker {
	return &fakeTracker{
		issues:  make(map[int]*tracker.Issue),
		labels:  make(map[int][]string),
		history: make(map[int][]tracker.Comment),
		recent:  make(map[string][]tracker.Issue),
		posted:  make(map[int][]string),
	}
}

func (f *fakeTracker) addIssue(number int, title, body string, labels ...string) {
	f.issues[number] = &tracker.Issue{Number: number, Title: title, Body: body, State: "open"}
	f.labels[number] = labels
}

func (f *fakeTracker) FetchIssue(_ context.Context, number int) (*tracker.Issue, error) {
	issue, ok := f.issues[number]
	if !ok {
		return nil, fmt.Errorf("issue #%d not found", number)
	}
	copied := *issue
	for _, name := range f.labels[number] {
		copied.Labels = append(copied.Labels, tracker.Label{Name: name})
	}
	return &copied, nil
}

func (f *fakeTracker) ListComments(_ context.Context, number int) ([]tracker.Comment, error) {
	return f.history[number], nil
}

func (f *fakeTracker) PostComment(_ context.Context, number int, body string) (*tracker.Comment, error) {
	comment := tracker.Comment{ID: len(f.history[number]) + 1, Body: body}
	f.history[number] = append(f.history[number], comment)
	f.posted[number] = append(f.posted[number], body)
	return &comment, nil
}

func (f *fakeTracker) GetLabels(_ context.Context, number int) ([]string, error) {
	return f.labels[number], nil
}

func (f *fakeTracker) SetLabels(_ context.Context, number int, labels []string) error {
	f.labels[number] = labels
	return nil
}

func (f *fakeTracker) ListRecentIssues(_ context.Context, state string) ([]tracker.Issue, error) {
	return f.recent[state], nil
}

func newTestPipeline(f *fakeTracker) *Pipeline {
	p := New(f)
	p.Clock = func() time.Time { return testNow }
	return p
}

func latestRecord(t *testing.T, f *fakeTracker, number int) ledger.Payload {
	t.Helper()
	payload, ok := ledger.Latest(f.posted[number])
	if !ok {
		t.Fatal("no decision record posted")
	}
	return payload
}

func TestRunDedupClean(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo entre contas próprias.", "bug")

	res, err := newTestPipeline(f).RunDedup(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunDedup() error: %v", err)
	}
	if res.Blocked {
		t.Error("clean issue must not block")
	}
	if !strings.Contains(res.Report, "**Resultado:** LIMPO") {
		t.Errorf("report verdict missing: %q", res.Report)
	}
	if !strings.Contains(res.Report, "Nenhuma duplicata acima de 80%.") {
		t.Error("report must state no duplicates")
	}

	want := []string{"bug", gate.LabelDuplicatesChecked}
	if !reflect.DeepEqual(f.labels[42], want) {
		t.Errorf("labels = %v, want %v", f.labels[42], want)
	}

	if len(f.posted[42]) != 2 {
		t.Fatalf("posted %d comments, want report + decision record", len(f.posted[42]))
	}
	rec := latestRecord(t, f, 42)
	if rec.Skill != SkillDedup || rec.Decision != ledger.DecisionAdvance {
		t.Errorf("record = %+v", rec)
	}
	if rec.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", rec.Confidence)
	}
	if rec.DecisionType != ledger.TypeAlert {
		t.Errorf("DecisionType = %v, want alert", rec.DecisionType)
	}
}

func TestRunDedupRuleViolationBlocks(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Excluir transação confirmada sem aprovação", "Permitir que o usuário remova qualquer transação.")

	res, err := newTestPipeline(f).RunDedup(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunDedup() error: %v", err)
	}
	if !res.Blocked {
		t.Fatal("explicit violation must block")
	}
	if !strings.Contains(res.Report, "**Resultado:** BLOQUEADO") {
		t.Error("report must state BLOQUEADO")
	}
	if !strings.Contains(res.Report, "RN-03") {
		t.Error("report must name the violated rule")
	}

	if !reflect.DeepEqual(f.labels[42], []string{gate.LabelBlockedRuleViolation}) {
		t.Errorf("labels = %v, want only the blocked label", f.labels[42])
	}

	rec := latestRecord(t, f, 42)
	if rec.Decision != ledger.DecisionBlock || rec.DecisionType != ledger.TypeBlock {
		t.Errorf("record = %+v", rec)
	}
	if rec.Confidence != 0.7 {
		t.Errorf("Confidence = %v, want 0.7", rec.Confidence)
	}
	if rec.Justification != "Violação de RN detectada" {
		t.Errorf("Justification = %q", rec.Justification)
	}
}

func TestRunDedupDuplicateCritical(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo entre contas.")
	f.recent["all"] = []tracker.Issue{{
		Number: 10,
		Title:  "Spec de transferências",
		Body:   "## UC-10-01: Transferir saldo entre contas\nPermite transferir saldo entre contas.",
	}}

	res, err := newTestPipeline(f).RunDedup(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunDedup() error: %v", err)
	}
	if !res.Blocked {
		t.Fatal("near-identical prior use case must block")
	}
	if !strings.Contains(res.Report, "| #10 | UC-10-01 |") {
		t.Errorf("report must list the duplicate:\n%s", res.Report)
	}

	rec := latestRecord(t, f, 42)
	if rec.Justification != "Duplicata crítica detectada" {
		t.Errorf("Justification = %q", rec.Justification)
	}
	// No explicit conflict: block verdict with alert-level confidence.
	if rec.Confidence != 0.9 {
		t.Errorf("Confidence = %v, want 0.9", rec.Confidence)
	}
}

func TestRunDedupRerunClearsBlock(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo entre contas próprias.", gate.LabelBlockedRuleViolation, "bug")

	if _, err := newTestPipeline(f).RunDedup(context.Background(), 42); err != nil {
		t.Fatalf("RunDedup() error: %v", err)
	}
	want := []string{"bug", gate.LabelDuplicatesChecked}
	if !reflect.DeepEqual(f.labels[42], want) {
		t.Errorf("labels = %v, want %v", f.labels[42], want)
	}
}

func TestRunAnalysisFallbackEscalates(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo.", gate.LabelDuplicatesChecked)
	f.history[42] = []tracker.Comment{{ID: 1, Body: "## DuplicateReport-42\n**Resultado:** LIMPO"}}

	res, err := newTestPipeline(f).RunAnalysis(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunAnalysis() error: %v", err)
	}
	// The deterministic BAR always lists open ambiguities, so the
	// checkpoint escalates for human review.
	if !res.Escalated {
		t.Error("fallback BAR must escalate")
	}
	if !strings.HasPrefix(res.BAR, "## BAR-42: Análise Negocial") {
		t.Errorf("unexpected BAR heading:\n%s", res.BAR)
	}
	if !strings.Contains(res.BAR, "## DuplicateReport-42") {
		t.Error("BAR must embed the duplicate report")
	}

	want := []string{gate.LabelBlockedQA, gate.LabelAnalysisPending, gate.LabelDuplicatesChecked}
	if !reflect.DeepEqual(f.labels[42], want) {
		t.Errorf("labels = %v, want %v", f.labels[42], want)
	}

	rec := latestRecord(t, f, 42)
	if rec.Skill != SkillAnalysis || rec.DecisionType != ledger.TypeCheckpoint || rec.Decision != ledger.DecisionEscalate {
		t.Errorf("record = %+v", rec)
	}
	if rec.ApprovalWeight != 0.4 {
		t.Errorf("ApprovalWeight = %v, want 0.4", rec.ApprovalWeight)
	}
}

func TestRunAnalysisGeneratedCleanAdvances(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo.", gate.LabelDuplicatesChecked)

	clean := strings.Join([]string{
		"## BAR-42: Análise Negocial",
		"- Ambiguidades não resolvidas:",
		"  - Nenhuma.",
		"### Meta de Confiança",
		"confidence_score: 0.80",
		"lgpd_scope: false",
	}, "\n")

	p := newTestPipeline(f)
	p.Generator = textgen.Static{Document: clean}

	res, err := p.RunAnalysis(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunAnalysis() error: %v", err)
	}
	if res.Escalated {
		t.Error("clean generated BAR must advance")
	}
	if res.BAR != clean {
		t.Error("generated BAR must be published unchanged")
	}

	want := []string{gate.LabelAnalysisPending, gate.LabelDuplicatesChecked}
	if !reflect.DeepEqual(f.labels[42], want) {
		t.Errorf("labels = %v, want %v", f.labels[42], want)
	}

	rec := latestRecord(t, f, 42)
	if rec.Decision != ledger.DecisionAdvance {
		t.Errorf("Decision = %q", rec.Decision)
	}
	if rec.Confidence != 0.8 {
		t.Errorf("Confidence = %v, want parsed 0.8", rec.Confidence)
	}
}

func TestRunAnalysisMalformedGenerationFallsBack(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo entre contas", "Permite transferir saldo.")

	p := newTestPipeline(f)
	p.Generator = textgen.Static{Document: "desculpe, não consegui gerar o documento"}

	res, err := p.RunAnalysis(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunAnalysis() error: %v", err)
	}
	if !strings.HasPrefix(res.BAR, "## BAR-42: Análise Negocial") {
		t.Error("malformed generation must fall back to the deterministic BAR")
	}
}

func TestRunModelingRequiresBAR(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo", "corpo")
	f.history[42] = []tracker.Comment{{ID: 1, Body: "## DuplicateReport-42\nlimpo"}}

	_, err := newTestPipeline(f).RunModeling(context.Background(), 42)
	if !errors.Is(err, ErrMissingBAR) {
		t.Errorf("err = %v, want ErrMissingBAR", err)
	}
	if len(f.posted[42]) != 0 {
		t.Error("precondition failure must not post anything")
	}
}

func TestRunModelingLGPDShortCircuit(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Armazenar documentos", "corpo", gate.LabelAnalysisPending, gate.LabelDuplicatesChecked)
	f.history[42] = []tracker.Comment{
		{ID: 1, Body: "## BAR-42: Análise Negocial\nmenciona RN-01\nlgpd_scope: true"},
	}

	res, err := newTestPipeline(f).RunModeling(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunModeling() error: %v", err)
	}
	if !res.LGPDBlocked {
		t.Fatal("regulated scope must short-circuit")
	}
	if res.Document != "" {
		t.Error("no use-case document on the regulated path")
	}
	if len(f.posted[42]) != 1 {
		t.Fatalf("posted %d comments, want only the decision record", len(f.posted[42]))
	}

	rec := latestRecord(t, f, 42)
	if rec.Decision != ledger.DecisionEscalate || !rec.LGPDScope {
		t.Errorf("record = %+v", rec)
	}
	if rec.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", rec.Confidence)
	}
	if len(rec.Artifacts) != 0 {
		t.Errorf("Artifacts = %v, want empty", rec.Artifacts)
	}

	for _, label := range []string{gate.LabelBlockedQA, gate.LabelAnalysisPending, gate.LabelDuplicatesChecked} {
		if !containsLabel(f.labels[42], label) {
			t.Errorf("labels %v missing %q", f.labels[42], label)
		}
	}
}

func TestRunModelingFallbackDocument(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo", "corpo", gate.LabelAnalysisPending, gate.LabelDuplicatesChecked)
	bar := strings.Join([]string{
		"## BAR-42: Análise Negocial",
		"Classificação: T2",
		"menciona RN-01 e RN-03",
		"| UC-42-01 | Transferir saldo | Must | N/A |",
	}, "\n")
	f.history[42] = []tracker.Comment{{ID: 1, Body: bar}}

	res, err := newTestPipeline(f).RunModeling(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunModeling() error: %v", err)
	}
	if res.LGPDBlocked {
		t.Fatal("non-regulated BAR must not short-circuit")
	}
	if !strings.HasPrefix(res.Document, "## UC-42-01: Transferir saldo") {
		t.Errorf("unexpected document heading:\n%s", res.Document)
	}
	if !strings.Contains(res.Document, "**Classificação:** T2") {
		t.Error("approved classification must carry into the document")
	}
	if strings.Contains(res.Document, artifact.ComplementHeading) {
		t.Error("deterministic fallback already carries every failure message")
	}

	if !containsLabel(f.labels[42], gate.LabelGate2Ready) {
		t.Errorf("labels %v missing gate label", f.labels[42])
	}
	if containsLabel(f.labels[42], gate.LabelBlockedQA) {
		t.Error("gate-ready transition must clear the QA block")
	}

	rec := latestRecord(t, f, 42)
	if rec.Skill != SkillModeling || rec.Decision != ledger.DecisionAdvance || rec.DecisionType != ledger.TypeGate {
		t.Errorf("record = %+v", rec)
	}
	if !reflect.DeepEqual(rec.RulesTriggered, []string{"RN-01", "RN-03"}) {
		t.Errorf("RulesTriggered = %v", rec.RulesTriggered)
	}
	wantArtifacts := []string{"UC-42", "Matriz de Rastreabilidade"}
	if !reflect.DeepEqual(rec.Artifacts, wantArtifacts) {
		t.Errorf("Artifacts = %v, want %v", rec.Artifacts, wantArtifacts)
	}
}

func TestRunModelingComplementsGeneratedDocument(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo", "corpo")
	f.history[42] = []tracker.Comment{
		{ID: 1, Body: "## BAR-42: Análise Negocial\nmenciona RN-01 e RN-03"},
	}

	p := newTestPipeline(f)
	p.Generator = textgen.Static{Document: "## UC-42-01: Gerado\nFluxo principal sem fluxos de exceção."}

	res, err := p.RunModeling(context.Background(), 42)
	if err != nil {
		t.Fatalf("RunModeling() error: %v", err)
	}
	if !strings.Contains(res.Document, artifact.ComplementHeading) {
		t.Fatal("missing failure messages must be complemented before publication")
	}
	for _, want := range []string{"- RN-01: Saldo Insuficiente", "- RN-03: Tentativa de exclusão de transação confirmada"} {
		if !strings.Contains(res.Document, want) {
			t.Errorf("document missing %q", want)
		}
	}
}

func TestStatus(t *testing.T) {
	f := newFakeTracker()
	f.addIssue(42, "Transferir saldo", "corpo", gate.LabelAnalysisPending, gate.LabelDuplicatesChecked)
	f.history[42] = []tracker.Comment{
		{ID: 1, Body: "## DuplicateReport-42\n**Resultado:** LIMPO"},
		{ID: 2, Body: "## BAR-42: Análise Negocial"},
		{ID: 3, Body: ledger.Record{
			Skill:        SkillAnalysis,
			IssueID:      "42",
			DecisionType: ledger.TypeCheckpoint,
			Decision:     ledger.DecisionAdvance,
			Confidence:   0.8,
		}.Markdown(testNow)},
	}

	report, err := newTestPipeline(f).Status(context.Background(), 42)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if report.State != gate.StateAnalysisPending {
		t.Errorf("State = %v, want analysis pending", report.State)
	}
	if !report.HasDupReport || !report.HasBAR || report.HasUseCases {
		t.Errorf("artifact flags = %v/%v/%v", report.HasDupReport, report.HasBAR, report.HasUseCases)
	}
	if report.LatestRecord == nil || report.LatestRecord.Skill != SkillAnalysis {
		t.Errorf("LatestRecord = %+v", report.LatestRecord)
	}
}

func containsLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

