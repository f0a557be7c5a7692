package similarity

import (
	"math"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestExtractFragments(t *testing.T) {
	body := "intro text\n" +
		"## UC-101-01: Transferir saldo\n" +
		"fluxo principal da transferencia\n" +
		"## UC-101-02: Consultar extrato\n" +
		"consulta simples\n"

	frags := ExtractFragments(body, 101, "Transferências")
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(frags))
	}

	if frags[0].UCID != "UC-101-01" || frags[0].Name != "Transferir saldo" {
		t.Errorf("first fragment = %+v", frags[0])
	}
	if strings.Contains(frags[0].Excerpt, "Consultar extrato") {
		t.Error("first fragment excerpt should stop at the next heading")
	}
	if frags[1].UCID != "UC-101-02" {
		t.Errorf("second fragment = %+v", frags[1])
	}
	if frags[0].IssueNumber != 101 || frags[0].IssueTitle != "Transferências" {
		t.Errorf("fragment source metadata = %+v", frags[0])
	}
}

func TestExtractFragmentsNoHeadings(t *testing.T) {
	if got := ExtractFragments("plain text without use cases", 1, "t"); got != nil {
		t.Errorf("expected no fragments, got %v", got)
	}
	if got := ExtractFragments("", 1, "t"); got != nil {
		t.Errorf("empty body should yield no fragments, got %v", got)
	}
}

func TestExtractFragmentsTruncation(t *testing.T) {
	body := "## UC-9: Longo\n" + strings.Repeat("palavra ", 400)
	frags := ExtractFragments(body, 9, "t")
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}
	if len(frags[0].Excerpt) != 1200 {
		t.Errorf("excerpt length = %d, want capped at 1200", len(frags[0].Excerpt))
	}
}

// The excerpt cap counts runes, not bytes: accented Portuguese text keeps the
// same amount of content and never ends mid-rune.
func TestExtractFragmentsTruncationCountsRunes(t *testing.T) {
	body := "## UC-9: Longo\n" + strings.Repeat("ação ", 300)
	frags := ExtractFragments(body, 9, "t")
	if len(frags) != 1 {
		t.Fatalf("got %d fragments, want 1", len(frags))
	}

	excerpt := frags[0].Excerpt
	if n := utf8.RuneCountInString(excerpt); n != 1200 {
		t.Errorf("excerpt rune count = %d, want capped at 1200", n)
	}
	if !utf8.ValidString(excerpt) {
		t.Error("excerpt must remain valid UTF-8 after truncation")
	}
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("Transação confirmada: ab abc transação!")

	if tokens["transação"] != 2 {
		t.Errorf("transação count = %d, want 2", tokens["transação"])
	}
	if _, ok := tokens["ab"]; ok {
		t.Error("tokens shorter than 3 runes must be dropped")
	}
	if tokens["abc"] != 1 {
		t.Errorf("abc count = %d, want 1", tokens["abc"])
	}
}

func TestCosineProperties(t *testing.T) {
	a := Tokenize("transferir saldo entre contas")
	b := Tokenize("consultar fluxo de caixa consolidado")

	// Symmetric.
	if Cosine(a, b) != Cosine(b, a) {
		t.Error("cosine must be symmetric")
	}

	// Bounded in [0,1].
	for _, v := range []float64{Cosine(a, a), Cosine(a, b)} {
		if v < 0 || v > 1.0000001 {
			t.Errorf("cosine out of range: %v", v)
		}
	}

	// Self-similarity of a non-empty text is 1.0.
	if got := Cosine(a, a); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self similarity = %v, want 1.0", got)
	}

	// Zero-norm and disjoint-vocabulary cases.
	if got := Cosine(a, map[string]int{}); got != 0.0 {
		t.Errorf("similarity with empty vector = %v, want 0", got)
	}
	if got := Cosine(a, b); got != 0.0 {
		t.Errorf("disjoint vocabularies = %v, want 0", got)
	}
}

func TestFindSimilarThreshold(t *testing.T) {
	query := "transferir saldo entre contas com validacao"
	frags := []Fragment{
		{IssueNumber: 1, UCID: "UC-1-01", Excerpt: "transferir saldo entre contas com validacao"},
		{IssueNumber: 2, UCID: "UC-2-01", Excerpt: "transferir saldo entre contas"},
		{IssueNumber: 3, UCID: "UC-3-01", Excerpt: "relatorio mensal de categorias"},
	}
	ix := NewIndex(frags)

	matches := ix.FindSimilar(query, DefaultThreshold)
	for _, m := range matches {
		if m.Similarity < DefaultThreshold {
			t.Errorf("match below threshold: %v", m.Similarity)
		}
	}
	if len(matches) == 0 || matches[0].UCID != "UC-1-01" {
		t.Fatalf("expected exact fragment first, got %v", matches)
	}
	if matches[0].Similarity != 1.0 {
		t.Errorf("exact match similarity = %v, want 1.0", matches[0].Similarity)
	}

	// Raising the threshold is monotonically non-increasing in result count.
	prev := len(ix.FindSimilar(query, 0.0))
	for _, th := range []float64{0.2, 0.5, 0.8, 0.95, 1.0} {
		n := len(ix.FindSimilar(query, th))
		if n > prev {
			t.Errorf("threshold %v returned %d matches, more than %d at lower threshold", th, n, prev)
		}
		prev = n
	}
}

func TestFindSimilarEmptyQuery(t *testing.T) {
	ix := NewIndex([]Fragment{{UCID: "UC-1-01", Excerpt: "qualquer coisa relevante"}})
	if got := ix.FindSimilar("", 0.0); got != nil {
		t.Errorf("empty query must yield no matches, got %v", got)
	}
	if got := ix.FindSimilar("a b c", 0.0); got != nil {
		t.Errorf("query with only short tokens must yield no matches, got %v", got)
	}
}

func TestFindSimilarOrderingStable(t *testing.T) {
	// Two identical excerpts tie; discovery order must be preserved.
	frags := []Fragment{
		{IssueNumber: 5, UCID: "UC-5-01", Excerpt: "cancelar pagamento agendado"},
		{IssueNumber: 6, UCID: "UC-6-01", Excerpt: "cancelar pagamento agendado"},
	}
	matches := NewIndex(frags).FindSimilar("cancelar pagamento agendado", 0.5)
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].UCID != "UC-5-01" || matches[1].UCID != "UC-6-01" {
		t.Errorf("tie order not stable: %v, %v", matches[0].UCID, matches[1].UCID)
	}
}
