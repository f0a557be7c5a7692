package pipeline

import (
	"fmt"
	"strings"

	"github.com/deep-ion/reqgate/internal/decision"
	"github.com/deep-ion/reqgate/internal/similarity"
)

// maxReportedMatches caps the V1 table; lower-ranked duplicates add noise
// without changing the verdict.
const maxReportedMatches = 10

// dedupReport renders the stage-0 verification report (sections V1..V5).
func dedupReport(number int, matches []similarity.Match, res decision.Stage0Result) string {
	lines := []string{
		fmt.Sprintf("## DuplicateReport-%d", number),
		fmt.Sprintf("**Issue:** #%d", number),
		"",
		"### V1 — Duplicatas semânticas",
	}
	if len(matches) > 0 {
		lines = append(lines, "| Issue | UC | Similaridade |", "|---|---|---|")
		for i, m := range matches {
			if i == maxReportedMatches {
				break
			}
			lines = append(lines, fmt.Sprintf("| #%d | %s | %.2f |", m.IssueNumber, m.UCID, m.Similarity))
		}
	} else {
		lines = append(lines, "Nenhuma duplicata acima de 80%.")
	}

	lines = append(lines, "", "### V2 — Conflitos com RN")
	if len(res.Conflicts) > 0 {
		lines = append(lines, strings.Join(res.Conflicts, ", "))
	} else {
		lines = append(lines, "Nenhum conflito explícito detectado.")
	}

	lines = append(lines, "", "### V3 — Issues paralelas (30 dias)")
	if len(res.ParallelWarnings) > 0 {
		lines = append(lines, res.ParallelWarnings...)
	} else {
		lines = append(lines, "Nenhuma issue paralela relevante detectada.")
	}

	lines = append(lines, "", "### V4 — Dependências de UC")
	if len(res.DependencyWarnings) > 0 {
		lines = append(lines, res.DependencyWarnings...)
	} else {
		lines = append(lines, "Sem dependências explícitas pendentes.")
	}

	lines = append(lines, "", "### V5 — Classificação")
	if res.ClassificationWarning != "" {
		lines = append(lines, res.ClassificationWarning)
	} else {
		lines = append(lines, "Classificação consistente.")
	}

	verdict := "LIMPO"
	if res.ShouldBlock {
		verdict = "BLOQUEADO"
	}
	lines = append(lines, "", "**Resultado:** "+verdict)

	return strings.Join(lines, "\n")
}
