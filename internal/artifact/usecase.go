package artifact

import (
	"fmt"
	"strings"

	"github.com/deep-ion/reqgate/internal/catalog"
)

// ComplementHeading marks the section appended when a generated use-case
// document omits a triggered rule's canonical failure message.
const ComplementHeading = "### Complemento Determinístico RN→FE"

// FallbackUseCase builds the deterministic use-case document for stage 2:
// one block per provisional use case from the approved BAR, plus the
// traceability matrix. Every triggered rule with a deterministic failure
// message contributes an exception flow, a Gherkin scenario, and a matrix
// row.
func FallbackUseCase(issueNumber int, classification, bar string, cat *catalog.Catalog) string {
	rns := Rules(bar)
	ucRows := UCRows(bar, issueNumber)

	rnList := "N/A"
	if len(rns) > 0 {
		rnList = strings.Join(rns, ", ")
	}

	var blocks strings.Builder
	matrix := []string{
		"## Matriz de Rastreabilidade",
		"| Issue | RN Acionada | UC | Módulo | Cenário Gherkin | Teste Esperado |",
		"|---|---|---|---|---|---|",
	}

	const module = "transacao"

	for _, uc := range ucRows {
		var feRows []string
		gherkin := []string{
			"Scenario: Caminho feliz",
			"Given contexto válido",
			"When o ator executa o fluxo principal",
			"Then o sistema conclui a operação com sucesso",
			"",
		}

		for i, rn := range rns {
			fe, ok := cat.DeterministicFailure(rn)
			if !ok {
				continue
			}
			feIdx := i + 1
			feRows = append(feRows,
				fmt.Sprintf("FE-%d: %s — Bifurca no Passo 2", feIdx, fe),
				fmt.Sprintf("Gatilho: violação de %s", rn),
				fmt.Sprintf("RN Violada: %s", rn),
				fmt.Sprintf("Resposta do Sistema: bloquear operação com mensagem '%s'", fe),
				"",
			)
			gherkin = append(gherkin,
				fmt.Sprintf("Scenario: FE-%d", feIdx),
				fmt.Sprintf("Given condição de violação %s", rn),
				"When o ator tenta executar a ação",
				fmt.Sprintf("Then o sistema retorna '%s'", fe),
				"",
			)
			matrix = append(matrix, fmt.Sprintf(
				"| #%d | %s | %s | %s | FE-%d: %s | `%sServiceTest#deveCobrir%s` |",
				issueNumber, rn, uc.ID, module, feIdx, fe,
				titleCase(module), strings.ReplaceAll(rn, "-", ""),
			))
		}

		exceptionRows := feRows
		if len(exceptionRows) == 0 {
			exceptionRows = []string{"N/A"}
		}

		lines := []string{
			fmt.Sprintf("## %s: %s", uc.ID, uc.Name),
			fmt.Sprintf("**Módulo:** `%s` | **Classificação:** %s | **Versão:** 1.0", module, classification),
			fmt.Sprintf("**RNs Acionadas:** %s", rnList),
			"**Ator Principal:** Usuário de negócio | **Atores Secundários:** Sistema de validação",
			"",
			"### Pré-condições",
			"- Usuário autenticado.",
			"",
			"### Pós-condições de Sucesso",
			"- Estado de negócio persistido.",
			"",
			"### Pós-condições de Falha",
			"- Nenhuma alteração persistida em caso de FE.",
			"",
			"### Fluxo Principal",
			"| Passo | Ator | Ação | Resposta do Sistema |",
			"|---|---|---|---|",
			"| 1 | Usuário | Inicia operação | Sistema valida pré-condições |",
			"| 2 | Usuário | Confirma ação | Sistema aplica regras de negócio |",
			"| 3 | Sistema | Finaliza fluxo | Sistema confirma sucesso |",
			"",
			"### Fluxos Alternativos",
			"FA-1: Dados opcionais ausentes — Bifurca no Passo 1",
			"",
			"### Fluxos de Exceção",
		}
		lines = append(lines, exceptionRows...)
		lines = append(lines,
			"### Invariantes",
			"- Regras RN aplicadas antes de persistência.",
			"",
			"### Critérios de Aceitação — Gherkin",
		)
		lines = append(lines, gherkin...)
		lines = append(lines,
			"### RNFs Aplicáveis",
			"| Atributo | Métrica | Fonte |",
			"|---|---|---|",
			"| Latência | <= 2s por operação | NFR padrão DOM-02 |",
			"| Confiabilidade | 100% aderência RN acionadas | DOM-02_SPEC |",
			"",
			"---",
			"",
		)

		blocks.WriteString(strings.Join(lines, "\n"))
		blocks.WriteString("\n")
	}

	return blocks.String() + strings.Join(matrix, "\n")
}

// MissingFailures returns the triggered rules whose deterministic failure
// message does not appear (case-insensitively) in the document.
func MissingFailures(doc string, rules []string, cat *catalog.Catalog) []string {
	lowered := strings.ToLower(doc)
	var missing []string
	for _, rn := range rules {
		fe, ok := cat.DeterministicFailure(rn)
		if !ok {
			continue
		}
		if !strings.Contains(lowered, strings.ToLower(fe)) {
			missing = append(missing, rn)
		}
	}
	return missing
}

// AppendComplement appends the canonical failure text for each missing rule
// verbatim under the deterministic-complement section. Called before
// publication so the posted document is always complete.
func AppendComplement(doc string, missing []string, cat *catalog.Catalog) string {
	if len(missing) == 0 {
		return doc
	}
	lines := []string{"", ComplementHeading}
	for _, rn := range missing {
		if fe, ok := cat.DeterministicFailure(rn); ok {
			lines = append(lines, fmt.Sprintf("- %s: %s", rn, fe))
		}
	}
	return doc + "\n" + strings.Join(lines, "\n")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
