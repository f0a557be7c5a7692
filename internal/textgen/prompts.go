package textgen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Default prompt heads. A prompts directory can override them per document
// kind; the runtime context sections are always appended in a fixed order so
// regenerated documents stay comparable across runs.
const (
	defaultBARPrompt = `Você vai produzir um BAR (Business Analysis Report) em markdown para a issue abaixo.

Regras:
- O documento DEVE começar com "## BAR-<numero-da-issue>: Análise Negocial".
- Liste as regras de negócio do catálogo inline que a demanda aciona, com impacto e possíveis conflitos.
- Liste ambiguidades não resolvidas sob "Ambiguidades não resolvidas:".
- Termine com a seção "### Meta de Confiança" contendo confidence_score (0.0-1.0), confidence_dimensions e lgpd_scope (true/false).
- Responda somente com o markdown do BAR, sem comentários adicionais.`

	defaultUCPrompt = `Você vai produzir a especificação de Use Cases em markdown a partir do BAR aprovado abaixo.

Regras:
- O documento DEVE começar com "## UC-<id>: <nome>".
- Um bloco por use case provisório do BAR: pré-condições, pós-condições, fluxo principal em tabela, fluxos alternativos, fluxos de exceção e cenários Gherkin.
- Cada RN acionada com mensagem de falha determinística gera um fluxo de exceção com a mensagem exata.
- Termine com a seção "## Matriz de Rastreabilidade".
- Responda somente com o markdown, sem comentários adicionais.`
)

// LoadPrompt reads a prompt head from path, falling back to def when the file
// is absent or unreadable.
func LoadPrompt(path, def string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return def
	}
	return string(data)
}

// BARPromptHead returns the stage-A prompt head, preferring
// <dir>/bar_generation.md over the embedded default.
func BARPromptHead(dir string) string {
	return LoadPrompt(filepath.Join(dir, "bar_generation.md"), defaultBARPrompt)
}

// UCPromptHead returns the stage-2 prompt head, preferring
// <dir>/uc_generation.md over the embedded default.
func UCPromptHead(dir string) string {
	return LoadPrompt(filepath.Join(dir, "uc_generation.md"), defaultUCPrompt)
}

// BARPrompt assembles the full stage-A prompt: instruction head, the inline
// rule catalog, the issue context, and the stage-0 duplicate report.
func BARPrompt(head, catalogMarkdown string, issueNumber int, title, body, duplicateReport string) string {
	if duplicateReport == "" {
		duplicateReport = "N/A"
	}
	return strings.Join([]string{
		head,
		"## Catálogo RN inline",
		catalogMarkdown,
		"## Contexto da Issue",
		fmt.Sprintf("issue_number: %d", issueNumber),
		fmt.Sprintf("issue_title: %s", title),
		fmt.Sprintf("issue_body:\n%s", body),
		"## DuplicateReport",
		duplicateReport,
	}, "\n\n")
}

// UCPrompt assembles the full stage-2 prompt from the approved BAR.
func UCPrompt(head, bar string, issueNumber int, classification string) string {
	return strings.Join([]string{
		head,
		"## BAR aprovado",
		bar,
		fmt.Sprintf("issue_number: %d", issueNumber),
		fmt.Sprintf("classification: %s", classification),
	}, "\n\n")
}
