// Package catalog holds the business-rule (RN) catalog and its matching
// semantics.
//
// The catalog is an immutable lookup table built once at process start.
// Matching is deliberately substring-based rather than tokenized: a keyword
// occurring inside a longer word still matches, which downstream reports
// depend on.
package catalog

import (
	"sort"
	"strings"
)

// Rule is one business rule with its trigger keywords.
type Rule struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Modules     []string `yaml:"modules"`
	Actions     []string `yaml:"actions"`
	Failure     string   `yaml:"failure,omitempty"` // deterministic failure message; empty means event-only
	Description string   `yaml:"description"`
}

// Catalog is the full rule set keyed by rule ID. Never mutated after
// construction; safe for concurrent reads.
type Catalog struct {
	rules map[string]Rule
	ids   []string // sorted
}

// builtinRules is the fixed DOM-02 catalog.
var builtinRules = []Rule{
	{
		ID:          "RN-01",
		Name:        "Validar saldo antes de débito",
		Modules:     []string{"conta", "transacao"},
		Actions:     []string{"debitar", "transferir", "saque", "pagamento"},
		Failure:     "Saldo Insuficiente",
		Description: "Executa podeDebitar() antes de qualquer débito.",
	},
	{
		ID:          "RN-02",
		Name:        "Transferência atômica",
		Modules:     []string{"transacao", "conta"},
		Actions:     []string{"transferir", "transferencia", "pix"},
		Failure:     "Falha na atomicidade da transferência",
		Description: "Transferência deve ocorrer em transação atômica com rollback integral.",
	},
	{
		ID:          "RN-03",
		Name:        "Bloquear exclusão de transação confirmada",
		Modules:     []string{"transacao"},
		Actions:     []string{"excluir", "deletar", "remover", "cancelar"},
		Failure:     "Tentativa de exclusão de transação confirmada",
		Description: "Transações CONFIRMADA não podem ser removidas.",
	},
	{
		ID:          "RN-04",
		Name:        "Orçamento apenas com CONFIRMADA",
		Modules:     []string{"orcamento", "transacao", "relatorio"},
		Actions:     []string{"calcular", "orcamento", "periodo", "filtrar"},
		Failure:     "Período inválido para cálculo de orçamento",
		Description: "Filtro de orçamento considera somente status CONFIRMADA.",
	},
	{
		ID:          "RN-05",
		Name:        "Publicar evento de meta atingida",
		Modules:     []string{"meta", "objetivo", "notificacao"},
		Actions:     []string{"atingir", "meta", "concluir", "acumular"},
		Failure:     "",
		Description: "Publica MetaAtingidaEvent ao atingir meta.",
	},
	{
		ID:          "RN-06",
		Name:        "Bloquear exclusão de categoria padrão",
		Modules:     []string{"categoria"},
		Actions:     []string{"excluir", "deletar", "remover", "categoria"},
		Failure:     "Tentativa de exclusão de categoria padrão",
		Description: "Categorias com padrao=true não podem ser removidas.",
	},
	{
		ID:          "RN-07",
		Name:        "Fluxo de caixa só com CONFIRMADA",
		Modules:     []string{"relatorio", "transacao", "fluxo-caixa"},
		Actions:     []string{"fluxo", "caixa", "relatorio", "consolidar"},
		Failure:     "Transação não confirmada excluída do relatório",
		Description: "Relatório de fluxo de caixa considera somente CONFIRMADA.",
	},
}

// Builtin returns the fixed built-in catalog.
func Builtin() *Catalog {
	return New(builtinRules)
}

// New builds a catalog from the given rules. Later rules with a duplicate ID
// replace earlier ones, which is what lets overlay files override built-ins.
func New(rules []Rule) *Catalog {
	c := &Catalog{rules: make(map[string]Rule, len(rules))}
	for _, r := range rules {
		c.rules[r.ID] = r
	}
	for id := range c.rules {
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// normalize lower-cases, trims, and maps underscores to hyphens so that
// "fluxo_caixa" and "Fluxo-Caixa" address the same keyword.
func normalize(value string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(value)), "_", "-")
}

// IDs returns the sorted rule identifiers.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Rule returns the rule for the given ID.
func (c *Catalog) Rule(id string) (Rule, bool) {
	r, ok := c.rules[id]
	return r, ok
}

// Lookup returns every rule whose module-keyword set contains module or whose
// action-keyword set contains action, after normalization. Result is sorted.
func (c *Catalog) Lookup(module, action string) []string {
	moduleKey := normalize(module)
	actionKey := normalize(action)

	var matches []string
	for _, id := range c.ids {
		rule := c.rules[id]
		if containsNormalized(rule.Modules, moduleKey) || containsNormalized(rule.Actions, actionKey) {
			matches = append(matches, id)
		}
	}
	return matches
}

func containsNormalized(keywords []string, key string) bool {
	for _, kw := range keywords {
		if normalize(kw) == key {
			return true
		}
	}
	return false
}

// MatchText returns every rule for which any module or action keyword occurs
// as a substring of the lower-cased text. Result is sorted by rule ID.
func (c *Catalog) MatchText(text string) []string {
	lowered := strings.ToLower(text)
	var hits []string
	for _, id := range c.ids {
		rule := c.rules[id]
		if anySubstring(rule.Modules, lowered) || anySubstring(rule.Actions, lowered) {
			hits = append(hits, id)
		}
	}
	return hits
}

// anySubstring lowers each keyword before comparing: built-in keywords are
// already lowercase, but overlay rules may carry arbitrary case.
func anySubstring(keywords []string, lowered string) bool {
	for _, kw := range keywords {
		if strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ModulesIn returns the sorted unique module keywords present in the text.
func (c *Catalog) ModulesIn(text string) []string {
	return c.keywordsIn(text, func(r Rule) []string { return r.Modules })
}

// ActionsIn returns the sorted unique action keywords present in the text.
func (c *Catalog) ActionsIn(text string) []string {
	return c.keywordsIn(text, func(r Rule) []string { return r.Actions })
}

func (c *Catalog) keywordsIn(text string, pick func(Rule) []string) []string {
	lowered := strings.ToLower(text)
	seen := make(map[string]bool)
	for _, id := range c.ids {
		for _, kw := range pick(c.rules[id]) {
			kw = strings.ToLower(kw)
			if strings.Contains(lowered, kw) {
				seen[kw] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for kw := range seen {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}

// DeterministicFailure returns the canonical failure message for a rule, or
// false when the rule is unknown or event-only (no failure message).
func (c *Catalog) DeterministicFailure(ruleID string) (string, bool) {
	rule, ok := c.rules[ruleID]
	if !ok || rule.Failure == "" {
		return "", false
	}
	return rule.Failure, true
}

// Markdown renders the catalog as the RN summary table embedded in prompts
// and printed by `reqgate catalog`.
func (c *Catalog) Markdown() string {
	var b strings.Builder
	b.WriteString("| RN | Regra | FE Determinístico |\n")
	b.WriteString("|---|---|---|\n")
	for _, id := range c.ids {
		rule := c.rules[id]
		fe := rule.Failure
		if fe == "" {
			fe = "Sem FE (evento MetaAtingidaEvent)"
		}
		b.WriteString("| " + id + " | " + rule.Name + " | " + fe + " |\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
