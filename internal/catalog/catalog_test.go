package catalog

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestLookupNormalization(t *testing.T) {
	c := Builtin()

	tests := []struct {
		name   string
		module string
		action string
		want   []string
	}{
		{
			name:   "exact module",
			module: "transacao",
			action: "nenhuma",
			want:   []string{"RN-01", "RN-02", "RN-03", "RN-04", "RN-07"},
		},
		{
			name:   "case and underscore normalization",
			module: "Fluxo_Caixa",
			action: "nenhuma",
			want:   []string{"RN-07"},
		},
		{
			name:   "action only",
			module: "desconhecido",
			action: "PIX",
			want:   []string{"RN-02"},
		},
		{
			name:   "no match",
			module: "desconhecido",
			action: "nenhuma",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Lookup(tt.module, tt.action)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Lookup(%q, %q) = %v, want %v", tt.module, tt.action, got, tt.want)
			}
		})
	}
}

func TestMatchTextCaseInsensitiveAndIdempotent(t *testing.T) {
	c := Builtin()
	text := "Excluir CATEGORIA padrão do sistema"

	first := c.MatchText(text)
	second := c.MatchText(text)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("MatchText not idempotent: %v then %v", first, second)
	}
	if !contains(first, "RN-06") {
		t.Errorf("MatchText(%q) = %v, want RN-06 present", text, first)
	}
}

// MatchText is substring-based: a keyword inside a longer word still matches.
func TestMatchTextSubstring(t *testing.T) {
	c := Builtin()
	got := c.MatchText("o subtransacaometro falhou")
	if !contains(got, "RN-03") {
		t.Errorf("substring match failed: got %v, want RN-03 present", got)
	}
}

// Overlay rules may carry keywords in any case; text matching must not
// depend on it.
func TestMatchTextOverlayKeywordCase(t *testing.T) {
	c := BuiltinWith([]Rule{{
		ID:      "RN-90",
		Name:    "Aporte em investimento",
		Modules: []string{"Investimento"},
		Actions: []string{"Aplicar"},
	}})

	if got := c.MatchText("aplicar aporte em investimento"); !contains(got, "RN-90") {
		t.Errorf("MatchText = %v, want RN-90 present", got)
	}
	if mods := c.ModulesIn("novo investimento em renda fixa"); !contains(mods, "investimento") {
		t.Errorf("ModulesIn = %v, want lowered keyword present", mods)
	}
}

func TestDeterministicFailure(t *testing.T) {
	c := Builtin()

	fe, ok := c.DeterministicFailure("RN-03")
	if !ok || fe != "Tentativa de exclusão de transação confirmada" {
		t.Errorf("DeterministicFailure(RN-03) = %q, %v", fe, ok)
	}

	// RN-05 is event-only.
	if _, ok := c.DeterministicFailure("RN-05"); ok {
		t.Error("DeterministicFailure(RN-05) should report no failure message")
	}
	if _, ok := c.DeterministicFailure("RN-99"); ok {
		t.Error("DeterministicFailure(RN-99) should report unknown rule")
	}
}

func TestModulesInAndActionsIn(t *testing.T) {
	c := Builtin()
	text := "Transferir saldo da conta para pagar o orcamento"

	modules := c.ModulesIn(text)
	if !reflect.DeepEqual(modules, []string{"conta", "orcamento"}) {
		t.Errorf("ModulesIn = %v", modules)
	}

	actions := c.ActionsIn(text)
	if !contains(actions, "transferir") {
		t.Errorf("ActionsIn = %v, want transferir present", actions)
	}
}

func TestMarkdownTable(t *testing.T) {
	md := Builtin().Markdown()

	if !strings.HasPrefix(md, "| RN | Regra | FE Determinístico |") {
		t.Errorf("Markdown missing header: %q", md[:40])
	}
	if !strings.Contains(md, "| RN-05 | Publicar evento de meta atingida | Sem FE (evento MetaAtingidaEvent) |") {
		t.Error("Markdown missing event-only placeholder row for RN-05")
	}
	if got := strings.Count(md, "\n"); got != 8 { // header + separator + 7 rules - trailing
		t.Errorf("Markdown has %d newlines, want 8", got)
	}
}

func TestLoadOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := `rules:
  - id: RN-08
    name: Limite diário de saque
    modules: [conta]
    actions: [saque]
    failure: Limite diário excedido
    description: Saques acima do limite diário são recusados.
  - id: RN-03
    name: Bloquear exclusão de transação confirmada
    modules: [transacao, extrato]
    actions: [excluir]
    failure: Tentativa de exclusão de transação confirmada
    description: Override com módulo extra.
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	extra, err := LoadOverlay(path)
	if err != nil {
		t.Fatalf("LoadOverlay: %v", err)
	}
	c := BuiltinWith(extra)

	if got := c.Lookup("extrato", ""); !reflect.DeepEqual(got, []string{"RN-03"}) {
		t.Errorf("override module not applied: %v", got)
	}
	if fe, ok := c.DeterministicFailure("RN-08"); !ok || fe != "Limite diário excedido" {
		t.Errorf("new rule not loaded: %q, %v", fe, ok)
	}
	if len(c.IDs()) != 8 {
		t.Errorf("IDs() = %v, want 8 rules", c.IDs())
	}
}

func TestLoadOverlayRejectsMissingID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  - name: sem id\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOverlay(path); err == nil {
		t.Error("LoadOverlay should reject rules without an id")
	}
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
