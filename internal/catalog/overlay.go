package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// overlayFile is the shape of the optional rules overlay in reqgate.yaml or a
// standalone rules file.
type overlayFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadOverlay reads additional rules from a YAML file. Rules sharing an ID
// with a built-in replace it; new IDs extend the catalog.
func LoadOverlay(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules overlay: %w", err)
	}

	var f overlayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules overlay %s: %w", path, err)
	}

	for i, r := range f.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("rules overlay %s: rule %d has no id", path, i)
		}
	}
	return f.Rules, nil
}

// BuiltinWith returns the built-in catalog extended (or overridden) by the
// given rules.
func BuiltinWith(extra []Rule) *Catalog {
	return New(append(append([]Rule{}, builtinRules...), extra...))
}
