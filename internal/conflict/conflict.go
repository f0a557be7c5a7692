// Package conflict detects explicit textual admissions of rule-violating
// intent, e.g. "excluir transação confirmada" or "sem validar saldo".
//
// The patterns are deliberately narrow: high precision, low recall. Missing a
// subtle violation is acceptable; a false block is not.
package conflict

import (
	"regexp"
	"sort"
	"strings"
)

// violationPatterns maps each rule to the accent-tolerant patterns that
// constitute an explicit admission of violating it. Matched against
// lower-cased text.
var violationPatterns = map[string][]*regexp.Regexp{
	"RN-01": {
		regexp.MustCompile(`sem\s+validar\s+saldo`),
		regexp.MustCompile(`ignorar\s+saldo`),
	},
	"RN-02": {
		regexp.MustCompile(`sem\s+transa[cç][aã]o`),
		regexp.MustCompile(`n[aã]o\s+at[oô]mic`),
	},
	"RN-03": {
		regexp.MustCompile(`excluir\s+transa[cç][aã]o\s+confirmada`),
	},
	"RN-04": {
		regexp.MustCompile(`or[cç]amento.*pendente`),
		regexp.MustCompile(`incluir.*n[aã]o\s+confirmada.*or[cç]amento`),
	},
	"RN-06": {
		regexp.MustCompile(`excluir\s+categoria\s+padr[aã]o`),
	},
	"RN-07": {
		regexp.MustCompile(`fluxo\s+de\s+caixa.*n[aã]o\s+confirmada`),
	},
}

// Detect returns the sorted set of rule IDs whose violation patterns match
// the text.
func Detect(text string) []string {
	lowered := strings.ToLower(text)

	var conflicts []string
	for rn, patterns := range violationPatterns {
		for _, p := range patterns {
			if p.MatchString(lowered) {
				conflicts = append(conflicts, rn)
				break
			}
		}
	}
	sort.Strings(conflicts)
	return conflicts
}
