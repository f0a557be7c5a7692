// Package ledger builds and parses the immutable decision-record artifacts
// appended to an issue's comment history.
//
// Exactly one record is appended per stage invocation. Records are never
// mutated after creation; re-runs re-derive state from the latest record
// rather than editing old ones.
package ledger

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Marker is the heading that identifies a decision-record comment.
const Marker = "## DecisionRecord"

// Agent is the identity stamped on every record this pipeline emits.
const Agent = "DOM-02"

// DecisionType classifies a record.
type DecisionType string

const (
	TypeCheckpoint DecisionType = "checkpoint"
	TypeGate       DecisionType = "gate"
	TypeBlock      DecisionType = "block"
	TypeAlert      DecisionType = "alert"
)

// Decision outcomes, in the vocabulary the review board reads.
const (
	DecisionAdvance  = "avançar"
	DecisionEscalate = "escalar"
	DecisionBlock    = "bloquear"
)

// Record is a stage outcome before rendering. The record ID and timestamp are
// generated at render time.
type Record struct {
	Skill           string
	IssueID         string
	DecisionType    DecisionType
	Decision        string
	Confidence      float64
	RulesTriggered  []string
	ModulesAffected []string
	ApprovalWeight  float64
	HumanReviewer   *string
	HumanDecision   *string
	Justification   string
	Artifacts       []string
	LGPDScope       bool
}

// Payload is the wire form embedded in the fenced JSON block.
type Payload struct {
	RecordID        string       `json:"record_id"`
	Agent           string       `json:"agent"`
	Skill           string       `json:"skill"`
	IssueID         string       `json:"issue_id"`
	Timestamp       string       `json:"timestamp"`
	DecisionType    DecisionType `json:"decision_type"`
	Decision        string       `json:"decision"`
	Confidence      float64      `json:"confidence_score"`
	RulesTriggered  []string     `json:"rn_triggered"`
	ModulesAffected []string     `json:"modules_affected"`
	ApprovalWeight  float64      `json:"approval_weight"`
	HumanReviewer   *string      `json:"human_reviewer"`
	HumanDecision   *string      `json:"human_decision"`
	Justification   string       `json:"justification"`
	Artifacts       []string     `json:"artifacts_produced"`
	LGPDScope       bool         `json:"lgpd_scope"`
}

// payload freezes the record into its wire form, generating the record ID and
// UTC timestamp (second precision) and normalizing list fields.
func (r Record) payload(now time.Time) Payload {
	artifacts := r.Artifacts
	if artifacts == nil {
		artifacts = []string{}
	}
	return Payload{
		RecordID:        "DR-REQ-" + uuid.NewString(),
		Agent:           Agent,
		Skill:           r.Skill,
		IssueID:         r.IssueID,
		Timestamp:       now.UTC().Truncate(time.Second).Format(time.RFC3339),
		DecisionType:    r.DecisionType,
		Decision:        r.Decision,
		Confidence:      round2(r.Confidence),
		RulesTriggered:  sortedUnique(r.RulesTriggered),
		ModulesAffected: sortedUnique(r.ModulesAffected),
		ApprovalWeight:  r.ApprovalWeight,
		HumanReviewer:   r.HumanReviewer,
		HumanDecision:   r.HumanDecision,
		Justification:   r.Justification,
		Artifacts:       artifacts,
		LGPDScope:       r.LGPDScope,
	}
}

// Markdown renders the record as a decision-record comment: the marker
// heading followed by a fenced JSON block.
func (r Record) Markdown(now time.Time) string {
	data, err := json.MarshalIndent(r.payload(now), "", "  ")
	if err != nil {
		// Payload holds only plain values; this cannot fail.
		panic(err)
	}
	return Marker + "\n```json\n" + string(data) + "\n```"
}

// Latest scans the comment bodies backward for the first well-formed decision
// record and parses its embedded JSON. Malformed blocks are skipped silently.
func Latest(comments []string) (Payload, bool) {
	for i := len(comments) - 1; i >= 0; i-- {
		body := comments[i]
		if !strings.Contains(body, Marker) {
			continue
		}
		start := strings.Index(body, "```json")
		if start == -1 {
			continue
		}
		end := strings.Index(body[start+7:], "```")
		if end == -1 {
			continue
		}
		raw := strings.TrimSpace(body[start+7 : start+7+end])

		var p Payload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			continue
		}
		return p, true
	}
	return Payload{}, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sortedUnique(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
