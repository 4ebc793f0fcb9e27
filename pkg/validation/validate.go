package validation

import (
	"errors"
	"fmt"
	"strings"

	"fairlead/pkg/models"
)

// Error marks caller-correctable input problems. Never retried
// automatically.
var Error = errors.New("validation failed")

// Rules holds config-driven checks layered on top of the built-in draft
// requirements. Paths address the draft's JSON shape (e.g. "subject").
type Rules struct {
	MaxLen map[string]int
	Enums  map[string][]string
}

var rules Rules

// SetRules installs config-driven rules. Safe to call once at startup.
func SetRules(r Rules) { rules = r }

// ValidateDraft checks a submission draft before anything is persisted.
// Required fields per the data model: authority reference, submitter and
// subject. Priority defaults upstream, but when present must be known.
func ValidateDraft(d models.SubmissionDraft) error {
	var errs []string
	if strings.TrimSpace(d.AuthorityID) == "" {
		errs = append(errs, "authority_id is required")
	}
	if strings.TrimSpace(d.SubmitterID) == "" {
		errs = append(errs, "submitter_id is required")
	}
	if strings.TrimSpace(d.Subject) == "" {
		errs = append(errs, "subject is required")
	}
	if d.Priority != "" && !models.ValidPriority(d.Priority) {
		errs = append(errs, fmt.Sprintf("invalid priority %q", d.Priority))
	}
	for _, doc := range d.Documents {
		if doc.Name == "" {
			errs = append(errs, "document name is required")
		}
		if doc.Checksum == "" {
			errs = append(errs, fmt.Sprintf("document %q missing checksum", doc.Name))
		}
	}

	fields := map[string]string{
		"subject":     d.Subject,
		"description": d.Description,
		"priority":    string(d.Priority),
	}
	for p, max := range rules.MaxLen {
		if v, ok := fields[p]; ok && len(v) > max {
			errs = append(errs, fmt.Sprintf("max length exceeded at %s: %d > %d", p, len(v), max))
		}
	}
	for p, vals := range rules.Enums {
		if v, ok := fields[p]; ok && v != "" && !contains(vals, v) {
			errs = append(errs, fmt.Sprintf("invalid enum at %s", p))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", Error, strings.Join(errs, "; "))
	}
	return nil
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
