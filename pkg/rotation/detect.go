// Package rotation implements the crew rotation conflict detector. The
// detector is a pure function over in-memory assignments: no I/O, no
// side effects, and it never fails - it always returns a (possibly
// empty) list of diagnostics. Whether an error-severity conflict blocks
// persistence is the caller's policy.
package rotation

import (
	"fmt"

	"fairlead/pkg/models"
)

// DefaultMaxDurationDays is the duration-limit threshold when the
// caller does not configure one.
const DefaultMaxDurationDays = 180

// Candidate is a proposed assignment to check.
type Candidate struct {
	SubjectID string      `json:"subject_id"`
	Start     models.Date `json:"start"`
	End       models.Date `json:"end"`
}

// Limits configures the duration rule.
type Limits struct {
	MaxDurationDays int
}

// Detect checks candidate against existing assignments.
//
// Overlap rule: a blocking assignment (scheduled or active) for the same
// subject whose closed interval [start, end] intersects the candidate's
// yields an error-severity overlap conflict. Bounds are inclusive:
// ranges touching on a single day count as overlapping.
//
// Duration rule: a candidate spanning more than the configured maximum
// number of days yields a warning-severity rest-period conflict.
func Detect(candidate Candidate, existing []models.RotationAssignment, lim Limits) []models.Conflict {
	out := make([]models.Conflict, 0)

	if candidate.End.Before(candidate.Start.Time) {
		out = append(out, models.Conflict{
			Type:     models.ConflictInvalidRange,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("end date %s precedes start date %s", candidate.End.Format("2006-01-02"), candidate.Start.Format("2006-01-02")),
		})
		return out
	}

	for _, ex := range existing {
		if ex.SubjectID != candidate.SubjectID {
			continue
		}
		if !ex.Status.Blocking() {
			continue
		}
		if overlaps(candidate.Start, candidate.End, ex.StartDate, ex.EndDate) {
			out = append(out, models.Conflict{
				Type:         models.ConflictOverlap,
				Severity:     models.SeverityError,
				Message:      fmt.Sprintf("overlaps assignment %s (%s to %s)", ex.ID, ex.StartDate.Format("2006-01-02"), ex.EndDate.Format("2006-01-02")),
				AssignmentID: ex.ID,
			})
		}
	}

	max := lim.MaxDurationDays
	if max <= 0 {
		max = DefaultMaxDurationDays
	}
	if days := candidate.Start.DaysUntil(candidate.End); days > max {
		out = append(out, models.Conflict{
			Type:     models.ConflictDuration,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("assignment spans %d days, exceeding the %d-day limit", days, max),
		})
	}
	return out
}

// overlaps reports whether the closed intervals [aStart, aEnd] and
// [bStart, bEnd] intersect.
func overlaps(aStart, aEnd, bStart, bEnd models.Date) bool {
	return !aEnd.Before(bStart.Time) && !bEnd.Before(aStart.Time)
}

// HasBlocking reports whether any conflict carries error severity.
func HasBlocking(conflicts []models.Conflict) bool {
	for _, c := range conflicts {
		if c.Severity == models.SeverityError {
			return true
		}
	}
	return false
}
