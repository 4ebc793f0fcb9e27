package models

import (
	"fmt"
	"strings"
	"time"
)

// RotationStatus is the lifecycle state of a crew rotation assignment.
type RotationStatus string

const (
	RotationScheduled RotationStatus = "scheduled"
	RotationActive    RotationStatus = "active"
	RotationCompleted RotationStatus = "completed"
	RotationCancelled RotationStatus = "cancelled"
)

// ValidRotationStatus reports whether s is a known rotation status.
func ValidRotationStatus(s RotationStatus) bool {
	switch s {
	case RotationScheduled, RotationActive, RotationCompleted, RotationCancelled:
		return true
	}
	return false
}

// Blocking reports whether an assignment in this status blocks new
// candidates for the same subject. Completed and cancelled assignments
// never block.
func (s RotationStatus) Blocking() bool {
	return s == RotationScheduled || s == RotationActive
}

// Date is a calendar day, serialized as "2006-01-02". Rotations operate
// on whole days; intervals are closed on both ends.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string into a Date (UTC midnight).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t.UTC()}, nil
}

// MustDate is a test/helper constructor that panics on invalid input.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	p, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// DaysUntil returns the span in whole days from d to other (other - d).
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time) / (24 * time.Hour))
}

// ConflictSeverity ranks a conflict diagnostic.
type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
)

// Conflict types emitted by the detector.
const (
	ConflictOverlap      = "overlap"
	ConflictDuration     = "rest_period"
	ConflictInvalidRange = "invalid_range"
)

// Conflict is a structured diagnostic from the rotation detector.
type Conflict struct {
	Type     string           `json:"type"`
	Severity ConflictSeverity `json:"severity"`
	Message  string           `json:"message"`
	// The existing assignment that triggered the conflict, when any
	AssignmentID string `json:"assignment_id,omitempty"`
}

// RotationAssignment is a crew member's scheduled period on a vessel.
type RotationAssignment struct {
	ID         string         `json:"id"`
	SubjectID  string         `json:"subject_id"`
	ResourceID string         `json:"resource_id,omitempty"`
	StartDate  Date           `json:"start_date"`
	EndDate    Date           `json:"end_date"`
	Status     RotationStatus `json:"status"`
	// Conflicts recorded at creation time (warnings ride along)
	Conflicts []Conflict `json:"conflicts,omitempty"`
	// Created timestamp (ns)
	CreatedTS int64 `json:"created_ts,omitempty"`
}
