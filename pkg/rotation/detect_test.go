package rotation

import (
	"testing"

	"fairlead/pkg/models"
)

func candidate(subject, start, end string) Candidate {
	return Candidate{SubjectID: subject, Start: models.MustDate(start), End: models.MustDate(end)}
}

func assignment(id, subject, start, end string, status models.RotationStatus) models.RotationAssignment {
	return models.RotationAssignment{
		ID:        id,
		SubjectID: subject,
		StartDate: models.MustDate(start),
		EndDate:   models.MustDate(end),
		Status:    status,
	}
}

func TestDetectOverlap(t *testing.T) {
	existing := []models.RotationAssignment{
		assignment("r1", "crew-1", "2026-03-01", "2026-04-15", models.RotationScheduled),
	}

	cases := []struct {
		name     string
		cand     Candidate
		conflict bool
	}{
		{"FullyInside", candidate("crew-1", "2026-03-10", "2026-03-20"), true},
		{"OverlapsStart", candidate("crew-1", "2026-02-20", "2026-03-05"), true},
		{"OverlapsEnd", candidate("crew-1", "2026-04-10", "2026-05-01"), true},
		{"Covers", candidate("crew-1", "2026-02-01", "2026-05-01"), true},
		{"TouchesEndDay", candidate("crew-1", "2026-04-15", "2026-05-01"), true},
		{"TouchesStartDay", candidate("crew-1", "2026-02-01", "2026-03-01"), true},
		{"DayAfter", candidate("crew-1", "2026-04-16", "2026-05-01"), false},
		{"DayBefore", candidate("crew-1", "2026-02-01", "2026-02-28"), false},
		{"OtherSubject", candidate("crew-2", "2026-03-10", "2026-03-20"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Detect(tc.cand, existing, Limits{})
			if HasBlocking(got) != tc.conflict {
				t.Fatalf("blocking=%v, want %v (conflicts: %+v)", HasBlocking(got), tc.conflict, got)
			}
			if tc.conflict {
				if got[0].Type != models.ConflictOverlap {
					t.Fatalf("type = %s, want %s", got[0].Type, models.ConflictOverlap)
				}
				if got[0].AssignmentID != "r1" {
					t.Fatalf("assignment id = %s, want r1", got[0].AssignmentID)
				}
			}
		})
	}
}

func TestDetectIgnoresNonBlockingStatuses(t *testing.T) {
	existing := []models.RotationAssignment{
		assignment("done", "crew-1", "2026-03-01", "2026-04-15", models.RotationCompleted),
		assignment("gone", "crew-1", "2026-03-01", "2026-04-15", models.RotationCancelled),
	}
	got := Detect(candidate("crew-1", "2026-03-10", "2026-03-20"), existing, Limits{})
	if len(got) != 0 {
		t.Fatalf("expected no conflicts against completed/cancelled, got %+v", got)
	}
}

func TestDetectDurationWarning(t *testing.T) {
	got := Detect(candidate("crew-1", "2026-01-01", "2026-12-01"), nil, Limits{})
	if len(got) != 1 {
		t.Fatalf("expected one conflict, got %+v", got)
	}
	if got[0].Type != models.ConflictDuration || got[0].Severity != models.SeverityWarning {
		t.Fatalf("unexpected conflict: %+v", got[0])
	}
	if HasBlocking(got) {
		t.Fatalf("duration warning must not block")
	}

	// custom limit
	got = Detect(candidate("crew-1", "2026-01-01", "2026-01-20"), nil, Limits{MaxDurationDays: 10})
	if len(got) != 1 || got[0].Type != models.ConflictDuration {
		t.Fatalf("expected duration conflict under custom limit, got %+v", got)
	}

	// exactly at the limit is fine
	got = Detect(candidate("crew-1", "2026-01-01", "2026-01-11"), nil, Limits{MaxDurationDays: 10})
	if len(got) != 0 {
		t.Fatalf("span equal to limit should pass, got %+v", got)
	}
}

func TestDetectInvalidRange(t *testing.T) {
	got := Detect(candidate("crew-1", "2026-04-01", "2026-03-01"), []models.RotationAssignment{
		assignment("r1", "crew-1", "2026-01-01", "2026-12-31", models.RotationActive),
	}, Limits{})
	if len(got) != 1 {
		t.Fatalf("invalid range should short-circuit, got %+v", got)
	}
	if got[0].Type != models.ConflictInvalidRange || got[0].Severity != models.SeverityError {
		t.Fatalf("unexpected conflict: %+v", got[0])
	}
}

func TestDetectMultipleConflicts(t *testing.T) {
	existing := []models.RotationAssignment{
		assignment("r1", "crew-1", "2026-01-01", "2026-02-01", models.RotationActive),
		assignment("r2", "crew-1", "2026-05-01", "2026-06-01", models.RotationScheduled),
	}
	got := Detect(candidate("crew-1", "2026-01-15", "2026-08-15"), existing, Limits{})
	// two overlaps plus a duration warning
	if len(got) != 3 {
		t.Fatalf("expected 3 conflicts, got %d: %+v", len(got), got)
	}
}
