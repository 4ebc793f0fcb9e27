package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fairlead/pkg/models"
	"fairlead/pkg/notify"
	"fairlead/pkg/rotation"
	"fairlead/pkg/security"
	"fairlead/pkg/store"
	"fairlead/pkg/submit"
	"fairlead/pkg/timeline"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store.ResetObservers()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.SaveAuthority(models.Authority{
		ID:    "auth-1",
		Name:  "Port State Control",
		Email: "psc@example.org",
	}); err != nil {
		t.Fatalf("SaveAuthority: %v", err)
	}

	kek, err := security.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	recorder := timeline.NewRecorder()
	svc, err := submit.New(kek, recorder, notify.NewDispatcher(nil, notify.Options{}))
	if err != nil {
		t.Fatalf("submit.New: %v", err)
	}

	srv := httptest.NewServer(Router(Deps{
		Service:        svc,
		Recorder:       recorder,
		RotationLimits: rotation.Limits{MaxDurationDays: 180},
	}))
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, role string) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("X-Role-Name", role)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	_, _ = out.ReadFrom(resp.Body)
	return resp, out.Bytes()
}

func TestSubmissionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	draft := map[string]any{
		"authority_id": "auth-1",
		"submitter_id": "user-1",
		"subject":      "Annual DP Trial Report",
		"priority":     "high",
		"payload":      []byte(`{"vessel":"MV Northsea Pioneer"}`),
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/submissions", draft, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d: %s", resp.StatusCode, body)
	}
	var created struct {
		Submission models.Submission `json:"submission"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	id := created.Submission.ID
	if id == "" || created.Submission.Status != models.StatusPending {
		t.Fatalf("unexpected submission: %+v", created.Submission)
	}

	// invalid draft
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/submissions", map[string]any{"subject": "x"}, "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("invalid draft status = %d", resp.StatusCode)
	}

	// lifecycle: skipping a step is rejected
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/submissions/"+id+"/status",
		map[string]string{"status": "acknowledged", "performed_by": "ops"}, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("skip transition status = %d, want 409", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/submissions/"+id+"/status",
		map[string]string{"status": "sent", "performed_by": "ops"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("sent transition status = %d", resp.StatusCode)
	}

	// timeline now has submitted + status_update
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/submissions/"+id+"/timeline", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("timeline status = %d", resp.StatusCode)
	}
	var tl struct {
		Events []models.TimelineEvent `json:"events"`
	}
	if err := json.Unmarshal(body, &tl); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if len(tl.Events) != 2 {
		t.Fatalf("timeline events = %d, want 2: %s", len(tl.Events), body)
	}

	// list filters by status
	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/submissions?status=sent", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var list struct {
		Submissions []models.Submission `json:"submissions"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Submissions) != 1 || list.Submissions[0].ID != id {
		t.Fatalf("unexpected list: %s", body)
	}

	// unknown id
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/v1/submissions/ghost", nil, "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown id status = %d", resp.StatusCode)
	}
}

func TestRotationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	create := map[string]any{
		"subject_id": "crew-1",
		"start":      "2026-03-01",
		"end":        "2026-04-01",
	}
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/v1/rotations", create, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create rotation status = %d: %s", resp.StatusCode, body)
	}

	// overlapping candidate: check reports, create blocks
	overlap := map[string]any{
		"subject_id": "crew-1",
		"start":      "2026-03-15",
		"end":        "2026-04-15",
	}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/rotations/check", overlap, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status = %d", resp.StatusCode)
	}
	var chk struct {
		Conflicts []models.Conflict `json:"conflicts"`
		Blocking  bool              `json:"blocking"`
	}
	if err := json.Unmarshal(body, &chk); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if !chk.Blocking || len(chk.Conflicts) == 0 {
		t.Fatalf("expected blocking overlap: %s", body)
	}

	resp, _ = doJSON(t, http.MethodPost, srv.URL+"/v1/rotations", overlap, "")
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("overlapping create status = %d, want 409", resp.StatusCode)
	}

	// non-overlapping long assignment persists with a warning attached
	long := map[string]any{
		"subject_id": "crew-1",
		"start":      "2026-05-01",
		"end":        "2026-12-31",
	}
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/v1/rotations", long, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("long create status = %d: %s", resp.StatusCode, body)
	}
	var asg models.RotationAssignment
	if err := json.Unmarshal(body, &asg); err != nil {
		t.Fatalf("decode assignment: %v", err)
	}
	if len(asg.Conflicts) != 1 || asg.Conflicts[0].Severity != models.SeverityWarning {
		t.Fatalf("expected one warning on assignment: %s", body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/v1/rotations?subject=crew-1", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list rotations status = %d", resp.StatusCode)
	}
	var rl struct {
		Rotations []models.RotationAssignment `json:"rotations"`
	}
	if err := json.Unmarshal(body, &rl); err != nil {
		t.Fatalf("decode rotations: %v", err)
	}
	if len(rl.Rotations) != 2 {
		t.Fatalf("rotations = %d, want 2", len(rl.Rotations))
	}
}

func TestAdminEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/admin/stats", nil, "")
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("stats without role = %d, want 403", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/admin/stats", nil, "admin")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin stats status = %d", resp.StatusCode)
	}
	var stats store.Stats
	if err := json.Unmarshal(body, &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Authorities != 1 {
		t.Fatalf("authorities = %d, want 1", stats.Authorities)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)
	resp, body := doJSON(t, http.MethodGet, srv.URL+"/healthz", nil, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte("ok")) {
		t.Fatalf("unexpected healthz body: %s", body)
	}
}
