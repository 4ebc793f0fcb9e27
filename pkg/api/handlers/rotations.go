package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fairlead/pkg/models"
	"fairlead/pkg/rotation"
	"fairlead/pkg/store"
	"fairlead/pkg/utils"
)

var rotationLimits rotation.Limits

// RegisterRotations registers the rotation scheduling routes.
func RegisterRotations(r *mux.Router, lim rotation.Limits) {
	rotationLimits = lim
	r.HandleFunc("/rotations/check", checkRotation).Methods(http.MethodPost)
	r.HandleFunc("/rotations", createRotation).Methods(http.MethodPost)
	r.HandleFunc("/rotations", listRotations).Methods(http.MethodGet)
	r.HandleFunc("/rotations/{id}", getRotation).Methods(http.MethodGet)
	r.HandleFunc("/rotations/{id}/status", updateRotationStatus).Methods(http.MethodPost)
}

func decodeCandidate(w http.ResponseWriter, r *http.Request) (rotation.Candidate, bool) {
	var c rotation.Candidate
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return c, false
	}
	if c.SubjectID == "" {
		utils.JSONError(w, http.StatusBadRequest, "subject_id is required")
		return c, false
	}
	if c.Start.IsZero() || c.End.IsZero() {
		utils.JSONError(w, http.StatusBadRequest, "start and end dates are required")
		return c, false
	}
	return c, true
}

// checkRotation runs the conflict detector without persisting anything.
func checkRotation(w http.ResponseWriter, r *http.Request) {
	c, ok := decodeCandidate(w, r)
	if !ok {
		return
	}
	existing, err := store.ListRotationsBySubject(c.SubjectID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	conflicts := rotation.Detect(c, existing, rotationLimits)
	countConflicts(conflicts)
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Conflicts []models.Conflict `json:"conflicts"`
		Blocking  bool              `json:"blocking"`
	}{Conflicts: conflicts, Blocking: rotation.HasBlocking(conflicts)})
}

// createRotation persists an assignment unless the detector finds a
// blocking conflict. Warnings are stored on the assignment itself.
func createRotation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		rotation.Candidate
		ResourceID string                `json:"resource_id"`
		Status     models.RotationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if req.SubjectID == "" || req.Start.IsZero() || req.End.IsZero() {
		utils.JSONError(w, http.StatusBadRequest, "subject_id, start and end are required")
		return
	}
	status := req.Status
	if status == "" {
		status = models.RotationScheduled
	}
	if !models.ValidRotationStatus(status) {
		utils.JSONError(w, http.StatusBadRequest, "unknown rotation status")
		return
	}

	existing, err := store.ListRotationsBySubject(req.SubjectID)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	conflicts := rotation.Detect(req.Candidate, existing, rotationLimits)
	countConflicts(conflicts)
	if rotation.HasBlocking(conflicts) {
		_ = utils.JSONWrite(w, http.StatusConflict, struct {
			Error     string            `json:"error"`
			Conflicts []models.Conflict `json:"conflicts"`
		}{Error: "rotation conflicts with existing assignments", Conflicts: conflicts})
		return
	}

	asg := models.RotationAssignment{
		ID:         uuid.NewString(),
		SubjectID:  req.SubjectID,
		ResourceID: req.ResourceID,
		StartDate:  req.Start,
		EndDate:    req.End,
		Status:     status,
		Conflicts:  conflicts,
		CreatedTS:  time.Now().UTC().UnixNano(),
	}
	if err := store.SaveRotation(asg); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, asg)
}

func listRotations(w http.ResponseWriter, r *http.Request) {
	subject := r.URL.Query().Get("subject")
	if subject == "" {
		utils.JSONError(w, http.StatusBadRequest, "subject query parameter is required")
		return
	}
	out, err := store.ListRotationsBySubject(subject)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		SubjectID string                      `json:"subject_id"`
		Rotations []models.RotationAssignment `json:"rotations"`
	}{SubjectID: subject, Rotations: out})
}

func getRotation(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	asg, err := store.GetRotation(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, asg)
}

func updateRotationStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Status models.RotationStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	asg, err := store.UpdateRotationStatus(id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrInvalidTransition):
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		default:
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, asg)
}
