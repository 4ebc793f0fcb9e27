package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"fairlead/pkg/models"
	"fairlead/pkg/store"
	"fairlead/pkg/submit"
	"fairlead/pkg/timeline"
	"fairlead/pkg/utils"
	"fairlead/pkg/validation"
)

var (
	svc      *submit.Service
	recorder *timeline.Recorder
	maxBody  int64
)

// RegisterSubmissions registers the submission routes onto the v1
// subrouter. maxPayload of zero disables the body size cap.
func RegisterSubmissions(r *mux.Router, s *submit.Service, rec *timeline.Recorder, maxPayload int64) {
	svc = s
	recorder = rec
	maxBody = maxPayload
	r.HandleFunc("/submissions", createSubmission).Methods(http.MethodPost)
	r.HandleFunc("/submissions", listSubmissions).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}", getSubmission).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/payload", getPayload).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/status", updateStatus).Methods(http.MethodPost)
	r.HandleFunc("/submissions/{id}/timeline", getTimeline).Methods(http.MethodGet)
	r.HandleFunc("/submissions/{id}/notifications", getNotifications).Methods(http.MethodGet)
}

func createSubmission(w http.ResponseWriter, r *http.Request) {
	if maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	}
	var draft models.SubmissionDraft
	if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.JSONError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	sub, logs, err := svc.Submit(r.Context(), draft)
	if err != nil {
		switch {
		case errors.Is(err, validation.Error):
			utils.JSONError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrAlreadyExists):
			utils.JSONError(w, http.StatusConflict, err.Error())
		default:
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	_ = utils.JSONWrite(w, http.StatusCreated, struct {
		Submission    models.Submission        `json:"submission"`
		Notifications []models.NotificationLog `json:"notifications"`
	}{Submission: sub, Notifications: logs})
}

func listSubmissions(w http.ResponseWriter, r *http.Request) {
	var f store.SubmissionFilter
	if s := r.URL.Query().Get("status"); s != "" {
		st := models.SubmissionStatus(s)
		if !models.ValidStatus(st) {
			utils.JSONError(w, http.StatusBadRequest, "unknown status")
			return
		}
		f.Status = st
	}
	f.AuthorityID = r.URL.Query().Get("authority")
	subs, err := store.ListSubmissions(f)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Submissions []models.Submission `json:"submissions"`
	}{Submissions: subs})
}

func getSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	sub, err := store.GetSubmission(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, sub)
}

// getPayload decrypts and returns the submission body. The auth
// middleware never routes frontend keys here.
func getPayload(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	pt, err := svc.Payload(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(pt)
}

func updateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Status      models.SubmissionStatus `json:"status"`
		PerformedBy string                  `json:"performed_by"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if !models.ValidStatus(req.Status) {
		utils.JSONError(w, http.StatusBadRequest, "unknown status")
		return
	}
	sub, err := svc.UpdateStatus(r.Context(), id, req.Status, req.PerformedBy)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			utils.JSONError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, store.ErrInvalidTransition):
			utils.JSONError(w, http.StatusConflict, err.Error())
		default:
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, sub)
}

func getTimeline(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := store.GetSubmission(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	evs, err := recorder.List(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		SubmissionID string                 `json:"submission_id"`
		Events       []models.TimelineEvent `json:"events"`
	}{SubmissionID: id, Events: evs})
}

func getNotifications(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := store.GetSubmission(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logs, err := store.ListNotificationLogs(id)
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		SubmissionID  string                   `json:"submission_id"`
		Notifications []models.NotificationLog `json:"notifications"`
	}{SubmissionID: id, Notifications: logs})
}
