package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"fairlead/pkg/models"
	"fairlead/pkg/store"
	"fairlead/pkg/utils"
)

// RegisterAuthorities registers the authority directory routes. Writes
// come from backend services; frontend keys only get reads.
func RegisterAuthorities(r *mux.Router) {
	r.HandleFunc("/authorities", saveAuthority).Methods(http.MethodPost)
	r.HandleFunc("/authorities", listAuthorities).Methods(http.MethodGet)
	r.HandleFunc("/authorities/{id}", getAuthority).Methods(http.MethodGet)
}

func saveAuthority(w http.ResponseWriter, r *http.Request) {
	var a models.Authority
	if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if a.Name == "" {
		utils.JSONError(w, http.StatusBadRequest, "name is required")
		return
	}
	created := false
	if a.ID == "" {
		a.ID = uuid.NewString()
		created = true
	}
	if err := store.SaveAuthority(a); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	_ = utils.JSONWrite(w, status, a)
}

func listAuthorities(w http.ResponseWriter, r *http.Request) {
	out, err := store.ListAuthorities()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, struct {
		Authorities []models.Authority `json:"authorities"`
	}{Authorities: out})
}

func getAuthority(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, err := store.GetAuthority(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			utils.JSONError(w, http.StatusNotFound, err.Error())
			return
		}
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = utils.JSONWrite(w, http.StatusOK, a)
}
