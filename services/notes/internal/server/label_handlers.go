package server

import (
	"net/http"

	"keepnotes/pkg/domain"
)

type labelRequest struct {
	Name string `json:"name"`
}

func (s *Server) handleCreateLabel(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req labelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := s.app.CreateLabel(r.Context(), user.ID, req.Name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

func (s *Server) handleListLabels(w http.ResponseWriter, r *http.Request, user domain.User) {
	labels, err := s.app.ListLabels(r.Context(), user.ID)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, labels)
}

func (s *Server) handleRenameLabel(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req labelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	l, err := s.app.RenameLabel(r.Context(), user.ID, id, req.Name)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleDeleteLabel(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteLabel(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
