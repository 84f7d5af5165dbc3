package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"keepnotes/pkg/domain"
	"keepnotes/services/notes/internal/app"
)

type updateNoteRequest struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	Color       *string `json:"color"`
	IsArchived  *bool   `json:"isArchived"`
	IsPinned    *bool   `json:"isPinned"`
	CategoryIDs *[]uint `json:"categoryIds"`

	// Reminder stays raw so an explicit null can clear it.
	Reminder json.RawMessage `json:"reminder"`
}

func (req updateNoteRequest) patch() (domain.NotePatch, bool) {
	p := domain.NotePatch{
		Title:      req.Title,
		Content:    req.Content,
		Color:      req.Color,
		IsArchived: req.IsArchived,
		IsPinned:   req.IsPinned,
		LabelIDs:   req.CategoryIDs,
	}
	if len(req.Reminder) == 0 {
		return p, true
	}
	p.ReminderSet = true
	if bytes.Equal(bytes.TrimSpace(req.Reminder), []byte("null")) {
		return p, true
	}
	var at time.Time
	if err := json.Unmarshal(req.Reminder, &at); err != nil {
		return p, false
	}
	p.Reminder = &at
	return p, true
}

type reorderRequest struct {
	Notes []domain.NotePosition `json:"notes"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req app.NoteInput
	if !decodeJSON(w, r, &req) {
		return
	}
	n, err := s.app.CreateNote(r.Context(), user.ID, req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request, user domain.User) {
	filter, err := parseNoteFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := s.app.ListNotes(r.Context(), user.ID, filter)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetNote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.app.GetNote(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleUpdateNote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req updateNoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	patch, ok := req.patch()
	if !ok {
		writeError(w, http.StatusBadRequest, "reminder must be an RFC 3339 timestamp or null")
		return
	}
	n, err := s.app.UpdateNote(r.Context(), user.ID, id, patch)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleTrashNote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.app.TrashNote(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleRestoreNote(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	n, err := s.app.RestoreNote(r.Context(), user.ID, id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleDeleteNotePermanently(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.app.DeleteNotePermanently(r.Context(), user.ID, id); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleReorderNotes(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req reorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	updated, err := s.app.ReorderNotes(r.Context(), user.ID, req.Notes)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"updated": updated})
}

type queryError string

func (e queryError) Error() string { return string(e) }

func parseNoteFilter(q url.Values) (domain.NoteFilter, error) {
	var (
		f   domain.NoteFilter
		err error
	)
	if f.Archived, err = queryBool(q, "isArchived"); err != nil {
		return f, err
	}
	if f.Deleted, err = queryBool(q, "isDeleted"); err != nil {
		return f, err
	}
	if f.HasReminder, err = queryBool(q, "hasReminder"); err != nil {
		return f, err
	}
	if f.LabelID, err = queryUint(q, "categoryId"); err != nil {
		return f, err
	}
	if f.Cursor, err = queryUint(q, "cursor"); err != nil {
		return f, err
	}
	if raw := strings.TrimSpace(q.Get("categoryIds")); raw != "" {
		for part := range strings.SplitSeq(raw, ",") {
			id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
			if err != nil || id == 0 {
				return f, queryError("categoryIds must be a comma separated list of ids")
			}
			f.AnyLabelIDs = append(f.AnyLabelIDs, uint(id))
		}
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return f, queryError("limit must be a positive integer")
		}
		f.Limit = limit
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	return f, nil
}

func queryBool(q url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, queryError(key + " must be true or false")
	}
	return v, nil
}

func queryUint(q url.Values, key string) (uint, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, queryError(key + " must be a positive integer")
	}
	return uint(v), nil
}
