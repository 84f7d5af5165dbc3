package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"keepnotes/pkg/domain"
)

const defaultNoteColor = "transparent"

// NoteInput is the payload for a new note.
type NoteInput struct {
	Title       string     `json:"title" validate:"max=500"`
	Content     string     `json:"content" validate:"required"`
	Color       string     `json:"color" validate:"max=32"`
	CategoryIDs []uint     `json:"categoryIds"`
	Reminder    *time.Time `json:"reminder"`
}

// CreateNote puts the note in front of the user's existing notes.
func (a *App) CreateNote(ctx context.Context, userID uint, in NoteInput) (domain.Note, error) {
	if err := a.check(in); err != nil {
		return domain.Note{}, err
	}
	minPos, found, err := a.store.MinNotePosition(ctx, userID)
	if err != nil {
		return domain.Note{}, fmt.Errorf("read note positions: %w", err)
	}
	position := 0
	if found {
		position = minPos - 1
	}
	color := strings.TrimSpace(in.Color)
	if color == "" {
		color = defaultNoteColor
	}
	n := domain.Note{
		Title:    in.Title,
		Content:  in.Content,
		Color:    color,
		Position: position,
		Reminder: in.Reminder,
		UserID:   userID,
	}
	if err := a.store.CreateNote(ctx, &n, in.CategoryIDs); err != nil {
		return domain.Note{}, fmt.Errorf("create note: %w", err)
	}
	return n, nil
}

func (a *App) ListNotes(ctx context.Context, userID uint, filter domain.NoteFilter) (domain.NotePage, error) {
	page, err := a.store.ListNotes(ctx, userID, filter)
	if err != nil {
		return domain.NotePage{}, fmt.Errorf("list notes: %w", err)
	}
	return page, nil
}

func (a *App) GetNote(ctx context.Context, userID, id uint) (domain.Note, error) {
	n, ok, err := a.store.GetNote(ctx, userID, id)
	if err != nil {
		return domain.Note{}, fmt.Errorf("fetch note: %w", err)
	}
	if !ok {
		return domain.Note{}, ErrNoteNotFound
	}
	return n, nil
}

// UpdateNote applies a partial update. Trash state only changes through
// TrashNote and RestoreNote.
func (a *App) UpdateNote(ctx context.Context, userID, id uint, patch domain.NotePatch) (domain.Note, error) {
	patch.IsDeleted = nil
	if patch.Color != nil && strings.TrimSpace(*patch.Color) == "" {
		c := defaultNoteColor
		patch.Color = &c
	}
	return a.patchNote(ctx, userID, id, patch)
}

// TrashNote soft-deletes a note. Trashed notes are never pinned.
func (a *App) TrashNote(ctx context.Context, userID, id uint) (domain.Note, error) {
	deleted, pinned := true, false
	return a.patchNote(ctx, userID, id, domain.NotePatch{IsDeleted: &deleted, IsPinned: &pinned})
}

func (a *App) RestoreNote(ctx context.Context, userID, id uint) (domain.Note, error) {
	deleted := false
	return a.patchNote(ctx, userID, id, domain.NotePatch{IsDeleted: &deleted})
}

// DeleteNotePermanently removes the note and its label links.
func (a *App) DeleteNotePermanently(ctx context.Context, userID, id uint) error {
	ok, err := a.store.DeleteNote(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if !ok {
		return ErrNoteNotFound
	}
	return nil
}

// ReorderNotes stores new positions for the caller's notes and reports how
// many were updated.
func (a *App) ReorderNotes(ctx context.Context, userID uint, positions []domain.NotePosition) (int64, error) {
	if len(positions) == 0 {
		return 0, nil
	}
	for _, p := range positions {
		if p.ID == 0 {
			return 0, fmt.Errorf("%w: note id is required", ErrInvalidInput)
		}
	}
	n, err := a.store.ReorderNotes(ctx, userID, positions)
	if err != nil {
		return 0, fmt.Errorf("reorder notes: %w", err)
	}
	return n, nil
}

func (a *App) patchNote(ctx context.Context, userID, id uint, patch domain.NotePatch) (domain.Note, error) {
	n, ok, err := a.store.UpdateNote(ctx, userID, id, patch)
	if err != nil {
		return domain.Note{}, fmt.Errorf("update note: %w", err)
	}
	if !ok {
		return domain.Note{}, ErrNoteNotFound
	}
	return n, nil
}
