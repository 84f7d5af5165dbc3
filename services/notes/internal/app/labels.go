package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keepnotes/pkg/domain"
	"keepnotes/pkg/store"
)

type labelInput struct {
	Name string `json:"name" validate:"required,max=50"`
}

// CreateLabel adds a label. Names are unique per user.
func (a *App) CreateLabel(ctx context.Context, userID uint, name string) (domain.Label, error) {
	name = strings.TrimSpace(name)
	if err := a.check(labelInput{Name: name}); err != nil {
		return domain.Label{}, err
	}
	l := domain.Label{Name: name, UserID: userID}
	if err := a.store.CreateLabel(ctx, &l); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Label{}, ErrLabelExists
		}
		return domain.Label{}, fmt.Errorf("create label: %w", err)
	}
	return l, nil
}

func (a *App) ListLabels(ctx context.Context, userID uint) ([]domain.Label, error) {
	labels, err := a.store.ListLabels(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	return labels, nil
}

func (a *App) RenameLabel(ctx context.Context, userID, id uint, name string) (domain.Label, error) {
	name = strings.TrimSpace(name)
	if err := a.check(labelInput{Name: name}); err != nil {
		return domain.Label{}, err
	}
	l, ok, err := a.store.RenameLabel(ctx, userID, id, name)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Label{}, ErrLabelExists
		}
		return domain.Label{}, fmt.Errorf("rename label: %w", err)
	}
	if !ok {
		return domain.Label{}, ErrLabelNotFound
	}
	return l, nil
}

// DeleteLabel removes a label; notes keep existing without it.
func (a *App) DeleteLabel(ctx context.Context, userID, id uint) error {
	ok, err := a.store.DeleteLabel(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if !ok {
		return ErrLabelNotFound
	}
	return nil
}
