package store

import (
	"context"
	"errors"
	"time"

	"keepnotes/pkg/domain"
)

// ErrConflict reports a unique constraint collision (email, username, label name).
var ErrConflict = errors.New("store: unique constraint violation")

// Store defines persistence operations for accounts, labels, and notes.
type Store interface {
	// accounts
	CreateAccount(ctx context.Context, u *domain.User) error
	GetAccountByID(ctx context.Context, id uint) (domain.User, bool, error)
	FindAccountByLogin(ctx context.Context, identifier string) (domain.User, bool, error)
	HasAccountEmail(ctx context.Context, email string) (bool, error)
	HasAccountUsername(ctx context.Context, username string) (bool, error)
	FirstAccountByEmailPrefix(ctx context.Context, prefix string) (domain.User, bool, error)
	ListAccountsByEmailPrefix(ctx context.Context, prefix string) ([]domain.User, error)
	CountAccountsByEmailPrefix(ctx context.Context, prefix string) (int64, error)
	SwapAccountIdentity(ctx context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error)
	DeleteAccountsCascade(ctx context.Context, ids []uint) error

	// labels
	CreateLabel(ctx context.Context, l *domain.Label) error
	ListLabels(ctx context.Context, userID uint) ([]domain.Label, error)
	RenameLabel(ctx context.Context, userID, id uint, name string) (domain.Label, bool, error)
	DeleteLabel(ctx context.Context, userID, id uint) (bool, error)

	// notes
	CreateNote(ctx context.Context, n *domain.Note, labelIDs []uint) error
	GetNote(ctx context.Context, userID, id uint) (domain.Note, bool, error)
	ListNotes(ctx context.Context, userID uint, filter domain.NoteFilter) (domain.NotePage, error)
	UpdateNote(ctx context.Context, userID, id uint, patch domain.NotePatch) (domain.Note, bool, error)
	ReorderNotes(ctx context.Context, userID uint, positions []domain.NotePosition) (int64, error)
	DeleteNote(ctx context.Context, userID, id uint) (bool, error)
	MinNotePosition(ctx context.Context, userID uint) (int, bool, error)

	// seeding
	CreateStarterSet(ctx context.Context, userID uint, labels []string, notes []domain.StarterNote) error

	Ping(ctx context.Context) error
}

// TokenIssuer signs and verifies bearer tokens.
type TokenIssuer interface {
	Sign(subject uint, email string) (string, error)
	Verify(token string) (TokenClaims, error)
	Revoke(token string) error
}

// TokenClaims is the verified content of a bearer token.
type TokenClaims struct {
	Subject   uint
	Email     string
	ID        string
	ExpiresAt time.Time
}

const (
	defaultNoteLimit = 20
	maxNoteLimit     = 100
)

// NormalizeLimit clamps a page size into the supported range.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultNoteLimit
	}
	if limit > maxNoteLimit {
		return maxNoteLimit
	}
	return limit
}
