// Package seed builds the starter notes and labels given to new guest
// accounts and to the demo user.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"unicode/utf8"

	"keepnotes/pkg/auth"
	"keepnotes/pkg/domain"
)

const (
	DemoLogin    = "ogsdemo"
	DemoPassword = "demo1234"
)

var colors = []string{"red", "orange", "yellow", "green", "teal", "blue", "purple", "pink"}

const transparentRate = 0.3

// Store is the persistence the seeder writes through.
type Store interface {
	CreateStarterSet(ctx context.Context, userID uint, labels []string, notes []domain.StarterNote) error
}

// DemoStore adds the lookups EnsureDemoUser needs.
type DemoStore interface {
	Store
	FindAccountByLogin(ctx context.Context, identifier string) (domain.User, bool, error)
	CreateAccount(ctx context.Context, u *domain.User) error
	MinNotePosition(ctx context.Context, userID uint) (int, bool, error)
}

// Seeder writes the starter set for one account per call.
type Seeder struct {
	store Store
}

func New(store Store) *Seeder {
	return &Seeder{store: store}
}

// SeedDemoData writes the starter labels and notes in one transaction.
func (s *Seeder) SeedDemoData(ctx context.Context, accountID uint) error {
	if accountID == 0 {
		return errors.New("seed: account id required")
	}
	if err := s.store.CreateStarterSet(ctx, accountID, Labels, StarterSet()); err != nil {
		return fmt.Errorf("seed account %d: %w", accountID, err)
	}
	return nil
}

// StarterSet returns the starter notes with pin flags, positions and colors
// filled in. The result is identical on every call.
func StarterSet() []domain.StarterNote {
	var active []int
	titleLen := 0
	for i, n := range starterNotes {
		titleLen += utf8.RuneCountInString(n.title)
		if !n.archived && !n.deleted {
			active = append(active, i)
		}
	}

	// the first tenth of the active notes plus the last two are pinned
	pinnedCount := max(1, int(math.Round(float64(len(active))*0.1)))
	pinned := make(map[int]bool, pinnedCount+2)
	for _, idx := range active[:min(pinnedCount, len(active))] {
		pinned[idx] = true
	}
	var rest []int
	for _, idx := range active {
		if !pinned[idx] {
			rest = append(rest, idx)
		}
	}
	extra := min(2, len(rest))
	for _, idx := range rest[len(rest)-extra:] {
		pinned[idx] = true
	}

	rnd := newLCG(titleLen)
	out := make([]domain.StarterNote, 0, len(starterNotes))
	for i, n := range starterNotes {
		color := "transparent"
		if rnd.next() >= transparentRate {
			color = colors[int(rnd.next()*float64(len(colors)))]
		}
		out = append(out, domain.StarterNote{
			Note: domain.Note{
				Title:      n.title,
				Content:    n.content,
				Color:      color,
				IsArchived: n.archived,
				IsDeleted:  n.deleted,
				IsPinned:   pinned[i],
				Position:   i,
			},
			LabelNames: append([]string(nil), n.labels...),
		})
	}
	return out
}

// EnsureDemoUser creates the demo account and seeds it unless it already
// has notes. It is safe to run repeatedly.
func EnsureDemoUser(ctx context.Context, store DemoStore, logger *slog.Logger) (domain.User, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, found, err := store.FindAccountByLogin(ctx, DemoLogin)
	if err != nil {
		return domain.User{}, fmt.Errorf("find demo user: %w", err)
	}
	if !found {
		hash, err := auth.HashPassword(DemoPassword)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash demo password: %w", err)
		}
		u = domain.User{Email: DemoLogin, Username: DemoLogin, PasswordHash: hash}
		if err := store.CreateAccount(ctx, &u); err != nil {
			return domain.User{}, fmt.Errorf("create demo user: %w", err)
		}
		logger.Info("demo user created", "login", DemoLogin)
	} else {
		logger.Info("demo user already exists", "user_id", u.ID)
	}

	_, hasNotes, err := store.MinNotePosition(ctx, u.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("check demo notes: %w", err)
	}
	if hasNotes {
		logger.Info("demo notes already exist", "user_id", u.ID)
		return u, nil
	}
	if err := New(store).SeedDemoData(ctx, u.ID); err != nil {
		return domain.User{}, err
	}
	logger.Info("demo notes created", "user_id", u.ID, "notes", len(starterNotes))
	return u, nil
}

// lcg is the small linear congruential generator behind note colors.
type lcg struct {
	seed int
}

func newLCG(seed int) *lcg {
	if seed == 0 {
		seed = 1
	}
	return &lcg{seed: seed}
}

func (g *lcg) next() float64 {
	g.seed = (g.seed*9301 + 49297) % 233280
	return float64(g.seed) / 233280
}
