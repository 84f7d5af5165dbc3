// Package guest manages guest accounts: a pool of pre-seeded accounts that
// guest logins claim, the on-demand fallback when the pool is empty, and the
// sweep that deletes guests past their retention window.
package guest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"keepnotes/pkg/domain"
	"keepnotes/pkg/store"
)

const (
	DefaultPoolSize      = 3
	DefaultRetention     = 24 * time.Hour
	DefaultSweepInterval = time.Hour
	DefaultClaimRetries  = 3
)

// Store is the subset of persistence the guest pool needs.
type Store interface {
	CreateAccount(ctx context.Context, u *domain.User) error
	GetAccountByID(ctx context.Context, id uint) (domain.User, bool, error)
	FirstAccountByEmailPrefix(ctx context.Context, prefix string) (domain.User, bool, error)
	ListAccountsByEmailPrefix(ctx context.Context, prefix string) ([]domain.User, error)
	CountAccountsByEmailPrefix(ctx context.Context, prefix string) (int64, error)
	SwapAccountIdentity(ctx context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error)
	DeleteAccountsCascade(ctx context.Context, ids []uint) error
}

type Hasher interface {
	Hash(plaintext string) (string, error)
}

type TokenSigner interface {
	Sign(subject uint, email string) (string, error)
}

// Seeder writes the starter notes and labels for a fresh account. It is
// called at most once per account.
type Seeder interface {
	SeedDemoData(ctx context.Context, accountID uint) error
}

// Config wires a Manager. Zero policy values fall back to the defaults.
type Config struct {
	Store        Store
	Hasher       Hasher
	Tokens       TokenSigner
	Seeder       Seeder
	PoolSize     int
	Retention    time.Duration
	ClaimRetries int
	Logger       *slog.Logger
	Metrics      *Metrics
	Now          func() time.Time
}

// Manager owns the guest pool. Claims are safe across processes sharing one
// store because the only coordination is the store's conditional update.
type Manager struct {
	store        Store
	hasher       Hasher
	tokens       TokenSigner
	seeder       Seeder
	poolSize     int
	retention    time.Duration
	claimRetries int
	logger       *slog.Logger
	metrics      *Metrics
	now          func() time.Time

	topUp singleflight.Group
	bg    sync.WaitGroup

	hashMu   sync.Mutex
	poolHash string
}

// New validates the collaborators and applies defaults.
func New(cfg Config) (*Manager, error) {
	if cfg.Store == nil || cfg.Hasher == nil || cfg.Tokens == nil || cfg.Seeder == nil {
		return nil, errors.New("guest: store, hasher, tokens and seeder are required")
	}
	if cfg.PoolSize < 0 {
		return nil, fmt.Errorf("guest: pool size must be >= 0, got %d", cfg.PoolSize)
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.ClaimRetries <= 0 {
		cfg.ClaimRetries = DefaultClaimRetries
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{
		store:        cfg.Store,
		hasher:       cfg.Hasher,
		tokens:       cfg.Tokens,
		seeder:       cfg.Seeder,
		poolSize:     cfg.PoolSize,
		retention:    cfg.Retention,
		claimRetries: cfg.ClaimRetries,
		logger:       cfg.Logger.With("component", "guest_pool"),
		metrics:      cfg.Metrics,
		now:          cfg.Now,
	}, nil
}

// LoginAsGuest hands out a pooled account when one can be claimed and
// creates one on demand otherwise. Seeding of an on-demand account and the
// pool top-up run in the background; their failures are only logged.
func (m *Manager) LoginAsGuest(ctx context.Context) (domain.Session, error) {
	u, ok, err := m.ClaimPooledAccount(ctx)
	if err != nil {
		m.logger.Warn("claim pooled guest failed, creating on demand", "err", err)
		ok = false
	}
	if !ok {
		u, err = m.createOnDemandGuest(ctx)
		if err != nil {
			return domain.Session{}, err
		}
		accountID := u.ID
		m.goBackground(ctx, func(ctx context.Context) {
			if err := m.seeder.SeedDemoData(ctx, accountID); err != nil {
				m.metrics.seedFailures.WithLabelValues("on_demand").Inc()
				m.logger.Error("seed on-demand guest failed", "account_id", accountID, "err", err)
			}
		})
	}
	m.goBackground(ctx, func(ctx context.Context) {
		if _, err := m.EnsureGuestPool(ctx); err != nil {
			m.logger.Error("guest pool top-up failed", "err", err)
		}
	})

	token, err := m.tokens.Sign(u.ID, u.Email)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign guest token: %w", err)
	}
	return domain.Session{AccessToken: token, User: u.Public()}, nil
}

// ClaimPooledAccount rewrites the oldest pooled account into a claimed guest.
// ok is false when the pool is empty or every attempt lost its race.
func (m *Manager) ClaimPooledAccount(ctx context.Context) (domain.User, bool, error) {
	for attempt := 1; attempt <= m.claimRetries; attempt++ {
		candidate, found, err := m.store.FirstAccountByEmailPrefix(ctx, PoolEmailPrefix)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("select pooled account: %w", err)
		}
		if !found {
			m.metrics.claims.WithLabelValues("empty").Inc()
			return domain.User{}, false, nil
		}

		email, username := claimedIdentity(m.now())
		n, err := m.store.SwapAccountIdentity(ctx, candidate.ID, candidate.Email, email, username)
		if errors.Is(err, store.ErrConflict) {
			// the generated identity collided; draw a new one
			continue
		}
		if err != nil {
			return domain.User{}, false, fmt.Errorf("claim pooled account %d: %w", candidate.ID, err)
		}
		if n != 1 {
			m.logger.Debug("pooled account taken by another claimant", "account_id", candidate.ID, "attempt", attempt)
			continue
		}

		claimed, found, err := m.store.GetAccountByID(ctx, candidate.ID)
		if err != nil {
			return domain.User{}, false, fmt.Errorf("load claimed account %d: %w", candidate.ID, err)
		}
		if !found {
			continue
		}
		m.metrics.claims.WithLabelValues("claimed").Inc()
		return claimed, true, nil
	}
	m.metrics.claims.WithLabelValues("contended").Inc()
	return domain.User{}, false, nil
}

// EnsureGuestPool tops the pool up to its target size. Concurrent callers in
// this process share one run.
func (m *Manager) EnsureGuestPool(ctx context.Context) (int, error) {
	v, err, _ := m.topUp.Do("ensure", func() (any, error) {
		return m.ensureGuestPool(ctx)
	})
	created, _ := v.(int)
	return created, err
}

func (m *Manager) ensureGuestPool(ctx context.Context) (int, error) {
	count, err := m.store.CountAccountsByEmailPrefix(ctx, PoolEmailPrefix)
	if err != nil {
		return 0, fmt.Errorf("count pooled accounts: %w", err)
	}
	m.metrics.poolSize.Set(float64(count))
	missing := m.poolSize - int(count)
	if missing <= 0 {
		return 0, nil
	}
	hash, err := m.poolPasswordHash()
	if err != nil {
		return 0, err
	}

	created := 0
	for i := 0; i < missing; i++ {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		if err := m.createPooledAccount(ctx, hash); err != nil {
			m.logger.Warn("create pooled guest failed", "err", err)
			continue
		}
		created++
	}
	m.metrics.poolSize.Set(float64(int(count) + created))
	if created > 0 {
		m.logger.Info("guest pool topped up", "created", created, "target", m.poolSize)
	}
	return created, nil
}

// createPooledAccount only leaves a row in the pool once it is fully seeded.
func (m *Manager) createPooledAccount(ctx context.Context, hash string) error {
	email, username := pooledIdentity(m.now())
	u := domain.User{Email: email, Username: username, PasswordHash: hash}
	if err := m.store.CreateAccount(ctx, &u); err != nil {
		return fmt.Errorf("create pooled account: %w", err)
	}
	m.metrics.accountsCreated.WithLabelValues("pooled").Inc()

	if err := m.seeder.SeedDemoData(ctx, u.ID); err != nil {
		m.metrics.seedFailures.WithLabelValues("pooled").Inc()
		seedErr := fmt.Errorf("seed pooled account %d: %w", u.ID, err)
		if derr := m.store.DeleteAccountsCascade(ctx, []uint{u.ID}); derr != nil {
			return errors.Join(seedErr, fmt.Errorf("discard pooled account %d: %w", u.ID, derr))
		}
		return seedErr
	}
	return nil
}

func (m *Manager) createOnDemandGuest(ctx context.Context) (domain.User, error) {
	hash, err := m.hasher.Hash(rand.Text())
	if err != nil {
		return domain.User{}, fmt.Errorf("hash guest password: %w", err)
	}
	var lastErr error
	for attempt := 0; attempt < m.claimRetries; attempt++ {
		email, username := claimedIdentity(m.now())
		u := domain.User{Email: email, Username: username, PasswordHash: hash}
		err := m.store.CreateAccount(ctx, &u)
		if err == nil {
			m.metrics.accountsCreated.WithLabelValues("on_demand").Inc()
			return u, nil
		}
		lastErr = err
		if !errors.Is(err, store.ErrConflict) {
			break
		}
	}
	return domain.User{}, fmt.Errorf("create guest account: %w", lastErr)
}

// CleanupExpiredGuests deletes every claimed guest at least the retention
// age old, with its notes and labels, in one transaction. Pooled and
// permanent accounts never match.
func (m *Manager) CleanupExpiredGuests(ctx context.Context) (int, error) {
	candidates, err := m.store.ListAccountsByEmailPrefix(ctx, GuestEmailPrefix)
	if err != nil {
		return 0, fmt.Errorf("list guest accounts: %w", err)
	}
	now := m.now()
	var expired []uint
	for _, u := range candidates {
		if IsExpired(u.Email, now, m.retention) {
			expired = append(expired, u.ID)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}
	if err := m.store.DeleteAccountsCascade(ctx, expired); err != nil {
		return 0, fmt.Errorf("delete %d expired guests: %w", len(expired), err)
	}
	m.metrics.expiredDeleted.Add(float64(len(expired)))
	m.logger.Info("deleted expired guest users", "count", len(expired))
	return len(expired), nil
}

// RunMaintenanceSweepOnce frees expired guests, then refills the pool so the
// count reflects the post-expiry state.
func (m *Manager) RunMaintenanceSweepOnce(ctx context.Context) error {
	start := time.Now()
	deleted, cleanupErr := m.CleanupExpiredGuests(ctx)
	if cleanupErr != nil {
		m.logger.Error("expired guest cleanup failed", "err", cleanupErr)
	}
	created, poolErr := m.EnsureGuestPool(ctx)
	if poolErr != nil {
		m.logger.Error("guest pool top-up failed", "err", poolErr)
	}

	outcome := "ok"
	if cleanupErr != nil || poolErr != nil {
		outcome = "error"
	}
	elapsed := time.Since(start)
	m.metrics.sweeps.WithLabelValues(outcome).Inc()
	m.metrics.sweepDuration.Observe(elapsed.Seconds())
	m.logger.Debug("guest maintenance sweep finished",
		"deleted", deleted,
		"created", created,
		"duration_ms", elapsed.Milliseconds(),
	)
	return errors.Join(cleanupErr, poolErr)
}

// Wait blocks until background seeding and top-ups have finished.
func (m *Manager) Wait() {
	m.bg.Wait()
}

func (m *Manager) goBackground(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		fn(ctx)
	}()
}

func (m *Manager) poolPasswordHash() (string, error) {
	m.hashMu.Lock()
	defer m.hashMu.Unlock()
	if m.poolHash != "" {
		return m.poolHash, nil
	}
	hash, err := m.hasher.Hash(PoolEmailPrefix + rand.Text())
	if err != nil {
		return "", fmt.Errorf("hash pool password: %w", err)
	}
	m.poolHash = hash
	return hash, nil
}
