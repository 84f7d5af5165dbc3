package guest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"keepnotes/pkg/domain"
	"keepnotes/pkg/store"
	"keepnotes/services/notes/internal/seed"
)

type fakeHasher struct {
	calls atomic.Int32
}

func (h *fakeHasher) Hash(plaintext string) (string, error) {
	h.calls.Add(1)
	return "hash:" + plaintext, nil
}

type fakeTokens struct{}

func (fakeTokens) Sign(subject uint, email string) (string, error) {
	return fmt.Sprintf("token-%d-%s", subject, email), nil
}

// recordingSeeder seeds through the real starter set and records every call.
type recordingSeeder struct {
	inner *seed.Seeder

	mu     sync.Mutex
	calls  []uint
	failOn map[int]error
	failIf func(accountID uint) error
}

func (s *recordingSeeder) SeedDemoData(ctx context.Context, accountID uint) error {
	s.mu.Lock()
	s.calls = append(s.calls, accountID)
	err := s.failOn[len(s.calls)]
	s.mu.Unlock()
	if err == nil && s.failIf != nil {
		err = s.failIf(accountID)
	}
	if err != nil {
		return err
	}
	return s.inner.SeedDemoData(ctx, accountID)
}

func (s *recordingSeeder) seeded() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint(nil), s.calls...)
}

// faultyStore lets a test swap out individual store calls.
type faultyStore struct {
	*store.MemoryStore
	swap     func(ctx context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error)
	first    func(ctx context.Context, prefix string) (domain.User, bool, error)
	cascade  func(ctx context.Context, ids []uint) error
	swapCall atomic.Int32
}

func (f *faultyStore) SwapAccountIdentity(ctx context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error) {
	f.swapCall.Add(1)
	if f.swap != nil {
		return f.swap(ctx, id, oldEmail, newEmail, newUsername)
	}
	return f.MemoryStore.SwapAccountIdentity(ctx, id, oldEmail, newEmail, newUsername)
}

func (f *faultyStore) FirstAccountByEmailPrefix(ctx context.Context, prefix string) (domain.User, bool, error) {
	if f.first != nil {
		return f.first(ctx, prefix)
	}
	return f.MemoryStore.FirstAccountByEmailPrefix(ctx, prefix)
}

func (f *faultyStore) DeleteAccountsCascade(ctx context.Context, ids []uint) error {
	if f.cascade != nil {
		return f.cascade(ctx, ids)
	}
	return f.MemoryStore.DeleteAccountsCascade(ctx, ids)
}

var errInjected = errors.New("injected failure")

type harness struct {
	manager *Manager
	mem     *store.MemoryStore
	seeder  *recordingSeeder
	hasher  *fakeHasher
	metrics *Metrics
	now     time.Time
}

type harnessOption func(*Config)

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	mem := store.NewMemoryStore()
	return buildHarness(t, mem, mem, opts...)
}

// newFaultyHarness wires the manager through a faultyStore over the same
// memory store the harness inspects.
func newFaultyHarness(t *testing.T, opts ...harnessOption) (*harness, *faultyStore) {
	t.Helper()
	fs := &faultyStore{MemoryStore: store.NewMemoryStore()}
	return buildHarness(t, fs.MemoryStore, fs, opts...), fs
}

func buildHarness(t *testing.T, mem *store.MemoryStore, s Store, opts ...harnessOption) *harness {
	t.Helper()
	h := &harness{
		mem:     mem,
		seeder:  &recordingSeeder{inner: seed.New(mem)},
		hasher:  &fakeHasher{},
		metrics: NewMetrics(prometheus.NewRegistry()),
		now:     time.UnixMilli(1700000000000),
	}
	cfg := Config{
		Store:   s,
		Hasher:  h.hasher,
		Tokens:  fakeTokens{},
		Seeder:  h.seeder,
		Metrics: h.metrics,
		Now:     func() time.Time { return h.now },
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	m, err := New(cfg)
	require.NoError(t, err)
	h.manager = m
	t.Cleanup(m.Wait)
	return h
}

func withClaimRetries(n int) harnessOption {
	return func(c *Config) { c.ClaimRetries = n }
}

// addPooled creates n seeded pooled accounts directly.
func (h *harness) addPooled(t *testing.T, n int) []domain.User {
	t.Helper()
	out := make([]domain.User, 0, n)
	for i := 0; i < n; i++ {
		email, username := pooledIdentity(h.now)
		u := domain.User{Email: email, Username: username, PasswordHash: "pool"}
		require.NoError(t, h.mem.CreateAccount(context.Background(), &u))
		require.NoError(t, h.seeder.inner.SeedDemoData(context.Background(), u.ID))
		out = append(out, u)
	}
	return out
}

// addClaimed creates a claimed guest whose embedded epoch is created.
func (h *harness) addClaimed(t *testing.T, created time.Time, notes, labels int) domain.User {
	t.Helper()
	ctx := context.Background()
	email, username := claimedIdentity(created)
	u := domain.User{Email: email, Username: username, PasswordHash: "guest"}
	require.NoError(t, h.mem.CreateAccount(ctx, &u))
	names := make([]string, 0, labels)
	for i := 0; i < labels; i++ {
		names = append(names, fmt.Sprintf("label-%d", i))
	}
	starters := make([]domain.StarterNote, 0, notes)
	for i := 0; i < notes; i++ {
		starters = append(starters, domain.StarterNote{
			Note:       domain.Note{Title: fmt.Sprintf("note-%d", i), Content: "<p>x</p>"},
			LabelNames: names,
		})
	}
	require.NoError(t, h.mem.CreateStarterSet(ctx, u.ID, names, starters))
	return u
}

func (h *harness) pooledCount(t *testing.T) int64 {
	t.Helper()
	n, err := h.mem.CountAccountsByEmailPrefix(context.Background(), PoolEmailPrefix)
	require.NoError(t, err)
	return n
}
