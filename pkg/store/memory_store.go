package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"keepnotes/pkg/domain"
	"keepnotes/pkg/richtext"
)

// MemoryStore is an in-memory Store for tests and local runs. Every method
// holds the lock for its whole duration, so each call is atomic.
type MemoryStore struct {
	mu sync.Mutex

	nextAccountID uint
	nextLabelID   uint
	nextNoteID    uint

	accounts   map[uint]domain.User
	labels     map[uint]domain.Label
	notes      map[uint]domain.Note
	noteLabels map[uint]map[uint]struct{}
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:   make(map[uint]domain.User),
		labels:     make(map[uint]domain.Label),
		notes:      make(map[uint]domain.Note),
		noteLabels: make(map[uint]map[uint]struct{}),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) CreateAccount(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.accounts {
		if existing.Email == u.Email || strings.EqualFold(existing.Username, u.Username) {
			return ErrConflict
		}
	}
	m.nextAccountID++
	now := time.Now().UTC()
	created := *u
	created.ID = m.nextAccountID
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now
	m.accounts[created.ID] = created
	*u = created
	return nil
}

func (m *MemoryStore) GetAccountByID(_ context.Context, id uint) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.accounts[id]
	return u, ok, nil
}

func (m *MemoryStore) FindAccountByLogin(_ context.Context, identifier string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	identifier = strings.ToLower(strings.TrimSpace(identifier))
	for _, u := range m.sortedAccounts() {
		if u.Email == identifier || strings.ToLower(u.Username) == identifier {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) HasAccountEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.accounts {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) HasAccountUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.accounts {
		if strings.EqualFold(u.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) FirstAccountByEmailPrefix(_ context.Context, prefix string) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.sortedAccounts() {
		if strings.HasPrefix(u.Email, prefix) {
			return u, true, nil
		}
	}
	return domain.User{}, false, nil
}

func (m *MemoryStore) ListAccountsByEmailPrefix(_ context.Context, prefix string) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.User{}
	for _, u := range m.sortedAccounts() {
		if strings.HasPrefix(u.Email, prefix) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *MemoryStore) CountAccountsByEmailPrefix(_ context.Context, prefix string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.accounts {
		if strings.HasPrefix(u.Email, prefix) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) SwapAccountIdentity(_ context.Context, id uint, oldEmail, newEmail, newUsername string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.accounts[id]
	if !ok || u.Email != oldEmail {
		return 0, nil
	}
	for otherID, other := range m.accounts {
		if otherID != id && (other.Email == newEmail || strings.EqualFold(other.Username, newUsername)) {
			return 0, ErrConflict
		}
	}
	u.Email = newEmail
	u.Username = newUsername
	u.UpdatedAt = time.Now().UTC()
	m.accounts[id] = u
	return 1, nil
}

func (m *MemoryStore) DeleteAccountsCascade(_ context.Context, ids []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doomed := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		doomed[id] = struct{}{}
	}
	for id, n := range m.notes {
		if _, ok := doomed[n.UserID]; ok {
			delete(m.notes, id)
			delete(m.noteLabels, id)
		}
	}
	for id, l := range m.labels {
		if _, ok := doomed[l.UserID]; ok {
			m.unlinkLabel(id)
			delete(m.labels, id)
		}
	}
	for id := range doomed {
		delete(m.accounts, id)
	}
	return nil
}

func (m *MemoryStore) CreateLabel(_ context.Context, l *domain.Label) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createLabelLocked(l)
}

func (m *MemoryStore) createLabelLocked(l *domain.Label) error {
	for _, existing := range m.labels {
		if existing.UserID == l.UserID && existing.Name == l.Name {
			return ErrConflict
		}
	}
	m.nextLabelID++
	now := time.Now().UTC()
	created := *l
	created.ID = m.nextLabelID
	created.CreatedAt = now
	created.UpdatedAt = now
	m.labels[created.ID] = created
	*l = created
	return nil
}

func (m *MemoryStore) ListLabels(_ context.Context, userID uint) ([]domain.Label, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Label{}
	for _, l := range m.labels {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemoryStore) RenameLabel(_ context.Context, userID, id uint, name string) (domain.Label, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[id]
	if !ok || l.UserID != userID {
		return domain.Label{}, false, nil
	}
	for otherID, other := range m.labels {
		if otherID != id && other.UserID == userID && other.Name == name {
			return domain.Label{}, false, ErrConflict
		}
	}
	l.Name = name
	l.UpdatedAt = time.Now().UTC()
	m.labels[id] = l
	return l, true, nil
}

func (m *MemoryStore) DeleteLabel(_ context.Context, userID, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.labels[id]
	if !ok || l.UserID != userID {
		return false, nil
	}
	m.unlinkLabel(id)
	delete(m.labels, id)
	return true, nil
}

func (m *MemoryStore) CreateNote(_ context.Context, n *domain.Note, labelIDs []uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createNoteLocked(n, labelIDs)
	*n = m.hydrate(m.notes[n.ID])
	return nil
}

func (m *MemoryStore) createNoteLocked(n *domain.Note, labelIDs []uint) {
	m.nextNoteID++
	now := time.Now().UTC()
	created := *n
	created.ID = m.nextNoteID
	created.Labels = nil
	created.CreatedAt = now
	created.UpdatedAt = now
	m.notes[created.ID] = created
	m.linkLabels(created.ID, created.UserID, labelIDs)
	*n = created
}

func (m *MemoryStore) GetNote(_ context.Context, userID, id uint) (domain.Note, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return domain.Note{}, false, nil
	}
	return m.hydrate(n), true, nil
}

func (m *MemoryStore) ListNotes(_ context.Context, userID uint, f domain.NoteFilter) (domain.NotePage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit := NormalizeLimit(f.Limit)
	page := domain.NotePage{Items: []domain.Note{}}
	term := strings.ToLower(strings.TrimSpace(f.Search))

	var matched []domain.Note
	for id, n := range m.notes {
		if n.UserID != userID || n.IsDeleted != f.Deleted {
			continue
		}
		if !f.Deleted && n.IsArchived != f.Archived {
			continue
		}
		if f.HasReminder && n.Reminder == nil {
			continue
		}
		if f.LabelID != 0 {
			if _, ok := m.noteLabels[id][f.LabelID]; !ok {
				continue
			}
		}
		if len(f.AnyLabelIDs) > 0 && !m.hasAnyLabel(id, f.AnyLabelIDs) {
			continue
		}
		if term != "" && !strings.Contains(richtext.SearchText(n.Title, n.Content), term) {
			continue
		}
		matched = append(matched, n)
	}
	sort.Slice(matched, func(i, j int) bool { return noteBefore(matched[i], matched[j]) })

	if f.Cursor != 0 {
		cur, ok := m.notes[f.Cursor]
		if !ok || cur.UserID != userID {
			return page, nil
		}
		start := len(matched)
		for i, n := range matched {
			if noteBefore(cur, n) {
				start = i
				break
			}
		}
		matched = matched[start:]
	}
	if len(matched) > limit {
		matched = matched[:limit]
		next := matched[limit-1].ID
		page.NextCursor = &next
	}
	for _, n := range matched {
		page.Items = append(page.Items, m.hydrate(n))
	}
	return page, nil
}

func (m *MemoryStore) UpdateNote(_ context.Context, userID, id uint, patch domain.NotePatch) (domain.Note, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return domain.Note{}, false, nil
	}
	ApplyNotePatch(&n, patch)
	n.UpdatedAt = time.Now().UTC()
	m.notes[id] = n
	if patch.LabelIDs != nil {
		delete(m.noteLabels, id)
		m.linkLabels(id, userID, *patch.LabelIDs)
	}
	return m.hydrate(n), true, nil
}

func (m *MemoryStore) ReorderNotes(_ context.Context, userID uint, positions []domain.NotePosition) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, p := range positions {
		n, ok := m.notes[p.ID]
		if !ok || n.UserID != userID {
			continue
		}
		n.Position = p.Position
		n.UpdatedAt = time.Now().UTC()
		m.notes[p.ID] = n
		total++
	}
	return total, nil
}

func (m *MemoryStore) DeleteNote(_ context.Context, userID, id uint) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok || n.UserID != userID {
		return false, nil
	}
	delete(m.notes, id)
	delete(m.noteLabels, id)
	return true, nil
}

func (m *MemoryStore) MinNotePosition(_ context.Context, userID uint) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	minPos := 0
	for _, n := range m.notes {
		if n.UserID != userID {
			continue
		}
		if !found || n.Position < minPos {
			minPos = n.Position
			found = true
		}
	}
	return minPos, found, nil
}

func (m *MemoryStore) CreateStarterSet(_ context.Context, userID uint, labels []string, notes []domain.StarterNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName := make(map[string]uint, len(labels))
	for _, name := range labels {
		l := domain.Label{Name: name, UserID: userID}
		if err := m.createLabelLocked(&l); err != nil {
			return err
		}
		byName[name] = l.ID
	}
	for _, starter := range notes {
		n := starter.Note
		n.UserID = userID
		ids := make([]uint, 0, len(starter.LabelNames))
		for _, name := range starter.LabelNames {
			if id, ok := byName[name]; ok {
				ids = append(ids, id)
			}
		}
		m.createNoteLocked(&n, ids)
	}
	return nil
}

// CountNotes reports how many notes an account owns.
func (m *MemoryStore) CountNotes(userID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, note := range m.notes {
		if note.UserID == userID {
			n++
		}
	}
	return n
}

// CountLabels reports how many labels an account owns.
func (m *MemoryStore) CountLabels(userID uint) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.labels {
		if l.UserID == userID {
			n++
		}
	}
	return n
}

func (m *MemoryStore) sortedAccounts() []domain.User {
	out := make([]domain.User, 0, len(m.accounts))
	for _, u := range m.accounts {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *MemoryStore) linkLabels(noteID, userID uint, labelIDs []uint) {
	for _, labelID := range labelIDs {
		l, ok := m.labels[labelID]
		if !ok || l.UserID != userID {
			continue
		}
		set, ok := m.noteLabels[noteID]
		if !ok {
			set = make(map[uint]struct{})
			m.noteLabels[noteID] = set
		}
		set[labelID] = struct{}{}
	}
}

func (m *MemoryStore) unlinkLabel(labelID uint) {
	for _, set := range m.noteLabels {
		delete(set, labelID)
	}
}

func (m *MemoryStore) hasAnyLabel(noteID uint, labelIDs []uint) bool {
	set := m.noteLabels[noteID]
	for _, id := range labelIDs {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}

func (m *MemoryStore) hydrate(n domain.Note) domain.Note {
	labels := make([]domain.Label, 0, len(m.noteLabels[n.ID]))
	for id := range m.noteLabels[n.ID] {
		if l, ok := m.labels[id]; ok {
			labels = append(labels, l)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i].Name < labels[j].Name })
	n.Labels = labels
	return n
}

// noteBefore orders notes pinned first, then by position, then by id.
func noteBefore(a, b domain.Note) bool {
	if a.IsPinned != b.IsPinned {
		return a.IsPinned
	}
	if a.Position != b.Position {
		return a.Position < b.Position
	}
	return a.ID < b.ID
}
