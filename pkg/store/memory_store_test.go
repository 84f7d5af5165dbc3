package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"keepnotes/pkg/domain"
)

func mustAccount(t *testing.T, s *MemoryStore, email, username string) domain.User {
	t.Helper()
	u := domain.User{Email: email, Username: username, PasswordHash: "h"}
	if err := s.CreateAccount(context.Background(), &u); err != nil {
		t.Fatalf("create account %s: %v", email, err)
	}
	return u
}

func TestMemoryStoreAccountUniqueness(t *testing.T) {
	s := NewMemoryStore()
	mustAccount(t, s, "a@example.com", "alice")
	err := s.CreateAccount(context.Background(), &domain.User{Email: "a@example.com", Username: "other"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	err = s.CreateAccount(context.Background(), &domain.User{Email: "b@example.com", Username: "ALICE"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected username conflict, got %v", err)
	}
}

func TestMemoryStoreFindAccountByLogin(t *testing.T) {
	s := NewMemoryStore()
	u := mustAccount(t, s, "a@example.com", "Alice")
	for _, ident := range []string{"a@example.com", " A@Example.com ", "alice", "ALICE"} {
		got, ok, err := s.FindAccountByLogin(context.Background(), ident)
		if err != nil || !ok || got.ID != u.ID {
			t.Fatalf("lookup %q: ok=%v err=%v got=%+v", ident, ok, err, got)
		}
	}
	if _, ok, _ := s.FindAccountByLogin(context.Background(), "bob"); ok {
		t.Fatalf("expected no match for unknown identifier")
	}
}

func TestMemoryStoreSwapIsCompareAndSwap(t *testing.T) {
	s := NewMemoryStore()
	u := mustAccount(t, s, "guest_pool_a@demo.local", "GuestPool_a")

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan int64, racers)
	start := make(chan struct{})
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			n, err := s.SwapAccountIdentity(context.Background(), u.ID, u.Email,
				"guest_"+string(rune('a'+i))+"@demo.local", "Guest_"+string(rune('a'+i)))
			if err != nil {
				t.Errorf("swap: %v", err)
			}
			wins <- n
		}(i)
	}
	close(start)
	wg.Wait()
	close(wins)
	var total int64
	for n := range wins {
		total += n
	}
	if total != 1 {
		t.Fatalf("expected exactly one winner, got %d", total)
	}
}

func TestMemoryStoreCascadeRemovesDependents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	doomed := mustAccount(t, s, "guest_1_1@demo.local", "Guest_1_1")
	kept := mustAccount(t, s, "keep@example.com", "keep")
	starter := []domain.StarterNote{{Note: domain.Note{Title: "t", Content: "<p>c</p>"}, LabelNames: []string{"Work"}}}
	if err := s.CreateStarterSet(ctx, doomed.ID, []string{"Work"}, starter); err != nil {
		t.Fatalf("seed doomed: %v", err)
	}
	if err := s.CreateStarterSet(ctx, kept.ID, []string{"Work"}, starter); err != nil {
		t.Fatalf("seed kept: %v", err)
	}

	if err := s.DeleteAccountsCascade(ctx, []uint{doomed.ID}); err != nil {
		t.Fatalf("cascade: %v", err)
	}
	if s.CountNotes(doomed.ID) != 0 || s.CountLabels(doomed.ID) != 0 {
		t.Fatalf("expected dependents of deleted account to be gone")
	}
	if _, ok, _ := s.GetAccountByID(ctx, doomed.ID); ok {
		t.Fatalf("expected account to be gone")
	}
	if s.CountNotes(kept.ID) != 1 || s.CountLabels(kept.ID) != 1 {
		t.Fatalf("expected other account untouched")
	}
}

func TestMemoryStoreListNotesFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := mustAccount(t, s, "a@example.com", "alice")
	work := domain.Label{Name: "Work", UserID: u.ID}
	if err := s.CreateLabel(ctx, &work); err != nil {
		t.Fatalf("label: %v", err)
	}
	reminder := time.Now().Add(time.Hour)
	notes := []domain.Note{
		{Title: "pinned", Content: "<p>x</p>", IsPinned: true, Position: 5},
		{Title: "first", Content: "<p>Espresso</p>", Position: 0},
		{Title: "second", Content: "<p>y</p>", Position: 1, Reminder: &reminder},
		{Title: "third", Content: "<p>z</p>", Position: 2},
		{Title: "archived", Content: "<p>a</p>", IsArchived: true},
		{Title: "trashed", Content: "<p>t</p>", IsDeleted: true, IsArchived: true},
	}
	for i := range notes {
		notes[i].UserID = u.ID
		var labels []uint
		if notes[i].Title == "third" {
			labels = []uint{work.ID}
		}
		if err := s.CreateNote(ctx, &notes[i], labels); err != nil {
			t.Fatalf("note: %v", err)
		}
	}

	page, err := s.ListNotes(ctx, u.ID, domain.NoteFilter{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].Title != "pinned" || page.Items[1].Title != "first" {
		t.Fatalf("unexpected first page: %+v", titles(page.Items))
	}
	if page.NextCursor == nil || *page.NextCursor != page.Items[1].ID {
		t.Fatalf("expected cursor at last item")
	}
	page, _ = s.ListNotes(ctx, u.ID, domain.NoteFilter{Limit: 2, Cursor: *page.NextCursor})
	if got := titles(page.Items); len(got) != 2 || got[0] != "second" || got[1] != "third" || page.NextCursor != nil {
		t.Fatalf("unexpected second page: %v cursor=%v", got, page.NextCursor)
	}

	check := func(f domain.NoteFilter, want ...string) {
		t.Helper()
		page, err := s.ListNotes(ctx, u.ID, f)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		got := titles(page.Items)
		if len(got) != len(want) {
			t.Fatalf("filter %+v: got %v want %v", f, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("filter %+v: got %v want %v", f, got, want)
			}
		}
	}
	check(domain.NoteFilter{Archived: true}, "archived")
	check(domain.NoteFilter{Deleted: true}, "trashed")
	check(domain.NoteFilter{HasReminder: true}, "second")
	check(domain.NoteFilter{LabelID: work.ID}, "third")
	check(domain.NoteFilter{AnyLabelIDs: []uint{work.ID, 999}}, "third")
	check(domain.NoteFilter{Search: "ESPRESSO"}, "first")
	check(domain.NoteFilter{Search: "pinn"}, "pinned")
}

func TestMemoryStoreUpdateNoteReplacesLabels(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	u := mustAccount(t, s, "a@example.com", "alice")
	other := mustAccount(t, s, "b@example.com", "bob")
	a := domain.Label{Name: "A", UserID: u.ID}
	b := domain.Label{Name: "B", UserID: u.ID}
	foreign := domain.Label{Name: "F", UserID: other.ID}
	for _, l := range []*domain.Label{&a, &b, &foreign} {
		if err := s.CreateLabel(ctx, l); err != nil {
			t.Fatalf("label: %v", err)
		}
	}
	n := domain.Note{Title: "n", Content: "<p>c</p>", UserID: u.ID}
	if err := s.CreateNote(ctx, &n, []uint{a.ID}); err != nil {
		t.Fatalf("note: %v", err)
	}
	ids := []uint{b.ID, foreign.ID}
	title := "renamed"
	got, ok, err := s.UpdateNote(ctx, u.ID, n.ID, domain.NotePatch{Title: &title, LabelIDs: &ids})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	if got.Title != "renamed" || len(got.Labels) != 1 || got.Labels[0].ID != b.ID {
		t.Fatalf("unexpected note after update: %+v", got)
	}
	if _, ok, _ := s.UpdateNote(ctx, other.ID, n.ID, domain.NotePatch{Title: &title}); ok {
		t.Fatalf("expected other users to be unable to update the note")
	}
}

func titles(notes []domain.Note) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}
