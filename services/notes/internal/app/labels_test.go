package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelLifecycle(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	uid := register(t, a, "alice@example.com", "alice").User.ID

	work, err := a.CreateLabel(ctx, uid, "  Work ")
	require.NoError(t, err)
	assert.Equal(t, "Work", work.Name)
	_, err = a.CreateLabel(ctx, uid, "Ideas")
	require.NoError(t, err)

	_, err = a.CreateLabel(ctx, uid, "Work")
	require.ErrorIs(t, err, ErrLabelExists)
	assert.Equal(t, "Category already exists", err.Error())

	_, err = a.CreateLabel(ctx, uid, "   ")
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = a.RenameLabel(ctx, uid, work.ID, "Ideas")
	require.ErrorIs(t, err, ErrLabelExists)

	renamed, err := a.RenameLabel(ctx, uid, work.ID, "Office")
	require.NoError(t, err)
	assert.Equal(t, "Office", renamed.Name)

	labels, err := a.ListLabels(ctx, uid)
	require.NoError(t, err)
	require.Len(t, labels, 2)
	assert.Equal(t, "Ideas", labels[0].Name, "labels are listed by name")

	require.NoError(t, a.DeleteLabel(ctx, uid, work.ID))
	require.ErrorIs(t, a.DeleteLabel(ctx, uid, work.ID), ErrLabelNotFound)
	_, err = a.RenameLabel(ctx, uid, work.ID, "Gone")
	require.ErrorIs(t, err, ErrLabelNotFound)
}

func TestLabelNamesAreScopedPerUser(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	alice := register(t, a, "alice@example.com", "alice").User.ID
	bob := register(t, a, "bob@example.com", "bob").User.ID

	l, err := a.CreateLabel(ctx, alice, "Work")
	require.NoError(t, err)
	_, err = a.CreateLabel(ctx, bob, "Work")
	require.NoError(t, err)

	require.ErrorIs(t, a.DeleteLabel(ctx, bob, l.ID), ErrLabelNotFound)
}

func TestDeletingLabelKeepsNotes(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	uid := register(t, a, "alice@example.com", "alice").User.ID

	l, err := a.CreateLabel(ctx, uid, "Work")
	require.NoError(t, err)
	n, err := a.CreateNote(ctx, uid, NoteInput{Content: "x", CategoryIDs: []uint{l.ID}})
	require.NoError(t, err)
	require.Len(t, n.Labels, 1)

	require.NoError(t, a.DeleteLabel(ctx, uid, l.ID))
	got, err := a.GetNote(ctx, uid, n.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Labels)
}
