package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/models"
)

func TestMergeCombinesDuplicates(t *testing.T) {
	repo := newFakeRepo(1)
	older := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 5, 12, 15, 30, 0, 0, time.UTC)

	primary := repo.seed(models.Contact{
		OrganizerID:     1,
		Email:           "ada@example.com",
		TotalBookings:   2,
		LastBookingDate: &older,
		Tags:            models.StringList{"vip"},
		Notes:           "Prefers mornings",
	})
	dup := repo.seed(models.Contact{
		OrganizerID:     1,
		Email:           "ada@work.example.com",
		TotalBookings:   3,
		LastBookingDate: &newer,
		Tags:            models.StringList{"vip", "gold"},
		Notes:           "Met at the conference",
	})
	interaction := repo.seedInteraction(models.ContactInteraction{
		ContactID:       dup.ID,
		OrganizerID:     1,
		InteractionType: "booking_created",
	})

	m := NewMerger(repo, testLogger())
	result, err := m.Merge(primary.ID, []uint{dup.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MergedCount)
	assert.Equal(t, 5, result.Primary.TotalBookings)
	require.NotNil(t, result.Primary.LastBookingDate)
	assert.True(t, newer.Equal(*result.Primary.LastBookingDate))
	assert.Equal(t, models.StringList{"vip", "gold"}, result.Primary.Tags)
	assert.Equal(t,
		"Prefers mornings\n\n--- Merged from ada@work.example.com ---\nMet at the conference",
		result.Primary.Notes)

	// The duplicate's history now hangs off the primary; its row is gone.
	moved, err := repo.FindContactByID(dup.ID)
	require.NoError(t, err)
	assert.Nil(t, moved)
	assert.Equal(t, primary.ID, repo.interactions[interaction.ID].ContactID)

	stored, err := repo.FindContactByID(primary.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.TotalBookings)
}

func TestMergeOrderInsensitive(t *testing.T) {
	build := func() (*fakeRepo, uint, []uint) {
		repo := newFakeRepo(1)
		primary := repo.seed(models.Contact{OrganizerID: 1, Email: "p@example.com"})
		b := repo.seed(models.Contact{OrganizerID: 1, Email: "b@example.com", Tags: models.StringList{"b"}})
		c := repo.seed(models.Contact{OrganizerID: 1, Email: "c@example.com", Tags: models.StringList{"c"}})
		return repo, primary.ID, []uint{b.ID, c.ID}
	}

	repoA, primaryA, ids := build()
	mA := NewMerger(repoA, testLogger())
	resultA, err := mA.Merge(primaryA, []uint{ids[1], ids[0]})
	require.NoError(t, err)

	repoB, primaryB, idsB := build()
	mB := NewMerger(repoB, testLogger())
	resultB, err := mB.Merge(primaryB, idsB)
	require.NoError(t, err)

	// Ascending-ID processing makes the outcome independent of input order.
	assert.Equal(t, resultB.Primary.Tags, resultA.Primary.Tags)
	assert.Equal(t, resultB.Primary.Notes, resultA.Primary.Notes)
}

func TestMergeNotesAlreadyContained(t *testing.T) {
	repo := newFakeRepo(1)
	primary := repo.seed(models.Contact{
		OrganizerID: 1,
		Email:       "p@example.com",
		Notes:       "Prefers mornings. Met at the conference.",
	})
	dup := repo.seed(models.Contact{
		OrganizerID: 1,
		Email:       "d@example.com",
		Notes:       "Met at the conference.",
	})

	m := NewMerger(repo, testLogger())
	result, err := m.Merge(primary.ID, []uint{dup.ID})
	require.NoError(t, err)
	assert.Equal(t, "Prefers mornings. Met at the conference.", result.Primary.Notes)
}

func TestMergeEmptyPrimaryNotes(t *testing.T) {
	repo := newFakeRepo(1)
	primary := repo.seed(models.Contact{OrganizerID: 1, Email: "p@example.com"})
	dup := repo.seed(models.Contact{OrganizerID: 1, Email: "d@example.com", Notes: "Budget holder"})

	m := NewMerger(repo, testLogger())
	result, err := m.Merge(primary.ID, []uint{dup.ID})
	require.NoError(t, err)
	assert.Equal(t, "Budget holder", result.Primary.Notes)
}

func TestMergeExcludesUnknownAndForeignDuplicates(t *testing.T) {
	repo := newFakeRepo(1, 2)
	primary := repo.seed(models.Contact{OrganizerID: 1, Email: "p@example.com"})
	foreign := repo.seed(models.Contact{OrganizerID: 2, Email: "f@example.com", TotalBookings: 9})
	mine := repo.seed(models.Contact{OrganizerID: 1, Email: "m@example.com", TotalBookings: 1})

	m := NewMerger(repo, testLogger())
	result, err := m.Merge(primary.ID, []uint{foreign.ID, mine.ID, 999, primary.ID})
	require.NoError(t, err)

	assert.Equal(t, 1, result.MergedCount)
	assert.Equal(t, 1, result.Primary.TotalBookings)

	// The foreign-owner contact is untouched.
	kept, err := repo.FindContactByID(foreign.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)
	assert.Equal(t, 9, kept.TotalBookings)
}

func TestMergePrimaryNotFound(t *testing.T) {
	repo := newFakeRepo(1)
	dup := repo.seed(models.Contact{OrganizerID: 1, Email: "d@example.com"})

	m := NewMerger(repo, testLogger())
	_, err := m.Merge(999, []uint{dup.ID})
	require.ErrorIs(t, err, ErrPrimaryNotFound)

	// Nothing was deleted.
	kept, err := repo.FindContactByID(dup.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept)
}

func TestMergeNoDuplicates(t *testing.T) {
	repo := newFakeRepo(1)
	primary := repo.seed(models.Contact{OrganizerID: 1, Email: "p@example.com", TotalBookings: 2})

	m := NewMerger(repo, testLogger())
	result, err := m.Merge(primary.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.MergedCount)
	assert.Equal(t, 2, result.Primary.TotalBookings)
}
