package service

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/models"
)

func confirmedBooking(id, organizerID uint, email string, start time.Time) models.Booking {
	b := models.Booking{
		OrganizerID:  organizerID,
		InviteeEmail: email,
		Status:       models.BookingStatusConfirmed,
		StartTime:    start,
	}
	b.ID = id
	return b
}

func TestSyncOne(t *testing.T) {
	repo := newFakeRepo(1)
	contact := repo.seed(models.Contact{OrganizerID: 1, Email: "ada@example.com", TotalBookings: 7})

	bookings := newFakeBookings()
	first := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	second := time.Date(2026, 6, 2, 14, 0, 0, 0, time.UTC)
	bookings.add(confirmedBooking(10, 1, "ada@example.com", first))
	bookings.add(confirmedBooking(11, 1, "ada@example.com", second))

	s := NewStatsSyncer(repo, bookings, testLogger())
	stats, err := s.SyncOne(contact.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalBookings)
	require.NotNil(t, stats.LastBookingDate)
	assert.True(t, second.Equal(*stats.LastBookingDate))

	stored, err := repo.FindContactByID(contact.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TotalBookings)

	// Running again against the same booking set changes nothing.
	again, err := s.SyncOne(contact.ID)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalBookings, again.TotalBookings)
	assert.True(t, stats.LastBookingDate.Equal(*again.LastBookingDate))
}

func TestSyncOneNoBookings(t *testing.T) {
	repo := newFakeRepo(1)
	stale := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	contact := repo.seed(models.Contact{
		OrganizerID:     1,
		Email:           "ada@example.com",
		TotalBookings:   4,
		LastBookingDate: &stale,
	})

	s := NewStatsSyncer(repo, newFakeBookings(), testLogger())
	stats, err := s.SyncOne(contact.ID)
	require.NoError(t, err)

	// Stale counters reset to the scheduling system's truth.
	assert.Equal(t, 0, stats.TotalBookings)
	assert.Nil(t, stats.LastBookingDate)
}

func TestSyncOneContactNotFound(t *testing.T) {
	s := NewStatsSyncer(newFakeRepo(1), newFakeBookings(), testLogger())
	_, err := s.SyncOne(999)
	require.ErrorIs(t, err, ErrContactNotFound)
}

func TestSyncAllUpdatesOnlyChanged(t *testing.T) {
	repo := newFakeRepo(1)
	start := time.Date(2026, 2, 10, 11, 0, 0, 0, time.UTC)

	current := repo.seed(models.Contact{
		OrganizerID:     1,
		Email:           "current@example.com",
		TotalBookings:   1,
		LastBookingDate: &start,
	})
	stale := repo.seed(models.Contact{OrganizerID: 1, Email: "stale@example.com"})

	bookings := newFakeBookings()
	bookings.add(confirmedBooking(10, 1, "current@example.com", start))
	bookings.add(confirmedBooking(11, 1, "stale@example.com", start))

	s := NewStatsSyncer(repo, bookings, testLogger())
	report := s.SyncAll()

	assert.Equal(t, 2, report.CheckedCount)
	assert.Equal(t, 1, report.UpdatedCount)
	assert.Equal(t, 0, report.FailedCount)

	refreshed, err := repo.FindContactByID(stale.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.TotalBookings)

	unchanged, err := repo.FindContactByID(current.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, unchanged.TotalBookings)
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	repo := newFakeRepo(1)
	broken := repo.seed(models.Contact{OrganizerID: 1, Email: "broken@example.com"})
	healthy := repo.seed(models.Contact{OrganizerID: 1, Email: "healthy@example.com"})

	bookings := newFakeBookings()
	bookings.failFor[inviteeKey(1, "broken@example.com")] = errors.New("bookings table unavailable")
	start := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	bookings.add(confirmedBooking(10, 1, "healthy@example.com", start))

	s := NewStatsSyncer(repo, bookings, testLogger())
	report := s.SyncAll()

	// The broken contact is counted and skipped; the sweep still finishes.
	assert.Equal(t, 2, report.CheckedCount)
	assert.Equal(t, 1, report.UpdatedCount)
	assert.Equal(t, 1, report.FailedCount)

	refreshed, err := repo.FindContactByID(healthy.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.TotalBookings)

	untouched, err := repo.FindContactByID(broken.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, untouched.TotalBookings)
}

func TestUpsertFromBookingCreatesContact(t *testing.T) {
	repo := newFakeRepo(1)
	bookings := newFakeBookings()

	start := time.Date(2026, 8, 14, 15, 0, 0, 0, time.UTC)
	booking := confirmedBooking(42, 1, "ada.lovelace@example.com", start)
	booking.InviteeName = "Ada Lovelace King"
	booking.InviteePhone = "+1 555 0100"
	booking.EventType = models.EventType{Name: "Intro Call", Duration: 30}
	bookings.add(booking)

	s := NewStatsSyncer(repo, bookings, testLogger())
	contact, created, err := s.UpsertFromBooking(&booking)
	require.NoError(t, err)
	assert.True(t, created)

	assert.Equal(t, "ada.lovelace@example.com", contact.Email)
	assert.Equal(t, "Ada", contact.FirstName)
	assert.Equal(t, "Lovelace King", contact.LastName)
	assert.Equal(t, "+1 555 0100", contact.Phone)
	assert.Equal(t, "booking", contact.Source)
	assert.Equal(t, 1, contact.TotalBookings)
	require.NotNil(t, contact.LastBookingDate)
	assert.True(t, start.Equal(*contact.LastBookingDate))

	recorded := repo.interactionsFor(contact.ID)
	require.Len(t, recorded, 1)
	assert.Equal(t, "booking_created", recorded[0].InteractionType)
	assert.Equal(t, "Booked Intro Call for August 14, 2026 at 3:00 PM", recorded[0].Description)
	require.NotNil(t, recorded[0].BookingID)
	assert.Equal(t, uint(42), *recorded[0].BookingID)

	var metadata map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(recorded[0].Metadata), &metadata))
	assert.Equal(t, "Intro Call", metadata["event_type"])
	assert.Equal(t, float64(30), metadata["duration"])
	assert.Equal(t, start.Format(time.RFC3339), metadata["start_time"])
}

func TestUpsertFromBookingExistingContact(t *testing.T) {
	repo := newFakeRepo(1)
	existing := repo.seed(models.Contact{
		OrganizerID: 1,
		Email:       "ada@example.com",
		FirstName:   "Ada",
		Phone:       "+44 20 0000",
	})

	bookings := newFakeBookings()
	start := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	booking := confirmedBooking(7, 1, "Ada@Example.com ", start)
	booking.InviteeName = "Somebody Else"
	booking.InviteePhone = "+1 555 0200"
	booking.EventType = models.EventType{Name: "Follow-up", Duration: 15}
	bookings.add(confirmedBooking(7, 1, "ada@example.com", start))

	s := NewStatsSyncer(repo, bookings, testLogger())
	contact, created, err := s.UpsertFromBooking(&booking)
	require.NoError(t, err)
	assert.False(t, created)

	// Profile fields on the existing contact are left alone.
	assert.Equal(t, existing.ID, contact.ID)
	assert.Equal(t, "Ada", contact.FirstName)
	assert.Equal(t, "+44 20 0000", contact.Phone)
	assert.Equal(t, 1, contact.TotalBookings)

	require.Len(t, repo.interactionsFor(contact.ID), 1)
}

func TestSplitInviteeName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantFirst string
		wantLast  string
	}{
		{name: "two parts", input: "Ada Lovelace", wantFirst: "Ada", wantLast: "Lovelace"},
		{name: "first space only", input: "Ada Lovelace King", wantFirst: "Ada", wantLast: "Lovelace King"},
		{name: "single name", input: "Ada", wantFirst: "Ada", wantLast: ""},
		{name: "padded", input: "  Ada Lovelace  ", wantFirst: "Ada", wantLast: "Lovelace"},
		{name: "empty", input: "", wantFirst: "", wantLast: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := splitInviteeName(tt.input)
			assert.Equal(t, tt.wantFirst, first)
			assert.Equal(t, tt.wantLast, last)
		})
	}
}
