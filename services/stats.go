package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"meetsync/models"
)

// ErrContactNotFound is returned by SyncOne for an unknown contact id.
var ErrContactNotFound = errors.New("contact not found")

// BookingStats is the recomputed aggregate for one contact.
type BookingStats struct {
	ContactID       uint       `json:"contact_id"`
	Email           string     `json:"email"`
	TotalBookings   int        `json:"total_bookings"`
	LastBookingDate *time.Time `json:"last_booking_date"`
}

// SyncReport summarizes a full sweep.
type SyncReport struct {
	CheckedCount int `json:"checked_count"`
	UpdatedCount int `json:"updated_count"`
	FailedCount  int `json:"failed_count"`
}

// StatsSyncer recomputes per-contact booking counters from the scheduling
// system's confirmed bookings.
type StatsSyncer struct {
	repo     ContactRepository
	bookings BookingSource
	logger   *logrus.Logger
}

func NewStatsSyncer(repo ContactRepository, bookings BookingSource, logger *logrus.Logger) *StatsSyncer {
	return &StatsSyncer{repo: repo, bookings: bookings, logger: logger}
}

// SyncOne recomputes and persists the counters for a single contact.
// Persisting is unconditional; the operation is idempotent with respect to
// an unchanged booking set.
func (s *StatsSyncer) SyncOne(contactID uint) (*BookingStats, error) {
	contact, err := s.repo.FindContactByID(contactID)
	if err != nil {
		return nil, err
	}
	if contact == nil {
		return nil, fmt.Errorf("%w: %d", ErrContactNotFound, contactID)
	}

	total, last, err := s.computeStats(contact)
	if err != nil {
		return nil, err
	}
	contact.TotalBookings = total
	contact.LastBookingDate = last
	if err := s.repo.UpdateContact(contact); err != nil {
		return nil, err
	}
	return &BookingStats{
		ContactID:       contact.ID,
		Email:           contact.Email,
		TotalBookings:   total,
		LastBookingDate: last,
	}, nil
}

// SyncAll sweeps every contact and persists only those whose counters
// actually changed. One contact's query failure is logged and counted, never
// aborting the sweep.
func (s *StatsSyncer) SyncAll() *SyncReport {
	report := &SyncReport{}
	err := s.repo.ForEachContact(func(contact *models.Contact) error {
		report.CheckedCount++
		total, last, err := s.computeStats(contact)
		if err != nil {
			report.FailedCount++
			s.logger.WithFields(logrus.Fields{
				"contact_id": contact.ID,
				"email":      contact.Email,
			}).Errorf("stats sweep failed for contact: %v", err)
			return nil
		}
		if contact.TotalBookings == total && sameTime(contact.LastBookingDate, last) {
			return nil
		}
		contact.TotalBookings = total
		contact.LastBookingDate = last
		if err := s.repo.UpdateContact(contact); err != nil {
			report.FailedCount++
			s.logger.WithField("contact_id", contact.ID).Errorf("stats sweep update failed: %v", err)
			return nil
		}
		report.UpdatedCount++
		return nil
	})
	if err != nil {
		s.logger.Errorf("stats sweep iteration failed: %v", err)
	}
	return report
}

// UpsertFromBooking finds or creates the contact behind a booking's invitee,
// recomputes its counters and appends one interaction describing the
// booking. The returned bool reports whether the contact was newly created.
func (s *StatsSyncer) UpsertFromBooking(booking *models.Booking) (*models.Contact, bool, error) {
	email := strings.ToLower(strings.TrimSpace(booking.InviteeEmail))
	firstName, lastName := splitInviteeName(booking.InviteeName)

	created := false
	contact, err := s.repo.FindContact(booking.OrganizerID, email)
	if err != nil {
		return nil, false, err
	}
	if contact == nil {
		contact = &models.Contact{
			OrganizerID: booking.OrganizerID,
			Email:       email,
			FirstName:   firstName,
			LastName:    lastName,
			Phone:       booking.InviteePhone,
			Source:      "booking",
		}
		switch err := s.repo.CreateContact(contact); {
		case err == nil:
			created = true
		case errors.Is(err, ErrDuplicateContact):
			// Concurrent writer beat us to the unique key; take its row.
			contact, err = s.repo.FindContact(booking.OrganizerID, email)
			if err != nil {
				return nil, false, err
			}
			if contact == nil {
				return nil, false, fmt.Errorf("%w: %s", ErrContactNotFound, email)
			}
		default:
			return nil, false, err
		}
	}

	total, last, err := s.computeStats(contact)
	if err != nil {
		return nil, created, err
	}
	contact.TotalBookings = total
	contact.LastBookingDate = last
	if err := s.repo.UpdateContact(contact); err != nil {
		return nil, created, err
	}

	interaction, err := bookingInteraction(contact, booking)
	if err != nil {
		return nil, created, err
	}
	if err := s.repo.CreateInteraction(interaction); err != nil {
		return nil, created, err
	}
	return contact, created, nil
}

func (s *StatsSyncer) computeStats(contact *models.Contact) (int, *time.Time, error) {
	bookings, err := s.bookings.ConfirmedBookings(contact.OrganizerID, contact.Email)
	if err != nil {
		return 0, nil, err
	}
	var last *time.Time
	for i := range bookings {
		start := bookings[i].StartTime
		if last == nil || start.After(*last) {
			last = &start
		}
	}
	return len(bookings), last, nil
}

// splitInviteeName splits a display name on the first space only:
// "Ada Lovelace King" -> ("Ada", "Lovelace King").
func splitInviteeName(name string) (string, string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ""
	}
	parts := strings.SplitN(name, " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func bookingInteraction(contact *models.Contact, booking *models.Booking) (*models.ContactInteraction, error) {
	metadata, err := json.Marshal(map[string]interface{}{
		"event_type": booking.EventType.Name,
		"duration":   booking.EventType.Duration,
		"start_time": booking.StartTime.Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	bookingID := booking.ID
	return &models.ContactInteraction{
		ContactID:       contact.ID,
		OrganizerID:     booking.OrganizerID,
		InteractionType: "booking_created",
		Description: fmt.Sprintf("Booked %s for %s",
			booking.EventType.Name, booking.StartTime.Format("January 2, 2006 at 3:04 PM")),
		Metadata:  string(metadata),
		BookingID: &bookingID,
	}, nil
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
