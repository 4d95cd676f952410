package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StringList stores a list of strings as a JSON text column.
type StringList []string

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Contact represents a single address-book entry, scoped to one organizer.
// The (organizer_id, email) pair is unique; email is stored lower-cased.
type Contact struct {
	gorm.Model
	OrganizerID uint `gorm:"not null;uniqueIndex:idx_contacts_organizer_email" json:"organizer_id"`

	Email     string `gorm:"not null;uniqueIndex:idx_contacts_organizer_email" json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Company   string `json:"company"`
	JobTitle  string `json:"job_title"`
	Notes     string `gorm:"type:text" json:"notes"`

	Tags StringList `gorm:"type:text" json:"tags"`

	// Aggregated booking statistics, recomputed by the stats syncer
	TotalBookings   int        `gorm:"default:0" json:"total_bookings"`
	LastBookingDate *time.Time `json:"last_booking_date"`

	// Metadata
	Source string `json:"source"` // manual, csv, booking, etc.

	// Relations
	Interactions []ContactInteraction `gorm:"foreignKey:ContactID" json:"interactions,omitempty"`
}

// ContactInteraction is an immutable history event tied to a contact.
// Only its ContactID is ever rewritten, when contacts are merged.
type ContactInteraction struct {
	gorm.Model
	ContactID   uint `gorm:"not null;index" json:"contact_id"`
	OrganizerID uint `gorm:"not null;index" json:"organizer_id"`

	InteractionType string `gorm:"not null" json:"interaction_type"` // booking_created, note, etc.
	Description     string `gorm:"type:text" json:"description"`
	Metadata        string `gorm:"type:text" json:"metadata"` // JSON details if needed
	BookingID       *uint  `json:"booking_id,omitempty"`
}
