package models

import (
	"time"

	"gorm.io/gorm"
)

// Booking statuses as written by the scheduling side.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
)

// EventType describes a bookable meeting type (name + duration).
type EventType struct {
	gorm.Model
	OrganizerID uint   `gorm:"not null;index" json:"organizer_id"`
	Name        string `gorm:"not null" json:"name"`
	Duration    int    `gorm:"not null" json:"duration"` // minutes
}

// Booking is one scheduled meeting. The contact subsystem only reads these;
// they are owned by the scheduling side.
type Booking struct {
	gorm.Model
	OrganizerID uint `gorm:"not null;index" json:"organizer_id"`
	EventTypeID uint `gorm:"not null;index" json:"event_type_id"`

	InviteeName  string `json:"invitee_name"`
	InviteeEmail string `gorm:"not null;index" json:"invitee_email"`
	InviteePhone string `json:"invitee_phone"`

	Status    string    `gorm:"not null;default:pending;index" json:"status"`
	StartTime time.Time `gorm:"not null" json:"start_time"`

	// Relations
	EventType EventType `gorm:"foreignKey:EventTypeID" json:"event_type"`
}
