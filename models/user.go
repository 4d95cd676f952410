package models

import "gorm.io/gorm"

// User is the organizer account that owns contacts, bookings and event types.
type User struct {
	gorm.Model
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Name     string `json:"name"`
	IsActive bool   `gorm:"default:true" json:"is_active"`
}
