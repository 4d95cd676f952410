package service

import (
	"errors"

	"gorm.io/gorm"

	"meetsync/models"
)

// ErrDuplicateContact is returned by CreateContact when the
// (organizer_id, email) unique constraint rejects the insert. Callers treat
// it as "found existing", not as a failure.
var ErrDuplicateContact = errors.New("contact with this email already exists")

// ContactRepository is the storage contract the import, merge and stats
// engines run against. Lookups return (nil, nil) when nothing matches.
type ContactRepository interface {
	FindOwner(id uint) (*models.User, error)
	FindContact(organizerID uint, email string) (*models.Contact, error)
	FindContactByID(id uint) (*models.Contact, error)
	CreateContact(contact *models.Contact) error
	UpdateContact(contact *models.Contact) error
	DeleteContacts(ids []uint) error
	ReassignInteractions(fromContactID, toContactID uint) error
	CreateInteraction(interaction *models.ContactInteraction) error
	ForEachContact(fn func(contact *models.Contact) error) error
	WithTransaction(fn func(repo ContactRepository) error) error
}

// BookingSource is the read-only view of the scheduling system used to
// recompute contact statistics.
type BookingSource interface {
	ConfirmedBookings(organizerID uint, inviteeEmail string) ([]models.Booking, error)
	FindBooking(id uint) (*models.Booking, error)
}

// GormContactRepository implements ContactRepository on the shared gorm DB.
type GormContactRepository struct {
	db *gorm.DB
}

func NewContactRepository(db *gorm.DB) *GormContactRepository {
	return &GormContactRepository{db: db}
}

func (r *GormContactRepository) FindOwner(id uint) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (r *GormContactRepository) FindContact(organizerID uint, email string) (*models.Contact, error) {
	var contact models.Contact
	err := r.db.Where("organizer_id = ? AND email = ?", organizerID, email).First(&contact).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *GormContactRepository) FindContactByID(id uint) (*models.Contact, error) {
	var contact models.Contact
	if err := r.db.First(&contact, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &contact, nil
}

func (r *GormContactRepository) CreateContact(contact *models.Contact) error {
	if err := r.db.Create(contact).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateContact
		}
		return err
	}
	return nil
}

func (r *GormContactRepository) UpdateContact(contact *models.Contact) error {
	return r.db.Save(contact).Error
}

func (r *GormContactRepository) DeleteContacts(ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&models.Contact{}).Error
}

func (r *GormContactRepository) ReassignInteractions(fromContactID, toContactID uint) error {
	return r.db.Model(&models.ContactInteraction{}).
		Where("contact_id = ?", fromContactID).
		Update("contact_id", toContactID).Error
}

func (r *GormContactRepository) CreateInteraction(interaction *models.ContactInteraction) error {
	return r.db.Create(interaction).Error
}

func (r *GormContactRepository) ForEachContact(fn func(contact *models.Contact) error) error {
	var contacts []models.Contact
	return r.db.FindInBatches(&contacts, 200, func(tx *gorm.DB, batch int) error {
		for i := range contacts {
			if err := fn(&contacts[i]); err != nil {
				return err
			}
		}
		return nil
	}).Error
}

// WithTransaction runs fn against a repository bound to one transaction;
// any error rolls the whole scope back.
func (r *GormContactRepository) WithTransaction(fn func(repo ContactRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(&GormContactRepository{db: tx})
	})
}

// GormBookingSource reads the scheduling side's bookings table.
type GormBookingSource struct {
	db *gorm.DB
}

func NewBookingSource(db *gorm.DB) *GormBookingSource {
	return &GormBookingSource{db: db}
}

func (s *GormBookingSource) ConfirmedBookings(organizerID uint, inviteeEmail string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.
		Where("organizer_id = ? AND invitee_email = ? AND status = ?",
			organizerID, inviteeEmail, models.BookingStatusConfirmed).
		Order("start_time DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *GormBookingSource) FindBooking(id uint) (*models.Booking, error) {
	var booking models.Booking
	err := s.db.Preload("EventType").First(&booking, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}
