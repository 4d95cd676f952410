package service

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"

	"meetsync/models"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// fakeRepo is an in-memory ContactRepository. It enforces the
// (organizer_id, email) unique key the same way the storage layer does and
// hands out copies so tests observe persisted state, not shared pointers.
type fakeRepo struct {
	owners       map[uint]*models.User
	contacts     map[uint]*models.Contact
	interactions map[uint]*models.ContactInteraction
	nextID       uint
	nextIntID    uint

	failFindEmail map[string]error // email -> error injected on FindContact
	failUpdateID  map[uint]error   // contact id -> error injected on UpdateContact
}

func newFakeRepo(ownerIDs ...uint) *fakeRepo {
	r := &fakeRepo{
		owners:        map[uint]*models.User{},
		contacts:      map[uint]*models.Contact{},
		interactions:  map[uint]*models.ContactInteraction{},
		failFindEmail: map[string]error{},
		failUpdateID:  map[uint]error{},
	}
	for _, id := range ownerIDs {
		owner := &models.User{Email: fmt.Sprintf("owner%d@example.com", id), IsActive: true}
		owner.ID = id
		r.owners[id] = owner
	}
	return r
}

func (r *fakeRepo) seed(c models.Contact) *models.Contact {
	r.nextID++
	c.ID = r.nextID
	stored := c
	r.contacts[c.ID] = &stored
	return &stored
}

func (r *fakeRepo) seedInteraction(in models.ContactInteraction) *models.ContactInteraction {
	r.nextIntID++
	in.ID = r.nextIntID
	stored := in
	r.interactions[in.ID] = &stored
	return &stored
}

func (r *fakeRepo) FindOwner(id uint) (*models.User, error) {
	owner, ok := r.owners[id]
	if !ok {
		return nil, nil
	}
	cp := *owner
	return &cp, nil
}

func (r *fakeRepo) FindContact(organizerID uint, email string) (*models.Contact, error) {
	if err, ok := r.failFindEmail[email]; ok {
		return nil, err
	}
	for _, c := range r.contacts {
		if c.OrganizerID == organizerID && c.Email == email {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) FindContactByID(id uint) (*models.Contact, error) {
	c, ok := r.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeRepo) CreateContact(contact *models.Contact) error {
	for _, c := range r.contacts {
		if c.OrganizerID == contact.OrganizerID && c.Email == contact.Email {
			return ErrDuplicateContact
		}
	}
	r.nextID++
	contact.ID = r.nextID
	stored := *contact
	r.contacts[contact.ID] = &stored
	return nil
}

func (r *fakeRepo) UpdateContact(contact *models.Contact) error {
	if err, ok := r.failUpdateID[contact.ID]; ok {
		return err
	}
	if _, ok := r.contacts[contact.ID]; !ok {
		return fmt.Errorf("contact %d does not exist", contact.ID)
	}
	stored := *contact
	r.contacts[contact.ID] = &stored
	return nil
}

func (r *fakeRepo) DeleteContacts(ids []uint) error {
	for _, id := range ids {
		delete(r.contacts, id)
	}
	return nil
}

func (r *fakeRepo) ReassignInteractions(fromContactID, toContactID uint) error {
	for _, in := range r.interactions {
		if in.ContactID == fromContactID {
			in.ContactID = toContactID
		}
	}
	return nil
}

func (r *fakeRepo) CreateInteraction(interaction *models.ContactInteraction) error {
	r.nextIntID++
	interaction.ID = r.nextIntID
	stored := *interaction
	r.interactions[interaction.ID] = &stored
	return nil
}

func (r *fakeRepo) ForEachContact(fn func(contact *models.Contact) error) error {
	ids := make([]uint, 0, len(r.contacts))
	for id := range r.contacts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cp := *r.contacts[id]
		if err := fn(&cp); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeRepo) WithTransaction(fn func(repo ContactRepository) error) error {
	return fn(r)
}

func (r *fakeRepo) interactionsFor(contactID uint) []*models.ContactInteraction {
	var out []*models.ContactInteraction
	for _, in := range r.interactions {
		if in.ContactID == contactID {
			out = append(out, in)
		}
	}
	return out
}

// fakeBookings is an in-memory BookingSource keyed by organizer + invitee.
type fakeBookings struct {
	byInvitee map[string][]models.Booking
	byID      map[uint]*models.Booking
	failFor   map[string]error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{
		byInvitee: map[string][]models.Booking{},
		byID:      map[uint]*models.Booking{},
		failFor:   map[string]error{},
	}
}

func inviteeKey(organizerID uint, email string) string {
	return fmt.Sprintf("%d/%s", organizerID, email)
}

func (b *fakeBookings) add(booking models.Booking) {
	b.byID[booking.ID] = &booking
	if booking.Status == models.BookingStatusConfirmed {
		key := inviteeKey(booking.OrganizerID, booking.InviteeEmail)
		b.byInvitee[key] = append(b.byInvitee[key], booking)
	}
}

func (b *fakeBookings) ConfirmedBookings(organizerID uint, inviteeEmail string) ([]models.Booking, error) {
	key := inviteeKey(organizerID, inviteeEmail)
	if err, ok := b.failFor[key]; ok {
		return nil, err
	}
	return b.byInvitee[key], nil
}

func (b *fakeBookings) FindBooking(id uint) (*models.Booking, error) {
	booking, ok := b.byID[id]
	if !ok {
		return nil, nil
	}
	cp := *booking
	return &cp, nil
}
