package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"meetsync/models"
)

// ErrPrimaryNotFound aborts a merge: the target contact must exist.
// Missing duplicates are not an error; they drop out of the working set.
var ErrPrimaryNotFound = errors.New("primary contact not found")

// MergeResult is the mutated primary plus the number of duplicates absorbed.
type MergeResult struct {
	Primary     *models.Contact `json:"primary"`
	MergedCount int             `json:"merged_count"`
}

// Merger folds duplicate contacts into a primary, reassigning their
// interaction history and deleting them afterwards.
type Merger struct {
	repo   ContactRepository
	logger *logrus.Logger
}

func NewMerger(repo ContactRepository, logger *logrus.Logger) *Merger {
	return &Merger{repo: repo, logger: logger}
}

// Merge absorbs the given duplicates into primaryID. Duplicates are
// processed in ascending contact-ID order. The whole operation runs in one
// transactional scope: interaction reassignment, the primary update and the
// duplicate deletion commit together or not at all.
func (m *Merger) Merge(primaryID uint, duplicateIDs []uint) (*MergeResult, error) {
	var result *MergeResult
	err := m.repo.WithTransaction(func(tx ContactRepository) error {
		primary, err := tx.FindContactByID(primaryID)
		if err != nil {
			return err
		}
		if primary == nil {
			return fmt.Errorf("%w: %d", ErrPrimaryNotFound, primaryID)
		}

		merged := make([]uint, 0, len(duplicateIDs))
		for _, id := range sortedUnique(duplicateIDs) {
			if id == primaryID {
				continue
			}
			dup, err := tx.FindContactByID(id)
			if err != nil {
				return err
			}
			if dup == nil || dup.OrganizerID != primary.OrganizerID {
				// Unknown or foreign-owner ids are excluded, not errors.
				continue
			}

			primary.TotalBookings += dup.TotalBookings
			if dup.LastBookingDate != nil &&
				(primary.LastBookingDate == nil || dup.LastBookingDate.After(*primary.LastBookingDate)) {
				primary.LastBookingDate = dup.LastBookingDate
			}
			primary.Tags = unionTags(primary.Tags, dup.Tags)
			primary.Notes = mergeNotes(primary.Notes, dup.Notes, dup.Email)

			if err := tx.ReassignInteractions(dup.ID, primary.ID); err != nil {
				return err
			}
			merged = append(merged, dup.ID)
		}

		if err := tx.UpdateContact(primary); err != nil {
			return err
		}
		if err := tx.DeleteContacts(merged); err != nil {
			return err
		}
		result = &MergeResult{Primary: primary, MergedCount: len(merged)}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(logrus.Fields{
		"primary_id":   primaryID,
		"merged_count": result.MergedCount,
	}).Info("merged duplicate contacts")
	return result, nil
}

func sortedUnique(ids []uint) []uint {
	out := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func unionTags(primary, duplicate models.StringList) models.StringList {
	out := primary
	seen := make(map[string]struct{}, len(primary))
	for _, tag := range primary {
		seen[tag] = struct{}{}
	}
	for _, tag := range duplicate {
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// mergeNotes appends a duplicate's notes under a source marker, unless they
// already appear verbatim in the primary's notes. Containment is exact
// substring matching only; semantically equivalent text is appended again.
func mergeNotes(primaryNotes, dupNotes, dupEmail string) string {
	if dupNotes == "" || strings.Contains(primaryNotes, dupNotes) {
		return primaryNotes
	}
	if primaryNotes == "" {
		return dupNotes
	}
	return primaryNotes + fmt.Sprintf("\n\n--- Merged from %s ---\n%s", dupEmail, dupNotes)
}
