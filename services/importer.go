package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"meetsync/models"
)

// Import report statuses.
const (
	StatusSuccess        = "success"
	StatusPartialSuccess = "partial_success"
	StatusError          = "error"
)

// maxReportErrors caps the per-row messages carried in a report. Rows failing
// past the cap still count toward SkippedCount.
const maxReportErrors = 10

type ImportOptions struct {
	SkipDuplicates bool `json:"skip_duplicates"`
	UpdateExisting bool `json:"update_existing"`
}

// ImportReport aggregates one batch. Errors holds at most the first
// maxReportErrors row messages.
type ImportReport struct {
	Status       string   `json:"status"`
	Message      string   `json:"message"`
	CreatedCount int      `json:"created_count"`
	UpdatedCount int      `json:"updated_count"`
	SkippedCount int      `json:"skipped_count"`
	Errors       []string `json:"errors"`
}

func (r *ImportReport) addError(msg string) {
	if len(r.Errors) < maxReportErrors {
		r.Errors = append(r.Errors, msg)
	}
}

// Importer reconciles batches of raw rows against the contact store.
type Importer struct {
	repo   ContactRepository
	logger *logrus.Logger
}

func NewImporter(repo ContactRepository, logger *logrus.Logger) *Importer {
	return &Importer{repo: repo, logger: logger}
}

// ImportBatch processes rows in input order. Row failures are isolated:
// they are folded into the report and never abort the batch. Only a missing
// organizer aborts the whole call, with status "error" and zero counts.
// Cancelling ctx stops between rows; rows already persisted stay committed.
func (im *Importer) ImportBatch(ctx context.Context, organizerID uint, rows []ImportRow, opts ImportOptions) *ImportReport {
	report := &ImportReport{Status: StatusSuccess}

	owner, err := im.repo.FindOwner(organizerID)
	if err != nil {
		report.Status = StatusError
		report.Message = fmt.Sprintf("Error importing contacts: %v", err)
		return report
	}
	if owner == nil {
		report.Status = StatusError
		report.Message = fmt.Sprintf("Organizer %d not found", organizerID)
		return report
	}

	errorCount := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			im.logger.WithField("line", row.Line).Warn("import cancelled, leaving committed rows in place")
			break
		}

		outcome, rowErr := im.processRow(organizerID, row, opts)
		switch {
		case rowErr != nil:
			errorCount++
			report.SkippedCount++
			report.addError(rowErr.Error())
			im.logger.WithFields(logrus.Fields{
				"organizer_id": organizerID,
				"line":         row.Line,
			}).Warnf("import row failed: %v", rowErr)
		case outcome == rowCreated:
			report.CreatedCount++
		case outcome == rowUpdated:
			report.UpdatedCount++
		case outcome == rowSkippedNoPolicy:
			// Neither update_existing nor skip_duplicates was set for an
			// existing contact; recorded as an informational note.
			report.SkippedCount++
			report.addError(fmt.Sprintf("Row %d: contact already exists, skipped", row.Line))
		default:
			report.SkippedCount++
		}
	}

	report.Message = fmt.Sprintf("Import completed: %d created, %d updated, %d skipped",
		report.CreatedCount, report.UpdatedCount, report.SkippedCount)
	if errorCount > 0 {
		report.Status = StatusPartialSuccess
		report.Message += fmt.Sprintf(" with %d errors", errorCount)
	}
	return report
}

type rowOutcome int

const (
	rowCreated rowOutcome = iota
	rowUpdated
	rowSkipped
	rowSkippedNoPolicy
)

func (im *Importer) processRow(organizerID uint, row ImportRow, opts ImportOptions) (rowOutcome, error) {
	nc, rowErr := ValidateRow(row)
	if rowErr != nil {
		return rowSkipped, rowErr
	}

	existing, err := im.repo.FindContact(organizerID, nc.Email)
	if err != nil {
		return rowSkipped, &RowError{Line: row.Line, Reason: err.Error()}
	}
	if existing != nil {
		return im.applyMatchPolicy(existing, nc, row, opts)
	}

	contact := &models.Contact{
		OrganizerID: organizerID,
		Email:       nc.Email,
		FirstName:   deref(nc.FirstName),
		LastName:    deref(nc.LastName),
		Phone:       deref(nc.Phone),
		Company:     deref(nc.Company),
		JobTitle:    deref(nc.JobTitle),
		Notes:       deref(nc.Notes),
		Tags:        models.StringList(nc.Tags),
		Source:      "csv",
	}
	if err := im.repo.CreateContact(contact); err != nil {
		if err == ErrDuplicateContact {
			// Lost the lookup-then-create race; resolve as "found existing".
			existing, ferr := im.repo.FindContact(organizerID, nc.Email)
			if ferr != nil || existing == nil {
				return rowSkipped, &RowError{Line: row.Line, Reason: err.Error()}
			}
			return im.applyMatchPolicy(existing, nc, row, opts)
		}
		return rowSkipped, &RowError{Line: row.Line, Reason: err.Error()}
	}
	return rowCreated, nil
}

// applyMatchPolicy handles a row whose email already resolves to a contact.
// In update mode only the fields the row actually supplied overwrite the
// existing values; a supplied tags column replaces the tag set outright.
func (im *Importer) applyMatchPolicy(existing *models.Contact, nc *NormalizedContact, row ImportRow, opts ImportOptions) (rowOutcome, error) {
	switch {
	case opts.UpdateExisting:
		applyPresent(&existing.FirstName, nc.FirstName)
		applyPresent(&existing.LastName, nc.LastName)
		applyPresent(&existing.Phone, nc.Phone)
		applyPresent(&existing.Company, nc.Company)
		applyPresent(&existing.JobTitle, nc.JobTitle)
		applyPresent(&existing.Notes, nc.Notes)
		if nc.TagsPresent {
			existing.Tags = models.StringList(nc.Tags)
		}
		if err := im.repo.UpdateContact(existing); err != nil {
			return rowSkipped, &RowError{Line: row.Line, Reason: err.Error()}
		}
		return rowUpdated, nil
	case opts.SkipDuplicates:
		return rowSkipped, nil
	default:
		return rowSkippedNoPolicy, nil
	}
}

func applyPresent(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
