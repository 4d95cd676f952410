package controller

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"meetsync/config"
	"meetsync/models"
	"meetsync/services"
	"meetsync/utils"
	"meetsync/worker"
)

type ContactController struct {
	DB       *gorm.DB
	Queue    worker.Queue
	Logger   *logrus.Logger
	importer *service.Importer
	merger   *service.Merger
	syncer   *service.StatsSyncer
	bookings service.BookingSource
}

func NewContactController(db *gorm.DB, queue worker.Queue, logger *logrus.Logger) *ContactController {
	repo := service.NewContactRepository(db)
	bookings := service.NewBookingSource(db)
	return &ContactController{
		DB:       db,
		Queue:    queue,
		Logger:   logger,
		importer: service.NewImporter(repo, logger),
		merger:   service.NewMerger(repo, logger),
		syncer:   service.NewStatsSyncer(repo, bookings, logger),
		bookings: bookings,
	}
}

// CreateContact creates a new contact with validation
func (cc *ContactController) CreateContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Email     string   `json:"email" validate:"required"`
		FirstName string   `json:"first_name" validate:"omitempty,max=100"`
		LastName  string   `json:"last_name" validate:"omitempty,max=100"`
		Phone     string   `json:"phone" validate:"omitempty,max=50"`
		Company   string   `json:"company" validate:"omitempty,max=200"`
		JobTitle  string   `json:"job_title" validate:"omitempty,max=200"`
		Notes     string   `json:"notes"`
		Tags      []string `json:"tags"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if err := checkmail.ValidateFormat(email); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email format", err)
	}

	var existing models.Contact
	if err := cc.DB.Where("organizer_id = ? AND email = ?", user.ID, email).First(&existing).Error; err == nil {
		return utils.ErrorResponse(c, fiber.StatusConflict, "Contact with this email already exists", nil)
	}

	contact := models.Contact{
		OrganizerID: user.ID,
		Email:       email,
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Phone:       input.Phone,
		Company:     input.Company,
		JobTitle:    input.JobTitle,
		Notes:       input.Notes,
		Tags:        models.StringList(input.Tags),
		Source:      "manual",
	}
	if err := cc.DB.Create(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create contact", err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(contact))
}

// GetContacts returns paginated list of contacts with filters
func (cc *ContactController) GetContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	email := c.Query("email")
	company := c.Query("company")
	tag := c.Query("tag")

	query := cc.DB.Where("organizer_id = ?", user.ID)
	if email != "" {
		query = query.Where("email LIKE ?", "%"+strings.ToLower(email)+"%")
	}
	if company != "" {
		query = query.Where("company LIKE ?", "%"+company+"%")
	}
	if tag != "" {
		// Tags are stored as a JSON array in a text column.
		query = query.Where("tags LIKE ?", `%"`+tag+`"%`)
	}

	var contacts []models.Contact
	if err := query.Order("email").Offset(offset).Limit(limit).Find(&contacts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	var total int64
	query.Model(&models.Contact{}).Count(&total)

	return c.JSON(utils.PaginatedResponse{
		Data:  contacts,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// GetContact returns a single contact by ID
func (cc *ContactController) GetContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND organizer_id = ?", contactID, user.ID).First(&contact).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// UpdateContact updates contact details
func (cc *ContactController) UpdateContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	var input struct {
		Email     *string   `json:"email"`
		FirstName *string   `json:"first_name" validate:"omitempty,max=100"`
		LastName  *string   `json:"last_name" validate:"omitempty,max=100"`
		Phone     *string   `json:"phone" validate:"omitempty,max=50"`
		Company   *string   `json:"company" validate:"omitempty,max=200"`
		JobTitle  *string   `json:"job_title" validate:"omitempty,max=200"`
		Notes     *string   `json:"notes"`
		Tags      *[]string `json:"tags"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND organizer_id = ?", contactID, user.ID).First(&contact).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if err := checkmail.ValidateFormat(email); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid email format", err)
		}
		if email != contact.Email {
			var existing models.Contact
			if err := cc.DB.Where("organizer_id = ? AND email = ?", user.ID, email).First(&existing).Error; err == nil {
				return utils.ErrorResponse(c, fiber.StatusConflict, "Contact with this email already exists", nil)
			}
			contact.Email = email
		}
	}
	if input.FirstName != nil {
		contact.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		contact.LastName = *input.LastName
	}
	if input.Phone != nil {
		contact.Phone = *input.Phone
	}
	if input.Company != nil {
		contact.Company = *input.Company
	}
	if input.JobTitle != nil {
		contact.JobTitle = *input.JobTitle
	}
	if input.Notes != nil {
		contact.Notes = *input.Notes
	}
	if input.Tags != nil {
		contact.Tags = models.StringList(*input.Tags)
	}

	if err := cc.DB.Save(&contact).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update contact", err)
	}

	return c.JSON(utils.SuccessResponse(contact))
}

// DeleteContact deletes a contact and its interaction history
func (cc *ContactController) DeleteContact(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	tx := cc.DB.Begin()

	if err := tx.Where("contact_id = ?", contactID).Delete(&models.ContactInteraction{}).Error; err != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contact interactions", err)
	}

	result := tx.Where("id = ? AND organizer_id = ?", contactID, user.ID).Delete(&models.Contact{})
	if result.Error != nil {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete contact", result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
	}

	tx.Commit()

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"message": "Contact deleted successfully",
	}))
}

// GetContactInteractions returns a contact's interaction history
func (cc *ContactController) GetContactInteractions(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := c.Params("id")

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	if limit > 100 {
		limit = 100
	}
	offset := (page - 1) * limit

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND organizer_id = ?", contactID, user.ID).First(&contact).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	query := cc.DB.Where("contact_id = ?", contact.ID)

	var total int64
	query.Model(&models.ContactInteraction{}).Count(&total)

	var interactions []models.ContactInteraction
	if err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&interactions).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch interactions", err)
	}

	return c.JSON(utils.PaginatedResponse{
		Data:  interactions,
		Total: total,
		Page:  page,
		Limit: limit,
	})
}

// ImportContacts imports contacts from an uploaded CSV or XLSX file. By
// default the batch is enqueued for the background worker; ?sync=true runs
// it inline and returns the full report.
func (cc *ContactController) ImportContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	file, err := c.FormFile("file")
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File upload error", err)
	}
	if file.Size > config.AppConfig.ImportMaxFileSize {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File too large", nil)
	}

	src, err := file.Open()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to open file", err)
	}
	defer src.Close()

	var rows []service.ImportRow
	switch strings.ToLower(filepath.Ext(file.Filename)) {
	case ".xlsx":
		rows, err = parseXLSXRows(src)
	default:
		rows, err = service.ParseCSVRows(src)
	}
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Failed to parse file", err)
	}
	if len(rows) == 0 {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "File must have a header and at least one row", nil)
	}

	opts := service.ImportOptions{
		SkipDuplicates: c.Query("skip_duplicates", "true") == "true",
		UpdateExisting: c.Query("update_existing", "false") == "true",
	}

	if c.Query("sync") == "true" {
		report := cc.importer.ImportBatch(c.Context(), user.ID, rows, opts)
		if report.Status == service.StatusError {
			return utils.ErrorResponse(c, fiber.StatusUnprocessableEntity, report.Message, nil)
		}
		return c.JSON(utils.SuccessResponse(report))
	}

	task, err := worker.NewTask(worker.TaskContactImport, worker.ImportPayload{
		OrganizerID: user.ID,
		Rows:        rows,
		Options:     opts,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create import task", err)
	}
	if err := cc.Queue.Enqueue(task); err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Failed to enqueue import task", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"message":   "Import queued",
		"task_id":   task.ID,
		"row_count": len(rows),
	}))
}

// parseXLSXRows converts the first sheet of a workbook into import rows,
// treating the first row as the header.
func parseXLSXRows(src io.Reader) ([]service.ImportRow, error) {
	wb, err := excelize.OpenReader(src)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	records, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	rows := make([]service.ImportRow, 0, len(records)-1)
	for i, record := range records[1:] {
		fields := make(map[string]string, len(header))
		for j, col := range header {
			if col == "" || j >= len(record) {
				continue
			}
			fields[col] = record[j]
		}
		rows = append(rows, service.ImportRow{Line: i + 1, Fields: fields})
	}
	return rows, nil
}

// ExportContacts exports contacts to CSV
func (cc *ContactController) ExportContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var contacts []models.Contact
	if err := cc.DB.Where("organizer_id = ?", user.ID).Order("email").Find(&contacts).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contacts", err)
	}

	c.Set("Content-Type", "text/csv")
	c.Set("Content-Disposition", "attachment; filename=contacts_export_"+time.Now().Format("20060102")+".csv")

	writer := csv.NewWriter(c)
	defer writer.Flush()

	header := []string{"email", "first_name", "last_name", "phone", "company", "job_title", "notes", "tags"}
	if err := writer.Write(header); err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
	}

	for _, contact := range contacts {
		record := []string{
			contact.Email,
			contact.FirstName,
			contact.LastName,
			contact.Phone,
			contact.Company,
			contact.JobTitle,
			contact.Notes,
			strings.Join(contact.Tags, ","),
		}
		if err := writer.Write(record); err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate CSV", err)
		}
	}

	return nil
}

// MergeContacts absorbs duplicate contacts into a primary. ?sync=true runs
// the merge inline and returns the result; otherwise it is enqueued.
func (cc *ContactController) MergeContacts(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		PrimaryID    uint   `json:"primary_id" validate:"required"`
		DuplicateIDs []uint `json:"duplicate_ids" validate:"required,min=1"`
	}

	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	// The merge engine is owner-scope safe, but reject a foreign primary
	// here for a clean 404 instead of a worker-side failure.
	var primary models.Contact
	if err := cc.DB.Where("id = ? AND organizer_id = ?", input.PrimaryID, user.ID).First(&primary).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Primary contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch primary contact", err)
	}

	if c.Query("sync") == "true" {
		result, err := cc.merger.Merge(input.PrimaryID, input.DuplicateIDs)
		if err != nil {
			return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to merge contacts", err)
		}
		return c.JSON(utils.SuccessResponse(result))
	}

	task, err := worker.NewTask(worker.TaskContactMerge, worker.MergePayload{
		PrimaryID:    input.PrimaryID,
		DuplicateIDs: input.DuplicateIDs,
	})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create merge task", err)
	}
	if err := cc.Queue.Enqueue(task); err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Failed to enqueue merge task", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"message": "Merge queued",
		"task_id": task.ID,
	}))
}

// SyncContactStats recomputes booking statistics for one contact
func (cc *ContactController) SyncContactStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	contactID := utils.ParseUint(c.Params("id"))

	var contact models.Contact
	if err := cc.DB.Where("id = ? AND organizer_id = ?", contactID, user.ID).First(&contact).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Contact not found", nil)
		}
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch contact", err)
	}

	stats, err := cc.syncer.SyncOne(contactID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to sync contact stats", err)
	}
	return c.JSON(utils.SuccessResponse(stats))
}

// SyncAllContactStats enqueues a full statistics sweep
func (cc *ContactController) SyncAllContactStats(c *fiber.Ctx) error {
	task, err := worker.NewTask(worker.TaskSyncAllStats, struct{}{})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create sync task", err)
	}
	if err := cc.Queue.Enqueue(task); err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Failed to enqueue sync task", err)
	}
	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"message": "Stats sweep queued",
		"task_id": task.ID,
	}))
}

// NotifyBookingCreated is called by the scheduling side when a booking is
// confirmed; it enqueues the contact upsert for that booking.
func (cc *ContactController) NotifyBookingCreated(c *fiber.Ctx) error {
	bookingID := utils.ParseUint(c.Params("id"))

	booking, err := cc.bookings.FindBooking(bookingID)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch booking", err)
	}
	if booking == nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Booking not found", nil)
	}

	task, err := worker.NewTask(worker.TaskBookingCreated, worker.BookingCreatedPayload{BookingID: bookingID})
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create task", err)
	}
	if err := cc.Queue.Enqueue(task); err != nil {
		return utils.ErrorResponse(c, fiber.StatusServiceUnavailable, "Failed to enqueue task", err)
	}

	return c.Status(fiber.StatusAccepted).JSON(utils.SuccessResponse(fiber.Map{
		"message": "Booking upsert queued",
		"task_id": task.ID,
	}))
}
