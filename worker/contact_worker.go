package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"meetsync/services"
	"meetsync/utils"
)

// ContactWorker drains the task queue and dispatches to the import, merge
// and stats engines. One worker processes tasks sequentially; concurrency
// comes from running invocations as independent units of work.
type ContactWorker struct {
	Queue    Queue
	Importer *service.Importer
	Merger   *service.Merger
	Syncer   *service.StatsSyncer
	Bookings service.BookingSource
	Logger   *logrus.Logger
}

func NewContactWorker(queue Queue, importer *service.Importer, merger *service.Merger,
	syncer *service.StatsSyncer, bookings service.BookingSource, logger *logrus.Logger) *ContactWorker {
	return &ContactWorker{
		Queue:    queue,
		Importer: importer,
		Merger:   merger,
		Syncer:   syncer,
		Bookings: bookings,
		Logger:   logger,
	}
}

func (w *ContactWorker) Start(ctx context.Context) {
	w.Logger.Info("contact worker started")
	for {
		task, err := w.Queue.Dequeue(ctx)
		if ctx.Err() != nil {
			w.Logger.Info("contact worker shutting down...")
			return
		}
		if err != nil {
			utils.LogError("task_dequeue_failed", err, map[string]interface{}{})
			continue
		}
		if err := w.handle(ctx, task); err != nil {
			utils.LogError("task_failed", err, map[string]interface{}{
				"task_id":   task.ID,
				"task_type": task.Type,
			})
		}
	}
}

func (w *ContactWorker) handle(ctx context.Context, task *Task) error {
	switch task.Type {
	case TaskContactImport:
		return w.handleImport(ctx, task.Payload)
	case TaskContactMerge:
		return w.handleMerge(task.Payload)
	case TaskSyncStats:
		return w.handleSyncStats(task.Payload)
	case TaskSyncAllStats:
		return w.handleSyncAll()
	case TaskBookingCreated:
		return w.handleBookingCreated(task.Payload)
	default:
		return fmt.Errorf("unknown task type %q", task.Type)
	}
}

func (w *ContactWorker) handleImport(ctx context.Context, payload json.RawMessage) error {
	var p ImportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	report := w.Importer.ImportBatch(ctx, p.OrganizerID, p.Rows, p.Options)
	utils.LogEvent("contact_import_completed", map[string]interface{}{
		"organizer_id": p.OrganizerID,
		"status":       report.Status,
		"created":      report.CreatedCount,
		"updated":      report.UpdatedCount,
		"skipped":      report.SkippedCount,
	})
	if report.Status == service.StatusError {
		return fmt.Errorf("import aborted: %s", report.Message)
	}
	return nil
}

func (w *ContactWorker) handleMerge(payload json.RawMessage) error {
	var p MergePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	result, err := w.Merger.Merge(p.PrimaryID, p.DuplicateIDs)
	if err != nil {
		return err
	}
	utils.LogEvent("contact_merge_completed", map[string]interface{}{
		"primary_id":   p.PrimaryID,
		"merged_count": result.MergedCount,
	})
	return nil
}

func (w *ContactWorker) handleSyncStats(payload json.RawMessage) error {
	var p SyncStatsPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	_, err := w.Syncer.SyncOne(p.ContactID)
	return err
}

func (w *ContactWorker) handleSyncAll() error {
	report := w.Syncer.SyncAll()
	utils.LogEvent("contact_stats_sweep_completed", map[string]interface{}{
		"checked": report.CheckedCount,
		"updated": report.UpdatedCount,
		"failed":  report.FailedCount,
	})
	return nil
}

func (w *ContactWorker) handleBookingCreated(payload json.RawMessage) error {
	var p BookingCreatedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return err
	}
	booking, err := w.Bookings.FindBooking(p.BookingID)
	if err != nil {
		return err
	}
	if booking == nil {
		return fmt.Errorf("booking %d not found", p.BookingID)
	}
	contact, created, err := w.Syncer.UpsertFromBooking(booking)
	if err != nil {
		return err
	}
	utils.LogEvent("contact_booking_upsert", map[string]interface{}{
		"booking_id": p.BookingID,
		"contact_id": contact.ID,
		"created":    created,
	})
	return nil
}
