package repository

import (
	"database/sql"
	"time"

	"pickup-service/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) FindByID(id uuid.UUID) (*model.WasteReport, error) {
	query := `
		SELECT id, type, description, address, location_lat, location_lng, priority,
			estimated_volume, status, assigned_collector_id, scheduled_pickup_date,
			completed_at, notes, admin_notes, image_urls, user_id, created_at, updated_at
		FROM waste_reports
		WHERE id = $1
	`
	report := &model.WasteReport{}
	var collectorID sql.NullString
	var scheduledDate, completedAt sql.NullTime
	var notes, adminNotes sql.NullString
	var imageURLs pq.StringArray

	err := r.db.QueryRow(query, id).Scan(
		&report.ID,
		&report.Type,
		&report.Description,
		&report.Location.Address,
		&report.Location.Lat,
		&report.Location.Lng,
		&report.Priority,
		&report.EstimatedVolume,
		&report.Status,
		&collectorID,
		&scheduledDate,
		&completedAt,
		&notes,
		&adminNotes,
		&imageURLs,
		&report.UserID,
		&report.CreatedAt,
		&report.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	if collectorID.Valid {
		if uid, err := uuid.Parse(collectorID.String); err == nil {
			report.AssignedCollectorID = &uid
		}
	}
	if scheduledDate.Valid {
		report.ScheduledPickupDate = &scheduledDate.Time
	}
	if completedAt.Valid {
		report.CompletedAt = &completedAt.Time
	}
	report.Notes = notes.String
	report.AdminNotes = adminNotes.String
	report.ImageURLs = imageURLs

	return report, nil
}

// FindIDsByOwner returns the ids of every report filed by the given
// resident. Used to scope task listings for residents.
func (r *ReportRepository) FindIDsByOwner(userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Query(`SELECT id FROM waste_reports WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Assign marks the report assigned to a collector with a scheduled pickup
// date. Runs inside the scheduling transaction.
func (r *ReportRepository) Assign(tx *sql.Tx, reportID, collectorID uuid.UUID, scheduledDate time.Time) error {
	query := `
		UPDATE waste_reports
		SET status = 'assigned', assigned_collector_id = $2, scheduled_pickup_date = $3,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := tx.Exec(query, reportID, collectorID, scheduledDate)
	return err
}

func (r *ReportRepository) UpdateStatus(tx *sql.Tx, reportID uuid.UUID, status model.ReportStatus) error {
	query := `UPDATE waste_reports SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.Exec(query, reportID, status)
	return err
}

// MarkCompleted sets the report completed with a completion timestamp.
func (r *ReportRepository) MarkCompleted(tx *sql.Tx, reportID uuid.UUID) error {
	query := `
		UPDATE waste_reports
		SET status = 'completed', completed_at = NOW(), updated_at = NOW()
		WHERE id = $1
	`
	_, err := tx.Exec(query, reportID)
	return err
}

// Release reverts the report to the unassigned pool: pending status, no
// collector, no scheduled date.
func (r *ReportRepository) Release(tx *sql.Tx, reportID uuid.UUID) error {
	query := `
		UPDATE waste_reports
		SET status = 'pending', assigned_collector_id = NULL, scheduled_pickup_date = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	_, err := tx.Exec(query, reportID)
	return err
}

// UpdateScheduledDate mirrors a task reschedule onto the report.
func (r *ReportRepository) UpdateScheduledDate(tx *sql.Tx, reportID uuid.UUID, scheduledDate time.Time) error {
	query := `UPDATE waste_reports SET scheduled_pickup_date = $2, updated_at = NOW() WHERE id = $1`
	_, err := tx.Exec(query, reportID, scheduledDate)
	return err
}
