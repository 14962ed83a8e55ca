package repository

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"pickup-service/internal/model"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, report_id, collector_id, status, scheduled_date, estimated_duration,
	actual_start_time, actual_end_time, completion_notes, cancellation_reason, notes,
	created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*model.PickupTask, error) {
	task := &model.PickupTask{}
	var start, end sql.NullTime
	var completionNotes, cancellationReason, notes sql.NullString

	err := row.Scan(
		&task.ID,
		&task.ReportID,
		&task.CollectorID,
		&task.Status,
		&task.ScheduledDate,
		&task.EstimatedDuration,
		&start,
		&end,
		&completionNotes,
		&cancellationReason,
		&notes,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if start.Valid {
		task.ActualStartTime = &start.Time
	}
	if end.Valid {
		task.ActualEndTime = &end.Time
	}
	task.CompletionNotes = completionNotes.String
	task.CancellationReason = cancellationReason.String
	task.Notes = notes.String

	return task, nil
}

func (r *TaskRepository) CreateInTransaction(tx *sql.Tx, task *model.PickupTask) error {
	query := `
		INSERT INTO pickup_tasks (id, report_id, collector_id, status, scheduled_date,
			estimated_duration, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.Exec(query,
		task.ID,
		task.ReportID,
		task.CollectorID,
		task.Status,
		task.ScheduledDate,
		task.EstimatedDuration,
		task.Notes,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

func (r *TaskRepository) FindByID(id uuid.UUID) (*model.PickupTask, error) {
	query := `SELECT ` + taskColumns + ` FROM pickup_tasks WHERE id = $1`
	task, err := scanTask(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// HasActiveTaskForReport reports whether the report already has a task in
// scheduled or in_progress status. Used to enforce at most one active task
// per report.
func (r *TaskRepository) HasActiveTaskForReport(tx *sql.Tx, reportID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM pickup_tasks
			WHERE report_id = $1 AND status IN ('scheduled', 'in_progress')
		)
	`
	var exists bool
	err := tx.QueryRow(query, reportID).Scan(&exists)
	return exists, err
}

// UpdateFieldsCAS applies the given column updates only if the task is still
// in the expected status. Returns false when the guard fails, which means a
// concurrent transition already moved the task.
func (r *TaskRepository) UpdateFieldsCAS(tx *sql.Tx, id uuid.UUID, expected model.TaskStatus, fields map[string]interface{}) (bool, error) {
	set := "updated_at = NOW()"
	args := []interface{}{id, expected}
	i := 3
	for col, val := range fields {
		set += ", " + col + " = $" + strconv.Itoa(i)
		args = append(args, val)
		i++
	}

	query := `UPDATE pickup_tasks SET ` + set + ` WHERE id = $1 AND status = $2`
	result, err := tx.Exec(query, args...)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// FindFiltered returns a page of tasks ordered by scheduled date, plus the
// total matching count for pagination.
func (r *TaskRepository) FindFiltered(filter model.TaskFilter, page, limit int) ([]model.PickupTask, int, error) {
	where := "TRUE"
	args := []interface{}{}
	i := 1

	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", i)
		args = append(args, filter.Status)
		i++
	}
	if filter.CollectorID != nil {
		where += fmt.Sprintf(" AND collector_id = $%d", i)
		args = append(args, *filter.CollectorID)
		i++
	}
	if filter.ReportIDs != nil {
		ids := make([]string, len(filter.ReportIDs))
		for j, id := range filter.ReportIDs {
			ids[j] = id.String()
		}
		where += fmt.Sprintf(" AND report_id = ANY($%d)", i)
		args = append(args, pq.Array(ids))
		i++
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM pickup_tasks WHERE ` + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+taskColumns+` FROM pickup_tasks WHERE `+where+`
		ORDER BY scheduled_date ASC LIMIT $%d OFFSET $%d`, i, i+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

// FindByCollectorAndDateRange returns a collector's tasks scheduled within
// [start, end], ordered by scheduled date.
func (r *TaskRepository) FindByCollectorAndDateRange(collectorID uuid.UUID, start, end time.Time) ([]model.PickupTask, error) {
	query := `
		SELECT ` + taskColumns + ` FROM pickup_tasks
		WHERE collector_id = $1 AND scheduled_date >= $2 AND scheduled_date <= $3
		ORDER BY scheduled_date ASC
	`
	rows, err := r.db.Query(query, collectorID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectTasks(rows)
}

// TaskWithPriority pairs a task with its report's priority for the
// statistics scans.
type TaskWithPriority struct {
	model.PickupTask
	ReportPriority model.Priority
}

// FindByCollectorWithPriority returns all of a collector's tasks joined with
// the owning report's priority. A zero since filters nothing.
func (r *TaskRepository) FindByCollectorWithPriority(collectorID uuid.UUID, since time.Time) ([]TaskWithPriority, error) {
	query := `
		SELECT t.id, t.report_id, t.collector_id, t.status, t.scheduled_date,
			t.estimated_duration, t.actual_start_time, t.actual_end_time,
			t.completion_notes, t.cancellation_reason, t.notes, t.created_at, t.updated_at,
			r.priority
		FROM pickup_tasks t
		JOIN waste_reports r ON t.report_id = r.id
		WHERE t.collector_id = $1 AND ($2::timestamptz IS NULL OR t.scheduled_date >= $2)
		ORDER BY t.scheduled_date ASC
	`
	var sinceArg interface{}
	if !since.IsZero() {
		sinceArg = since
	}

	rows, err := r.db.Query(query, collectorID, sinceArg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []TaskWithPriority
	for rows.Next() {
		var t TaskWithPriority
		var start, end sql.NullTime
		var completionNotes, cancellationReason, notes sql.NullString
		err := rows.Scan(
			&t.ID,
			&t.ReportID,
			&t.CollectorID,
			&t.Status,
			&t.ScheduledDate,
			&t.EstimatedDuration,
			&start,
			&end,
			&completionNotes,
			&cancellationReason,
			&notes,
			&t.CreatedAt,
			&t.UpdatedAt,
			&t.ReportPriority,
		)
		if err != nil {
			return nil, err
		}
		if start.Valid {
			t.ActualStartTime = &start.Time
		}
		if end.Valid {
			t.ActualEndTime = &end.Time
		}
		t.CompletionNotes = completionNotes.String
		t.CancellationReason = cancellationReason.String
		t.Notes = notes.String
		tasks = append(tasks, t)
	}

	return tasks, rows.Err()
}

func collectTasks(rows *sql.Rows) ([]model.PickupTask, error) {
	var tasks []model.PickupTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}
