package repository

import (
	"database/sql"
	"time"

	"pickup-service/internal/model"

	"github.com/google/uuid"
)

// Store is the storage contract the lifecycle engine and the statistics
// aggregator run against. The SQL implementation below is the production
// store; tests run the engine against an in-memory fake.
type Store interface {
	Begin() (Tx, error)
	GetTask(id uuid.UUID) (*model.PickupTask, error)
	GetReport(id uuid.UUID) (*model.WasteReport, error)
	ListTasks(filter model.TaskFilter, page, limit int) ([]model.PickupTask, int, error)
	TasksInRange(collectorID uuid.UUID, start, end time.Time) ([]model.PickupTask, error)
	CollectorTasks(collectorID uuid.UUID, since time.Time) ([]TaskWithPriority, error)
	ReportIDsByOwner(userID uuid.UUID) ([]uuid.UUID, error)
}

// Tx groups the writes of one lifecycle transition. The task mutation, the
// paired report mutation, and the event append commit or roll back together.
// Every task mutation is guarded by the expected current status; false means
// a concurrent transition won.
type Tx interface {
	CreateTask(task *model.PickupTask) error
	HasActiveTaskForReport(reportID uuid.UUID) (bool, error)
	StartTask(id uuid.UUID, startedAt time.Time) (bool, error)
	CompleteTask(id uuid.UUID, endedAt time.Time, notes string) (bool, error)
	CancelTask(id uuid.UUID, from model.TaskStatus, reason string) (bool, error)
	RescheduleTask(id uuid.UUID, newDate time.Time, notes string) (bool, error)

	AssignReport(reportID, collectorID uuid.UUID, scheduledDate time.Time) error
	SetReportStatus(reportID uuid.UUID, status model.ReportStatus) error
	CompleteReport(reportID uuid.UUID) error
	ReleaseReport(reportID uuid.UUID) error
	SetReportScheduledDate(reportID uuid.UUID, scheduledDate time.Time) error

	AppendEvent(routingKey string, payload interface{}) error

	Commit() error
	Rollback() error
}

// Directory is the user lookup surface the engine needs. Account management
// lives in the auth service.
type Directory interface {
	FindByID(id uuid.UUID) (*model.User, error)
	FindActiveCollector(id uuid.UUID) (*model.User, error)
	FindActiveAdmins() ([]model.User, error)
}

// NotificationWriter is the append-only notification sink.
type NotificationWriter interface {
	CreateBatch(notifications []model.Notification) error
}

// SQLStore implements Store over Postgres using the repositories.
type SQLStore struct {
	db      *sql.DB
	tasks   *TaskRepository
	reports *ReportRepository
	outbox  *OutboxRepository
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		tasks:   NewTaskRepository(db),
		reports: NewReportRepository(db),
		outbox:  NewOutboxRepository(db),
	}
}

func (s *SQLStore) Begin() (Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx, store: s}, nil
}

func (s *SQLStore) GetTask(id uuid.UUID) (*model.PickupTask, error) {
	return s.tasks.FindByID(id)
}

func (s *SQLStore) GetReport(id uuid.UUID) (*model.WasteReport, error) {
	return s.reports.FindByID(id)
}

func (s *SQLStore) ListTasks(filter model.TaskFilter, page, limit int) ([]model.PickupTask, int, error) {
	return s.tasks.FindFiltered(filter, page, limit)
}

func (s *SQLStore) TasksInRange(collectorID uuid.UUID, start, end time.Time) ([]model.PickupTask, error) {
	return s.tasks.FindByCollectorAndDateRange(collectorID, start, end)
}

func (s *SQLStore) CollectorTasks(collectorID uuid.UUID, since time.Time) ([]TaskWithPriority, error) {
	return s.tasks.FindByCollectorWithPriority(collectorID, since)
}

func (s *SQLStore) ReportIDsByOwner(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.reports.FindIDsByOwner(userID)
}

type sqlTx struct {
	tx    *sql.Tx
	store *SQLStore
}

func (t *sqlTx) CreateTask(task *model.PickupTask) error {
	return t.store.tasks.CreateInTransaction(t.tx, task)
}

func (t *sqlTx) HasActiveTaskForReport(reportID uuid.UUID) (bool, error) {
	return t.store.tasks.HasActiveTaskForReport(t.tx, reportID)
}

func (t *sqlTx) StartTask(id uuid.UUID, startedAt time.Time) (bool, error) {
	return t.store.tasks.UpdateFieldsCAS(t.tx, id, model.TaskScheduled, map[string]interface{}{
		"status":            model.TaskInProgress,
		"actual_start_time": startedAt,
	})
}

func (t *sqlTx) CompleteTask(id uuid.UUID, endedAt time.Time, notes string) (bool, error) {
	return t.store.tasks.UpdateFieldsCAS(t.tx, id, model.TaskInProgress, map[string]interface{}{
		"status":           model.TaskCompleted,
		"actual_end_time":  endedAt,
		"completion_notes": notes,
	})
}

func (t *sqlTx) CancelTask(id uuid.UUID, from model.TaskStatus, reason string) (bool, error) {
	return t.store.tasks.UpdateFieldsCAS(t.tx, id, from, map[string]interface{}{
		"status":              model.TaskCancelled,
		"cancellation_reason": reason,
	})
}

func (t *sqlTx) RescheduleTask(id uuid.UUID, newDate time.Time, notes string) (bool, error) {
	return t.store.tasks.UpdateFieldsCAS(t.tx, id, model.TaskScheduled, map[string]interface{}{
		"scheduled_date": newDate,
		"notes":          notes,
	})
}

func (t *sqlTx) AssignReport(reportID, collectorID uuid.UUID, scheduledDate time.Time) error {
	return t.store.reports.Assign(t.tx, reportID, collectorID, scheduledDate)
}

func (t *sqlTx) SetReportStatus(reportID uuid.UUID, status model.ReportStatus) error {
	return t.store.reports.UpdateStatus(t.tx, reportID, status)
}

func (t *sqlTx) CompleteReport(reportID uuid.UUID) error {
	return t.store.reports.MarkCompleted(t.tx, reportID)
}

func (t *sqlTx) ReleaseReport(reportID uuid.UUID) error {
	return t.store.reports.Release(t.tx, reportID)
}

func (t *sqlTx) SetReportScheduledDate(reportID uuid.UUID, scheduledDate time.Time) error {
	return t.store.reports.UpdateScheduledDate(t.tx, reportID, scheduledDate)
}

func (t *sqlTx) AppendEvent(routingKey string, payload interface{}) error {
	return t.store.outbox.CreateInTransaction(t.tx, routingKey, payload)
}

func (t *sqlTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqlTx) Rollback() error {
	return t.tx.Rollback()
}
