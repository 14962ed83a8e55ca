package service

import (
	"errors"
	"sync"
	"time"

	"pickup-service/internal/model"
	"pickup-service/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory repository.Store. Transactions hold the store
// lock from Begin to Commit/Rollback, so concurrent lifecycle calls are
// serialized the way status-guarded SQL updates serialize them.
type memStore struct {
	mu      sync.Mutex
	tasks   map[uuid.UUID]*model.PickupTask
	reports map[uuid.UUID]*model.WasteReport
	events  []appendedEvent

	readErr error // forced read failure, for fail-soft tests
}

type appendedEvent struct {
	routingKey string
	payload    interface{}
}

func newMemStore() *memStore {
	return &memStore{
		tasks:   make(map[uuid.UUID]*model.PickupTask),
		reports: make(map[uuid.UUID]*model.WasteReport),
	}
}

func copyTask(t *model.PickupTask) *model.PickupTask {
	if t == nil {
		return nil
	}
	c := *t
	if t.ActualStartTime != nil {
		v := *t.ActualStartTime
		c.ActualStartTime = &v
	}
	if t.ActualEndTime != nil {
		v := *t.ActualEndTime
		c.ActualEndTime = &v
	}
	return &c
}

func copyReport(r *model.WasteReport) *model.WasteReport {
	if r == nil {
		return nil
	}
	c := *r
	if r.AssignedCollectorID != nil {
		v := *r.AssignedCollectorID
		c.AssignedCollectorID = &v
	}
	if r.ScheduledPickupDate != nil {
		v := *r.ScheduledPickupDate
		c.ScheduledPickupDate = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

func (s *memStore) Begin() (repository.Tx, error) {
	s.mu.Lock()
	tx := &memTx{store: s}
	tx.snapshot()
	return tx, nil
}

func (s *memStore) GetTask(id uuid.UUID) (*model.PickupTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return copyTask(s.tasks[id]), nil
}

func (s *memStore) GetReport(id uuid.UUID) (*model.WasteReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	return copyReport(s.reports[id]), nil
}

func (s *memStore) ListTasks(filter model.TaskFilter, page, limit int) ([]model.PickupTask, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, 0, s.readErr
	}

	var matched []model.PickupTask
	for _, task := range s.tasks {
		if filter.Status != "" && task.Status != filter.Status {
			continue
		}
		if filter.CollectorID != nil && task.CollectorID != *filter.CollectorID {
			continue
		}
		if filter.ReportIDs != nil && !containsID(filter.ReportIDs, task.ReportID) {
			continue
		}
		matched = append(matched, *copyTask(task))
	}

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func (s *memStore) TasksInRange(collectorID uuid.UUID, start, end time.Time) ([]model.PickupTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}

	var tasks []model.PickupTask
	for _, task := range s.tasks {
		if task.CollectorID != collectorID {
			continue
		}
		if task.ScheduledDate.Before(start) || task.ScheduledDate.After(end) {
			continue
		}
		tasks = append(tasks, *copyTask(task))
	}
	return tasks, nil
}

func (s *memStore) CollectorTasks(collectorID uuid.UUID, since time.Time) ([]repository.TaskWithPriority, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}

	var tasks []repository.TaskWithPriority
	for _, task := range s.tasks {
		if task.CollectorID != collectorID {
			continue
		}
		if !since.IsZero() && task.ScheduledDate.Before(since) {
			continue
		}
		priority := model.PriorityMedium
		if report := s.reports[task.ReportID]; report != nil {
			priority = report.Priority
		}
		tasks = append(tasks, repository.TaskWithPriority{
			PickupTask:     *copyTask(task),
			ReportPriority: priority,
		})
	}
	return tasks, nil
}

func (s *memStore) ReportIDsByOwner(userID uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}

	var ids []uuid.UUID
	for id, report := range s.reports {
		if report.UserID == userID {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *memStore) eventCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func (s *memStore) lastEvent() appendedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

type memTx struct {
	store *memStore
	done  bool

	savedTasks   map[uuid.UUID]*model.PickupTask
	savedReports map[uuid.UUID]*model.WasteReport
	savedEvents  []appendedEvent
}

func (t *memTx) snapshot() {
	t.savedTasks = make(map[uuid.UUID]*model.PickupTask, len(t.store.tasks))
	for id, task := range t.store.tasks {
		t.savedTasks[id] = copyTask(task)
	}
	t.savedReports = make(map[uuid.UUID]*model.WasteReport, len(t.store.reports))
	for id, report := range t.store.reports {
		t.savedReports[id] = copyReport(report)
	}
	t.savedEvents = append([]appendedEvent(nil), t.store.events...)
}

func (t *memTx) CreateTask(task *model.PickupTask) error {
	t.store.tasks[task.ID] = copyTask(task)
	return nil
}

func (t *memTx) HasActiveTaskForReport(reportID uuid.UUID) (bool, error) {
	for _, task := range t.store.tasks {
		if task.ReportID == reportID && model.IsActiveTaskStatus(task.Status) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) StartTask(id uuid.UUID, startedAt time.Time) (bool, error) {
	task, ok := t.store.tasks[id]
	if !ok || task.Status != model.TaskScheduled {
		return false, nil
	}
	task.Status = model.TaskInProgress
	started := startedAt
	task.ActualStartTime = &started
	task.UpdatedAt = startedAt
	return true, nil
}

func (t *memTx) CompleteTask(id uuid.UUID, endedAt time.Time, notes string) (bool, error) {
	task, ok := t.store.tasks[id]
	if !ok || task.Status != model.TaskInProgress {
		return false, nil
	}
	task.Status = model.TaskCompleted
	ended := endedAt
	task.ActualEndTime = &ended
	task.CompletionNotes = notes
	task.UpdatedAt = endedAt
	return true, nil
}

func (t *memTx) CancelTask(id uuid.UUID, from model.TaskStatus, reason string) (bool, error) {
	task, ok := t.store.tasks[id]
	if !ok || task.Status != from {
		return false, nil
	}
	task.Status = model.TaskCancelled
	task.CancellationReason = reason
	return true, nil
}

func (t *memTx) RescheduleTask(id uuid.UUID, newDate time.Time, notes string) (bool, error) {
	task, ok := t.store.tasks[id]
	if !ok || task.Status != model.TaskScheduled {
		return false, nil
	}
	task.ScheduledDate = newDate
	task.Notes = notes
	return true, nil
}

func (t *memTx) AssignReport(reportID, collectorID uuid.UUID, scheduledDate time.Time) error {
	report, ok := t.store.reports[reportID]
	if !ok {
		return errors.New("report not found")
	}
	report.Status = model.ReportAssigned
	cid := collectorID
	report.AssignedCollectorID = &cid
	date := scheduledDate
	report.ScheduledPickupDate = &date
	return nil
}

func (t *memTx) SetReportStatus(reportID uuid.UUID, status model.ReportStatus) error {
	report, ok := t.store.reports[reportID]
	if !ok {
		return errors.New("report not found")
	}
	report.Status = status
	return nil
}

func (t *memTx) CompleteReport(reportID uuid.UUID) error {
	report, ok := t.store.reports[reportID]
	if !ok {
		return errors.New("report not found")
	}
	report.Status = model.ReportCompleted
	now := time.Now()
	report.CompletedAt = &now
	return nil
}

func (t *memTx) ReleaseReport(reportID uuid.UUID) error {
	report, ok := t.store.reports[reportID]
	if !ok {
		return errors.New("report not found")
	}
	report.Status = model.ReportPending
	report.AssignedCollectorID = nil
	report.ScheduledPickupDate = nil
	return nil
}

func (t *memTx) SetReportScheduledDate(reportID uuid.UUID, scheduledDate time.Time) error {
	report, ok := t.store.reports[reportID]
	if !ok {
		return errors.New("report not found")
	}
	date := scheduledDate
	report.ScheduledPickupDate = &date
	return nil
}

func (t *memTx) AppendEvent(routingKey string, payload interface{}) error {
	t.store.events = append(t.store.events, appendedEvent{routingKey: routingKey, payload: payload})
	return nil
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	t.store.tasks = t.savedTasks
	t.store.reports = t.savedReports
	t.store.events = t.savedEvents
	t.store.mu.Unlock()
	return nil
}

// fakeDirectory serves user lookups from a fixed map.
type fakeDirectory struct {
	users map[uuid.UUID]*model.User
}

func newFakeDirectory(users ...*model.User) *fakeDirectory {
	d := &fakeDirectory{users: make(map[uuid.UUID]*model.User)}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

func (d *fakeDirectory) FindByID(id uuid.UUID) (*model.User, error) {
	return d.users[id], nil
}

func (d *fakeDirectory) FindActiveCollector(id uuid.UUID) (*model.User, error) {
	user := d.users[id]
	if user == nil || user.Role != model.RoleCollector || !user.IsActive {
		return nil, nil
	}
	return user, nil
}

func (d *fakeDirectory) FindActiveAdmins() ([]model.User, error) {
	var admins []model.User
	for _, user := range d.users {
		if user.Role == model.RoleAdmin && user.IsActive {
			admins = append(admins, *user)
		}
	}
	return admins, nil
}

// fakeNotifications records every notification the engine queues.
type fakeNotifications struct {
	mu      sync.Mutex
	created []model.Notification
	err     error
}

func (f *fakeNotifications) CreateBatch(notifications []model.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, notifications...)
	return nil
}

func (f *fakeNotifications) forUser(userID uuid.UUID) []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Notification
	for _, n := range f.created {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
