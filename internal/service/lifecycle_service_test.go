package service

import (
	"sync"
	"testing"
	"time"

	"pickup-service/internal/messaging"
	"pickup-service/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)

type lifecycleFixture struct {
	store         *memStore
	users         *fakeDirectory
	notifications *fakeNotifications
	svc           *LifecycleService

	admin     *model.User
	collector *model.User
	resident  *model.User
	report    *model.WasteReport
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	admin := &model.User{ID: uuid.New(), FirstName: "Ada", LastName: "Admin", Role: model.RoleAdmin, IsActive: true}
	collector := &model.User{ID: uuid.New(), FirstName: "Carl", LastName: "Collector", Role: model.RoleCollector, IsActive: true}
	resident := &model.User{ID: uuid.New(), FirstName: "Rita", LastName: "Resident", Role: model.RoleResident, IsActive: true}

	report := &model.WasteReport{
		ID:          uuid.New(),
		Type:        model.WasteOrganic,
		Description: "overflowing bins",
		Priority:    model.PriorityHigh,
		Status:      model.ReportPending,
		UserID:      resident.ID,
		CreatedAt:   testNow.Add(-24 * time.Hour),
	}

	store := newMemStore()
	store.reports[report.ID] = report

	users := newFakeDirectory(admin, collector, resident)
	notifications := &fakeNotifications{}

	svc := NewLifecycleService(store, users, notifications)
	svc.now = func() time.Time { return testNow }

	return &lifecycleFixture{
		store:         store,
		users:         users,
		notifications: notifications,
		svc:           svc,
		admin:         admin,
		collector:     collector,
		resident:      resident,
		report:        report,
	}
}

func (f *lifecycleFixture) adminActor() Actor     { return Actor{ID: f.admin.ID, Role: model.RoleAdmin} }
func (f *lifecycleFixture) collectorActor() Actor {
	return Actor{ID: f.collector.ID, Role: model.RoleCollector}
}
func (f *lifecycleFixture) residentActor() Actor {
	return Actor{ID: f.resident.ID, Role: model.RoleResident}
}

func (f *lifecycleFixture) schedule(t *testing.T) *model.PickupTask {
	t.Helper()
	task, err := f.svc.Schedule(f.adminActor(), &model.SchedulePickupRequest{
		ReportID:          f.report.ID,
		CollectorID:       f.collector.ID,
		ScheduledDate:     testNow.Add(24 * time.Hour),
		EstimatedDuration: 30,
	})
	require.NoError(t, err)
	return task
}

func TestScheduleCreatesTaskAndAssignsReport(t *testing.T) {
	f := newLifecycleFixture(t)

	task := f.schedule(t)

	assert.Equal(t, model.TaskScheduled, task.Status)
	assert.Equal(t, f.report.ID, task.ReportID)
	assert.Equal(t, f.collector.ID, task.CollectorID)

	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportAssigned, report.Status)
	require.NotNil(t, report.AssignedCollectorID)
	assert.Equal(t, f.collector.ID, *report.AssignedCollectorID)
	require.NotNil(t, report.ScheduledPickupDate)

	// Two notifications: collector and report owner.
	assert.Len(t, f.notifications.forUser(f.collector.ID), 1)
	assert.Len(t, f.notifications.forUser(f.resident.ID), 1)

	// One assign_task event committed with the transaction.
	require.Equal(t, 1, f.store.eventCount())
	event := f.store.lastEvent()
	assert.Equal(t, messaging.RoutingKeyAssignTask, event.routingKey)
	payload, ok := event.payload.(messaging.AssignTaskEvent)
	require.True(t, ok)
	assert.Equal(t, task.ID, payload.PickupTask.ID)
	assert.Equal(t, model.ReportAssigned, payload.Report.Status)
	assert.Equal(t, f.collector.ID, payload.Collector.ID)
}

func TestScheduleValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *lifecycleFixture, req *model.SchedulePickupRequest)
		wantErr error
	}{
		{
			name:    "report not found",
			mutate:  func(f *lifecycleFixture, req *model.SchedulePickupRequest) { req.ReportID = uuid.New() },
			wantErr: ErrNotFound,
		},
		{
			name: "completed report",
			mutate: func(f *lifecycleFixture, req *model.SchedulePickupRequest) {
				f.report.Status = model.ReportCompleted
			},
			wantErr: ErrInvalidState,
		},
		{
			name:    "unknown collector",
			mutate:  func(f *lifecycleFixture, req *model.SchedulePickupRequest) { req.CollectorID = uuid.New() },
			wantErr: ErrCollectorUnavailable,
		},
		{
			name: "inactive collector",
			mutate: func(f *lifecycleFixture, req *model.SchedulePickupRequest) {
				f.collector.IsActive = false
			},
			wantErr: ErrCollectorUnavailable,
		},
		{
			name: "wrong role collector",
			mutate: func(f *lifecycleFixture, req *model.SchedulePickupRequest) {
				req.CollectorID = f.resident.ID
			},
			wantErr: ErrCollectorUnavailable,
		},
		{
			name:    "duration too short",
			mutate:  func(f *lifecycleFixture, req *model.SchedulePickupRequest) { req.EstimatedDuration = 4 },
			wantErr: ErrInvalidInput,
		},
		{
			name: "past date",
			mutate: func(f *lifecycleFixture, req *model.SchedulePickupRequest) {
				req.ScheduledDate = testNow.Add(-2 * time.Hour)
			},
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			req := &model.SchedulePickupRequest{
				ReportID:          f.report.ID,
				CollectorID:       f.collector.ID,
				ScheduledDate:     testNow.Add(24 * time.Hour),
				EstimatedDuration: 30,
			}
			tt.mutate(f, req)

			_, err := f.svc.Schedule(f.adminActor(), req)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 0, f.store.eventCount())
		})
	}
}

func TestScheduleRejectsNonAdmin(t *testing.T) {
	f := newLifecycleFixture(t)

	_, err := f.svc.Schedule(f.collectorActor(), &model.SchedulePickupRequest{
		ReportID:          f.report.ID,
		CollectorID:       f.collector.ID,
		ScheduledDate:     testNow.Add(24 * time.Hour),
		EstimatedDuration: 30,
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestScheduleRejectsSecondActiveTask(t *testing.T) {
	f := newLifecycleFixture(t)
	f.schedule(t)

	_, err := f.svc.Schedule(f.adminActor(), &model.SchedulePickupRequest{
		ReportID:          f.report.ID,
		CollectorID:       f.collector.ID,
		ScheduledDate:     testNow.Add(48 * time.Hour),
		EstimatedDuration: 30,
	})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, 1, f.store.eventCount())
}

func TestStartTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	started, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)

	assert.Equal(t, model.TaskInProgress, started.Status)
	require.NotNil(t, started.ActualStartTime)
	assert.Equal(t, testNow, *started.ActualStartTime)

	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportInProgress, report.Status)

	event := f.store.lastEvent()
	assert.Equal(t, messaging.RoutingKeyTaskUpdate, event.routingKey)
	payload := event.payload.(messaging.TaskUpdateEvent)
	assert.Equal(t, model.TaskInProgress, payload.Status)
}

func TestStartRequiresOwningCollector(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	other := Actor{ID: uuid.New(), Role: model.RoleCollector}
	_, err := f.svc.Start(other, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.Start(f.residentActor(), task.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestStartRejectsWrongStatus(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	_, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)

	_, err = f.svc.Start(f.collectorActor(), task.ID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)
	_, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)

	completed, err := f.svc.Complete(f.collectorActor(), task.ID, "done")
	require.NoError(t, err)

	assert.Equal(t, model.TaskCompleted, completed.Status)
	assert.Equal(t, "done", completed.CompletionNotes)
	require.NotNil(t, completed.ActualEndTime)
	require.NotNil(t, completed.ActualStartTime)
	assert.False(t, completed.ActualEndTime.Before(*completed.ActualStartTime))

	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportCompleted, report.Status)
	assert.NotNil(t, report.CompletedAt)

	// Owner and admin notifications.
	assert.NotEmpty(t, f.notifications.forUser(f.resident.ID))
	assert.NotEmpty(t, f.notifications.forUser(f.admin.ID))

	event := f.store.lastEvent()
	payload := event.payload.(messaging.TaskUpdateEvent)
	assert.Equal(t, model.TaskCompleted, payload.Status)
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	_, err := f.svc.Complete(f.collectorActor(), task.ID, "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancelScheduledTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	cancelled, err := f.svc.Cancel(f.collectorActor(), task.ID, "truck broke down")
	require.NoError(t, err)

	assert.Equal(t, model.TaskCancelled, cancelled.Status)
	assert.Equal(t, "truck broke down", cancelled.CancellationReason)

	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, report.Status)
	assert.Nil(t, report.AssignedCollectorID)
	assert.Nil(t, report.ScheduledPickupDate)
}

func TestCancelInProgressTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)
	_, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(f.adminActor(), task.ID, "resident unavailable")
	require.NoError(t, err)

	assert.Equal(t, model.TaskCancelled, cancelled.Status)
	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ReportPending, report.Status)
	assert.Nil(t, report.AssignedCollectorID)
}

func TestCancelValidation(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	_, err := f.svc.Cancel(f.collectorActor(), task.ID, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	_, err = f.svc.Cancel(f.collectorActor(), task.ID, string(long))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Cancel(f.residentActor(), task.ID, "why not")
	assert.ErrorIs(t, err, ErrForbidden)

	other := Actor{ID: uuid.New(), Role: model.RoleCollector}
	_, err = f.svc.Cancel(other, task.ID, "not mine")
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelRejectsCompletedTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)
	_, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)
	_, err = f.svc.Complete(f.collectorActor(), task.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Cancel(f.adminActor(), task.ID, "too late")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRescheduleTask(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)
	newDate := testNow.Add(72 * time.Hour)

	rescheduled, err := f.svc.Reschedule(f.adminActor(), task.ID, newDate, "holiday route change")
	require.NoError(t, err)

	assert.Equal(t, model.TaskScheduled, rescheduled.Status)
	assert.Equal(t, newDate, rescheduled.ScheduledDate)
	assert.Contains(t, rescheduled.Notes, "rescheduled from")
	assert.Contains(t, rescheduled.Notes, "holiday route change")

	report, err := f.store.GetReport(f.report.ID)
	require.NoError(t, err)
	require.NotNil(t, report.ScheduledPickupDate)
	assert.Equal(t, newDate, *report.ScheduledPickupDate)
}

func TestRescheduleRequiresScheduledStatus(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)
	_, err := f.svc.Start(f.collectorActor(), task.ID)
	require.NoError(t, err)

	_, err = f.svc.Reschedule(f.adminActor(), task.ID, testNow.Add(72*time.Hour), "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

// Two concurrent starts on the same task: exactly one succeeds, the other
// observes the status guard.
func TestConcurrentStart(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Start(f.collectorActor(), task.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, invalid int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		default:
			assert.ErrorIs(t, err, ErrInvalidState)
			invalid++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, invalid)

	got, err := f.store.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, got.Status)
}

func TestNotificationFailureDoesNotFailOperation(t *testing.T) {
	f := newLifecycleFixture(t)
	f.notifications.err = assert.AnError

	task, err := f.svc.Schedule(f.adminActor(), &model.SchedulePickupRequest{
		ReportID:          f.report.ID,
		CollectorID:       f.collector.ID,
		ScheduledDate:     testNow.Add(24 * time.Hour),
		EstimatedDuration: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, model.TaskScheduled, task.Status)
}

func TestListTasksScoping(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	// Collector sees only their own tasks regardless of the filter.
	otherCollector := Actor{ID: uuid.New(), Role: model.RoleCollector}
	resp, err := f.svc.ListTasks(otherCollector, model.TaskFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.PickupTasks)

	resp, err = f.svc.ListTasks(f.collectorActor(), model.TaskFilter{}, 1, 10)
	require.NoError(t, err)
	require.Len(t, resp.PickupTasks, 1)
	assert.Equal(t, task.ID, resp.PickupTasks[0].ID)

	// Resident sees tasks for their own reports.
	resp, err = f.svc.ListTasks(f.residentActor(), model.TaskFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Len(t, resp.PickupTasks, 1)

	otherResident := Actor{ID: uuid.New(), Role: model.RoleResident}
	resp, err = f.svc.ListTasks(otherResident, model.TaskFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Empty(t, resp.PickupTasks)

	// Invalid status filter is rejected.
	_, err = f.svc.ListTasks(f.adminActor(), model.TaskFilter{Status: "pending"}, 1, 10)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetTaskVisibility(t *testing.T) {
	f := newLifecycleFixture(t)
	task := f.schedule(t)

	_, err := f.svc.GetTask(f.adminActor(), task.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetTask(f.collectorActor(), task.ID)
	assert.NoError(t, err)

	_, err = f.svc.GetTask(f.residentActor(), task.ID)
	assert.NoError(t, err)

	other := Actor{ID: uuid.New(), Role: model.RoleCollector}
	_, err = f.svc.GetTask(other, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	otherResident := Actor{ID: uuid.New(), Role: model.RoleResident}
	_, err = f.svc.GetTask(otherResident, task.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetTask(f.adminActor(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollectorScheduleAccess(t *testing.T) {
	f := newLifecycleFixture(t)
	f.schedule(t)

	start := testNow
	end := testNow.Add(48 * time.Hour)

	tasks, err := f.svc.CollectorSchedule(f.collectorActor(), f.collector.ID, start, end)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	_, err = f.svc.CollectorSchedule(f.collectorActor(), uuid.New(), start, end)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CollectorSchedule(f.residentActor(), f.collector.ID, start, end)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.CollectorSchedule(f.adminActor(), f.collector.ID, end, start)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
