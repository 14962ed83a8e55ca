package service

import (
	"fmt"
	"log"
	"time"

	"pickup-service/internal/messaging"
	"pickup-service/internal/model"
	"pickup-service/internal/repository"

	"github.com/google/uuid"
)

const (
	minEstimatedDuration = 5
	maxReasonLength      = 200
	// Clock skew allowance when rejecting past schedule dates.
	pastDateGrace = time.Minute
)

// Actor is the authenticated identity a lifecycle command runs as, supplied
// by the auth middleware.
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// LifecycleService owns every pickup task state transition. Each mutating
// operation follows the same shape: validate, write task + report + event in
// one transaction, then queue notifications best-effort.
//
// Collectors may only act on their own tasks; admins bypass ownership but
// not state validity; residents never mutate tasks.
type LifecycleService struct {
	store         repository.Store
	users         repository.Directory
	notifications repository.NotificationWriter
	now           func() time.Time
}

func NewLifecycleService(store repository.Store, users repository.Directory, notifications repository.NotificationWriter) *LifecycleService {
	return &LifecycleService{
		store:         store,
		users:         users,
		notifications: notifications,
		now:           time.Now,
	}
}

// Schedule creates a pickup task for a report and assigns it to a collector.
func (s *LifecycleService) Schedule(actor Actor, req *model.SchedulePickupRequest) (*model.PickupTask, error) {
	if actor.Role != model.RoleAdmin {
		return nil, fmt.Errorf("only admins can schedule pickups: %w", ErrForbidden)
	}
	if req.EstimatedDuration < minEstimatedDuration {
		return nil, invalidInput("estimated duration must be at least %d minutes", minEstimatedDuration)
	}
	now := s.now()
	if req.ScheduledDate.Before(now.Add(-pastDateGrace)) {
		return nil, invalidInput("scheduled date cannot be in the past")
	}
	if len(req.Notes) > maxReasonLength {
		return nil, invalidInput("notes cannot exceed %d characters", maxReasonLength)
	}

	report, err := s.store.GetReport(req.ReportID)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, notFound("report")
	}
	if report.Status == model.ReportCompleted {
		return nil, invalidState("cannot schedule pickup for completed report")
	}

	collector, err := s.users.FindActiveCollector(req.CollectorID)
	if err != nil {
		return nil, err
	}
	if collector == nil {
		return nil, fmt.Errorf("collector not found or inactive: %w", ErrCollectorUnavailable)
	}

	task := &model.PickupTask{
		ID:                uuid.New(),
		ReportID:          report.ID,
		CollectorID:       collector.ID,
		Status:            model.TaskScheduled,
		ScheduledDate:     req.ScheduledDate,
		EstimatedDuration: req.EstimatedDuration,
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	updatedReport := *report
	updatedReport.Status = model.ReportAssigned
	updatedReport.AssignedCollectorID = &collector.ID
	updatedReport.ScheduledPickupDate = &req.ScheduledDate

	err = s.inTx(func(tx repository.Tx) error {
		active, err := tx.HasActiveTaskForReport(report.ID)
		if err != nil {
			return err
		}
		if active {
			return invalidState("report already has an active pickup task")
		}
		if err := tx.CreateTask(task); err != nil {
			return err
		}
		if err := tx.AssignReport(report.ID, collector.ID, req.ScheduledDate); err != nil {
			return err
		}
		return tx.AppendEvent(messaging.RoutingKeyAssignTask, messaging.AssignTaskEvent{
			PickupTask: *task,
			Report:     updatedReport,
			Collector:  *collector,
		})
	})
	if err != nil {
		return nil, err
	}

	s.queueNotifications([]model.Notification{
		s.buildNotification(collector.ID, model.NotificationPickupScheduled, "New Pickup Task",
			fmt.Sprintf("You have been assigned a new pickup task scheduled for %s", req.ScheduledDate.Format("Jan 2, 2006")),
			task.ID, report.ID, model.PriorityHigh),
		s.buildNotification(report.UserID, model.NotificationPickupScheduled, "Pickup Scheduled",
			fmt.Sprintf("Your waste report has been scheduled for pickup on %s", req.ScheduledDate.Format("Jan 2, 2006")),
			task.ID, report.ID, model.PriorityMedium),
	})

	return task, nil
}

// Start moves a scheduled task into progress. Only the assigned collector
// may start it.
func (s *LifecycleService) Start(actor Actor, taskID uuid.UUID) (*model.PickupTask, error) {
	task, err := s.getOwnedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskScheduled {
		return nil, invalidState("task is not in scheduled status")
	}

	startedAt := s.now()
	task.Status = model.TaskInProgress
	task.ActualStartTime = &startedAt
	task.UpdatedAt = startedAt

	err = s.inTx(func(tx repository.Tx) error {
		ok, err := tx.StartTask(task.ID, startedAt)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("task is not in scheduled status")
		}
		if err := tx.SetReportStatus(task.ReportID, model.ReportInProgress); err != nil {
			return err
		}
		return tx.AppendEvent(messaging.RoutingKeyTaskUpdate, messaging.TaskUpdateEvent{
			PickupTask: *task,
			Status:     model.TaskInProgress,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyReportOwner(task, model.NotificationPickupReminder, "Pickup Started",
		"Your waste pickup has started", model.PriorityMedium)

	return task, nil
}

// Complete finishes an in-progress task.
func (s *LifecycleService) Complete(actor Actor, taskID uuid.UUID, completionNotes string) (*model.PickupTask, error) {
	task, err := s.getOwnedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status != model.TaskInProgress {
		return nil, invalidState("task is not in progress")
	}

	endedAt := s.now()
	task.Status = model.TaskCompleted
	task.ActualEndTime = &endedAt
	task.CompletionNotes = completionNotes
	task.UpdatedAt = endedAt

	err = s.inTx(func(tx repository.Tx) error {
		ok, err := tx.CompleteTask(task.ID, endedAt, completionNotes)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("task is not in progress")
		}
		if err := tx.CompleteReport(task.ReportID); err != nil {
			return err
		}
		return tx.AppendEvent(messaging.RoutingKeyTaskUpdate, messaging.TaskUpdateEvent{
			PickupTask: *task,
			Status:     model.TaskCompleted,
		})
	})
	if err != nil {
		return nil, err
	}

	s.queueCompletionNotifications(task)

	return task, nil
}

// Cancel aborts a scheduled or in-progress task and releases the report
// back into the unassigned pool.
func (s *LifecycleService) Cancel(actor Actor, taskID uuid.UUID, reason string) (*model.PickupTask, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleCollector {
		return nil, fmt.Errorf("only admins and collectors can cancel tasks: %w", ErrForbidden)
	}
	if reason == "" {
		return nil, invalidInput("cancellation reason is required")
	}
	if len(reason) > maxReasonLength {
		return nil, invalidInput("cancellation reason cannot exceed %d characters", maxReasonLength)
	}

	task, err := s.getOwnedTask(actor, taskID)
	if err != nil {
		return nil, err
	}
	if task.Status == model.TaskCompleted {
		return nil, invalidState("cannot cancel completed task")
	}
	if task.Status == model.TaskCancelled {
		return nil, invalidState("task is already cancelled")
	}

	from := task.Status
	task.Status = model.TaskCancelled
	task.CancellationReason = reason
	task.UpdatedAt = s.now()

	err = s.inTx(func(tx repository.Tx) error {
		ok, err := tx.CancelTask(task.ID, from, reason)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("task status changed, cannot cancel")
		}
		if err := tx.ReleaseReport(task.ReportID); err != nil {
			return err
		}
		return tx.AppendEvent(messaging.RoutingKeyTaskUpdate, messaging.TaskUpdateEvent{
			PickupTask: *task,
			Status:     model.TaskCancelled,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyReportOwner(task, model.NotificationSystemAlert, "Pickup Cancelled",
		fmt.Sprintf("Your pickup has been cancelled: %s", reason), model.PriorityMedium)

	return task, nil
}

// Reschedule moves a scheduled task to a new date. Tasks that already
// started cannot be moved.
func (s *LifecycleService) Reschedule(actor Actor, taskID uuid.UUID, newDate time.Time, reason string) (*model.PickupTask, error) {
	if actor.Role != model.RoleAdmin {
		return nil, fmt.Errorf("only admins can reschedule pickups: %w", ErrForbidden)
	}
	now := s.now()
	if newDate.Before(now.Add(-pastDateGrace)) {
		return nil, invalidInput("scheduled date cannot be in the past")
	}
	if len(reason) > maxReasonLength {
		return nil, invalidInput("reason cannot exceed %d characters", maxReasonLength)
	}

	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFound("pickup task")
	}
	if task.Status != model.TaskScheduled {
		return nil, invalidState("task is not in scheduled status")
	}

	notes := task.Notes
	audit := fmt.Sprintf("rescheduled from %s to %s", task.ScheduledDate.Format(time.RFC3339), newDate.Format(time.RFC3339))
	if reason != "" {
		audit += ": " + reason
	}
	if notes != "" {
		notes += "\n"
	}
	notes += audit

	task.ScheduledDate = newDate
	task.Notes = notes
	task.UpdatedAt = now

	err = s.inTx(func(tx repository.Tx) error {
		ok, err := tx.RescheduleTask(task.ID, newDate, notes)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("task is not in scheduled status")
		}
		if err := tx.SetReportScheduledDate(task.ReportID, newDate); err != nil {
			return err
		}
		return tx.AppendEvent(messaging.RoutingKeyTaskUpdate, messaging.TaskUpdateEvent{
			PickupTask: *task,
			Status:     model.TaskScheduled,
		})
	})
	if err != nil {
		return nil, err
	}

	s.notifyReportOwner(task, model.NotificationPickupReminder, "Pickup Rescheduled",
		fmt.Sprintf("Your pickup has been rescheduled to %s", newDate.Format("Jan 2, 2006")), model.PriorityMedium)

	return task, nil
}

// GetTask returns a task, enforcing visibility: collectors see their own
// tasks, residents see tasks for their own reports, admins see everything.
func (s *LifecycleService) GetTask(actor Actor, taskID uuid.UUID) (*model.PickupTask, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFound("pickup task")
	}

	switch actor.Role {
	case model.RoleCollector:
		if task.CollectorID != actor.ID {
			return nil, ErrForbidden
		}
	case model.RoleResident:
		report, err := s.store.GetReport(task.ReportID)
		if err != nil {
			return nil, err
		}
		if report == nil || report.UserID != actor.ID {
			return nil, ErrForbidden
		}
	}

	return task, nil
}

// ListTasks returns a page of tasks scoped to what the actor may see.
func (s *LifecycleService) ListTasks(actor Actor, filter model.TaskFilter, page, limit int) (*model.TaskListResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if filter.Status != "" && !model.IsValidTaskStatus(filter.Status) {
		return nil, invalidInput("invalid status %q", filter.Status)
	}

	switch actor.Role {
	case model.RoleCollector:
		id := actor.ID
		filter.CollectorID = &id
	case model.RoleResident:
		reportIDs, err := s.store.ReportIDsByOwner(actor.ID)
		if err != nil {
			return nil, err
		}
		if len(reportIDs) == 0 {
			reportIDs = []uuid.UUID{}
		}
		filter.ReportIDs = reportIDs
	}

	tasks, total, err := s.store.ListTasks(filter, page, limit)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.PickupTask{}
	}

	totalPages := (total + limit - 1) / limit
	return &model.TaskListResponse{
		PickupTasks: tasks,
		Pagination: model.Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// CollectorSchedule returns a collector's tasks within a date range.
// Collectors may only view their own schedule.
func (s *LifecycleService) CollectorSchedule(actor Actor, collectorID uuid.UUID, start, end time.Time) ([]model.PickupTask, error) {
	if actor.Role == model.RoleCollector && actor.ID != collectorID {
		return nil, ErrForbidden
	}
	if actor.Role == model.RoleResident {
		return nil, ErrForbidden
	}
	if end.Before(start) {
		return nil, invalidInput("end date is before start date")
	}

	tasks, err := s.store.TasksInRange(collectorID, start, end)
	if err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []model.PickupTask{}
	}
	return tasks, nil
}

// getOwnedTask fetches the task and enforces the collector ownership rule.
func (s *LifecycleService) getOwnedTask(actor Actor, taskID uuid.UUID) (*model.PickupTask, error) {
	task, err := s.store.GetTask(taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, notFound("pickup task")
	}
	if actor.Role == model.RoleCollector && task.CollectorID != actor.ID {
		return nil, ErrForbidden
	}
	if actor.Role == model.RoleResident {
		return nil, ErrForbidden
	}
	return task, nil
}

// inTx runs fn inside a store transaction, rolling back on error.
func (s *LifecycleService) inTx(fn func(tx repository.Tx) error) error {
	tx, err := s.store.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Printf("lifecycle: rollback: %v", rbErr)
		}
		return err
	}
	return tx.Commit()
}

func (s *LifecycleService) buildNotification(userID uuid.UUID, typ model.NotificationType, title, message string, taskID, reportID uuid.UUID, priority model.Priority) model.Notification {
	tid := taskID
	rid := reportID
	return model.Notification{
		ID:      uuid.New(),
		UserID:  userID,
		Type:    typ,
		Title:   title,
		Message: message,
		Data: model.NotificationData{
			PickupTaskID: &tid,
			ReportID:     &rid,
		},
		Priority:  priority,
		CreatedAt: s.now(),
	}
}

// queueNotifications writes notifications best-effort. A failure here never
// fails the lifecycle operation; the state change has already committed.
func (s *LifecycleService) queueNotifications(notifications []model.Notification) {
	if err := s.notifications.CreateBatch(notifications); err != nil {
		log.Printf("lifecycle: notification write failed: %v", err)
	}
}

func (s *LifecycleService) notifyReportOwner(task *model.PickupTask, typ model.NotificationType, title, message string, priority model.Priority) {
	report, err := s.store.GetReport(task.ReportID)
	if err != nil || report == nil {
		log.Printf("lifecycle: report %s lookup for notification failed: %v", task.ReportID, err)
		return
	}
	s.queueNotifications([]model.Notification{
		s.buildNotification(report.UserID, typ, title, message, task.ID, task.ReportID, priority),
	})
}

func (s *LifecycleService) queueCompletionNotifications(task *model.PickupTask) {
	report, err := s.store.GetReport(task.ReportID)
	if err != nil || report == nil {
		log.Printf("lifecycle: report %s lookup for notification failed: %v", task.ReportID, err)
		return
	}

	notifications := []model.Notification{
		s.buildNotification(report.UserID, model.NotificationReportCompleted, "Pickup Completed",
			"Your waste pickup has been completed successfully", task.ID, report.ID, model.PriorityMedium),
	}

	collectorName := "collector"
	if collector, err := s.users.FindByID(task.CollectorID); err == nil && collector != nil {
		collectorName = collector.FullName()
	}

	admins, err := s.users.FindActiveAdmins()
	if err != nil {
		log.Printf("lifecycle: admin lookup for notification failed: %v", err)
	}
	for _, admin := range admins {
		notifications = append(notifications,
			s.buildNotification(admin.ID, model.NotificationReportCompleted, "Task Completed",
				fmt.Sprintf("Pickup task completed by %s", collectorName), task.ID, report.ID, model.PriorityLow))
	}

	s.queueNotifications(notifications)
}
