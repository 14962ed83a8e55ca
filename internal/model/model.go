package model

import (
	"time"

	"github.com/google/uuid"
)

type WasteType string

const (
	WasteOrganic    WasteType = "organic"
	WasteRecyclable WasteType = "recyclable"
	WasteHazardous  WasteType = "hazardous"
	WasteElectronic WasteType = "electronic"
	WasteOther      WasteType = "other"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Role string

const (
	RoleResident  Role = "resident"
	RoleCollector Role = "collector"
	RoleAdmin     Role = "admin"
)

type Location struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type WasteReport struct {
	ID                   uuid.UUID    `json:"id"`
	Type                 WasteType    `json:"type"`
	Description          string       `json:"description"`
	Location             Location     `json:"location"`
	Priority             Priority     `json:"priority"`
	EstimatedVolume      float64      `json:"estimated_volume"`
	Status               ReportStatus `json:"status"`
	AssignedCollectorID  *uuid.UUID   `json:"assigned_collector_id,omitempty"`
	ScheduledPickupDate  *time.Time   `json:"scheduled_pickup_date,omitempty"`
	CompletedAt          *time.Time   `json:"completed_at,omitempty"`
	Notes                string       `json:"notes,omitempty"`
	AdminNotes           string       `json:"admin_notes,omitempty"`
	ImageURLs            []string     `json:"image_urls,omitempty"`
	UserID               uuid.UUID    `json:"user_id"`
	CreatedAt            time.Time    `json:"created_at"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

type PickupTask struct {
	ID                 uuid.UUID  `json:"id"`
	ReportID           uuid.UUID  `json:"report_id"`
	CollectorID        uuid.UUID  `json:"collector_id"`
	Status             TaskStatus `json:"status"`
	ScheduledDate      time.Time  `json:"scheduled_date"`
	EstimatedDuration  int        `json:"estimated_duration"`
	ActualStartTime    *time.Time `json:"actual_start_time,omitempty"`
	ActualEndTime      *time.Time `json:"actual_end_time,omitempty"`
	CompletionNotes    string     `json:"completion_notes,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	Notes              string     `json:"notes,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// User is the subset of the directory record this service reads. Passwords
// and sessions live in the auth service.
type User struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	IsActive  bool      `json:"is_active"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

type NotificationType string

const (
	NotificationPickupScheduled NotificationType = "pickup_scheduled"
	NotificationPickupReminder  NotificationType = "pickup_reminder"
	NotificationReportCompleted NotificationType = "report_completed"
	NotificationSystemAlert     NotificationType = "system_alert"
)

// NotificationData is the typed payload attached to every notification.
// Both ids are optional so one shape covers every notification type.
type NotificationData struct {
	PickupTaskID *uuid.UUID `json:"pickup_task_id,omitempty"`
	ReportID     *uuid.UUID `json:"report_id,omitempty"`
}

type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Data      NotificationData `json:"data"`
	Priority  Priority         `json:"priority"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// Request/Response DTOs
type SchedulePickupRequest struct {
	ReportID          uuid.UUID `json:"report_id" binding:"required"`
	CollectorID       uuid.UUID `json:"collector_id" binding:"required"`
	ScheduledDate     time.Time `json:"scheduled_date" binding:"required"`
	EstimatedDuration int       `json:"estimated_duration" binding:"required"`
	Notes             string    `json:"notes" binding:"max=200"`
}

type CompletePickupRequest struct {
	CompletionNotes string `json:"completion_notes" binding:"max=300"`
}

type CancelPickupRequest struct {
	Reason string `json:"reason" binding:"required,max=200"`
}

type ReschedulePickupRequest struct {
	ScheduledDate time.Time `json:"scheduled_date" binding:"required"`
	Reason        string    `json:"reason" binding:"max=200"`
}

// TaskFilter narrows a task listing. Zero values mean "no constraint".
type TaskFilter struct {
	Status      TaskStatus
	CollectorID *uuid.UUID
	ReportIDs   []uuid.UUID
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type TaskListResponse struct {
	PickupTasks []PickupTask `json:"pickup_tasks"`
	Pagination  Pagination   `json:"pagination"`
}

type NotificationListResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int            `json:"unread_count"`
}
