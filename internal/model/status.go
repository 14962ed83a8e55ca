package model

type ReportStatus string

const (
	ReportPending    ReportStatus = "pending"
	ReportAssigned   ReportStatus = "assigned"
	ReportInProgress ReportStatus = "in_progress"
	ReportCompleted  ReportStatus = "completed"
	ReportCancelled  ReportStatus = "cancelled"
)

type TaskStatus string

const (
	TaskScheduled   TaskStatus = "scheduled"
	TaskInProgress  TaskStatus = "in_progress"
	TaskCompleted   TaskStatus = "completed"
	TaskCancelled   TaskStatus = "cancelled"
	TaskRescheduled TaskStatus = "rescheduled"
)

// taskTransitions is the full transition set for a pickup task. A reschedule
// keeps the task in scheduled status (the date moves, not the state), so
// scheduled->scheduled is a legal edge.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskScheduled:  {TaskScheduled, TaskInProgress, TaskCancelled},
	TaskInProgress: {TaskCompleted, TaskCancelled},
}

// CanTransition reports whether a task may move from one status to another.
// Completed and cancelled are terminal.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminalTaskStatus(s TaskStatus) bool {
	return s == TaskCompleted || s == TaskCancelled
}

func IsActiveTaskStatus(s TaskStatus) bool {
	return s == TaskScheduled || s == TaskInProgress
}

func IsValidTaskStatus(s TaskStatus) bool {
	switch s {
	case TaskScheduled, TaskInProgress, TaskCompleted, TaskCancelled, TaskRescheduled:
		return true
	}
	return false
}

// ReportStatusForTask maps a task status to the report status the engine
// keeps in lockstep with it. The two enums use different vocabularies
// (reports have no "rescheduled", tasks have no "pending"): a scheduled task
// means the report is assigned, and a cancelled task releases the report
// back into the unassigned pool.
func ReportStatusForTask(s TaskStatus) ReportStatus {
	switch s {
	case TaskScheduled, TaskRescheduled:
		return ReportAssigned
	case TaskInProgress:
		return ReportInProgress
	case TaskCompleted:
		return ReportCompleted
	case TaskCancelled:
		return ReportPending
	}
	return ReportPending
}
