package model

import "testing"

func TestCanTransition(t *testing.T) {
	all := []TaskStatus{TaskScheduled, TaskInProgress, TaskCompleted, TaskCancelled, TaskRescheduled}

	allowed := map[TaskStatus]map[TaskStatus]bool{
		TaskScheduled: {
			TaskScheduled:  true, // reschedule keeps the task scheduled
			TaskInProgress: true,
			TaskCancelled:  true,
		},
		TaskInProgress: {
			TaskCompleted: true,
			TaskCancelled: true,
		},
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%q, %q) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestIsTerminalTaskStatus(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
	}{
		{TaskScheduled, false},
		{TaskInProgress, false},
		{TaskCompleted, true},
		{TaskCancelled, true},
		{TaskRescheduled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsTerminalTaskStatus(tt.status); got != tt.terminal {
				t.Errorf("IsTerminalTaskStatus(%q) = %v, want %v", tt.status, got, tt.terminal)
			}
		})
	}
}

func TestIsActiveTaskStatus(t *testing.T) {
	tests := []struct {
		status TaskStatus
		active bool
	}{
		{TaskScheduled, true},
		{TaskInProgress, true},
		{TaskCompleted, false},
		{TaskCancelled, false},
		{TaskRescheduled, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := IsActiveTaskStatus(tt.status); got != tt.active {
				t.Errorf("IsActiveTaskStatus(%q) = %v, want %v", tt.status, got, tt.active)
			}
		})
	}
}

// Every cell of the task-to-report status mapping.
func TestReportStatusForTask(t *testing.T) {
	tests := []struct {
		task   TaskStatus
		report ReportStatus
	}{
		{TaskScheduled, ReportAssigned},
		{TaskRescheduled, ReportAssigned},
		{TaskInProgress, ReportInProgress},
		{TaskCompleted, ReportCompleted},
		{TaskCancelled, ReportPending},
	}
	for _, tt := range tests {
		t.Run(string(tt.task), func(t *testing.T) {
			if got := ReportStatusForTask(tt.task); got != tt.report {
				t.Errorf("ReportStatusForTask(%q) = %q, want %q", tt.task, got, tt.report)
			}
		})
	}
}

func TestIsValidTaskStatus(t *testing.T) {
	for _, s := range []TaskStatus{TaskScheduled, TaskInProgress, TaskCompleted, TaskCancelled, TaskRescheduled} {
		if !IsValidTaskStatus(s) {
			t.Errorf("IsValidTaskStatus(%q) = false, want true", s)
		}
	}
	if IsValidTaskStatus("pending") {
		t.Error(`IsValidTaskStatus("pending") = true, want false (pending is a report status)`)
	}
	if IsValidTaskStatus("") {
		t.Error(`IsValidTaskStatus("") = true, want false`)
	}
}
