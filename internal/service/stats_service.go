package service

import (
	"log"
	"math"
	"sort"
	"time"

	"pickup-service/internal/model"
	"pickup-service/internal/repository"

	"github.com/google/uuid"
)

type DayStats struct {
	Total            int `json:"total"`
	Completed        int `json:"completed"`
	InProgress       int `json:"in_progress"`
	Scheduled        int `json:"scheduled"`
	Cancelled        int `json:"cancelled"`
	EstimatedMinutes int `json:"estimated_minutes"`
	HighPriority     int `json:"high_priority"`
}

type WeekStats struct {
	Total          int     `json:"total"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

type CollectorStats struct {
	Total          int       `json:"total"`
	Completed      int       `json:"completed"`
	InProgress     int       `json:"in_progress"`
	Scheduled      int       `json:"scheduled"`
	Cancelled      int       `json:"cancelled"`
	CompletionRate float64   `json:"completion_rate"`
	Today          DayStats  `json:"today"`
	ThisWeek       WeekStats `json:"this_week"`
}

type WeeklyBucket struct {
	Week           string  `json:"week"`
	TasksCompleted int     `json:"tasks_completed"`
	AverageTime    float64 `json:"average_time"`
}

type Efficiency struct {
	OnTimeRate float64 `json:"on_time_rate"`
}

type CollectorPerformance struct {
	Period                string         `json:"period"`
	TotalTasks            int            `json:"total_tasks"`
	CompletedTasks        int            `json:"completed_tasks"`
	CompletionRate        float64        `json:"completion_rate"`
	AverageCompletionTime float64        `json:"average_completion_time"`
	TasksByPriority       map[string]int `json:"tasks_by_priority"`
	TasksByStatus         map[string]int `json:"tasks_by_status"`
	WeeklyData            []WeeklyBucket `json:"weekly_data"`
	Efficiency            Efficiency     `json:"efficiency"`
}

// StatsService derives per-collector counters and performance metrics from
// the task store. Both entry points are fail-soft: a store error returns a
// zero-valued structure, never an error, so a transient query failure cannot
// break a dashboard.
type StatsService struct {
	store repository.Store
	now   func() time.Time
}

func NewStatsService(store repository.Store) *StatsService {
	return &StatsService{
		store: store,
		now:   time.Now,
	}
}

// CollectorStats aggregates a collector's task counters, with today and
// this-week buckets. Windows are UTC; weeks are ISO weeks (Monday start).
func (s *StatsService) CollectorStats(collectorID uuid.UUID) *CollectorStats {
	stats := &CollectorStats{}

	tasks, err := s.store.CollectorTasks(collectorID, time.Time{})
	if err != nil {
		log.Printf("stats: collector %s query failed: %v", collectorID, err)
		return stats
	}

	now := s.now()
	dayStart, dayEnd := dayWindow(now)
	weekStart, weekEnd := weekWindow(now)

	for _, task := range tasks {
		stats.Total++
		switch task.Status {
		case model.TaskCompleted:
			stats.Completed++
		case model.TaskInProgress:
			stats.InProgress++
		case model.TaskScheduled, model.TaskRescheduled:
			stats.Scheduled++
		case model.TaskCancelled:
			stats.Cancelled++
		}

		if within(task.ScheduledDate, dayStart, dayEnd) {
			stats.Today.Total++
			stats.Today.EstimatedMinutes += task.EstimatedDuration
			switch task.Status {
			case model.TaskCompleted:
				stats.Today.Completed++
			case model.TaskInProgress:
				stats.Today.InProgress++
			case model.TaskScheduled, model.TaskRescheduled:
				stats.Today.Scheduled++
			case model.TaskCancelled:
				stats.Today.Cancelled++
			}
			if task.ReportPriority == model.PriorityHigh || task.ReportPriority == model.PriorityUrgent {
				stats.Today.HighPriority++
			}
		}

		if within(task.ScheduledDate, weekStart, weekEnd) {
			stats.ThisWeek.Total++
			if task.Status == model.TaskCompleted {
				stats.ThisWeek.Completed++
			}
		}
	}

	stats.CompletionRate = percentage(stats.Completed, stats.Total)
	stats.ThisWeek.CompletionRate = percentage(stats.ThisWeek.Completed, stats.ThisWeek.Total)

	return stats
}

// CollectorPerformance aggregates a collector's tasks over a rolling window
// ending now. Period is one of week, month, year. A task is on time when its
// actual end is no later than scheduledDate + estimatedDuration. Urgent
// priority folds into the high bucket.
func (s *StatsService) CollectorPerformance(collectorID uuid.UUID, period string) *CollectorPerformance {
	perf := &CollectorPerformance{
		Period:          period,
		TasksByPriority: map[string]int{"high": 0, "medium": 0, "low": 0},
		TasksByStatus:   map[string]int{},
		WeeklyData:      []WeeklyBucket{},
	}

	now := s.now()
	tasks, err := s.store.CollectorTasks(collectorID, periodStart(now, period))
	if err != nil {
		log.Printf("stats: collector %s performance query failed: %v", collectorID, err)
		return perf
	}

	var totalMinutes float64
	var timedCompletions int
	var onTime, totalCompletions int
	weekly := map[string]*WeeklyBucket{}
	weeklyMinutes := map[string]float64{}
	weeklyTimed := map[string]int{}

	for _, task := range tasks {
		perf.TotalTasks++
		perf.TasksByStatus[string(task.Status)]++

		switch task.ReportPriority {
		case model.PriorityHigh, model.PriorityUrgent:
			perf.TasksByPriority["high"]++
		case model.PriorityMedium:
			perf.TasksByPriority["medium"]++
		case model.PriorityLow:
			perf.TasksByPriority["low"]++
		}

		if task.Status != model.TaskCompleted {
			continue
		}
		perf.CompletedTasks++
		totalCompletions++

		if task.ActualEndTime == nil {
			continue
		}

		deadline := task.ScheduledDate.Add(time.Duration(task.EstimatedDuration) * time.Minute)
		if !task.ActualEndTime.After(deadline) {
			onTime++
		}

		label := isoWeekLabel(*task.ActualEndTime)
		bucket, ok := weekly[label]
		if !ok {
			bucket = &WeeklyBucket{Week: label}
			weekly[label] = bucket
		}
		bucket.TasksCompleted++

		if task.ActualStartTime != nil {
			minutes := task.ActualEndTime.Sub(*task.ActualStartTime).Minutes()
			totalMinutes += minutes
			timedCompletions++
			weeklyMinutes[label] += minutes
			weeklyTimed[label]++
		}
	}

	perf.CompletionRate = percentage(perf.CompletedTasks, perf.TotalTasks)
	if timedCompletions > 0 {
		perf.AverageCompletionTime = round2(totalMinutes / float64(timedCompletions))
	}
	if totalCompletions > 0 {
		perf.Efficiency.OnTimeRate = round2(float64(onTime) / float64(totalCompletions) * 100)
	}

	labels := make([]string, 0, len(weekly))
	for label := range weekly {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		bucket := weekly[label]
		if weeklyTimed[label] > 0 {
			bucket.AverageTime = round2(weeklyMinutes[label] / float64(weeklyTimed[label]))
		}
		perf.WeeklyData = append(perf.WeeklyData, *bucket)
	}

	return perf
}

// percentage returns completed/total as a percentage rounded to 2 decimals,
// 0 when total is 0.
func percentage(completed, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(completed) / float64(total) * 100)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
