package matching

import (
	"sort"
	"time"

	"github.com/mansoorceksport/coachmatch/internal/domain"
)

// Window is a half-open time period [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// Hours returns the window length in hours
func (w Window) Hours() float64 {
	if !w.End.After(w.Start) {
		return 0
	}
	return w.End.Sub(w.Start).Hours()
}

// WeekWindow returns the period of the given length starting at Monday 00:00 of the week containing at,
// in at's location
func WeekWindow(at time.Time, days int) Window {
	offset := (int(at.Weekday()) + 6) % 7 // Monday = 0
	y, m, d := at.Date()
	start := time.Date(y, m, d-offset, 0, 0, 0, 0, at.Location())
	return Window{Start: start, End: start.AddDate(0, 0, days)}
}

// HistoryWindow returns the lookback period ending at at
func HistoryWindow(at time.Time, days int) Window {
	return Window{Start: at.AddDate(0, 0, -days), End: at}
}

// CalculateUtilization derives the load of a trainer over period and its reliability over history.
// Assignments of other trainers are ignored, so the full branch history may be passed.
func CalculateUtilization(
	trainer *domain.TrainerProfile,
	assignments []*domain.TrainerAssignment,
	period Window,
	history Window,
	cfg UtilizationConfig,
) domain.UtilizationMetric {
	metric := domain.UtilizationMetric{
		TrainerID:        trainer.ID,
		PeriodStart:      period.Start,
		PeriodEnd:        period.End,
		AvailableHours:   AvailableHours(trainer, period),
		PunctualityScore: cfg.NeutralPunctuality,
		AverageRating:    trainer.Rating,
	}

	finished := 0
	for _, a := range assignments {
		if a == nil || a.TrainerID != trainer.ID || a.DurationMinutes <= 0 {
			continue
		}

		if a.CountsAsBooked() {
			if clipped := clip(interval{a.ScheduledAt, a.End()}, period); clipped.valid() {
				metric.BookedHours += clipped.end.Sub(clipped.start).Hours()
			}
		}

		if a.ScheduledAt.Before(history.Start) || !a.ScheduledAt.Before(history.End) {
			continue
		}
		metric.TotalSessions++
		switch a.Status {
		case domain.AssignmentStatusCompleted:
			metric.CompletedSessions++
			finished++
		case domain.AssignmentStatusCancelled:
			metric.CancelledSessions++
			finished++
		case domain.AssignmentStatusNoShow:
			metric.NoShowSessions++
			finished++
		}
	}

	// Zero working hours must not turn into NaN or Inf downstream
	if metric.AvailableHours <= 0 {
		metric.AvailableHours = 0
		metric.UtilizationRate = 0
		metric.Unavailable = true
	} else {
		metric.UtilizationRate = metric.BookedHours / metric.AvailableHours
	}

	if finished > 0 {
		missed := metric.CancelledSessions + metric.NoShowSessions
		metric.PunctualityScore = 1 - float64(missed)/float64(finished)
	}

	return metric
}

// AvailableHours intersects the trainer's weekly windows with w and removes time off
func AvailableHours(trainer *domain.TrainerProfile, w Window) float64 {
	working := workingIntervals(trainer, w)
	if len(working) == 0 {
		return 0
	}

	var off []interval
	for _, t := range trainer.TimeOff {
		if iv := (interval{t.Start, t.End}); iv.valid() {
			off = append(off, iv)
		}
	}
	off = merge(off)

	total := 0.0
	for _, iv := range subtract(working, off) {
		total += iv.end.Sub(iv.start).Hours()
	}
	return total
}

// workingIntervals expands the weekly windows into concrete, merged intervals inside w
func workingIntervals(trainer *domain.TrainerProfile, w Window) []interval {
	if len(trainer.Availability) == 0 || !w.End.After(w.Start) {
		return nil
	}

	loc := w.Start.Location()
	y, m, d := w.Start.Date()
	var out []interval
	for day := time.Date(y, m, d, 0, 0, 0, 0, loc); day.Before(w.End); day = day.AddDate(0, 0, 1) {
		for _, aw := range trainer.Availability {
			if aw.Weekday != day.Weekday() {
				continue
			}
			startMin, endMin, ok := aw.Minutes()
			if !ok {
				continue
			}
			iv := interval{
				start: time.Date(day.Year(), day.Month(), day.Day(), 0, startMin, 0, 0, loc),
				end:   time.Date(day.Year(), day.Month(), day.Day(), 0, endMin, 0, 0, loc),
			}
			if clipped := clip(iv, w); clipped.valid() {
				out = append(out, clipped)
			}
		}
	}
	return merge(out)
}

// coversSlot reports whether [start, end) lies inside contiguous working hours and clear of time off.
// Trainers without weekly windows are treated as flexible.
func coversSlot(trainer *domain.TrainerProfile, start, end time.Time) bool {
	for _, t := range trainer.TimeOff {
		if domain.Overlaps(start, end, t.Start, t.End) {
			return false
		}
	}
	if len(trainer.Availability) == 0 {
		return true
	}

	// Expand every day touched by the slot so adjacent windows merge across midnight
	y, m, d := start.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, start.Location())
	for _, iv := range workingIntervals(trainer, Window{Start: dayStart, End: end}) {
		if !start.Before(iv.start) && !end.After(iv.end) {
			return true
		}
	}
	return false
}

type interval struct {
	start time.Time
	end   time.Time
}

func (iv interval) valid() bool {
	return iv.end.After(iv.start)
}

func clip(iv interval, w Window) interval {
	if iv.start.Before(w.Start) {
		iv.start = w.Start
	}
	if iv.end.After(w.End) {
		iv.end = w.End
	}
	return iv
}

// merge sorts and coalesces overlapping or touching intervals
func merge(in []interval) []interval {
	if len(in) < 2 {
		return in
	}
	sorted := make([]interval, len(in))
	copy(sorted, in)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].start.Before(sorted[j].start)
	})

	out := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &out[len(out)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		out = append(out, iv)
	}
	return out
}

// subtract removes the merged intervals in cut from the merged intervals in base
func subtract(base, cut []interval) []interval {
	if len(cut) == 0 {
		return base
	}
	var out []interval
	for _, b := range base {
		remaining := []interval{b}
		for _, c := range cut {
			var next []interval
			for _, r := range remaining {
				if !domain.Overlaps(r.start, r.end, c.start, c.end) {
					next = append(next, r)
					continue
				}
				if left := (interval{r.start, c.start}); left.valid() {
					next = append(next, left)
				}
				if right := (interval{c.end, r.end}); right.valid() {
					next = append(next, right)
				}
			}
			remaining = next
		}
		out = append(out, remaining...)
	}
	return out
}
