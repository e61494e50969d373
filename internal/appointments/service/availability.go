package service

import (
	"context"
	"fmt"
	"time"

	apperrors "breez/pkg/errors"
)

// checkWorkingHours accepts start times whose hour-of-day falls inside
// [WorkStartHour, WorkEndHour). The last bookable hour is WorkEndHour-1.
func (s *appointmentService) checkWorkingHours(start time.Time) error {
	hour := start.Hour()
	if hour < s.cfg.WorkStartHour || hour >= s.cfg.WorkEndHour {
		s.cfg.Log.Warn("Out-of-hours appointment rejected", "requested_hour", hour)
		return apperrors.OutOfHours(s.cfg.WorkStartHour, s.cfg.WorkEndHour)
	}
	return nil
}

// FreeSlots lists the whole-hour slots of the given day with no appointment
// starting in that hour. A booking at 09:30 occupies the 09:00 slot; whether
// it also blocks a 10:00 booking is the conflict window's concern, not this
// report's.
func (s *appointmentService) FreeSlots(ctx context.Context, day time.Time) ([]string, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	appts, err := s.repo.FindByDay(ctx, dayStart, dayEnd)
	if err != nil {
		s.cfg.Log.Error("Failed to load appointments for availability", "day", dayStart, "error", err)
		return nil, apperrors.Storage("Failed to retrieve appointments for the requested day", err)
	}

	occupied := make(map[int]bool, len(appts))
	for _, appt := range appts {
		occupied[appt.StartTime.Hour()] = true
	}

	slots := make([]string, 0, s.cfg.WorkEndHour-s.cfg.WorkStartHour)
	for hour := s.cfg.WorkStartHour; hour < s.cfg.WorkEndHour; hour++ {
		if !occupied[hour] {
			slots = append(slots, fmt.Sprintf("%02d:00", hour))
		}
	}

	return slots, nil
}
