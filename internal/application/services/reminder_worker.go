package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
)

// ReminderWorker notifies patients about appointments starting soon
type ReminderWorker struct {
	entities      *EntityService
	notifications *NotificationService
	interval      time.Duration
	window        time.Duration
	now           func() time.Time
}

// NewReminderWorker creates a reminder worker
func NewReminderWorker(entitySvc *EntityService, notifications *NotificationService, interval, window time.Duration) *ReminderWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &ReminderWorker{
		entities:      entitySvc,
		notifications: notifications,
		interval:      interval,
		window:        window,
		now:           time.Now,
	}
}

// Run sends reminders every interval until ctx is done
func (w *ReminderWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", w.interval).Dur("window", w.window).Msg("reminder worker started")
	for {
		if sent, err := w.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("reminder run failed")
		} else if sent > 0 {
			log.Info().Int("sent", sent).Msg("appointment reminders sent")
		}

		select {
		case <-ctx.Done():
			log.Info().Msg("reminder worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce reminds every patient whose active appointment starts within the
// window and has not been reminded yet. It returns the number of reminders sent.
func (w *ReminderWorker) RunOnce(ctx context.Context) (int, error) {
	now := w.now().UTC()
	until := now.Add(w.window)
	sent := 0

	for _, status := range []entities.AppointmentStatus{entities.AppointmentStatusPending, entities.AppointmentStatusConfirmed} {
		records, err := w.entities.List(ctx, entities.EntityAppointment, repositories.EntityQuery{
			Match: map[string]any{"status": string(status), "reminder_sent": false},
			Sort:  "scheduled_at",
			Limit: repositories.MaxEntityLimit,
		})
		if err != nil {
			return sent, err
		}

		for _, rec := range records {
			if ctx.Err() != nil {
				return sent, ctx.Err()
			}
			appt := &entities.Appointment{}
			if err := rec.Decode(appt); err != nil {
				log.Warn().Err(err).Str("appointment_id", rec.ID).Msg("skipping undecodable appointment")
				continue
			}
			if appt.ScheduledAt.Before(now) || appt.ScheduledAt.After(until) {
				continue
			}

			if _, err := w.notifications.Notify(ctx, appt.PatientEmail, "Appointment reminder",
				fmt.Sprintf("Your appointment with %s is on %s.", appt.DoctorName, appt.ScheduledAt.Format("Mon 2 Jan 2006, 15:04 MST")),
				entities.NotificationReminder, "/appointments"); err != nil {
				log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("failed to send reminder")
				continue
			}
			if _, err := w.entities.UpdateAs(ctx, entities.EntityAppointment, appt.ID, map[string]any{"reminder_sent": true}); err != nil {
				log.Warn().Err(err).Str("appointment_id", appt.ID).Msg("failed to mark reminder sent")
				continue
			}
			sent++
		}
	}
	return sent, nil
}
