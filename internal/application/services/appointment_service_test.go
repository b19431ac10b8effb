package services_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

type appointmentFixture struct {
	svc      *services.AppointmentService
	repo     *memoryEntityRepository
	bus      *recordingEventBus
	doctor   *entities.Record
	patient  *entities.Principal
	doctorPr *entities.Principal
}

func newAppointmentFixture(t *testing.T) *appointmentFixture {
	t.Helper()
	repo := newMemoryEntityRepository()
	bus := newRecordingEventBus()
	entitySvc := services.NewEntityService(repo, nil, bus, nil)
	notifications := services.NewNotificationService(entitySvc, bus)

	doctor := repo.seed(t, entities.EntityDoctor, "doc@example.com", &entities.Doctor{
		FullName:           "Dr. Ada Obi",
		Specialization:     "Cardiology",
		UserEmail:          "doc@example.com",
		ConsultationFee:    150,
		Available:          true,
		VideoConsultation:  true,
		VerificationStatus: entities.VerificationVerified,
	})

	return &appointmentFixture{
		svc:      services.NewAppointmentService(entitySvc, notifications, "https://meet.test/room/"),
		repo:     repo,
		bus:      bus,
		doctor:   doctor,
		patient:  principal("pat@example.com", entities.RoleUser),
		doctorPr: principal("doc@example.com", entities.RoleDoctor),
	}
}

func (f *appointmentFixture) book(t *testing.T, at time.Time) *entities.Appointment {
	t.Helper()
	appt, err := f.svc.Book(context.Background(), f.patient, services.BookAppointmentRequest{
		DoctorID:    f.doctor.ID,
		ScheduledAt: at,
		Reason:      "checkup",
	})
	require.NoError(t, err)
	return appt
}

func TestAppointmentService_Book(t *testing.T) {
	ctx := context.Background()
	slot := time.Now().Add(48 * time.Hour).Truncate(time.Hour)

	t.Run("successfully books appointment", func(t *testing.T) {
		f := newAppointmentFixture(t)

		appt := f.book(t, slot)

		assert.NotEmpty(t, appt.ID)
		assert.Equal(t, entities.AppointmentStatusPending, appt.Status)
		assert.Equal(t, 150.0, appt.Fee)
		assert.Equal(t, "Dr. Ada Obi", appt.DoctorName)
		assert.Equal(t, "pat@example.com", appt.PatientEmail)
		assert.Equal(t, entities.ConsultationInPerson, appt.ConsultationType)
		assert.True(t, slot.Equal(appt.ScheduledAt))

		notifications := f.repo.all(entities.EntityNotification)
		assert.Len(t, notifications, 2)
		assert.Equal(t, 1, f.bus.count(providers.GetNotificationChannel("pat@example.com")))
	})

	t.Run("video consultation gets a room", func(t *testing.T) {
		f := newAppointmentFixture(t)

		appt, err := f.svc.Book(ctx, f.patient, services.BookAppointmentRequest{
			DoctorID:         f.doctor.ID,
			ScheduledAt:      slot,
			ConsultationType: entities.ConsultationVideo,
		})

		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(appt.VideoRoomURL, "https://meet.test/room/"))
		rooms := f.repo.all(entities.EntityVideoConsultation)
		require.Len(t, rooms, 1)
		assert.Equal(t, appt.ID, rooms[0].String("appointment_id"))
	})

	t.Run("fails with past date", func(t *testing.T) {
		f := newAppointmentFixture(t)

		_, err := f.svc.Book(ctx, f.patient, services.BookAppointmentRequest{
			DoctorID:    f.doctor.ID,
			ScheduledAt: time.Now().Add(-time.Hour),
		})
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
	})

	t.Run("rejects double booking", func(t *testing.T) {
		f := newAppointmentFixture(t)
		f.book(t, slot)

		_, err := f.svc.Book(ctx, principal("other@example.com", entities.RoleUser), services.BookAppointmentRequest{
			DoctorID:    f.doctor.ID,
			ScheduledAt: slot,
		})
		assert.Equal(t, apperrors.ErrorTypeConflict, apperrors.TypeOf(err))
	})

	t.Run("cancelled slot can be rebooked", func(t *testing.T) {
		f := newAppointmentFixture(t)
		first := f.book(t, slot)
		_, err := f.svc.Cancel(ctx, f.patient, first.ID, "travel")
		require.NoError(t, err)

		f.book(t, slot)
	})

	t.Run("doctor must be verified and available", func(t *testing.T) {
		f := newAppointmentFixture(t)
		pending := f.repo.seed(t, entities.EntityDoctor, "new@example.com", &entities.Doctor{
			FullName:           "Dr. New",
			Specialization:     "Dermatology",
			Available:          true,
			VerificationStatus: entities.VerificationPending,
		})

		_, err := f.svc.Book(ctx, f.patient, services.BookAppointmentRequest{DoctorID: pending.ID, ScheduledAt: slot})
		assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

		_, err = f.svc.Book(ctx, f.patient, services.BookAppointmentRequest{DoctorID: "missing", ScheduledAt: slot})
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestAppointmentService_Lifecycle(t *testing.T) {
	ctx := context.Background()
	f := newAppointmentFixture(t)
	appt := f.book(t, time.Now().Add(72*time.Hour))

	_, err := f.svc.Confirm(ctx, f.patient, appt.ID)
	assert.Equal(t, apperrors.ErrorTypeForbidden, apperrors.TypeOf(err))

	_, err = f.svc.Complete(ctx, f.doctorPr, appt.ID)
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))

	confirmed, err := f.svc.Confirm(ctx, f.doctorPr, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusConfirmed, confirmed.Status)

	completed, err := f.svc.Complete(ctx, f.doctorPr, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, f.patient, appt.ID, "too late")
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func TestAppointmentService_Cancel(t *testing.T) {
	ctx := context.Background()
	f := newAppointmentFixture(t)
	appt := f.book(t, time.Now().Add(72*time.Hour))

	_, err := f.svc.Cancel(ctx, principal("stranger@example.com", entities.RoleUser), appt.ID, "")
	assert.True(t, apperrors.IsNotFound(err))

	cancelled, err := f.svc.Cancel(ctx, f.doctorPr, appt.ID, "doctor unavailable")
	require.NoError(t, err)
	assert.Equal(t, entities.AppointmentStatusCancelled, cancelled.Status)
	assert.Equal(t, "doctor unavailable", cancelled.CancelReason)

	_, err = f.svc.Cancel(ctx, f.patient, appt.ID, "")
	assert.Equal(t, apperrors.ErrorTypeValidation, apperrors.TypeOf(err))
}

func cancelNotices(repo *memoryEntityRepository) map[string]int {
	notices := make(map[string]int)
	for _, rec := range repo.all(entities.EntityNotification) {
		if rec.String("title") == "Appointment cancelled" {
			notices[rec.String("user_email")]++
		}
	}
	return notices
}

func TestAppointmentService_CancelNotifiesOtherParties(t *testing.T) {
	ctx := context.Background()

	t.Run("patient cancels", func(t *testing.T) {
		f := newAppointmentFixture(t)
		appt := f.book(t, time.Now().Add(72*time.Hour))

		_, err := f.svc.Cancel(ctx, f.patient, appt.ID, "")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"doc@example.com": 1}, cancelNotices(f.repo))
	})

	t.Run("doctor cancels", func(t *testing.T) {
		f := newAppointmentFixture(t)
		appt := f.book(t, time.Now().Add(72*time.Hour))

		_, err := f.svc.Cancel(ctx, f.doctorPr, appt.ID, "")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"pat@example.com": 1}, cancelNotices(f.repo))
	})

	t.Run("admin cancels", func(t *testing.T) {
		f := newAppointmentFixture(t)
		appt := f.book(t, time.Now().Add(72*time.Hour))
		doctorPushes := f.bus.count(providers.GetNotificationChannel("doc@example.com"))

		_, err := f.svc.Cancel(ctx, principal("admin@example.com", entities.RoleAdmin), appt.ID, "clinic closed")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"pat@example.com": 1, "doc@example.com": 1}, cancelNotices(f.repo))
		assert.Equal(t, doctorPushes+1, f.bus.count(providers.GetNotificationChannel("doc@example.com")))
	})
}

func TestAppointmentService_ListMine(t *testing.T) {
	ctx := context.Background()
	f := newAppointmentFixture(t)
	later := f.book(t, time.Now().Add(96*time.Hour))
	sooner := f.book(t, time.Now().Add(48*time.Hour))

	// the doctor renamed themselves after the bookings
	_, err := f.repo.Update(ctx, entities.EntityDoctor, f.doctor.ID, map[string]any{"full_name": "Dr. Ada Obi-Lee"})
	require.NoError(t, err)

	mine, err := f.svc.ListMine(ctx, f.patient)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, sooner.ID, mine[0].ID)
	assert.Equal(t, later.ID, mine[1].ID)
	assert.Equal(t, "Dr. Ada Obi-Lee", mine[0].DoctorName)
	assert.Equal(t, "Dr. Ada Obi-Lee", mine[1].DoctorName)

	forDoctor, err := f.svc.ListMine(ctx, f.doctorPr)
	require.NoError(t, err)
	assert.Len(t, forDoctor, 2)

	none, err := f.svc.ListMine(ctx, principal("other@example.com", entities.RoleUser))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestReminderWorker_RunOnceBookedAppointments(t *testing.T) {
	ctx := context.Background()
	f := newAppointmentFixture(t)
	entitySvc := services.NewEntityService(f.repo, nil, f.bus, nil)
	worker := services.NewReminderWorker(entitySvc, services.NewNotificationService(entitySvc, f.bus), time.Minute, 24*time.Hour)

	soon := f.book(t, time.Now().Add(2*time.Hour))
	f.book(t, time.Now().Add(72*time.Hour))
	cancelled := f.book(t, time.Now().Add(3*time.Hour))
	_, err := f.svc.Cancel(ctx, f.patient, cancelled.ID, "")
	require.NoError(t, err)

	sent, err := worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	rec, err := f.repo.Get(ctx, entities.EntityAppointment, soon.ID)
	require.NoError(t, err)
	assert.True(t, rec.Bool("reminder_sent"))

	reminders, err := f.repo.Filter(ctx, entities.EntityNotification, repositories.EntityQuery{
		Match: map[string]any{"type": string(entities.NotificationReminder)},
	})
	require.NoError(t, err)
	assert.Len(t, reminders, 1)

	sent, err = worker.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)
}
