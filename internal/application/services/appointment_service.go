package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/carepoint/internal/application/loaders"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// DefaultVideoRoomBaseURL is used for video rooms when none is configured
const DefaultVideoRoomBaseURL = "https://meet.carepoint.health/room"

// BookAppointmentRequest is the input to Book
type BookAppointmentRequest struct {
	DoctorID         string                    `json:"doctor_id"`
	ScheduledAt      time.Time                 `json:"scheduled_at"`
	ConsultationType entities.ConsultationType `json:"consultation_type"`
	Reason           string                    `json:"reason"`
	PatientName      string                    `json:"patient_name"`
	PatientPhone     string                    `json:"patient_phone"`
}

// AppointmentService handles appointment booking logic
type AppointmentService struct {
	entities      *EntityService
	notifications *NotificationService
	videoBaseURL  string
	now           func() time.Time
}

// NewAppointmentService creates a new appointment service
func NewAppointmentService(entitySvc *EntityService, notifications *NotificationService, videoBaseURL string) *AppointmentService {
	if videoBaseURL == "" {
		videoBaseURL = DefaultVideoRoomBaseURL
	}
	return &AppointmentService{
		entities:      entitySvc,
		notifications: notifications,
		videoBaseURL:  strings.TrimRight(videoBaseURL, "/"),
		now:           time.Now,
	}
}

// Book books an appointment with a verified, available doctor
func (s *AppointmentService) Book(ctx context.Context, p *entities.Principal, req BookAppointmentRequest) (*entities.Appointment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if req.DoctorID == "" {
		return nil, apperrors.NewValidationError("doctor_id is required")
	}
	if req.ScheduledAt.IsZero() || !req.ScheduledAt.After(s.now()) {
		return nil, apperrors.NewValidationError("scheduled_at must be in the future")
	}
	if req.ConsultationType == "" {
		req.ConsultationType = entities.ConsultationInPerson
	}
	if req.ConsultationType != entities.ConsultationInPerson && req.ConsultationType != entities.ConsultationVideo {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown consultation_type %q", req.ConsultationType))
	}

	doctorRec, err := s.entities.Load(ctx, entities.EntityDoctor, req.DoctorID)
	if err != nil {
		return nil, err
	}
	doctor := &entities.Doctor{}
	if err := doctorRec.Decode(doctor); err != nil {
		return nil, apperrors.NewInternalError("failed to decode doctor", err)
	}
	if !doctor.Bookable() {
		return nil, apperrors.NewValidationError("this doctor is not accepting appointments")
	}
	if req.ConsultationType == entities.ConsultationVideo && !doctor.VideoConsultation {
		return nil, apperrors.NewValidationError("this doctor does not offer video consultations")
	}

	scheduledAt := req.ScheduledAt.UTC().Truncate(time.Second)
	if err := s.ensureSlotFree(ctx, doctor.ID, scheduledAt); err != nil {
		return nil, err
	}

	appt := &entities.Appointment{
		DoctorID:         doctor.ID,
		DoctorName:       doctor.FullName,
		DoctorEmail:      strings.ToLower(doctor.UserEmail),
		PatientEmail:     strings.ToLower(p.Email),
		PatientName:      req.PatientName,
		PatientPhone:     req.PatientPhone,
		ScheduledAt:      scheduledAt,
		ConsultationType: req.ConsultationType,
		Reason:           req.Reason,
		Status:           entities.AppointmentStatusPending,
		Fee:              doctor.ConsultationFee,
	}
	if req.ConsultationType == entities.ConsultationVideo {
		appt.VideoRoomURL = fmt.Sprintf("%s/%s", s.videoBaseURL, uuid.NewString())
	}

	data, err := entities.ToData(appt)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode appointment", err)
	}
	rec, err := s.entities.CreateAs(ctx, p.Email, entities.EntityAppointment, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(appt); err != nil {
		return nil, apperrors.NewInternalError("failed to decode appointment", err)
	}

	if appt.ConsultationType == entities.ConsultationVideo {
		s.createVideoConsultation(ctx, appt)
	}

	when := appt.ScheduledAt.Format("Mon 2 Jan 2006, 15:04 MST")
	s.notifications.notifyQuietly(ctx, appt.PatientEmail, "Appointment requested",
		fmt.Sprintf("Your appointment with %s on %s is awaiting confirmation.", doctor.FullName, when),
		entities.NotificationAppointment, "/appointments")
	s.notifications.notifyQuietly(ctx, appt.DoctorEmail, "New appointment request",
		fmt.Sprintf("A patient booked %s.", when),
		entities.NotificationAppointment, "/doctor-dashboard")

	observability.LoggerFromContext(ctx).Info().
		Str("appointment_id", appt.ID).
		Str("doctor_id", appt.DoctorID).
		Msg("appointment booked")
	return appt, nil
}

func (s *AppointmentService) ensureSlotFree(ctx context.Context, doctorID string, scheduledAt time.Time) error {
	existing, err := s.entities.List(ctx, entities.EntityAppointment, repositories.EntityQuery{
		Match: map[string]any{"doctor_id": doctorID, "scheduled_at": scheduledAt},
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		return err
	}
	for _, rec := range existing {
		status := entities.AppointmentStatus(rec.String("status"))
		if status == entities.AppointmentStatusPending || status == entities.AppointmentStatusConfirmed {
			return apperrors.NewConflictError("this time slot is already booked")
		}
	}
	return nil
}

func (s *AppointmentService) createVideoConsultation(ctx context.Context, appt *entities.Appointment) {
	data, err := entities.ToData(&entities.VideoConsultation{
		AppointmentID: appt.ID,
		DoctorID:      appt.DoctorID,
		PatientEmail:  appt.PatientEmail,
		RoomURL:       appt.VideoRoomURL,
		ScheduledAt:   appt.ScheduledAt,
		Status:        "scheduled",
	})
	if err == nil {
		_, err = s.entities.CreateAs(ctx, SystemActor, entities.EntityVideoConsultation, data)
	}
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("appointment_id", appt.ID).
			Msg("failed to create video consultation")
	}
}

func (s *AppointmentService) load(ctx context.Context, id string) (*entities.Appointment, error) {
	rec, err := s.entities.Load(ctx, entities.EntityAppointment, id)
	if err != nil {
		return nil, err
	}
	appt := &entities.Appointment{}
	if err := rec.Decode(appt); err != nil {
		return nil, apperrors.NewInternalError("failed to decode appointment", err)
	}
	return appt, nil
}

func (s *AppointmentService) setStatus(ctx context.Context, appt *entities.Appointment, partial map[string]any) (*entities.Appointment, error) {
	rec, err := s.entities.UpdateAs(ctx, entities.EntityAppointment, appt.ID, partial)
	if err != nil {
		return nil, err
	}
	updated := &entities.Appointment{}
	if err := rec.Decode(updated); err != nil {
		return nil, apperrors.NewInternalError("failed to decode appointment", err)
	}
	return updated, nil
}

// Cancel cancels an appointment on behalf of its patient or doctor
func (s *AppointmentService) Cancel(ctx context.Context, p *entities.Principal, id, reason string) (*entities.Appointment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	isPatient := strings.EqualFold(appt.PatientEmail, p.Email)
	isDoctor := appt.DoctorEmail != "" && strings.EqualFold(appt.DoctorEmail, p.Email)
	if !isPatient && !isDoctor && !p.IsAdmin() {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("Appointment with id %s not found", id))
	}

	switch appt.Status {
	case entities.AppointmentStatusCompleted:
		return nil, apperrors.NewValidationError("completed appointments cannot be cancelled")
	case entities.AppointmentStatusCancelled:
		return nil, apperrors.NewValidationError("appointment is already cancelled")
	}

	updated, err := s.setStatus(ctx, appt, map[string]any{
		"status":        string(entities.AppointmentStatusCancelled),
		"cancel_reason": reason,
	})
	if err != nil {
		return nil, err
	}

	// everyone on the appointment except the caller hears about it
	var recipients []string
	if !isPatient {
		recipients = append(recipients, appt.PatientEmail)
	}
	if !isDoctor && appt.DoctorEmail != "" {
		recipients = append(recipients, appt.DoctorEmail)
	}
	message := fmt.Sprintf("The appointment on %s was cancelled.", appt.ScheduledAt.Format("Mon 2 Jan 2006, 15:04 MST"))
	for _, email := range recipients {
		s.notifications.notifyQuietly(ctx, email, "Appointment cancelled", message,
			entities.NotificationAppointment, "/appointments")
	}
	return updated, nil
}

// Confirm is called by the doctor to accept a pending appointment
func (s *AppointmentService) Confirm(ctx context.Context, p *entities.Principal, id string) (*entities.Appointment, error) {
	appt, err := s.forDoctor(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != entities.AppointmentStatusPending {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot confirm a %s appointment", appt.Status))
	}

	updated, err := s.setStatus(ctx, appt, map[string]any{"status": string(entities.AppointmentStatusConfirmed)})
	if err != nil {
		return nil, err
	}
	s.notifications.notifyQuietly(ctx, appt.PatientEmail, "Appointment confirmed",
		fmt.Sprintf("%s confirmed your appointment on %s.", appt.DoctorName, appt.ScheduledAt.Format("Mon 2 Jan 2006, 15:04 MST")),
		entities.NotificationAppointment, "/appointments")
	return updated, nil
}

// Complete is called by the doctor once a confirmed consultation took place
func (s *AppointmentService) Complete(ctx context.Context, p *entities.Principal, id string) (*entities.Appointment, error) {
	appt, err := s.forDoctor(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if appt.Status != entities.AppointmentStatusConfirmed {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot complete a %s appointment", appt.Status))
	}
	return s.setStatus(ctx, appt, map[string]any{"status": string(entities.AppointmentStatusCompleted)})
}

func (s *AppointmentService) forDoctor(ctx context.Context, p *entities.Principal, id string) (*entities.Appointment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	appt, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && (appt.DoctorEmail == "" || !strings.EqualFold(appt.DoctorEmail, p.Email)) {
		return nil, apperrors.NewForbiddenError("only the appointment's doctor can do this")
	}
	return appt, nil
}

// ListMine returns the caller's appointments, as patient or as doctor, soonest
// first, with current doctor names
func (s *AppointmentService) ListMine(ctx context.Context, p *entities.Principal) ([]*entities.Appointment, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}

	query := repositories.EntityQuery{Sort: "scheduled_at", Limit: 200}
	var (
		records []*entities.Record
		err     error
	)
	if p.Role == entities.RoleDoctor {
		query.Match = map[string]any{"doctor_email": strings.ToLower(p.Email)}
		records, err = s.entities.List(ctx, entities.EntityAppointment, query)
	} else {
		records, err = s.entities.Filter(ctx, p, entities.EntityAppointment, query)
	}
	if err != nil {
		return nil, err
	}

	appointments := make([]*entities.Appointment, 0, len(records))
	for _, rec := range records {
		appt := &entities.Appointment{}
		if err := rec.Decode(appt); err != nil {
			return nil, apperrors.NewInternalError("failed to decode appointment", err)
		}
		appointments = append(appointments, appt)
	}

	s.attachDoctors(ctx, appointments)
	return appointments, nil
}

func (s *AppointmentService) attachDoctors(ctx context.Context, appointments []*entities.Appointment) {
	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.entities.repo)
	}

	thunks := make([]func() (*entities.Doctor, error), len(appointments))
	for i, appt := range appointments {
		thunks[i] = l.DoctorLoader.Load(ctx, appt.DoctorID)
	}
	for i, thunk := range thunks {
		doctor, err := thunk()
		if err != nil {
			if !apperrors.IsNotFound(err) {
				observability.LoggerFromContext(ctx).Warn().Err(err).Msg("failed to load doctor")
			}
			continue
		}
		appointments[i].DoctorName = doctor.FullName
	}
}
