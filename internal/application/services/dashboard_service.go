package services

import (
	"context"
	"strings"
	"time"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const dashboardUpcomingLimit = 5

// PatientDashboard summarises a patient's activity
type PatientDashboard struct {
	UpcomingAppointments []*entities.Appointment `json:"upcoming_appointments"`
	LabBookings          int                     `json:"lab_bookings"`
	ActiveOrders         int                     `json:"active_orders"`
	UnreadNotifications  int                     `json:"unread_notifications"`
	LatestInsight        *entities.HealthInsight `json:"latest_insight,omitempty"`
}

// DoctorDashboard summarises a doctor's practice
type DoctorDashboard struct {
	Doctor               *entities.Doctor        `json:"doctor"`
	PendingRequests      int                     `json:"pending_requests"`
	CompletedConsults    int                     `json:"completed_consultations"`
	UpcomingAppointments []*entities.Appointment `json:"upcoming_appointments"`
	Earnings             float64                 `json:"earnings"`
}

// LabDashboard summarises a lab partner's bookings
type LabDashboard struct {
	Partner          *entities.LabPartner              `json:"partner"`
	Tests            int                               `json:"tests"`
	BookingsByStatus map[entities.LabBookingStatus]int `json:"bookings_by_status"`
	Upcoming         []*entities.LabBooking            `json:"upcoming"`
}

// HospitalDashboard summarises a hospital's activity
type HospitalDashboard struct {
	Hospital              *entities.Hospital `json:"hospital"`
	Doctors               int                `json:"doctors"`
	PendingEmergencies    int                `json:"pending_emergencies"`
	DispatchedEmergencies int                `json:"dispatched_emergencies"`
}

// DashboardService aggregates per-role dashboards. Each section is fetched
// concurrently; the first failure cancels the rest.
type DashboardService struct {
	entities *EntityService
	now      func() time.Time
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(entitySvc *EntityService) *DashboardService {
	return &DashboardService{entities: entitySvc, now: time.Now}
}

func (s *DashboardService) upcomingAppointments(ctx context.Context, match map[string]any) ([]*entities.Appointment, error) {
	records, err := s.entities.List(ctx, entities.EntityAppointment, repositories.EntityQuery{
		Match: match,
		Sort:  "scheduled_at",
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]*entities.Appointment, 0, dashboardUpcomingLimit)
	for _, rec := range records {
		appt := &entities.Appointment{}
		if err := rec.Decode(appt); err != nil {
			return nil, apperrors.NewInternalError("failed to decode appointment", err)
		}
		if appt.ScheduledAt.Before(now) {
			continue
		}
		if appt.Status != entities.AppointmentStatusPending && appt.Status != entities.AppointmentStatusConfirmed {
			continue
		}
		out = append(out, appt)
		if len(out) == dashboardUpcomingLimit {
			break
		}
	}
	return out, nil
}

// Patient builds the caller's patient dashboard
func (s *DashboardService) Patient(ctx context.Context, p *entities.Principal) (*PatientDashboard, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	email := strings.ToLower(p.Email)
	d := &PatientDashboard{}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.UpcomingAppointments, err = s.upcomingAppointments(ctx, map[string]any{"patient_email": email})
		return err
	})
	g.Go(func() error {
		var err error
		d.LabBookings, err = s.entities.Count(ctx, entities.EntityLabBooking, map[string]any{"patient_email": email})
		return err
	})
	g.Go(func() error {
		for _, status := range []entities.OrderStatus{entities.OrderStatusPlaced, entities.OrderStatusProcessing, entities.OrderStatusShipped} {
			n, err := s.entities.Count(ctx, entities.EntityMedicineOrder, map[string]any{"patient_email": email, "status": string(status)})
			if err != nil {
				return err
			}
			d.ActiveOrders += n
		}
		return nil
	})
	g.Go(func() error {
		var err error
		d.UnreadNotifications, err = s.entities.Count(ctx, entities.EntityNotification, map[string]any{"user_email": email, "is_read": false})
		return err
	})
	g.Go(func() error {
		records, err := s.entities.List(ctx, entities.EntityHealthInsight, repositories.EntityQuery{
			Match: map[string]any{"user_email": email},
			Limit: 1,
		})
		if err != nil || len(records) == 0 {
			return err
		}
		insight := &entities.HealthInsight{}
		if err := records[0].Decode(insight); err != nil {
			return apperrors.NewInternalError("failed to decode health insight", err)
		}
		d.LatestInsight = insight
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// findListing returns the first record of entity owned by email
func (s *DashboardService) findListing(ctx context.Context, entity, email string, v any) error {
	records, err := s.entities.List(ctx, entity, repositories.EntityQuery{
		Match: map[string]any{"user_email": email},
		Limit: 1,
	})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return apperrors.NewNotFoundError("no " + entity + " listing for this account")
	}
	if err := records[0].Decode(v); err != nil {
		return apperrors.NewInternalError("failed to decode "+entity, err)
	}
	return nil
}

// Doctor builds the dashboard for the doctor listing owned by the caller
func (s *DashboardService) Doctor(ctx context.Context, p *entities.Principal) (*DoctorDashboard, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	email := strings.ToLower(p.Email)
	doctor := &entities.Doctor{}
	if err := s.findListing(ctx, entities.EntityDoctor, email, doctor); err != nil {
		return nil, err
	}
	d := &DoctorDashboard{Doctor: doctor}
	byDoctor := func(status entities.AppointmentStatus) map[string]any {
		return map[string]any{"doctor_id": doctor.ID, "status": string(status)}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.PendingRequests, err = s.entities.Count(ctx, entities.EntityAppointment, byDoctor(entities.AppointmentStatusPending))
		return err
	})
	g.Go(func() error {
		records, err := s.entities.List(ctx, entities.EntityAppointment, repositories.EntityQuery{
			Match: byDoctor(entities.AppointmentStatusCompleted),
			Limit: repositories.MaxEntityLimit,
		})
		if err != nil {
			return err
		}
		d.CompletedConsults = len(records)
		for _, rec := range records {
			d.Earnings += rec.Number("fee")
		}
		d.Earnings = round2(d.Earnings)
		return nil
	})
	g.Go(func() error {
		var err error
		d.UpcomingAppointments, err = s.upcomingAppointments(ctx, map[string]any{"doctor_id": doctor.ID})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// Lab builds the dashboard for the lab partner owned by the caller
func (s *DashboardService) Lab(ctx context.Context, p *entities.Principal) (*LabDashboard, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	partner := &entities.LabPartner{}
	if err := s.findListing(ctx, entities.EntityLabPartner, strings.ToLower(p.Email), partner); err != nil {
		return nil, err
	}
	statuses := []entities.LabBookingStatus{
		entities.LabBookingBooked,
		entities.LabBookingSampleCollected,
		entities.LabBookingReportReady,
		entities.LabBookingCancelled,
	}
	counts := make([]int, len(statuses))
	d := &LabDashboard{Partner: partner, BookingsByStatus: make(map[entities.LabBookingStatus]int, len(statuses))}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Tests, err = s.entities.Count(ctx, entities.EntityLabTest, map[string]any{"lab_partner_id": partner.ID})
		return err
	})
	for i, status := range statuses {
		g.Go(func() error {
			var err error
			counts[i], err = s.entities.Count(ctx, entities.EntityLabBooking, map[string]any{"lab_partner_id": partner.ID, "status": string(status)})
			return err
		})
	}
	g.Go(func() error {
		records, err := s.entities.List(ctx, entities.EntityLabBooking, repositories.EntityQuery{
			Match: map[string]any{"lab_partner_id": partner.ID, "status": string(entities.LabBookingBooked)},
			Sort:  "booking_date",
			Limit: dashboardUpcomingLimit,
		})
		if err != nil {
			return err
		}
		d.Upcoming = make([]*entities.LabBooking, 0, len(records))
		for _, rec := range records {
			b := &entities.LabBooking{}
			if err := rec.Decode(b); err != nil {
				return apperrors.NewInternalError("failed to decode lab booking", err)
			}
			d.Upcoming = append(d.Upcoming, b)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, status := range statuses {
		d.BookingsByStatus[status] = counts[i]
	}
	return d, nil
}

// Hospital builds the dashboard for the hospital owned by the caller
func (s *DashboardService) Hospital(ctx context.Context, p *entities.Principal) (*HospitalDashboard, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	hospital := &entities.Hospital{}
	if err := s.findListing(ctx, entities.EntityHospital, strings.ToLower(p.Email), hospital); err != nil {
		return nil, err
	}
	d := &HospitalDashboard{Hospital: hospital}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		d.Doctors, err = s.entities.Count(ctx, entities.EntityDoctor, map[string]any{"hospital_id": hospital.ID})
		return err
	})
	g.Go(func() error {
		var err error
		d.PendingEmergencies, err = s.entities.Count(ctx, entities.EntityEmergencyRequest, map[string]any{"status": string(entities.EmergencyPending)})
		return err
	})
	g.Go(func() error {
		var err error
		d.DispatchedEmergencies, err = s.entities.Count(ctx, entities.EntityEmergencyRequest, map[string]any{"status": string(entities.EmergencyDispatched)})
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
