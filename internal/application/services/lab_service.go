package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zatekoja/carepoint/internal/application/loaders"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// BookLabTestRequest is the input to LabService.Book
type BookLabTestRequest struct {
	LabTestID      string `json:"lab_test_id"`
	BookingDate    string `json:"booking_date"`
	TimeSlot       string `json:"time_slot"`
	HomeCollection bool   `json:"home_collection"`
	Address        string `json:"address"`
	PatientName    string `json:"patient_name"`
}

var labTransitions = map[entities.LabBookingStatus][]entities.LabBookingStatus{
	entities.LabBookingBooked:          {entities.LabBookingSampleCollected, entities.LabBookingCancelled},
	entities.LabBookingSampleCollected: {entities.LabBookingReportReady},
}

// LabService books lab tests and moves bookings through collection and reporting
type LabService struct {
	entities      *EntityService
	notifications *NotificationService
	now           func() time.Time
}

// NewLabService creates a new lab service
func NewLabService(entitySvc *EntityService, notifications *NotificationService) *LabService {
	return &LabService{entities: entitySvc, notifications: notifications, now: time.Now}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Book books a lab test offered by a verified partner
func (s *LabService) Book(ctx context.Context, p *entities.Principal, req BookLabTestRequest) (*entities.LabBooking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if req.LabTestID == "" {
		return nil, apperrors.NewValidationError("lab_test_id is required")
	}
	date, err := time.Parse(time.DateOnly, req.BookingDate)
	if err != nil {
		return nil, apperrors.NewValidationError("booking_date must be a date like 2024-05-01")
	}
	if date.Before(s.now().UTC().Truncate(24 * time.Hour)) {
		return nil, apperrors.NewValidationError("booking_date cannot be in the past")
	}

	testRec, err := s.entities.Load(ctx, entities.EntityLabTest, req.LabTestID)
	if err != nil {
		return nil, err
	}
	test := &entities.LabTest{}
	if err := testRec.Decode(test); err != nil {
		return nil, apperrors.NewInternalError("failed to decode lab test", err)
	}

	partnerRec, err := s.entities.Load(ctx, entities.EntityLabPartner, test.LabPartnerID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewValidationError("this test is not currently offered")
		}
		return nil, err
	}
	partner := &entities.LabPartner{}
	if err := partnerRec.Decode(partner); err != nil {
		return nil, apperrors.NewInternalError("failed to decode lab partner", err)
	}
	if partner.VerificationStatus != entities.VerificationVerified || !offeredBy(testRec, partnerRec) {
		return nil, apperrors.NewValidationError("this test is not currently offered")
	}

	total := test.Price
	if req.HomeCollection {
		if !partner.HomeCollection {
			return nil, apperrors.NewValidationError("this lab does not offer home collection")
		}
		if strings.TrimSpace(req.Address) == "" {
			return nil, apperrors.NewValidationError("address is required for home collection")
		}
		total += partner.HomeCollectionFee
	}

	booking := &entities.LabBooking{
		LabTestID:      test.ID,
		LabTestName:    test.Name,
		LabPartnerID:   partner.ID,
		PatientEmail:   strings.ToLower(p.Email),
		PatientName:    req.PatientName,
		BookingDate:    req.BookingDate,
		TimeSlot:       req.TimeSlot,
		HomeCollection: req.HomeCollection,
		Address:        req.Address,
		TotalAmount:    round2(total),
		Status:         entities.LabBookingBooked,
	}
	data, err := entities.ToData(booking)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode lab booking", err)
	}
	rec, err := s.entities.CreateAs(ctx, p.Email, entities.EntityLabBooking, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(booking); err != nil {
		return nil, apperrors.NewInternalError("failed to decode lab booking", err)
	}

	s.notifications.notifyQuietly(ctx, booking.PatientEmail, "Lab test booked",
		fmt.Sprintf("%s is booked for %s.", test.Name, booking.BookingDate),
		entities.NotificationLabBooking, "/lab-tests")
	s.notifications.notifyQuietly(ctx, partner.UserEmail, "New lab booking",
		fmt.Sprintf("%s booked for %s.", test.Name, booking.BookingDate),
		entities.NotificationLabBooking, "/lab-dashboard")

	observability.LoggerFromContext(ctx).Info().
		Str("booking_id", booking.ID).
		Str("lab_test_id", booking.LabTestID).
		Msg("lab test booked")
	return booking, nil
}

// offeredBy reports whether a test was published by its partner: by the lab
// account, by whoever registered the partner, or by a workflow
func offeredBy(test, partner *entities.Record) bool {
	creator := test.CreatedBy
	if creator == SystemActor {
		return true
	}
	if owner := partner.String("user_email"); owner != "" && strings.EqualFold(owner, creator) {
		return true
	}
	return strings.EqualFold(partner.CreatedBy, creator)
}

func (s *LabService) load(ctx context.Context, id string) (*entities.LabBooking, error) {
	rec, err := s.entities.Load(ctx, entities.EntityLabBooking, id)
	if err != nil {
		return nil, err
	}
	booking := &entities.LabBooking{}
	if err := rec.Decode(booking); err != nil {
		return nil, apperrors.NewInternalError("failed to decode lab booking", err)
	}
	return booking, nil
}

func (s *LabService) partnerOwnedBy(ctx context.Context, partnerID, email string) bool {
	rec, err := s.entities.Load(ctx, entities.EntityLabPartner, partnerID)
	if err != nil {
		return false
	}
	owner := rec.String("user_email")
	return owner != "" && strings.EqualFold(owner, email)
}

// UpdateStatus is called by the lab to record sample collection, publish the
// report or cancel a booking
func (s *LabService) UpdateStatus(ctx context.Context, p *entities.Principal, id string, status entities.LabBookingStatus, reportURL string) (*entities.LabBooking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !s.partnerOwnedBy(ctx, booking.LabPartnerID, p.Email) {
		return nil, apperrors.NewForbiddenError("only the lab handling this booking can update it")
	}

	allowed := false
	for _, next := range labTransitions[booking.Status] {
		if next == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot move a %s booking to %s", booking.Status, status))
	}

	partial := map[string]any{"status": string(status)}
	if status == entities.LabBookingReportReady {
		if strings.TrimSpace(reportURL) == "" {
			return nil, apperrors.NewValidationError("report_url is required when the report is ready")
		}
		partial["report_url"] = reportURL
	}

	updated, err := s.setStatus(ctx, booking.ID, partial)
	if err != nil {
		return nil, err
	}

	title := "Lab booking updated"
	switch status {
	case entities.LabBookingSampleCollected:
		title = "Sample collected"
	case entities.LabBookingReportReady:
		title = "Your lab report is ready"
	case entities.LabBookingCancelled:
		title = "Lab booking cancelled"
	}
	s.notifications.notifyQuietly(ctx, booking.PatientEmail, title,
		fmt.Sprintf("%s on %s is now %s.", booking.LabTestName, booking.BookingDate, strings.ReplaceAll(string(status), "_", " ")),
		entities.NotificationLabBooking, "/lab-tests")
	return updated, nil
}

// Cancel cancels the caller's booking before the sample is collected
func (s *LabService) Cancel(ctx context.Context, p *entities.Principal, id string) (*entities.LabBooking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	booking, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !strings.EqualFold(booking.PatientEmail, p.Email) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("LabBooking with id %s not found", id))
	}
	if booking.Status != entities.LabBookingBooked {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot cancel a %s booking", booking.Status))
	}
	return s.setStatus(ctx, booking.ID, map[string]any{"status": string(entities.LabBookingCancelled)})
}

func (s *LabService) setStatus(ctx context.Context, id string, partial map[string]any) (*entities.LabBooking, error) {
	rec, err := s.entities.UpdateAs(ctx, entities.EntityLabBooking, id, partial)
	if err != nil {
		return nil, err
	}
	booking := &entities.LabBooking{}
	if err := rec.Decode(booking); err != nil {
		return nil, apperrors.NewInternalError("failed to decode lab booking", err)
	}
	return booking, nil
}

// ListMine returns the caller's bookings, newest first, with current test names
func (s *LabService) ListMine(ctx context.Context, p *entities.Principal) ([]*entities.LabBooking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	records, err := s.entities.Filter(ctx, p, entities.EntityLabBooking, repositories.EntityQuery{Sort: "-created_date", Limit: 200})
	if err != nil {
		return nil, err
	}

	bookings := make([]*entities.LabBooking, 0, len(records))
	for _, rec := range records {
		booking := &entities.LabBooking{}
		if err := rec.Decode(booking); err != nil {
			return nil, apperrors.NewInternalError("failed to decode lab booking", err)
		}
		bookings = append(bookings, booking)
	}

	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(s.entities.repo)
	}
	thunks := make([]func() (*entities.LabTest, error), len(bookings))
	for i, b := range bookings {
		thunks[i] = l.LabTestLoader.Load(ctx, b.LabTestID)
	}
	for i, thunk := range thunks {
		if test, err := thunk(); err == nil {
			bookings[i].LabTestName = test.Name
		}
	}
	return bookings, nil
}

// ListForLab returns the bookings for partners owned by the caller
func (s *LabService) ListForLab(ctx context.Context, p *entities.Principal) ([]*entities.LabBooking, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	partners, err := s.entities.List(ctx, entities.EntityLabPartner, repositories.EntityQuery{
		Match: map[string]any{"user_email": strings.ToLower(p.Email)},
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		return nil, err
	}

	bookings := make([]*entities.LabBooking, 0)
	for _, partner := range partners {
		records, err := s.entities.List(ctx, entities.EntityLabBooking, repositories.EntityQuery{
			Match: map[string]any{"lab_partner_id": partner.ID},
			Sort:  "booking_date",
			Limit: repositories.MaxEntityLimit,
		})
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			booking := &entities.LabBooking{}
			if err := rec.Decode(booking); err != nil {
				return nil, apperrors.NewInternalError("failed to decode lab booking", err)
			}
			bookings = append(bookings, booking)
		}
	}
	return bookings, nil
}
