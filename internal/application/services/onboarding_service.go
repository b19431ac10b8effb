package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// OnboardingService handles partner applications from doctors, labs and hospitals
type OnboardingService struct {
	entities      *EntityService
	users         repositories.UserRepository
	notifications *NotificationService
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(entitySvc *EntityService, users repositories.UserRepository, notifications *NotificationService) *OnboardingService {
	return &OnboardingService{entities: entitySvc, users: users, notifications: notifications}
}

func partnerEntity(kind entities.PartnerKind) (string, error) {
	entity, ok := kind.Entity()
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown partner kind %q", kind))
	}
	return entity, nil
}

// Apply stores a pending partner listing owned by the caller. Each user may
// apply once per kind.
func (s *OnboardingService) Apply(ctx context.Context, p *entities.Principal, kind entities.PartnerKind, data map[string]any) (*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	entity, err := partnerEntity(kind)
	if err != nil {
		return nil, err
	}
	email := strings.ToLower(p.Email)

	existing, err := s.entities.Count(ctx, entity, map[string]any{"user_email": email})
	if err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, apperrors.NewConflictError(fmt.Sprintf("you have already applied as a %s", kind))
	}

	listing := entities.StripReserved(data)
	listing["user_email"] = email
	listing["verification_status"] = string(entities.VerificationPending)

	if kind == entities.PartnerDoctor {
		if license, _ := listing["license_number"].(string); strings.TrimSpace(license) == "" {
			return nil, apperrors.NewValidationError("license_number is required")
		}
		listing["available"] = false
	}

	rec, err := s.entities.CreateAs(ctx, email, entity, listing)
	if err != nil {
		return nil, err
	}

	if kind == entities.PartnerDoctor {
		profile := map[string]any{
			"full_name":      listing["full_name"],
			"specialization": listing["specialization"],
			"license_number": listing["license_number"],
			"doctor_id":      rec.ID,
		}
		if _, err := s.entities.CreateAs(ctx, email, entities.EntityDoctorProfile, profile); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("doctor_id", rec.ID).
				Msg("failed to create doctor profile")
		}
	}

	observability.LoggerFromContext(ctx).Info().
		Str("kind", string(kind)).
		Str("record_id", rec.ID).
		Msg("partner application received")
	return rec, nil
}

// Verify approves or rejects an application. Approval promotes the applicant
// to the partner role.
func (s *OnboardingService) Verify(ctx context.Context, p *entities.Principal, kind entities.PartnerKind, id string, approve bool) (*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only admins can verify partners")
	}
	entity, err := partnerEntity(kind)
	if err != nil {
		return nil, err
	}
	current, err := s.entities.Load(ctx, entity, id)
	if err != nil {
		return nil, err
	}

	status := entities.VerificationRejected
	if approve {
		status = entities.VerificationVerified
	}
	partial := map[string]any{"verification_status": string(status)}
	if kind == entities.PartnerDoctor {
		partial["available"] = approve
	}
	rec, err := s.entities.UpdateAs(ctx, entity, id, partial)
	if err != nil {
		return nil, err
	}

	applicant := current.String("user_email")
	if approve && applicant != "" {
		if err := s.users.UpdateRoleByEmail(ctx, applicant, kind.Role()); err != nil {
			if !apperrors.IsNotFound(err) {
				return nil, err
			}
			observability.LoggerFromContext(ctx).Warn().
				Str("email", applicant).
				Msg("verified partner has no user account")
		}
	}

	message := fmt.Sprintf("Your %s application was approved.", kind)
	if !approve {
		message = fmt.Sprintf("Your %s application was not approved.", kind)
	}
	s.notifications.notifyQuietly(ctx, applicant, "Application reviewed", message,
		entities.NotificationOnboarding, fmt.Sprintf("/%s-dashboard", kind))
	return rec, nil
}

// ListPending returns applications awaiting review, oldest first
func (s *OnboardingService) ListPending(ctx context.Context, p *entities.Principal, kind entities.PartnerKind) ([]*entities.Record, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only admins can review applications")
	}
	entity, err := partnerEntity(kind)
	if err != nil {
		return nil, err
	}
	return s.entities.List(ctx, entity, repositories.EntityQuery{
		Match: map[string]any{"verification_status": string(entities.VerificationPending)},
		Sort:  "created_date",
		Limit: repositories.MaxEntityLimit,
	})
}
