package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/providers"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/carepoint/pkg/errors"
)

// RaiseEmergencyRequest is the input to EmergencyService.Raise
type RaiseEmergencyRequest struct {
	EmergencyType string `json:"emergency_type"`
	Location      string `json:"location"`
	ContactPhone  string `json:"contact_phone"`
	Description   string `json:"description"`
}

// EmergencyService records emergency requests and alerts hospitals
type EmergencyService struct {
	entities      *EntityService
	notifications *NotificationService
	eventBus      providers.EventBus
}

// NewEmergencyService creates a new emergency service
func NewEmergencyService(entitySvc *EntityService, notifications *NotificationService, eventBus providers.EventBus) *EmergencyService {
	return &EmergencyService{entities: entitySvc, notifications: notifications, eventBus: eventBus}
}

// Raise stores a pending emergency request and alerts every verified
// hospital offering emergency services
func (s *EmergencyService) Raise(ctx context.Context, p *entities.Principal, req RaiseEmergencyRequest) (*entities.EmergencyRequest, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.EmergencyType) == "" {
		return nil, apperrors.NewValidationError("emergency_type is required")
	}
	if strings.TrimSpace(req.Location) == "" {
		return nil, apperrors.NewValidationError("location is required")
	}

	request := &entities.EmergencyRequest{
		RequesterEmail: strings.ToLower(p.Email),
		EmergencyType:  strings.TrimSpace(req.EmergencyType),
		Location:       strings.TrimSpace(req.Location),
		ContactPhone:   req.ContactPhone,
		Description:    req.Description,
		Status:         entities.EmergencyPending,
	}
	data, err := entities.ToData(request)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode emergency request", err)
	}
	rec, err := s.entities.CreateAs(ctx, p.Email, entities.EntityEmergencyRequest, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(request); err != nil {
		return nil, apperrors.NewInternalError("failed to decode emergency request", err)
	}

	logger := observability.LoggerFromContext(ctx)
	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, providers.EventChannelEmergency, request); err != nil {
			logger.Warn().Err(err).Str("request_id", request.ID).Msg("failed to publish emergency request")
		}
	}

	hospitals, err := s.entities.List(ctx, entities.EntityHospital, repositories.EntityQuery{
		Match: map[string]any{
			"emergency_services":  true,
			"verification_status": string(entities.VerificationVerified),
		},
		Limit: repositories.MaxEntityLimit,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("failed to list emergency hospitals")
	}
	for _, h := range hospitals {
		s.notifications.notifyQuietly(ctx, h.String("user_email"), "Emergency request",
			fmt.Sprintf("%s reported at %s.", request.EmergencyType, request.Location),
			entities.NotificationEmergency, "/hospital-dashboard")
	}

	logger.Warn().
		Str("request_id", request.ID).
		Str("emergency_type", request.EmergencyType).
		Int("hospitals_alerted", len(hospitals)).
		Msg("emergency request raised")
	return request, nil
}

// UpdateStatus is called by a hospital or admin to dispatch or resolve a request
func (s *EmergencyService) UpdateStatus(ctx context.Context, p *entities.Principal, id string, next entities.EmergencyStatus) (*entities.EmergencyRequest, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.HasRole(entities.RoleHospital) {
		return nil, apperrors.NewForbiddenError("only hospitals can update emergency requests")
	}
	rec, err := s.entities.Load(ctx, entities.EntityEmergencyRequest, id)
	if err != nil {
		return nil, err
	}
	request := &entities.EmergencyRequest{}
	if err := rec.Decode(request); err != nil {
		return nil, apperrors.NewInternalError("failed to decode emergency request", err)
	}

	valid := (request.Status == entities.EmergencyPending && next == entities.EmergencyDispatched) ||
		(request.Status == entities.EmergencyDispatched && next == entities.EmergencyResolved) ||
		(request.Status == entities.EmergencyPending && next == entities.EmergencyResolved)
	if !valid {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot move a %s request to %s", request.Status, next))
	}

	updatedRec, err := s.entities.UpdateAs(ctx, entities.EntityEmergencyRequest, id, map[string]any{
		"status":     string(next),
		"handled_by": strings.ToLower(p.Email),
	})
	if err != nil {
		return nil, err
	}
	updated := &entities.EmergencyRequest{}
	if err := updatedRec.Decode(updated); err != nil {
		return nil, apperrors.NewInternalError("failed to decode emergency request", err)
	}

	s.notifications.notifyQuietly(ctx, request.RequesterEmail, "Emergency request update",
		fmt.Sprintf("Your request is now %s.", next),
		entities.NotificationEmergency, "/emergency")
	return updated, nil
}

// ListOpen returns pending and dispatched requests, oldest first
func (s *EmergencyService) ListOpen(ctx context.Context, p *entities.Principal) ([]*entities.EmergencyRequest, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if !p.HasRole(entities.RoleHospital) {
		return nil, apperrors.NewForbiddenError("only hospitals can view emergency requests")
	}

	out := make([]*entities.EmergencyRequest, 0)
	for _, status := range []entities.EmergencyStatus{entities.EmergencyPending, entities.EmergencyDispatched} {
		records, err := s.entities.List(ctx, entities.EntityEmergencyRequest, repositories.EntityQuery{
			Match: map[string]any{"status": string(status)},
			Sort:  "created_date",
			Limit: 100,
		})
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			r := &entities.EmergencyRequest{}
			if err := rec.Decode(r); err != nil {
				return nil, apperrors.NewInternalError("failed to decode emergency request", err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}
