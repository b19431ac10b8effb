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

// PlaceOrderRequest is the input to MedicineOrderService.Place
type PlaceOrderRequest struct {
	Items           []entities.OrderItem `json:"items"`
	DeliveryAddress string               `json:"delivery_address"`
	PrescriptionURL string               `json:"prescription_url"`
}

// MedicineOrderService places pharmacy orders and tracks their delivery
type MedicineOrderService struct {
	entities      *EntityService
	notifications *NotificationService
}

// NewMedicineOrderService creates a new medicine order service
func NewMedicineOrderService(entitySvc *EntityService, notifications *NotificationService) *MedicineOrderService {
	return &MedicineOrderService{entities: entitySvc, notifications: notifications}
}

// Place prices an order against the current catalogue and stores it
func (s *MedicineOrderService) Place(ctx context.Context, p *entities.Principal, req PlaceOrderRequest) (*entities.MedicineOrder, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, apperrors.NewValidationError("an order needs at least one item")
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, apperrors.NewValidationError("delivery_address is required")
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.MedicineID == "" {
			return nil, apperrors.NewValidationError("every item needs a medicine_id")
		}
		if item.Quantity < 1 {
			return nil, apperrors.NewValidationError("item quantity must be at least 1")
		}
		ids = append(ids, item.MedicineID)
	}

	records, err := s.entities.repo.GetByIDs(ctx, entities.EntityMedicine, ids)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load medicines", err)
	}
	catalogue := make(map[string]*entities.Medicine, len(records))
	for _, rec := range records {
		m := &entities.Medicine{}
		if err := rec.Decode(m); err != nil {
			return nil, apperrors.NewInternalError("failed to decode medicine", err)
		}
		catalogue[m.ID] = m
	}

	var (
		total             float64
		needsPrescription []string
		items             = make([]entities.OrderItem, 0, len(req.Items))
	)
	for _, item := range req.Items {
		m, ok := catalogue[item.MedicineID]
		if !ok {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("Medicine with id %s not found", item.MedicineID))
		}
		if !m.InStock {
			return nil, apperrors.NewValidationError(fmt.Sprintf("%s is out of stock", m.Name))
		}
		if m.RequiresPrescription {
			needsPrescription = append(needsPrescription, m.Name)
		}
		total += m.Price * float64(item.Quantity)
		items = append(items, entities.OrderItem{
			MedicineID: m.ID,
			Name:       m.Name,
			Quantity:   item.Quantity,
			UnitPrice:  m.Price,
		})
	}
	if len(needsPrescription) > 0 && strings.TrimSpace(req.PrescriptionURL) == "" {
		return nil, apperrors.NewValidationError(fmt.Sprintf("a prescription is required for %s", strings.Join(needsPrescription, ", ")))
	}

	order := &entities.MedicineOrder{
		PatientEmail:    strings.ToLower(p.Email),
		Items:           items,
		DeliveryAddress: req.DeliveryAddress,
		PrescriptionURL: req.PrescriptionURL,
		TotalAmount:     round2(total),
		Status:          entities.OrderStatusPlaced,
	}
	data, err := entities.ToData(order)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode order", err)
	}
	rec, err := s.entities.CreateAs(ctx, p.Email, entities.EntityMedicineOrder, data)
	if err != nil {
		return nil, err
	}
	if err := rec.Decode(order); err != nil {
		return nil, apperrors.NewInternalError("failed to decode order", err)
	}

	s.notifications.notifyQuietly(ctx, order.PatientEmail, "Order placed",
		fmt.Sprintf("Your order of %d item(s) totalling %.2f was placed.", len(order.Items), order.TotalAmount),
		entities.NotificationOrder, "/pharmacy")

	observability.LoggerFromContext(ctx).Info().
		Str("order_id", order.ID).
		Int("items", len(order.Items)).
		Float64("total", order.TotalAmount).
		Msg("medicine order placed")
	return order, nil
}

// UpdateStatus moves an order along its lifecycle. Admins advance orders;
// patients may only cancel their own.
func (s *MedicineOrderService) UpdateStatus(ctx context.Context, p *entities.Principal, id string, next entities.OrderStatus) (*entities.MedicineOrder, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	rec, err := s.entities.Load(ctx, entities.EntityMedicineOrder, id)
	if err != nil {
		return nil, err
	}
	order := &entities.MedicineOrder{}
	if err := rec.Decode(order); err != nil {
		return nil, apperrors.NewInternalError("failed to decode order", err)
	}

	if !p.IsAdmin() {
		if !strings.EqualFold(order.PatientEmail, p.Email) {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("MedicineOrder with id %s not found", id))
		}
		if next != entities.OrderStatusCancelled {
			return nil, apperrors.NewForbiddenError("only the pharmacy can advance an order")
		}
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, apperrors.NewValidationError(fmt.Sprintf("cannot move a %s order to %s", order.Status, next))
	}

	updatedRec, err := s.entities.UpdateAs(ctx, entities.EntityMedicineOrder, id, map[string]any{"status": string(next)})
	if err != nil {
		return nil, err
	}
	updated := &entities.MedicineOrder{}
	if err := updatedRec.Decode(updated); err != nil {
		return nil, apperrors.NewInternalError("failed to decode order", err)
	}

	if p.IsAdmin() {
		s.notifications.notifyQuietly(ctx, order.PatientEmail, "Order update",
			fmt.Sprintf("Your order is now %s.", next),
			entities.NotificationOrder, "/pharmacy")
	}
	return updated, nil
}

// ListMine returns the caller's orders, newest first
func (s *MedicineOrderService) ListMine(ctx context.Context, p *entities.Principal) ([]*entities.MedicineOrder, error) {
	records, err := s.entities.Filter(ctx, p, entities.EntityMedicineOrder, repositories.EntityQuery{Sort: "-created_date", Limit: 200})
	if err != nil {
		return nil, err
	}
	orders := make([]*entities.MedicineOrder, 0, len(records))
	for _, rec := range records {
		order := &entities.MedicineOrder{}
		if err := rec.Decode(order); err != nil {
			return nil, apperrors.NewInternalError("failed to decode order", err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}
