package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// LabService defines the lab booking operations
type LabService interface {
	Book(ctx context.Context, p *entities.Principal, req services.BookLabTestRequest) (*entities.LabBooking, error)
	UpdateStatus(ctx context.Context, p *entities.Principal, id string, status entities.LabBookingStatus, reportURL string) (*entities.LabBooking, error)
	Cancel(ctx context.Context, p *entities.Principal, id string) (*entities.LabBooking, error)
	ListMine(ctx context.Context, p *entities.Principal) ([]*entities.LabBooking, error)
	ListForLab(ctx context.Context, p *entities.Principal) ([]*entities.LabBooking, error)
}

// MedicineOrderService defines the pharmacy order operations
type MedicineOrderService interface {
	Place(ctx context.Context, p *entities.Principal, req services.PlaceOrderRequest) (*entities.MedicineOrder, error)
	UpdateStatus(ctx context.Context, p *entities.Principal, id string, next entities.OrderStatus) (*entities.MedicineOrder, error)
	ListMine(ctx context.Context, p *entities.Principal) ([]*entities.MedicineOrder, error)
}

// CareHandler handles lab bookings and medicine orders
type CareHandler struct {
	labs   LabService
	orders MedicineOrderService
}

// NewCareHandler creates a new care handler
func NewCareHandler(labs LabService, orders MedicineOrderService) *CareHandler {
	return &CareHandler{
		labs:   labs,
		orders: orders,
	}
}

// BookLabTest handles POST /api/lab-bookings
func (h *CareHandler) BookLabTest(w http.ResponseWriter, r *http.Request) {
	var req services.BookLabTestRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.labs.Book(r.Context(), principal(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, booking)
}

// ListLabBookings handles GET /api/lab-bookings. ?scope=lab lists the bookings
// of the caller's own lab listings.
func (h *CareHandler) ListLabBookings(w http.ResponseWriter, r *http.Request) {
	var (
		bookings []*entities.LabBooking
		err      error
	)
	if r.URL.Query().Get("scope") == "lab" {
		bookings, err = h.labs.ListForLab(r.Context(), principal(r))
	} else {
		bookings, err = h.labs.ListMine(r.Context(), principal(r))
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, bookings)
}

// UpdateLabBookingStatus handles POST /api/lab-bookings/{id}/status
func (h *CareHandler) UpdateLabBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status    entities.LabBookingStatus `json:"status"`
		ReportURL string                    `json:"report_url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	booking, err := h.labs.UpdateStatus(r.Context(), principal(r), r.PathValue("id"), req.Status, req.ReportURL)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// CancelLabBooking handles POST /api/lab-bookings/{id}/cancel
func (h *CareHandler) CancelLabBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.labs.Cancel(r.Context(), principal(r), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, booking)
}

// PlaceOrder handles POST /api/medicine-orders
func (h *CareHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req services.PlaceOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.Place(r.Context(), principal(r), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, order)
}

// ListOrders handles GET /api/medicine-orders
func (h *CareHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListMine(r.Context(), principal(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

// UpdateOrderStatus handles POST /api/medicine-orders/{id}/status
func (h *CareHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status entities.OrderStatus `json:"status"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), principal(r), r.PathValue("id"), req.Status)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}
