package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/carepoint/internal/application/services"
	"github.com/zatekoja/carepoint/internal/domain/entities"
)

// DashboardService defines the per-role dashboards
type DashboardService interface {
	Patient(ctx context.Context, p *entities.Principal) (*services.PatientDashboard, error)
	Doctor(ctx context.Context, p *entities.Principal) (*services.DoctorDashboard, error)
	Lab(ctx context.Context, p *entities.Principal) (*services.LabDashboard, error)
	Hospital(ctx context.Context, p *entities.Principal) (*services.HospitalDashboard, error)
}

// DashboardHandler handles /api/dashboard/{kind}
type DashboardHandler struct {
	service DashboardService
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// GetDashboard handles GET /api/dashboard/{kind} for kind patient, doctor, lab or hospital
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, p := r.Context(), principal(r)

	var (
		dashboard any
		err       error
	)
	switch r.PathValue("kind") {
	case "patient":
		dashboard, err = h.service.Patient(ctx, p)
	case "doctor":
		if !p.HasRole(entities.RoleDoctor) {
			respondWithError(w, http.StatusForbidden, "you do not have access to this dashboard")
			return
		}
		dashboard, err = h.service.Doctor(ctx, p)
	case "lab":
		if !p.HasRole(entities.RoleLab) {
			respondWithError(w, http.StatusForbidden, "you do not have access to this dashboard")
			return
		}
		dashboard, err = h.service.Lab(ctx, p)
	case "hospital":
		if !p.HasRole(entities.RoleHospital) {
			respondWithError(w, http.StatusForbidden, "you do not have access to this dashboard")
			return
		}
		dashboard, err = h.service.Hospital(ctx, p)
	default:
		respondWithError(w, http.StatusNotFound, "unknown dashboard")
		return
	}
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, dashboard)
}
