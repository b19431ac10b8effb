package routes

import (
	"net/http"

	"github.com/zatekoja/carepoint/internal/api/handlers"
	"github.com/zatekoja/carepoint/internal/api/middleware"
	"github.com/zatekoja/carepoint/internal/domain/entities"
	"github.com/zatekoja/carepoint/internal/domain/repositories"
	"github.com/zatekoja/carepoint/internal/infrastructure/observability"
)

// Handlers groups every HTTP handler the router mounts
type Handlers struct {
	Entity       *handlers.EntityHandler
	Auth         *handlers.AuthHandler
	Integration  *handlers.IntegrationHandler
	Appointment  *handlers.AppointmentHandler
	Care         *handlers.CareHandler
	Community    *handlers.CommunityHandler
	HealthAI     *handlers.HealthAIHandler
	Emergency    *handlers.EmergencyHandler
	Onboarding   *handlers.OnboardingHandler
	Dashboard    *handlers.DashboardHandler
	Notification *handlers.NotificationHandler
	Stream       *handlers.SSEHandler
}

// Options configures the middleware around the routes
type Options struct {
	Authenticator  middleware.Authenticator
	Repository     repositories.EntityRepository
	AllowedOrigins []string
	Metrics        *observability.Metrics
	AuthLimiter    *middleware.RateLimiter
	LLMLimiter     *middleware.RateLimiter
}

// Router holds all route handlers
type Router struct {
	mux  *http.ServeMux
	h    Handlers
	opts Options
}

// NewRouter creates a new router
func NewRouter(h Handlers, opts Options) *Router {
	return &Router{
		mux:  http.NewServeMux(),
		h:    h,
		opts: opts,
	}
}

func limit(rl *middleware.RateLimiter, next http.HandlerFunc) http.Handler {
	if rl == nil {
		return next
	}
	return rl.LimitFunc(next)
}

func authed(next http.HandlerFunc) http.Handler {
	return middleware.RequireAuth(next)
}

func role(next http.HandlerFunc, roles ...entities.Role) http.Handler {
	return middleware.RequireRole(roles...)(next)
}

// SetupRoutes configures all application routes and wraps them in the
// middleware chain: CORS, observability, logging, authentication, loaders.
func (r *Router) SetupRoutes() http.Handler {
	h := r.h

	// Health check endpoint
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Auth
	r.mux.Handle("POST /api/auth/register", limit(r.opts.AuthLimiter, h.Auth.Register))
	r.mux.Handle("POST /api/auth/login", limit(r.opts.AuthLimiter, h.Auth.Login))
	r.mux.HandleFunc("GET /api/auth/login", h.Auth.RedirectToLogin)
	r.mux.Handle("POST /api/auth/logout", authed(h.Auth.Logout))
	r.mux.HandleFunc("GET /api/auth/status", h.Auth.Status)
	r.mux.Handle("GET /api/auth/me", authed(h.Auth.Me))
	r.mux.Handle("PATCH /api/auth/me", authed(h.Auth.UpdateMe))
	r.mux.Handle("POST /api/admin/users/{id}/role", role(h.Auth.SetRole, entities.RoleAdmin))

	// Generic entities
	r.mux.Handle("GET /api/entities/{entity}", authed(h.Entity.List))
	r.mux.Handle("POST /api/entities/{entity}", authed(h.Entity.Create))
	r.mux.Handle("GET /api/entities/{entity}/{id}", authed(h.Entity.Get))
	r.mux.Handle("PATCH /api/entities/{entity}/{id}", authed(h.Entity.Update))
	r.mux.Handle("PUT /api/entities/{entity}/{id}", authed(h.Entity.Update))
	r.mux.Handle("DELETE /api/entities/{entity}/{id}", authed(h.Entity.Delete))
	r.mux.Handle("GET /api/search", authed(h.Entity.Search))

	// Integrations
	r.mux.Handle("POST /api/integrations/core/invoke-llm", authed(limit(r.opts.LLMLimiter, h.Integration.InvokeLLM).ServeHTTP))
	r.mux.Handle("POST /api/integrations/core/upload-file", authed(h.Integration.UploadFile))
	r.mux.HandleFunc("GET /files/{id}", h.Integration.ServeFile)

	// Appointments
	r.mux.Handle("GET /api/appointments", authed(h.Appointment.ListAppointments))
	r.mux.Handle("POST /api/appointments", authed(h.Appointment.BookAppointment))
	r.mux.Handle("POST /api/appointments/{id}/cancel", authed(h.Appointment.CancelAppointment))
	r.mux.Handle("POST /api/appointments/{id}/confirm", role(h.Appointment.ConfirmAppointment, entities.RoleDoctor))
	r.mux.Handle("POST /api/appointments/{id}/complete", role(h.Appointment.CompleteAppointment, entities.RoleDoctor))

	// Lab bookings and medicine orders
	r.mux.Handle("GET /api/lab-bookings", authed(h.Care.ListLabBookings))
	r.mux.Handle("POST /api/lab-bookings", authed(h.Care.BookLabTest))
	r.mux.Handle("POST /api/lab-bookings/{id}/status", role(h.Care.UpdateLabBookingStatus, entities.RoleLab))
	r.mux.Handle("POST /api/lab-bookings/{id}/cancel", authed(h.Care.CancelLabBooking))
	r.mux.Handle("GET /api/medicine-orders", authed(h.Care.ListOrders))
	r.mux.Handle("POST /api/medicine-orders", authed(h.Care.PlaceOrder))
	r.mux.Handle("POST /api/medicine-orders/{id}/status", authed(h.Care.UpdateOrderStatus))

	// Community
	r.mux.Handle("POST /api/forum/posts/{id}/replies", authed(h.Community.Reply))
	r.mux.Handle("POST /api/forum/posts/{id}/like", authed(h.Community.Like))

	// Health AI
	r.mux.Handle("POST /api/symptom-check", authed(limit(r.opts.LLMLimiter, h.HealthAI.SymptomCheck).ServeHTTP))
	r.mux.Handle("POST /api/health-insights/generate", authed(limit(r.opts.LLMLimiter, h.HealthAI.GenerateInsights).ServeHTTP))

	// Emergencies
	r.mux.Handle("POST /api/emergency-requests", authed(h.Emergency.Raise))
	r.mux.Handle("GET /api/emergency-requests/open", role(h.Emergency.ListOpen, entities.RoleHospital))
	r.mux.Handle("POST /api/emergency-requests/{id}/status", role(h.Emergency.UpdateStatus, entities.RoleHospital))

	// Partner onboarding
	r.mux.Handle("POST /api/onboarding/{kind}", authed(h.Onboarding.Apply))
	r.mux.Handle("GET /api/admin/onboarding/{kind}", role(h.Onboarding.ListPending, entities.RoleAdmin))
	r.mux.Handle("POST /api/admin/onboarding/{kind}/{id}/verify", role(h.Onboarding.Verify, entities.RoleAdmin))

	// Dashboards and notifications
	r.mux.Handle("GET /api/dashboard/{kind}", authed(h.Dashboard.GetDashboard))
	r.mux.Handle("POST /api/notifications/{id}/read", authed(h.Notification.MarkRead))
	r.mux.Handle("POST /api/notifications/read-all", authed(h.Notification.MarkAllRead))
	r.mux.Handle("GET /api/stream/notifications", authed(h.Stream.StreamNotifications))

	var handler http.Handler = middleware.RecordRoute(r.mux)
	if r.opts.Repository != nil {
		handler = middleware.LoadersMiddleware(r.opts.Repository)(handler)
	}
	handler = middleware.Authenticate(r.opts.Authenticator)(handler)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.opts.Metrics)(handler)
	handler = middleware.CORSMiddleware(r.opts.AllowedOrigins)(handler)

	return handler
}
