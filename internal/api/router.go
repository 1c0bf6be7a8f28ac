package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/careflow/clinic-booking/internal/directory"
	"github.com/careflow/clinic-booking/pkg/logging"
)

type RouterConfig struct {
	Service   BookingService
	Directory directory.Directory
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
	Logger    *logging.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger))

	// Health and metrics.
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Doctor listings are public reads.
	r.Get("/api/appointments/doctors/list", doctorsListHandler(cfg.Directory))
	r.Get("/api/appointments/doctors/count", doctorsCountHandler(cfg.Directory))

	// Everything else requires a token.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/appointments", bookAppointmentHandler(cfg.Service))
		r.Get("/api/appointments", listAppointmentsHandler(cfg.Service))
		r.Get("/api/appointments/available-times", availableTimesHandler(cfg.Service))
		r.Get("/api/appointments/doctors/available", availableDoctorsHandler(cfg.Service))
		r.Get("/api/appointments/{id}", getAppointmentHandler(cfg.Service))
		r.Put("/api/appointments/{id}", updateAppointmentHandler(cfg.Service))
	})

	return r
}
