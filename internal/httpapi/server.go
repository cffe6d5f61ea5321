package httpapi

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/smartport-kiosk/smartport/internal/auth"
	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/service"
)

type Dependencies struct {
	Logger       *log.Logger
	Addr         string
	Enrollment   *service.EnrollmentService
	Verification *service.VerificationService
	Admin        *service.AdminService
	Weights      *service.WeightService
	Probes       Probes

	// Signer protects /enroll and /admin (except login). Nil leaves them
	// open.
	Signer *auth.Signer

	VerifyPerMinute int
	VerifyBurst     int
}

type Server struct {
	httpServer   *http.Server
	logger       *log.Logger
	enrollment   *service.EnrollmentService
	verification *service.VerificationService
	admin        *service.AdminService
	weights      *service.WeightService
	probes       Probes
}

func NewServer(d Dependencies) *Server {
	s := &Server{
		logger:       d.Logger,
		enrollment:   d.Enrollment,
		verification: d.Verification,
		admin:        d.Admin,
		weights:      d.Weights,
		probes:       d.Probes,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(obs.Instrument)

	requireAdmin := func(next http.Handler) http.Handler { return next }
	if d.Signer != nil {
		requireAdmin = d.Signer.RequireAdmin(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusUnauthorized, "unauthorized", "administrator token required")
		})
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/enroll", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Post("/tag", s.handleEnrollTag)
		r.Post("/face", s.handleEnrollFace)
		r.Post("/complete", s.handleEnrollComplete)
	})

	r.Route("/verify", func(r chi.Router) {
		r.Use(rateLimit(d.VerifyPerMinute, d.VerifyBurst, func(w http.ResponseWriter, r *http.Request) {
			writeError(w, r, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		}))
		r.Post("/tag", s.handleVerifyTag)
		r.Post("/face", s.handleVerifyFace)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/login", s.handleAdminLogin)
		r.Group(func(r chi.Router) {
			r.Use(requireAdmin)
			r.Post("/admins", s.handleCreateAdmin)
			r.Get("/admins", s.handleListAdmins)
			r.Post("/passengers", s.handleCreatePassenger)
			r.Get("/weights", s.handleWeights)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// decode reads the request body into dst and writes a 400 on failure. When
// optional is set an empty body is accepted.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := readRequest(r, dst)
	if err == nil || (optional && errors.Is(err, errEmptyBody)) {
		return true
	}
	writeError(w, r, http.StatusBadRequest, "bad_request", "invalid request body")
	return false
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, s.probes.Report(r.Context()))
}

func queryInt(r *http.Request, key string) (int, bool) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	return n, err == nil
}
