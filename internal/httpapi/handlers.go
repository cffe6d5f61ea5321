package httpapi

import (
	"net/http"

	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

type okResponse struct {
	Status string `json:"status"`
}

var okBody = okResponse{Status: "ok"}

// ── Enrollment ───────────────────────────────────────────────────────────────

type enrollRequest struct {
	PassengerID int64  `json:"id_pasajero"`
	Tag         string `json:"rfid_uid"`
}

type tagResponse struct {
	Status string `json:"status"`
	Tag    string `json:"rfid_uid"`
}

func (s *Server) enrollRequest(w http.ResponseWriter, r *http.Request) (enrollRequest, bool) {
	var req enrollRequest
	if !s.decode(w, r, &req, false) {
		return req, false
	}
	if req.PassengerID <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "id_pasajero is required")
		return req, false
	}
	return req, true
}

func (s *Server) handleEnrollTag(w http.ResponseWriter, r *http.Request) {
	req, valid := s.enrollRequest(w, r)
	if !valid {
		return
	}
	tag, err := s.enrollment.AssignTag(r.Context(), req.PassengerID, req.Tag)
	if err != nil {
		s.writeServiceError(w, r, "enroll tag", err)
		return
	}
	respond(w, r, http.StatusOK, tagResponse{Status: "ok", Tag: tag})
}

func (s *Server) handleEnrollFace(w http.ResponseWriter, r *http.Request) {
	req, valid := s.enrollRequest(w, r)
	if !valid {
		return
	}
	if err := s.enrollment.AssignFace(r.Context(), req.PassengerID); err != nil {
		s.writeServiceError(w, r, "enroll face", err)
		return
	}
	respond(w, r, http.StatusOK, okBody)
}

func (s *Server) handleEnrollComplete(w http.ResponseWriter, r *http.Request) {
	req, valid := s.enrollRequest(w, r)
	if !valid {
		return
	}
	tag, err := s.enrollment.Enroll(r.Context(), req.PassengerID, req.Tag)
	if err != nil {
		s.writeServiceError(w, r, "enroll", err)
		return
	}
	respond(w, r, http.StatusOK, tagResponse{Status: "ok", Tag: tag})
}

// ── Verification ─────────────────────────────────────────────────────────────

type tagRequest struct {
	Tag string `json:"rfid_uid"`
}

type passengerResponse struct {
	Status    string                 `json:"status"`
	Passenger types.PassengerSummary `json:"pasajero"`
}

type faceResponse struct {
	Status     string                  `json:"status"`
	Code       string                  `json:"code,omitempty"`
	Access     string                  `json:"acceso"`
	Similarity float64                 `json:"similitud"`
	Passenger  *types.PassengerSummary `json:"pasajero,omitempty"`
}

func (s *Server) handleVerifyTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	p, err := s.verification.ValidateTag(r.Context(), req.Tag)
	if err != nil {
		s.writeServiceError(w, r, "verify tag", err)
		return
	}
	respond(w, r, http.StatusOK, passengerResponse{Status: "ok", Passenger: p})
}

func (s *Server) handleVerifyFace(w http.ResponseWriter, r *http.Request) {
	req, valid := s.enrollRequest(w, r)
	if !valid {
		return
	}
	res, err := s.verification.VerifyFace(r.Context(), req.PassengerID)
	if err != nil {
		s.writeServiceError(w, r, "verify face", err)
		return
	}
	if !res.Granted {
		respond(w, r, http.StatusForbidden, faceResponse{
			Status:     "error",
			Code:       "face_mismatch",
			Access:     "denegado",
			Similarity: res.Similarity,
		})
		return
	}
	respond(w, r, http.StatusOK, faceResponse{
		Status:     "ok",
		Access:     "concedido",
		Similarity: res.Similarity,
		Passenger:  &res.Passenger,
	})
}

// ── Administration ───────────────────────────────────────────────────────────

type loginResponse struct {
	Status string      `json:"status"`
	Admin  types.Admin `json:"admin"`
	Token  string      `json:"token,omitempty"`
}

type adminRequest struct {
	Name string `json:"nombre"`
	Tag  string `json:"rfid_uid"`
}

type adminCreatedResponse struct {
	Status string      `json:"status"`
	Tag    string      `json:"rfid_uid"`
	Admin  types.Admin `json:"admin"`
}

type adminsResponse struct {
	Status string        `json:"status"`
	Admins []types.Admin `json:"admins"`
}

type passengerRequest struct {
	Name   string `json:"nombre"`
	Flight string `json:"numero_vuelo"`
}

type weightsResponse struct {
	Status string `json:"status"`
	service.Dashboard
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	res, err := s.admin.Login(r.Context(), req.Tag)
	if err != nil {
		s.writeServiceError(w, r, "admin login", err)
		return
	}
	respond(w, r, http.StatusOK, loginResponse{Status: "ok", Admin: res.Admin, Token: res.Token})
}

func (s *Server) handleCreateAdmin(w http.ResponseWriter, r *http.Request) {
	var req adminRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	a, err := s.admin.RegisterAdmin(r.Context(), req.Name, req.Tag)
	if err != nil {
		s.writeServiceError(w, r, "create admin", err)
		return
	}
	respond(w, r, http.StatusOK, adminCreatedResponse{Status: "ok", Tag: a.TagCode, Admin: a})
}

func (s *Server) handleListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := s.admin.ListAdmins(r.Context())
	if err != nil {
		s.writeServiceError(w, r, "list admins", err)
		return
	}
	if admins == nil {
		admins = []types.Admin{}
	}
	respond(w, r, http.StatusOK, adminsResponse{Status: "ok", Admins: admins})
}

func (s *Server) handleCreatePassenger(w http.ResponseWriter, r *http.Request) {
	var req passengerRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	p, err := s.admin.CreatePassenger(r.Context(), req.Name, req.Flight)
	if err != nil {
		s.writeServiceError(w, r, "create passenger", err)
		return
	}
	respond(w, r, http.StatusOK, passengerResponse{Status: "ok", Passenger: p})
}

func (s *Server) handleWeights(w http.ResponseWriter, r *http.Request) {
	limit, valid := queryInt(r, "limite")
	if !valid {
		writeError(w, r, http.StatusBadRequest, "invalid_input", "limite must be an integer")
		return
	}
	d, err := s.weights.Dashboard(r.Context(), limit)
	if err != nil {
		s.writeServiceError(w, r, "weights", err)
		return
	}
	respond(w, r, http.StatusOK, weightsResponse{Status: "ok", Dashboard: d})
}
