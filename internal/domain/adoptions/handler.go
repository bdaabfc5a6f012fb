package adoptions

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"animal-shelter/internal/middleware"
	"animal-shelter/internal/platform/apperr"
	"animal-shelter/internal/platform/httpjson"
	"animal-shelter/internal/ports/auth"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/adoption-requests", func(rr chi.Router) {
		rr.Use(middleware.RequireAuth)

		coordinators := middleware.RequireAnyRole(auth.RoleCoordinator)

		rr.Post("/", submitHandler(svc))
		rr.Get("/", listRequestsHandler(svc))
		rr.Get("/{requestID}", getRequestHandler(svc))

		rr.With(coordinators).Post("/{requestID}/review", markUnderReviewHandler(svc))
		rr.With(coordinators).Post("/{requestID}/approve", approveHandler(svc))
		rr.With(coordinators).Post("/{requestID}/reject", rejectHandler(svc))
		rr.With(coordinators).Post("/{requestID}/complete", completeHandler(svc))

		// El solicitante puede retirar su propia solicitud.
		rr.Post("/{requestID}/cancel", cancelHandler(svc))

		rr.With(middleware.RequireAnyRole(auth.RoleCoordinator, auth.RoleVet)).Post("/{requestID}/notes", appendNoteHandler(svc))
		rr.Get("/{requestID}/adoption", getAdoptionHandler(svc))
	})
}

type submitRequest struct {
	AnimalID   string `json:"animal_id" validate:"required"`
	Motivation string `json:"motivation" validate:"max=2000"`
}

type approveRequest struct {
	Comments string `json:"comments"`
}

type rejectRequest struct {
	Reason        string `json:"reason" validate:"required"`
	InternalNotes string `json:"internal_notes"`
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type completeRequest struct {
	AdoptionDate  string `json:"adoption_date" validate:"required,datetime=2006-01-02"` // YYYY-MM-DD
	DeliveryPlace string `json:"delivery_place" validate:"required"`
	Observations  string `json:"observations"`
}

type noteRequest struct {
	Text string `json:"text" validate:"required"`
}

type noteResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type requestResponse struct {
	ID               string         `json:"id"`
	AnimalID         string         `json:"animal_id"`
	ApplicantID      string         `json:"applicant_id"`
	Motivation       string         `json:"motivation"`
	SubmittedAt      time.Time      `json:"submitted_at"`
	State            State          `json:"state"`
	ReviewerID       string         `json:"reviewer_id,omitempty"`
	ReviewedAt       *time.Time     `json:"reviewed_at,omitempty"`
	RejectionReason  string         `json:"rejection_reason,omitempty"`
	ApprovalComments string         `json:"approval_comments,omitempty"`
	Notes            []noteResponse `json:"notes,omitempty"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

type adoptionResponse struct {
	ID            string    `json:"id"`
	RequestID     string    `json:"request_id"`
	AnimalID      string    `json:"animal_id"`
	AdopterID     string    `json:"adopter_id"`
	AdoptionDate  time.Time `json:"adoption_date"`
	DeliveryPlace string    `json:"delivery_place"`
	Observations  string    `json:"observations"`
	RecordedBy    string    `json:"recorded_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type completeResponse struct {
	Adoption adoptionResponse `json:"adoption"`
	Request  requestResponse  `json:"request"`
}

// submitHandler godoc
// @Summary Solicitar adopción
// @Description Crea una solicitud en pending_review para el usuario autenticado.
// @Tags adoptions
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body submitRequest true "Animal y motivación"
// @Success 201 {object} requestResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests [post]
func submitHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req submitRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		out, err := svc.Submit(r.Context(), claims.UserID, SubmitInput{
			AnimalID:   req.AnimalID,
			Motivation: req.Motivation,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toRequestResponse(out))
	}
}

// listRequestsHandler godoc
// @Summary Listar solicitudes
// @Description Coordinación ve todas; el resto solo las propias.
// @Tags adoptions
// @Produce json
// @Param animal_id query string false "Filtrar por animal"
// @Param state query string false "Estados CSV"
// @Param limit query int false "Máximo (1-200)"
// @Success 200 {array} requestResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Router /adoption-requests [get]
func listRequestsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())
		q := r.URL.Query()

		filter := ListFilter{AnimalID: strings.TrimSpace(q.Get("animal_id"))}
		if !middleware.HasAnyRole(r.Context(), auth.RoleCoordinator) {
			filter.ApplicantID = claims.UserID
		}
		if raw := strings.TrimSpace(q.Get("state")); raw != "" {
			for _, part := range strings.Split(raw, ",") {
				st := State(strings.TrimSpace(part))
				if !st.Valid() {
					httpjson.WriteError(w, apperr.Validation("state", "unknown state "+string(st)))
					return
				}
				filter.States = append(filter.States, st)
			}
		}
		if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 200 {
				httpjson.WriteError(w, apperr.Validation("limit", "limit must be between 1 and 200"))
				return
			}
			filter.Limit = n
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		out := make([]requestResponse, 0, len(items))
		for _, it := range items {
			out = append(out, toRequestResponse(redact(r, it)))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

// getRequestHandler godoc
// @Summary Ver solicitud
// @Tags adoptions
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Success 200 {object} requestResponse
// @Failure 403 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID} [get]
func getRequestHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := loadVisible(w, r, svc)
		if !ok {
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRequestResponse(redact(r, req)))
	}
}

// markUnderReviewHandler godoc
// @Summary Pasar a revisión
// @Tags adoptions
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Success 200 {object} requestResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/review [post]
func markUnderReviewHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		out, err := svc.MarkUnderReview(r.Context(), chi.URLParam(r, "requestID"), claims.UserID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRequestResponse(out))
	}
}

// approveHandler godoc
// @Summary Aprobar solicitud
// @Description Reserva el animal (in_adoption_process). 409 si otra solicitud ya lo reservó.
// @Tags adoptions
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body approveRequest false "Comentarios"
// @Success 200 {object} requestResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/approve [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req approveRequest
		if r.ContentLength != 0 {
			if err := httpjson.Decode(r, &req); err != nil {
				httpjson.WriteError(w, err)
				return
			}
		}

		out, err := svc.Approve(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, req.Comments)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRequestResponse(out))
	}
}

// rejectHandler godoc
// @Summary Rechazar solicitud
// @Tags adoptions
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body rejectRequest true "Motivo (obligatorio) y notas internas"
// @Success 200 {object} requestResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/reject [post]
func rejectHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req rejectRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		out, err := svc.Reject(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, req.Reason, req.InternalNotes)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRequestResponse(out))
	}
}

// cancelHandler godoc
// @Summary Cancelar solicitud
// @Description Coordinación o el propio solicitante. Si liberaba la reserva, el animal vuelve a available.
// @Tags adoptions
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body cancelRequest true "Motivo"
// @Success 200 {object} requestResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 403 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/cancel [post]
func cancelHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		current, ok := loadVisible(w, r, svc)
		if !ok {
			return
		}

		var req cancelRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		out, err := svc.Cancel(r.Context(), current.ID, claims.UserID, req.Reason)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRequestResponse(redact(r, out)))
	}
}

// completeHandler godoc
// @Summary Registrar adopción
// @Description Crea la adopción, completa la solicitud y marca al animal como adopted. Todo o nada.
// @Tags adoptions
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body completeRequest true "Fecha (YYYY-MM-DD), lugar de entrega y observaciones"
// @Success 201 {object} completeResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/complete [post]
func completeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req completeRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		date, err := time.ParseInLocation("2006-01-02", req.AdoptionDate, time.Local)
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("adoption_date", "adoption_date must be YYYY-MM-DD"))
			return
		}

		adoption, out, err := svc.Complete(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, CompleteInput{
			AdoptionDate:  date,
			DeliveryPlace: req.DeliveryPlace,
			Observations:  req.Observations,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, completeResponse{
			Adoption: toAdoptionResponse(adoption),
			Request:  toRequestResponse(out),
		})
	}
}

// appendNoteHandler godoc
// @Summary Agregar nota interna
// @Description Legal en cualquier estado, incluso terminal.
// @Tags adoptions
// @Accept json
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Param payload body noteRequest true "Texto"
// @Success 201 {object} noteResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/notes [post]
func appendNoteHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req noteRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		n, err := svc.AppendNote(r.Context(), chi.URLParam(r, "requestID"), claims.UserID, req.Text)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toNoteResponse(n))
	}
}

// getAdoptionHandler godoc
// @Summary Ver adopción registrada
// @Tags adoptions
// @Produce json
// @Param requestID path string true "ID de la solicitud"
// @Success 200 {object} adoptionResponse
// @Failure 403 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /adoption-requests/{requestID}/adoption [get]
func getAdoptionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := loadVisible(w, r, svc)
		if !ok {
			return
		}
		a, err := svc.GetAdoption(r.Context(), req.ID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toAdoptionResponse(a))
	}
}

// loadVisible trae la solicitud de la URL si el usuario es coordinación o el solicitante.
func loadVisible(w http.ResponseWriter, r *http.Request, svc *Service) (Request, bool) {
	claims, _ := middleware.GetClaims(r.Context())

	req, err := svc.Get(r.Context(), chi.URLParam(r, "requestID"))
	if err != nil {
		httpjson.WriteError(w, err)
		return Request{}, false
	}
	if req.ApplicantID != claims.UserID && !middleware.HasAnyRole(r.Context(), auth.RoleCoordinator) {
		httpjson.WriteError(w, apperr.New(apperr.CodeForbidden, "forbidden"))
		return Request{}, false
	}
	return req, true
}

// redact oculta las notas internas a quien no es staff.
func redact(r *http.Request, req Request) Request {
	if !middleware.HasAnyRole(r.Context(), auth.RoleCoordinator, auth.RoleVet) {
		req.Notes = nil
	}
	return req
}

func toRequestResponse(r Request) requestResponse {
	out := requestResponse{
		ID:               r.ID,
		AnimalID:         r.AnimalID,
		ApplicantID:      r.ApplicantID,
		Motivation:       r.Motivation,
		SubmittedAt:      r.SubmittedAt,
		State:            r.State,
		ReviewerID:       r.ReviewerID,
		ReviewedAt:       r.ReviewedAt,
		RejectionReason:  r.RejectionReason,
		ApprovalComments: r.ApprovalComments,
		UpdatedAt:        r.UpdatedAt,
	}
	for _, n := range r.Notes {
		out.Notes = append(out.Notes, toNoteResponse(n))
	}
	return out
}

func toNoteResponse(n Note) noteResponse {
	return noteResponse{
		ID:        n.ID,
		AuthorID:  n.AuthorID,
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
	}
}

func toAdoptionResponse(a Adoption) adoptionResponse {
	return adoptionResponse{
		ID:            a.ID,
		RequestID:     a.RequestID,
		AnimalID:      a.AnimalID,
		AdopterID:     a.AdopterID,
		AdoptionDate:  a.AdoptionDate,
		DeliveryPlace: a.DeliveryPlace,
		Observations:  a.Observations,
		RecordedBy:    a.RecordedBy,
		CreatedAt:     a.CreatedAt,
	}
}
