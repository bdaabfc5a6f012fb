package activities

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
	coordinators := middleware.RequireAnyRole(auth.RoleCoordinator)
	volunteers := middleware.RequireAnyRole(auth.RoleVolunteer)

	r.Route("/activities", func(ar chi.Router) {
		ar.Use(middleware.RequireAuth)

		ar.With(coordinators).Post("/", createActivityHandler(svc))
		ar.With(coordinators).Post("/series", createSeriesHandler(svc))
		ar.Get("/", listActivitiesHandler(svc))
		ar.Get("/{activityID}", getActivityHandler(svc))
		ar.With(coordinators).Put("/{activityID}", updateActivityHandler(svc))

		ar.With(coordinators).Get("/{activityID}/enrollments", listEnrollmentsHandler(svc))
		ar.With(volunteers).Post("/{activityID}/enrollments", enrollHandler(svc))
	})

	r.With(volunteers).Post("/enrollments/{enrollmentID}/cancel", cancelEnrollmentHandler(svc))
	r.With(volunteers).Get("/me/enrollments", myEnrollmentsHandler(svc))
}

type activityRequest struct {
	Title              string `json:"title" validate:"required"`
	Description        string `json:"description"`
	Location           string `json:"location"`
	StartsAt           string `json:"starts_at" validate:"required"` // RFC3339
	EndsAt             string `json:"ends_at" validate:"required"`   // RFC3339
	RequiredVolunteers int    `json:"required_volunteers" validate:"min=1"`
	IsUrgent           bool   `json:"is_urgent"`
}

type seriesRequest struct {
	activityRequest
	// RRULE RFC 5545, ej: FREQ=WEEKLY;BYDAY=SA;COUNT=8
	RRule string `json:"rrule" validate:"required"`
}

type activityResponse struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	Location           string    `json:"location"`
	StartsAt           time.Time `json:"starts_at"`
	EndsAt             time.Time `json:"ends_at"`
	RequiredVolunteers int       `json:"required_volunteers"`
	CurrentEnrollment  int       `json:"current_enrollment"`
	IsUrgent           bool      `json:"is_urgent"`
	SeriesID           string    `json:"series_id,omitempty"`
	CreatedBy          string    `json:"created_by"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type enrollmentResponse struct {
	ID          string           `json:"id"`
	ActivityID  string           `json:"activity_id"`
	VolunteerID string           `json:"volunteer_id"`
	Status      EnrollmentStatus `json:"status"`
	EnrolledAt  time.Time        `json:"enrolled_at"`
	CancelledAt *time.Time       `json:"cancelled_at,omitempty"`
}

func (req activityRequest) toSpec() (Spec, error) {
	startsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.StartsAt))
	if err != nil {
		return Spec{}, apperr.Validation("starts_at", "starts_at must be RFC3339")
	}
	endsAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.EndsAt))
	if err != nil {
		return Spec{}, apperr.Validation("ends_at", "ends_at must be RFC3339")
	}
	return Spec{
		Title:              req.Title,
		Description:        req.Description,
		Location:           req.Location,
		StartsAt:           startsAt,
		EndsAt:             endsAt,
		RequiredVolunteers: req.RequiredVolunteers,
		IsUrgent:           req.IsUrgent,
	}, nil
}

// createActivityHandler godoc
// @Summary Crear actividad de voluntariado
// @Tags activities
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param X-Debug-User-Roles header string false "Solo en modo dev, roles CSV"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body activityRequest true "Actividad; horarios en RFC3339"
// @Success 201 {object} activityResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 403 {object} httpjson.ErrorBody
// @Router /activities [post]
func createActivityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req activityRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		spec, err := req.toSpec()
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		a, err := svc.CreateActivity(r.Context(), claims.UserID, spec)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toActivityResponse(a))
	}
}

// createSeriesHandler godoc
// @Summary Crear serie recurrente
// @Description Expande la RRULE desde starts_at; cada ocurrencia mantiene la duración. Máximo 52 ocurrencias.
// @Tags activities
// @Accept json
// @Produce json
// @Param payload body seriesRequest true "Actividad base + rrule"
// @Success 201 {array} activityResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Router /activities/series [post]
func createSeriesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req seriesRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		spec, err := req.toSpec()
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		items, err := svc.CreateSeries(r.Context(), claims.UserID, spec, req.RRule)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		out := make([]activityResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toActivityResponse(a))
		}
		httpjson.WriteJSON(w, http.StatusCreated, out)
	}
}

// listActivitiesHandler godoc
// @Summary Listar actividades
// @Tags activities
// @Produce json
// @Param from query string false "starts_at mínimo (RFC3339)"
// @Param to query string false "starts_at máximo (RFC3339)"
// @Param urgent query bool false "Solo urgentes"
// @Param open query bool false "Solo con cupo libre"
// @Param limit query int false "Máximo (1-200)"
// @Success 200 {array} activityResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Router /activities [get]
func listActivitiesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		out := make([]activityResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toActivityResponse(a))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

// getActivityHandler godoc
// @Summary Ver actividad
// @Tags activities
// @Produce json
// @Param activityID path string true "ID de la actividad"
// @Success 200 {object} activityResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Router /activities/{activityID} [get]
func getActivityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "activityID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toActivityResponse(a))
	}
}

// updateActivityHandler godoc
// @Summary Editar actividad
// @Description No se puede bajar required_volunteers por debajo de las inscripciones confirmadas.
// @Tags activities
// @Accept json
// @Produce json
// @Param activityID path string true "ID de la actividad"
// @Param payload body activityRequest true "Actividad completa"
// @Success 200 {object} activityResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /activities/{activityID} [put]
func updateActivityHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req activityRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}
		spec, err := req.toSpec()
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		a, err := svc.UpdateActivity(r.Context(), chi.URLParam(r, "activityID"), spec)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toActivityResponse(a))
	}
}

// listEnrollmentsHandler godoc
// @Summary Inscripciones de una actividad
// @Tags activities
// @Produce json
// @Param activityID path string true "ID de la actividad"
// @Success 200 {array} enrollmentResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Router /activities/{activityID}/enrollments [get]
func listEnrollmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListEnrollments(r.Context(), chi.URLParam(r, "activityID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		writeEnrollments(w, items)
	}
}

// enrollHandler godoc
// @Summary Inscribirme en una actividad
// @Description 409 CAPACITY_EXCEEDED si no hay cupo, 409 ALREADY_ENROLLED si ya estoy inscripto.
// @Tags activities
// @Produce json
// @Param activityID path string true "ID de la actividad"
// @Success 201 {object} enrollmentResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /activities/{activityID}/enrollments [post]
func enrollHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		e, err := svc.Enroll(r.Context(), chi.URLParam(r, "activityID"), claims.UserID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusCreated, toEnrollmentResponse(e))
	}
}

// cancelEnrollmentHandler godoc
// @Summary Cancelar mi inscripción
// @Tags activities
// @Produce json
// @Param enrollmentID path string true "ID de la inscripción"
// @Success 200 {object} enrollmentResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Router /enrollments/{enrollmentID}/cancel [post]
func cancelEnrollmentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		e, err := svc.CancelEnrollment(r.Context(), chi.URLParam(r, "enrollmentID"), claims.UserID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toEnrollmentResponse(e))
	}
}

// myEnrollmentsHandler godoc
// @Summary Mis inscripciones
// @Tags activities
// @Produce json
// @Success 200 {array} enrollmentResponse
// @Router /me/enrollments [get]
func myEnrollmentsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		items, err := svc.ListByVolunteer(r.Context(), claims.UserID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		writeEnrollments(w, items)
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter

	if v := strings.TrimSpace(q.Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, apperr.Validation("from", "from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(q.Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, apperr.Validation("to", "to must be RFC3339")
		}
		filter.To = &t
	}
	filter.UrgentOnly = q.Get("urgent") == "true"
	filter.OpenOnly = q.Get("open") == "true"

	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return ListFilter{}, apperr.Validation("limit", "limit must be between 1 and 200")
		}
		filter.Limit = n
	}
	return filter, nil
}

func writeEnrollments(w http.ResponseWriter, items []Enrollment) {
	out := make([]enrollmentResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEnrollmentResponse(e))
	}
	httpjson.WriteJSON(w, http.StatusOK, out)
}

func toActivityResponse(a Activity) activityResponse {
	return activityResponse{
		ID:                 a.ID,
		Title:              a.Title,
		Description:        a.Description,
		Location:           a.Location,
		StartsAt:           a.StartsAt,
		EndsAt:             a.EndsAt,
		RequiredVolunteers: a.RequiredVolunteers,
		CurrentEnrollment:  a.CurrentEnrollment,
		IsUrgent:           a.IsUrgent,
		SeriesID:           a.SeriesID,
		CreatedBy:          a.CreatedBy,
		CreatedAt:          a.CreatedAt,
		UpdatedAt:          a.UpdatedAt,
	}
}

func toEnrollmentResponse(e Enrollment) enrollmentResponse {
	return enrollmentResponse{
		ID:          e.ID,
		ActivityID:  e.ActivityID,
		VolunteerID: e.VolunteerID,
		Status:      e.Status,
		EnrolledAt:  e.EnrolledAt,
		CancelledAt: e.CancelledAt,
	}
}
