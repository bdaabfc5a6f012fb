package medical

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

// RegisterRoutes monta la ficha médica sobre el subrouter /animals.
func RegisterRoutes(ar chi.Router, svc *Service) {
	ar.Route("/{animalID}/medical", func(mr chi.Router) {
		mr.With(middleware.RequireAnyRole(auth.RoleVet, auth.RoleCoordinator)).Post("/", createRecordHandler(svc))
		mr.With(middleware.RequireAnyRole(auth.RoleVet, auth.RoleCoordinator)).Get("/", listRecordsHandler(svc))

		// Anular: solo veterinaria.
		mr.With(middleware.RequireAnyRole(auth.RoleVet)).Post("/{recordID}/void", voidRecordHandler(svc))
	})
}

type createRecordRequest struct {
	Kind       Kind   `json:"kind" validate:"required" enums:"checkup,vaccine,deworming,flea_treatment,medication,surgery,note"`
	OccurredAt string `json:"occurred_at" validate:"required"` // RFC3339
	Title      string `json:"title"`
	Notes      string `json:"notes"`
}

type recordResponse struct {
	ID         string    `json:"id"`
	AnimalID   string    `json:"animal_id"`
	Kind       Kind      `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
	RecordedAt time.Time `json:"recorded_at"`
	Title      string    `json:"title"`
	Notes      string    `json:"notes"`
	VetID      string    `json:"vet_id"`
	Status     Status    `json:"status"`
}

// createRecordHandler godoc
// @Summary Registrar entrada médica
// @Description Agrega una entrada a la ficha médica del animal. No cambia su estado. Requiere rol vet, coordinator o admin.
// @Tags medical
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param X-Debug-User-Roles header string false "Solo en modo dev, roles CSV"
// @Param Authorization header string false "Bearer token en producción"
// @Param animalID path string true "ID del animal"
// @Param payload body createRecordRequest true "Entrada médica; occurred_at en RFC3339"
// @Success 201 {object} recordResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 403 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /animals/{animalID}/medical [post]
func createRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req createRecordRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		occurredAt, err := time.Parse(time.RFC3339, strings.TrimSpace(req.OccurredAt))
		if err != nil {
			httpjson.WriteError(w, apperr.Validation("occurred_at", "occurred_at must be RFC3339"))
			return
		}

		rec, err := svc.Create(r.Context(), chi.URLParam(r, "animalID"), claims.UserID, CreateInput{
			Kind:       req.Kind,
			OccurredAt: occurredAt,
			Title:      req.Title,
			Notes:      req.Notes,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		httpjson.WriteJSON(w, http.StatusCreated, toRecordResponse(rec))
	}
}

// listRecordsHandler godoc
// @Summary Listar ficha médica
// @Tags medical
// @Produce json
// @Param animalID path string true "ID del animal"
// @Param limit query int false "Máximo (1-200). Por defecto 50"
// @Param kinds query string false "Tipos CSV (ej: vaccine,deworming)"
// @Param from query string false "occurred_at mínimo (RFC3339)"
// @Param to query string false "occurred_at máximo (RFC3339)"
// @Param q query string false "Texto libre en título/notas"
// @Param include_voided query bool false "Incluir anuladas"
// @Success 200 {array} recordResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /animals/{animalID}/medical [get]
func listRecordsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		items, err := svc.ListByAnimal(r.Context(), chi.URLParam(r, "animalID"), filter)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		out := make([]recordResponse, 0, len(items))
		for _, rec := range items {
			out = append(out, toRecordResponse(rec))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

// voidRecordHandler godoc
// @Summary Anular entrada médica
// @Description Las entradas no se borran, quedan con status voided. Requiere rol vet o admin.
// @Tags medical
// @Produce json
// @Param animalID path string true "ID del animal"
// @Param recordID path string true "ID de la entrada"
// @Success 200 {object} recordResponse
// @Failure 403 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Router /animals/{animalID}/medical/{recordID}/void [post]
func voidRecordHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		animalID := chi.URLParam(r, "animalID")
		recordID := chi.URLParam(r, "recordID")

		// La entrada tiene que ser de este animal.
		rec, err := svc.GetByID(r.Context(), recordID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		if rec.AnimalID != animalID {
			httpjson.WriteError(w, apperr.NotFound("medical record", recordID))
			return
		}

		updated, err := svc.Void(r.Context(), recordID)
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toRecordResponse(updated))
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()

	filter := ListFilter{Limit: 50}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return ListFilter{}, apperr.Validation("limit", "limit must be between 1 and 200")
		}
		filter.Limit = n
	}

	if v := strings.TrimSpace(q.Get("kinds")); v != "" {
		for _, p := range strings.Split(v, ",") {
			k := Kind(strings.TrimSpace(p))
			if k == "" {
				continue
			}
			if !k.Valid() {
				return ListFilter{}, apperr.Validation("kinds", "unknown record kind "+string(k))
			}
			filter.Kinds = append(filter.Kinds, k)
		}
	}

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

	filter.Query = strings.TrimSpace(q.Get("q"))
	filter.IncludeVoided = q.Get("include_voided") == "true"

	return filter, nil
}

func toRecordResponse(r Record) recordResponse {
	return recordResponse{
		ID:         r.ID,
		AnimalID:   r.AnimalID,
		Kind:       r.Kind,
		OccurredAt: r.OccurredAt,
		RecordedAt: r.RecordedAt,
		Title:      r.Title,
		Notes:      r.Notes,
		VetID:      r.VetID,
		Status:     r.Status,
	}
}
