package animals

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

// RegisterRoutes monta las rutas del registro sobre el subrouter /animals.
// El router exige autenticación antes de llegar acá.
func RegisterRoutes(ar chi.Router, svc *Service) {
	staff := middleware.RequireAnyRole(auth.RoleCoordinator, auth.RoleVet)

	ar.With(staff).Post("/", intakeHandler(svc))
	ar.Get("/", listAnimalsHandler(svc))
	ar.Get("/{animalID}", getAnimalHandler(svc))
	ar.Get("/{animalID}/history", historyHandler(svc))
	ar.With(staff).Post("/{animalID}/state", changeStateHandler(svc))
}

type intakeRequest struct {
	Name         string `json:"name" validate:"required"`
	Species      string `json:"species" validate:"required,oneof=dog cat rabbit other"`
	Breed        string `json:"breed"`
	Sex          string `json:"sex" validate:"omitempty,oneof=male female unknown"`
	Color        string `json:"color"`
	Size         string `json:"size" validate:"omitempty,oneof=small medium large"`
	BirthDate    string `json:"birth_date" validate:"omitempty,datetime=2006-01-02"` // YYYY-MM-DD
	Microchip    string `json:"microchip"`
	Notes        string `json:"notes"`
	LocationID   string `json:"location_id" validate:"required"`
	InitialState string `json:"initial_state" validate:"omitempty,oneof=under_evaluation available under_treatment"`
}

type changeStateRequest struct {
	State      string `json:"state" validate:"required"`
	LocationID string `json:"location_id"`
	Comment    string `json:"comment"`
}

type animalResponse struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Species           Species    `json:"species"`
	Breed             string     `json:"breed"`
	Sex               Sex        `json:"sex"`
	Color             string     `json:"color"`
	Size              Size       `json:"size,omitempty"`
	BirthDate         *time.Time `json:"birth_date,omitempty"`
	Microchip         string     `json:"microchip,omitempty"`
	Notes             string     `json:"notes"`
	CurrentState      State      `json:"current_state"`
	CurrentLocationID string     `json:"current_location_id"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type historyEntryResponse struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	LocationID string    `json:"location_id"`
	ActorID    string    `json:"actor_id"`
	Comment    string    `json:"comment"`
	RecordedAt time.Time `json:"recorded_at"`
}

// @Summary Ingresar animal
// @Description Da de alta un animal con su primera entrada de seguimiento. Requiere rol coordinator, vet o admin.
// @Tags animals
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario"
// @Param X-Debug-User-Roles header string false "Solo en modo dev, roles CSV"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body intakeRequest true "Ficha del animal"
// @Success 201 {object} animalResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 401 {object} httpjson.ErrorBody
// @Failure 403 {object} httpjson.ErrorBody
// @Router /animals [post]
func intakeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req intakeRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				httpjson.WriteError(w, apperr.Validation("birth_date", "birth_date must be YYYY-MM-DD"))
				return
			}
			bd = &t
		}

		a, err := svc.Intake(r.Context(), claims.UserID, IntakeInput{
			Name:         req.Name,
			Species:      Species(req.Species),
			Breed:        req.Breed,
			Sex:          Sex(req.Sex),
			Color:        req.Color,
			Size:         Size(req.Size),
			BirthDate:    bd,
			Microchip:    req.Microchip,
			Notes:        req.Notes,
			LocationID:   req.LocationID,
			InitialState: State(req.InitialState),
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		httpjson.WriteJSON(w, http.StatusCreated, toAnimalResponse(a))
	}
}

// @Summary Listar animales
// @Tags animals
// @Produce json
// @Param state query string false "Estados CSV (ej: available,under_treatment)"
// @Param species query string false "Especie"
// @Param limit query int false "Máximo (1-200)"
// @Success 200 {array} animalResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Router /animals [get]
func listAnimalsHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var filter ListFilter
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
		filter.Species = Species(strings.TrimSpace(q.Get("species")))

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

		out := make([]animalResponse, 0, len(items))
		for _, a := range items {
			out = append(out, toAnimalResponse(a))
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

// @Summary Ver animal
// @Tags animals
// @Produce json
// @Param animalID path string true "ID del animal"
// @Success 200 {object} animalResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Router /animals/{animalID} [get]
func getAnimalHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.GetAnimal(r.Context(), chi.URLParam(r, "animalID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toAnimalResponse(a))
	}
}

// @Summary Seguimiento del animal
// @Description Historial append-only de estado y ubicación, en orden cronológico.
// @Tags animals
// @Produce json
// @Param animalID path string true "ID del animal"
// @Success 200 {array} historyEntryResponse
// @Failure 404 {object} httpjson.ErrorBody
// @Router /animals/{animalID}/history [get]
func historyHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.History(r.Context(), chi.URLParam(r, "animalID"))
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}

		out := make([]historyEntryResponse, 0, len(entries))
		for _, e := range entries {
			out = append(out, historyEntryResponse{
				ID:         e.ID,
				State:      e.State,
				LocationID: e.LocationID,
				ActorID:    e.ActorID,
				Comment:    e.Comment,
				RecordedAt: e.RecordedAt,
			})
		}
		httpjson.WriteJSON(w, http.StatusOK, out)
	}
}

// @Summary Cambiar estado del animal
// @Description Edición directa de estado/ubicación. Los estados in_adoption_process y adopted los maneja el flujo de adopción.
// @Tags animals
// @Accept json
// @Produce json
// @Param animalID path string true "ID del animal"
// @Param payload body changeStateRequest true "Nuevo estado"
// @Success 200 {object} animalResponse
// @Failure 400 {object} httpjson.ErrorBody
// @Failure 404 {object} httpjson.ErrorBody
// @Failure 409 {object} httpjson.ErrorBody
// @Router /animals/{animalID}/state [post]
func changeStateHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := middleware.GetClaims(r.Context())

		var req changeStateRequest
		if err := httpjson.Decode(r, &req); err != nil {
			httpjson.WriteError(w, err)
			return
		}

		a, err := svc.ChangeState(r.Context(), chi.URLParam(r, "animalID"), StateChange{
			State:      State(strings.TrimSpace(req.State)),
			LocationID: req.LocationID,
			ActorID:    claims.UserID,
			Comment:    req.Comment,
		})
		if err != nil {
			httpjson.WriteError(w, err)
			return
		}
		httpjson.WriteJSON(w, http.StatusOK, toAnimalResponse(a))
	}
}

func toAnimalResponse(a Animal) animalResponse {
	return animalResponse{
		ID:                a.ID,
		Name:              a.Name,
		Species:           a.Species,
		Breed:             a.Breed,
		Sex:               a.Sex,
		Color:             a.Color,
		Size:              a.Size,
		BirthDate:         a.BirthDate,
		Microchip:         a.Microchip,
		Notes:             a.Notes,
		CurrentState:      a.CurrentState,
		CurrentLocationID: a.CurrentLocationID,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	}
}
