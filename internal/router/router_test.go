package router_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"animal-shelter/internal/router"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type actor struct {
	id    string
	roles string
}

var (
	coordinator = actor{"coord-1", "coordinator"}
	vet         = actor{"vet-1", "vet"}
	adopterA    = actor{"adopter-a", "adopter"}
	adopterB    = actor{"adopter-b", "adopter"}
	volunteer   = actor{"vol-1", "volunteer"}
	volunteer2  = actor{"vol-2", "volunteer"}
)

func doReq(t *testing.T, baseURL, method, path string, who *actor, body any) (int, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, baseURL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if who != nil {
		req.Header.Set("X-Debug-User-ID", who.id)
		req.Header.Set("X-Debug-User-Roles", who.roles)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m), string(body))
	return m
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(router.NewRouter(router.Options{}))
	t.Cleanup(ts.Close)
	return ts
}

func TestHTTP_Health(t *testing.T) {
	ts := newServer(t)
	st, body := doReq(t, ts.URL, "GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, st)
	assert.Equal(t, "ok", string(body))
}

func TestHTTP_AdoptionFlow(t *testing.T) {
	ts := newServer(t)

	// Sin identidad => 401; adoptante no puede ingresar animales => 403.
	st, _ := doReq(t, ts.URL, "GET", "/animals", nil, nil)
	require.Equal(t, http.StatusUnauthorized, st)
	st, _ = doReq(t, ts.URL, "POST", "/animals", &adopterA, map[string]any{"name": "x", "species": "dog", "location_id": "k"})
	require.Equal(t, http.StatusForbidden, st)

	st, body := doReq(t, ts.URL, "POST", "/animals", &coordinator, map[string]any{
		"name":          "Toby",
		"species":       "dog",
		"location_id":   "kennel-1",
		"initial_state": "available",
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	animalID := decode(t, body)["id"].(string)

	st, body = doReq(t, ts.URL, "POST", "/animals/"+animalID+"/medical", &vet, map[string]any{
		"kind":        "vaccine",
		"occurred_at": time.Now().Add(-time.Hour).UTC().Format(time.RFC3339),
		"title":       "Rabies",
	})
	require.Equal(t, http.StatusCreated, st, string(body))

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests", &adopterA, map[string]any{"animal_id": animalID, "motivation": "big garden"})
	require.Equal(t, http.StatusCreated, st, string(body))
	reqA := decode(t, body)["id"].(string)

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests", &adopterB, map[string]any{"animal_id": animalID})
	require.Equal(t, http.StatusCreated, st, string(body))
	reqB := decode(t, body)["id"].(string)

	// Otro adoptante no ve la solicitud ajena.
	st, _ = doReq(t, ts.URL, "GET", "/adoption-requests/"+reqA, &adopterB, nil)
	assert.Equal(t, http.StatusForbidden, st)

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqA+"/approve", &coordinator, nil)
	require.Equal(t, http.StatusOK, st, string(body))
	assert.Equal(t, "approved", decode(t, body)["state"])

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqB+"/approve", &coordinator, nil)
	require.Equal(t, http.StatusConflict, st, string(body))
	assert.Equal(t, "CONFLICT", decode(t, body)["code"])

	// Adoptante no puede aprobar.
	st, _ = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqB+"/reject", &adopterB, map[string]any{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, st)

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqA+"/complete", &coordinator, map[string]any{
		"adoption_date":  time.Now().UTC().Format("2006-01-02"),
		"delivery_place": "Shelter front desk",
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	done := decode(t, body)
	assert.Equal(t, "completed", done["request"].(map[string]any)["state"])

	st, body = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqA+"/complete", &coordinator, map[string]any{
		"adoption_date":  time.Now().UTC().Format("2006-01-02"),
		"delivery_place": "Shelter front desk",
	})
	require.Equal(t, http.StatusConflict, st, string(body))

	// Terminal: aprobar de nuevo es transición inválida.
	st, body = doReq(t, ts.URL, "POST", "/adoption-requests/"+reqA+"/approve", &coordinator, nil)
	require.Equal(t, http.StatusConflict, st, string(body))
	assert.Equal(t, "INVALID_TRANSITION", decode(t, body)["code"])

	st, body = doReq(t, ts.URL, "GET", "/animals/"+animalID, &adopterA, nil)
	require.Equal(t, http.StatusOK, st)
	assert.Equal(t, "adopted", decode(t, body)["current_state"])

	st, body = doReq(t, ts.URL, "GET", "/animals/"+animalID+"/history", &coordinator, nil)
	require.Equal(t, http.StatusOK, st)
	var history []map[string]any
	require.NoError(t, json.Unmarshal(body, &history))
	require.Len(t, history, 3)
	assert.Equal(t, "available", history[0]["state"])
	assert.Equal(t, "in_adoption_process", history[1]["state"])
	assert.Equal(t, "adopted", history[2]["state"])

	st, body = doReq(t, ts.URL, "GET", "/adoption-requests/"+reqA+"/adoption", &adopterA, nil)
	require.Equal(t, http.StatusOK, st, string(body))
	assert.Equal(t, "adopter-a", decode(t, body)["adopter_id"])
}

func TestHTTP_VolunteerCapacity(t *testing.T) {
	ts := newServer(t)
	start := time.Now().Add(48 * time.Hour).UTC()

	st, body := doReq(t, ts.URL, "POST", "/activities", &coordinator, map[string]any{
		"title":               "Kennel cleaning",
		"starts_at":           start.Format(time.RFC3339),
		"ends_at":             start.Add(2 * time.Hour).Format(time.RFC3339),
		"required_volunteers": 1,
	})
	require.Equal(t, http.StatusCreated, st, string(body))
	activityID := decode(t, body)["id"].(string)

	st, body = doReq(t, ts.URL, "POST", "/activities/"+activityID+"/enrollments", &volunteer, nil)
	require.Equal(t, http.StatusCreated, st, string(body))
	enrollmentID := decode(t, body)["id"].(string)

	st, body = doReq(t, ts.URL, "POST", "/activities/"+activityID+"/enrollments", &volunteer, nil)
	require.Equal(t, http.StatusConflict, st, string(body))
	assert.Equal(t, "ALREADY_ENROLLED", decode(t, body)["code"])

	st, body = doReq(t, ts.URL, "POST", "/activities/"+activityID+"/enrollments", &volunteer2, nil)
	require.Equal(t, http.StatusConflict, st, string(body))
	assert.Equal(t, "CAPACITY_EXCEEDED", decode(t, body)["code"])

	// Solo el dueño cancela.
	st, _ = doReq(t, ts.URL, "POST", "/enrollments/"+enrollmentID+"/cancel", &volunteer2, nil)
	assert.Equal(t, http.StatusNotFound, st)

	st, body = doReq(t, ts.URL, "POST", "/enrollments/"+enrollmentID+"/cancel", &volunteer, nil)
	require.Equal(t, http.StatusOK, st, string(body))

	st, body = doReq(t, ts.URL, "GET", "/activities/"+activityID, &volunteer2, nil)
	require.Equal(t, http.StatusOK, st)
	assert.EqualValues(t, 0, decode(t, body)["current_enrollment"])

	st, body = doReq(t, ts.URL, "POST", "/activities/"+activityID+"/enrollments", &volunteer2, nil)
	require.Equal(t, http.StatusCreated, st, string(body))

	st, body = doReq(t, ts.URL, "GET", "/me/enrollments", &volunteer, nil)
	require.Equal(t, http.StatusOK, st)
	var mine []map[string]any
	require.NoError(t, json.Unmarshal(body, &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "cancelled", mine[0]["status"])
}
