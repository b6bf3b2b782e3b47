package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"presence/internal/fault"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(srv.URL, 2*time.Second)
}

func TestListProfessors_PreservesOrder(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/professors", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id": 2, "first_name": "Jean", "last_name": "Dupont", "subject": "ML"},
			{"id": 1, "first_name": "Alice", "last_name": "Durand", "subject": "DB"}
		]`))
	})

	professors, err := client.ListProfessors(context.Background())
	require.NoError(t, err)
	require.Len(t, professors, 2)
	assert.Equal(t, int64(2), professors[0].ID)
	assert.Equal(t, int64(1), professors[1].ID)
}

func TestCreateProfessor_SendsPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Jean", body["first_name"])
		assert.Equal(t, "Dupont", body["last_name"])
		assert.Equal(t, "ML", body["subject"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 7, "first_name": "Jean", "last_name": "Dupont", "subject": "ML"}`))
	})

	prof, err := client.CreateProfessor(context.Background(), "Jean", "Dupont", "ML")
	require.NoError(t, err)
	assert.Equal(t, int64(7), prof.ID)
}

func TestDeleteProfessor_RemoteDetailSurfaced(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/professors/9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "professor not found"}`))
	})

	err := client.DeleteProfessor(context.Background(), 9)
	var rerr *fault.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "professor not found", rerr.Detail)
	assert.Equal(t, http.StatusNotFound, rerr.Status)
}

func TestRemoteError_FallbackWhenBodyNotDecodable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("<html>oops</html>"))
	})

	_, err := client.ListStudents(context.Background())
	var rerr *fault.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "unable to load students", rerr.Detail)
}

func TestTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse subsequent connections
	client := New(srv.URL, time.Second)

	_, err := client.ListProfessors(context.Background())
	var terr *fault.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "list_professors", terr.Op)
}

func TestStartSession_OptionalSubjectOmitted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(3), body["professor_id"])
		_, hasSubject := body["subject"]
		assert.False(t, hasSubject)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"session_id": 41}`))
	})

	id, err := client.StartSession(context.Background(), 3, "")
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)
}

func TestSessionStats_UnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/41/stats", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"stats": {"present": 12, "total": 30, "percentage": 40.0}}`))
	})

	stats, err := client.SessionStats(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Present)
	assert.Equal(t, 30, stats.Total)
	assert.InDelta(t, 40.0, stats.Percentage, 0.001)
}

func TestSessionAttendance_UnwrapsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"attendance": [{"student_id": 1}, {"student_id": 1}, {"student_id": 5}]}`))
	})

	records, err := client.SessionAttendance(context.Background(), 41)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(5), records[2].StudentID)
}

func TestSessionReport_ReturnsRawCSV(t *testing.T) {
	csv := "student,status\nMarie Martin,present\n"
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sessions/41/report", r.URL.Path)
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(csv))
	})

	data, err := client.SessionReport(context.Background(), 41)
	require.NoError(t, err)
	assert.Equal(t, csv, string(data))
}

func TestSessionReport_NotFoundFallback(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.SessionReport(context.Background(), 999)
	var rerr *fault.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "report not found", rerr.Detail)
}
