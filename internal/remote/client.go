// Package remote implements the HTTP client for the recognition service that
// owns rosters, sessions and report generation. Each method maps to one
// service operation; non-success responses become fault.RemoteError carrying
// the server's detail string, requests that never complete become
// fault.TransportError.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"presence/internal/fault"
	"presence/internal/metrics"
)

// Professor is an instructor record as served by the recognition service.
type Professor struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Subject   string `json:"subject"`
}

// Student is an enrollee record. PhotoPath is set only after a successful
// capture submission.
type Student struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	PhotoPath *string `json:"photo_path,omitempty"`
}

// SessionStats are the derived statistics of a running session.
type SessionStats struct {
	Present    int     `json:"present"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// AttendanceRecord marks that an enrollee was recognized during a session.
// The service may emit several records for the same student.
type AttendanceRecord struct {
	StudentID int64 `json:"student_id"`
}

// Client calls the recognition service.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// ListProfessors returns the instructor roster in service order.
func (c *Client) ListProfessors(ctx context.Context) ([]Professor, error) {
	var out []Professor
	if err := c.doJSON(ctx, "list_professors", http.MethodGet, "/professors", nil, "unable to load professors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProfessor registers a new instructor and returns the created record.
func (c *Client) CreateProfessor(ctx context.Context, firstName, lastName, subject string) (Professor, error) {
	body, _ := json.Marshal(map[string]string{
		"first_name": firstName,
		"last_name":  lastName,
		"subject":    subject,
	})
	var out Professor
	if err := c.doJSON(ctx, "create_professor", http.MethodPost, "/professors", body, "professor could not be created", &out); err != nil {
		return Professor{}, err
	}
	return out, nil
}

// DeleteProfessor removes an instructor by id.
func (c *Client) DeleteProfessor(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_professor", http.MethodDelete, fmt.Sprintf("/professors/%d", id), nil, "professor could not be deleted", nil)
}

// ListStudents returns the enrollee roster in service order.
func (c *Client) ListStudents(ctx context.Context) ([]Student, error) {
	var out []Student
	if err := c.doJSON(ctx, "list_students", http.MethodGet, "/students", nil, "unable to load students", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateStudent uploads a captured JPEG plus the enrollee names as a
// multipart request and returns the created record.
func (c *Client) CreateStudent(ctx context.Context, photo []byte, firstName, lastName string) (Student, error) {
	const op = "create_student"

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("file", "photo.jpg")
	if err != nil {
		return Student{}, fmt.Errorf("create form file failed: %w", err)
	}
	if _, err := io.Copy(part, bytes.NewReader(photo)); err != nil {
		return Student{}, fmt.Errorf("write photo failed: %w", err)
	}
	_ = w.WriteField("first_name", firstName)
	_ = w.WriteField("last_name", lastName)
	w.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/students", &buf)
	if err != nil {
		return Student{}, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out Student
	if err := c.send(req, op, "student could not be created", &out); err != nil {
		return Student{}, err
	}
	return out, nil
}

// DeleteStudent removes an enrollee by id.
func (c *Client) DeleteStudent(ctx context.Context, id int64) error {
	return c.doJSON(ctx, "delete_student", http.MethodDelete, fmt.Sprintf("/students/%d", id), nil, "student could not be deleted", nil)
}

// StartSession asks the service to open a new capture session for a
// professor. Subject is optional and defaults server-side to the professor's.
func (c *Client) StartSession(ctx context.Context, professorID int64, subject string) (int64, error) {
	payload := map[string]any{"professor_id": professorID}
	if subject != "" {
		payload["subject"] = subject
	}
	body, _ := json.Marshal(payload)

	var out struct {
		SessionID int64 `json:"session_id"`
	}
	if err := c.doJSON(ctx, "start_session", http.MethodPost, "/sessions/start", body, "session could not be started", &out); err != nil {
		return 0, err
	}
	return out.SessionID, nil
}

// SessionStats returns the current statistics of a session.
func (c *Client) SessionStats(ctx context.Context, sessionID int64) (SessionStats, error) {
	var out struct {
		Stats SessionStats `json:"stats"`
	}
	path := fmt.Sprintf("/sessions/%d/stats", sessionID)
	if err := c.doJSON(ctx, "session_stats", http.MethodGet, path, nil, "unable to fetch session stats", &out); err != nil {
		return SessionStats{}, err
	}
	return out.Stats, nil
}

// SessionAttendance returns the sparse attendance record set of a session.
func (c *Client) SessionAttendance(ctx context.Context, sessionID int64) ([]AttendanceRecord, error) {
	var out struct {
		Attendance []AttendanceRecord `json:"attendance"`
	}
	path := fmt.Sprintf("/sessions/%d/attendance", sessionID)
	if err := c.doJSON(ctx, "session_attendance", http.MethodGet, path, nil, "unable to fetch attendance", &out); err != nil {
		return nil, err
	}
	return out.Attendance, nil
}

// SessionReport downloads the CSV report of a session.
func (c *Client) SessionReport(ctx context.Context, sessionID int64) ([]byte, error) {
	const op = "session_report"

	path := fmt.Sprintf("/sessions/%d/report", sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := c.exec(req, op)
	metrics.RemoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, remoteError(op, resp, "report not found")
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &fault.TransportError{Op: op, Cause: err}
	}
	return data, nil
}

// doJSON builds a JSON request for op and decodes the response into out when
// out is non-nil.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body []byte, fallback string, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, op, fallback, out)
}

// send executes a prepared request and handles status, decoding and metrics.
func (c *Client) send(req *http.Request, op, fallback string, out any) error {
	start := time.Now()
	resp, err := c.exec(req, op)
	metrics.RemoteCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return remoteError(op, resp, fallback)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response failed: %w", op, err)
	}
	return nil
}

func (c *Client) exec(req *http.Request, op string) (*http.Response, error) {
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.RemoteCallsTotal.WithLabelValues(op, "transport_error").Inc()
		return nil, &fault.TransportError{Op: op, Cause: err}
	}
	if resp.StatusCode >= 300 {
		metrics.RemoteCallsTotal.WithLabelValues(op, "error").Inc()
	} else {
		metrics.RemoteCallsTotal.WithLabelValues(op, "ok").Inc()
	}
	return resp, nil
}

// remoteError extracts the service's detail message, falling back to the
// per-operation message when the body is not decodable.
func remoteError(op string, resp *http.Response, fallback string) error {
	detail := fallback
	body, _ := io.ReadAll(resp.Body)
	var parsed struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Detail != "" {
		detail = parsed.Detail
	}
	return &fault.RemoteError{Op: op, Status: resp.StatusCode, Detail: detail}
}
