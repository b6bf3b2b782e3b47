// Package console is the orchestration core of the operator client: roster
// management, the capture lifecycle, the session lifecycle, and attendance
// reconciliation, plus the view state the facade exposes.
package console

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"presence/internal/camera"
	"presence/internal/fault"
	"presence/internal/metrics"
	"presence/internal/remote"
	"presence/internal/roster"
	"presence/internal/view"
)

// SessionResult is the client's view of the one active session. It exists
// only while the session is active and is replaced outright when a new
// session starts.
type SessionResult struct {
	SessionID int64               `json:"session_id"`
	Stats     remote.SessionStats `json:"stats"`
}

// ProfessorForm carries the add-instructor fields. All are required.
type ProfessorForm struct {
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
}

// SessionForm carries the start-session fields. Subject is optional.
type SessionForm struct {
	ProfessorID int64  `json:"professor_id" validate:"required"`
	Subject     string `json:"subject"`
}

// Console owns the rosters, the active session, the modal surface and the
// per-operation loading flags. Remote calls run outside its lock so
// independent operations proceed concurrently.
type Console struct {
	client    *remote.Client
	camera    *camera.Manager
	notifier  *view.Notifier
	gate      *view.Gate
	validate  *validator.Validate
	log       *zap.SugaredLogger
	exportDir string
	loading   *loadingFlags

	mu         sync.Mutex
	professors []remote.Professor
	students   []remote.Student
	profPager  view.Pager
	studPager  view.Pager
	session    *SessionResult
	modal      view.Modal
}

// New wires a console. pageSize applies to both roster lists.
func New(client *remote.Client, cam *camera.Manager, notifier *view.Notifier, log *zap.SugaredLogger, exportDir string, pageSize int) *Console {
	return &Console{
		client:    client,
		camera:    cam,
		notifier:  notifier,
		gate:      &view.Gate{},
		validate:  validator.New(),
		log:       log,
		exportDir: exportDir,
		loading:   newLoadingFlags(),
		profPager: view.NewPager(pageSize),
		studPager: view.NewPager(pageSize),
		modal:     view.Modal{Kind: view.ModalNone},
	}
}

// RefreshAll fetches both rosters concurrently. They touch disjoint
// collections, so the fetches are issued together and awaited jointly.
func (c *Console) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.FetchProfessors(gctx) })
	g.Go(func() error { return c.FetchStudents(gctx) })
	return g.Wait()
}

// FetchProfessors reloads the instructor roster and resets its browsing
// position.
func (c *Console) FetchProfessors(ctx context.Context) error {
	professors, err := c.client.ListProfessors(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.professors = professors
	c.profPager.Reset()
	c.mu.Unlock()
	return nil
}

// FetchStudents reloads the enrollee roster and resets its browsing position.
func (c *Console) FetchStudents(ctx context.Context) error {
	students, err := c.client.ListStudents(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.students = students
	c.studPager.Reset()
	c.mu.Unlock()
	return nil
}

// CreateProfessor validates the form, registers the instructor, and reloads
// the roster.
func (c *Console) CreateProfessor(ctx context.Context, form ProfessorForm) error {
	if err := c.validate.Struct(form); err != nil {
		verr := &fault.ValidationError{Reason: "first name, last name and subject are required"}
		c.fail(verr)
		return verr
	}
	if !c.loading.begin(OpProfessor) {
		return errInFlight(OpProfessor)
	}
	defer c.loading.end(OpProfessor)

	if _, err := c.client.CreateProfessor(ctx, form.FirstName, form.LastName, form.Subject); err != nil {
		c.fail(err)
		return err
	}
	if err := c.FetchProfessors(ctx); err != nil {
		return err
	}
	c.notifier.Success("Professor registered")
	return nil
}

// RequestDeleteProfessor surfaces a confirmation for the destructive delete.
// The delete itself runs only when the confirmation is accepted.
func (c *Console) RequestDeleteProfessor(id int64) error {
	return c.requestDelete(
		fmt.Sprintf("Do you really want to delete professor #%d?", id),
		func() { c.deleteProfessor(id) },
	)
}

// RequestDeleteStudent surfaces a confirmation for the destructive delete.
func (c *Console) RequestDeleteStudent(id int64) error {
	return c.requestDelete(
		fmt.Sprintf("Do you really want to delete student #%d?", id),
		func() { c.deleteStudent(id) },
	)
}

func (c *Console) requestDelete(message string, confirmed func()) error {
	c.mu.Lock()
	if !c.modal.None() {
		c.mu.Unlock()
		return errors.New("another modal is open")
	}
	c.modal = view.Modal{Kind: view.ModalConfirming}
	c.mu.Unlock()

	onDone := func() {
		c.mu.Lock()
		c.modal = view.Modal{Kind: view.ModalNone}
		c.mu.Unlock()
	}
	if !c.gate.Request(message, func() { onDone(); confirmed() }, onDone) {
		onDone()
		return errors.New("a confirmation is already pending")
	}
	return nil
}

// Confirm resolves the pending confirmation positively.
func (c *Console) Confirm() bool { return c.gate.Confirm() }

// CancelConfirmation resolves the pending confirmation negatively.
func (c *Console) CancelConfirmation() bool { return c.gate.Cancel() }

func (c *Console) deleteProfessor(id int64) {
	ctx := context.Background()
	if err := c.client.DeleteProfessor(ctx, id); err != nil {
		c.fail(err)
		return
	}
	c.notifier.Success(fmt.Sprintf("Professor %d deleted", id))
	_ = c.FetchProfessors(ctx)
}

func (c *Console) deleteStudent(id int64) {
	ctx := context.Background()
	if err := c.client.DeleteStudent(ctx, id); err != nil {
		c.fail(err)
		return
	}
	c.notifier.Success(fmt.Sprintf("Student %d deleted", id))
	_ = c.FetchStudents(ctx)
}

// OpenCapture acquires the camera for a new enrollee and opens the capture
// modal. Requires no other modal to be open.
func (c *Console) OpenCapture(ctx context.Context, firstName, lastName string) error {
	c.mu.Lock()
	if !c.modal.None() && c.modal.Kind != view.ModalCapturing {
		c.mu.Unlock()
		return errors.New("another modal is open")
	}
	c.mu.Unlock()

	if err := c.camera.Open(ctx, firstName, lastName); err != nil {
		c.fail(err)
		return err
	}
	c.mu.Lock()
	c.modal = view.Modal{Kind: view.ModalCapturing}
	c.mu.Unlock()
	return nil
}

// CaptureAndSubmit renders the current frame, uploads it, and on success
// closes the capture and reloads the enrollee roster. On failure the capture
// stays open so the operator can retry.
func (c *Console) CaptureAndSubmit(ctx context.Context) error {
	if !c.loading.begin(OpStudent) {
		return errInFlight(OpStudent)
	}
	defer c.loading.end(OpStudent)

	payload, err := c.camera.CaptureFrame(ctx)
	if err != nil {
		c.fail(err)
		return err
	}
	if _, err := c.camera.Submit(ctx, payload); err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.modal = view.Modal{Kind: view.ModalNone}
	c.mu.Unlock()

	if err := c.FetchStudents(ctx); err != nil {
		return err
	}
	c.notifier.Success("Student registered successfully")
	return nil
}

// CancelCapture releases the camera and closes the capture modal.
func (c *Console) CancelCapture() {
	c.camera.Close()
	c.mu.Lock()
	if c.modal.Kind == view.ModalCapturing {
		c.modal = view.Modal{Kind: view.ModalNone}
	}
	c.mu.Unlock()
}

// StartSession starts a session and immediately queries its stats: two
// sequential round trips, the second keyed by the first's session id. When
// the stats leg fails the session still stands server-side; the result keeps
// the id with zero stats so a manual refresh can recover them.
func (c *Console) StartSession(ctx context.Context, form SessionForm) error {
	if form.ProfessorID == 0 {
		verr := &fault.ValidationError{Field: "professor_id", Reason: "select a professor"}
		c.fail(verr)
		return verr
	}
	if !c.loading.begin(OpSession) {
		return errInFlight(OpSession)
	}
	defer c.loading.end(OpSession)

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	sessionID, err := c.client.StartSession(ctx, form.ProfessorID, form.Subject)
	if err != nil {
		c.fail(err)
		return err
	}

	stats, err := c.client.SessionStats(ctx, sessionID)
	if err != nil {
		// No rollback: the session is live on the service. Keep the id so
		// a manual refresh can recover the stats.
		c.mu.Lock()
		c.session = &SessionResult{SessionID: sessionID}
		c.mu.Unlock()
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.session = &SessionResult{SessionID: sessionID, Stats: stats}
	c.mu.Unlock()
	c.notifier.Success(fmt.Sprintf("Session %d started. The webcam is open, press Q to finish.", sessionID))
	return nil
}

// RefreshStats re-queries the active session's stats, replacing only the
// stats field. Stale stats are kept on failure, and a late response is
// dropped when the active session has changed in the meantime.
func (c *Console) RefreshStats(ctx context.Context) error {
	c.mu.Lock()
	if c.session == nil {
		c.mu.Unlock()
		return errors.New("no active session")
	}
	sessionID := c.session.SessionID
	c.mu.Unlock()

	stats, err := c.client.SessionStats(ctx, sessionID)
	if err != nil {
		c.notifier.Error("Unable to refresh stats")
		return err
	}

	c.mu.Lock()
	if c.session != nil && c.session.SessionID == sessionID {
		c.session.Stats = stats
	}
	c.mu.Unlock()
	return nil
}

// EndSession is a pure client-side transition: it clears the active session
// and opens the attendance view for it. No remote end call is made.
func (c *Console) EndSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return errors.New("no active session")
	}
	c.modal = view.Modal{Kind: view.ModalAttendance, SessionID: c.session.SessionID}
	c.session = nil
	return nil
}

// Attendance fetches the viewed session's attendance records and reconciles
// them with the enrollee roster into a presence report.
func (c *Console) Attendance(ctx context.Context) (roster.Report, error) {
	c.mu.Lock()
	if c.modal.Kind != view.ModalAttendance {
		c.mu.Unlock()
		return roster.Report{}, errors.New("attendance view is not open")
	}
	sessionID := c.modal.SessionID
	students := c.students
	c.mu.Unlock()

	records, err := c.client.SessionAttendance(ctx, sessionID)
	if err != nil {
		c.fail(err)
		return roster.Report{}, err
	}
	return roster.Compute(students, records), nil
}

// CloseAttendance dismisses the attendance view.
func (c *Console) CloseAttendance() {
	c.mu.Lock()
	if c.modal.Kind == view.ModalAttendance {
		c.modal = view.Modal{Kind: view.ModalNone}
	}
	c.mu.Unlock()
}

// DownloadReport fetches the session's CSV report and writes it to the
// export directory as attendance_session_{id}.csv.
func (c *Console) DownloadReport(ctx context.Context, sessionID int64) (string, error) {
	if sessionID <= 0 {
		verr := &fault.ValidationError{Field: "session_id", Reason: "enter a session id"}
		c.fail(verr)
		return "", verr
	}
	if !c.loading.begin(OpReport) {
		return "", errInFlight(OpReport)
	}
	defer c.loading.end(OpReport)

	data, err := c.client.SessionReport(ctx, sessionID)
	if err != nil {
		c.fail(err)
		return "", err
	}

	path := filepath.Join(c.exportDir, fmt.Sprintf("attendance_session_%d.csv", sessionID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		wrapped := fmt.Errorf("write report failed: %w", err)
		c.fail(wrapped)
		return "", wrapped
	}
	metrics.ReportsExported.Inc()
	c.notifier.Success("Report downloaded")
	return path, nil
}

// SetProfessorQuery updates the instructor search, resetting to page 1.
func (c *Console) SetProfessorQuery(query string) {
	c.mu.Lock()
	c.profPager.SetQuery(query)
	c.mu.Unlock()
}

// SetStudentQuery updates the enrollee search, resetting to page 1.
func (c *Console) SetStudentQuery(query string) {
	c.mu.Lock()
	c.studPager.SetQuery(query)
	c.mu.Unlock()
}

// SetProfessorPage moves the instructor list to the given page.
func (c *Console) SetProfessorPage(page int) {
	c.mu.Lock()
	if page >= 1 {
		c.profPager.Page = page
	}
	c.mu.Unlock()
}

// SetStudentPage moves the enrollee list to the given page.
func (c *Console) SetStudentPage(page int) {
	c.mu.Lock()
	if page >= 1 {
		c.studPager.Page = page
	}
	c.mu.Unlock()
}

// RosterPage is one page of a roster list.
type RosterPage[T any] struct {
	Items      []T    `json:"items"`
	Page       int    `json:"page"`
	TotalPages int    `json:"total_pages"`
	Total      int    `json:"total"`
	Query      string `json:"query"`
}

// ProfessorPage returns the current instructor page under the active filter.
// Instructors match on first name, last name and subject.
func (c *Console) ProfessorPage() RosterPage[remote.Professor] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, totalPages := view.Apply(&c.profPager, c.professors, func(p remote.Professor) string {
		return p.FirstName + " " + p.LastName + " " + p.Subject
	})
	return RosterPage[remote.Professor]{
		Items:      items,
		Page:       c.profPager.Page,
		TotalPages: totalPages,
		Total:      len(c.professors),
		Query:      c.profPager.Query,
	}
}

// StudentPage returns the current enrollee page under the active filter.
// Enrollees match on first and last name.
func (c *Console) StudentPage() RosterPage[remote.Student] {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, totalPages := view.Apply(&c.studPager, c.students, func(s remote.Student) string {
		return s.FirstName + " " + s.LastName
	})
	return RosterPage[remote.Student]{
		Items:      items,
		Page:       c.studPager.Page,
		TotalPages: totalPages,
		Total:      len(c.students),
		Query:      c.studPager.Query,
	}
}

// Snapshot is the full view state served to the facade.
type Snapshot struct {
	Professors   RosterPage[remote.Professor] `json:"professors"`
	Students     RosterPage[remote.Student]   `json:"students"`
	Session      *SessionResult               `json:"session,omitempty"`
	Modal        view.Modal                   `json:"modal"`
	Loading      map[Op]bool                  `json:"loading"`
	Notification *view.Message                `json:"notification,omitempty"`
	Confirmation string                       `json:"confirmation,omitempty"`
}

// State assembles the current view state.
func (c *Console) State() Snapshot {
	professors := c.ProfessorPage()
	students := c.StudentPage()

	c.mu.Lock()
	var session *SessionResult
	if c.session != nil {
		copied := *c.session
		session = &copied
	}
	modal := c.modal
	c.mu.Unlock()

	confirmation, _ := c.gate.Pending()
	return Snapshot{
		Professors:   professors,
		Students:     students,
		Session:      session,
		Modal:        modal,
		Loading:      c.loading.snapshot(),
		Notification: c.notifier.Current(),
		Confirmation: confirmation,
	}
}

// Shutdown releases held resources on process teardown. The camera handle
// must never outlive the console.
func (c *Console) Shutdown() {
	c.camera.Close()
}

// fail logs the error and surfaces it as a single notification.
func (c *Console) fail(err error) {
	c.log.Warnw("operation failed", "error", err)
	c.notifier.Error(err.Error())
}

func errInFlight(op Op) error {
	return fmt.Errorf("%s operation already in flight", op)
}
