package view

// ModalKind enumerates the mutually exclusive modal surfaces. Representing
// them as one tagged value makes simultaneous modals unrepresentable.
type ModalKind string

const (
	ModalNone       ModalKind = "none"
	ModalConfirming ModalKind = "confirming"
	ModalAttendance ModalKind = "attendance"
	ModalCapturing  ModalKind = "capturing"
)

// Modal is the current modal surface. SessionID is meaningful only when
// Kind is ModalAttendance.
type Modal struct {
	Kind      ModalKind `json:"kind"`
	SessionID int64     `json:"session_id,omitempty"`
}

// None reports whether no modal is open.
func (m Modal) None() bool { return m.Kind == ModalNone || m.Kind == "" }
