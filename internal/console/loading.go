package console

import "sync"

// Op identifies one kind of in-flight operation. Flags are independent:
// different kinds may run concurrently, the same kind may not.
type Op string

const (
	OpProfessor Op = "professor"
	OpStudent   Op = "student"
	OpSession   Op = "session"
	OpReport    Op = "report"
)

// loadingFlags maps operation kind to an in-flight bit. A flag is true
// exactly while its operation has not yet resolved or failed.
type loadingFlags struct {
	mu       sync.Mutex
	inFlight map[Op]bool
}

func newLoadingFlags() *loadingFlags {
	return &loadingFlags{inFlight: make(map[Op]bool)}
}

// begin sets the flag, reporting false when the operation is already in
// flight. Callers must reject the duplicate submission in that case.
func (l *loadingFlags) begin(op Op) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight[op] {
		return false
	}
	l.inFlight[op] = true
	return true
}

// end clears the flag on every outcome.
func (l *loadingFlags) end(op Op) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, op)
}

// snapshot copies the current flags for the state view.
func (l *loadingFlags) snapshot() map[Op]bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Op]bool, 4)
	for _, op := range []Op{OpProfessor, OpStudent, OpSession, OpReport} {
		out[op] = l.inFlight[op]
	}
	return out
}
