// Package roster reconciles the enrollee roster with a session's sparse
// attendance records into a full presence report.
package roster

import "presence/internal/remote"

// Entry classifies one enrollee for a session.
type Entry struct {
	Student remote.Student `json:"student"`
	Present bool           `json:"present"`
}

// Report is the derived presence list for a session. It is a pure projection
// of its inputs and is never stored.
type Report struct {
	Entries []Entry `json:"entries"`
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
}

// Compute builds the presence report: an enrollee is present iff its id
// appears among the attendance records. Duplicate records and records
// referencing unknown ids have no effect. Enrollee order is preserved.
func Compute(students []remote.Student, records []remote.AttendanceRecord) Report {
	attended := make(map[int64]struct{}, len(records))
	for _, rec := range records {
		attended[rec.StudentID] = struct{}{}
	}

	report := Report{Entries: make([]Entry, 0, len(students))}
	for _, s := range students {
		_, present := attended[s.ID]
		report.Entries = append(report.Entries, Entry{Student: s, Present: present})
		if present {
			report.Present++
		}
	}
	report.Absent = len(students) - report.Present
	return report
}
