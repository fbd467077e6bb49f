package attendance

import (
	"strconv"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

type (
	// Status is the pair of flags the backend stores for a student and day.
	Status struct {
		IsAbsent  bool `json:"isAbsent"`
		IsExcused bool `json:"isExcused"`
	}

	// Entry is one roster student on a sheet.
	Entry struct {
		StudentID  int    `json:"studentId"`
		Name       string `json:"name"`
		RollNumber string `json:"rollNumber,omitempty"`
		RecordID   int    `json:"recordId,omitempty"`
		IsAbsent   bool   `json:"isAbsent"`
		IsExcused  bool   `json:"isExcused"`
		Dirty      bool   `json:"dirty"`
		// Server holds the flags last confirmed by the backend, nil when nothing is recorded yet.
		Server *Status `json:"server,omitempty"`
	}

	// Sheet is the merged view of a class roster and its attendance rows for one day.
	// Edits only touch the sheet; nothing reaches the backend before Reconciler.Save.
	// A Sheet is not safe for concurrent use.
	Sheet struct {
		ClassID      int      `json:"classId"`
		Day          core.Day `json:"date"`
		Entries      []Entry  `json:"entries"`
		Unmatched    []string `json:"unmatched,omitempty"` // pasted names that match no roster student
		Initializing bool     `json:"initializing,omitempty"`
	}

	Update struct {
		RecordID int
		Input    Input
	}

	// Plan is the write set computed from a sheet.
	Plan struct {
		Updates []Update
		Creates []Input
		Skipped int
	}
)

// Recorded reports whether the backend holds a row for the entry.
func (e Entry) Recorded() bool { return e.RecordID > 0 && e.Server != nil }

// InSync reports whether the staged flags equal the last server values.
func (e Entry) InSync() bool {
	return e.Server != nil && e.Server.IsAbsent == e.IsAbsent && e.Server.IsExcused == e.IsExcused
}

func (e Entry) label() string {
	if e.Name != "" {
		return e.Name
	}
	return "student " + strconv.Itoa(e.StudentID)
}

// NewSheet merges roster and rows: one entry per roster student with a valid id, in roster order,
// carrying the matching row's flags, or "not yet recorded" defaults.
func NewSheet(classID int, day core.Day, roster []student.Student, rows []Record) *Sheet {
	byStudent := make(map[int]Record, len(rows))
	for _, r := range rows {
		if r.ID > 0 && r.StudentID > 0 {
			byStudent[r.StudentID] = r
		}
	}

	sheet := &Sheet{ClassID: classID, Day: day, Entries: make([]Entry, 0, len(roster))}
	seen := make(map[int]bool, len(roster))
	for _, s := range roster {
		if s.ID <= 0 || seen[s.ID] {
			continue
		}
		seen[s.ID] = true

		e := Entry{StudentID: s.ID, Name: s.Name, RollNumber: s.RollNumber}
		if r, ok := byStudent[s.ID]; ok {
			e.applyRecord(r)
		}
		sheet.Entries = append(sheet.Entries, e)
	}
	return sheet
}

// applyRecord replaces the staged values with server truth.
func (e *Entry) applyRecord(r Record) {
	e.RecordID = r.ID
	e.IsAbsent = r.IsAbsent
	e.IsExcused = r.IsExcused
	e.Server = &Status{IsAbsent: r.IsAbsent, IsExcused: r.IsExcused}
	e.Dirty = false
}

func (s *Sheet) index(studentID int) int {
	for i := range s.Entries {
		if s.Entries[i].StudentID == studentID {
			return i
		}
	}
	return -1
}

func (s *Sheet) Entry(studentID int) (Entry, bool) {
	if i := s.index(studentID); i >= 0 {
		return s.Entries[i], true
	}
	return Entry{}, false
}

func (s *Sheet) edit(studentID int, fn func(e *Entry)) error {
	if studentID <= 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "studentId", Error: "a valid studentId is required"})
	}
	i := s.index(studentID)
	if i < 0 {
		return core.ErrNotFound
	}
	fn(&s.Entries[i])
	s.Entries[i].Dirty = true
	return nil
}

// Toggle flips the absence flag of a student and marks the entry dirty.
// A student marked present again loses the excused flag.
func (s *Sheet) Toggle(studentID int) error {
	return s.edit(studentID, func(e *Entry) {
		e.IsAbsent = !e.IsAbsent
		if !e.IsAbsent {
			e.IsExcused = false
		}
	})
}

func (s *Sheet) SetAbsent(studentID int, absent bool) error {
	return s.edit(studentID, func(e *Entry) {
		e.IsAbsent = absent
		if !absent {
			e.IsExcused = false
		}
	})
}

// SetExcused marks an absence as excused; excusing a student also marks them absent.
func (s *Sheet) SetExcused(studentID int, excused bool) error {
	return s.edit(studentID, func(e *Entry) {
		e.IsExcused = excused
		if excused {
			e.IsAbsent = true
		}
	})
}

func (s *Sheet) Dirty() []Entry {
	var out []Entry
	for _, e := range s.Entries {
		if e.Dirty {
			out = append(out, e)
		}
	}
	return out
}

// Counts returns the number of present, absent and excused students.
func (s *Sheet) Counts() (present, absent, excused int) {
	for _, e := range s.Entries {
		switch {
		case e.IsExcused:
			excused++
			absent++
		case e.IsAbsent:
			absent++
		default:
			present++
		}
	}
	return present, absent, excused
}

// candidates are the dirty entries, or when none is dirty, the entries out of sync with the backend.
// A dirty entry toggled back to its recorded value needs no write.
func (s *Sheet) candidates() []Entry {
	dirty := s.Dirty()
	var out []Entry
	for _, e := range s.Entries {
		if len(dirty) > 0 && !e.Dirty {
			continue
		}
		if !e.InSync() {
			out = append(out, e)
		}
	}
	return out
}

// Plan partitions the candidates into updates (known record id) and creates (valid student id only).
// Entries with neither, and the unmatched pasted names, are only counted as skipped.
func (s *Sheet) Plan() Plan {
	var p Plan
	for _, e := range s.candidates() {
		in := Input{StudentID: e.StudentID, ClassID: s.ClassID, Date: s.Day, IsAbsent: e.IsAbsent, IsExcused: e.IsExcused}
		switch {
		case e.RecordID > 0:
			p.Updates = append(p.Updates, Update{RecordID: e.RecordID, Input: in})
		case e.StudentID > 0:
			p.Creates = append(p.Creates, in)
		default:
			p.Skipped++
		}
	}
	p.Skipped += len(s.Unmatched)
	return p
}

func (p Plan) Empty() bool { return len(p.Updates) == 0 && len(p.Creates) == 0 }

// Records returns the sheet as attendance rows (for exports). Unrecorded entries have a zero ID.
func (s *Sheet) Records() []Record {
	out := make([]Record, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, Record{
			ID:        e.RecordID,
			StudentID: e.StudentID,
			ClassID:   s.ClassID,
			Date:      s.Day,
			IsAbsent:  e.IsAbsent,
			IsExcused: e.IsExcused,
		})
	}
	return out
}

// Clone returns a deep copy.
func (s *Sheet) Clone() *Sheet {
	c := *s
	c.Entries = make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		if e.Server != nil {
			srv := *e.Server
			e.Server = &srv
		}
		c.Entries[i] = e
	}
	c.Unmatched = append([]string(nil), s.Unmatched...)
	return &c
}
