package attendance

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/student"
)

const defaultCreateConcurrency = 6

var errInvalidClass = core.NewValidationError(nil, core.FieldError{Field: "classId", Error: "a valid classId is required"})

type (
	// RosterSource lists the students of a class.
	RosterSource interface {
		ListByClass(ctx context.Context, classID int) ([]student.Student, error)
	}

	ReconcilerOptions struct {
		CreateConcurrency int           // creates in flight during Save and initialization
		RequestDelay      time.Duration // pause between consecutive creates
	}

	SaveResult struct {
		Updated  int            `json:"updated"`
		Created  int            `json:"created"`
		Skipped  int            `json:"skipped"`
		Failed   int            `json:"failed"`
		Failures []core.Failure `json:"failures,omitempty"`
	}

	// Reconciler merges rosters with attendance rows and writes back the minimal set of changes.
	Reconciler struct {
		roster RosterSource
		svc    *Service
		logger core.Logger
		opts   ReconcilerOptions

		mu           sync.Mutex
		initializing map[string]chan struct{} // class|day -> closed when initialization ends
		wg           sync.WaitGroup
	}
)

func NewReconciler(roster RosterSource, svc *Service, logger core.Logger, opts ReconcilerOptions) *Reconciler {
	if opts.CreateConcurrency <= 0 {
		opts.CreateConcurrency = defaultCreateConcurrency
	}
	return &Reconciler{
		roster:       roster,
		svc:          svc,
		logger:       logger,
		opts:         opts,
		initializing: make(map[string]chan struct{}),
	}
}

func guardKey(classID int, day core.Day) string {
	return strconv.Itoa(classID) + "|" + day.Key()
}

// Load builds the sheet of a class for a day.
// When the backend has no attendance for that class and day (404), one present row per roster
// student is created in the background, at most once at a time per class and day.
func (r *Reconciler) Load(ctx context.Context, classID int, day core.Day) (*Sheet, error) {
	if classID <= 0 {
		return nil, errInvalidClass
	}
	if day.IsZero() {
		day = core.Today()
	}

	roster, err := r.roster.ListByClass(ctx, classID)
	if err != nil {
		return nil, errors.Wrap(err, "loading roster")
	}

	rows, err := r.svc.ListByClassDate(ctx, classID, day)
	switch {
	case err == nil:
		return NewSheet(classID, day, roster, rows), nil
	case core.IsNotFound(err):
		sheet := NewSheet(classID, day, roster, nil)
		sheet.Initializing = r.initialize(ctx, classID, day, sheet.Entries)
		return sheet, nil
	default:
		return nil, errors.Wrap(err, "loading attendance")
	}
}

// initialize starts the background creation of present rows; it returns false when one is already running.
// The creates keep the values of ctx (the caller's API token) but outlive its cancellation.
func (r *Reconciler) initialize(ctx context.Context, classID int, day core.Day, entries []Entry) bool {
	key := guardKey(classID, day)

	r.mu.Lock()
	if _, running := r.initializing[key]; running {
		r.mu.Unlock()
		return true
	}
	done := make(chan struct{})
	r.initializing[key] = done
	r.wg.Add(1)
	r.mu.Unlock()

	inputs := make([]Input, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, Input{StudentID: e.StudentID, ClassID: classID, Date: day})
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer func() {
			r.mu.Lock()
			delete(r.initializing, key)
			r.mu.Unlock()
			close(done)
			r.wg.Done()
		}()

		if len(inputs) == 0 {
			return
		}
		created := make([]Record, len(inputs))
		failures := core.RunBatched(ctx, len(inputs), r.opts.CreateConcurrency, r.opts.RequestDelay,
			func(i int) string { return "student " + strconv.Itoa(inputs[i].StudentID) },
			func(ctx context.Context, i int) error {
				rec, err := r.svc.repo.Create(ctx, inputs[i])
				if err != nil && errors.Cause(err) != core.ErrEmptyResponse {
					return err
				}
				created[i] = rec
				return nil
			},
		)
		r.svc.records.Upsert(keepRecorded(created)...)
		if len(failures) > 0 && r.logger != nil {
			bErr := &core.BatchError{Op: fmt.Sprintf("initializing attendance of class %d on %s", classID, day), Total: len(inputs), Failures: failures}
			r.logger.Warn(bErr.Error(), bErr)
		}
	}()
	return true
}

// Initializing reports whether rows are being initialized for that class and day.
func (r *Reconciler) Initializing(classID int, day core.Day) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.initializing[guardKey(classID, day)]
	return ok
}

// Wait blocks until every background initialization has ended.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

func (r *Reconciler) waitFor(ctx context.Context, classID int, day core.Day) error {
	r.mu.Lock()
	done, ok := r.initializing[guardKey(classID, day)]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Save writes the sheet's plan: all updates in parallel, then creates with bounded concurrency.
// Before creating, the rows already on the backend for that class and day are fetched again so a
// student never gets a second row; those creates become updates.
// Successful writes are merged back into the sheet as server truth. On partial failure the
// result is still populated and the error is a *core.BatchError.
func (r *Reconciler) Save(ctx context.Context, sheet *Sheet) (SaveResult, error) {
	if sheet == nil || sheet.ClassID <= 0 {
		return SaveResult{}, errInvalidClass
	}

	plan := sheet.Plan()
	res := SaveResult{Skipped: plan.Skipped}
	if plan.Empty() {
		return res, nil
	}

	if len(plan.Creates) > 0 {
		var err error
		if plan, err = r.dedupe(ctx, sheet, plan); err != nil {
			return res, err
		}
	}

	labels := make(map[int]string, len(sheet.Entries))
	for _, e := range sheet.Entries {
		labels[e.StudentID] = e.label()
	}

	updated := make([]Record, len(plan.Updates))
	failures := core.RunBatched(ctx, len(plan.Updates), 0, 0,
		func(i int) string { return labels[plan.Updates[i].Input.StudentID] },
		func(ctx context.Context, i int) error {
			u := plan.Updates[i]
			rec, err := r.svc.repo.Update(ctx, u.RecordID, u.Input)
			if err != nil {
				if errors.Cause(err) != core.ErrEmptyResponse {
					return err
				}
				rec = Record{ID: u.RecordID, StudentID: u.Input.StudentID, ClassID: u.Input.ClassID, Date: u.Input.Date,
					IsAbsent: u.Input.IsAbsent, IsExcused: u.Input.IsExcused}
			}
			updated[i] = rec
			return nil
		},
	)

	created := make([]Record, len(plan.Creates))
	unconfirmed := make([]bool, len(plan.Creates)) // created, but the backend sent no row back
	failures = append(failures, core.RunBatched(ctx, len(plan.Creates), r.opts.CreateConcurrency, r.opts.RequestDelay,
		func(i int) string { return labels[plan.Creates[i].StudentID] },
		func(ctx context.Context, i int) error {
			rec, err := r.svc.repo.Create(ctx, plan.Creates[i])
			if err != nil {
				if errors.Cause(err) != core.ErrEmptyResponse {
					return err
				}
				unconfirmed[i] = true
				return nil
			}
			created[i] = rec
			return nil
		},
	)...)

	for _, rec := range keepRecorded(updated) {
		res.Updated++
		sheet.merge(rec)
	}
	for i, rec := range created {
		switch {
		case rec.ID > 0:
			res.Created++
			sheet.merge(rec)
		case unconfirmed[i]:
			// stays out of sync: the next save looks the row up instead of creating it again
			res.Created++
			if j := sheet.index(plan.Creates[i].StudentID); j >= 0 {
				sheet.Entries[j].Dirty = false
			}
		}
	}
	r.svc.records.Upsert(keepRecorded(updated)...)
	r.svc.records.Upsert(keepRecorded(created)...)

	if len(failures) == 0 {
		r.svc.records.SetError("")
		return res, nil
	}
	res.Failed = len(failures)
	res.Failures = failures
	bErr := &core.BatchError{
		Op:       fmt.Sprintf("saving attendance of class %d on %s", sheet.ClassID, sheet.Day),
		Total:    len(plan.Updates) + len(plan.Creates),
		Failures: failures,
	}
	r.svc.records.SetError(core.Message(bErr))
	if r.logger != nil {
		r.logger.Warn(bErr.Error(), bErr)
	}
	return res, bErr
}

// dedupe turns creates for students that already have a row on the backend into updates.
func (r *Reconciler) dedupe(ctx context.Context, sheet *Sheet, plan Plan) (Plan, error) {
	if err := r.waitFor(ctx, sheet.ClassID, sheet.Day); err != nil {
		return plan, errors.Wrap(err, "waiting for initialization")
	}
	rows, err := r.svc.ListByClassDate(ctx, sheet.ClassID, sheet.Day)
	if err != nil && !core.IsNotFound(err) {
		return plan, errors.Wrap(err, "checking existing attendance")
	}
	existing := make(map[int]Record, len(rows))
	for _, row := range rows {
		existing[row.StudentID] = row
	}

	creates := plan.Creates[:0:0]
	for _, in := range plan.Creates {
		row, ok := existing[in.StudentID]
		if !ok || row.ID <= 0 {
			creates = append(creates, in)
			continue
		}
		// the entry now knows its record, whatever happens next
		if i := sheet.index(in.StudentID); i >= 0 {
			sheet.Entries[i].RecordID = row.ID
			sheet.Entries[i].Server = &Status{IsAbsent: row.IsAbsent, IsExcused: row.IsExcused}
		}
		if row.IsAbsent == in.IsAbsent && row.IsExcused == in.IsExcused {
			sheet.merge(row)
			continue
		}
		plan.Updates = append(plan.Updates, Update{RecordID: row.ID, Input: in})
	}
	plan.Creates = creates
	return plan, nil
}

// merge applies a server row to the matching entry.
func (s *Sheet) merge(rec Record) {
	if i := s.index(rec.StudentID); i >= 0 {
		s.Entries[i].applyRecord(rec)
	}
}

func keepRecorded(records []Record) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.ID > 0 && rec.StudentID > 0 {
			out = append(out, rec)
		}
	}
	return out
}
