package student

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
)

type (
	// Repository persists students and grades.
	// The optional exec lets several calls share the transaction returned by BeginTx.
	Repository interface {
		BeginTx(ctx context.Context) (core.DBTransactor, error)
		Ping(ctx context.Context) error
		StudentExists(ctx context.Context, rollNumber string, exec ...core.DBExecutor) (bool, error)
		CreateStudent(ctx context.Context, std Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, rollNumber string, exec ...core.DBExecutor) (Student, error)
		// QueryStudents returns every student with their grades, ordered by name then roll number.
		QueryStudents(ctx context.Context, exec ...core.DBExecutor) ([]Student, error)
		// DeleteStudent deletes the student and all their grades.
		DeleteStudent(ctx context.Context, rollNumber string, exec ...core.DBExecutor) error
		// UpsertGrade inserts or replaces the grade of (rollNumber, subject); created reports an insert.
		UpsertGrade(ctx context.Context, rollNumber, subject string, grade float64, exec ...core.DBExecutor) (created bool, err error)
		DeleteGrade(ctx context.Context, rollNumber, subject string, exec ...core.DBExecutor) error
		GetStatistics(ctx context.Context, exec ...core.DBExecutor) (Statistics, error)
	}

	// Tracker is the single gateway to student data.
	// Mutations are serialized and run in one transaction each; a mirror of all students
	// (rebuilt from the store on creation) serves reads.
	Tracker struct {
		mu     sync.RWMutex
		repo   Repository
		log    core.Logger
		mirror map[string]Student // {roll_number: Student}
	}
)

// NewTracker creates a Tracker and loads its mirror from `repo`.
func NewTracker(ctx context.Context, repo Repository, logger core.Logger) (*Tracker, error) {
	t := &Tracker{repo: repo, log: logger}
	if err := t.Reload(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// Reload rebuilds the mirror from the store.
// The write lock is held across the read so that no mutation commits in between.
func (t *Tracker) Reload(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	students, err := t.repo.QueryStudents(ctx)
	if err != nil {
		return errors.Wrap(err, "loading students")
	}

	mirror := make(map[string]Student, len(students))
	for _, std := range students {
		mirror[std.RollNumber] = std
	}
	t.mirror = mirror
	return nil
}

// inTx runs fn in a transaction, committed only when fn succeeds.
func (t *Tracker) inTx(ctx context.Context, fn func(tx core.DBExecutor) error) error {
	tx, err := t.repo.BeginTx(ctx)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }() // no-op once committed

	if err = fn(tx); err != nil {
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// storageFailure logs `err` and hides it behind a generic message.
func (t *Tracker) storageFailure(op string, err error) Result {
	t.log.Error("storage failure: "+op, errors.Wrap(err, op))
	return failed(ErrStorageFailure, MsgStorageFailure)
}

func (t *Tracker) AddStudent(ctx context.Context, name, rollNumber string) Result {
	std := New(name, rollNumber)
	if res := checkStudent(std.Name, std.RollNumber); res != nil {
		return *res
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.inTx(ctx, func(tx core.DBExecutor) error {
		exists, err := t.repo.StudentExists(ctx, std.RollNumber, tx)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateRollNumber
		}
		std, err = t.repo.CreateStudent(ctx, std, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateRollNumber) {
			return failed(ErrDuplicateRollNumber, MsgDuplicateRoll)
		}
		return t.storageFailure("adding student", err)
	}

	t.mirror[std.RollNumber] = std
	return succeeded(MsgStudentAdded)
}

// AddGrade adds a grade, replacing the existing one for the same subject.
func (t *Tracker) AddGrade(ctx context.Context, rollNumber, subject string, grade float64) Result {
	return t.upsertGrade(ctx, rollNumber, subject, grade, "adding grade", false)
}

// UpdateGrade sets the grade of a subject, creating it when absent.
func (t *Tracker) UpdateGrade(ctx context.Context, rollNumber, subject string, grade float64) Result {
	return t.upsertGrade(ctx, rollNumber, subject, grade, "updating grade", true)
}

func (t *Tracker) upsertGrade(ctx context.Context, rollNumber, subject string, grade float64, op string, update bool) Result {
	rollNumber, subject = core.CleanString(rollNumber), core.CleanString(subject)
	if res := checkGrade(rollNumber, subject, grade); res != nil {
		return *res
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var created bool
	var std Student
	err := t.inTx(ctx, func(tx core.DBExecutor) error {
		exists, err := t.repo.StudentExists(ctx, rollNumber, tx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrStudentNotFound
		}
		if created, err = t.repo.UpsertGrade(ctx, rollNumber, subject, grade, tx); err != nil {
			return err
		}
		std, err = t.repo.GetStudent(ctx, rollNumber, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return failed(ErrStudentNotFound, MsgStudentNotFound)
		}
		return t.storageFailure(op, err)
	}

	t.mirror[rollNumber] = std
	if created && !update {
		return succeeded(MsgGradeAdded)
	}
	return succeeded(MsgGradeUpdated)
}

func (t *Tracker) DeleteGrade(ctx context.Context, rollNumber, subject string) Result {
	rollNumber, subject = core.CleanString(rollNumber), core.CleanString(subject)
	if res := checkGradeKey(rollNumber, subject); res != nil {
		return *res
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var std Student
	err := t.inTx(ctx, func(tx core.DBExecutor) error {
		exists, err := t.repo.StudentExists(ctx, rollNumber, tx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrStudentNotFound
		}
		if err = t.repo.DeleteGrade(ctx, rollNumber, subject, tx); err != nil {
			return err
		}
		std, err = t.repo.GetStudent(ctx, rollNumber, tx)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrStudentNotFound):
			return failed(ErrStudentNotFound, MsgStudentNotFound)
		case errors.Is(err, ErrGradeNotFound):
			return failed(ErrGradeNotFound, MsgGradeNotFound)
		}
		return t.storageFailure("deleting grade", err)
	}

	t.mirror[rollNumber] = std
	return succeeded(MsgGradeDeleted)
}

// DeleteStudent deletes a student along with all their grades.
func (t *Tracker) DeleteStudent(ctx context.Context, rollNumber string) Result {
	rollNumber = core.CleanString(rollNumber)
	if res := checkRollNumber(rollNumber); res != nil {
		return *res
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	err := t.inTx(ctx, func(tx core.DBExecutor) error {
		return t.repo.DeleteStudent(ctx, rollNumber, tx)
	})
	if err != nil {
		if errors.Is(err, ErrStudentNotFound) {
			return failed(ErrStudentNotFound, MsgStudentNotFound)
		}
		return t.storageFailure("deleting student", err)
	}

	delete(t.mirror, rollNumber)
	return succeeded(MsgStudentDeleted)
}

// GetStudent looks a student up, reading through to the store on a mirror miss.
// Storage errors are logged and reported as not found.
func (t *Tracker) GetStudent(ctx context.Context, rollNumber string) (Student, bool) {
	rollNumber = core.CleanString(rollNumber)
	if rollNumber == "" {
		return Student{}, false
	}

	t.mu.RLock()
	std, ok := t.mirror[rollNumber]
	t.mu.RUnlock()
	if ok {
		return std.Clone(), true
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if std, ok = t.mirror[rollNumber]; ok { // added while waiting for the lock
		return std.Clone(), true
	}
	std, err := t.repo.GetStudent(ctx, rollNumber)
	if err != nil {
		if !errors.Is(err, ErrStudentNotFound) {
			t.log.Error("storage failure: getting student", errors.Wrap(err, "getting student"))
		}
		return Student{}, false
	}
	t.mirror[rollNumber] = std
	return std.Clone(), true
}

// GetAllStudents returns every student ordered by name.
func (t *Tracker) GetAllStudents(ctx context.Context) []Student {
	return t.QueryStudents(ctx, nil)
}

// QueryStudents returns every student sorted by `orderings` (name by default).
func (t *Tracker) QueryStudents(_ context.Context, orderings []core.DBOrdering) []Student {
	t.mu.RLock()
	students := make([]Student, 0, len(t.mirror))
	for _, std := range t.mirror {
		students = append(students, std.Clone())
	}
	t.mu.RUnlock()

	ords := make([]core.DBOrdering, 0, len(orderings)+len(DefaultOrdering))
	ords = append(ords, orderings...)
	SortStudents(students, append(ords, DefaultOrdering...))
	return students
}

// GetStatistics returns aggregates computed by the store.
// On failure, zero statistics are returned along with an ErrStorageFailure error.
func (t *Tracker) GetStatistics(ctx context.Context) (Statistics, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats, err := t.repo.GetStatistics(ctx)
	if err != nil {
		t.log.Error("storage failure: getting statistics", errors.Wrap(err, "getting statistics"))
		return Statistics{}, errors.Wrap(ErrStorageFailure, "getting statistics")
	}
	stats.OverallAverage = core.Round(stats.OverallAverage, 2)
	return stats, nil
}

// Ping checks that the store is reachable.
func (t *Tracker) Ping(ctx context.Context) error {
	return t.repo.Ping(ctx)
}
