package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) table() *studentTable {
	return repo.db.student
}

// journal registers an undo step on the transaction in `exec`, if any.
func (repo *studentRepository) journal(exec []core.DBExecutor, undo func()) {
	if len(exec) > 0 {
		if t, ok := exec[0].(*tx); ok {
			t.undo = append(t.undo, undo)
		}
	}
}

func (repo *studentRepository) snapshot(rec *studentRecord) student.Student {
	std := rec.std.Clone()
	std.UpdatedAt = time.Time{}
	for _, at := range rec.graded {
		if at.After(std.UpdatedAt) {
			std.UpdatedAt = at
		}
	}
	return std
}

func (repo *studentRepository) BeginTx(context.Context) (core.DBTransactor, error) {
	if repo.db.FailWith != nil {
		return nil, repo.db.FailWith
	}
	return &tx{db: repo.db}, nil
}

func (repo *studentRepository) Ping(context.Context) error {
	return repo.db.FailWith
}

func (repo *studentRepository) StudentExists(_ context.Context, rollNumber string, _ ...core.DBExecutor) (bool, error) {
	if repo.db.FailWith != nil {
		return false, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.RLock()
	defer tbl.RUnlock()

	_, ok := tbl.table[rollNumber]
	return ok, nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	if repo.db.FailWith != nil {
		return student.Student{}, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.Lock()
	defer tbl.Unlock()

	if _, ok := tbl.table[std.RollNumber]; ok {
		return student.Student{}, student.ErrDuplicateRollNumber
	}
	tbl.pkCount++
	std.ID = tbl.pkCount
	std.CreatedAt = time.Now().UTC()
	std = std.Clone()
	tbl.table[std.RollNumber] = &studentRecord{std: std, graded: make(map[string]time.Time)}
	repo.journal(exec, func() { delete(tbl.table, std.RollNumber) })
	return std.Clone(), nil
}

func (repo *studentRepository) GetStudent(_ context.Context, rollNumber string, _ ...core.DBExecutor) (student.Student, error) {
	if repo.db.FailWith != nil {
		return student.Student{}, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.RLock()
	defer tbl.RUnlock()

	if rec, ok := tbl.table[rollNumber]; ok {
		return repo.snapshot(rec), nil
	}
	return student.Student{}, student.ErrStudentNotFound
}

func (repo *studentRepository) QueryStudents(context.Context, ...core.DBExecutor) ([]student.Student, error) {
	if repo.db.FailWith != nil {
		return nil, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.RLock()
	defer tbl.RUnlock()

	students := make([]student.Student, 0, len(tbl.table))
	for _, rec := range tbl.table {
		students = append(students, repo.snapshot(rec))
	}
	student.SortStudents(students, student.DefaultOrdering)
	return students, nil
}

func (repo *studentRepository) DeleteStudent(_ context.Context, rollNumber string, exec ...core.DBExecutor) error {
	if repo.db.FailWith != nil {
		return repo.db.FailWith
	}
	tbl := repo.table()
	tbl.Lock()
	defer tbl.Unlock()

	rec, ok := tbl.table[rollNumber]
	if !ok {
		return student.ErrStudentNotFound
	}
	delete(tbl.table, rollNumber)
	repo.journal(exec, func() { tbl.table[rollNumber] = rec })
	return nil
}

func (repo *studentRepository) UpsertGrade(_ context.Context, rollNumber, subject string, grade float64, exec ...core.DBExecutor) (bool, error) {
	if repo.db.FailWith != nil {
		return false, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.Lock()
	defer tbl.Unlock()

	rec, ok := tbl.table[rollNumber]
	if !ok {
		return false, student.ErrStudentNotFound
	}
	prev, existed := rec.std.Grades[subject]
	prevAt := rec.graded[subject]
	rec.std.SetGrade(subject, grade)
	rec.graded[subject] = time.Now().UTC()
	repo.journal(exec, func() {
		if existed {
			rec.std.Grades[subject] = prev
			rec.graded[subject] = prevAt
		} else {
			delete(rec.std.Grades, subject)
			delete(rec.graded, subject)
		}
	})
	return !existed, nil
}

func (repo *studentRepository) DeleteGrade(_ context.Context, rollNumber, subject string, exec ...core.DBExecutor) error {
	if repo.db.FailWith != nil {
		return repo.db.FailWith
	}
	tbl := repo.table()
	tbl.Lock()
	defer tbl.Unlock()

	rec, ok := tbl.table[rollNumber]
	if !ok {
		return student.ErrStudentNotFound
	}
	prev, ok := rec.std.Grades[subject]
	if !ok {
		return student.ErrGradeNotFound
	}
	prevAt := rec.graded[subject]
	delete(rec.std.Grades, subject)
	delete(rec.graded, subject)
	repo.journal(exec, func() {
		rec.std.Grades[subject] = prev
		rec.graded[subject] = prevAt
	})
	return nil
}

func (repo *studentRepository) GetStatistics(context.Context, ...core.DBExecutor) (student.Statistics, error) {
	if repo.db.FailWith != nil {
		return student.Statistics{}, repo.db.FailWith
	}
	tbl := repo.table()
	tbl.RLock()
	defer tbl.RUnlock()

	var stats student.Statistics
	var total float64
	for _, rec := range tbl.table {
		stats.TotalStudents++
		for _, g := range rec.std.Grades {
			stats.TotalGrades++
			total += g
		}
	}
	if stats.TotalGrades > 0 {
		stats.OverallAverage = total / float64(stats.TotalGrades)
	}
	return stats, nil
}
