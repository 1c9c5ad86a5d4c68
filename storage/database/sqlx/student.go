package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

var errNotSqlxExecutor = errors.New("executor does not come from sqlx")

type (
	studentRepository struct {
		db *sqlx.DB
	}

	studentRow struct {
		ID         int       `db:"id"`
		Name       string    `db:"name"`
		RollNumber string    `db:"roll_number"`
		CreatedAt  time.Time `db:"created_at"`
	}

	gradeRow struct {
		RollNumber string    `db:"roll_number"`
		Subject    string    `db:"subject"`
		Grade      float64   `db:"grade"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  null.Time `db:"updated_at"`
	}
)

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo studentRepository) getExec(exec []core.DBExecutor) (sqlx.ExtContext, error) {
	if len(exec) > 0 {
		ext, ok := exec[0].(sqlx.ExtContext)
		if !ok {
			return nil, errNotSqlxExecutor
		}
		return ext, nil
	}
	return repo.db, nil
}

func (repo studentRepository) toStudent(row studentRow, grades []gradeRow) student.Student {
	std := student.Student{
		ID:         row.ID,
		Name:       row.Name,
		RollNumber: row.RollNumber,
		Grades:     make(map[string]float64, len(grades)),
		CreatedAt:  row.CreatedAt.UTC(),
	}
	for _, g := range grades {
		std.Grades[g.Subject] = g.Grade
		changed := g.CreatedAt
		if g.UpdatedAt.Valid {
			changed = g.UpdatedAt.Time
		}
		if changed.After(std.UpdatedAt) {
			std.UpdatedAt = changed.UTC()
		}
	}
	return std
}

// trapNoRowsErr maps sql "no rows" err to student.ErrStudentNotFound
func (repo studentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return student.ErrStudentNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo studentRepository) BeginTx(ctx context.Context) (core.DBTransactor, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	return tx, nil
}

func (repo studentRepository) Ping(ctx context.Context) error {
	return errors.Wrap(repo.db.PingContext(ctx), "pinging database")
}

func (repo studentRepository) StudentExists(ctx context.Context, rollNumber string, exec ...core.DBExecutor) (bool, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return false, err
	}

	var exists bool
	q := ext.Rebind("SELECT EXISTS (SELECT 1 FROM students WHERE roll_number = ?)")
	if err = sqlx.GetContext(ctx, ext, &exists, q, rollNumber); err != nil {
		return false, errors.Wrap(err, "checking student existence")
	}
	return exists, nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return student.Student{}, err
	}

	row := studentRow{
		Name:       std.Name,
		RollNumber: std.RollNumber,
		CreatedAt:  time.Now().UTC(),
	}
	q := ext.Rebind("INSERT INTO students (name, roll_number, created_at) VALUES (?, ?, ?) RETURNING id")
	if err = sqlx.GetContext(ctx, ext, &row.ID, q, row.Name, row.RollNumber, row.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return student.Student{}, student.ErrDuplicateRollNumber
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return repo.toStudent(row, nil), nil
}

func (repo studentRepository) GetStudent(ctx context.Context, rollNumber string, exec ...core.DBExecutor) (student.Student, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return student.Student{}, err
	}

	var row studentRow
	q := ext.Rebind("SELECT id, name, roll_number, created_at FROM students WHERE roll_number = ?")
	if err = sqlx.GetContext(ctx, ext, &row, q, rollNumber); err != nil {
		return student.Student{}, repo.trapNoRowsErr(err, "finding student by roll number")
	}

	var grades []gradeRow
	q = ext.Rebind(`SELECT roll_number, subject, grade, created_at, updated_at FROM grades
		WHERE roll_number = ? ORDER BY subject`)
	if err = sqlx.SelectContext(ctx, ext, &grades, q, rollNumber); err != nil {
		return student.Student{}, errors.Wrap(err, "querying student grades")
	}
	return repo.toStudent(row, grades), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, exec ...core.DBExecutor) ([]student.Student, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return nil, err
	}

	var rows []studentRow
	q := "SELECT id, name, roll_number, created_at FROM students ORDER BY name, roll_number"
	if err = sqlx.SelectContext(ctx, ext, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}

	var grades []gradeRow
	q = "SELECT roll_number, subject, grade, created_at, updated_at FROM grades ORDER BY roll_number, subject"
	if err = sqlx.SelectContext(ctx, ext, &grades, q); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	byRoll := make(map[string][]gradeRow, len(rows))
	for _, g := range grades {
		byRoll[g.RollNumber] = append(byRoll[g.RollNumber], g)
	}

	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, repo.toStudent(row, byRoll[row.RollNumber]))
	}
	return students, nil
}

// DeleteStudent deletes grades first, so it does not rely on the engine cascading.
// Callers must pass a transaction to make both deletions atomic.
func (repo studentRepository) DeleteStudent(ctx context.Context, rollNumber string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}

	if _, err = ext.ExecContext(ctx, ext.Rebind("DELETE FROM grades WHERE roll_number = ?"), rollNumber); err != nil {
		return errors.Wrap(err, "deleting student grades")
	}
	res, err := ext.ExecContext(ctx, ext.Rebind("DELETE FROM students WHERE roll_number = ?"), rollNumber)
	if err != nil {
		return errors.Wrap(err, "deleting student")
	}
	return repo.checkAffected(res, student.ErrStudentNotFound, "deleting student")
}

func (repo studentRepository) UpsertGrade(ctx context.Context, rollNumber, subject string, grade float64, exec ...core.DBExecutor) (bool, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	q := ext.Rebind("UPDATE grades SET grade = ?, updated_at = ? WHERE roll_number = ? AND subject = ?")
	res, err := ext.ExecContext(ctx, q, grade, now, rollNumber, subject)
	if err != nil {
		return false, errors.Wrap(err, "updating grade")
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, errors.Wrap(err, "updating grade")
	} else if n > 0 {
		return false, nil
	}

	q = ext.Rebind("INSERT INTO grades (roll_number, subject, grade, created_at) VALUES (?, ?, ?, ?)")
	if _, err = ext.ExecContext(ctx, q, rollNumber, subject, grade, now); err != nil {
		if isForeignKeyViolation(err) {
			return false, student.ErrStudentNotFound
		}
		return false, errors.Wrap(err, "inserting grade")
	}
	return true, nil
}

func (repo studentRepository) DeleteGrade(ctx context.Context, rollNumber, subject string, exec ...core.DBExecutor) error {
	ext, err := repo.getExec(exec)
	if err != nil {
		return err
	}

	q := ext.Rebind("DELETE FROM grades WHERE roll_number = ? AND subject = ?")
	res, err := ext.ExecContext(ctx, q, rollNumber, subject)
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	return repo.checkAffected(res, student.ErrGradeNotFound, "deleting grade")
}

func (repo studentRepository) GetStatistics(ctx context.Context, exec ...core.DBExecutor) (student.Statistics, error) {
	ext, err := repo.getExec(exec)
	if err != nil {
		return student.Statistics{}, err
	}

	var stats student.Statistics
	q := `SELECT
		(SELECT COUNT(*) FROM students) AS total_students,
		(SELECT COUNT(*) FROM grades) AS total_grades,
		COALESCE((SELECT AVG(grade) FROM grades), 0) AS overall_average`
	if err = sqlx.GetContext(ctx, ext, &stats, q); err != nil {
		return student.Statistics{}, errors.Wrap(err, "computing statistics")
	}
	return stats, nil
}

func (repo studentRepository) checkAffected(res sql.Result, notFound error, msg string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
