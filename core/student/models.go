package student

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/gradebook/core"
)

// Sortable fields for QueryStudents orderings.
const (
	OrderByName       = "name"
	OrderByRollNumber = "roll_number"
	OrderByAverage    = "average"
	OrderByCreatedAt  = "created_at"
)

var (
	OrderingFields = []string{OrderByName, OrderByRollNumber, OrderByAverage, OrderByCreatedAt}

	// DefaultOrdering orders students by name; roll numbers break ties.
	DefaultOrdering = []core.DBOrdering{
		{Field: OrderByName, Ascending: true},
		{Field: OrderByRollNumber, Ascending: true},
	}
)

type Student struct {
	ID         int                `json:"id"`
	Name       string             `json:"name"`
	RollNumber string             `json:"roll_number"`
	Grades     map[string]float64 `json:"grades"`    // {subject: grade}
	CreatedAt  time.Time          `json:"created_at"` // UTC
	UpdatedAt  time.Time          `json:"updated_at"` // UTC; last grade change
}

// New builds a Student with trimmed fields and no grades.
func New(name, rollNumber string) Student {
	return Student{
		Name:       core.CleanString(name),
		RollNumber: core.CleanString(rollNumber),
		Grades:     make(map[string]float64),
	}
}

// SetGrade adds or replaces the grade of `subject`.
func (s *Student) SetGrade(subject string, grade float64) {
	if s.Grades == nil {
		s.Grades = make(map[string]float64)
	}
	s.Grades[core.CleanString(subject)] = grade
}

// Average is the mean of all grades rounded to 2 decimal places, 0 without grades.
func (s Student) Average() float64 {
	if len(s.Grades) == 0 {
		return 0
	}
	var total float64
	for _, g := range s.Grades {
		total += g
	}
	return core.Round(total/float64(len(s.Grades)), 2)
}

// Subjects returns the graded subjects in alphabetical order.
func (s Student) Subjects() []string {
	subjects := make([]string, 0, len(s.Grades))
	for subject := range s.Grades {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)
	return subjects
}

// Clone returns a deep copy, so that callers never share the tracker's grade maps.
func (s Student) Clone() Student {
	c := s
	c.Grades = make(map[string]float64, len(s.Grades))
	for subject, g := range s.Grades {
		c.Grades[subject] = g
	}
	return c
}

func (s Student) MarshalJSON() ([]byte, error) {
	type alias Student
	grades := s.Grades
	if grades == nil {
		grades = map[string]float64{}
	}
	return json.Marshal(struct {
		alias
		Grades  map[string]float64 `json:"grades"`
		Average float64            `json:"average"`
	}{
		alias:   alias(s),
		Grades:  grades,
		Average: s.Average(),
	})
}

type Statistics struct {
	TotalStudents  int     `json:"total_students" db:"total_students"`
	TotalGrades    int     `json:"total_grades" db:"total_grades"`
	OverallAverage float64 `json:"overall_average" db:"overall_average"`
}

// SortStudents sorts `students` in place following `orderings`; unknown fields are ignored.
func SortStudents(students []Student, orderings []core.DBOrdering) {
	if len(orderings) == 0 {
		orderings = DefaultOrdering
	}
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range orderings {
			cmp := compare(a, b, ord.Field)
			if cmp == 0 {
				continue
			}
			if ord.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return false
	})
}

func compare(a, b Student, field string) int {
	switch field {
	case OrderByName:
		return strings.Compare(a.Name, b.Name)
	case OrderByRollNumber:
		return strings.Compare(a.RollNumber, b.RollNumber)
	case OrderByAverage:
		return compareFloat(a.Average(), b.Average())
	case OrderByCreatedAt:
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
