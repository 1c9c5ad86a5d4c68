package student

import "github.com/pkg/errors"

var (
	// errors
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateRollNumber = errors.New("roll number already exists")
	ErrStudentNotFound     = errors.New("student not found")
	ErrGradeNotFound       = errors.New("grade not found")
	ErrStorageFailure      = errors.New("storage failure")
)

// user facing messages
const (
	MsgStudentAdded    = "Student added successfully"
	MsgStudentDeleted  = "Student deleted successfully"
	MsgGradeAdded      = "Grade added successfully"
	MsgGradeUpdated    = "Grade updated successfully"
	MsgGradeDeleted    = "Grade deleted successfully"
	MsgEmptyStudent    = "Name and roll number cannot be empty"
	MsgEmptyGrade      = "Roll number and subject cannot be empty"
	MsgEmptyRollNumber = "Roll number cannot be empty"
	MsgNameTooLong     = "Name cannot be longer than 100 characters"
	MsgRollTooLong     = "Roll number cannot be longer than 20 characters"
	MsgSubjectTooLong  = "Subject cannot be longer than 50 characters"
	MsgGradeOutOfRange = "Grade must be between 0 and 100"
	MsgDuplicateRoll   = "Roll number already exists"
	MsgStudentNotFound = "Student not found"
	MsgGradeNotFound   = "Grade not found"
	MsgStorageFailure  = "Database error occurred"
)

// Result is the outcome of a Tracker mutation.
// Expected failures are reported here and never as a returned error.
type Result struct {
	OK      bool   `json:"success"`
	Message string `json:"message"`
	Err     error  `json:"-"` // nil on success, else one of the Err* sentinels
}

func succeeded(msg string) Result {
	return Result{OK: true, Message: msg}
}

func failed(err error, msg string) Result {
	return Result{Err: err, Message: msg}
}

// Is reports whether the result failed with `target`.
func (r Result) Is(target error) bool {
	return r.Err != nil && errors.Is(r.Err, target)
}
