package student

import (
	"math"
	"regexp"
	"unicode/utf8"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradebook/core"
)

// input limits
const (
	NameMaxLen       = 100
	RollNumberMaxLen = 20
	SubjectMaxLen    = 50
	MinGrade         = 0.0
	MaxGrade         = 100.0
)

var (
	personNameTag   = "personname"
	personNameText  = "{0} may only contain letters, spaces and dots"
	personNameRegex = regexp.MustCompile(`^[a-zA-Z\s.]+$`)

	rollNumberTag   = "rollnumber"
	rollNumberText  = "{0} may only contain letters, digits, hyphens and underscores"
	rollNumberRegex = regexp.MustCompile(`^[a-zA-Z0-9\-_]+$`)

	subjectTag   = "subject"
	subjectText  = "{0} may only contain letters and spaces"
	subjectRegex = regexp.MustCompile(`^[a-zA-Z\s]+$`)
)

// InitValidators registers the request format validators used by the route layer.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	core.RegisterRegexValidation(validate, translator, personNameTag, personNameText, personNameRegex)
	core.RegisterRegexValidation(validate, translator, rollNumberTag, rollNumberText, rollNumberRegex)
	core.RegisterRegexValidation(validate, translator, subjectTag, subjectText, subjectRegex)
}

// Tracker input checks; emptiness first, then lengths, then ranges.

func checkStudent(name, rollNumber string) *Result {
	if name == "" || rollNumber == "" {
		return invalid(MsgEmptyStudent)
	}
	if utf8.RuneCountInString(name) > NameMaxLen {
		return invalid(MsgNameTooLong)
	}
	if utf8.RuneCountInString(rollNumber) > RollNumberMaxLen {
		return invalid(MsgRollTooLong)
	}
	return nil
}

func checkGradeKey(rollNumber, subject string) *Result {
	if rollNumber == "" || subject == "" {
		return invalid(MsgEmptyGrade)
	}
	if utf8.RuneCountInString(rollNumber) > RollNumberMaxLen {
		return invalid(MsgRollTooLong)
	}
	if utf8.RuneCountInString(subject) > SubjectMaxLen {
		return invalid(MsgSubjectTooLong)
	}
	return nil
}

func checkGrade(rollNumber, subject string, grade float64) *Result {
	if res := checkGradeKey(rollNumber, subject); res != nil {
		return res
	}
	if math.IsNaN(grade) || grade < MinGrade || grade > MaxGrade {
		return invalid(MsgGradeOutOfRange)
	}
	return nil
}

func checkRollNumber(rollNumber string) *Result {
	if rollNumber == "" {
		return invalid(MsgEmptyRollNumber)
	}
	if utf8.RuneCountInString(rollNumber) > RollNumberMaxLen {
		return invalid(MsgRollTooLong)
	}
	return nil
}

func invalid(msg string) *Result {
	res := failed(ErrInvalidInput, msg)
	return &res
}
