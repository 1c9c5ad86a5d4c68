package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/storage/database"
	sqlxrepos "github.com/trezcool/gradebook/storage/database/sqlx"
	"github.com/trezcool/gradebook/tests"
)

var stdRepo student.Repository

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	// set up DB & repos
	db := testutil.PrepareDB(t)
	stdRepo = sqlxrepos.NewStudentRepository(db)

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		db:     db,
		engine: database.EngineSQLite,
		repo:   stdRepo,
		logger: testutil.NopLogger{},
		out:    &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string // checked with strings.Contains when set
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
				}
			case tt.wantErrStr != "":
				if err == nil || err.Error() != tt.wantErrStr {
					t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
				}
			case err != nil:
				t.Errorf("cli.run() unexpected error = %v", err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	origRunFunc := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRunFunc })
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if _, err := fs.Stat(fsys, dir); err != nil {
			return fmt.Errorf("no migrations in %s", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "courses", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	runCLITests(t, cli, out, tests)
}

func Test_commandLine_migrate_unknownEngine(t *testing.T) {
	cli, _ := setup(t)
	cli.engine = "oracle"

	if err := cli.run([]string{"admin", "migrate", "up"}); !errors.Is(err, database.ErrUnknownEngine) {
		t.Errorf("cli.run() error = %v, wantErr %v", err, database.ErrUnknownEngine)
	}
}

func Test_commandLine_mutations(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateStudent(t, stdRepo, "Ada Lovelace", "R001", map[string]float64{"Math": 95})

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "addstudent: no args", args: []string{"addstudent"}, wantErr: errHelp},
		{name: "addstudent: no roll", args: []string{"addstudent", "-name", "Alan"}, wantErr: errHelp},
		{name: "addstudent: duplicate", args: []string{"addstudent", "-name", "Alan", "-roll", "R001"}, wantErr: student.ErrDuplicateRollNumber},
		{name: "addstudent: invalid", args: []string{"addstudent", "-name", strings.Repeat("a", 101), "-roll", "R002"}, wantErr: student.ErrInvalidInput},
		{name: "addstudent", args: []string{"addstudent", "-name", "Alan Turing", "-roll", "R002"}, wantOut: student.MsgStudentAdded},
		{name: "addgrade: not a number", args: []string{"addgrade", "-roll", "R002", "-subject", "Math", "-grade", "lol"}, wantErr: errHelp},
		{name: "addgrade: out of range", args: []string{"addgrade", "-roll", "R002", "-subject", "Math", "-grade", "101"}, wantErr: student.ErrInvalidInput},
		{name: "addgrade: student not found", args: []string{"addgrade", "-roll", "R404", "-subject", "Math", "-grade", "80"}, wantErr: student.ErrStudentNotFound},
		{name: "addgrade", args: []string{"addgrade", "-roll", "R002", "-subject", "Math", "-grade", "80"}, wantOut: student.MsgGradeAdded},
		{name: "addgrade: replace", args: []string{"addgrade", "-roll", "R002", "-subject", "Math", "-grade", "85"}, wantOut: student.MsgGradeUpdated},
		{name: "updategrade", args: []string{"updategrade", "-roll", "R002", "-subject", "Physics", "-grade", "70.5"}, wantOut: student.MsgGradeUpdated},
		{name: "delgrade: no subject", args: []string{"delgrade", "-roll", "R002"}, wantErr: errHelp},
		{name: "delgrade: grade not found", args: []string{"delgrade", "-roll", "R002", "-subject", "Art"}, wantErr: student.ErrGradeNotFound},
		{name: "delgrade", args: []string{"delgrade", "-roll", "R002", "-subject", "Physics"}, wantOut: student.MsgGradeDeleted},
		{name: "delstudent: not found", args: []string{"delstudent", "-roll", "R404"}, wantErr: student.ErrStudentNotFound},
		{name: "delstudent", args: []string{"delstudent", "-roll", "R001"}, wantOut: student.MsgStudentDeleted},
	}
	runCLITests(t, cli, out, tests)

	std, err := stdRepo.GetStudent(context.Background(), "R002")
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	assert.Equal(t, map[string]float64{"Math": 85}, std.Grades)

	if _, err = stdRepo.GetStudent(context.Background(), "R001"); !errors.Is(err, student.ErrStudentNotFound) {
		t.Errorf("GetStudent() error = %v, wantErr %v", err, student.ErrStudentNotFound)
	}
}

func Test_commandLine_show(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateStudent(t, stdRepo, "Ada Lovelace", "CS-2021-001", map[string]float64{"Math": 80, "Physics": 90})
	testutil.CreateStudent(t, stdRepo, "Alan Turing", "CS-2021-002", nil)
	testutil.CreateStudent(t, stdRepo, "Grace Hopper", "EE-77", nil)

	tests := []cliTest{
		{name: "no roll", args: []string{"show"}, wantErr: errHelp},
		{name: "found", args: []string{"show", "-roll", "CS-2021-001"}, wantOut: `"average": 85`},
		{name: "not found with suggestions", args: []string{"show", "-roll", "CS-2021-003"}, wantErr: student.ErrStudentNotFound, wantOut: "Did you mean: CS-2021-001, CS-2021-002?"},
	}
	runCLITests(t, cli, out, tests)

	out.Reset()
	if err := cli.run([]string{"admin", "show", "-roll", "XYZ"}); !errors.Is(err, student.ErrStudentNotFound) {
		t.Errorf("cli.run() error = %v, wantErr %v", err, student.ErrStudentNotFound)
	}
	assert.NotContains(t, out.String(), "Did you mean")
}

func Test_suggest(t *testing.T) {
	students := []student.Student{
		student.New("A", "R001"),
		student.New("B", "R002"),
		student.New("C", "R010"),
		student.New("D", "X999"),
	}
	tests := []struct {
		name string
		roll string
		want []string
	}{
		{name: "no match", roll: "ZZZZZZ", want: []string{}},
		{name: "case insensitive", roll: "r001", want: []string{"R001", "R002", "R010"}},
		{name: "best first", roll: "X99", want: []string{"X999"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, suggest(tt.roll, students))
		})
	}
}

func Test_commandLine_list(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateStudent(t, stdRepo, "Zoe", "R001", map[string]float64{"Math": 80, "Art": 100})
	testutil.CreateStudent(t, stdRepo, "Ada", "R002", nil)

	t.Run("json", func(t *testing.T) {
		isTerminalFunc = func(io.Writer) bool { return false }
		out.Reset()
		if err := cli.run([]string{"admin", "list"}); err != nil {
			t.Fatalf("cli.run() unexpected error = %v", err)
		}

		var got []struct {
			Name    string  `json:"name"`
			Average float64 `json:"average"`
		}
		if err := json.Unmarshal(out.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed: %v", err)
		}
		if assert.Len(t, got, 2) {
			assert.Equal(t, "Ada", got[0].Name)
			assert.Equal(t, "Zoe", got[1].Name)
			assert.Equal(t, float64(90), got[1].Average)
		}
	})

	t.Run("table", func(t *testing.T) {
		isTerminalFunc = func(io.Writer) bool { return true }
		out.Reset()
		if err := cli.run([]string{"admin", "list"}); err != nil {
			t.Fatalf("cli.run() unexpected error = %v", err)
		}

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		if assert.Len(t, lines, 3) {
			assert.True(t, strings.HasPrefix(lines[0], "ROLL NUMBER"))
			assert.Contains(t, lines[1], "Ada")
			assert.Contains(t, lines[2], "Art=100 Math=80")
			assert.Contains(t, lines[2], "90.00")
		}
	})
	isTerminalFunc = isTerminal
}

func Test_commandLine_stats(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateStudent(t, stdRepo, "Ada", "R001", map[string]float64{"Math": 80, "Physics": 90, "Art": 100})
	testutil.CreateStudent(t, stdRepo, "Alan", "R002", nil)

	if err := cli.run([]string{"admin", "stats"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}
	var got student.Statistics
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("json.Unmarshal() failed: %v", err)
	}
	assert.Equal(t, student.Statistics{TotalStudents: 2, TotalGrades: 3, OverallAverage: 90}, got)
}

func Test_commandLine_import(t *testing.T) {
	cli, out := setup(t)
	testutil.CreateStudent(t, stdRepo, "Ada Lovelace", "R001", nil)

	path := filepath.Join(t.TempDir(), "students.csv")
	data := strings.Join([]string{
		"roll_number,name,subject,grade",
		"R001,Ada Lovelace,Math,95",
		"R002,Alan Turing",
		"R002,Alan Turing,Physics,88.5",
		"R003,,Math,50",
		"R004,Grace Hopper,Math,lol",
		"R005,Edsger Dijkstra,Math,150",
		"R006",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	tests := []cliTest{
		{name: "no file", args: []string{"import"}, wantErr: errHelp},
		{name: "missing file", args: []string{"import", "-file", path + ".lol"}, wantErr: os.ErrNotExist},
		{name: "import", args: []string{"import", "-file", path}, wantOut: "imported 3 students and 2 grades; 4 lines failed"},
	}
	runCLITests(t, cli, out, tests)

	out.Reset()
	summary, err := cli.importCSV(context.Background(), cli.tracker, strings.NewReader("R007,Barbara Liskov\nR007,x,y"))
	if err != nil {
		t.Fatalf("importCSV() unexpected error = %v", err)
	}
	assert.Equal(t, importSummary{Students: 1, Failed: 1}, summary)
	assert.Contains(t, out.String(), "line 2: expected 2 or 4 fields, got 3")

	std, err := stdRepo.GetStudent(context.Background(), "R001")
	if err != nil {
		t.Fatalf("GetStudent() failed: %v", err)
	}
	assert.Equal(t, map[string]float64{"Math": 95}, std.Grades)
}
