package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

var (
	isTerminalFunc = isTerminal // mockable

	errHelp = errors.New("help provided")
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// resultError reports a failed student.Result; it unwraps to the result's sentinel error.
type resultError struct {
	res student.Result
}

func (e resultError) Error() string {
	return e.res.Message
}

func (e resultError) Unwrap() error {
	return e.res.Err
}

type commandLine struct {
	db      *sqlx.DB
	engine  string
	repo    student.Repository
	logger  core.Logger
	out     io.Writer
	tracker *student.Tracker
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                - run a goose command (up, down, status, version..)")
	fmt.Fprintln(cli.out, "  addstudent -name NAME -roll ROLL                      - add a student")
	fmt.Fprintln(cli.out, "  addgrade -roll ROLL -subject SUBJECT -grade GRADE     - add or replace a grade")
	fmt.Fprintln(cli.out, "  updategrade -roll ROLL -subject SUBJECT -grade GRADE  - set a grade")
	fmt.Fprintln(cli.out, "  delgrade -roll ROLL -subject SUBJECT                  - delete a grade")
	fmt.Fprintln(cli.out, "  delstudent -roll ROLL                                 - delete a student and their grades")
	fmt.Fprintln(cli.out, "  show -roll ROLL                                       - show a student")
	fmt.Fprintln(cli.out, "  list                                                  - list all students")
	fmt.Fprintln(cli.out, "  stats                                                 - show statistics")
	fmt.Fprintln(cli.out, "  import -file FILE.csv                                 - import rows of roll_number,name[,subject,grade]")
}

func (cli *commandLine) getTracker(ctx context.Context) (*student.Tracker, error) {
	if cli.tracker == nil {
		tracker, err := student.NewTracker(ctx, cli.repo, cli.logger)
		if err != nil {
			return nil, err
		}
		cli.tracker = tracker
	}
	return cli.tracker, nil
}

func (cli *commandLine) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(cli.out)
	return fs
}

// report prints a successful result or turns a failed one into an error.
func (cli *commandLine) report(res student.Result) error {
	if !res.OK {
		return resultError{res}
	}
	fmt.Fprintln(cli.out, res.Message)
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	if args[1] == "migrate" {
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	}

	cmd := cli.newFlagSet(args[1])
	name := cmd.String("name", "", "The student's name.")
	roll := cmd.String("roll", "", "The student's roll number.")
	subject := cmd.String("subject", "", "The subject.")
	grade := cmd.String("grade", "", "The grade, between 0 and 100.")
	file := cmd.String("file", "", "The CSV file to import.")

	parse := func(required ...*string) error {
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		for _, val := range required {
			if *val == "" {
				cmd.Usage()
				return errHelp
			}
		}
		return nil
	}
	parseGrade := func() (float64, error) {
		g, err := strconv.ParseFloat(*grade, 64)
		if err != nil {
			cmd.Usage()
			return 0, errHelp
		}
		return g, nil
	}

	switch args[1] {
	case "addstudent", "delstudent", "addgrade", "updategrade", "delgrade", "show", "list", "stats", "import": // known
	default:
		cli.printUsage()
		return errHelp
	}

	tracker, err := cli.getTracker(ctx)
	if err != nil {
		return err
	}

	switch args[1] {
	case "addstudent":
		if err = parse(name, roll); err != nil {
			return err
		}
		return cli.report(tracker.AddStudent(ctx, *name, *roll))
	case "delstudent":
		if err = parse(roll); err != nil {
			return err
		}
		return cli.report(tracker.DeleteStudent(ctx, *roll))
	case "addgrade", "updategrade":
		if err = parse(roll, subject, grade); err != nil {
			return err
		}
		g, err := parseGrade()
		if err != nil {
			return err
		}
		if args[1] == "addgrade" {
			return cli.report(tracker.AddGrade(ctx, *roll, *subject, g))
		}
		return cli.report(tracker.UpdateGrade(ctx, *roll, *subject, g))
	case "delgrade":
		if err = parse(roll, subject); err != nil {
			return err
		}
		return cli.report(tracker.DeleteGrade(ctx, *roll, *subject))
	case "show":
		if err = parse(roll); err != nil {
			return err
		}
		return cli.show(ctx, tracker, *roll)
	case "list":
		if err = parse(); err != nil {
			return err
		}
		return cli.list(ctx, tracker)
	case "stats":
		if err = parse(); err != nil {
			return err
		}
		return cli.stats(ctx, tracker)
	default: // import
		if err = parse(file); err != nil {
			return err
		}
		return cli.importFile(ctx, tracker, *file)
	}
}
