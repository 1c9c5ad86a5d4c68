package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core/student"
)

// importSummary counts the outcome of an import.
type importSummary struct {
	Students int
	Grades   int
	Failed   int
}

func (cli *commandLine) importFile(ctx context.Context, tracker *student.Tracker, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "opening import file")
	}
	defer f.Close()

	summary, err := cli.importCSV(ctx, tracker, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "imported %d students and %d grades; %d lines failed\n", summary.Students, summary.Grades, summary.Failed)
	return nil
}

// importCSV reads `roll_number,name[,subject,grade]` lines.
// A student already present only gets its grade; each failing line is reported and skipped.
func (cli *commandLine) importCSV(ctx context.Context, tracker *student.Tracker, r io.Reader) (importSummary, error) {
	var summary importSummary

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return summary, errors.Wrapf(err, "reading line %d", line)
		}
		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "roll_number") {
			continue // header
		}

		if msg := cli.importRecord(ctx, tracker, record, &summary); msg != "" {
			summary.Failed++
			fmt.Fprintf(cli.out, "line %d: %s\n", line, msg)
		}
	}
	return summary, nil
}

func (cli *commandLine) importRecord(ctx context.Context, tracker *student.Tracker, record []string, summary *importSummary) string {
	if len(record) != 2 && len(record) != 4 {
		return fmt.Sprintf("expected 2 or 4 fields, got %d", len(record))
	}
	roll, name := record[0], record[1]

	if _, exists := tracker.GetStudent(ctx, roll); !exists {
		res := tracker.AddStudent(ctx, name, roll)
		if !res.OK {
			return res.Message
		}
		summary.Students++
	}

	if len(record) == 2 {
		return ""
	}
	grade, err := strconv.ParseFloat(strings.TrimSpace(record[3]), 64)
	if err != nil {
		return "grade must be a number"
	}
	res := tracker.AddGrade(ctx, roll, record[2], grade)
	if !res.OK {
		return res.Message
	}
	summary.Grades++
	return ""
}
