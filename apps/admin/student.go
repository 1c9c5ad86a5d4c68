package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/gradebook/core/student"
)

const (
	suggestionRatio = .6
	maxSuggestions  = 3
)

func (cli *commandLine) printJSON(v interface{}) error {
	enc := json.NewEncoder(cli.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// show prints a student; an unknown roll number lists the closest known ones.
func (cli *commandLine) show(ctx context.Context, tracker *student.Tracker, rollNumber string) error {
	std, ok := tracker.GetStudent(ctx, rollNumber)
	if ok {
		return cli.printJSON(std)
	}

	if suggestions := suggest(rollNumber, tracker.GetAllStudents(ctx)); len(suggestions) > 0 {
		fmt.Fprintf(cli.out, "Did you mean: %s?\n", strings.Join(suggestions, ", "))
	}
	return student.ErrStudentNotFound
}

// suggest returns up to maxSuggestions roll numbers similar to `rollNumber`, best first.
func suggest(rollNumber string, students []student.Student) []string {
	type match struct {
		roll  string
		ratio float64
	}

	target := strings.Split(strings.ToLower(rollNumber), "")
	var matches []match
	for _, std := range students {
		m := difflib.NewMatcher(target, strings.Split(strings.ToLower(std.RollNumber), ""))
		if ratio := m.Ratio(); ratio >= suggestionRatio {
			matches = append(matches, match{roll: std.RollNumber, ratio: ratio})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].ratio > matches[j].ratio })

	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	rolls := make([]string, len(matches))
	for i, m := range matches {
		rolls[i] = m.roll
	}
	return rolls
}

// list prints a table on a terminal and JSON otherwise.
func (cli *commandLine) list(ctx context.Context, tracker *student.Tracker) error {
	students := tracker.GetAllStudents(ctx)
	if !isTerminalFunc(cli.out) {
		return cli.printJSON(students)
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL NUMBER\tNAME\tAVERAGE\tGRADES")
	for _, std := range students {
		grades := make([]string, 0, len(std.Grades))
		for _, subject := range std.Subjects() {
			grades = append(grades, fmt.Sprintf("%s=%g", subject, std.Grades[subject]))
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", std.RollNumber, std.Name, std.Average(), strings.Join(grades, " "))
	}
	return w.Flush()
}

func (cli *commandLine) stats(ctx context.Context, tracker *student.Tracker) error {
	stats, err := tracker.GetStatistics(ctx)
	if err != nil {
		return err
	}
	return cli.printJSON(stats)
}
