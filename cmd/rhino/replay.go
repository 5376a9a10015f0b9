package main

import (
	"fmt"
	"strconv"

	"github.com/rhinorover/rhino/pkg/telemetry"
)

type ReplayCommand struct {
	Args struct {
		Path string `positional-arg-name:"log.csv" required:"yes"`
	} `positional-args:"yes"`
}

func (c *ReplayCommand) Execute(args []string) error {
	l, err := telemetry.ReadLog(c.Args.Path)
	if err != nil {
		return err
	}
	s := l.Summarize()

	fmt.Println(headerStyle.Render("Drive session " + c.Args.Path))
	fmt.Println()

	rows := [][]string{
		{"Commands", strconv.Itoa(s.Commands)},
		{"With feedback", fmt.Sprintf("%d (%.0f%%)", s.Feedback, 100*s.FeedbackRatio())},
	}
	if !s.Start.IsZero() {
		rows = append(rows,
			[]string{"Start", s.Start.Format(telemetry.RowTimeFormat)},
			[]string{"End", s.End.Format(telemetry.RowTimeFormat)},
			[]string{"Duration", s.Duration().String()},
		)
	}
	fmt.Println(renderTable([]string{"", ""}, rows, nil))

	// Last servo outputs the vehicle reported.
	for i := len(l.Rows) - 1; i >= 0; i-- {
		servo, err := telemetry.Servo(l.Rows[i])
		if err != nil {
			continue
		}
		row := make([]string, len(servo))
		headers := make([]string, len(servo))
		for j, v := range servo {
			headers[j] = fmt.Sprintf("servo%d", j+1)
			row[j] = strconv.Itoa(v)
		}
		fmt.Println()
		fmt.Println(dimStyle.Render("Last servo outputs"))
		fmt.Println(renderTable(headers, [][]string{row}, nil))
		break
	}
	return nil
}
