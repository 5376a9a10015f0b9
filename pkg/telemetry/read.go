package telemetry

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// RowTimeFormat is the timestamp written in the first column of every row.
const RowTimeFormat = "2006-01-02 15:04:05"

// Column counts of the two kinds of data rows a robot writes.
const (
	CommandColumns  = 5  // timestamp, throttle, steering, throttle_pwm, steering_pwm
	FeedbackColumns = 11 // timestamp, throttle, steering, servo1..servo8
)

// Log is a telemetry file read back into memory.
type Log struct {
	Header []string
	Rows   [][]string
}

// ReadLog reads a telemetry CSV file. Rows may have differing column counts.
func ReadLog(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIO, path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}

	l := &Log{}
	if len(records) > 0 {
		l.Header = records[0]
		l.Rows = records[1:]
	}
	return l, nil
}

// Summary describes a drive session.
type Summary struct {
	Commands int // rows logged when a command was sent
	Feedback int // rows logged with servo outputs
	Start    time.Time
	End      time.Time
}

// Duration returns the time between the first and last row.
func (s Summary) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// FeedbackRatio returns the fraction of commands that got servo feedback.
func (s Summary) FeedbackRatio() float64 {
	if s.Commands == 0 {
		return 0
	}
	return float64(s.Feedback) / float64(s.Commands)
}

// Summarize counts command and feedback rows. Rows with unparseable
// timestamps are counted but don't move Start or End.
func (l *Log) Summarize() Summary {
	var s Summary
	for _, row := range l.Rows {
		switch len(row) {
		case CommandColumns:
			s.Commands++
		case FeedbackColumns:
			s.Feedback++
		default:
			continue
		}

		ts, err := time.ParseInLocation(RowTimeFormat, row[0], time.Local)
		if err != nil {
			continue
		}
		if s.Start.IsZero() || ts.Before(s.Start) {
			s.Start = ts
		}
		if ts.After(s.End) {
			s.End = ts
		}
	}
	return s
}

// Servo returns the servo outputs of a feedback row.
func Servo(row []string) ([8]int, error) {
	var out [8]int
	if len(row) != FeedbackColumns {
		return out, fmt.Errorf("not a feedback row: %d columns", len(row))
	}
	for i := range out {
		v, err := strconv.Atoi(row[3+i])
		if err != nil {
			return out, fmt.Errorf("servo%d_raw: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}
