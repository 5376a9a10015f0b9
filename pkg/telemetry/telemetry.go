// Package telemetry records per-command drive telemetry as CSV.
package telemetry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ErrIO means the log file could not be created or written.
var ErrIO = errors.New("telemetry: i/o error")

// FileTimeFormat is the timestamp embedded in log file names.
const FileTimeFormat = "20060102_150405"

// Logger appends rows to a CSV file and echoes them to a console.
type Logger struct {
	path    string
	console io.Writer

	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	rows   int
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	console io.Writer
	now     func() time.Time
}

// WithConsole sets where rows are echoed. Pass io.Discard to silence them.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithClock sets the clock used to name the file.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Open creates dir if needed and a new file named {prefix}_{timestamp}.csv in it.
func Open(dir, prefix string, opts ...Option) (*Logger, error) {
	o := options{console: os.Stdout, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("%w: create log dir %s: %w", ErrIO, dir, err)
	}

	name := fmt.Sprintf("%s_%s.csv", prefix, o.now().Format(FileTimeFormat))
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("%w: could not create log file %s: %w", ErrIO, path, err)
	}

	return &Logger{
		path:    path,
		console: o.console,
		file:    f,
		writer:  csv.NewWriter(f),
	}, nil
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Rows returns the number of rows written, header included.
func (l *Logger) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

// WriteRow appends one row and echoes it tagged HEADER or DATA.
// Rows are buffered until Flush or Close.
func (l *Logger) WriteRow(values []string, header bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return fmt.Errorf("%w: write to closed log %s", ErrIO, l.path)
	}
	if err := l.writer.Write(values); err != nil {
		return fmt.Errorf("%w: write row: %w", ErrIO, err)
	}
	l.rows++

	tag := "DATA"
	if header {
		tag = "HEADER"
	}
	fmt.Fprintf(l.console, "LOG %s: %s\n", tag, strings.Join(values, ", "))
	return nil
}

// Flush writes buffered rows to the file.
func (l *Logger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flush()
}

func (l *Logger) flush() error {
	if l.file == nil {
		return nil
	}
	l.writer.Flush()
	if err := l.writer.Error(); err != nil {
		return fmt.Errorf("%w: flush %s: %w", ErrIO, l.path, err)
	}
	return nil
}

// Close flushes and closes the file. It is safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	flushErr := l.flush()
	closeErr := l.file.Close()
	l.file = nil
	if closeErr != nil {
		closeErr = fmt.Errorf("%w: close %s: %w", ErrIO, l.path, closeErr)
	}
	return errors.Join(flushErr, closeErr)
}
