// Package summary writes one CSV row per finished trial for quick
// analysis without touching the session database.
package summary

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/uhtp-tools/recorder/internal/trial"
	"github.com/uhtp-tools/recorder/internal/wire"
)

var csvHeader = []string{
	"trial", "task_type", "subject_id", "timestamp",
	"duration_s", "rmse_x_mm", "rmse_y_mm", "rmse_total_mm",
	"sample_count", "success",
}

// WithLogger sets the logger for the writer
func WithLogger(logger *slog.Logger) func(w *Writer) {
	return func(w *Writer) {
		w.logger = logger.With(slog.String("component", "summaryCSV"))
	}
}

// Writer appends trial summaries to a timestamped CSV file. It satisfies
// trial.Sink and ignores raw samples. Write failures are logged and
// counted, never propagated to the detector.
type Writer struct {
	subjectID string
	taskType  string
	logger    *slog.Logger

	path string
	file *os.File
	csv  *csv.Writer

	writeErrors uint64
}

// NewWriter creates the summary file in outputDir and writes the header.
func NewWriter(outputDir, subjectID, taskType string, options ...func(w *Writer)) (*Writer, error) {
	w := Writer{
		subjectID: subjectID,
		taskType:  taskType,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		path:      filepath.Join(outputDir, fmt.Sprintf("summary_%s.csv", time.Now().Format("20060102_150405"))),
	}

	for _, option := range options {
		option(&w)
	}

	file, err := os.Create(w.path)
	if err != nil {
		return nil, fmt.Errorf("creating summary file: %w", err)
	}

	w.file = file
	w.csv = csv.NewWriter(file)

	if err = w.csv.Write(csvHeader); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("writing header: %w", err)
	}
	w.csv.Flush()

	w.logger.Info("summary file created", slog.String("path", w.path))
	return &w, nil
}

// Path returns the location of the summary file.
func (w *Writer) Path() string {
	return w.path
}

func (w *Writer) TrialStarted(trialNumber uint32) {}

func (w *Writer) Sample(m wire.Message) {}

func (w *Writer) TrialEnded(s trial.Summary) {
	outcome := "success"
	if !s.Success {
		outcome = "failed"
	}

	row := []string{
		strconv.FormatUint(uint64(s.TrialNumber), 10),
		w.taskType,
		w.subjectID,
		time.Now().Format(time.RFC3339),
		fmt.Sprintf("%.3f", s.DurationS),
		fmt.Sprintf("%.3f", s.RMSEX*1000),
		fmt.Sprintf("%.3f", s.RMSEY*1000),
		fmt.Sprintf("%.3f", s.RMSETotal*1000),
		strconv.Itoa(s.SampleCount),
		outcome,
	}

	if err := w.csv.Write(row); err != nil {
		w.writeErrors++
		w.logger.Error("writing summary row", slog.Any("trial", s.TrialNumber), slog.Any("error", err))
		return
	}

	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		w.writeErrors++
		w.logger.Error("flushing summary row", slog.Any("trial", s.TrialNumber), slog.Any("error", err))
	}
}

// WriteErrors returns the number of failed row writes.
func (w *Writer) WriteErrors() uint64 {
	return w.writeErrors
}

// Close flushes and closes the summary file.
func (w *Writer) Close() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		_ = w.file.Close()
		return fmt.Errorf("flushing summary: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing summary: %w", err)
	}

	w.logger.Info("summary saved", slog.String("path", w.path))
	return nil
}

var _ trial.Sink = (*Writer)(nil)
