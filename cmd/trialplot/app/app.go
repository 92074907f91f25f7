package app

import (
	"context"
	"fmt"
	"image/jpeg"
	"image/png"
	"log/slog"
	"os"

	"github.com/uhtp-tools/recorder/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	return renderTrial(ctx, store, config, logger)
}

func renderTrial(ctx context.Context, store *storage.SqliteStore, config *Config, logger *slog.Logger) error {
	record, err := findTrial(ctx, store, config.SessionID, uint32(config.TrialNumber))
	if err != nil {
		return err
	}

	iter, err := store.ReadSamples(ctx, config.SessionID, uint32(config.TrialNumber))
	if err != nil {
		return err
	}
	defer iter.Close()

	traj := NewTrajectoryData()
	for iter.Next() {
		traj.Update(iter.Current())
	}
	if err = iter.Error(); err != nil {
		return err
	}
	if traj.Len() == 0 {
		return fmt.Errorf("trial %d of session %d has no stored samples", config.TrialNumber, config.SessionID)
	}

	logger.Info("finished reading samples",
		slog.Group("stats",
			slog.Int("samples", traj.Len()),
			slog.Float64("durationS", record.DurationS),
			slog.Float64("rmseMM", record.RMSETotal*1000),
		))

	renderer := NewTrajectoryRenderer()
	img := renderer.Render(traj)

	if !config.NoAnnotations {
		annotator, err := NewAnnotator()
		if err != nil {
			return fmt.Errorf("creating annotator: %w", err)
		}
		if err = annotator.Annotate(img, record, traj); err != nil {
			return fmt.Errorf("annotating image: %w", err)
		}
	}

	logger.Info("rendering trial",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.Int("width", img.Bounds().Dx()),
			slog.Int("height", img.Bounds().Dy()),
		))

	out, err := os.Create(config.OutputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	switch config.Format {
	case ImageJPEG:
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 90})
	default:
		err = png.Encode(out, img)
	}
	if err != nil {
		return fmt.Errorf("encoding image: %w", err)
	}

	return nil
}

func findTrial(ctx context.Context, store *storage.SqliteStore, sessionID int64, trialNumber uint32) (*storage.TrialRecord, error) {
	trials, err := store.TrialSummaries(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("reading trials: %w", err)
	}

	for i := range trials {
		if trials[i].TrialNumber == trialNumber {
			return &trials[i], nil
		}
	}

	return nil, fmt.Errorf("trial %d not found in session %d", trialNumber, sessionID)
}
