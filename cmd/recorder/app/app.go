package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/uhtp-tools/recorder/internal/receiver"
	"github.com/uhtp-tools/recorder/internal/storage"
	"github.com/uhtp-tools/recorder/internal/summary"
	"github.com/uhtp-tools/recorder/internal/trial"
)

const storageDir = "data"

// Run wires the receiver, detector and sinks together and records until
// the context is cancelled.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	dataDir, err := resolveDataDir(&config.Storage)
	if err != nil {
		return err
	}

	store := storage.NewSqliteStore(filepath.Join(dataDir, storage.DatabaseFileName(time.Now())))
	defer store.Close()

	sessionID, err := store.CreateSession(ctx, config.Session.SubjectID, config.Session.TaskType, config)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}

	summaryWriter, err := summary.NewWriter(dataDir, config.Session.SubjectID, config.Session.TaskType, summary.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("creating summary writer: %w", err)
	}
	defer func() {
		if err := summaryWriter.Close(); err != nil {
			logger.Error(err.Error())
		}
	}()

	detector := trial.New(trial.WithLogger(logger))
	detector.Register(storage.NewSink(store, sessionID,
		storage.WithSinkLogger(logger),
		storage.WithMaxBatchSize(config.Storage.MaxBatchSize),
	))
	detector.Register(summaryWriter)

	recv := receiver.New(config.Network.ListenAddr,
		receiver.WithLogger(logger),
		receiver.WithBacklogSize(config.Network.BacklogSize),
	)

	orchestrator := NewOrchestrator(recv, detector, logger,
		WithPollRate(config.Poll.RateHz),
	)

	logger.Info("recording session started",
		slog.Int64("sessionID", sessionID),
		slog.String("subjectID", config.Session.SubjectID),
		slog.String("taskType", config.Session.TaskType),
		slog.String("listenAddr", config.Network.ListenAddr),
	)

	return orchestrator.Run(ctx)
}

func resolveDataDir(config *StorageConfig) (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	dataDir := filepath.Join(wd, storageDir)
	if config.DataDirectory != "" {
		if filepath.IsAbs(config.DataDirectory) {
			dataDir = config.DataDirectory
		} else {
			dataDir = filepath.Join(wd, config.DataDirectory)
		}
	}

	stat, err := os.Stat(dataDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("storage directory '%s' does not exist: %w", dataDir, err)
		}
		return "", fmt.Errorf("checking storage directory '%s': %w", dataDir, err)
	}
	if !stat.IsDir() {
		return "", fmt.Errorf("invalid storage directory '%s'", dataDir)
	}

	return dataDir, nil
}
