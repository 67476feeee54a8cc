package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"conti/internal/core"
	"conti/internal/sheets"
	"conti/internal/sheets/memory"
	"conti/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	if config.SeedFile != "" {
		seed, err := memory.NewFromFile(config.SeedFile)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("load seed: %w", err)
		}
		created, err := copyGroups(ctx, seed, repo)
		if err != nil {
			repo.Close()
			return nil, fmt.Errorf("apply seed: %w", err)
		}
		f.logger.Info("Applied seed groups", "file", config.SeedFile, "created", created)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
		Ping:    repo.Ping,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load seed: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{
		Backend: store,
		Cleanup: nil, // No cleanup needed for memory backend
	}, nil
}

// copyGroups creates every group of src in dst, skipping groups dst already
// has. Members are not merged into existing groups.
func copyGroups(ctx context.Context, src sheets.GroupReader, dst sheets.GroupWriter) (int, error) {
	groups, err := src.ListGroups(ctx)
	if err != nil {
		return 0, err
	}
	created := 0
	for _, g := range groups {
		err := dst.CreateGroup(ctx, g)
		if errors.Is(err, core.ErrGroupExists) {
			continue
		}
		if err != nil {
			return created, fmt.Errorf("group %s: %w", g.ID, err)
		}
		created++
	}
	return created, nil
}
