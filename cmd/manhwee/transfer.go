package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/manhwee/internal/config"
	"github.com/sakif/manhwee/internal/repository"
	"github.com/sakif/manhwee/internal/server"
)

type transfer struct {
	items   repository.ItemRepository
	ownerID string
	logger  *slog.Logger
}

// withOwner opens the configured backends, resolves identifier to a user
// and runs fn. The memory backend is refused: nothing would outlive the
// command.
func (a *app) withOwner(ctx context.Context, identifier string, fn func(context.Context, *transfer) error) error {
	cfg, logger, err := a.load()
	if err != nil {
		return err
	}
	if cfg.StorageBackend == config.BackendMemory {
		return fmt.Errorf("the memory backend does not persist; use sqlite or file")
	}

	db, err := server.OpenDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	items, err := server.OpenItems(cfg, db)
	if err != nil {
		return err
	}

	user, err := db.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return fmt.Errorf("finding user %q: %w", identifier, err)
	}

	return fn(ctx, &transfer{items: items, ownerID: user.ID, logger: logger.With(slog.String("owner", user.ID))})
}
