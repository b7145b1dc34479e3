package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

// ImportRecord is one entry of an exported collection. It accepts both this
// server's export and the older browser export, whose ids are millisecond
// timestamps and whose numbers may be strings. Owner fields in the file
// ("ownerId", "uid") are ignored; the importer picks the owner.
type ImportRecord struct {
	ID string `json:"id"`
	model.Draft
	CoverOffset *model.FlexInt `json:"coverOffset,omitempty"`
}

// DecodeImport reads a JSON array of records.
func DecodeImport(r io.Reader) ([]ImportRecord, error) {
	var records []ImportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, apperror.ValidationFailed("file", "expected a JSON array of items: "+err.Error())
	}
	return records, nil
}

// ImportItems writes records into ownerID's collection through the backend
// directly, keeping their ids so legacy timestamps still date them. Records
// are validated like drafts. It stops at the first failure and reports how
// many were written before it.
func ImportItems(ctx context.Context, repo repository.ItemRepository, ownerID string, records []ImportRecord) (int, error) {
	if ownerID == "" {
		return 0, apperror.AuthRequired()
	}

	for i, rec := range records {
		if err := ValidateDraft(rec.Draft); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}

		item := rec.Draft.Materialize()
		item.ID = strings.TrimSpace(rec.ID)
		if item.ID == "" {
			item.ID = xid.New().String()
		}
		item.OwnerID = ownerID
		if rec.CoverOffset != nil {
			item.CoverOffset = model.ClampCoverOffset(int(*rec.CoverOffset))
		}

		if err := repo.Save(ctx, &item); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return i, fmt.Errorf("record %d: id %s belongs to another owner: %w", i, item.ID, err)
			}
			return i, apperror.Persistence("import item", err)
		}
	}
	return len(records), nil
}

// ExportItems writes ownerID's collection as an indented JSON array.
func ExportItems(ctx context.Context, repo repository.ItemRepository, ownerID string, w io.Writer) (int, error) {
	items, err := repo.Load(ctx, ownerID)
	if err != nil {
		return 0, apperror.Persistence("load items", err)
	}
	if items == nil {
		items = []model.Item{}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return 0, fmt.Errorf("service: encoding export: %w", err)
	}
	return len(items), nil
}
