package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sakif/manhwee/internal/apperror"
	"github.com/sakif/manhwee/internal/model"
	"github.com/sakif/manhwee/internal/repository"
)

var _ repository.ItemRepository = (*DB)(nil)

const itemColumns = `id, owner_id, title, author, item_type, genres, status, rating,
	current_chapter, total_chapters, started_at, finished_at, link, notes,
	cover, cover_offset, created_at, updated_at`

// Load returns every item owned by ownerID in insertion order.
//
// rowid order is insertion order here: Save upserts with ON CONFLICT DO
// UPDATE, which keeps the original rowid of an edited item.
func (db *DB) Load(ctx context.Context, ownerID string) ([]model.Item, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+`
		 FROM items
		 WHERE owner_id = ?
		 ORDER BY rowid`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading items for %s: %w", ownerID, err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating items: %w", err)
	}

	return items, nil
}

// Save inserts the item or replaces every column of the existing row with
// the same id. The row must belong to the same owner: an id owned by
// somebody else is reported as not found and left untouched.
func (db *DB) Save(ctx context.Context, item *model.Item) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	genres, err := json.Marshal(nonNil(item.Genres))
	if err != nil {
		return fmt.Errorf("sqlite: encoding genres for item %s: %w", item.ID, err)
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			item_type = excluded.item_type,
			genres = excluded.genres,
			status = excluded.status,
			rating = excluded.rating,
			current_chapter = excluded.current_chapter,
			total_chapters = excluded.total_chapters,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			link = excluded.link,
			notes = excluded.notes,
			cover = excluded.cover,
			cover_offset = excluded.cover_offset,
			updated_at = excluded.updated_at
		 WHERE items.owner_id = excluded.owner_id`,
		item.ID,
		item.OwnerID,
		item.Title,
		item.Author,
		string(item.Type),
		string(genres),
		string(item.Status),
		nullInt(item.Rating),
		nullInt(item.CurrentChapter),
		nullInt(item.TotalChapters),
		item.StartedAt,
		item.FinishedAt,
		item.Link,
		item.Notes,
		item.Cover,
		item.CoverOffset,
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: saving item %s: %w", item.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", item.ID)
	}

	return nil
}

// Remove deletes the item if ownerID owns it.
func (db *DB) Remove(ctx context.Context, ownerID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM items WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting item %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("item", id)
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (model.Item, error) {
	var (
		it                     model.Item
		itemType, status       string
		genres                 string
		rating, current, total sql.NullInt64
	)
	if err := row.Scan(
		&it.ID, &it.OwnerID, &it.Title, &it.Author, &itemType, &genres, &status,
		&rating, &current, &total, &it.StartedAt, &it.FinishedAt, &it.Link,
		&it.Notes, &it.Cover, &it.CoverOffset, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return model.Item{}, fmt.Errorf("sqlite: scanning item row: %w", err)
	}

	it.Type = model.ItemType(itemType)
	it.Status = model.Status(status)
	if err := json.Unmarshal([]byte(genres), &it.Genres); err != nil {
		return model.Item{}, fmt.Errorf("sqlite: decoding genres of item %s: %w", it.ID, err)
	}
	it.Genres = nonNil(it.Genres)
	it.Rating = intPtr(rating)
	it.CurrentChapter = intPtr(current)
	it.TotalChapters = intPtr(total)

	return it, nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
