package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// LikeKind selects which likeable entity a toggle targets.
type LikeKind string

const (
	LikeAudio   LikeKind = "audio"
	LikeComment LikeKind = "comment"
)

// likeTarget maps a kind to its join table and item column.
type likeTarget struct {
	table      string
	itemColumn string
	itemTable  string
}

var likeTargets = map[LikeKind]likeTarget{
	LikeAudio:   {table: "audio_likes", itemColumn: "audio_id", itemTable: "audios"},
	LikeComment: {table: "comment_likes", itemColumn: "comment_id", itemTable: "comments"},
}

// LikeStore toggles per-user likes on likeable entities. One
// implementation serves every kind; the kind only picks the join table.
type LikeStore interface {
	// Toggle flips userID's like on the item and returns the new state
	// and the item's like count.
	Toggle(ctx context.Context, kind LikeKind, itemID, userID int64) (bool, int64, error)
}

type mysqlLikeStore struct {
	db *sql.DB
}

// NewMySQLLikeStore creates a LikeStore on the shared connection pool.
func NewMySQLLikeStore(db *sql.DB) LikeStore {
	return &mysqlLikeStore{db: db}
}

// Toggle removes the like row if present, inserts it otherwise. Both
// paths run in one transaction so concurrent toggles by the same user
// settle on exactly one state.
func (s *mysqlLikeStore) Toggle(ctx context.Context, kind LikeKind, itemID, userID int64) (bool, int64, error) {
	target, ok := likeTargets[kind]
	if !ok {
		return false, 0, fmt.Errorf("unknown like kind %q", kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin like transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	checkQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", target.itemTable)
	if err := tx.QueryRowContext(ctx, checkQuery, itemID).Scan(&exists); err != nil {
		return false, 0, fmt.Errorf("failed to check %s %d: %w", kind, itemID, err)
	}
	if exists == 0 {
		return false, 0, fmt.Errorf("%s %d: %w", kind, itemID, ErrNotFound)
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE %s = ? AND user_id = ?", target.table, target.itemColumn)
	res, err := tx.ExecContext(ctx, deleteQuery, itemID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to remove like: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read like delete result: %w", err)
	}

	liked := false
	if removed == 0 {
		insertQuery := fmt.Sprintf("INSERT INTO %s (%s, user_id) VALUES (?, ?)", target.table, target.itemColumn)
		if _, err := tx.ExecContext(ctx, insertQuery, itemID, userID); err != nil {
			return false, 0, fmt.Errorf("failed to insert like: %w", err)
		}
		liked = true
	}

	var count int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = ?", target.table, target.itemColumn)
	if err := tx.QueryRowContext(ctx, countQuery, itemID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("failed to count likes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit like transaction: %w", err)
	}
	return liked, count, nil
}
