package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"voicewave/model"
)

// PreviewCommentCount is how many recent comments a listing embeds per audio.
const PreviewCommentCount = 3

// AudioFilter narrows ListAudios. Zero values are ignored.
type AudioFilter struct {
	OwnerID     int64  // Only audios owned by this user
	Tag         string // Only audios carrying this tag
	Query       string // Full-text match over title and description
	RequesterID int64  // Relaxes the privacy filter when it matches OwnerID
}

// AudioRepository defines the interface for audio data operations.
type AudioRepository interface {
	Create(ctx context.Context, audio *model.Audio) (int64, error)
	GetByID(ctx context.Context, id int64) (*model.Audio, error)
	Delete(ctx context.Context, id int64) error
	ListAudios(ctx context.Context, filter AudioFilter, page, pageSize int) (*model.AudioPage, error)
	GetTrending(ctx context.Context, limit, windowDays int) ([]*model.Audio, error)
	GetFeed(ctx context.Context, userID int64, page, pageSize int) (*model.AudioPage, error)
	IncrementViews(ctx context.Context, id int64) error
}

// mysqlAudioRepository implements AudioRepository for MySQL.
type mysqlAudioRepository struct {
	db *sql.DB
}

// NewMySQLAudioRepository creates a new mysqlAudioRepository.
func NewMySQLAudioRepository(db *sql.DB) AudioRepository {
	return &mysqlAudioRepository{db: db}
}

const audioColumns = "a.id, a.user_id, a.title, a.description, a.audio_url, a.duration, a.is_private, a.views, a.created_at, a.updated_at"

// Create inserts the audio and its tags in one transaction.
func (r *mysqlAudioRepository) Create(ctx context.Context, audio *model.Audio) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin audio create transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO audios (user_id, title, description, audio_url, duration, is_private) VALUES (?, ?, ?, ?, ?, ?)",
		audio.UserID, audio.Title, audio.Description, audio.AudioURL, audio.Duration, audio.IsPrivate)
	if err != nil {
		return 0, fmt.Errorf("failed to insert audio: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get audio insert ID: %w", err)
	}

	for _, tag := range audio.Tags {
		if _, err := tx.ExecContext(ctx, "INSERT INTO audio_tags (audio_id, tag) VALUES (?, ?)", id, tag); err != nil {
			return 0, fmt.Errorf("failed to insert tag %q: %w", tag, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit audio create: %w", err)
	}
	return id, nil
}

// GetByID loads one audio with its owner, tags, likers and comment
// previews expanded. Returns ErrNotFound when absent.
func (r *mysqlAudioRepository) GetByID(ctx context.Context, id int64) (*model.Audio, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+audioColumns+" FROM audios a WHERE a.id = ?", id)
	audio, err := scanAudio(row)
	if err != nil {
		return nil, err
	}
	if audio == nil {
		return nil, fmt.Errorf("audio %d: %w", id, ErrNotFound)
	}
	if err := r.expandAudios(ctx, []*model.Audio{audio}); err != nil {
		return nil, err
	}
	return audio, nil
}

// Delete removes the audio. Tags and likes follow via cascading foreign
// keys; comments and their likes are GORM-managed without an FK back to
// audios, so they are swept in the same transaction.
func (r *mysqlAudioRepository) Delete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audio delete transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM comment_likes WHERE comment_id IN (SELECT id FROM comments WHERE audio_id = ?)", id); err != nil {
		return fmt.Errorf("failed to delete comment likes for audio %d: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM comments WHERE audio_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete comments for audio %d: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM audios WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete audio %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("audio %d: %w", id, ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audio delete: %w", err)
	}
	return nil
}

// ListAudios returns a page of audios newest first, applying the filter.
func (r *mysqlAudioRepository) ListAudios(ctx context.Context, filter AudioFilter, page, pageSize int) (*model.AudioPage, error) {
	where, args := buildAudioWhere(filter)
	return r.pagedAudios(ctx, where, args, page, pageSize)
}

// GetFeed returns the public audios of the users userID follows,
// newest first.
func (r *mysqlAudioRepository) GetFeed(ctx context.Context, userID int64, page, pageSize int) (*model.AudioPage, error) {
	where := "WHERE a.is_private = 0 AND a.user_id IN (SELECT f.followed_id FROM follows f WHERE f.follower_id = ?)"
	return r.pagedAudios(ctx, where, []interface{}{userID}, page, pageSize)
}

func (r *mysqlAudioRepository) pagedAudios(ctx context.Context, where string, args []interface{}, page, pageSize int) (*model.AudioPage, error) {
	var total int64
	countQuery := "SELECT COUNT(*) FROM audios a " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count audios: %w", err)
	}

	query := "SELECT " + audioColumns + " FROM audios a " + where +
		" ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?"
	listArgs := append(append([]interface{}{}, args...), pageSize, (page-1)*pageSize)

	rows, err := r.db.QueryContext(ctx, query, listArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audios: %w", err)
	}
	defer rows.Close()

	audios, err := scanAudios(rows)
	if err != nil {
		return nil, err
	}
	if err := r.expandAudios(ctx, audios); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &model.AudioPage{
		Audios:      audios,
		CurrentPage: page,
		TotalPages:  totalPages,
		TotalAudios: total,
	}, nil
}

// GetTrending returns the most engaging public audios of the recent
// window, ranked by like count, then comment count, then recency.
func (r *mysqlAudioRepository) GetTrending(ctx context.Context, limit, windowDays int) ([]*model.Audio, error) {
	query := "SELECT " + audioColumns + `,
		(SELECT COUNT(*) FROM audio_likes l WHERE l.audio_id = a.id) AS like_count,
		(SELECT COUNT(*) FROM comments c WHERE c.audio_id = a.id) AS comment_count
		FROM audios a
		WHERE a.is_private = 0 AND a.created_at >= DATE_SUB(NOW(), INTERVAL ? DAY)
		ORDER BY like_count DESC, comment_count DESC, a.created_at DESC, a.id DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, windowDays, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trending audios: %w", err)
	}
	defer rows.Close()

	audios := make([]*model.Audio, 0, limit)
	for rows.Next() {
		a := &model.Audio{}
		err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.AudioURL, &a.Duration,
			&a.IsPrivate, &a.Views, &a.CreatedAt, &a.UpdatedAt, &a.LikeCount, &a.CommentCount)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trending audio: %w", err)
		}
		audios = append(audios, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trending rows: %w", err)
	}

	if err := r.expandAudios(ctx, audios); err != nil {
		return nil, err
	}
	return audios, nil
}

// IncrementViews bumps the playback counter.
func (r *mysqlAudioRepository) IncrementViews(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, "UPDATE audios SET views = views + 1 WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to increment views for audio %d: %w", id, err)
	}
	return nil
}

func buildAudioWhere(filter AudioFilter) (string, []interface{}) {
	conds := make([]string, 0, 4)
	args := make([]interface{}, 0, 4)

	if filter.OwnerID != 0 {
		conds = append(conds, "a.user_id = ?")
		args = append(args, filter.OwnerID)
	}
	if filter.Tag != "" {
		conds = append(conds, "a.id IN (SELECT t.audio_id FROM audio_tags t WHERE t.tag = ?)")
		args = append(args, strings.ToLower(filter.Tag))
	}
	if filter.Query != "" {
		conds = append(conds, "MATCH(a.title, a.description) AGAINST (? IN NATURAL LANGUAGE MODE)")
		args = append(args, filter.Query)
	}
	// Private audios only surface when the owner lists their own audios.
	// Unscoped listings stay public even for signed-in requesters.
	if filter.RequesterID != 0 && filter.RequesterID == filter.OwnerID {
		conds = append(conds, "(a.is_private = 0 OR a.user_id = ?)")
		args = append(args, filter.RequesterID)
	} else {
		conds = append(conds, "a.is_private = 0")
	}

	return "WHERE " + strings.Join(conds, " AND "), args
}

func scanAudio(row *sql.Row) (*model.Audio, error) {
	a := &model.Audio{}
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.AudioURL, &a.Duration,
		&a.IsPrivate, &a.Views, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to scan audio row: %w", err)
	}
	return a, nil
}

func scanAudios(rows *sql.Rows) ([]*model.Audio, error) {
	audios := make([]*model.Audio, 0)
	for rows.Next() {
		a := &model.Audio{}
		err := rows.Scan(&a.ID, &a.UserID, &a.Title, &a.Description, &a.AudioURL, &a.Duration,
			&a.IsPrivate, &a.Views, &a.CreatedAt, &a.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audio row: %w", err)
		}
		audios = append(audios, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audio rows: %w", err)
	}
	return audios, nil
}

// expandAudios fills owner refs, tags, liker lists, comment previews and
// counts for a batch of audios using IN queries.
func (r *mysqlAudioRepository) expandAudios(ctx context.Context, audios []*model.Audio) error {
	if len(audios) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Audio, len(audios))
	ids := make([]interface{}, 0, len(audios))
	for _, a := range audios {
		a.Tags = []string{}
		a.Likes = []model.UserRef{}
		a.Comments = []*model.Comment{}
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}
	in := placeholders(len(ids))

	if err := r.expandOwners(ctx, audios); err != nil {
		return err
	}

	// Tags.
	rows, err := r.db.QueryContext(ctx,
		"SELECT audio_id, tag FROM audio_tags WHERE audio_id IN ("+in+") ORDER BY audio_id, tag", ids...)
	if err != nil {
		return fmt.Errorf("failed to query tags: %w", err)
	}
	for rows.Next() {
		var audioID int64
		var tag string
		if err := rows.Scan(&audioID, &tag); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan tag: %w", err)
		}
		if a := byID[audioID]; a != nil {
			a.Tags = append(a.Tags, tag)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tag rows: %w", err)
	}

	// Likers.
	rows, err = r.db.QueryContext(ctx, `
		SELECT l.audio_id, u.id, u.username, u.avatar
		FROM audio_likes l
		JOIN users u ON u.id = l.user_id
		WHERE l.audio_id IN (`+in+`)
		ORDER BY l.created_at`, ids...)
	if err != nil {
		return fmt.Errorf("failed to query audio likes: %w", err)
	}
	for rows.Next() {
		var audioID int64
		var ref model.UserRef
		if err := rows.Scan(&audioID, &ref.ID, &ref.Username, &ref.Avatar); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan liker: %w", err)
		}
		if a := byID[audioID]; a != nil {
			a.Likes = append(a.Likes, ref)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate liker rows: %w", err)
	}
	for _, a := range audios {
		a.LikeCount = int64(len(a.Likes))
	}

	// Comment counts.
	rows, err = r.db.QueryContext(ctx,
		"SELECT audio_id, COUNT(*) FROM comments WHERE audio_id IN ("+in+") GROUP BY audio_id", ids...)
	if err != nil {
		return fmt.Errorf("failed to count comments: %w", err)
	}
	for rows.Next() {
		var audioID, count int64
		if err := rows.Scan(&audioID, &count); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan comment count: %w", err)
		}
		if a := byID[audioID]; a != nil {
			a.CommentCount = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate comment count rows: %w", err)
	}

	// Recent comment previews, newest first per audio.
	rows, err = r.db.QueryContext(ctx, `
		SELECT c.id, c.user_id, c.audio_id, c.content, c.audio_url, c.audio_duration,
		       c.created_at, c.updated_at, u.id, u.username, u.avatar
		FROM comments c
		JOIN users u ON u.id = c.user_id
		WHERE c.audio_id IN (`+in+`)
		ORDER BY c.audio_id, c.created_at DESC, c.id DESC`, ids...)
	if err != nil {
		return fmt.Errorf("failed to query comment previews: %w", err)
	}
	for rows.Next() {
		c := &model.Comment{User: &model.UserRef{}}
		err := rows.Scan(&c.ID, &c.UserID, &c.AudioID, &c.Content, &c.AudioURL, &c.AudioDuration,
			&c.CreatedAt, &c.UpdatedAt, &c.User.ID, &c.User.Username, &c.User.Avatar)
		if err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan comment preview: %w", err)
		}
		if a := byID[c.AudioID]; a != nil && len(a.Comments) < PreviewCommentCount {
			a.Comments = append(a.Comments, c)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate comment preview rows: %w", err)
	}

	return nil
}

func (r *mysqlAudioRepository) expandOwners(ctx context.Context, audios []*model.Audio) error {
	ownerIDs := make(map[int64]bool, len(audios))
	args := make([]interface{}, 0, len(audios))
	for _, a := range audios {
		if !ownerIDs[a.UserID] {
			ownerIDs[a.UserID] = true
			args = append(args, a.UserID)
		}
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, username, avatar FROM users WHERE id IN ("+placeholders(len(args))+")", args...)
	if err != nil {
		return fmt.Errorf("failed to query audio owners: %w", err)
	}
	defer rows.Close()

	owners := make(map[int64]*model.UserRef, len(args))
	for rows.Next() {
		ref := &model.UserRef{}
		if err := rows.Scan(&ref.ID, &ref.Username, &ref.Avatar); err != nil {
			return fmt.Errorf("failed to scan audio owner: %w", err)
		}
		owners[ref.ID] = ref
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate owner rows: %w", err)
	}

	for _, a := range audios {
		a.User = owners[a.UserID]
	}
	return nil
}

// placeholders returns "?, ?, ..." of length n for IN clauses.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}
