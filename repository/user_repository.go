package repository

import (
	"context"
	"database/sql"
	"fmt"

	"voicewave/model"
)

// SearchPageSize caps user search results.
const SearchPageSize = 10

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (int64, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateProfile(ctx context.Context, userID int64, username, bio string) error
	UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error
	SearchUsers(ctx context.Context, query string) ([]*model.UserSummary, error)

	// Social graph. ToggleFollow flips the actor→target relationship and
	// returns the new state plus the target's follower count.
	ToggleFollow(ctx context.Context, actorID, targetID int64) (bool, int64, error)
	ListFollowers(ctx context.Context, userID int64) ([]*model.UserSummary, error)
	ListFollowing(ctx context.Context, userID int64) ([]*model.UserSummary, error)
}

// mysqlUserRepository implements UserRepository for MySQL.
type mysqlUserRepository struct {
	db *sql.DB
}

// NewMySQLUserRepository creates a new mysqlUserRepository.
func NewMySQLUserRepository(db *sql.DB) UserRepository {
	return &mysqlUserRepository{db: db}
}

const userColumns = "id, username, email, password_hash, bio, avatar, created_at, updated_at"

func scanUser(row *sql.Row) (*model.User, error) {
	user := &model.User{}
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash,
		&user.Bio, &user.Avatar, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found
		}
		return nil, fmt.Errorf("failed to scan user row: %w", err)
	}
	return user, nil
}

// CreateUser adds a new user to the database.
func (r *mysqlUserRepository) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	query := "INSERT INTO users (username, email, password_hash, bio, avatar) VALUES (?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, query, user.Username, user.Email, user.PasswordHash, user.Bio, user.Avatar)
	if err != nil {
		if isDuplicateEntry(err) {
			return 0, fmt.Errorf("create user %q: %w", user.Username, ErrDuplicateUser)
		}
		return 0, fmt.Errorf("failed to execute create user statement: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for user: %w", err)
	}
	return id, nil
}

// GetUserByID retrieves a user by their ID.
func (r *mysqlUserRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	return scanUser(r.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by their username.
func (r *mysqlUserRepository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE username = ?"
	return scanUser(r.db.QueryRowContext(ctx, query, username))
}

// GetUserByEmail retrieves a user by their email address.
func (r *mysqlUserRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"
	return scanUser(r.db.QueryRowContext(ctx, query, email))
}

// UpdateProfile updates a user's username and bio.
func (r *mysqlUserRepository) UpdateProfile(ctx context.Context, userID int64, username, bio string) error {
	query := "UPDATE users SET username = ?, bio = ?, updated_at = NOW() WHERE id = ?"
	res, err := r.db.ExecContext(ctx, query, username, bio, userID)
	if err != nil {
		if isDuplicateEntry(err) {
			return fmt.Errorf("update profile for user %d: %w", userID, ErrDuplicateUser)
		}
		return fmt.Errorf("failed to update profile for user %d: %w", userID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either absent or unchanged; treat unchanged as success.
		if user, err := r.GetUserByID(ctx, userID); err == nil && user == nil {
			return fmt.Errorf("user %d: %w", userID, ErrNotFound)
		}
	}
	return nil
}

// UpdateAvatar replaces a user's avatar reference.
func (r *mysqlUserRepository) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error {
	query := "UPDATE users SET avatar = ?, updated_at = NOW() WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, avatarURL, userID); err != nil {
		return fmt.Errorf("failed to update avatar for user %d: %w", userID, err)
	}
	return nil
}

// SearchUsers performs a case-insensitive substring match over username
// and bio, in storage order, capped at SearchPageSize.
func (r *mysqlUserRepository) SearchUsers(ctx context.Context, query string) ([]*model.UserSummary, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.bio,
		       (SELECT COUNT(*) FROM follows f WHERE f.followed_id = u.id) AS follower_count
		FROM users u
		WHERE LOWER(u.username) LIKE LOWER(?) OR LOWER(u.bio) LIKE LOWER(?)
		ORDER BY u.id
		LIMIT ?`, pattern, pattern, SearchPageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	return scanUserSummaries(rows)
}

// ToggleFollow flips the follow relationship from actor to target.
// The relationship is a single row, so both directions of the graph
// stay consistent by construction, and the insert/delete is atomic.
func (r *mysqlUserRepository) ToggleFollow(ctx context.Context, actorID, targetID int64) (bool, int64, error) {
	if actorID == targetID {
		return false, 0, ErrSelfFollow
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, 0, fmt.Errorf("failed to begin follow transaction: %w", err)
	}
	defer tx.Rollback()

	var present int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users WHERE id IN (?, ?)", actorID, targetID).Scan(&present)
	if err != nil {
		return false, 0, fmt.Errorf("failed to check follow participants: %w", err)
	}
	if present != 2 {
		return false, 0, fmt.Errorf("follow %d -> %d: %w", actorID, targetID, ErrNotFound)
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM follows WHERE follower_id = ? AND followed_id = ?", actorID, targetID)
	if err != nil {
		return false, 0, fmt.Errorf("failed to remove follow: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("failed to read follow delete result: %w", err)
	}

	following := false
	if removed == 0 {
		if _, err := tx.ExecContext(ctx, "INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)", actorID, targetID); err != nil {
			return false, 0, fmt.Errorf("failed to insert follow: %w", err)
		}
		following = true
	}

	var followers int64
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM follows WHERE followed_id = ?", targetID).Scan(&followers); err != nil {
		return false, 0, fmt.Errorf("failed to count followers: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, 0, fmt.Errorf("failed to commit follow transaction: %w", err)
	}
	return following, followers, nil
}

// ListFollowers returns the users following userID.
func (r *mysqlUserRepository) ListFollowers(ctx context.Context, userID int64) ([]*model.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.bio,
		       (SELECT COUNT(*) FROM follows fc WHERE fc.followed_id = u.id) AS follower_count
		FROM follows f
		JOIN users u ON u.id = f.follower_id
		WHERE f.followed_id = ?
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list followers for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanUserSummaries(rows)
}

// ListFollowing returns the users userID follows.
func (r *mysqlUserRepository) ListFollowing(ctx context.Context, userID int64) ([]*model.UserSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.avatar, u.bio,
		       (SELECT COUNT(*) FROM follows fc WHERE fc.followed_id = u.id) AS follower_count
		FROM follows f
		JOIN users u ON u.id = f.followed_id
		WHERE f.follower_id = ?
		ORDER BY f.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list following for user %d: %w", userID, err)
	}
	defer rows.Close()

	return scanUserSummaries(rows)
}

func scanUserSummaries(rows *sql.Rows) ([]*model.UserSummary, error) {
	users := make([]*model.UserSummary, 0)
	for rows.Next() {
		u := &model.UserSummary{}
		if err := rows.Scan(&u.ID, &u.Username, &u.Avatar, &u.Bio, &u.FollowerCount); err != nil {
			return nil, fmt.Errorf("failed to scan user summary: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user rows: %w", err)
	}
	return users, nil
}
