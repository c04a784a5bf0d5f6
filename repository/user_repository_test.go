package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"voicewave/model"
)

func setupUserMock(t *testing.T) (UserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewMySQLUserRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

func TestCreateUser_Duplicate(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WithArgs("alice", "alice@example.com", "hash", "", "").
		WillReturnError(errors.New("Error 1062: Duplicate entry 'alice' for key 'username'"))

	_, err := repo.CreateUser(context.Background(), &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "hash",
	})
	if !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, username, email, password_hash, bio, avatar, created_at, updated_at FROM users WHERE id = ?")).
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	user, err := repo.GetUserByID(context.Background(), 42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != nil {
		t.Errorf("expected nil user, got %+v", user)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToggleFollow_Follow(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE id IN (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM follows WHERE follower_id = ? AND followed_id = ?")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO follows (follower_id, followed_id) VALUES (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM follows WHERE followed_id = ?")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectCommit()

	following, followers, err := repo.ToggleFollow(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !following {
		t.Errorf("expected following true")
	}
	if followers != 1 {
		t.Errorf("expected 1 follower, got %d", followers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToggleFollow_Unfollow(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE id IN (?, ?)")).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM follows WHERE follower_id = ? AND followed_id = ?")).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM follows WHERE followed_id = ?")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectCommit()

	following, followers, err := repo.ToggleFollow(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if following {
		t.Errorf("expected following false")
	}
	if followers != 0 {
		t.Errorf("expected 0 followers, got %d", followers)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestToggleFollow_Self(t *testing.T) {
	repo, _, cleanup := setupUserMock(t)
	defer cleanup()

	_, _, err := repo.ToggleFollow(context.Background(), 7, 7)
	if !errors.Is(err, ErrSelfFollow) {
		t.Errorf("expected ErrSelfFollow, got %v", err)
	}
}

func TestToggleFollow_MissingUser(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE id IN (?, ?)")).
		WithArgs(int64(1), int64(999)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	_, _, err := repo.ToggleFollow(context.Background(), 1, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSearchUsers(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "username", "avatar", "bio", "follower_count"}).
		AddRow(1, "alice", "", "likes audio", 3).
		AddRow(2, "alicia", "a.png", "", 0)

	mock.ExpectQuery("SELECT u.id, u.username, u.avatar, u.bio").
		WithArgs("%ali%", "%ali%", SearchPageSize).
		WillReturnRows(rows)

	users, err := repo.SearchUsers(context.Background(), "ali")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}
	if users[0].Username != "alice" || users[0].FollowerCount != 3 {
		t.Errorf("unexpected first result: %+v", users[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
