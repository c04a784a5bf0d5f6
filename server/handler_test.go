package server

import (
	"context"
	"io"
	"time"

	"voicewave/cache"
	"voicewave/config"
	"voicewave/core/auth"
	"voicewave/core/room"
	"voicewave/model"
	"voicewave/repository"
)

// Function-field fakes so each test overrides only what it touches.

type fakeUserRepo struct {
	createUser    func(ctx context.Context, user *model.User) (int64, error)
	getByID       func(ctx context.Context, id int64) (*model.User, error)
	getByUsername func(ctx context.Context, username string) (*model.User, error)
	getByEmail    func(ctx context.Context, email string) (*model.User, error)
	updateProfile func(ctx context.Context, userID int64, username, bio string) error
	updateAvatar  func(ctx context.Context, userID int64, avatarURL string) error
	searchUsers   func(ctx context.Context, query string) ([]*model.UserSummary, error)
	toggleFollow  func(ctx context.Context, actorID, targetID int64) (bool, int64, error)
	listFollowers func(ctx context.Context, userID int64) ([]*model.UserSummary, error)
	listFollowing func(ctx context.Context, userID int64) ([]*model.UserSummary, error)
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *model.User) (int64, error) {
	return f.createUser(ctx, user)
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return f.getByID(ctx, id)
}

func (f *fakeUserRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return f.getByUsername(ctx, username)
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return f.getByEmail(ctx, email)
}

func (f *fakeUserRepo) UpdateProfile(ctx context.Context, userID int64, username, bio string) error {
	return f.updateProfile(ctx, userID, username, bio)
}

func (f *fakeUserRepo) UpdateAvatar(ctx context.Context, userID int64, avatarURL string) error {
	return f.updateAvatar(ctx, userID, avatarURL)
}

func (f *fakeUserRepo) SearchUsers(ctx context.Context, query string) ([]*model.UserSummary, error) {
	return f.searchUsers(ctx, query)
}

func (f *fakeUserRepo) ToggleFollow(ctx context.Context, actorID, targetID int64) (bool, int64, error) {
	return f.toggleFollow(ctx, actorID, targetID)
}

func (f *fakeUserRepo) ListFollowers(ctx context.Context, userID int64) ([]*model.UserSummary, error) {
	return f.listFollowers(ctx, userID)
}

func (f *fakeUserRepo) ListFollowing(ctx context.Context, userID int64) ([]*model.UserSummary, error) {
	return f.listFollowing(ctx, userID)
}

type fakeAudioRepo struct {
	create         func(ctx context.Context, audio *model.Audio) (int64, error)
	getByID        func(ctx context.Context, id int64) (*model.Audio, error)
	delete         func(ctx context.Context, id int64) error
	listAudios     func(ctx context.Context, filter repository.AudioFilter, page, pageSize int) (*model.AudioPage, error)
	getTrending    func(ctx context.Context, limit, windowDays int) ([]*model.Audio, error)
	getFeed        func(ctx context.Context, userID int64, page, pageSize int) (*model.AudioPage, error)
	incrementViews func(ctx context.Context, id int64) error
}

func (f *fakeAudioRepo) Create(ctx context.Context, audio *model.Audio) (int64, error) {
	return f.create(ctx, audio)
}

func (f *fakeAudioRepo) GetByID(ctx context.Context, id int64) (*model.Audio, error) {
	return f.getByID(ctx, id)
}

func (f *fakeAudioRepo) Delete(ctx context.Context, id int64) error {
	return f.delete(ctx, id)
}

func (f *fakeAudioRepo) ListAudios(ctx context.Context, filter repository.AudioFilter, page, pageSize int) (*model.AudioPage, error) {
	return f.listAudios(ctx, filter, page, pageSize)
}

func (f *fakeAudioRepo) GetTrending(ctx context.Context, limit, windowDays int) ([]*model.Audio, error) {
	return f.getTrending(ctx, limit, windowDays)
}

func (f *fakeAudioRepo) GetFeed(ctx context.Context, userID int64, page, pageSize int) (*model.AudioPage, error) {
	return f.getFeed(ctx, userID, page, pageSize)
}

func (f *fakeAudioRepo) IncrementViews(ctx context.Context, id int64) error {
	return f.incrementViews(ctx, id)
}

type fakeCommentRepo struct {
	create       func(ctx context.Context, comment *model.Comment) error
	getByID      func(ctx context.Context, id int64) (*model.Comment, error)
	delete       func(ctx context.Context, id int64) error
	listByAudio  func(ctx context.Context, audioID int64, page, pageSize int) (*model.CommentPage, error)
	countByAudio func(ctx context.Context, audioID int64) (int64, error)
}

func (f *fakeCommentRepo) Create(ctx context.Context, comment *model.Comment) error {
	return f.create(ctx, comment)
}

func (f *fakeCommentRepo) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	return f.getByID(ctx, id)
}

func (f *fakeCommentRepo) Delete(ctx context.Context, id int64) error {
	return f.delete(ctx, id)
}

func (f *fakeCommentRepo) ListByAudio(ctx context.Context, audioID int64, page, pageSize int) (*model.CommentPage, error) {
	return f.listByAudio(ctx, audioID, page, pageSize)
}

func (f *fakeCommentRepo) CountByAudio(ctx context.Context, audioID int64) (int64, error) {
	return f.countByAudio(ctx, audioID)
}

type fakeLikeStore struct {
	toggle func(ctx context.Context, kind repository.LikeKind, itemID, userID int64) (bool, int64, error)
}

func (f *fakeLikeStore) Toggle(ctx context.Context, kind repository.LikeKind, itemID, userID int64) (bool, int64, error) {
	return f.toggle(ctx, kind, itemID, userID)
}

type fakeObjectStore struct {
	upload func(ctx context.Context, prefix, originalName, contentType string, r io.Reader, size int64) (string, error)
	remove func(ctx context.Context, url string) error
}

func (f *fakeObjectStore) Upload(ctx context.Context, prefix, originalName, contentType string, r io.Reader, size int64) (string, error) {
	if f.upload == nil {
		return "http://media/test/object.mp3", nil
	}
	return f.upload(ctx, prefix, originalName, contentType, r, size)
}

func (f *fakeObjectStore) Remove(ctx context.Context, url string) error {
	if f.remove == nil {
		return nil
	}
	return f.remove(ctx, url)
}

// testDeps bundles the fakes behind a handler wired like production,
// with the trending cache disabled and a running hub.
type testDeps struct {
	users    *fakeUserRepo
	audios   *fakeAudioRepo
	comments *fakeCommentRepo
	likes    *fakeLikeStore
	store    *fakeObjectStore
	tokens   *auth.TokenIssuer
	hub      *room.CommentHub
	handler  *APIHandler
}

func newTestDeps() *testDeps {
	d := &testDeps{
		users:    &fakeUserRepo{},
		audios:   &fakeAudioRepo{},
		comments: &fakeCommentRepo{},
		likes:    &fakeLikeStore{},
		store:    &fakeObjectStore{},
		tokens:   auth.NewTokenIssuer("test-secret", time.Hour),
		hub:      room.NewCommentHub(),
	}
	go d.hub.Run()

	cfg := &config.Config{
		MaxUploadSizeMB:    4,
		TrendingWindowDays: 7,
	}
	d.handler = NewAPIHandler(cfg, d.users, d.audios, d.comments, d.likes, d.store,
		d.tokens, d.hub, cache.NewTrendingCache(nil, 0))
	return d
}

func (d *testDeps) close() {
	d.hub.Stop()
}

func (d *testDeps) tokenFor(userID int64, username string) string {
	token, err := d.tokens.GenerateToken(userID, username)
	if err != nil {
		panic(err)
	}
	return token
}
