package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"voicewave/model"
)

// CommentRepository defines the interface for comment data operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id int64) (*model.Comment, error)
	Delete(ctx context.Context, id int64) error
	ListByAudio(ctx context.Context, audioID int64, page, pageSize int) (*model.CommentPage, error)
	CountByAudio(ctx context.Context, audioID int64) (int64, error)
}

// gormCommentRepository implements CommentRepository on GORM.
type gormCommentRepository struct {
	db *gorm.DB
}

// NewGormCommentRepository creates a new gormCommentRepository.
func NewGormCommentRepository(db *gorm.DB) CommentRepository {
	return &gormCommentRepository{db: db}
}

// Create persists a new comment and fills its generated fields.
func (r *gormCommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if err := r.db.WithContext(ctx).Create(comment).Error; err != nil {
		return fmt.Errorf("failed to create comment: %w", err)
	}
	return r.expandComments(ctx, []*model.Comment{comment})
}

// GetByID loads one comment with its commenter and like data expanded.
func (r *gormCommentRepository) GetByID(ctx context.Context, id int64) (*model.Comment, error) {
	comment := &model.Comment{}
	err := r.db.WithContext(ctx).First(comment, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("comment %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get comment %d: %w", id, err)
	}
	if err := r.expandComments(ctx, []*model.Comment{comment}); err != nil {
		return nil, err
	}
	return comment, nil
}

// Delete removes the comment and its like rows. comment_likes carries
// no FK to comments (the tables are created by different migrators), so
// the cleanup is explicit.
func (r *gormCommentRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Comment{}, id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete comment %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("comment %d: %w", id, ErrNotFound)
		}
		if err := tx.Exec("DELETE FROM comment_likes WHERE comment_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to delete likes of comment %d: %w", id, err)
		}
		return nil
	})
}

// ListByAudio returns a page of an audio's comments, newest first.
func (r *gormCommentRepository) ListByAudio(ctx context.Context, audioID int64, page, pageSize int) (*model.CommentPage, error) {
	total, err := r.CountByAudio(ctx, audioID)
	if err != nil {
		return nil, err
	}

	comments := make([]*model.Comment, 0, pageSize)
	err = r.db.WithContext(ctx).
		Where("audio_id = ?", audioID).
		Order("created_at DESC, id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		Find(&comments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list comments for audio %d: %w", audioID, err)
	}

	if err := r.expandComments(ctx, comments); err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return &model.CommentPage{
		Comments:      comments,
		CurrentPage:   page,
		TotalPages:    totalPages,
		TotalComments: total,
	}, nil
}

// CountByAudio returns how many comments an audio has.
func (r *gormCommentRepository) CountByAudio(ctx context.Context, audioID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Comment{}).Where("audio_id = ?", audioID).Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count comments for audio %d: %w", audioID, err)
	}
	return total, nil
}

// expandComments fills commenter refs and like data for a batch of
// comments.
func (r *gormCommentRepository) expandComments(ctx context.Context, comments []*model.Comment) error {
	if len(comments) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Comment, len(comments))
	commentIDs := make([]int64, 0, len(comments))
	userIDs := make([]int64, 0, len(comments))
	seenUser := make(map[int64]bool, len(comments))
	for _, c := range comments {
		c.Likes = []model.UserRef{}
		byID[c.ID] = c
		commentIDs = append(commentIDs, c.ID)
		if !seenUser[c.UserID] {
			seenUser[c.UserID] = true
			userIDs = append(userIDs, c.UserID)
		}
	}

	var commenters []model.UserRef
	err := r.db.WithContext(ctx).
		Table("users").
		Select("id, username, avatar").
		Where("id IN ?", userIDs).
		Scan(&commenters).Error
	if err != nil {
		return fmt.Errorf("failed to load commenters: %w", err)
	}
	refs := make(map[int64]*model.UserRef, len(commenters))
	for i := range commenters {
		refs[commenters[i].ID] = &commenters[i]
	}
	for _, c := range comments {
		c.User = refs[c.UserID]
	}

	var likeRows []struct {
		CommentID int64
		ID        int64
		Username  string
		Avatar    string
	}
	err = r.db.WithContext(ctx).
		Table("comment_likes").
		Select("comment_likes.comment_id, users.id, users.username, users.avatar").
		Joins("JOIN users ON users.id = comment_likes.user_id").
		Where("comment_likes.comment_id IN ?", commentIDs).
		Order("comment_likes.created_at").
		Scan(&likeRows).Error
	if err != nil {
		return fmt.Errorf("failed to load comment likes: %w", err)
	}
	for _, row := range likeRows {
		if c := byID[row.CommentID]; c != nil {
			c.Likes = append(c.Likes, model.UserRef{ID: row.ID, Username: row.Username, Avatar: row.Avatar})
		}
	}
	for _, c := range comments {
		c.LikeCount = int64(len(c.Likes))
	}
	return nil
}
