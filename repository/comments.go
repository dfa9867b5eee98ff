package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cachequery"
	"github.com/hnatiak/photoshare/model"
	apperrors "github.com/hnatiak/photoshare/pkg/errors"
	"github.com/hnatiak/photoshare/schema"
)

// Comments is the comment repository. Its cached graphs embed the author,
// and it announces every write with the comment id, the photo id and the
// author id so photo-keyed entries fall too.
type Comments struct {
	deps Deps
	exec cachequery.Executor[model.Comment]
}

// NewComments builds the repository and registers its cache invalidation.
func NewComments(deps Deps) *Comments {
	return &Comments{
		deps: deps,
		exec: cachequery.NewCacheable[model.Comment](deps.executorConfig(
			PrefixComment,
			[]string{PrefixComment, PrefixPhoto},
			"User",
		)),
	}
}

// Create adds a comment to an existing photo.
func (r *Comments) Create(ctx context.Context, userID int64, photoID uuid.UUID, input schema.CommentInput) (*model.Comment, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid comment", err)
	}

	exists, err := r.deps.DB.NewSelect().Model((*model.Photo)(nil)).Where("p.id = ?", photoID).Exists(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "check photo")
	}
	if !exists {
		return nil, apperrors.NewNotFound("photo", photoID)
	}

	comment := &model.Comment{
		PhotoID:   photoID,
		UserID:    userID,
		Text:      input.Text,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.deps.DB.NewInsert().Model(comment).Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "create comment")
	}

	r.deps.trigger(ctx, PrefixComment, cachequery.EventCreated, comment.ID, photoID, userID)
	return comment, nil
}

// Edit rewrites the comment body. Authors may edit their own comments;
// other callers need an elevated role.
func (r *Comments) Edit(ctx context.Context, actor *model.User, id int64, input schema.CommentInput) (*model.Comment, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid comment", err)
	}

	comment, err := r.loadForWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	comment.Text = input.Text
	comment.UpdatedAt = time.Now().UTC()
	if _, err := r.deps.DB.NewUpdate().Model(comment).
		Column("text", "updated_at").
		WherePK().
		Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "edit comment")
	}

	r.deps.trigger(ctx, PrefixComment, cachequery.EventUpdated, comment.ID, comment.PhotoID, comment.UserID)
	return comment, nil
}

// Delete removes the comment under the same permission rule as Edit.
func (r *Comments) Delete(ctx context.Context, actor *model.User, id int64) error {
	comment, err := r.loadForWrite(ctx, actor, id)
	if err != nil {
		return err
	}

	if _, err := r.deps.DB.NewDelete().Model((*model.Comment)(nil)).Where("id = ?", id).Exec(ctx); err != nil {
		return apperrors.Wrap(err, "delete comment")
	}

	r.deps.trigger(ctx, PrefixComment, cachequery.EventDeleted, comment.ID, comment.PhotoID, comment.UserID)
	return nil
}

// ByPhoto returns a page of a photo's comments, oldest first.
func (r *Comments) ByPhoto(ctx context.Context, photoID uuid.UUID, limit, offset int) ([]model.Comment, error) {
	q := newQuery[model.Comment](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("c.photo_id = ?", photoID).
			Order("c.created_at ASC", "c.id ASC").
			Limit(limit).Offset(offset)
	})
	return r.exec.GetAll(ctx, q)
}

// ByUser returns a page of a user's comments, newest first.
func (r *Comments) ByUser(ctx context.Context, userID int64, limit, offset int) ([]model.Comment, error) {
	q := newQuery[model.Comment](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("c.user_id = ?", userID).
			Order("c.created_at DESC", "c.id DESC").
			Limit(limit).Offset(offset)
	})
	return r.exec.GetAll(ctx, q)
}

// ByUserAndPhoto returns everything one user said under one photo.
func (r *Comments) ByUserAndPhoto(ctx context.Context, userID int64, photoID uuid.UUID) ([]model.Comment, error) {
	q := newQuery[model.Comment](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("c.user_id = ?", userID).
			Where("c.photo_id = ?", photoID).
			Order("c.created_at ASC", "c.id ASC")
	})
	return r.exec.GetAll(ctx, q)
}

func (r *Comments) loadForWrite(ctx context.Context, actor *model.User, id int64) (*model.Comment, error) {
	comment := new(model.Comment)
	err := r.deps.DB.NewSelect().Model(comment).Where("c.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("comment", id)
		}
		return nil, apperrors.Wrap(err, "load comment")
	}
	if actor == nil || (comment.UserID != actor.ID && !actor.Role.Elevated()) {
		return nil, apperrors.NewAccessDenied("not allowed to modify this comment")
	}
	return comment, nil
}
