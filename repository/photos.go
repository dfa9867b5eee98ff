package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cachequery"
	"github.com/hnatiak/photoshare/model"
	apperrors "github.com/hnatiak/photoshare/pkg/errors"
	"github.com/hnatiak/photoshare/schema"
)

// photoFilterFields are the fields the list filter grammar accepts.
var photoFilterFields = []string{"description", "tag"}

// Photos is the photo repository. Cached photo graphs embed the owner, the
// tag list and the comments, so the executor listens on the comment and
// user prefixes as well as its own.
type Photos struct {
	deps Deps
	exec cachequery.Executor[model.Photo]
}

// NewPhotos builds the repository and registers its cache invalidation.
func NewPhotos(deps Deps) *Photos {
	return &Photos{
		deps: deps,
		exec: cachequery.NewCacheable[model.Photo](deps.executorConfig(
			PrefixPhoto,
			[]string{PrefixPhoto, PrefixComment, PrefixUser},
			"User", "Tags", "Comments",
		)),
	}
}

// List returns a page of photos, newest first, narrowed by the filter
// expression ("description::sunset|tag::nature").
func (r *Photos) List(ctx context.Context, filter string, limit, offset int) ([]model.Photo, error) {
	clauses, err := ParseFilter(filter, photoFilterFields...)
	if err != nil {
		return nil, err
	}

	q := newQuery[model.Photo](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		for _, clause := range clauses {
			switch clause.Field {
			case "description":
				sq = sq.Where("p.description LIKE ?", "%"+clause.Value+"%")
			case "tag":
				sq = sq.Where(
					"EXISTS (SELECT 1 FROM photo_tags pt JOIN tags t ON t.id = pt.tag_id WHERE pt.photo_id = p.id AND t.name = ?)",
					normalizeTag(clause.Value),
				)
			}
		}
		return sq.Order("p.created_at DESC", "p.id DESC").Limit(limit).Offset(offset)
	})
	return r.exec.GetAll(ctx, q)
}

// Get returns the photo with its owner, tags and comments.
func (r *Photos) Get(ctx context.Context, id uuid.UUID) (*model.Photo, error) {
	q := newQuery[model.Photo](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("p.id = ?", id)
	})
	photo, err := r.exec.GetFirst(ctx, id, q)
	if err != nil {
		return nil, err
	}
	if photo == nil {
		return nil, apperrors.NewNotFound("photo", id)
	}
	return photo, nil
}

// Create inserts an original photo with its tags.
func (r *Photos) Create(ctx context.Context, userID int64, url string, input schema.PhotoInput) (*model.Photo, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid photo", err)
	}

	photo := &model.Photo{
		ID:          uuid.New(),
		UserID:      userID,
		Description: input.Description,
		URL:         url,
		AssetType:   model.AssetOrigin,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	err := r.deps.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(photo).Exec(ctx); err != nil {
			return err
		}
		return r.attachTags(ctx, tx, photo.ID, input.Tags)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "create photo")
	}

	r.deps.trigger(ctx, PrefixPhoto, cachequery.EventCreated, photo.ID, userID)
	return photo, nil
}

// CreateTransformation inserts a derived rendition of one of the caller's
// photos. The parent must exist and belong to the caller.
func (r *Photos) CreateTransformation(ctx context.Context, userID int64, parentID uuid.UUID, url string) (*model.Photo, error) {
	parent := new(model.Photo)
	err := r.deps.DB.NewSelect().Model(parent).Where("p.id = ?", parentID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("photo", parentID)
		}
		return nil, apperrors.Wrap(err, "load parent photo")
	}
	if parent.UserID != userID {
		return nil, apperrors.NewAccessDenied("only the owner can transform a photo")
	}

	photo := &model.Photo{
		ID:          uuid.New(),
		UserID:      userID,
		Description: parent.Description,
		URL:         url,
		AssetType:   model.AssetTransformation,
		ParentID:    &parent.ID,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if _, err := r.deps.DB.NewInsert().Model(photo).Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "create transformation")
	}

	r.deps.trigger(ctx, PrefixPhoto, cachequery.EventCreated, photo.ID, userID)
	return photo, nil
}

// Update rewrites the description and replaces the tag set. The owner may
// always update; other callers need an elevated role.
func (r *Photos) Update(ctx context.Context, actor *model.User, id uuid.UUID, input schema.PhotoInput) (*model.Photo, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid photo", err)
	}

	photo, err := r.loadForWrite(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	photo.Description = input.Description
	photo.UpdatedAt = time.Now().UTC()

	err = r.deps.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewUpdate().Model(photo).
			Column("description", "updated_at").
			WherePK().
			Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*model.PhotoTag)(nil)).
			Where("photo_id = ?", photo.ID).
			Exec(ctx); err != nil {
			return err
		}
		return r.attachTags(ctx, tx, photo.ID, input.Tags)
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "update photo")
	}

	r.deps.trigger(ctx, PrefixPhoto, cachequery.EventUpdated, photo.ID, photo.UserID)
	return photo, nil
}

// Delete removes the photo together with its join rows, comments and QR
// code.
func (r *Photos) Delete(ctx context.Context, actor *model.User, id uuid.UUID) error {
	photo, err := r.loadForWrite(ctx, actor, id)
	if err != nil {
		return err
	}

	err = r.deps.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*model.PhotoTag)(nil)).Where("photo_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*model.Comment)(nil)).Where("photo_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*model.QRCode)(nil)).Where("photo_id = ?", id).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*model.Photo)(nil)).Where("id = ?", id).Exec(ctx)
		return err
	})
	if err != nil {
		return apperrors.Wrap(err, "delete photo")
	}

	r.deps.trigger(ctx, PrefixPhoto, cachequery.EventDeleted, id, photo.UserID)
	return nil
}

// CountByUser returns how many photos the user has shared.
func (r *Photos) CountByUser(ctx context.Context, userID int64) (int64, error) {
	q := newQuery[model.Photo](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("p.user_id = ?", userID)
	})
	return r.exec.GetScalar(ctx, userID, q)
}

func (r *Photos) loadForWrite(ctx context.Context, actor *model.User, id uuid.UUID) (*model.Photo, error) {
	photo := new(model.Photo)
	err := r.deps.DB.NewSelect().Model(photo).Where("p.id = ?", id).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("photo", id)
		}
		return nil, apperrors.Wrap(err, "load photo")
	}
	if actor == nil || (photo.UserID != actor.ID && !actor.Role.Elevated()) {
		return nil, apperrors.NewAccessDenied("not allowed to modify this photo")
	}
	return photo, nil
}

// attachTags resolves each name to a tag row, creating missing ones, and
// links them to the photo. Names are normalized and deduplicated first.
func (r *Photos) attachTags(ctx context.Context, tx bun.Tx, photoID uuid.UUID, names []string) error {
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = normalizeTag(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		tag := new(model.Tag)
		err := tx.NewSelect().Model(tag).Where("name = ?", name).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			tag = &model.Tag{Name: name}
			if _, err := tx.NewInsert().Model(tag).Exec(ctx); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		link := &model.PhotoTag{PhotoID: photoID, TagID: tag.ID}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

func normalizeTag(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
