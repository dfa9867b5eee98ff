package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cachequery"
	"github.com/hnatiak/photoshare/model"
	apperrors "github.com/hnatiak/photoshare/pkg/errors"
)

// QRCodes stores the rendered share code of each photo, one row per photo.
// Reads are keyed by photo id, and the executor listens on the photo prefix
// so deleting a photo drops its cached code too.
type QRCodes struct {
	deps Deps
	exec cachequery.Executor[model.QRCode]
}

// NewQRCodes builds the repository and registers its cache invalidation.
func NewQRCodes(deps Deps) *QRCodes {
	return &QRCodes{
		deps: deps,
		exec: cachequery.NewCacheable[model.QRCode](deps.executorConfig(
			PrefixQRCode,
			[]string{PrefixQRCode, PrefixPhoto},
		)),
	}
}

// Save stores the code for the photo, replacing any previous rendering.
// The payload is the base64-encoded image.
func (r *QRCodes) Save(ctx context.Context, photoID uuid.UUID, payload string) (*model.QRCode, error) {
	exists, err := r.deps.DB.NewSelect().Model((*model.Photo)(nil)).Where("p.id = ?", photoID).Exists(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "check photo")
	}
	if !exists {
		return nil, apperrors.NewNotFound("photo", photoID)
	}

	existing := new(model.QRCode)
	err = r.deps.DB.NewSelect().Model(existing).Where("q.photo_id = ?", photoID).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		code := &model.QRCode{ID: uuid.New(), PhotoID: photoID, Payload: payload}
		if _, err := r.deps.DB.NewInsert().Model(code).Exec(ctx); err != nil {
			return nil, apperrors.Wrap(err, "store qr code")
		}
		r.deps.trigger(ctx, PrefixQRCode, cachequery.EventCreated, code.ID, photoID)
		return code, nil
	case err != nil:
		return nil, apperrors.Wrap(err, "load qr code")
	}

	existing.Payload = payload
	if _, err := r.deps.DB.NewUpdate().Model(existing).Column("payload").WherePK().Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "update qr code")
	}
	r.deps.trigger(ctx, PrefixQRCode, cachequery.EventUpdated, existing.ID, photoID)
	return existing, nil
}

// Read returns the photo's stored code.
func (r *QRCodes) Read(ctx context.Context, photoID uuid.UUID) (*model.QRCode, error) {
	q := newQuery[model.QRCode](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("q.photo_id = ?", photoID)
	})
	code, err := r.exec.GetFirst(ctx, photoID, q)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return nil, apperrors.NewNotFound("qr code for photo", photoID)
	}
	return code, nil
}
