package repository

import (
	"context"
	"crypto/md5"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/hnatiak/photoshare/cachequery"
	"github.com/hnatiak/photoshare/model"
	apperrors "github.com/hnatiak/photoshare/pkg/errors"
	"github.com/hnatiak/photoshare/schema"
)

// blacklistKeyspace prefixes revoked-token entries in the shared cache
// backend, away from the executor keyspaces.
const blacklistKeyspace = "auth:blacklist:"

// Users is the account repository. Single-record reads are keyed by email
// because authentication always starts from the address, so every write
// announces both the row id and the email.
type Users struct {
	deps Deps
	exec cachequery.Executor[model.User]
}

// NewUsers builds the repository and registers its cache invalidation.
func NewUsers(deps Deps) *Users {
	return &Users{
		deps: deps,
		exec: cachequery.NewCacheable[model.User](deps.executorConfig(
			PrefixUser,
			[]string{PrefixUser},
		)),
	}
}

// GetByEmail returns the account registered under the address.
func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = normalizeEmail(email)
	q := newQuery[model.User](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Where("u.email = ?", email)
	})
	user, err := r.exec.GetFirst(ctx, email, q)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NewNotFound("user", email)
	}
	return user, nil
}

// All returns a page of accounts, oldest first.
func (r *Users) All(ctx context.Context, limit, offset int) ([]model.User, error) {
	q := newQuery[model.User](r.deps.DB, func(sq *bun.SelectQuery) *bun.SelectQuery {
		return sq.Order("u.id ASC").Limit(limit).Offset(offset)
	})
	return r.exec.GetAll(ctx, q)
}

// Create registers a new account. The avatar starts as the Gravatar for
// the address; the first registered account becomes an admin.
func (r *Users) Create(ctx context.Context, input schema.UserInput) (*model.User, error) {
	if err := input.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid user", err)
	}

	email := normalizeEmail(input.Email)
	taken, err := r.deps.DB.NewSelect().Model((*model.User)(nil)).Where("u.email = ?", email).Exists(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "check email")
	}
	if taken {
		return nil, apperrors.NewValidation(fmt.Sprintf("email %s is already registered", email), nil)
	}

	count, err := r.deps.DB.NewSelect().Model((*model.User)(nil)).Count(ctx)
	if err != nil {
		return nil, apperrors.Wrap(err, "count users")
	}
	role := model.RoleUser
	if count == 0 {
		role = model.RoleAdmin
	}

	user := &model.User{
		Username:  input.Username,
		Email:     email,
		Password:  input.Password,
		Avatar:    GravatarURL(email),
		Role:      role,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if _, err := r.deps.DB.NewInsert().Model(user).Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "create user")
	}

	r.deps.trigger(ctx, PrefixUser, cachequery.EventCreated, user.ID, user.Email)
	return user, nil
}

// ConfirmEmail marks the address as verified.
func (r *Users) ConfirmEmail(ctx context.Context, email string) error {
	return r.updateByEmail(ctx, email, func(user *model.User) []string {
		user.Confirmed = true
		return []string{"confirmed"}
	})
}

// UpdateToken stores the account's current refresh token; an empty token
// logs the account out.
func (r *Users) UpdateToken(ctx context.Context, email, token string) error {
	return r.updateByEmail(ctx, email, func(user *model.User) []string {
		user.RefreshToken = token
		return []string{"refresh_token"}
	})
}

// UpdateAvatar replaces the avatar and returns the refreshed account.
func (r *Users) UpdateAvatar(ctx context.Context, email, url string) (*model.User, error) {
	if err := r.updateByEmail(ctx, email, func(user *model.User) []string {
		user.Avatar = url
		return []string{"avatar"}
	}); err != nil {
		return nil, err
	}
	return r.GetByEmail(cachequery.WithoutCache(ctx), email)
}

// EditProfile applies the non-empty fields of the update to the caller's
// own account.
func (r *Users) EditProfile(ctx context.Context, actor *model.User, update schema.ProfileUpdate) (*model.User, error) {
	if actor == nil {
		return nil, apperrors.NewAccessDenied("authentication required")
	}
	if err := update.Validate(); err != nil {
		return nil, apperrors.NewValidation("invalid profile", err)
	}

	previousEmail := actor.Email
	return r.updateAndReload(ctx, actor, previousEmail, update)
}

func (r *Users) updateAndReload(ctx context.Context, actor *model.User, previousEmail string, update schema.ProfileUpdate) (*model.User, error) {
	columns := []string{"updated_at"}
	if update.Username != "" {
		actor.Username = update.Username
		columns = append(columns, "username")
	}
	if update.Email != "" {
		actor.Email = normalizeEmail(update.Email)
		columns = append(columns, "email")
	}
	actor.UpdatedAt = time.Now().UTC()

	if _, err := r.deps.DB.NewUpdate().Model(actor).
		Column(columns...).
		WherePK().
		Exec(ctx); err != nil {
		return nil, apperrors.Wrap(err, "edit profile")
	}

	// Both addresses are announced so the entry keyed by the old email
	// falls as well.
	r.deps.trigger(ctx, PrefixUser, cachequery.EventUpdated, actor.ID, previousEmail, actor.Email)
	return actor, nil
}

// BlacklistToken revokes an access token until it would have expired
// anyway. Without a cache backend revocation is unavailable and reported
// as such.
func (r *Users) BlacklistToken(ctx context.Context, token string, ttl time.Duration) error {
	if r.deps.KV == nil {
		return apperrors.NewTemporary("token blacklist unavailable without a cache backend", nil)
	}
	return r.deps.KV.Set(ctx, blacklistKeyspace+token, []byte("revoked"), ttl)
}

// IsTokenBlacklisted reports whether the token was revoked. Without a
// cache backend nothing is ever blacklisted.
func (r *Users) IsTokenBlacklisted(ctx context.Context, token string) (bool, error) {
	if r.deps.KV == nil {
		return false, nil
	}
	return r.deps.KV.Exists(ctx, blacklistKeyspace+token)
}

func (r *Users) updateByEmail(ctx context.Context, email string, mutate func(*model.User) []string) error {
	email = normalizeEmail(email)

	user := new(model.User)
	err := r.deps.DB.NewSelect().Model(user).Where("u.email = ?", email).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NewNotFound("user", email)
		}
		return apperrors.Wrap(err, "load user")
	}

	columns := append(mutate(user), "updated_at")
	user.UpdatedAt = time.Now().UTC()

	if _, err := r.deps.DB.NewUpdate().Model(user).
		Column(columns...).
		WherePK().
		Exec(ctx); err != nil {
		return apperrors.Wrap(err, "update user")
	}

	r.deps.trigger(ctx, PrefixUser, cachequery.EventUpdated, user.ID, user.Email)
	return nil
}

// GravatarURL derives the Gravatar address for an email.
func GravatarURL(email string) string {
	sum := md5.Sum([]byte(normalizeEmail(email)))
	return fmt.Sprintf("https://www.gravatar.com/avatar/%x", sum)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
