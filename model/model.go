// Package model defines the persisted records of the photo sharing service.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Role grades a user's privileges. Moderators and admins may edit and
// delete content they do not own.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Elevated reports whether the role may act on other users' content.
func (r Role) Elevated() bool {
	return r == RoleModerator || r == RoleAdmin
}

// AssetType distinguishes uploaded originals from derived renditions.
type AssetType string

const (
	AssetOrigin         AssetType = "origin"
	AssetTransformation AssetType = "transformation"
)

// User is an account holder.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64     `bun:"id,pk,autoincrement"`
	Username     string    `bun:"username,notnull"`
	Email        string    `bun:"email,notnull,unique"`
	Password     string    `bun:"password,notnull"`
	Avatar       string    `bun:"avatar"`
	RefreshToken string    `bun:"refresh_token"`
	Role         Role      `bun:"role,notnull,default:'user'"`
	Confirmed    bool      `bun:"confirmed,notnull,default:false"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// Photo is a shared image together with its description and tags. A
// transformation points back at the origin asset through ParentID.
type Photo struct {
	bun.BaseModel `bun:"table:photos,alias:p"`

	ID          uuid.UUID  `bun:"id,pk,type:uuid"`
	UserID      int64      `bun:"user_id,notnull"`
	Description string     `bun:"description"`
	URL         string     `bun:"url,notnull"`
	AssetType   AssetType  `bun:"asset_type,notnull,default:'origin'"`
	ParentID    *uuid.UUID `bun:"parent_id,type:uuid"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	User     *User      `bun:"rel:belongs-to,join:user_id=id"`
	Tags     []*Tag     `bun:"m2m:photo_tags,join:Photo=Tag"`
	Comments []*Comment `bun:"rel:has-many,join:id=photo_id"`
}

// Tag is a reusable label. Names are unique; attaching an existing name
// reuses the row.
type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	ID   int64  `bun:"id,pk,autoincrement"`
	Name string `bun:"name,notnull,unique"`
}

// PhotoTag is the photo/tag join row. It must be registered with the bun
// DB before any m2m query runs.
type PhotoTag struct {
	bun.BaseModel `bun:"table:photo_tags,alias:pt"`

	PhotoID uuid.UUID `bun:"photo_id,pk,type:uuid"`
	TagID   int64     `bun:"tag_id,pk"`

	Photo *Photo `bun:"rel:belongs-to,join:photo_id=id"`
	Tag   *Tag   `bun:"rel:belongs-to,join:tag_id=id"`
}

// Comment is a user's remark on a photo.
type Comment struct {
	bun.BaseModel `bun:"table:comments,alias:c"`

	ID        int64     `bun:"id,pk,autoincrement"`
	PhotoID   uuid.UUID `bun:"photo_id,notnull,type:uuid"`
	UserID    int64     `bun:"user_id,notnull"`
	Text      string    `bun:"text,notnull"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`

	User *User `bun:"rel:belongs-to,join:user_id=id"`
}

// QRCode stores the rendered share code for a photo, one row per photo.
// Payload is the base64-encoded PNG.
type QRCode struct {
	bun.BaseModel `bun:"table:qr_codes,alias:q"`

	ID      uuid.UUID `bun:"id,pk,type:uuid"`
	PhotoID uuid.UUID `bun:"photo_id,notnull,unique,type:uuid"`
	Payload string    `bun:"payload,notnull"`

	Photo *Photo `bun:"rel:belongs-to,join:photo_id=id"`
}
