// Package schema holds the request payloads repositories accept and their
// validation rules. Validation runs before any database work, so a bad
// payload never reaches a transaction.
package schema

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// MaxTagsPerPhoto caps how many tags a single photo can carry.
const MaxTagsPerPhoto = 5

// MaxDescriptionLength caps a photo description.
const MaxDescriptionLength = 500

// MaxCommentLength caps a comment body.
const MaxCommentLength = 500

// PhotoInput carries the user-editable fields of a photo.
type PhotoInput struct {
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Validate implements validation.Validatable.
func (p PhotoInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Description, validation.Length(0, MaxDescriptionLength)),
		validation.Field(&p.Tags,
			validation.Length(0, MaxTagsPerPhoto),
			validation.Each(validation.Required, validation.Length(1, 50)),
		),
	)
}

// CommentInput carries a new or edited comment body.
type CommentInput struct {
	Text string `json:"text"`
}

func (c CommentInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Text, validation.Required, validation.Length(1, MaxCommentLength)),
	)
}

// UserInput carries the fields of a new account.
type UserInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (u UserInput) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Username, validation.Required, validation.Length(3, 50)),
		validation.Field(&u.Email, validation.Required, is.Email),
		validation.Field(&u.Password, validation.Required, validation.Length(8, 72)),
	)
}

// ProfileUpdate carries the fields a user may change on their own profile.
// Empty fields are left untouched.
type ProfileUpdate struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (p ProfileUpdate) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Username, validation.Length(3, 50)),
		validation.Field(&p.Email, is.Email),
	)
}
