package schema

import (
	"strings"
	"testing"
)

func TestPhotoInputValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   PhotoInput
		wantErr bool
	}{
		{name: "empty is fine", input: PhotoInput{}},
		{name: "description and tags", input: PhotoInput{Description: "sunset", Tags: []string{"sky", "evening"}}},
		{name: "five tags allowed", input: PhotoInput{Tags: []string{"a", "b", "c", "d", "e"}}},
		{name: "six tags rejected", input: PhotoInput{Tags: []string{"a", "b", "c", "d", "e", "f"}}, wantErr: true},
		{name: "blank tag rejected", input: PhotoInput{Tags: []string{"sky", ""}}, wantErr: true},
		{name: "description at cap", input: PhotoInput{Description: strings.Repeat("x", MaxDescriptionLength)}},
		{name: "description over cap", input: PhotoInput{Description: strings.Repeat("x", MaxDescriptionLength+1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCommentInputValidate(t *testing.T) {
	if err := (CommentInput{Text: "nice shot"}).Validate(); err != nil {
		t.Errorf("valid comment rejected: %v", err)
	}
	if err := (CommentInput{}).Validate(); err == nil {
		t.Error("empty comment accepted")
	}
	if err := (CommentInput{Text: strings.Repeat("x", MaxCommentLength+1)}).Validate(); err == nil {
		t.Error("oversized comment accepted")
	}
}

func TestUserInputValidate(t *testing.T) {
	valid := UserInput{Username: "ansel", Email: "ansel@example.com", Password: "f/64group"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid user rejected: %v", err)
	}

	bad := valid
	bad.Email = "not-an-address"
	if err := bad.Validate(); err == nil {
		t.Error("malformed email accepted")
	}

	bad = valid
	bad.Password = "short"
	if err := bad.Validate(); err == nil {
		t.Error("short password accepted")
	}

	bad = valid
	bad.Username = "ab"
	if err := bad.Validate(); err == nil {
		t.Error("short username accepted")
	}
}

func TestProfileUpdateValidate(t *testing.T) {
	if err := (ProfileUpdate{}).Validate(); err != nil {
		t.Errorf("empty update rejected: %v", err)
	}
	if err := (ProfileUpdate{Username: "dorothea", Email: "dl@example.com"}).Validate(); err != nil {
		t.Errorf("valid update rejected: %v", err)
	}
	if err := (ProfileUpdate{Email: "nope"}).Validate(); err == nil {
		t.Error("malformed email accepted")
	}
}
