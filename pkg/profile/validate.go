package profile

import (
	"strings"
	"unicode/utf8"

	"github.com/matzehuels/dbdev/pkg/errors"
)

// Field limits for profile updates.
const (
	MaxDisplayName = 64
	MaxBio         = 256
)

// AvatarContentTypes are the image types accepted for avatars.
var AvatarContentTypes = []string{"image/jpeg", "image/png"}

// Values are the edit form fields. Handle and ContactEmail are read-only.
type Values struct {
	Bio          string `json:"bio"`
	Handle       string `json:"handle"`
	DisplayName  string `json:"displayName"`
	ContactEmail string `json:"contactEmail"`
}

// Validate checks the editable fields and returns one VALIDATION_ERROR per
// invalid field, keyed by field name. It returns nil for valid values.
func (v Values) Validate() map[string]error {
	errs := make(map[string]error)
	name := strings.TrimSpace(v.DisplayName)
	switch n := utf8.RuneCountInString(name); {
	case n == 0:
		errs["displayName"] = errors.NewValidation("displayName", "Display name is required")
	case n > MaxDisplayName:
		errs["displayName"] = errors.NewValidation("displayName", "Display name must be at most %d characters", MaxDisplayName)
	}
	if utf8.RuneCountInString(v.Bio) > MaxBio {
		errs["bio"] = errors.NewValidation("bio", "Biography must be at most %d characters", MaxBio)
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// ValidateAvatar checks the content type of an avatar upload.
func ValidateAvatar(contentType string) error {
	ct, _, _ := strings.Cut(contentType, ";")
	ct = strings.TrimSpace(strings.ToLower(ct))
	for _, ok := range AvatarContentTypes {
		if ct == ok {
			return nil
		}
	}
	return errors.NewValidation("avatar", "avatar must be a JPEG or PNG image")
}
