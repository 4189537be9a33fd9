package storage

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"chatwave/internal/pkg/errs"
	"chatwave/internal/pkg/randx"
)

const (
	// MaxAvatarSizeMB is the maximum allowed avatar size in megabytes.
	MaxAvatarSizeMB = 5

	// MaxAvatarSize is the maximum allowed avatar size in bytes.
	MaxAvatarSize = MaxAvatarSizeMB * 1024 * 1024
)

// AllowedMIMETypes defines the set of permitted MIME types for avatars.
var AllowedMIMETypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
	"image/gif":  {},
}

// ExtToMIME maps file extensions to their corresponding MIME types.
var ExtToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// ValidateAvatar sniffs the content of an uploaded avatar and checks it against its file name.
// It returns the detected MIME type.
func ValidateAvatar(fileName string, data []byte) (string, *errs.CustomError) {
	if len(data) == 0 {
		return "", errs.NewError(errs.ErrInvalidParams)
	}
	if len(data) > MaxAvatarSize {
		return "", errs.NewError(errs.ErrFileSizeTooLarge, MaxAvatarSizeMB)
	}

	detected := mimetype.Detect(data).String()
	if idx := strings.IndexByte(detected, ';'); idx >= 0 {
		detected = detected[:idx]
	}
	detected = strings.ToLower(detected)

	if _, ok := AllowedMIMETypes[detected]; !ok {
		return "", errs.NewError(errs.ErrFileTypeInvalid)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	expectedMIME, ok := ExtToMIME[ext]
	if !ok || expectedMIME != detected {
		return "", errs.NewError(errs.ErrFileTypeInvalid)
	}

	return detected, nil
}

// AvatarKey returns a fresh object key for userID's avatar.
func AvatarKey(userID, fileName string) string {
	return fmt.Sprintf("avatars/%s/%s%s", userID, randx.ID(), strings.ToLower(filepath.Ext(fileName)))
}
