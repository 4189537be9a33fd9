package storage

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"chatwave/internal/pkg/errs"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestValidateAvatar(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		data     []byte
		wantMIME string
		wantCode int
	}{
		{name: "png", fileName: "me.PNG", data: pngHeader, wantMIME: "image/png"},
		{name: "empty", fileName: "me.png", data: nil, wantCode: errs.ErrInvalidParams},
		{name: "extension mismatch", fileName: "me.jpg", data: pngHeader, wantCode: errs.ErrFileTypeInvalid},
		{name: "text disguised as image", fileName: "me.png", data: []byte("hello world"), wantCode: errs.ErrFileTypeInvalid},
		{name: "too large", fileName: "me.png", data: append(bytes.Clone(pngHeader), make([]byte, MaxAvatarSize)...), wantCode: errs.ErrFileSizeTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)

			mime, err := ValidateAvatar(tt.fileName, tt.data)

			if tt.wantCode != 0 {
				req.NotNil(err)
				req.Equal(tt.wantCode, err.Code)
				return
			}
			req.Nil(err)
			req.Equal(tt.wantMIME, mime)
		})
	}
}

func TestAvatarKey(t *testing.T) {
	req := require.New(t)

	first := AvatarKey("u1", "Me.PNG")
	second := AvatarKey("u1", "Me.PNG")

	req.True(strings.HasPrefix(first, "avatars/u1/"))
	req.True(strings.HasSuffix(first, ".png"))
	req.NotEqual(first, second)
}

func TestKeyFromURL(t *testing.T) {
	req := require.New(t)

	key, ok := KeyFromURL("https://cdn.example.com/avatars-bucket/", "https://cdn.example.com/avatars-bucket/avatars/u1/a.png")
	req.True(ok)
	req.Equal("avatars/u1/a.png", key)

	_, ok = KeyFromURL("https://cdn.example.com/avatars-bucket", "https://icon-library.com/anonymous.jpg")
	req.False(ok)

	_, ok = KeyFromURL("", "https://cdn.example.com/a.png")
	req.False(ok)
}
