package media

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photo-styler/internal/apperr"
)

var (
	pngHeader  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	jpegHeader = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00")
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		upload  Upload
		wantErr string
	}{
		{name: "jpeg", upload: Upload{MimeType: "image/jpeg", Data: jpegHeader}},
		{name: "png with params", upload: Upload{MimeType: "image/png; q=1", Data: pngHeader}},
		{name: "jpg alias", upload: Upload{MimeType: "image/jpg", Data: jpegHeader}},
		{name: "gif", upload: Upload{MimeType: "image/gif", Data: []byte("GIF89a")}, wantErr: apperr.MsgInvalidType},
		{name: "empty", upload: Upload{MimeType: "image/png"}, wantErr: "empty"},
		{name: "too large", upload: Upload{MimeType: "image/png", Data: make([]byte, MaxUploadBytes+1)}, wantErr: "Maximum size is 10MB"},
		{name: "exactly max", upload: Upload{MimeType: "image/png", Data: make([]byte, MaxUploadBytes)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.upload)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperr.IsKind(err, apperr.KindValidation))
			assert.Contains(t, apperr.UserMessage(err), tt.wantErr)
		})
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	enc := Encode(Upload{MimeType: "image/PNG", Data: pngHeader})

	assert.Equal(t, MimePNG, enc.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(pngHeader), enc.Data)
	assert.True(t, strings.HasPrefix(enc.DataURL(), "data:image/png;base64,"))

	raw, err := enc.Bytes()
	require.NoError(t, err)
	assert.Equal(t, pngHeader, raw)
}

func TestReadSniffsMissingType(t *testing.T) {
	u, err := Read(bytes.NewReader(pngHeader), "photo", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, MimePNG, u.MimeType)
	assert.Equal(t, int64(len(pngHeader)), u.Size())
}

func TestReadStopsAfterLimit(t *testing.T) {
	u, err := Read(bytes.NewReader(make([]byte, MaxUploadBytes+100)), "big.png", MimePNG)
	require.NoError(t, err)
	assert.Equal(t, int64(MaxUploadBytes+1), u.Size())
	assert.Error(t, Validate(u))
}

func TestEncodeFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "me.jpg")
	require.NoError(t, os.WriteFile(path, jpegHeader, 0o644))

	enc, err := EncodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, MimeJPEG, enc.MimeType)

	_, err = EncodeFile(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)
}

func TestEncodeFileRejectsText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, err := EncodeFile(path)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestReadKeepsUnknownContentInvalid(t *testing.T) {
	opaque := []byte{0x00, 0x9f, 0x13, 0x7a, 0xee, 0x01, 0x42, 0x00}

	for _, declared := range []string{"application/octet-stream", ""} {
		u, err := Read(bytes.NewReader(opaque), "x.bin", declared)
		require.NoError(t, err)
		assert.NotEqual(t, MimeJPEG, u.MimeType)
		assert.NotEqual(t, MimePNG, u.MimeType)

		err = Validate(u)
		require.Error(t, err)
		assert.True(t, apperr.IsKind(err, apperr.KindValidation))
		assert.Equal(t, apperr.MsgInvalidType, apperr.UserMessage(err))
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".png", Extension("image/png"))
	assert.Equal(t, ".jpg", Extension("image/jpeg"))
	assert.Equal(t, ".jpg", Extension("application/x-unknown-thing"))
}
