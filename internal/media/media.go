package media

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"photo-styler/internal/apperr"
)

const (
	MimeJPEG = "image/jpeg"
	MimePNG  = "image/png"

	octetStream = "application/octet-stream"

	MaxUploadMB    = 10
	MaxUploadBytes = MaxUploadMB * 1024 * 1024
)

var msgTooLarge = fmt.Sprintf("File is too large. Maximum size is %dMB.", MaxUploadMB)

// Upload is a user-selected photo before any run starts.
type Upload struct {
	Name     string
	MimeType string
	Data     []byte
}

func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// Encoded is the transmissible form of an image: base64 payload plus MIME type.
type Encoded struct {
	Data     string
	MimeType string
}

func (e Encoded) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", e.MimeType, e.Data)
}

func (e Encoded) Bytes() ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(e.Data)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return b, nil
}

func (e Encoded) Extension() string {
	return Extension(e.MimeType)
}

func Validate(u Upload) error {
	switch NormalizeMime(u.MimeType) {
	case MimeJPEG, MimePNG:
	default:
		return apperr.New(apperr.KindValidation, "media.validate", apperr.MsgInvalidType)
	}
	if u.Size() == 0 {
		return apperr.New(apperr.KindValidation, "media.validate", "The selected file is empty. Please choose another photo.")
	}
	if u.Size() > MaxUploadBytes {
		return apperr.New(apperr.KindValidation, "media.validate", msgTooLarge)
	}
	return nil
}

func Encode(u Upload) Encoded {
	return Encoded{
		Data:     base64.StdEncoding.EncodeToString(u.Data),
		MimeType: NormalizeMime(u.MimeType),
	}
}

// Read consumes r once and returns an Upload. When declaredMime is empty or
// generic the type is sniffed from the content.
func Read(r io.Reader, name, declaredMime string) (Upload, error) {
	// One extra byte lets Validate see oversize input without reading it all.
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Upload{}, fmt.Errorf("read image: %w", err)
	}
	return Upload{
		Name:     name,
		MimeType: DetectMime(declaredMime, data),
		Data:     data,
	}, nil
}

func ReadFile(path string) (Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return Upload{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	return Read(f, filepath.Base(path), mimeFromExt(path))
}

// EncodeFile reads a local image, validates it and returns its encoded form.
func EncodeFile(path string) (Encoded, error) {
	u, err := ReadFile(path)
	if err != nil {
		return Encoded{}, err
	}
	if err := Validate(u); err != nil {
		return Encoded{}, err
	}
	return Encode(u), nil
}

// DetectMime returns the declared type, or the sniffed one when the declared
// type is missing or generic. Unrecognised content stays
// application/octet-stream so Validate rejects it.
func DetectMime(declared string, data []byte) string {
	mimeType := NormalizeMime(declared)
	if mimeType == "" || mimeType == octetStream {
		mimeType = NormalizeMime(mimetype.Detect(data).String())
	}
	if mimeType == "" {
		mimeType = octetStream
	}
	return mimeType
}

func NormalizeMime(value string) string {
	value = strings.TrimSpace(value)
	if strings.Contains(value, ";") {
		value = strings.TrimSpace(strings.SplitN(value, ";", 2)[0])
	}
	value = strings.ToLower(value)
	if value == "image/jpg" || value == "image/pjpeg" {
		return MimeJPEG
	}
	return value
}

func Extension(mimeType string) string {
	if m := mimetype.Lookup(NormalizeMime(mimeType)); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".jpg"
}

func mimeFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".png":
		return MimePNG
	}
	return ""
}
