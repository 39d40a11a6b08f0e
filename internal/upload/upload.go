// Package upload parses multipart student forms and persists the single
// image they may carry.
//
// Destination, filename strategy and the size and type limits are an
// explicit Config handed to New. The bytes themselves go to a Store:
// DiskStore for a local public directory, S3Store for a bucket.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"slices"
	"strconv"
	"time"
)

var (
	// ErrTooLarge is returned when the file exceeds Config.MaxFileSize.
	ErrTooLarge = errors.New("upload: file too large")

	// ErrInvalidType is returned when the declared MIME type is not allowed.
	ErrInvalidType = errors.New("upload: invalid image type")

	// ErrUnexpectedField is returned for a file part under any other name.
	ErrUnexpectedField = errors.New("upload: unexpected file field")

	// ErrMalformed is returned when the body is not a readable multipart form.
	ErrMalformed = errors.New("upload: malformed multipart body")
)

// maxFieldBytes caps the combined size of the text fields.
const maxFieldBytes = 1 << 20

// Store is the interface for upload storage backends.
type Store interface {
	// Save writes r under name and returns the number of bytes written.
	Save(ctx context.Context, name, contentType string, r io.Reader) (int64, error)

	// Remove deletes name. Removing a missing file is not an error.
	Remove(ctx context.Context, name string) error
}

// Config holds configuration for the upload component.
type Config struct {
	// MaxFileSize is the maximum allowed file size in bytes.
	MaxFileSize int64

	// AllowedTypes lists accepted MIME types. Empty allows everything.
	AllowedTypes []string

	// Filename builds the stored name from the client's filename.
	Filename func(original string, now time.Time) string

	// Now is the clock used by Filename.
	Now func() time.Time
}

// DefaultConfig returns the limits of the student forms: JPEG or PNG,
// at most 5 MiB, stored as img-<epoch-millis><ext>.
func DefaultConfig() *Config {
	return &Config{
		MaxFileSize:  5 * 1024 * 1024,
		AllowedTypes: []string{"image/jpeg", "image/png"},
		Filename:     TimestampName,
		Now:          time.Now,
	}
}

// TimestampName returns "img-<epoch-millis><ext>", keeping the extension of
// the original filename (including its dot).
func TimestampName(original string, now time.Time) string {
	return "img-" + strconv.FormatInt(now.UnixMilli(), 10) + filepath.Ext(original)
}

// File describes an accepted, already stored upload.
type File struct {
	// Name is the generated stored name, used as the student's photoUrl.
	Name string

	// OriginalName is the filename sent by the client.
	OriginalName string

	ContentType string
	Size        int64
}

// Form is a parsed submission: its text fields and, if one was sent, the
// stored file.
type Form struct {
	Values url.Values
	File   *File
}

// Uploader parses requests and stores their file through a Store.
type Uploader struct {
	store Store
	cfg   Config
}

// New returns an Uploader. A nil cfg means DefaultConfig; missing
// Filename and Now are filled from it.
func New(store Store, cfg *Config) *Uploader {
	def := DefaultConfig()
	if cfg == nil {
		cfg = def
	}

	c := *cfg
	if c.Filename == nil {
		c.Filename = def.Filename
	}
	if c.Now == nil {
		c.Now = def.Now
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = def.MaxFileSize
	}

	return &Uploader{store: store, cfg: c}
}

// Parse reads the multipart body of r. Text parts become Values; a file part
// named field is checked against the type and size limits and written to
// the store. File parts with an empty filename (no file chosen) are skipped.
//
// On any error nothing is left in the store.
func (u *Uploader) Parse(r *http.Request, field string) (*Form, error) {
	ctx := r.Context()

	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, fmt.Errorf("%w: content type %q", ErrMalformed, r.Header.Get("Content-Type"))
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	form := &Form{Values: url.Values{}}
	var fieldBytes int64

	fail := func(err error) (*Form, error) {
		if form.File != nil {
			_ = u.store.Remove(ctx, form.File.Name)
		}
		return nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("%w: %v", ErrMalformed, err))
		}

		name := part.FormName()
		if name == "" {
			part.Close()
			continue
		}

		if part.FileName() == "" && !isFilePart(part) {
			value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes-fieldBytes+1))
			part.Close()
			if err != nil {
				return fail(fmt.Errorf("%w: %v", ErrMalformed, err))
			}
			fieldBytes += int64(len(value))
			if fieldBytes > maxFieldBytes {
				return fail(fmt.Errorf("%w: form fields too large", ErrMalformed))
			}
			form.Values.Add(name, string(value))
			continue
		}

		if part.FileName() == "" {
			part.Close()
			continue
		}

		if name != field || form.File != nil {
			part.Close()
			return fail(fmt.Errorf("%w: %q", ErrUnexpectedField, name))
		}

		file, err := u.save(ctx, part)
		part.Close()
		if err != nil {
			return fail(err)
		}
		form.File = file
	}

	return form, nil
}

// isFilePart reports whether the part's Content-Disposition carries a
// filename parameter, even an empty one.
func isFilePart(p *multipart.Part) bool {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return false
	}
	_, ok := params["filename"]
	return ok
}

func (u *Uploader) save(ctx context.Context, part *multipart.Part) (*File, error) {
	contentType := part.Header.Get("Content-Type")
	if len(u.cfg.AllowedTypes) > 0 && !slices.Contains(u.cfg.AllowedTypes, contentType) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, contentType)
	}

	name := u.cfg.Filename(part.FileName(), u.cfg.Now())

	// One byte past the limit tells "exactly at the limit" from "over".
	limited := io.LimitReader(part, u.cfg.MaxFileSize+1)
	written, err := u.store.Save(ctx, name, contentType, limited)
	if err != nil {
		_ = u.store.Remove(ctx, name)
		return nil, fmt.Errorf("upload: save %s: %w", name, err)
	}
	if written > u.cfg.MaxFileSize {
		_ = u.store.Remove(ctx, name)
		return nil, ErrTooLarge
	}

	return &File{
		Name:         name,
		OriginalName: part.FileName(),
		ContentType:  contentType,
		Size:         written,
	}, nil
}

// Discard removes a previously stored file. A nil file is a no-op.
func (u *Uploader) Discard(ctx context.Context, f *File) error {
	if f == nil {
		return nil
	}
	return u.store.Remove(ctx, f.Name)
}

// Status maps a Parse error to the HTTP status the handlers answer with.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, ErrUnexpectedField), errors.Is(err, ErrMalformed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
