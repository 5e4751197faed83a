package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"

	"github.com/erazemk/gamelog/internal/model"
)

// CoverField is the multipart field name the store reads the image from.
const CoverField = "coverImage"

// Cover is an image attached to a create or update.
type Cover struct {
	Filename string
	Data     []byte
}

// Submission is the body of a create or update. It is either fields only
// (sent as JSON) or fields with a cover (sent as multipart/form-data). Use
// Fields or FieldsWithCover to build one.
type Submission interface {
	// Input returns the game fields carried by the submission.
	Input() model.GameInput
	// Cover returns the attached image, or nil for a fields-only submission.
	Cover() *Cover
	encode() (io.Reader, string, error)
}

// Fields returns a submission without an image.
func Fields(in model.GameInput) Submission {
	return fieldsOnly{in: in}
}

// FieldsWithCover returns a submission that uploads cover alongside the
// fields in a single request.
func FieldsWithCover(in model.GameInput, cover Cover) Submission {
	return withCover{in: in, cover: cover}
}

type fieldsOnly struct {
	in model.GameInput
}

func (s fieldsOnly) Input() model.GameInput { return s.in }
func (s fieldsOnly) Cover() *Cover          { return nil }

func (s fieldsOnly) encode() (io.Reader, string, error) {
	data, err := json.Marshal(s.in)
	if err != nil {
		return nil, "", fmt.Errorf("encoding game: %w", err)
	}
	return bytes.NewReader(data), "application/json", nil
}

type withCover struct {
	in    model.GameInput
	cover Cover
}

func (s withCover) Input() model.GameInput { return s.in }
func (s withCover) Cover() *Cover          { return &s.cover }

func (s withCover) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"name", s.in.Name},
		{"platform", s.in.Platform},
		{"status", s.in.Status},
		{"description", s.in.Description},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("writing field %s: %w", f.name, err)
		}
	}

	filename := filepath.Base(s.cover.Filename)
	if filename == "." || filename == string(filepath.Separator) {
		filename = "cover"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, CoverField, filename))
	header.Set("Content-Type", http.DetectContentType(s.cover.Data))

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating cover part: %w", err)
	}
	if _, err := part.Write(s.cover.Data); err != nil {
		return nil, "", fmt.Errorf("writing cover part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart body: %w", err)
	}

	return &buf, mw.FormDataContentType(), nil
}
