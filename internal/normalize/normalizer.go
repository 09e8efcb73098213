package normalize

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoInput is returned when a submission carries no usable input in any
// modality. It is raised before any external call is made.
var ErrNoInput = errors.New("no input provided: one of text, audio, or image is required")

// Submission is one user submission across the three input modalities. The
// submitting UI allows all three fields to be filled at once.
type Submission struct {
	Text  string
	Audio *Audio
	Image *Image
}

// Audio is an uploaded voice recording.
type Audio struct {
	Filename string
	Data     []byte
}

// Image is an uploaded picture of a complaint.
type Image struct {
	ContentType string
	Data        []byte
}

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// ImageParser extracts text from a base64 image data URL.
type ImageParser interface {
	ParseImage(ctx context.Context, base64Image string) (string, json.RawMessage, error)
}

// Normalizer turns a Submission into a single plain-text complaint string.
type Normalizer struct {
	speech Transcriber
	ocr    ImageParser
}

// New creates a Normalizer with the given transcription and OCR clients.
func New(speech Transcriber, ocr ImageParser) *Normalizer {
	return &Normalizer{speech: speech, ocr: ocr}
}

// Normalize resolves the submission to text. Precedence is fixed: text wins
// over audio, audio wins over image; the first non-empty input is used and
// the collaborators for the losing modalities are never called. Text passes
// through untransformed.
func (n *Normalizer) Normalize(ctx context.Context, sub Submission) (string, error) {
	switch {
	case sub.Text != "":
		return sub.Text, nil

	case sub.Audio != nil && len(sub.Audio.Data) > 0:
		text, err := n.speech.Transcribe(ctx, sub.Audio.Filename, bytes.NewReader(sub.Audio.Data))
		if err != nil {
			return "", fmt.Errorf("transcribing audio: %w", err)
		}
		return text, nil

	case sub.Image != nil && len(sub.Image.Data) > 0:
		text, _, err := n.ocr.ParseImage(ctx, DataURL(sub.Image.ContentType, sub.Image.Data))
		if err != nil {
			return "", fmt.Errorf("extracting image text: %w", err)
		}
		return text, nil

	default:
		return "", ErrNoInput
	}
}

// DataURL encodes image bytes as a base64 data URL, sniffing the content
// type when the caller didn't provide one.
func DataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
