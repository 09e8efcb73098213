package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseImage_ReturnsTextAndRaw(t *testing.T) {
	const body = `{"ParsedResults":[{"ParsedText":"My card was charged twice"}],"IsErroredOnProcessing":false}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parse/image" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("language"); got != "eng" {
			t.Errorf("language = %q, want eng", got)
		}
		if got := r.PostForm.Get("OCREngine"); got != "2" {
			t.Errorf("OCREngine = %q, want 2", got)
		}
		if got := r.PostForm.Get("apikey"); got != "ocr-key" {
			t.Errorf("apikey = %q", got)
		}
		if got := r.PostForm.Get("base64Image"); !strings.HasPrefix(got, "data:image/png;base64,") {
			t.Errorf("base64Image = %q", got)
		}
		w.Write([]byte(body))
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "ocr-key")
	text, raw, err := c.ParseImage(context.Background(), "data:image/png;base64,aGVsbG8=")
	if err != nil {
		t.Fatalf("ParseImage failed: %v", err)
	}
	if text != "My card was charged twice" {
		t.Errorf("text = %q", text)
	}
	if string(raw) != body {
		t.Errorf("raw = %s", raw)
	}
}

func TestParseImage_EmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ParsedResults":[],"IsErroredOnProcessing":false}`))
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "k")
	if _, _, err := c.ParseImage(context.Background(), "data:image/png;base64,x"); err == nil {
		t.Fatal("expected error for empty parsed results")
	}
}

func TestParseImage_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, "k")
	_, _, err := c.ParseImage(context.Background(), "data:image/png;base64,x")
	if err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("err = %v, want upstream status", err)
	}
}

func TestTranscribe_SendsMultipartAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer speech-key" {
			t.Errorf("Authorization = %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parsing multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("model = %q", got)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("reading file part: %v", err)
		}
		defer f.Close()
		if hdr.Filename != "complaint.webm" {
			t.Errorf("filename = %q", hdr.Filename)
		}
		w.Write([]byte(`{"text":"my card was charged twice"}`))
	}))
	defer srv.Close()

	c := NewSpeechClient(srv.URL, "speech-key", "whisper-1")
	text, err := c.Transcribe(context.Background(), "complaint.webm", strings.NewReader("audio-bytes"))
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if text != "my card was charged twice" {
		t.Errorf("text = %q", text)
	}
}

func TestTranscribe_MissingTextField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c := NewSpeechClient(srv.URL, "k", "whisper-1")
	_, err := c.Transcribe(context.Background(), "a.webm", strings.NewReader("x"))
	if err == nil || !strings.Contains(err.Error(), "missing text field") {
		t.Fatalf("err = %v, want missing-field failure", err)
	}
}
