package provider

import (
	"context"
	"image"
	"testing"

	apperrors "github.com/GriffinCanCode/dialogue-overlay/internal/errors"
	"github.com/GriffinCanCode/dialogue-overlay/internal/regions"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"```Hello there```", "Hello there"},
		{"```\nHello there\n```", "Hello there"},
		{"```text\nHello there\n```", "Hello there"},
		{"``` ```", ""},
		{"  ```Bonjour\n```  ", "Bonjour"},
	}
	for _, tt := range tests {
		if got := StripFences(tt.in); got != tt.want {
			t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTranslationPrompt(t *testing.T) {
	if got := TranslationPrompt("hola", "en"); got != "Translate this sentence into English.\nhola" {
		t.Errorf("prompt = %q", got)
	}
	if got := LanguageName("jp"); got != "Japanese" {
		t.Errorf("LanguageName(jp) = %q", got)
	}
	if got := LanguageName("fr"); got != "fr" {
		t.Errorf("LanguageName(fr) = %q, want passthrough", got)
	}
}

func TestFilterExcluded(t *testing.T) {
	anns := []regions.Annotation{
		regions.RectAnnotation(0, 0, 10, 10, "RetroArch 1.9"),
		regions.RectAnnotation(0, 20, 10, 30, "Crew:"),
		regions.RectAnnotation(0, 40, 10, 50, "retronrch"),
	}
	got := FilterExcluded(anns, DefaultExcludeKeywords)
	if len(got) != 1 || got[0].Text != "Crew:" {
		t.Fatalf("FilterExcluded = %+v, want only Crew:", got)
	}
	if len(anns) != 3 || anns[0].Text != "RetroArch 1.9" {
		t.Error("input slice should not be modified")
	}
	if got := FilterExcluded(anns, nil); len(got) != 3 {
		t.Error("no keywords should keep everything")
	}
}

func TestNewTextProviderSelection(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default stub", Config{}, false},
		{"stub with settings", Config{Kind: "stub", Settings: map[string]any{"translation": "hi"}}, false},
		{"local without command", Config{Kind: "local"}, true},
		{"local", Config{Kind: "local", Settings: map[string]any{"command": "worker", "args": []any{"-u"}}}, false},
		{"cloud without key", Config{Kind: "cloud"}, true},
		{"cloud", Config{Kind: "CLOUD", Settings: map[string]any{"api_key": "k", "timeout": "5s"}}, false},
		{"remote without addr", Config{Kind: "remote"}, true},
		{"unknown", Config{Kind: "telepathy"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewTextProvider(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !apperrors.IsCode(err, apperrors.CodeConfigInvalid) {
					t.Errorf("error code = %v, want CONFIG_INVALID", err)
				}
				return
			}
			if err != nil || p == nil {
				t.Fatalf("NewTextProvider: %v", err)
			}
		})
	}
}

func TestNewTranslatorSelection(t *testing.T) {
	tr, err := NewTranslator(Config{Kind: "stub", Settings: map[string]any{"translation": "Hello"}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := tr.Translate(context.Background(), "Hola", "en")
	if got != "Hello" {
		t.Errorf("Translate = %q, want Hello", got)
	}
	if _, err := NewTranslator(Config{Kind: "local"}); err == nil {
		t.Error("local translator is not supported and should fail")
	}
}

func TestStub(t *testing.T) {
	s := NewStub(StubConfig{Annotations: []regions.Annotation{
		regions.RectAnnotation(1, 2, 11, 12, "a"),
		{Box: []regions.Point{{X: 5, Y: 5}}, Text: "bad"},
	}})
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))

	if ok, _ := s.HasText(ctx, img); !ok {
		t.Error("stub with annotations should report text")
	}
	rects, _ := s.Detect(ctx, img)
	if len(rects) != 1 || rects[0] != image.Rect(1, 2, 12, 13) {
		t.Errorf("Detect = %v", rects)
	}
	anns, _ := s.Recognize(ctx, img, Hints{})
	if len(anns) != 2 {
		t.Errorf("Recognize returned %d annotations", len(anns))
	}
	anns, _ = s.Recognize(ctx, img, Hints{Boxes: []image.Rectangle{image.Rect(0, 0, 5, 5)}})
	if len(anns) != 1 || anns[0].Text != "a" {
		t.Errorf("Recognize inside box = %+v", anns)
	}
	anns, _ = s.Recognize(ctx, img, Hints{Boxes: []image.Rectangle{image.Rect(15, 15, 20, 20)}})
	if len(anns) != 0 {
		t.Errorf("Recognize outside box = %+v", anns)
	}
	if got, _ := s.Translate(ctx, "same", "en"); got != "same" {
		t.Errorf("Translate without canned text = %q", got)
	}
}
