package input

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/lucamoretti/visage/internal/speech"
)

func TestNormalizeText(t *testing.T) {
	n := NewNormalizer(nil)

	cases := []struct {
		name        string
		raw         string
		wantText    string
		wantSuccess bool
	}{
		{name: "plain text", raw: "hello", wantText: "hello", wantSuccess: true},
		{name: "trims whitespace", raw: "  hi  ", wantText: "hi", wantSuccess: true},
		{name: "empty input", raw: "", wantSuccess: false},
		{name: "whitespace only", raw: "   \n\t", wantSuccess: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := n.NormalizeText(tc.raw)
			if got.Success != tc.wantSuccess {
				t.Fatalf("Success = %v, want %v", got.Success, tc.wantSuccess)
			}
			if got.InputType != TypeText {
				t.Fatalf("InputType = %q, want %q", got.InputType, TypeText)
			}
			if !tc.wantSuccess {
				if got.Error != "Empty text input" {
					t.Fatalf("Error = %q, want %q", got.Error, "Empty text input")
				}
				return
			}
			if got.Text != tc.wantText {
				t.Fatalf("Text = %q, want %q", got.Text, tc.wantText)
			}
			if got.Confidence != 1.0 {
				t.Fatalf("Confidence = %v, want 1.0", got.Confidence)
			}
		})
	}
}

func TestNormalizeVoice(t *testing.T) {
	ctx := context.Background()
	audio := bytes.Repeat([]byte{0xAB}, 4096)

	t.Run("success uses fixed confidence", func(t *testing.T) {
		engine := speech.NewMockEngine()
		engine.TranscribeText = "hello there"
		got := NewNormalizer(engine).NormalizeVoice(ctx, audio)
		if !got.Success {
			t.Fatalf("Success = false, error = %q", got.Error)
		}
		if got.Text != "hello there" {
			t.Fatalf("Text = %q", got.Text)
		}
		if got.Confidence != 0.95 {
			t.Fatalf("Confidence = %v, want 0.95", got.Confidence)
		}
		if got.InputType != TypeVoice {
			t.Fatalf("InputType = %q, want voice", got.InputType)
		}
	})

	t.Run("no match degrades to failure", func(t *testing.T) {
		engine := speech.NewMockEngine()
		engine.TranscribeText = ""
		got := NewNormalizer(engine).NormalizeVoice(ctx, audio)
		if got.Success {
			t.Fatal("Success = true, want false")
		}
		if got.Error != "No speech recognized" {
			t.Fatalf("Error = %q", got.Error)
		}
	})

	t.Run("engine error captured not propagated", func(t *testing.T) {
		engine := speech.NewMockEngine()
		engine.TranscribeErr = errors.New("engine exploded")
		got := NewNormalizer(engine).NormalizeVoice(ctx, audio)
		if got.Success {
			t.Fatal("Success = true, want false")
		}
		if got.Error != "engine exploded" {
			t.Fatalf("Error = %q", got.Error)
		}
	})

	t.Run("tiny payload rejected before engine", func(t *testing.T) {
		engine := speech.NewMockEngine()
		got := NewNormalizer(engine).NormalizeVoice(ctx, []byte{1, 2, 3})
		if got.Success {
			t.Fatal("Success = true, want false")
		}
	})

	t.Run("missing transcriber", func(t *testing.T) {
		got := NewNormalizer(nil).NormalizeVoice(ctx, audio)
		if got.Success {
			t.Fatal("Success = true, want false")
		}
	})
}
