// Package input unifies text and transcribed-voice input into one normalized
// shape. Errors from the transcription engine are captured in the result
// rather than propagated.
package input

import (
	"context"
	"errors"
	"strings"

	"github.com/lucamoretti/visage/internal/speech"
)

type Type string

const (
	TypeText  Type = "text"
	TypeVoice Type = "voice"
)

// Transcription from the engine carries no usable per-utterance confidence,
// so successful voice input reports this fixed constant.
const voiceConfidence = 0.95

// minAudioBytes rejects payloads too small to contain any encoded audio.
const minAudioBytes = 100

// Normalized is the unified input shape handed to the rest of the pipeline.
type Normalized struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	InputType  Type    `json:"input_type"`
	Success    bool    `json:"success"`
	Error      string  `json:"error,omitempty"`
}

// Normalizer produces Normalized values from raw text or audio.
type Normalizer struct {
	transcriber speech.Transcriber
}

func NewNormalizer(transcriber speech.Transcriber) *Normalizer {
	return &Normalizer{transcriber: transcriber}
}

// NormalizeText trims the text; empty-after-trim is a failure.
func (n *Normalizer) NormalizeText(raw string) Normalized {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return Normalized{InputType: TypeText, Error: "Empty text input"}
	}
	return Normalized{
		Text:       cleaned,
		Confidence: 1.0,
		InputType:  TypeText,
		Success:    true,
	}
}

// NormalizeVoice transcribes the audio payload. No-match, cancellation and
// transport failures all degrade to an unsuccessful result carrying the
// error message.
func (n *Normalizer) NormalizeVoice(ctx context.Context, audio []byte) Normalized {
	if n.transcriber == nil {
		return Normalized{InputType: TypeVoice, Error: "speech service not configured"}
	}
	if !ValidAudioPayload(audio) {
		return Normalized{InputType: TypeVoice, Error: "audio payload too small"}
	}

	tr, err := n.transcriber.Transcribe(ctx, audio, "")
	if err != nil {
		msg := err.Error()
		if errors.Is(err, speech.ErrNoSpeech) {
			msg = "No speech recognized"
		}
		return Normalized{InputType: TypeVoice, Error: msg}
	}

	return Normalized{
		Text:       tr.Text,
		Confidence: voiceConfidence,
		InputType:  TypeVoice,
		Success:    true,
	}
}

// ValidAudioPayload checks the payload is plausibly audio before it is sent
// to the engine.
func ValidAudioPayload(audio []byte) bool {
	return len(audio) >= minAudioBytes
}
