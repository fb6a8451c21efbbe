// Package speech adapts the external speech cloud: avatar synthesis,
// transcription, voice listing and ICE relay tokens for the realtime
// transport. All calls run under caller-supplied contexts with the
// configured timeout so a stalled engine surfaces as an error instead of
// hanging the request.
package speech

import (
	"context"
	"errors"
)

// ErrNotConfigured means the speech credentials are absent. Operations that
// need the engine fail fast with it and are not retried.
var ErrNotConfigured = errors.New("speech credentials not configured")

// ErrNoSpeech means the engine could not match any speech in the audio.
var ErrNoSpeech = errors.New("no speech recognized")

// Transcription is the recognized text for one audio payload.
type Transcription struct {
	Text string
}

// Transcriber converts opaque audio bytes into text. Failures are either
// ErrNoSpeech, a cancellation with details, or a transport error.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (Transcription, error)
}

// ICEToken carries ephemeral relay credentials for the external WebRTC
// transport layer. The token expires; callers fetch a fresh one per session.
type ICEToken struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username"`
	Credential string   `json:"credential"`
}
