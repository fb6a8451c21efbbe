package avatar

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeHandle struct {
	mu     sync.Mutex
	voice  string
	spoken []string
	fail   error
	closed bool
}

func (h *fakeHandle) Speak(_ context.Context, ssml string) (*SynthesisResult, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fail != nil {
		return nil, h.fail
	}
	h.spoken = append(h.spoken, ssml)
	return &SynthesisResult{Video: []byte("v"), Duration: 250 * time.Millisecond}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

type fakeEngine struct {
	mu      sync.Mutex
	handles []*fakeHandle
	fail    error
}

func (e *fakeEngine) NewHandle(_ context.Context, voice string) (Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail != nil {
		return nil, e.fail
	}
	h := &fakeHandle{voice: voice}
	e.handles = append(e.handles, h)
	return h, nil
}

func newTestRegistry(engine HandleEngine) *Registry {
	return NewRegistry(NewBuilder(DefaultConfig()), engine)
}

func TestOpenSendClose(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	r := newTestRegistry(engine)

	sess, err := r.Open(ctx, "client-1", Overrides{Character: "mark", Style: "standing", Voice: "en-US-DavisNeural"})
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if !sess.Active || sess.ID == "" {
		t.Fatalf("session = %+v", sess)
	}
	if engine.handles[0].voice != "en-US-DavisNeural" {
		t.Fatalf("handle bound to voice %q", engine.handles[0].voice)
	}

	res, err := r.Send(ctx, sess.ID, "hello")
	if err != nil {
		t.Fatalf("Send error = %v", err)
	}
	if !res.Success || res.Duration != 250*time.Millisecond {
		t.Fatalf("send result = %+v", res)
	}
	if !strings.Contains(engine.handles[0].spoken[0], "en-US-DavisNeural") {
		t.Fatalf("spoken ssml = %q", engine.handles[0].spoken[0])
	}

	if err := r.Close(sess.ID); err != nil {
		t.Fatalf("Close error = %v", err)
	}
	if !engine.handles[0].closed {
		t.Fatal("handle not closed")
	}
}

func TestSendAfterCloseNeverSucceeds(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(&fakeEngine{})

	sess, err := r.Open(ctx, "client-1", Overrides{})
	if err != nil {
		t.Fatalf("Open error = %v", err)
	}
	if err := r.Close(sess.ID); err != nil {
		t.Fatalf("Close error = %v", err)
	}

	_, err = r.Send(ctx, sess.ID, "too late")
	if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionInactive) {
		t.Fatalf("Send after close error = %v, want not-found or inactive", err)
	}
}

func TestSendUnknownSession(t *testing.T) {
	r := newTestRegistry(&fakeEngine{})
	_, err := r.Send(context.Background(), "no-such-id", "hi")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestSendEngineFailureIsOutcome(t *testing.T) {
	ctx := context.Background()
	engine := &fakeEngine{}
	r := newTestRegistry(engine)

	sess, _ := r.Open(ctx, "client-1", Overrides{})
	engine.handles[0].fail = errors.New("synthesis canceled: quota exceeded")

	res, err := r.Send(ctx, sess.ID, "hello")
	if err != nil {
		t.Fatalf("engine failure must not surface as error, got %v", err)
	}
	if res.Success || res.Error == "" {
		t.Fatalf("result = %+v, want failure with reason", res)
	}
}

func TestCloseTwiceReportsNotFound(t *testing.T) {
	r := newTestRegistry(&fakeEngine{})
	sess, _ := r.Open(context.Background(), "client-1", Overrides{})

	if err := r.Close(sess.ID); err != nil {
		t.Fatalf("first Close error = %v", err)
	}
	if err := r.Close(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("second Close error = %v, want ErrSessionNotFound", err)
	}
}

func TestOpenFailsWithoutCredentials(t *testing.T) {
	engine := &fakeEngine{fail: errors.New("speech credentials not configured")}
	r := newTestRegistry(engine)

	if _, err := r.Open(context.Background(), "client-1", Overrides{}); err == nil {
		t.Fatal("Open without credentials must fail")
	}
}

func TestListActiveSorted(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(&fakeEngine{})

	var ids []string
	for i := 0; i < 5; i++ {
		s, err := r.Open(ctx, "client", Overrides{})
		if err != nil {
			t.Fatalf("Open error = %v", err)
		}
		ids = append(ids, s.ID)
	}
	_ = r.Close(ids[2])

	active := r.ListActive()
	if len(active) != 4 {
		t.Fatalf("ListActive returned %d ids, want 4", len(active))
	}
	for i := 1; i < len(active); i++ {
		if active[i-1] >= active[i] {
			t.Fatalf("ListActive not sorted: %v", active)
		}
	}
}

func TestConcurrentSendAndClose(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(&fakeEngine{})
	sess, _ := r.Open(ctx, "client-1", Overrides{})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.Send(ctx, sess.ID, "racing")
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = r.Close(sess.ID)
	}()
	wg.Wait()

	if _, err := r.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("Get after close error = %v, want ErrSessionNotFound", err)
	}
}
