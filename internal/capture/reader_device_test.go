package capture

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collector struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (c *collector) emit(b []byte) {
	c.mu.Lock()
	c.chunks = append(c.chunks, b)
	c.mu.Unlock()
}

func (c *collector) joined() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return bytes.Join(c.chunks, nil)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chunks)
}

func TestReaderDevice_EmitsAllBytesInOrderAndEnds(t *testing.T) {
	data := bytes.Repeat([]byte("abcdefgh"), 10)
	d := NewReaderDevice(bytes.NewReader(data), 16)

	ended := make(chan struct{})
	d.OnEnd = func() { close(ended) }

	c := &collector{}
	if err := d.Start(time.Millisecond, c.emit); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("device never reached end of input")
	}

	if !bytes.Equal(c.joined(), data) {
		t.Fatalf("emitted %q", c.joined())
	}
	if d.State() != StateInactive {
		t.Fatalf("state = %s after end", d.State())
	}
	if err := d.Start(time.Millisecond, c.emit); err != ErrAlreadyStarted {
		t.Fatalf("restart err = %v", err)
	}
}

func TestReaderDevice_PauseResumeAndStopFlush(t *testing.T) {
	data := bytes.Repeat([]byte("x"), 1024)
	d := NewReaderDevice(bytes.NewReader(data), 8)

	c := &collector{}
	_ = d.Start(5*time.Millisecond, c.emit)

	d.Pause()
	if d.State() != StatePaused {
		t.Fatalf("state = %s, want paused", d.State())
	}
	before := c.count()
	time.Sleep(30 * time.Millisecond)
	if c.count() > before+1 {
		t.Fatalf("emitted %d chunks while paused", c.count()-before)
	}

	d.Resume()
	if d.State() != StateRecording {
		t.Fatalf("state = %s, want recording", d.State())
	}

	beforeStop := c.count()
	select {
	case <-d.Stop():
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not complete")
	}
	if c.count() <= beforeStop {
		t.Fatal("stop did not flush a final chunk")
	}
	if d.State() != StateInactive {
		t.Fatalf("state = %s after stop", d.State())
	}
}

func TestReaderDevice_StopBeforeStartReleases(t *testing.T) {
	d := NewReaderDevice(bytes.NewReader([]byte("abc")), 0)
	select {
	case <-d.Stop():
	case <-time.After(time.Second):
		t.Fatal("stop of idle device blocked")
	}
}

func TestFileAcquirer(t *testing.T) {
	dir := t.TempDir()
	mic := filepath.Join(dir, "mic.webm")
	empty := filepath.Join(dir, "empty.webm")
	_ = os.WriteFile(mic, []byte("audio"), 0o600)
	_ = os.WriteFile(empty, nil, 0o600)

	a := &FileAcquirer{MicrophonePath: mic}
	d, err := a.Acquire(context.Background(), SourceMicrophone)
	if err != nil || !d.HasAudio() {
		t.Fatalf("microphone = %v, %v", d, err)
	}
	d.Release()

	tab, err := a.Acquire(context.Background(), SourceTab)
	if err != nil || tab.HasAudio() {
		t.Fatalf("tab without path should have no audio: %v", err)
	}
	tab.Release()

	a.MicrophonePath = empty
	d, _ = a.Acquire(context.Background(), SourceMicrophone)
	if d.HasAudio() {
		t.Fatal("empty file reported audio")
	}
	d.Release()

	a.MicrophonePath = filepath.Join(dir, "missing.webm")
	if _, err := a.Acquire(context.Background(), SourceMicrophone); err == nil {
		t.Fatal("missing file acquired")
	}
}
