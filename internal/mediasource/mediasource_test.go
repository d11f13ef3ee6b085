package mediasource

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recordingTarget struct {
	mu    sync.Mutex
	calls [][]byte
	eos   bool
}

func (r *recordingTarget) InputStream(data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if data == nil {
		r.eos = true
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	r.calls = append(r.calls, cp)
	return nil
}

func (r *recordingTarget) snapshot() (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls), r.eos
}

func waitForEOS(t *testing.T, target *recordingTarget) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if _, eos := target.snapshot(); eos {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for EOS")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestElementaryStreamChunking(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.h264")
	if err := os.WriteFile(path, make([]byte, rawChunkSize*3+17), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := &recordingTarget{}
	ms, err := New(path, target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ms.Close()

	waitForEOS(t, target)
	n, _ := target.snapshot()
	if n != 4 {
		t.Errorf("got %d InputStream calls, want 4 (3 full chunks + 1 partial)", n)
	}
}

func TestContainerPacketFraming(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.mp4")

	var raw []byte
	for _, pkt := range [][]byte{{1, 2, 3}, {4, 5}, {6}} {
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(pkt)))
		raw = append(raw, lenBuf[:]...)
		raw = append(raw, pkt...)
	}
	if err := os.WriteFile(path, raw, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := &recordingTarget{}
	ms, err := New(path, target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ms.Close()

	waitForEOS(t, target)
	n, _ := target.snapshot()
	if n != 3 {
		t.Errorf("got %d packets, want 3", n)
	}
}

func TestCloseStopsProducer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.h264")
	if err := os.WriteFile(path, make([]byte, rawChunkSize), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	target := &recordingTarget{}
	ms, err := New(path, target)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := ms.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !ms.Eof() {
		t.Error("Eof() = false after Close")
	}
}
