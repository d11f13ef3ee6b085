package driver

import (
	"errors"
	"sync"
	"sync/atomic"
)

// nv12Size returns the byte size of an NV12 surface with the given pitch and
// height, per the glossary: pitch * height * 3 / 2.
func nv12Size(pitch, height uint32) int {
	return int(pitch) * int(height) * 3 / 2
}

const devicePitchAlign = 512

func alignPitch(width uint32) uint32 {
	if width%devicePitchAlign == 0 {
		return width
	}
	return (width/devicePitchAlign + 1) * devicePitchAlign
}

// simulatedStream is a single decode session against the simulated driver.
// It splits every input chunk into picturePayload-byte pieces and treats each
// piece as one coded picture: there is no real NAL/bitstream parsing here, since the parser itself is the opaque
// external collaborator this system does not implement.
type simulatedStream struct {
	cb     Callbacks
	width  uint32
	height uint32

	mu        sync.Mutex
	surfaces  [][]byte // recycled decode/display surfaces, sized by ConfigureSurfaces
	nextIdx   uint32
	sequenced bool
	closed    bool
}

const defaultCodedWidth, defaultCodedHeight = 1280, 720

// picturePayload is the stride at which this simulated driver splits an input
// chunk into coded pictures: a chunk of n bytes yields ceil(n/picturePayload)
// pictures, so any non-empty chunk of up to picturePayload bytes is one
// picture. Real Annex-B parsing finds NAL boundaries; this driver has no
// bitstream to parse, so it uses a fixed stride instead.
const picturePayload = 4096

func newSimulatedStream(cb Callbacks) *simulatedStream {
	return &simulatedStream{cb: cb, width: defaultCodedWidth, height: defaultCodedHeight}
}

func (s *simulatedStream) Parse(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errors.New("driver: stream closed")
	}
	if !s.sequenced {
		s.sequenced = true
		w, h := s.width, s.height
		s.mu.Unlock()
		if err := s.cb.OnSequence(w, h); err != nil {
			return err
		}
		s.mu.Lock()
	}
	s.mu.Unlock()

	if len(data) == 0 {
		return nil
	}

	// A resolution-change test hook: a caller simulating a mid-stream SPS
	// change (scenario 5) prefixes a chunk with "RCHG" followed by two
	// big-endian uint16 dimensions. Production inputs never contain this
	// marker; it exists because SPS parsing itself is out of scope.
	if len(data) >= 8 && string(data[:4]) == "RCHG" {
		w := uint32(data[4])<<8 | uint32(data[5])
		h := uint32(data[6])<<8 | uint32(data[7])
		s.mu.Lock()
		s.width, s.height = w, h
		s.surfaces = nil
		s.mu.Unlock()
		return s.cb.OnSequence(w, h)
	}

	for off := 0; off < len(data); off += picturePayload {
		idx := atomic.AddUint32(&s.nextIdx, 1) - 1
		if err := s.cb.OnDecodeSubmit(idx); err != nil {
			continue
		}
		s.mu.Lock()
		if len(s.surfaces) == 0 {
			s.mu.Unlock()
			continue
		}
		slot := s.surfaces[int(idx)%len(s.surfaces)]
		pitch := alignPitch(s.width)
		fillSyntheticNV12(slot, s.width, s.height, pitch, idx)
		s.mu.Unlock()
		if err := s.cb.OnDisplay(idx); err != nil {
			return err
		}
	}
	return nil
}

func (s *simulatedStream) ConfigureSurfaces(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pitch := alignPitch(s.width)
	size := nv12Size(pitch, s.height)
	surfaces := make([][]byte, n)
	for i := range surfaces {
		surfaces[i] = make([]byte, size)
	}
	s.surfaces = surfaces
}

func (s *simulatedStream) Map(pictureIndex uint32) ([]byte, uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.surfaces) == 0 {
		return nil, 0, errors.New("driver: no surfaces configured")
	}
	slot := s.surfaces[int(pictureIndex)%len(s.surfaces)]
	return slot, alignPitch(s.width), nil
}

func (s *simulatedStream) Unmap(uint32) error { return nil }

func (s *simulatedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.surfaces = nil
	s.mu.Unlock()
	return nil
}

func fillSyntheticNV12(buf []byte, width, height, pitch, idx uint32) {
	ySize := int(pitch) * int(height)
	for i := 0; i < ySize && i < len(buf); i++ {
		buf[i] = byte(idx + uint32(i))
	}
	for i := ySize; i < len(buf); i++ {
		buf[i] = 128
	}
	_ = width
}

// Simulated is an HWDriver backed entirely by in-process Go state: it stands
// in for the real hardware decoder API, which is this system's primary
// out-of-scope external collaborator.
type Simulated struct{}

// NewSimulated returns a driver usable without any real GPU decode hardware.
func NewSimulated() *Simulated { return &Simulated{} }

func (Simulated) OpenStream(cb Callbacks) (StreamHandle, error) {
	return newSimulatedStream(cb), nil
}
