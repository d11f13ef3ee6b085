// Package mediasource produces encoded byte packets from an input file and
// forwards them to a bound decode stream, one producer goroutine per input.
package mediasource

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/bournex/gpudecode/internal/util"
)

// rawChunkSize is the fixed chunk size used for elementary-stream reads per
// §6: the hardware parser recovers NAL-unit boundaries itself.
const rawChunkSize = 1024

// maxSyntheticPacket bounds the synthetic container reader's length prefix
// so a corrupt stream can't trigger an unbounded allocation.
const maxSyntheticPacket = 16 << 20

// StreamTarget is the subset of Decoder that MediaSource drives.
type StreamTarget interface {
	InputStream(data []byte) error
}

// PacketSource yields one coded packet at a time from a container. A real
// demuxer implements this; syntheticContainerSource is a self-contained
// stand-in used because no real demuxer is in scope.
type PacketSource interface {
	ReadPacket() ([]byte, error)
}

// MediaSource owns one producer goroutine reading path and feeding it into
// target via InputStream, terminating with the (nil) EOS marker.
type MediaSource struct {
	path   string
	target StreamTarget

	stopCh chan struct{}
	doneCh chan struct{}
	eof    atomic.Bool
}

// New opens path and starts its producer goroutine immediately. The
// goroutine closes the file when it exits; Close stops it early and waits
// for it to exit.
func New(path string, target StreamTarget) (*MediaSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("mediasource: open %s: %w", path, err)
	}

	ms := &MediaSource{
		path:   path,
		target: target,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	go ms.run(f)
	return ms, nil
}

func (ms *MediaSource) run(f *os.File) {
	defer close(ms.doneCh)
	defer f.Close()
	defer ms.eof.Store(true)

	if util.IsElementaryStream(ms.path) {
		ms.runRaw(f)
	} else {
		ms.runContainer(newSyntheticContainerSource(f))
	}

	_ = ms.target.InputStream(nil)
}

func (ms *MediaSource) runRaw(r io.Reader) {
	buf := make([]byte, rawChunkSize)
	for {
		select {
		case <-ms.stopCh:
			return
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			if serr := ms.target.InputStream(chunk); serr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (ms *MediaSource) runContainer(src PacketSource) {
	for {
		select {
		case <-ms.stopCh:
			return
		default:
		}
		pkt, err := src.ReadPacket()
		if err != nil {
			return
		}
		if len(pkt) == 0 {
			continue
		}
		if serr := ms.target.InputStream(pkt); serr != nil {
			return
		}
	}
}

// Eof reports whether the producer loop has exited, whether by reaching the
// end of the input or by Close.
func (ms *MediaSource) Eof() bool { return ms.eof.Load() }

// Close stops the producer loop and waits for it to exit.
func (ms *MediaSource) Close() error {
	select {
	case <-ms.stopCh:
	default:
		close(ms.stopCh)
	}
	<-ms.doneCh
	return nil
}

// syntheticContainerSource reads length-prefixed packet records (4-byte
// big-endian length followed by that many bytes) from r. It stands in for a
// real demuxer, which is an out-of-scope external collaborator per §1;
// grounded on the teacher's pattern of wrapping an external tool's output
// stream (internal/chunk/audio.go's ffmpeg-stdout handling) but reading a
// self-describing record format instead of shelling out.
type syntheticContainerSource struct {
	r io.Reader
}

func newSyntheticContainerSource(r io.Reader) *syntheticContainerSource {
	return &syntheticContainerSource{r: r}
}

func (s *syntheticContainerSource) ReadPacket() ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(s.r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return nil, io.EOF
	}
	if n > maxSyntheticPacket {
		return nil, fmt.Errorf("mediasource: packet too large: %d bytes", n)
	}
	pkt := make([]byte, n)
	if _, err := io.ReadFull(s.r, pkt); err != nil {
		return nil, err
	}
	return pkt, nil
}
