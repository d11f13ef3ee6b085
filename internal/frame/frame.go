// Package frame defines the decoded picture record shared by the decoder,
// frame pool, and batching pipe.
package frame

import "github.com/bournex/gpudecode/internal/bufferpool"

// DeviceReturner returns a frame's device and host buffers to the pools that
// issued them. A Decoder implements this so a frame handle's release can hand
// memory back to its owning stream without the frame package depending on
// the decoder package.
type DeviceReturner interface {
	ReturnDevice(buf *bufferpool.Buffer)
	ReturnHost(buf *bufferpool.Buffer)
}

// Frame is one decoded NV12 picture. DevicePitch*Height*3/2 bytes of Device
// hold the Y plane followed by the interleaved half-resolution UV plane.
type Frame struct {
	Width       uint32
	Height      uint32
	DevicePitch uint32
	HostPitch   uint32
	Timestamp   int64 // monotonic, 100ns-tick analogue
	Last        bool
	FrameNo     uint64
	TID         uint64
	ProducerID  uint64

	Device *bufferpool.Buffer
	Host   *bufferpool.Buffer

	Backref DeviceReturner
}

// Reset clears a frame for reuse by FramePool without discarding the
// allocation backing the struct itself.
func (f *Frame) Reset() {
	f.Width, f.Height = 0, 0
	f.DevicePitch, f.HostPitch = 0, 0
	f.Timestamp = 0
	f.Last = false
	f.FrameNo, f.TID, f.ProducerID = 0, 0, 0
	f.Device, f.Host = nil, nil
	f.Backref = nil
}
