// Package filecam is a camera backed by a directory of still frames.
//
// Each sub-directory of the root is one device; its PNG/JPEG files are the
// frames, read in lexical order. A file named "torch" marks a device whose
// track exposes a torch. The CLI uses it to scan photos taken in the field, and
// tests use it as a deterministic camera.
package filecam

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"rehla/internal/scan"
)

const torchMarker = "torch"

// Camera implements scan.MediaDevices over a directory tree.
type Camera struct {
	root          string
	loop          bool
	requireFacing bool

	mu    sync.Mutex
	inUse map[string]bool
}

// Option configures a Camera.
type Option func(*Camera)

// WithLoop replays frames from the start instead of ending the stream.
func WithLoop() Option {
	return func(c *Camera) {
		c.loop = true
	}
}

// WithRequireFacing makes a facing constraint strict: when no device matches,
// Open fails with scan.ErrConstraintsUnsatisfiable instead of falling back.
func WithRequireFacing() Option {
	return func(c *Camera) {
		c.requireFacing = true
	}
}

// New returns a camera rooted at dir.
func New(dir string, opts ...Option) *Camera {
	c := &Camera{root: dir, inUse: make(map[string]bool)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EnumerateDevices lists the device directories. A missing root means no cameras.
func (c *Camera) EnumerateDevices(_ context.Context) ([]scan.Device, error) {
	entries, err := os.ReadDir(c.root)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return []scan.Device{}, nil
		case errors.Is(err, fs.ErrPermission):
			return nil, fmt.Errorf("read %s: %w", c.root, scan.ErrPermissionDenied)
		default:
			return nil, fmt.Errorf("read %s: %w", c.root, err)
		}
	}

	devices := make([]scan.Device, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		devices = append(devices, scan.Device{
			ID:     e.Name(),
			Label:  e.Name(),
			Facing: facingFromName(e.Name()),
		})
	}
	return devices, nil
}

// Open acquires a device exclusively.
func (c *Camera) Open(ctx context.Context, constraints scan.Constraints) (scan.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devices, err := c.EnumerateDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no device directories under %s: %w", c.root, scan.ErrDeviceNotFound)
	}

	device, err := c.pick(devices, constraints)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(c.root, device.ID)
	frames, torch, err := listFrames(dir)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.inUse[device.ID] {
		c.mu.Unlock()
		return nil, fmt.Errorf("device %s: %w", device.ID, scan.ErrDeviceBusy)
	}
	c.inUse[device.ID] = true
	c.mu.Unlock()

	s := &stream{
		camera:   c,
		deviceID: device.ID,
		frames:   frames,
		loop:     c.loop,
	}
	if torch {
		return &torchStream{stream: s}, nil
	}
	return s, nil
}

// InUse reports whether a device is currently held open.
func (c *Camera) InUse(deviceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inUse[deviceID]
}

func (c *Camera) release(deviceID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inUse, deviceID)
}

func (c *Camera) pick(devices []scan.Device, constraints scan.Constraints) (scan.Device, error) {
	if constraints.DeviceID != "" {
		for _, d := range devices {
			if d.ID == constraints.DeviceID {
				return d, nil
			}
		}
		return scan.Device{}, fmt.Errorf("device %q: %w", constraints.DeviceID, scan.ErrConstraintsUnsatisfiable)
	}

	sorted := scan.SortDevices(devices)
	if constraints.Facing == scan.FacingAny {
		return sorted[0], nil
	}
	for _, d := range sorted {
		if d.RearFacing == (constraints.Facing == scan.FacingEnvironment) {
			return d, nil
		}
	}
	if c.requireFacing {
		return scan.Device{}, fmt.Errorf("facing %q: %w", constraints.Facing, scan.ErrConstraintsUnsatisfiable)
	}
	return sorted[0], nil
}

func listFrames(dir string) ([]string, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, false, fmt.Errorf("read %s: %w", dir, scan.ErrPermissionDenied)
		}
		return nil, false, fmt.Errorf("read %s: %w", dir, err)
	}
	var frames []string
	torch := false
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == torchMarker {
			torch = true
			continue
		}
		switch strings.ToLower(filepath.Ext(name)) {
		case ".png", ".jpg", ".jpeg":
			frames = append(frames, filepath.Join(dir, name))
		}
	}
	sort.Strings(frames)
	return frames, torch, nil
}

func facingFromName(name string) scan.Facing {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "front"), strings.Contains(lower, "user"), strings.Contains(lower, "selfie"):
		return scan.FacingUser
	case scan.IsRearFacing(scan.FacingAny, lower):
		return scan.FacingEnvironment
	default:
		return scan.FacingAny
	}
}

type stream struct {
	camera   *Camera
	deviceID string
	frames   []string
	loop     bool

	mu     sync.Mutex
	next   int
	closed bool
}

// ReadFrame decodes the next frame file. A file that fails to decode is a
// per-frame miss, reported as a plain error.
func (s *stream) ReadFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, scan.ErrStreamEnded
	}
	if s.next >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			s.mu.Unlock()
			return nil, scan.ErrStreamEnded
		}
		s.next = 0
	}
	path := s.frames[s.next]
	s.next++
	s.mu.Unlock()

	return decodeFile(path)
}

// Close releases the device. Repeated calls are no-ops.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.camera.release(s.deviceID)
	return nil
}

type torchStream struct {
	*stream
	on bool
}

func (t *torchStream) SetTorch(_ context.Context, on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return scan.ErrStreamEnded
	}
	t.on = on
	return nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open frame: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode frame %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
