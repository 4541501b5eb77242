// Package capture owns the camera: one holder at a time, frames streamed to a
// barcode scanner, and a clean release when the capture surface closes.
package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

var (
	ErrDeviceBusy       = errors.New("capture: device is in use")
	ErrPermissionDenied = errors.New("capture: permission denied")
	ErrNoDevice         = errors.New("capture: no capture device")
	ErrClosed           = errors.New("capture: session closed")
	ErrNoBarcode        = errors.New("capture: frames ended without a barcode")
)

// Device is a frame source. Frames is valid between a successful Open and
// Close; the channel is closed when the source runs dry or the device closes.
type Device interface {
	Open(ctx context.Context) error
	Frames() <-chan image.Image
	Close() error
}

// Registry hands out exclusive use of one device.
type Registry struct {
	mu    sync.Mutex
	dev   Device
	owner string
}

func NewRegistry(dev Device) *Registry {
	return &Registry{dev: dev}
}

// Acquire opens the device for owner. It fails with ErrDeviceBusy while
// another lease is held; open errors are returned as is.
func (r *Registry) Acquire(ctx context.Context, owner string) (*Lease, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dev == nil {
		return nil, ErrNoDevice
	}
	if r.owner != "" {
		return nil, fmt.Errorf("%w (held by %s)", ErrDeviceBusy, r.owner)
	}
	if err := r.dev.Open(ctx); err != nil {
		return nil, err
	}
	r.owner = owner
	return &Lease{reg: r, owner: owner}, nil
}

// Holder returns the current owner, or "" if the device is free.
func (r *Registry) Holder() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.owner
}

func (r *Registry) release(owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.owner != owner {
		return nil
	}
	r.owner = ""
	return r.dev.Close()
}

type Lease struct {
	reg   *Registry
	owner string
	once  sync.Once
	err   error
}

func (l *Lease) Device() Device { return l.reg.dev }
func (l *Lease) Owner() string  { return l.owner }

// Release closes the device and frees it for the next owner. Extra calls are
// no-ops.
func (l *Lease) Release() error {
	l.once.Do(func() { l.err = l.reg.release(l.owner) })
	return l.err
}
