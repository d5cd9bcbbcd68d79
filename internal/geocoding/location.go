package geocoding

import (
	"context"
	"sync"
	"time"

	"github.com/walkthrough/walkthrough/internal/geo"
)

// LocationSource provides the device position.
type LocationSource interface {
	// CurrentPosition returns the device position, ErrPermissionDenied when
	// the user refused location access, or ErrLocationUnavailable.
	CurrentPosition(ctx context.Context) (geo.Coordinate, error)
}

// Fix is a device position reported by the UI shell.
type Fix struct {
	Coordinate        geo.Coordinate
	PermissionGranted bool
	ReportedAt        time.Time
}

// DeviceLocation is a LocationSource fed by the UI shell, which owns the
// actual OS permission prompt and GPS access.
type DeviceLocation struct {
	maxAge time.Duration
	now    func() time.Time

	mu  sync.RWMutex
	fix *Fix
}

// NewDeviceLocation creates a location source. Fixes older than maxAge are
// treated as unavailable; zero disables the check.
func NewDeviceLocation(maxAge time.Duration) *DeviceLocation {
	return &DeviceLocation{maxAge: maxAge, now: time.Now}
}

// Report records the latest fix and permission state.
func (d *DeviceLocation) Report(f Fix) error {
	if f.PermissionGranted {
		if err := f.Coordinate.Validate(); err != nil {
			return err
		}
	}
	if f.ReportedAt.IsZero() {
		f.ReportedAt = d.now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.fix = &f
	return nil
}

// Last returns the latest report, if any.
func (d *DeviceLocation) Last() (Fix, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.fix == nil {
		return Fix{}, false
	}
	return *d.fix, true
}

// CurrentPosition implements LocationSource.
func (d *DeviceLocation) CurrentPosition(_ context.Context) (geo.Coordinate, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch {
	case d.fix == nil:
		return geo.Coordinate{}, ErrLocationUnavailable
	case !d.fix.PermissionGranted:
		return geo.Coordinate{}, ErrPermissionDenied
	case d.maxAge > 0 && d.now().Sub(d.fix.ReportedAt) > d.maxAge:
		return geo.Coordinate{}, ErrLocationUnavailable
	}
	return d.fix.Coordinate, nil
}
