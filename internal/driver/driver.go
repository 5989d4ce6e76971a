// Package driver defines the pluggable backend abstraction: the set of
// audio/music/CD interfaces a Driver exposes, the registry that installs
// and activates drivers by CLI priority list, and the driver
// implementations themselves (spec §3 "Driver", §4.5).
package driver

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"audiostage/internal/channel"
)

// InterfaceKind is one of the three interface families a driver may
// expose (spec §4.5).
type InterfaceKind int

const (
	InterfaceSFX InterfaceKind = iota
	InterfaceMusic
	InterfaceCD
)

func (k InterfaceKind) String() string {
	switch k {
	case InterfaceSFX:
		return "sfx"
	case InterfaceMusic:
		return "music"
	case InterfaceCD:
		return "cd"
	default:
		return "unknown"
	}
}

// Status tracks a driver's lifecycle (spec §4.5).
type Status int

const (
	StatusLoaded Status = iota
	StatusInitialized
)

// Errors returned by the registry (spec §7).
var (
	ErrMissingDriver    = errors.New("driver: no driver registered under that identity key")
	ErrMissingInterface = errors.New("driver: driver does not expose that interface")
	ErrDriverInitFailed = errors.New("driver: initialization failed")
	ErrDuplicateKey     = errors.New("driver: identity key already claimed by another driver")
)

// InterfaceRecord describes one interface a driver exposes: which kind,
// and whether it is currently active (spec §4.5).
type InterfaceRecord struct {
	Kind   InterfaceKind
	Active bool
}

// Driver is the pluggable backend. A concrete driver may expose any
// subset of the three interface kinds; MakeChannel and AllowRefresh are
// no-ops for interfaces it doesn't implement (spec §3, §4.5).
type Driver interface {
	// IdentityKeys returns every name this driver can be selected under
	// (e.g. {"beep", "default"}).
	IdentityKeys() []string

	// ListInterfaces reports which interface kinds this driver exposes.
	ListInterfaces() []InterfaceKind

	// Initialize transitions Loaded -> Initialized.
	Initialize() error
	// Deinitialize transitions Initialized -> Loaded, releasing any
	// backend resources.
	Deinitialize()
	Status() Status

	// InitInterface activates one of the driver's interfaces.
	InitInterface(kind InterfaceKind) error
	// DeinitInterface deactivates one of the driver's interfaces.
	DeinitInterface(kind InterfaceKind)

	// MakeChannel allocates a hardware-backed channel for the given
	// interface kind and format. Returns nil if the driver has no
	// capacity left or doesn't support the kind.
	MakeChannel(kind InterfaceKind, positioning channel.Positioning, bytesPerSample int, rateHz uint32) *channel.Channel

	// AllowRefresh pauses (false) or resumes (true) this driver's
	// internal refresh activity (spec §4.9). The refresh worker's
	// Pause/Resume does not call it.
	AllowRefresh(allow bool)
}

// Registry installs drivers under their identity keys and activates a
// CLI-specified priority list of interfaces against them (spec §4.5).
type Registry struct {
	mu      sync.Mutex
	drivers map[string]Driver
	byKind  map[InterfaceKind][]Driver
	order   []Driver
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		drivers: make(map[string]Driver),
		byKind:  make(map[InterfaceKind][]Driver),
	}
}

// Install registers d under every one of its identity keys. Fails if any
// key is already claimed (spec §7 "DuplicateKey").
func (r *Registry) Install(d Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range d.IdentityKeys() {
		lower := strings.ToLower(key)
		if _, exists := r.drivers[lower]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateKey, key)
		}
	}
	for _, key := range d.IdentityKeys() {
		r.drivers[strings.ToLower(key)] = d
	}
	r.order = append(r.order, d)
	for _, kind := range d.ListInterfaces() {
		r.byKind[kind] = append(r.byKind[kind], d)
	}
	return nil
}

// FindDriver returns the driver installed under key, or an error.
func (r *Registry) FindDriver(key string) (Driver, error) {
	d, ok := r.TryFindDriver(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMissingDriver, key)
	}
	return d, nil
}

// TryFindDriver returns the driver installed under key without an error
// value, for call sites that want an ok-boolean.
func (r *Registry) TryFindDriver(key string) (Driver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[strings.ToLower(key)]
	return d, ok
}

// Installed returns every installed driver, in installation order.
func (r *Registry) Installed() []Driver {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Driver{}, r.order...)
}

// ActivatePriorityList walks keys in order and initializes+activates the
// given interface kind on the first driver that both exists and
// successfully exposes it (spec §4.5 "Loading": "the CLI supplies a
// priority list; the first driver able to satisfy the interface wins").
// Returns the driver that won, or an error if none of the listed keys
// could satisfy kind.
func (r *Registry) ActivatePriorityList(keys []string, kind InterfaceKind) (Driver, error) {
	var lastErr error
	for _, key := range keys {
		d, err := r.FindDriver(key)
		if err != nil {
			lastErr = err
			continue
		}
		if d.Status() != StatusInitialized {
			if err := d.Initialize(); err != nil {
				lastErr = fmt.Errorf("%w: %s: %v", ErrDriverInitFailed, key, err)
				continue
			}
		}
		if !exposesKind(d, kind) {
			lastErr = fmt.Errorf("%w: %s does not expose %s", ErrMissingInterface, key, kind)
			continue
		}
		if err := d.InitInterface(kind); err != nil {
			lastErr = fmt.Errorf("%w: %s: %v", ErrDriverInitFailed, key, err)
			continue
		}
		return d, nil
	}
	if lastErr == nil {
		lastErr = ErrMissingDriver
	}
	return nil, lastErr
}

func exposesKind(d Driver, kind InterfaceKind) bool {
	for _, k := range d.ListInterfaces() {
		if k == kind {
			return true
		}
	}
	return false
}
