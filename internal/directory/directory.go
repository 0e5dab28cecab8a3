package directory

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-eltako/internal/enocean"
)

// Logger defines the logging interface used by the Directory.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Directory maps bus addresses to device entries.
//
// It is created by the caller and passed to whoever needs it; there is no
// package-level instance. All methods are safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	byAddr  map[enocean.Address]Entry
	byID    map[string]enocean.Address
	loggerM sync.RWMutex
	logger  Logger
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		byAddr: make(map[enocean.Address]Entry),
		byID:   make(map[string]enocean.Address),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the directory.
func (d *Directory) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	d.loggerM.Lock()
	d.logger = logger
	d.loggerM.Unlock()
}

func (d *Directory) log() Logger {
	d.loggerM.RLock()
	defer d.loggerM.RUnlock()
	return d.logger
}

// Register adds an entry.
//
// Registering the same data again is a no-op. Registering different data
// for an existing address returns a *DuplicateAddressError.
//
// Parameters:
//   - e: Entry to add; it is validated and copied
//
// Returns:
//   - error: ErrInvalidEntry, *DuplicateAddressError or ErrDuplicateID
func (d *Directory) Register(e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	e = e.Clone()
	if e.Direction == "" {
		e.Direction = Listener
	}
	if e.Name == "" {
		e.Name = e.Key()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.byAddr[e.Address]; ok {
		if existing.Equal(e) {
			return nil
		}
		return &DuplicateAddressError{Existing: existing.Clone(), Conflicting: e.Clone()}
	}
	if addr, ok := d.byID[e.Key()]; ok {
		return fmt.Errorf("%w: %q already names %s", ErrDuplicateID, e.Key(), addr)
	}

	d.byAddr[e.Address] = e
	d.byID[e.Key()] = e.Address
	d.log().Debug("device registered", "address", e.Address.String(), "eep", e.EEP.String(), "name", e.Name)
	return nil
}

// Lookup returns the entry for an address.
func (d *Directory) Lookup(addr enocean.Address) (Entry, bool) {
	d.mu.RLock()
	e, ok := d.byAddr[addr]
	d.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// LookupID returns the entry with the given device identifier.
func (d *Directory) LookupID(id string) (Entry, bool) {
	d.mu.RLock()
	addr, ok := d.byID[id]
	var e Entry
	if ok {
		e = d.byAddr[addr]
	}
	d.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// All returns every entry sorted by address.
func (d *Directory) All() []Entry {
	d.mu.RLock()
	out := make([]Entry, 0, len(d.byAddr))
	for _, e := range d.byAddr {
		out = append(out, e.Clone())
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out
}

// Len returns the number of registered entries.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byAddr)
}
