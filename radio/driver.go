package radio

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sort"
	"sync"
)

// Driver opens devices of one type. Find lists openable devices matching
// the hint args; it returns no error when nothing is attached.
type Driver interface {
	Find(ctx context.Context, hint Args) ([]HWInfo, error)
	Open(ctx context.Context, args Args) (Device, error)
}

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// Register makes a driver available under the given type name. It panics on
// a duplicate or nil driver.
func Register(name string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		panic("radio: Register driver is nil")
	}
	if _, dup := drivers[name]; dup {
		panic("radio: Register called twice for driver " + name)
	}
	drivers[name] = d
}

// Drivers returns the sorted names of the registered drivers.
func Drivers() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func driver(name string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	return d, ok
}

// Find asks every driver, or only the one named by "type", for devices.
func Find(ctx context.Context, hint Args) (ret []HWInfo, err error) {
	names := Drivers()
	if t := hint.Type(); t != "" {
		if _, ok := driver(t); !ok {
			return nil, fmt.Errorf("unknown device type %q", t)
		}
		names = []string{t}
	}
	var errs []error
	for _, name := range names {
		d, _ := driver(name)
		hws, err := d.Find(ctx, hint)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		ret = append(ret, hws...)
	}
	return ret, errors.Join(errs...)
}

// Open parses the device address string and opens the device it names.
// Without a "type" key the first device any driver finds is opened.
func Open(ctx context.Context, s string) (Device, error) {
	args, err := ParseArgs(s)
	if err != nil {
		return nil, err
	}
	if t := args.Type(); t != "" {
		d, ok := driver(t)
		if !ok {
			return nil, fmt.Errorf("unknown device type %q", t)
		}
		return d.Open(ctx, args)
	}
	hws, err := Find(ctx, args)
	if len(hws) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w for args %q: %w", ErrNoDevice, s, err)
		}
		return nil, fmt.Errorf("%w for args %q", ErrNoDevice, s)
	}
	// Keys only the user gave (ppm, bias, port, ...) still reach the driver.
	found := maps.Clone(hws[0].Args)
	if found == nil {
		found = Args{}
	}
	for k, v := range args {
		if _, ok := found[k]; !ok {
			found[k] = v
		}
	}
	d, _ := driver(hws[0].Driver)
	return d.Open(ctx, found)
}
