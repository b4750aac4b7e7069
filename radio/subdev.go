package radio

import (
	"fmt"
	"strings"
)

// SubdevPair names one frontend as daughterboard:subdevice, e.g. "A:0".
type SubdevPair struct {
	DBName string
	SDName string
}

func (p SubdevPair) String() string { return p.DBName + ":" + p.SDName }

// SubdevSpec is a space separated list of frontends, one per channel.
type SubdevSpec []SubdevPair

func ParseSubdevSpec(s string) (SubdevSpec, error) {
	var spec SubdevSpec
	for _, f := range strings.Fields(s) {
		db, sd, ok := strings.Cut(f, ":")
		if !ok || db == "" || strings.Contains(sd, ":") {
			return nil, fmt.Errorf("%w: %q", ErrBadSubdevSpec, f)
		}
		if sd == "" {
			sd = "0"
		}
		spec = append(spec, SubdevPair{DBName: db, SDName: sd})
	}
	if len(spec) == 0 {
		return nil, fmt.Errorf("%w: empty", ErrBadSubdevSpec)
	}
	return spec, nil
}

func (spec SubdevSpec) String() string {
	parts := make([]string, len(spec))
	for i, p := range spec {
		parts[i] = p.String()
	}
	return strings.Join(parts, " ")
}
