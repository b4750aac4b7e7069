package radio

import (
	"fmt"
	"sort"
	"strings"
)

// Args holds a parsed device address string such as
// "type=rtltcp,addr=127.0.0.1:1234".
type Args map[string]string

// ParseArgs splits a comma separated list of key=value pairs. A bare key is
// stored with an empty value. Keys are trimmed and lowercased.
func ParseArgs(s string) (Args, error) {
	a := make(Args)
	for _, kv := range strings.Split(s, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, fmt.Errorf("bad device args %q: empty key", s)
		}
		a[k] = strings.TrimSpace(v)
	}
	return a, nil
}

func (a Args) Get(k, def string) string {
	if v, ok := a[k]; ok && v != "" {
		return v
	}
	return def
}

func (a Args) Type() string { return a["type"] }

// String renders the args with "type" first and the rest sorted so the
// output can be passed back to ParseArgs.
func (a Args) String() string {
	keys := make([]string, 0, len(a))
	for k := range a {
		if k != "type" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := a["type"]; ok {
		keys = append([]string{"type"}, keys...)
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if a[k] == "" {
			parts[i] = k
		} else {
			parts[i] = k + "=" + a[k]
		}
	}
	return strings.Join(parts, ",")
}
