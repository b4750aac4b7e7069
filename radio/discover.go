package radio

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"
)

// DefaultService is the mDNS service type advertised for rtl_tcp servers.
const DefaultService = "_rtl_tcp._tcp"

// Discover browses mDNS for network radio servers until ctx is done and
// returns them as rtltcp devices.
func Discover(ctx context.Context, service string) ([]HWInfo, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	found := make(map[string]HWInfo)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if hw, ok := entryInfo(e); ok {
					found[hw.Id] = hw
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, service, "local.", entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}
	<-done

	ret := make([]HWInfo, 0, len(found))
	for _, hw := range found {
		ret = append(ret, hw)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].Id < ret[j].Id })
	return ret, nil
}

func entryInfo(e *zeroconf.ServiceEntry) (HWInfo, bool) {
	if e == nil {
		return HWInfo{}, false
	}
	var ip net.IP
	switch {
	case len(e.AddrIPv4) > 0:
		ip = e.AddrIPv4[0]
	case len(e.AddrIPv6) > 0:
		ip = e.AddrIPv6[0]
	default:
		return HWInfo{}, false
	}
	addr := net.JoinHostPort(ip.String(), strconv.Itoa(e.Port))
	return HWInfo{
		Driver: "rtltcp",
		Id:     addr,
		Name:   strings.ReplaceAll(e.Instance, `\ `, " "),
		Args:   Args{"type": "rtltcp", "addr": addr},
	}, true
}
