package fetch

import (
	"context"
	"net"
)

// Prober reports whether the network is usable before a request is issued.
type Prober interface {
	Reachable(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

// Reachable calls f.
func (f ProberFunc) Reachable(ctx context.Context) bool {
	return f(ctx)
}

// AlwaysReachable skips the connectivity check.
var AlwaysReachable = ProberFunc(func(context.Context) bool { return true })

// InterfaceProber treats the device as online when at least one non-loopback
// interface is up and has an address. It does not contact any host.
type InterfaceProber struct{}

// Reachable implements Prober.
func (InterfaceProber) Reachable(context.Context) bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if len(addrs) > 0 {
			return true
		}
	}
	return false
}
