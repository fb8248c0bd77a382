package connectivity

import (
	"context"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldsync/internal/netx"
)

// InterfaceDetector treats the network as available when a non-loopback
// interface is up and has an address.
type InterfaceDetector struct {
	// Interfaces lists the host interfaces. Defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)
	// Addrs lists the addresses of an interface. Defaults to ifc.Addrs.
	Addrs func(ifc net.Interface) ([]net.Addr, error)
}

func (d InterfaceDetector) Available(ctx context.Context) bool {
	return d.fingerprint() != ""
}

// fingerprint is a stable description of the usable interfaces, empty
// when there are none.
func (d InterfaceDetector) fingerprint() string {
	list := d.Interfaces
	if list == nil {
		list = net.Interfaces
	}
	addrs := d.Addrs
	if addrs == nil {
		addrs = func(ifc net.Interface) ([]net.Addr, error) { return ifc.Addrs() }
	}

	ifcs, err := list()
	if err != nil {
		return ""
	}

	var parts []string
	for _, ifc := range ifcs {
		if ifc.Flags&net.FlagUp == 0 || ifc.Flags&net.FlagLoopback != 0 {
			continue
		}
		as, err := addrs(ifc)
		if err != nil || len(as) == 0 {
			continue
		}
		for _, a := range as {
			parts = append(parts, ifc.Name+"="+a.String())
		}
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}

// Watch polls the interfaces every interval and calls onChange whenever
// the usable set differs from the previous poll. It returns when ctx is
// done.
func (d InterfaceDetector) Watch(ctx context.Context, interval time.Duration, onChange func()) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := d.fingerprint()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cur := d.fingerprint(); cur != last {
				last = cur
				onChange()
			}
		}
	}
}

// URLProber checks general internet reachability against public URLs.
type URLProber struct {
	Client *http.Client
	URLs   []string
}

func (p URLProber) Ping(ctx context.Context) error {
	return netx.AnyReachable(ctx, p.Client, p.URLs)
}
