package discovery

import (
	"fmt"
	"net/netip"
)

// TransportResolver expands a parsed instance address into addressable
// transport endpoints. Implementations may derive several ports from one
// address; maxPorts caps how many the caller wants back.
type TransportResolver interface {
	Expand(addr netip.Addr, maxPorts int) ([]netip.AddrPort, error)
}

// DefaultTransportPort is the first transport port probed on a
// discovered host.
const DefaultTransportPort = 9301

// PortRangeTransport derives endpoints by pairing the address with a
// range of consecutive ports starting at BasePort.
type PortRangeTransport struct {
	BasePort uint16
}

// NewPortRangeTransport returns a PortRangeTransport starting at
// basePort, or at DefaultTransportPort when basePort is zero.
func NewPortRangeTransport(basePort uint16) *PortRangeTransport {
	if basePort == 0 {
		basePort = DefaultTransportPort
	}
	return &PortRangeTransport{BasePort: basePort}
}

func (t *PortRangeTransport) Expand(addr netip.Addr, maxPorts int) ([]netip.AddrPort, error) {
	if maxPorts < 1 {
		return nil, fmt.Errorf("maxPorts must be positive, got %d", maxPorts)
	}
	if !addr.IsValid() {
		return nil, fmt.Errorf("invalid address")
	}
	endpoints := make([]netip.AddrPort, 0, maxPorts)
	for i := 0; i < maxPorts; i++ {
		port := uint32(t.BasePort) + uint32(i)
		if port > 65535 {
			break
		}
		endpoints = append(endpoints, netip.AddrPortFrom(addr, uint16(port)))
	}
	return endpoints, nil
}
