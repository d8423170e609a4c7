// Package discovery resolves cluster member candidates from a cloud
// compute inventory. It is invoked by a bootstrap loop on each discovery
// cycle and returns the current candidate list, refreshed on a TTL policy
// so the cloud API is not hammered.
package discovery

import (
	"net/netip"

	"github.com/skyfold/cloudseed/pkg/version"
)

// PowerState is the lifecycle state of a compute instance.
type PowerState string

const (
	PowerStarting     PowerState = "starting"
	PowerRunning      PowerState = "running"
	PowerStopping     PowerState = "stopping"
	PowerStopped      PowerState = "stopped"
	PowerDeallocating PowerState = "deallocating"
	PowerDeallocated  PowerState = "deallocated"
	PowerUnknown      PowerState = "unknown"
)

// AddressFamily selects which instance address the resolver uses.
// There is no "both" mode: exactly one family is chosen per configuration.
type AddressFamily string

const (
	AddressPrivate AddressFamily = "private"
	AddressPublic  AddressFamily = "public"
)

// Instance is an immutable snapshot of a cloud compute instance as
// reported by the inventory backend. Addresses may be empty when the
// provider has not assigned one.
type Instance struct {
	ID         string
	PowerState PowerState
	Region     string
	GroupName  string
	PrivateIP  string
	PublicIP   string
}

// CandidateIDPrefix is prepended to the instance identifier to form the
// synthetic candidate identifier.
const CandidateIDPrefix = "#cloud-"

// Candidate is a cluster-membership suggestion derived from an Instance.
type Candidate struct {
	ID         string
	Endpoints  []netip.AddrPort
	Attributes map[string]string
	Roles      []string
	MinVersion string
}

func newCandidate(inst Instance, endpoints []netip.AddrPort) Candidate {
	return Candidate{
		ID:         CandidateIDPrefix + inst.ID,
		Endpoints:  endpoints,
		Attributes: map[string]string{},
		Roles:      []string{},
		MinVersion: version.MinimumCompatibility,
	}
}

// OmitReason explains why an instance produced no candidate in a cycle.
type OmitReason string

const (
	// OmitNone marks an instance that produced at least one candidate.
	OmitNone OmitReason = ""

	OmitPowerState       OmitReason = "power-state"
	OmitRegionMismatch   OmitReason = "region-mismatch"
	OmitGroupMismatch    OmitReason = "group-mismatch"
	OmitHostMismatch     OmitReason = "host-mismatch"
	OmitNoAddress        OmitReason = "no-address"
	OmitBadAddress       OmitReason = "bad-address"
	OmitTransportFailure OmitReason = "transport-failure"
)

// Outcome records what a single instance contributed to a resolution
// cycle: either one or more candidates, or an omission reason. Keeping
// the reason in the data model (rather than only in logs) makes per
// instance behavior assertable.
type Outcome struct {
	Instance   Instance
	Candidates []Candidate
	Omitted    OmitReason
}

// Report is the detailed result of one resolution cycle.
type Report struct {
	// Candidates is the flat, ordered candidate list.
	Candidates []Candidate
	// Outcomes is the per-instance breakdown. Nil on a cache hit, since
	// no inventory was inspected.
	Outcomes []Outcome
	// FromCache is true when the cycle was answered from CacheState.
	FromCache bool
}
