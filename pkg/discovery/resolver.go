package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Inventory supplies the current instance inventory for a group scope.
// Implementations own their transport and timeout policy; the resolver
// propagates their errors untouched.
type Inventory interface {
	VirtualMachines(ctx context.Context, groupScope string) ([]Instance, error)
}

// We only derive one port per discovered address. Pinging a hundred ports
// per host buys nothing for cluster discovery.
const maxPortsPerAddress = 1

// Resolver turns the cloud inventory into a deduplicated, filtered,
// addressable candidate list, answered from cache inside the configured
// refresh interval. Safe for concurrent use: the cache state is guarded
// and the list is only replaced atomically at the end of a refetch cycle.
type Resolver struct {
	inventory Inventory
	transport TransportResolver
	config    ConfigProvider
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     clock.Clock

	mu          sync.Mutex
	lastRefresh time.Time
	cached      []Candidate
}

// Option defines a functional configuration override.
type Option func(*Resolver)

// WithLogger sets the diagnostics logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithTransport sets the transport endpoint expander.
func WithTransport(t TransportResolver) Option {
	return func(r *Resolver) {
		r.transport = t
	}
}

// WithClock sets the clock used by the cache gate. Tests install a mock.
func WithClock(c clock.Clock) Option {
	return func(r *Resolver) {
		r.clock = c
	}
}

// NewResolver builds a resolver over the given inventory. The config
// provider is re-read on every cycle; its initial value is validated here
// so malformed filter patterns fail at construction, not mid-flight.
func NewResolver(inv Inventory, cfg ConfigProvider, opts ...Option) (*Resolver, error) {
	if inv == nil {
		return nil, fmt.Errorf("inventory is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config provider is required")
	}

	r := &Resolver{
		inventory: inv,
		config:    cfg,
		transport: NewPortRangeTransport(0),
		logger:    slog.Default(),
		tracer:    otel.Tracer("cloudseed/discovery"),
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := cfg().Validate(); err != nil {
		return nil, fmt.Errorf("invalid resolver config: %w", err)
	}
	return r, nil
}

// Resolve runs one discovery cycle and returns the ordered candidate
// list. Never returns nil on success; fetch failures propagate and leave
// the previously cached list in place.
func (r *Resolver) Resolve(ctx context.Context) ([]Candidate, error) {
	report, err := r.ResolveReport(ctx)
	if err != nil {
		return nil, err
	}
	return report.Candidates, nil
}

// ResolveReport is Resolve with the per-instance outcome breakdown.
func (r *Resolver) ResolveReport(ctx context.Context) (*Report, error) {
	// Config is evaluated here, not at construction, so live updates of
	// the refresh interval and filters apply to this cycle.
	cfg := r.config()

	ctx, span := r.tracer.Start(ctx, "discovery.resolve")
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	if cfg.RefreshInterval != 0 {
		if r.cached != nil && (cfg.RefreshInterval < 0 || now.Sub(r.lastRefresh) < cfg.RefreshInterval) {
			r.logger.Debug("using cache to retrieve candidate list", "candidates", len(r.cached))
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &Report{Candidates: r.cached, FromCache: true}, nil
		}
		// Stamped before the fetch, not after: a backend that keeps
		// failing is retried at most once per TTL window.
		r.lastRefresh = now
	}

	r.logger.Debug("start building candidate list from cloud inventory", "group", cfg.GroupName)

	instances, err := r.inventory.VirtualMachines(ctx, cfg.GroupName)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch inventory: %w", err)
	}

	report := &Report{
		Candidates: []Candidate{},
		Outcomes:   make([]Outcome, 0, len(instances)),
	}
	for _, inst := range instances {
		outcome, err := r.resolveInstance(inst, cfg)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		report.Outcomes = append(report.Outcomes, outcome)
		report.Candidates = append(report.Candidates, outcome.Candidates...)
	}

	// Replace the cached list only now, as one atomic step. A failed
	// cycle above leaves the previous list untouched.
	r.cached = report.Candidates

	span.SetAttributes(
		attribute.Bool("cache.hit", false),
		attribute.Int("discovery.candidates", len(report.Candidates)),
	)
	r.logger.Debug("candidate list built", "candidates", len(report.Candidates))
	return report, nil
}

func (r *Resolver) resolveInstance(inst Instance, cfg Config) (Outcome, error) {
	out := Outcome{Instance: inst}

	reason, err := admit(inst, cfg)
	if err != nil {
		return out, err
	}
	if reason != OmitNone {
		r.logger.Debug("skipping instance", "instance", inst.ID, "reason", string(reason), "state", string(inst.PowerState))
		out.Omitted = reason
		return out, nil
	}

	var text string
	switch cfg.AddressFamily {
	case AddressPrivate:
		text = inst.PrivateIP
	case AddressPublic:
		text = inst.PublicIP
	}
	if text == "" {
		r.logger.Debug("no address of selected family, ignoring", "instance", inst.ID, "family", string(cfg.AddressFamily))
		out.Omitted = OmitNoAddress
		return out, nil
	}

	addr, err := netip.ParseAddr(text)
	if err != nil {
		r.logger.Warn("cannot parse instance address, skipping", "instance", inst.ID, "address", text, "error", err)
		out.Omitted = OmitBadAddress
		return out, nil
	}

	endpoints, err := r.transport.Expand(addr, maxPortsPerAddress)
	if err != nil || len(endpoints) == 0 {
		r.logger.Warn("cannot expand address to a transport endpoint, skipping", "instance", inst.ID, "address", addr.String(), "error", err)
		out.Omitted = OmitTransportFailure
		return out, nil
	}

	// One candidate per derived endpoint, in endpoint order.
	for _, ep := range endpoints {
		r.logger.Debug("adding candidate", "instance", inst.ID, "endpoint", ep.String())
		out.Candidates = append(out.Candidates, newCandidate(inst, []netip.AddrPort{ep}))
	}
	return out, nil
}
