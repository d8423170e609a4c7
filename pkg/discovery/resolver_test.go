package discovery

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInventory struct {
	mu        sync.Mutex
	calls     int
	lastScope string
	instances []Instance
	err       error
}

func (f *fakeInventory) VirtualMachines(ctx context.Context, groupScope string) ([]Instance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastScope = groupScope
	if f.err != nil {
		return nil, f.err
	}
	return f.instances, nil
}

func (f *fakeInventory) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type failingTransport struct{}

func (failingTransport) Expand(addr netip.Addr, maxPorts int) ([]netip.AddrPort, error) {
	return nil, fmt.Errorf("no transport for %s", addr)
}

func runningInstance(id, privateIP string) Instance {
	return Instance{
		ID:         id,
		PowerState: PowerRunning,
		Region:     "us-east-1",
		GroupName:  "prod-east",
		PrivateIP:  privateIP,
		PublicIP:   "203.0.113.10",
	}
}

func newTestResolver(t *testing.T, inv Inventory, cfg Config, opts ...Option) (*Resolver, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	opts = append(opts, WithClock(mock))
	r, err := NewResolver(inv, StaticConfig(cfg), opts...)
	require.NoError(t, err)
	return r, mock
}

func TestResolveNoCachingAlwaysFetches(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate})

	ctx := context.Background()
	_, err := r.Resolve(ctx)
	require.NoError(t, err)
	_, err = r.Resolve(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, inv.callCount(), "refresh interval 0 must disable caching")
}

func TestResolveInfiniteCache(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, mock := newTestResolver(t, inv, Config{RefreshInterval: -1, AddressFamily: AddressPrivate})

	ctx := context.Background()
	first, err := r.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	for i := 0; i < 5; i++ {
		mock.Add(24 * time.Hour)
		again, err := r.Resolve(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, inv.callCount(), "negative refresh interval must cache forever")
}

func TestResolveTTLExpiry(t *testing.T) {
	const ttl = 10 * time.Second
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, mock := newTestResolver(t, inv, Config{RefreshInterval: ttl, AddressFamily: AddressPrivate})

	ctx := context.Background()
	_, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, inv.callCount())

	mock.Add(ttl / 2)
	report, err := r.ResolveReport(ctx)
	require.NoError(t, err)
	assert.True(t, report.FromCache)
	assert.Equal(t, 1, inv.callCount(), "call inside the TTL must hit the cache")

	mock.Add(2 * ttl)
	report, err = r.ResolveReport(ctx)
	require.NoError(t, err)
	assert.False(t, report.FromCache)
	assert.Equal(t, 2, inv.callCount(), "call past the TTL must refetch")
}

func TestResolveFetchFailureKeepsPreviousList(t *testing.T) {
	const ttl = 10 * time.Second
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, mock := newTestResolver(t, inv, Config{RefreshInterval: ttl, AddressFamily: AddressPrivate})

	ctx := context.Background()
	first, err := r.Resolve(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	inv.err = errors.New("throttled")
	mock.Add(2 * ttl)
	_, err = r.Resolve(ctx)
	require.Error(t, err, "fetch failures must surface to the caller")

	// The failed attempt stamped the refresh time, so the next call in
	// the same window serves the old list instead of retrying.
	mock.Add(ttl / 2)
	again, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Equal(t, 2, inv.callCount())
}

func TestResolveCandidateIdentifier(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate})

	candidates, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	assert.Equal(t, "#cloud-vm1", candidates[0].ID)
	assert.Equal(t, "10.0.0.1:9301", candidates[0].Endpoints[0].String())
	assert.NotNil(t, candidates[0].Attributes)
	assert.Empty(t, candidates[0].Attributes)
	assert.Empty(t, candidates[0].Roles)
	assert.NotEmpty(t, candidates[0].MinVersion)
}

func TestResolveNoFallbackAcrossFamilies(t *testing.T) {
	inst := Instance{
		ID:         "vm1",
		PowerState: PowerRunning,
		PublicIP:   "1.2.3.4",
	}
	inv := &fakeInventory{instances: []Instance{inst}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate})

	report, err := r.ResolveReport(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Candidates, "missing private address must not fall back to public")
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, OmitNoAddress, report.Outcomes[0].Omitted)
}

func TestResolveMalformedAddressSkipsInstanceOnly(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{
		runningInstance("bad", "not-an-ip"),
		runningInstance("good", "10.0.0.2"),
	}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate})

	report, err := r.ResolveReport(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Candidates, 1)
	assert.Equal(t, "#cloud-good", report.Candidates[0].ID)
	assert.Equal(t, OmitBadAddress, report.Outcomes[0].Omitted)
	assert.Equal(t, OmitNone, report.Outcomes[1].Omitted)
}

func TestResolveTransportFailureSkipsInstanceOnly(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate}, WithTransport(failingTransport{}))

	report, err := r.ResolveReport(context.Background())
	require.NoError(t, err, "transport failures are absorbed per instance")
	assert.Empty(t, report.Candidates)
	assert.Equal(t, OmitTransportFailure, report.Outcomes[0].Omitted)
}

func TestResolveOrderPreservedWithoutFilters(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{
		runningInstance("a", "10.0.0.1"),
		{ID: "skipped", PowerState: PowerStopped, PrivateIP: "10.0.0.2"},
		runningInstance("b", "10.0.0.3"),
		runningInstance("c", "10.0.0.4"),
	}}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPrivate})

	candidates, err := r.Resolve(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"#cloud-a", "#cloud-b", "#cloud-c"}, ids)
}

func TestResolveEmptyInventoryReturnsEmptyList(t *testing.T) {
	inv := &fakeInventory{}
	r, _ := newTestResolver(t, inv, Config{AddressFamily: AddressPublic})

	candidates, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, candidates, "resolve never returns a nil list")
	assert.Empty(t, candidates)
}

func TestResolveGroupScopePassedToInventory(t *testing.T) {
	inv := &fakeInventory{}
	r, _ := newTestResolver(t, inv, Config{GroupName: "prod-*", AddressFamily: AddressPrivate})

	_, err := r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod-*", inv.lastScope)
}

func TestResolveLiveConfigChange(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}

	var mu sync.Mutex
	cfg := Config{AddressFamily: AddressPrivate}
	provider := func() Config {
		mu.Lock()
		defer mu.Unlock()
		return cfg
	}

	mock := clock.NewMock()
	r, err := NewResolver(inv, provider, WithClock(mock))
	require.NoError(t, err)

	candidates, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Len(t, candidates, 1)

	mu.Lock()
	cfg.HostName = "other-*"
	mu.Unlock()

	candidates, err = r.Resolve(context.Background())
	require.NoError(t, err)
	assert.Empty(t, candidates, "config must be re-read on every cycle")
}

func TestResolveGlobAdmitsSeparatorsAndBrackets(t *testing.T) {
	instances := []Instance{
		runningInstance("a", "10.0.0.1"),
		runningInstance("b", "10.0.0.2"),
		runningInstance("c", "10.0.0.3"),
	}
	instances[0].GroupName = "prod/east"
	instances[1].GroupName = "prod-[canary]"
	instances[2].GroupName = "staging/east"
	inv := &fakeInventory{instances: instances}
	r, _ := newTestResolver(t, inv, Config{GroupName: "prod*", AddressFamily: AddressPrivate})

	candidates, err := r.Resolve(context.Background())
	require.NoError(t, err)

	ids := make([]string, 0, len(candidates))
	for _, c := range candidates {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"#cloud-a", "#cloud-b"}, ids,
		"'/' and '[' in group names are literal, only '*' and '?' are wildcards")
}

func TestNewResolverRejectsBadConfig(t *testing.T) {
	inv := &fakeInventory{}

	_, err := NewResolver(inv, StaticConfig(Config{AddressFamily: "both"}))
	assert.Error(t, err)

	_, err = NewResolver(nil, StaticConfig(Config{AddressFamily: AddressPrivate}))
	assert.Error(t, err)

	_, err = NewResolver(inv, nil)
	assert.Error(t, err)
}

func TestResolveConcurrentCallers(t *testing.T) {
	inv := &fakeInventory{instances: []Instance{runningInstance("vm1", "10.0.0.1")}}
	r, _ := newTestResolver(t, inv, Config{RefreshInterval: -1, AddressFamily: AddressPrivate})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			candidates, err := r.Resolve(context.Background())
			assert.NoError(t, err)
			assert.Len(t, candidates, 1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inv.callCount(), "cache state must serialize concurrent cycles")
}
