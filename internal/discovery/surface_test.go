package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

type fakeDiscoveryClient struct {
	catalog map[string][]model.HealthyNode
}

func (f *fakeDiscoveryClient) HealthyNodes(ctx context.Context, serviceName string) []model.HealthyNode {
	return f.catalog[serviceName]
}

func (f *fakeDiscoveryClient) CatalogServices(ctx context.Context) []string {
	names := make([]string, 0, len(f.catalog))
	for name := range f.catalog {
		names = append(names, name)
	}
	return names
}

func newTestSurface(t *testing.T, catalog map[string][]model.HealthyNode) *Surface {
	t.Helper()
	logger, err := config.NewLogger(true)
	require.NoError(t, err)
	return NewSurface(&fakeDiscoveryClient{catalog: catalog}, logger)
}

func TestResolveServicePreferLocal(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{
		"orders": {
			{ServiceID: "orders-10-0-0-4-9090", Address: "10.0.0.4"},
			{ServiceID: "orders-127-0-0-1-9090", Address: "127.0.0.1"},
		},
	})

	resp := s.ResolveService(context.Background(), model.ServiceResolveRequest{ServiceName: "orders", PreferLocal: true})

	assert.True(t, resp.Found)
	assert.Equal(t, "127.0.0.1", resp.Host)
	assert.Equal(t, "Selected local instance as requested", resp.SelectionReason)
	assert.Equal(t, 2, resp.HealthyInstances)
}

func TestResolveServiceFiltersByTagsAndCapabilities(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{
		"orders": {
			{ServiceID: "a", Tags: []string{"api"}},
			{ServiceID: "b", Tags: []string{"api", "capability:search"}},
		},
	})

	resp := s.ResolveService(context.Background(), model.ServiceResolveRequest{
		ServiceName:          "orders",
		RequiredCapabilities: []string{"search"},
	})

	assert.True(t, resp.Found)
	assert.Equal(t, "b", resp.ServiceID)
}

func TestResolveServiceNoHealthyInstances(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{})
	resp := s.ResolveService(context.Background(), model.ServiceResolveRequest{ServiceName: "ghost"})

	assert.False(t, resp.Found)
	assert.Equal(t, "No healthy instances found", resp.SelectionReason)
}

func TestGetServiceByIDMalformed(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{})
	_, err := s.GetServiceByID(context.Background(), "bad-id")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListServicesExcludesModules(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{
		"orders":   {{ServiceID: "orders-1", Name: "orders", Tags: []string{"api"}}},
		"splitter": {{ServiceID: "splitter-1", Name: "splitter", Tags: []string{"module"}}},
	})

	resp := s.ListServices(context.Background())
	require.Len(t, resp.Services, 1)
	assert.Equal(t, "orders", resp.Services[0].Name)
}

func TestWatchServicesDeliversInitialSnapshotImmediately(t *testing.T) {
	s := newTestSurface(t, map[string][]model.HealthyNode{
		"orders": {{ServiceID: "orders-1", Name: "orders"}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.WatchServices(ctx)
	first := <-ch
	assert.Equal(t, 1, first.TotalCount)
}
