// Package discovery implements the Discovery Surface (C8): listing,
// lookup, filtered resolution, and change-watch streams built entirely on
// top of C1.
package discovery

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/consul"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// ErrNotFound is returned by the by-name/by-id lookups when nothing matches.
var ErrNotFound = errors.New("未找到匹配的服务")

// ErrInvalidArgument is returned when a serviceId cannot be parsed.
var ErrInvalidArgument = errors.New("参数无效")

// DiscoveryClient is the slice of C1 the surface depends on.
type DiscoveryClient interface {
	HealthyNodes(ctx context.Context, serviceName string) []model.HealthyNode
	CatalogServices(ctx context.Context) []string
}

// Surface implements listing/lookup/resolve/watch over a DiscoveryClient.
type Surface struct {
	client DiscoveryClient
	logger config.Logger
}

// NewSurface builds a Surface.
func NewSurface(client DiscoveryClient, logger config.Logger) *Surface {
	return &Surface{client: client, logger: logger}
}

func toServiceDetails(n model.HealthyNode) model.ServiceDetails {
	tags, _ := consul.SplitCapabilities(n.Tags)
	return model.ServiceDetails{
		ServiceID: n.ServiceID,
		Name:      n.Name,
		Host:      n.Address,
		Port:      n.Port,
		Version:   n.Meta["version"],
		Tags:      tags,
		Metadata:  n.Meta,
	}
}

func toModuleDetails(n model.HealthyNode) model.ModuleDetails {
	tags, caps := consul.SplitCapabilities(n.Tags)
	return model.ModuleDetails{
		ServiceDetails: model.ServiceDetails{
			ServiceID: n.ServiceID,
			Name:      n.Name,
			Host:      n.Address,
			Port:      n.Port,
			Version:   n.Meta["version"],
			Tags:      tags,
			Metadata:  n.Meta,
		},
		Capabilities: caps,
		InputFormat:  n.Meta["input-format"],
		OutputFormat: n.Meta["output-format"],
	}
}

// fanOutHealthyNodes queries healthyNodes for every catalog name in
// parallel; a per-name failure degrades to an empty slice for that name
// rather than failing the whole call.
func (s *Surface) fanOutHealthyNodes(ctx context.Context) map[string][]model.HealthyNode {
	names := s.client.CatalogServices(ctx)
	results := make(map[string][]model.HealthyNode, len(names))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			nodes := s.client.HealthyNodes(ctx, name)
			mu.Lock()
			results[name] = nodes
			mu.Unlock()
		}(name)
	}
	wg.Wait()
	return results
}

// ListServices enumerates catalog entries that are not tagged "module".
func (s *Surface) ListServices(ctx context.Context) model.ServiceListResponse {
	byName := s.fanOutHealthyNodes(ctx)

	var services []model.ServiceDetails
	for _, nodes := range byName {
		for _, n := range nodes {
			if consul.IsModuleTagged(n.Tags) {
				continue
			}
			services = append(services, toServiceDetails(n))
		}
	}

	return model.ServiceListResponse{Services: services, AsOf: time.Now(), TotalCount: len(services)}
}

// ListModules enumerates catalog entries tagged "module".
func (s *Surface) ListModules(ctx context.Context) model.ModuleListResponse {
	byName := s.fanOutHealthyNodes(ctx)

	var modules []model.ModuleDetails
	for _, nodes := range byName {
		for _, n := range nodes {
			if !consul.IsModuleTagged(n.Tags) {
				continue
			}
			modules = append(modules, toModuleDetails(n))
		}
	}

	return model.ModuleListResponse{Modules: modules, AsOf: time.Now(), TotalCount: len(modules)}
}

// GetServiceByName returns the first matching entry for name.
func (s *Surface) GetServiceByName(ctx context.Context, name string) (*model.ServiceDetails, error) {
	nodes := s.client.HealthyNodes(ctx, name)
	for _, n := range nodes {
		if !consul.IsModuleTagged(n.Tags) {
			d := toServiceDetails(n)
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

// GetModuleByName returns the first matching module entry for name.
func (s *Surface) GetModuleByName(ctx context.Context, name string) (*model.ModuleDetails, error) {
	nodes := s.client.HealthyNodes(ctx, name)
	for _, n := range nodes {
		if consul.IsModuleTagged(n.Tags) {
			d := toModuleDetails(n)
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

// GetServiceByID extracts the serviceName from id and matches by exact id.
func (s *Surface) GetServiceByID(ctx context.Context, id string) (*model.ServiceDetails, error) {
	name, ok := model.SplitServiceName(id)
	if !ok {
		return nil, ErrInvalidArgument
	}
	nodes := s.client.HealthyNodes(ctx, name)
	for _, n := range nodes {
		if n.ServiceID == id {
			d := toServiceDetails(n)
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

// GetModuleByID extracts the serviceName from id and matches by exact id.
func (s *Surface) GetModuleByID(ctx context.Context, id string) (*model.ModuleDetails, error) {
	name, ok := model.SplitServiceName(id)
	if !ok {
		return nil, ErrInvalidArgument
	}
	nodes := s.client.HealthyNodes(ctx, name)
	for _, n := range nodes {
		if n.ServiceID == id {
			d := toModuleDetails(n)
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func containsAll(haystack, needles []string) bool {
	set := make(map[string]struct{}, len(haystack))
	for _, h := range haystack {
		set[h] = struct{}{}
	}
	for _, n := range needles {
		if _, ok := set[n]; !ok {
			return false
		}
	}
	return true
}

// ResolveService selects one healthy instance per the filtering and
// preference policy of §4.8.
func (s *Surface) ResolveService(ctx context.Context, req model.ServiceResolveRequest) model.ServiceResolveResponse {
	nodes := s.client.HealthyNodes(ctx, req.ServiceName)
	resp := model.ServiceResolveResponse{
		ResolvedAt:       time.Now(),
		TotalInstances:   len(nodes),
		HealthyInstances: len(nodes),
	}
	if len(nodes) == 0 {
		resp.SelectionReason = "No healthy instances found"
		return resp
	}

	var candidates []model.HealthyNode
	for _, n := range nodes {
		tags, caps := consul.SplitCapabilities(n.Tags)
		if !containsAll(tags, req.RequiredTags) {
			continue
		}
		if !containsAll(caps, req.RequiredCapabilities) {
			continue
		}
		candidates = append(candidates, n)
	}
	if len(candidates) == 0 {
		resp.SelectionReason = "No instance satisfies the required tags/capabilities"
		return resp
	}

	selected := candidates[0]
	reason := "Selected first available healthy instance"
	if req.PreferLocal {
		for _, c := range candidates {
			if c.Address == "localhost" || c.Address == "127.0.0.1" {
				selected = c
				reason = "Selected local instance as requested"
				break
			}
		}
	}

	tags, caps := consul.SplitCapabilities(selected.Tags)
	resp.Found = true
	resp.Host = selected.Address
	resp.Port = selected.Port
	resp.ServiceID = selected.ServiceID
	resp.Version = selected.Meta["version"]
	resp.Metadata = selected.Meta
	resp.Tags = tags
	resp.Capabilities = caps
	resp.SelectionReason = reason
	return resp
}

const watchInterval = 2 * time.Second

// WatchServices emits an initial snapshot immediately, then re-snapshots
// every 2s until ctx is cancelled. Upstream errors never terminate the
// stream: a failed fan-out degrades to an empty snapshot.
func (s *Surface) WatchServices(ctx context.Context) <-chan model.ServiceListResponse {
	out := make(chan model.ServiceListResponse)
	go func() {
		defer close(out)

		send := func(v model.ServiceListResponse) bool {
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(s.ListServices(ctx)) {
			return
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !send(s.ListServices(ctx)) {
					return
				}
			}
		}
	}()
	return out
}

// WatchModules is WatchServices' module-surface counterpart.
func (s *Surface) WatchModules(ctx context.Context) <-chan model.ModuleListResponse {
	out := make(chan model.ModuleListResponse)
	go func() {
		defer close(out)

		send := func(v model.ModuleListResponse) bool {
			select {
			case out <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(s.ListModules(ctx)) {
			return
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !send(s.ListModules(ctx)) {
					return
				}
			}
		}
	}()
	return out
}
