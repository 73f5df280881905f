// Package consul wraps the Consul agent HTTP API behind the narrow,
// never-raising interface the registration orchestrator expects (C1).
package consul

import (
	"context"
	"fmt"
	"strings"

	capi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

const capabilityTagPrefix = "capability:"
const moduleTag = "module"

// Client is a stateless, thread-safe wrapper over the Consul agent API.
// Every method logs its own failures and never returns to the caller
// anything the orchestrator needs to interpret beyond a boolean or a
// zero value.
type Client struct {
	agent  *capi.Client
	logger config.Logger
}

// NewClient builds a Client from configuration. Failures to construct the
// underlying transport are returned once at startup, not on every call.
func NewClient(cfg *config.Config, logger config.Logger) (*Client, error) {
	apiCfg := capi.DefaultConfig()
	apiCfg.Address = fmt.Sprintf("%s:%d", cfg.Consul.Host, cfg.Consul.Port)
	apiCfg.Scheme = cfg.Consul.Scheme
	if cfg.Consul.Token != "" {
		apiCfg.Token = cfg.Consul.Token
	}

	agent, err := capi.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("构造consul客户端失败: %w", err)
	}

	return &Client{agent: agent, logger: logger}, nil
}

// Register registers a service instance and configures a gRPC health check
// against host:port. capabilities are translated into synthetic
// "capability:<name>" tags; version is injected into the meta map.
func (c *Client) Register(ctx context.Context, serviceID, serviceName, host string, port int, tags []string, metadata map[string]string, capabilities []string, version string) bool {
	meta := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		meta[k] = v
	}
	if version != "" {
		meta["version"] = version
	}

	allTags := make([]string, 0, len(tags)+len(capabilities))
	allTags = append(allTags, tags...)
	for _, cap := range capabilities {
		allTags = append(allTags, capabilityTagPrefix+cap)
	}

	reg := &capi.AgentServiceRegistration{
		ID:      serviceID,
		Name:    serviceName,
		Address: host,
		Port:    port,
		Tags:    allTags,
		Meta:    meta,
		Check: &capi.AgentServiceCheck{
			GRPC:                           fmt.Sprintf("%s:%d", host, port),
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}

	if err := c.agent.Agent().ServiceRegister(reg); err != nil {
		c.logger.Error("consul服务注册失败", zap.String("serviceId", serviceID), zap.Error(err))
		return false
	}
	return true
}

// Deregister removes a service instance from the agent's catalog.
func (c *Client) Deregister(ctx context.Context, serviceID string) bool {
	if err := c.agent.Agent().ServiceDeregister(serviceID); err != nil {
		c.logger.Error("consul服务注销失败", zap.String("serviceId", serviceID), zap.Error(err))
		return false
	}
	return true
}

// HealthyNodes returns the passing-health catalog entries for serviceName.
func (c *Client) HealthyNodes(ctx context.Context, serviceName string) []model.HealthyNode {
	entries, _, err := c.agent.Health().Service(serviceName, "", true, (&capi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		c.logger.Error("查询健康节点失败", zap.String("serviceName", serviceName), zap.Error(err))
		return nil
	}

	nodes := make([]model.HealthyNode, 0, len(entries))
	for _, e := range entries {
		nodes = append(nodes, model.HealthyNode{
			ServiceID: e.Service.ID,
			Name:      e.Service.Service,
			Address:   e.Service.Address,
			Port:      e.Service.Port,
			Tags:      e.Service.Tags,
			Meta:      e.Service.Meta,
		})
	}
	return nodes
}

// AgentInfo is a reachability probe used by C9 readiness.
func (c *Client) AgentInfo(ctx context.Context) bool {
	_, err := c.agent.Agent().Self()
	if err != nil {
		c.logger.Error("consul agent自检失败", zap.Error(err))
		return false
	}
	return true
}

// CatalogServices returns the set of service names known to the agent.
func (c *Client) CatalogServices(ctx context.Context) []string {
	services, _, err := c.agent.Catalog().Services((&capi.QueryOptions{}).WithContext(ctx))
	if err != nil {
		c.logger.Error("查询服务目录失败", zap.Error(err))
		return nil
	}
	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	return names
}

// IsModuleTagged reports whether a node's tags mark it as a module rather
// than a plain service.
func IsModuleTagged(tags []string) bool {
	for _, t := range tags {
		if t == moduleTag {
			return true
		}
	}
	return false
}

// SplitCapabilities separates capability:-prefixed tags from plain tags.
func SplitCapabilities(tags []string) (plain []string, capabilities []string) {
	for _, t := range tags {
		if strings.HasPrefix(t, capabilityTagPrefix) {
			capabilities = append(capabilities, strings.TrimPrefix(t, capabilityTagPrefix))
		} else {
			plain = append(plain, t)
		}
	}
	return plain, capabilities
}
