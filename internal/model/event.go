package model

import (
	"context"
	"time"
)

// ModuleStub is the narrow dynamic-RPC collaborator shared by the
// orchestrator and the schema retriever: both call a module directly to
// pull back its own GetServiceRegistration() metadata, then close the
// stub. Declaring it once here, rather than once per consuming package,
// keeps the stub factory adapter in cmd/server/main.go able to return a
// single concrete type that satisfies both packages' StubFactory.
type ModuleStub interface {
	GetServiceRegistration(ctx context.Context) (*ServiceRegistrationMetadata, error)
	Close() error
}

// RegistrationEventType 枚举注册流中出现的进度事件
type RegistrationEventType string

const (
	EventStarted                RegistrationEventType = "STARTED"
	EventValidated              RegistrationEventType = "VALIDATED"
	EventConsulRegistered       RegistrationEventType = "CONSUL_REGISTERED"
	EventHealthCheckConfigured  RegistrationEventType = "HEALTH_CHECK_CONFIGURED"
	EventConsulHealthy          RegistrationEventType = "CONSUL_HEALTHY"
	EventMetadataRetrieved      RegistrationEventType = "METADATA_RETRIEVED"
	EventSchemaValidated        RegistrationEventType = "SCHEMA_VALIDATED"
	EventDatabaseSaved          RegistrationEventType = "DATABASE_SAVED"
	EventApicurioRegistered     RegistrationEventType = "APICURIO_REGISTERED"
	EventCompleted              RegistrationEventType = "COMPLETED"
	EventFailed                 RegistrationEventType = "FAILED"
)

// RegistrationEvent 是流式发送给调用方的瞬态进度记录，从不持久化
type RegistrationEvent struct {
	EventType   RegistrationEventType `json:"eventType"`
	ServiceID   string                 `json:"serviceId,omitempty"`
	Message     string                 `json:"message"`
	ErrorDetail string                 `json:"errorDetail,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ServiceRegistrationRequest 是 RegisterService 的输入
type ServiceRegistrationRequest struct {
	ServiceName  string            `json:"serviceName"`
	Host         string            `json:"host"`
	Port         int               `json:"port"`
	Version      string            `json:"version"`
	Tags         []string          `json:"tags,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
}

// ServiceRegistrationMetadata 是模块在 GetServiceRegistration() 中回传的内嵌元数据
type ServiceRegistrationMetadata struct {
	JSONConfigSchema string   `json:"jsonConfigSchema,omitempty"`
	DisplayName      string   `json:"displayName,omitempty"`
	Description      string   `json:"description,omitempty"`
	Owner            string   `json:"owner,omitempty"`
	DocumentationURL string   `json:"documentationUrl,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Dependencies     []string `json:"dependencies,omitempty"`
}

// ModuleRegistrationRequest 是 RegisterModule 的输入
type ModuleRegistrationRequest struct {
	ModuleName               string                       `json:"moduleName"`
	Host                     string                       `json:"host"`
	Port                     int                          `json:"port"`
	Version                  string                       `json:"version"`
	Metadata                 map[string]string            `json:"metadata,omitempty"`
	ServiceRegistrationMeta  *ServiceRegistrationMetadata  `json:"serviceRegistrationMetadata,omitempty"`
}

// UnregisterRequest 是 UnregisterService/UnregisterModule 的输入
type UnregisterRequest struct {
	ServiceName string `json:"serviceName"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
}

// UnregisterResponse 是 UnregisterService/UnregisterModule 的输出
type UnregisterResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
