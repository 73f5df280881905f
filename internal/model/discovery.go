package model

import "time"

// HealthyNode is C1's view of one passing-health catalog entry
type HealthyNode struct {
	ServiceID string
	Name      string
	Address   string
	Port      int
	Tags      []string
	Meta      map[string]string
}

// ServiceDetails is one entry of ListServices/GetService
type ServiceDetails struct {
	ServiceID string            `json:"serviceId"`
	Name      string            `json:"name"`
	Host      string            `json:"host"`
	Port      int               `json:"port"`
	Version   string            `json:"version,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ModuleDetails is one entry of ListModules/GetModule; a superset of
// ServiceDetails carrying the capability tags stripped of services.
type ModuleDetails struct {
	ServiceDetails
	Capabilities []string `json:"capabilities,omitempty"`
	InputFormat  string   `json:"inputFormat,omitempty"`
	OutputFormat string   `json:"outputFormat,omitempty"`
}

// ServiceListResponse wraps ListServices
type ServiceListResponse struct {
	Services   []ServiceDetails `json:"services"`
	AsOf       time.Time        `json:"asOf"`
	TotalCount int              `json:"totalCount"`
}

// ModuleListResponse wraps ListModules
type ModuleListResponse struct {
	Modules    []ModuleDetails `json:"modules"`
	AsOf       time.Time       `json:"asOf"`
	TotalCount int             `json:"totalCount"`
}

// ServiceResolveRequest is ResolveService's input
type ServiceResolveRequest struct {
	ServiceName          string   `json:"serviceName"`
	PreferLocal          bool     `json:"preferLocal"`
	RequiredTags         []string `json:"requiredTags,omitempty"`
	RequiredCapabilities []string `json:"requiredCapabilities,omitempty"`
}

// ServiceResolveResponse is ResolveService's output
type ServiceResolveResponse struct {
	Found            bool              `json:"found"`
	Host             string            `json:"host,omitempty"`
	Port             int               `json:"port,omitempty"`
	ServiceID        string            `json:"serviceId,omitempty"`
	Version          string            `json:"version,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Capabilities     []string          `json:"capabilities,omitempty"`
	TotalInstances   int               `json:"totalInstances"`
	HealthyInstances int               `json:"healthyInstances"`
	SelectionReason  string            `json:"selectionReason,omitempty"`
	ResolvedAt       time.Time         `json:"resolvedAt"`
}

// ModuleSchemaResponse is GetModuleSchema's output
type ModuleSchemaResponse struct {
	ModuleName    string            `json:"moduleName"`
	SchemaJSON    string            `json:"schemaJson"`
	SchemaVersion string            `json:"schemaVersion"`
	ArtifactID    string            `json:"artifactId,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
