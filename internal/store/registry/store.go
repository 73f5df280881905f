// Package registry implements the Registry Store (C3): the durable
// relational repository for ServiceModule and ConfigSchema rows.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("行不存在")

// Store is the transactional repository C6 and C7 depend on. RegisterModule
// and the MarkSchemaSynced/MarkSchemaFailed transitions run in an explicit
// transaction. SaveSchema, UpdateHeartbeat, MarkUnhealthy and
// UnregisterModule each issue a single statement against the pool without
// an explicit transaction. Reads run against the pool directly.
type Store interface {
	// RegisterModule upserts the ConfigSchema (if jsonSchema is non-empty)
	// and the ServiceModule within one transaction, returning the
	// resulting row. Idempotent on (serviceName, host, port).
	RegisterModule(ctx context.Context, serviceName, host string, port int, version string, metadata map[string]any, jsonSchema string) (*model.ServiceModule, error)

	// SaveSchema inserts a ConfigSchema row and reports its id; it does
	// not itself talk to the artifact registry (callers attempt the
	// mirror and then call MarkSchemaSynced/MarkSchemaFailed).
	SaveSchema(ctx context.Context, serviceName, version, jsonSchema, createdBy string) (*model.ConfigSchema, error)

	// MarkSchemaSynced/MarkSchemaFailed transition a schema's syncStatus
	// after an artifact-registry mirror attempt.
	MarkSchemaSynced(ctx context.Context, schemaID string, artifactID string, artifactGlobalID int64) error
	MarkSchemaFailed(ctx context.Context, schemaID string, syncError string) error

	UpdateHeartbeat(ctx context.Context, serviceID string) error
	MarkUnhealthy(ctx context.Context, serviceID string) error
	UnregisterModule(ctx context.Context, serviceID string) (bool, error)

	GetActiveServices(ctx context.Context) ([]*model.ServiceModule, error)
	GetAllServices(ctx context.Context) ([]*model.ServiceModule, error)
	FindStaleServices(ctx context.Context, before time.Time) ([]*model.ServiceModule, error)

	FindByID(ctx context.Context, serviceID string) (*model.ServiceModule, error)
	FindSchemaByID(ctx context.Context, schemaID string) (*model.ConfigSchema, error)
	FindLatestSchemaByServiceName(ctx context.Context, serviceName string) (*model.ConfigSchema, error)
	FindSchemasNeedingSync(ctx context.Context) ([]*model.ConfigSchema, error)

	CountServicesByStatus(ctx context.Context) (map[model.ServiceStatus]int, error)

	// Ping is used by C9 readiness; it runs SELECT 1 against the pool.
	Ping(ctx context.Context) error

	Close() error
}
