// Package schema implements Schema Retrieval (C7): the layered lookup
// store -> artifact registry -> direct module RPC -> synthesized default.
package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
	"github.com/io-pipeline/platform-registration-service/internal/store/registry"
)

// Store is the slice of C3 this component depends on.
type Store interface {
	FindSchemaByID(ctx context.Context, schemaID string) (*model.ConfigSchema, error)
	FindLatestSchemaByServiceName(ctx context.Context, serviceName string) (*model.ConfigSchema, error)
}

// ArtifactClient is the slice of C2 this component depends on.
type ArtifactClient interface {
	GetSchema(ctx context.Context, serviceName, version string) (string, error)
	GetArtifactMetadata(ctx context.Context, serviceName string) (map[string]any, error)
}

// StubFactory opens a model.ModuleStub for a given module name. ModuleStub
// is declared once, in internal/model, and shared with
// internal/orchestrator's StubFactory.
type StubFactory interface {
	OpenStub(ctx context.Context, moduleName string) (model.ModuleStub, error)
}

// Retriever implements getModuleSchema.
type Retriever struct {
	store    Store
	artifact ArtifactClient
	stubs    StubFactory
	logger   config.Logger
}

// NewRetriever builds a Retriever.
func NewRetriever(store Store, artifact ArtifactClient, stubs StubFactory, logger config.Logger) *Retriever {
	return &Retriever{store: store, artifact: artifact, stubs: stubs, logger: logger}
}

// ErrSchemaNotFound is returned when every layer of the lookup is exhausted.
var ErrSchemaNotFound = errors.New("module schema not found")

// GetModuleSchema tries, in order: the relational store, the artifact
// registry, then a direct call to the module itself (falling back to a
// synthesized default if the module reports an empty schema).
func (r *Retriever) GetModuleSchema(ctx context.Context, moduleName, version string) (*model.ModuleSchemaResponse, error) {
	if resp := r.fromStore(ctx, moduleName, version); resp != nil {
		return resp, nil
	}

	if resp := r.fromArtifactRegistry(ctx, moduleName, version); resp != nil {
		return resp, nil
	}

	resp, err := r.fromModule(ctx, moduleName)
	if err != nil {
		r.logger.Error("模块直连回退失败", zap.String("moduleName", moduleName), zap.Error(err))
		return nil, fmt.Errorf("%w: %s", ErrSchemaNotFound, moduleName)
	}
	return resp, nil
}

func (r *Retriever) fromStore(ctx context.Context, moduleName, version string) *model.ModuleSchemaResponse {
	var row *model.ConfigSchema
	var err error
	if version != "" {
		row, err = r.store.FindSchemaByID(ctx, model.SchemaID(moduleName, version))
	} else {
		row, err = r.store.FindLatestSchemaByServiceName(ctx, moduleName)
	}
	if err != nil {
		if !errors.Is(err, registry.ErrNotFound) {
			r.logger.Error("查询模式失败", zap.String("moduleName", moduleName), zap.Error(err))
		}
		return nil
	}

	return &model.ModuleSchemaResponse{
		ModuleName:    moduleName,
		SchemaJSON:    row.JSONSchema,
		SchemaVersion: row.SchemaVersion,
		ArtifactID:    row.ArtifactID,
		Metadata:      map[string]string{"sync_status": string(row.SyncStatus)},
		UpdatedAt:     row.CreatedAt,
	}
}

func (r *Retriever) fromArtifactRegistry(ctx context.Context, moduleName, version string) *model.ModuleSchemaResponse {
	lookupVersion := version
	if lookupVersion == "" {
		lookupVersion = "latest"
	}

	content, err := r.artifact.GetSchema(ctx, moduleName, lookupVersion)
	if err != nil || content == "" {
		return nil
	}

	artifactMeta, _ := r.artifact.GetArtifactMetadata(ctx, moduleName)
	resp := &model.ModuleSchemaResponse{
		ModuleName:    moduleName,
		SchemaJSON:    content,
		SchemaVersion: lookupVersion,
		ArtifactID:    model.ArtifactID(moduleName, version),
		UpdatedAt:     time.Now(),
	}
	if artifactMeta != nil {
		resp.Metadata = map[string]string{"source": "artifact-registry"}
	}
	return resp
}

func (r *Retriever) fromModule(ctx context.Context, moduleName string) (*model.ModuleSchemaResponse, error) {
	stub, err := r.stubs.OpenStub(ctx, moduleName)
	if err != nil {
		return nil, err
	}
	defer stub.Close()

	meta, err := stub.GetServiceRegistration(ctx)
	if err != nil {
		return nil, err
	}

	schemaJSON := meta.JSONConfigSchema
	if schemaJSON == "" {
		schemaJSON = model.SynthesizeDefaultSchema(moduleName)
	}

	return &model.ModuleSchemaResponse{
		ModuleName:    moduleName,
		SchemaJSON:    schemaJSON,
		SchemaVersion: "1",
		Metadata:      map[string]string{"source": "module-direct"},
		UpdatedAt:     time.Now(),
	}, nil
}
