package schema

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
	"github.com/io-pipeline/platform-registration-service/internal/store/registry"
)

type fakeStore struct {
	byID     map[string]*model.ConfigSchema
	byLatest map[string]*model.ConfigSchema
}

func (f *fakeStore) FindSchemaByID(ctx context.Context, schemaID string) (*model.ConfigSchema, error) {
	if s, ok := f.byID[schemaID]; ok {
		return s, nil
	}
	return nil, registry.ErrNotFound
}

func (f *fakeStore) FindLatestSchemaByServiceName(ctx context.Context, name string) (*model.ConfigSchema, error) {
	if s, ok := f.byLatest[name]; ok {
		return s, nil
	}
	return nil, registry.ErrNotFound
}

type fakeArtifactClient struct {
	content string
	err     error
}

func (f *fakeArtifactClient) GetSchema(ctx context.Context, name, version string) (string, error) {
	return f.content, f.err
}

func (f *fakeArtifactClient) GetArtifactMetadata(ctx context.Context, name string) (map[string]any, error) {
	if f.content == "" {
		return nil, nil
	}
	return map[string]any{"artifactId": name}, nil
}

type fakeStub struct {
	meta *model.ServiceRegistrationMetadata
	err  error
}

func (f *fakeStub) GetServiceRegistration(ctx context.Context) (*model.ServiceRegistrationMetadata, error) {
	return f.meta, f.err
}
func (f *fakeStub) Close() error { return nil }

type fakeStubFactory struct {
	stub model.ModuleStub
	err  error
}

func (f *fakeStubFactory) OpenStub(ctx context.Context, moduleName string) (model.ModuleStub, error) {
	return f.stub, f.err
}

func testLogger(t *testing.T) config.Logger {
	t.Helper()
	logger, err := config.NewLogger(true)
	require.NoError(t, err)
	return logger
}

func TestGetModuleSchemaFromStore(t *testing.T) {
	store := &fakeStore{byLatest: map[string]*model.ConfigSchema{
		"splitter": {JSONSchema: `{"a":1}`, SchemaVersion: "1", SyncStatus: model.SyncStatusSynced, CreatedAt: time.Now()},
	}}
	r := NewRetriever(store, &fakeArtifactClient{}, &fakeStubFactory{}, testLogger(t))

	resp, err := r.GetModuleSchema(context.Background(), "splitter", "")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.SchemaJSON)
	assert.Equal(t, "SYNCED", resp.Metadata["sync_status"])
}

func TestGetModuleSchemaFallsThroughToArtifactRegistry(t *testing.T) {
	store := &fakeStore{}
	r := NewRetriever(store, &fakeArtifactClient{content: `{"b":2}`}, &fakeStubFactory{}, testLogger(t))

	resp, err := r.GetModuleSchema(context.Background(), "splitter", "")
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, resp.SchemaJSON)
}

func TestGetModuleSchemaFallsThroughToModuleDirectAndSynthesizes(t *testing.T) {
	store := &fakeStore{}
	factory := &fakeStubFactory{stub: &fakeStub{meta: &model.ServiceRegistrationMetadata{}}}
	r := NewRetriever(store, &fakeArtifactClient{}, factory, testLogger(t))

	resp, err := r.GetModuleSchema(context.Background(), "splitter", "")
	require.NoError(t, err)
	assert.True(t, strings.Contains(resp.SchemaJSON, "splitter Configuration"))
	assert.Equal(t, "module-direct", resp.Metadata["source"])
}

func TestGetModuleSchemaTotalFailure(t *testing.T) {
	store := &fakeStore{}
	factory := &fakeStubFactory{err: assert.AnError}
	r := NewRetriever(store, &fakeArtifactClient{}, factory, testLogger(t))

	_, err := r.GetModuleSchema(context.Background(), "ghost", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaNotFound)
}
