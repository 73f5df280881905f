package orchestrator

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/io-pipeline/platform-registration-service/internal/apicurio"
	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/events"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

type fakeDiscovery struct {
	registerOK   bool
	deregistered []string
	mu           sync.Mutex
}

func (f *fakeDiscovery) Register(ctx context.Context, serviceID, serviceName, host string, port int, tags []string, metadata map[string]string, capabilities []string, version string) bool {
	return f.registerOK
}

func (f *fakeDiscovery) Deregister(ctx context.Context, serviceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deregistered = append(f.deregistered, serviceID)
	return true
}

type fakeConverger struct{ healthy bool }

func (f *fakeConverger) WaitForHealthy(ctx context.Context, serviceID string) bool { return f.healthy }

type fakeStore struct {
	saved      *model.ServiceModule
	registerErr error
	syncedIDs  []string
	failedIDs  []string
}

func (f *fakeStore) RegisterModule(ctx context.Context, serviceName, host string, port int, version string, metadata map[string]any, jsonSchema string) (*model.ServiceModule, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.saved, nil
}

func (f *fakeStore) MarkSchemaSynced(ctx context.Context, schemaID, artifactID string, artifactGlobalID int64) error {
	f.syncedIDs = append(f.syncedIDs, schemaID)
	return nil
}

func (f *fakeStore) MarkSchemaFailed(ctx context.Context, schemaID, syncError string) error {
	f.failedIDs = append(f.failedIDs, schemaID)
	return nil
}

type fakeArtifact struct {
	result *apicurio.ArtifactResult
	err    error
}

func (f *fakeArtifact) CreateOrUpdate(ctx context.Context, serviceName, version, jsonSchema string) (*apicurio.ArtifactResult, error) {
	return f.result, f.err
}

func (f *fakeArtifact) DeleteArtifact(ctx context.Context, serviceName string) bool { return true }

type fakeModuleStub struct {
	meta *model.ServiceRegistrationMetadata
	err  error
}

func (f *fakeModuleStub) GetServiceRegistration(ctx context.Context) (*model.ServiceRegistrationMetadata, error) {
	return f.meta, f.err
}
func (f *fakeModuleStub) Close() error { return nil }

type fakeStubFactory struct {
	stub model.ModuleStub
	err  error
}

func (f *fakeStubFactory) OpenStub(ctx context.Context, moduleName string) (model.ModuleStub, error) {
	return f.stub, f.err
}

type fakeEmitter struct {
	emitted []events.Topic
	mu      sync.Mutex
}

func (f *fakeEmitter) Emit(topic events.Topic, payload events.Marshaler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, topic)
}

func testLogger(t *testing.T) config.Logger {
	t.Helper()
	logger, err := config.NewLogger(true)
	require.NoError(t, err)
	return logger
}

func collect(ch <-chan model.RegistrationEvent) []model.RegistrationEventType {
	var out []model.RegistrationEventType
	for e := range ch {
		out = append(out, e.EventType)
	}
	return out
}

func TestRegisterServiceHappyPath(t *testing.T) {
	discovery := &fakeDiscovery{registerOK: true}
	emitter := &fakeEmitter{}
	o := New(discovery, &fakeConverger{healthy: true}, &fakeStore{}, &fakeArtifact{}, &fakeStubFactory{}, emitter, testLogger(t))

	events := collect(o.RegisterService(context.Background(), model.ServiceRegistrationRequest{
		ServiceName: "orders", Host: "10.0.0.4", Port: 9090, Version: "1.2.0",
	}))

	assert.Equal(t, []model.RegistrationEventType{
		model.EventStarted, model.EventValidated, model.EventConsulRegistered,
		model.EventHealthCheckConfigured, model.EventConsulHealthy, model.EventCompleted,
	}, events)
	assert.Empty(t, discovery.deregistered)
}

func TestRegisterServiceInvalidRequest(t *testing.T) {
	o := New(&fakeDiscovery{}, &fakeConverger{}, &fakeStore{}, &fakeArtifact{}, &fakeStubFactory{}, &fakeEmitter{}, testLogger(t))

	got := collect(o.RegisterService(context.Background(), model.ServiceRegistrationRequest{}))
	assert.Equal(t, []model.RegistrationEventType{model.EventStarted, model.EventFailed}, got)
}

func TestRegisterServiceHealthNonConvergenceCompensates(t *testing.T) {
	discovery := &fakeDiscovery{registerOK: true}
	o := New(discovery, &fakeConverger{healthy: false}, &fakeStore{}, &fakeArtifact{}, &fakeStubFactory{}, &fakeEmitter{}, testLogger(t))

	got := collect(o.RegisterService(context.Background(), model.ServiceRegistrationRequest{
		ServiceName: "orders", Host: "10.0.0.4", Port: 9090,
	}))

	assert.Equal(t, []model.RegistrationEventType{
		model.EventStarted, model.EventValidated, model.EventConsulRegistered,
		model.EventHealthCheckConfigured, model.EventFailed,
	}, got)
	assert.Equal(t, []string{"orders-10-0-0-4-9090"}, discovery.deregistered)
}

func TestRegisterModuleWithApicurioOutage(t *testing.T) {
	discovery := &fakeDiscovery{registerOK: true}
	store := &fakeStore{saved: &model.ServiceModule{ServiceID: "splitter-127-0-0-1-7000", ConfigSchemaID: "splitter-v1_0_0"}}
	factory := &fakeStubFactory{stub: &fakeModuleStub{meta: &model.ServiceRegistrationMetadata{}}}
	emitter := &fakeEmitter{}
	o := New(discovery, &fakeConverger{healthy: true}, store, &fakeArtifact{err: assert.AnError}, factory, emitter, testLogger(t))

	got := collect(o.RegisterModule(context.Background(), model.ModuleRegistrationRequest{
		ModuleName: "splitter", Host: "127.0.0.1", Port: 7000, Version: "1.0.0",
	}))

	require.Contains(t, got, model.EventDatabaseSaved)
	require.Contains(t, got, model.EventCompleted)
	assert.NotContains(t, got, model.EventFailed)
	assert.Contains(t, store.failedIDs, "splitter-v1_0_0")
	assert.Equal(t, []events.Topic{events.TopicModuleRegistered}, emitter.emitted)
}

func TestUnregisterServicePublishesEvent(t *testing.T) {
	discovery := &fakeDiscovery{}
	emitter := &fakeEmitter{}
	o := New(discovery, &fakeConverger{}, &fakeStore{}, &fakeArtifact{}, &fakeStubFactory{}, emitter, testLogger(t))

	resp := o.UnregisterService(context.Background(), model.UnregisterRequest{ServiceName: "orders", Host: "10.0.0.4", Port: 9090})

	assert.True(t, resp.Success)
	// Deregistration and Emit both run synchronously inside UnregisterService.
	assert.Equal(t, []string{"orders-10-0-0-4-9090"}, discovery.deregistered)
	assert.Equal(t, []events.Topic{events.TopicServiceUnregistered}, emitter.emitted)
}
