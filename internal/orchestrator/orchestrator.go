// Package orchestrator implements the Registration Orchestrator (C6): the
// core state machine coordinating C1, C5, C2, C3, and C4 across a
// multi-stage registration, streaming progress as RegistrationEvents and
// executing compensations on failure.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/apicurio"
	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/events"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

const (
	moduleTag        = "module"
	documentTag      = "document-processor"
	moduleCapability = "PipeStepProcessor"
)

// DiscoveryClient is the slice of C1 the orchestrator drives directly.
type DiscoveryClient interface {
	Register(ctx context.Context, serviceID, serviceName, host string, port int, tags []string, metadata map[string]string, capabilities []string, version string) bool
	Deregister(ctx context.Context, serviceID string) bool
}

// Converger is C5.
type Converger interface {
	WaitForHealthy(ctx context.Context, serviceID string) bool
}

// Store is the slice of C3 the orchestrator writes through.
type Store interface {
	RegisterModule(ctx context.Context, serviceName, host string, port int, version string, metadata map[string]any, jsonSchema string) (*model.ServiceModule, error)
	MarkSchemaSynced(ctx context.Context, schemaID, artifactID string, artifactGlobalID int64) error
	MarkSchemaFailed(ctx context.Context, schemaID, syncError string) error
}

// ArtifactClient is the slice of C2 the orchestrator drives.
type ArtifactClient interface {
	CreateOrUpdate(ctx context.Context, serviceName, version, jsonSchema string) (*apicurio.ArtifactResult, error)
	DeleteArtifact(ctx context.Context, serviceName string) bool
}

// StubFactory opens the dynamic RPC stub used to pull a module's own
// registration metadata. ModuleStub is declared once, in internal/model,
// and shared with internal/schema's StubFactory.
type StubFactory interface {
	OpenStub(ctx context.Context, moduleName string) (model.ModuleStub, error)
}

// EventEmitter is the slice of C4 the orchestrator publishes through.
type EventEmitter interface {
	Emit(topic events.Topic, payload events.Marshaler)
}

// Orchestrator implements RegisterService/RegisterModule/UnregisterService/UnregisterModule.
type Orchestrator struct {
	discovery DiscoveryClient
	converger Converger
	store     Store
	artifact  ArtifactClient
	stubs     StubFactory
	emitter   EventEmitter
	logger    config.Logger
}

// New builds an Orchestrator.
func New(discovery DiscoveryClient, converger Converger, store Store, artifact ArtifactClient, stubs StubFactory, emitter EventEmitter, logger config.Logger) *Orchestrator {
	return &Orchestrator{
		discovery: discovery,
		converger: converger,
		store:     store,
		artifact:  artifact,
		stubs:     stubs,
		emitter:   emitter,
		logger:    logger,
	}
}

func emit(out chan<- model.RegistrationEvent, eventType model.RegistrationEventType, serviceID, message, errDetail string) {
	out <- model.RegistrationEvent{
		EventType:   eventType,
		ServiceID:   serviceID,
		Message:     message,
		ErrorDetail: errDetail,
		Timestamp:   time.Now(),
	}
}

func fail(out chan<- model.RegistrationEvent, serviceID, message string, err error) {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	emit(out, model.EventFailed, serviceID, message, detail)
}

// RegisterService runs the service registration state machine, streaming
// progress on the returned channel. The channel is closed when the stream
// reaches COMPLETED or FAILED.
func (o *Orchestrator) RegisterService(ctx context.Context, req model.ServiceRegistrationRequest) <-chan model.RegistrationEvent {
	out := make(chan model.RegistrationEvent, 8)
	go func() {
		defer close(out)
		serviceID, ok := o.runServiceStages(ctx, out, req)
		if !ok {
			return
		}
		emit(out, model.EventCompleted, serviceID, "Service registration completed", "")
		o.emitter.Emit(events.TopicServiceRegistered, events.ServiceRegistered{
			ServiceID:   serviceID,
			ServiceName: req.ServiceName,
			Host:        req.Host,
			Port:        int32(req.Port),
			Version:     req.Version,
			Timestamp:   time.Now(),
		})
	}()
	return out
}

// runServiceStages executes stages 1-5 of §4.6.1 (STARTED through
// CONSUL_HEALTHY) and returns the derived serviceId plus whether the
// instance came up healthy. It deliberately stops short of COMPLETED:
// RegisterService emits COMPLETED itself once this returns, while
// runModuleRegistration reuses these stages as the first leg of the
// module flow and only reaches its own COMPLETED after the module-only
// stages that follow.
func (o *Orchestrator) runServiceStages(ctx context.Context, out chan<- model.RegistrationEvent, req model.ServiceRegistrationRequest) (string, bool) {
	emit(out, model.EventStarted, "", "Registration started", "")

	if req.ServiceName == "" || req.Host == "" || req.Port <= 0 {
		fail(out, "", "Invalid service registration request", nil)
		return "", false
	}
	emit(out, model.EventValidated, "", "Request validated", "")

	serviceID := model.ServiceID(req.ServiceName, req.Host, req.Port)

	if !o.discovery.Register(ctx, serviceID, req.ServiceName, req.Host, req.Port, req.Tags, req.Metadata, req.Capabilities, req.Version) {
		fail(out, serviceID, "Failed to register with discovery agent", nil)
		return "", false
	}
	emit(out, model.EventConsulRegistered, serviceID, "Registered with discovery agent", "")
	emit(out, model.EventHealthCheckConfigured, serviceID, "Health check configured", "")

	if !o.converger.WaitForHealthy(ctx, serviceID) {
		o.discovery.Deregister(ctx, serviceID)
		fail(out, serviceID, "Instance did not become healthy", nil)
		return "", false
	}
	emit(out, model.EventConsulHealthy, serviceID, "Instance is healthy", "")

	return serviceID, true
}

// buildModuleMetadata flattens the embedded ServiceRegistrationMetadata
// into the conventional metadata keys, per §4.6.2.
func buildModuleMetadata(req model.ModuleRegistrationRequest) map[string]string {
	meta := make(map[string]string, len(req.Metadata)+4)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["module-name"] = req.ModuleName
	meta["module-version"] = req.Version

	if m := req.ServiceRegistrationMeta; m != nil {
		if m.JSONConfigSchema != "" {
			meta["json-config-schema"] = m.JSONConfigSchema
		}
		if m.DisplayName != "" {
			meta["display-name"] = m.DisplayName
		}
		if m.Description != "" {
			meta["description"] = m.Description
		}
	}
	return meta
}

func toServiceRequest(req model.ModuleRegistrationRequest, meta map[string]string) model.ServiceRegistrationRequest {
	tags := []string{moduleTag, documentTag}
	if req.ServiceRegistrationMeta != nil {
		tags = append(tags, req.ServiceRegistrationMeta.Tags...)
	}
	return model.ServiceRegistrationRequest{
		ServiceName:  req.ModuleName,
		Host:         req.Host,
		Port:         req.Port,
		Version:      req.Version,
		Tags:         tags,
		Metadata:     meta,
		Capabilities: []string{moduleCapability},
	}
}

// RegisterModule runs the module registration state machine.
func (o *Orchestrator) RegisterModule(ctx context.Context, req model.ModuleRegistrationRequest) <-chan model.RegistrationEvent {
	out := make(chan model.RegistrationEvent, 8)
	go func() {
		defer close(out)
		schemaID, artifactID, serviceID, ok := o.runModuleRegistration(ctx, out, req)
		if ok {
			o.emitter.Emit(events.TopicModuleRegistered, events.ModuleRegistered{
				ServiceID:  serviceID,
				ModuleName: req.ModuleName,
				Host:       req.Host,
				Port:       int32(req.Port),
				Version:    req.Version,
				SchemaID:   schemaID,
				ArtifactID: artifactID,
				Timestamp:  time.Now(),
			})
		}
	}()
	return out
}

func (o *Orchestrator) runModuleRegistration(ctx context.Context, out chan<- model.RegistrationEvent, req model.ModuleRegistrationRequest) (schemaID, artifactID, serviceID string, ok bool) {
	moduleMeta := buildModuleMetadata(req)
	serviceReq := toServiceRequest(req, moduleMeta)

	serviceID, ok = o.runServiceStages(ctx, out, serviceReq)
	if !ok {
		return "", "", "", false
	}

	// METADATA_RETRIEVED: pull the module's own registration metadata via
	// the dynamic RPC stub. A failure here fails and compensates, exactly
	// like a pre-persistence discovery or health error.
	regMeta, err := o.fetchModuleMetadata(ctx, req.ModuleName)
	if err != nil {
		o.discovery.Deregister(ctx, serviceID)
		fail(out, serviceID, "Failed to retrieve module metadata", err)
		return "", "", serviceID, false
	}
	emit(out, model.EventMetadataRetrieved, serviceID, "Module metadata retrieved", "")

	jsonSchema := regMeta.JSONConfigSchema
	if jsonSchema == "" {
		jsonSchema = model.SynthesizeDefaultSchema(req.ModuleName)
	}
	emit(out, model.EventSchemaValidated, serviceID, "Schema validated", "")

	// DATABASE_SAVED: the persistence step. In Go this is simply a
	// *sql.Tx-bound call; there is no separate "duplicated context" hop.
	saved, err := o.store.RegisterModule(ctx, req.ModuleName, req.Host, req.Port, req.Version, toMetadataMap(moduleMeta), jsonSchema)
	if err != nil {
		fail(out, serviceID, "Failed to persist module registration", err)
		return "", "", serviceID, false
	}
	emit(out, model.EventDatabaseSaved, serviceID, "Module persisted", "")
	schemaID = saved.ConfigSchemaID

	// APICURIO_REGISTERED: absorbed failure, never fails the registration.
	artifactID = o.syncSchemaToArtifactRegistry(ctx, out, serviceID, req.ModuleName, req.Version, jsonSchema, schemaID)

	emit(out, model.EventCompleted, serviceID, "Module registration completed", "")
	return schemaID, artifactID, serviceID, true
}

func (o *Orchestrator) fetchModuleMetadata(ctx context.Context, moduleName string) (*model.ServiceRegistrationMetadata, error) {
	stub, err := o.stubs.OpenStub(ctx, moduleName)
	if err != nil {
		return nil, err
	}
	defer stub.Close()
	return stub.GetServiceRegistration(ctx)
}

func (o *Orchestrator) syncSchemaToArtifactRegistry(ctx context.Context, out chan<- model.RegistrationEvent, serviceID, moduleName, version, jsonSchema, schemaID string) string {
	result, err := o.artifact.CreateOrUpdate(ctx, moduleName, version, jsonSchema)
	if err != nil {
		o.logger.Warn("apicurio同步失败，注册继续", zap.String("moduleName", moduleName), zap.Error(err))
		if schemaID != "" {
			if markErr := o.store.MarkSchemaFailed(ctx, schemaID, err.Error()); markErr != nil {
				o.logger.Error("标记模式同步失败状态时出错", zap.Error(markErr))
			}
		}
		emit(out, model.EventSchemaValidated, serviceID, "Apicurio registry sync skipped (failure)", "")
		return ""
	}

	if schemaID != "" {
		if markErr := o.store.MarkSchemaSynced(ctx, schemaID, result.ArtifactID, result.GlobalID); markErr != nil {
			o.logger.Error("标记模式已同步状态时出错", zap.Error(markErr))
		}
	}
	emit(out, model.EventApicurioRegistered, serviceID, "Schema mirrored to artifact registry", "")
	return result.ArtifactID
}

func toMetadataMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// UnregisterService computes serviceId, deregisters from the discovery
// agent, and publishes the unregistered event. The relational row is not
// touched here; row deletion is an explicit admin path on the store.
func (o *Orchestrator) UnregisterService(ctx context.Context, req model.UnregisterRequest) model.UnregisterResponse {
	serviceID := model.ServiceID(req.ServiceName, req.Host, req.Port)

	if !o.discovery.Deregister(ctx, serviceID) {
		return model.UnregisterResponse{
			Success:   false,
			Message:   fmt.Sprintf("Failed to deregister %s from discovery agent", serviceID),
			Timestamp: time.Now(),
		}
	}

	o.emitter.Emit(events.TopicServiceUnregistered, events.ServiceUnregistered{
		ServiceID:   serviceID,
		ServiceName: req.ServiceName,
		Timestamp:   time.Now(),
	})

	return model.UnregisterResponse{Success: true, Message: "Service unregistered", Timestamp: time.Now()}
}

// UnregisterModule is UnregisterService's module-topic counterpart.
func (o *Orchestrator) UnregisterModule(ctx context.Context, req model.UnregisterRequest) model.UnregisterResponse {
	serviceID := model.ServiceID(req.ServiceName, req.Host, req.Port)

	if !o.discovery.Deregister(ctx, serviceID) {
		return model.UnregisterResponse{
			Success:   false,
			Message:   fmt.Sprintf("Failed to deregister %s from discovery agent", serviceID),
			Timestamp: time.Now(),
		}
	}

	o.emitter.Emit(events.TopicModuleUnregistered, events.ModuleUnregistered{
		ServiceID:  serviceID,
		ModuleName: req.ServiceName,
		Timestamp:  time.Now(),
	})

	return model.UnregisterResponse{Success: true, Message: "Module unregistered", Timestamp: time.Now()}
}
