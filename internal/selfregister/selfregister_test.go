package selfregister

import (
	"context"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

type noopLogger struct{}

func (noopLogger) Debug(string, ...zapcore.Field) {}
func (noopLogger) Info(string, ...zapcore.Field)  {}
func (noopLogger) Warn(string, ...zapcore.Field)  {}
func (noopLogger) Error(string, ...zapcore.Field) {}
func (noopLogger) Fatal(string, ...zapcore.Field) {}

type fakeOrchestrator struct {
	events []model.RegistrationEventType
	called bool
}

func (f *fakeOrchestrator) RegisterService(ctx context.Context, req model.ServiceRegistrationRequest) <-chan model.RegistrationEvent {
	f.called = true
	out := make(chan model.RegistrationEvent, len(f.events))
	for _, t := range f.events {
		out <- model.RegistrationEvent{EventType: t}
	}
	close(out)
	return out
}

func TestRunSkipsWhenDisabled(t *testing.T) {
	cfg := &config.Config{}
	orch := &fakeOrchestrator{}

	Run(context.Background(), cfg, orch, noopLogger{})

	if orch.called {
		t.Fatal("expected RegisterService not to be called when registration is disabled")
	}
}

func TestRunDrainsEventsWhenEnabled(t *testing.T) {
	cfg := &config.Config{}
	cfg.Service.RegistrationEnabled = true
	cfg.Service.Name = "platform-registration-service"
	orch := &fakeOrchestrator{events: []model.RegistrationEventType{model.EventStarted, model.EventCompleted}}

	Run(context.Background(), cfg, orch, noopLogger{})

	if !orch.called {
		t.Fatal("expected RegisterService to be called when registration is enabled")
	}
}
