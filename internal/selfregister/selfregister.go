// Package selfregister implements the config-driven self-registration
// toggle described in §6: at startup, if service.registration_enabled is
// set, the process registers itself with the discovery agent through the
// same RegisterService path any other caller would use.
package selfregister

import (
	"context"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

// Orchestrator is the slice of C6 this component drives.
type Orchestrator interface {
	RegisterService(ctx context.Context, req model.ServiceRegistrationRequest) <-chan model.RegistrationEvent
}

// Run registers the process itself with the discovery agent if
// cfg.Service.RegistrationEnabled is set. It blocks until the registration
// stream closes or delivers a FAILED event, logs the outcome, and returns
// nothing, so startup
// continues whether registration succeeded or failed. It is a no-op
// otherwise.
func Run(ctx context.Context, cfg *config.Config, orchestrator Orchestrator, logger config.Logger) {
	if !cfg.Service.RegistrationEnabled {
		logger.Info("自注册已禁用，跳过")
		return
	}

	req := model.ServiceRegistrationRequest{
		ServiceName:  cfg.Service.Name,
		Host:         cfg.Service.Host,
		Port:         cfg.Service.Port,
		Capabilities: cfg.Service.Capabilities,
		Tags:         cfg.Service.Tags,
	}

	for event := range orchestrator.RegisterService(ctx, req) {
		if event.EventType == model.EventFailed {
			logger.Error("自注册失败", zap.String("message", event.Message), zap.String("errorDetail", event.ErrorDetail))
			return
		}
		if event.EventType == model.EventCompleted {
			logger.Info("自注册完成", zap.String("serviceId", event.ServiceID))
		}
	}
}
