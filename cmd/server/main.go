package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/apicurio"
	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/consul"
	"github.com/io-pipeline/platform-registration-service/internal/discovery"
	"github.com/io-pipeline/platform-registration-service/internal/events"
	"github.com/io-pipeline/platform-registration-service/internal/health"
	"github.com/io-pipeline/platform-registration-service/internal/model"
	"github.com/io-pipeline/platform-registration-service/internal/modulerpc"
	"github.com/io-pipeline/platform-registration-service/internal/orchestrator"
	"github.com/io-pipeline/platform-registration-service/internal/readiness"
	"github.com/io-pipeline/platform-registration-service/internal/schema"
	"github.com/io-pipeline/platform-registration-service/internal/selfregister"
	"github.com/io-pipeline/platform-registration-service/internal/store/registry"
	transporthttp "github.com/io-pipeline/platform-registration-service/internal/transport/http"
	"github.com/io-pipeline/platform-registration-service/internal/workerpool"
)

const apicurioWorkerPoolSize = 8

var (
	logger     config.Logger
	configFile string
	appConfig  *config.Config
)

func init() {
	flag.StringVar(&configFile, "config", "", "配置文件路径")
}

// moduleAddressResolver adapts C1's discovery client to the narrow
// AddressResolver the dynamic RPC stub factory expects.
type moduleAddressResolver struct {
	discovery *consul.Client
}

func (r *moduleAddressResolver) ModuleAddress(ctx context.Context, moduleName string) (string, bool) {
	nodes := r.discovery.HealthyNodes(ctx, moduleName)
	if len(nodes) == 0 {
		return "", false
	}
	return fmt.Sprintf("%s:%d", nodes[0].Address, nodes[0].Port), true
}

// stubFactoryAdapter bridges modulerpc.Factory's concrete *modulerpc.Stub
// return type to model.ModuleStub, the interface both
// orchestrator.StubFactory and schema.StubFactory declare their OpenStub
// methods against. Go interface satisfaction is invariant on return type,
// so *modulerpc.Factory itself (returning *modulerpc.Stub) can't satisfy
// either StubFactory directly; this adapter's OpenStub widens the return
// type to model.ModuleStub, which satisfies both.
type stubFactoryAdapter struct {
	factory *modulerpc.Factory
}

func (a *stubFactoryAdapter) OpenStub(ctx context.Context, moduleName string) (model.ModuleStub, error) {
	return a.factory.OpenStub(ctx, moduleName)
}

func main() {
	flag.Parse()

	var err error
	appConfig, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err = config.NewLogger(appConfig.Log.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	logger.Info("Platform Registration Service Starting...",
		zap.String("consul_addr", fmt.Sprintf("%s:%d", appConfig.Consul.Host, appConfig.Consul.Port)),
		zap.Int("server_port", appConfig.Server.Port),
	)

	discoveryClient, err := consul.NewClient(appConfig, logger)
	if err != nil {
		logger.Error("初始化consul客户端失败", zap.Error(err))
		os.Exit(1)
	}

	store, err := registry.NewMySQLStore(appConfig, logger)
	if err != nil {
		logger.Error("初始化关系型存储失败", zap.Error(err))
		os.Exit(1)
	}
	defer store.Close()

	emitter, err := events.NewEmitter(appConfig, logger)
	if err != nil {
		logger.Error("初始化事件发射器失败", zap.Error(err))
		os.Exit(1)
	}
	defer emitter.Close()

	apicurioPool := workerpool.New(apicurioWorkerPoolSize)
	defer apicurioPool.Close()
	artifactClient := apicurio.NewClient(appConfig, logger, apicurioPool)

	converger := health.NewConverger(discoveryClient, logger)

	stubFactory := &stubFactoryAdapter{factory: modulerpc.NewFactory(&moduleAddressResolver{discovery: discoveryClient})}

	orch := orchestrator.New(discoveryClient, converger, store, artifactClient, stubFactory, emitter, logger)

	surface := discovery.NewSurface(discoveryClient, logger)
	retriever := schema.NewRetriever(store, artifactClient, stubFactory, logger)
	readinessChecker := readiness.NewChecker(store, discoveryClient, artifactClient)

	server := transporthttp.NewServer(logger,
		transporthttp.NewRegistrationHandler(orch, logger),
		transporthttp.NewDiscoveryHandler(surface, logger),
		transporthttp.NewSchemaHandler(retriever, logger),
		transporthttp.NewReadinessHandler(readinessChecker, logger),
	)

	ctx, cancelSelfRegister := context.WithTimeout(context.Background(), 30*time.Second)
	selfregister.Run(ctx, appConfig, orch, logger)
	cancelSelfRegister()

	go func() {
		addr := fmt.Sprintf("%s:%d", appConfig.Server.Host, appConfig.Server.Port)
		if err := server.Start(addr); err != nil {
			logger.Info("HTTP服务器已停止", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("接收到关闭信号，正在优雅关闭...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP服务器关闭失败", zap.Error(err))
	}
}
