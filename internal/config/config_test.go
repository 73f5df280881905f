package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载默认配置")
	require.NotNil(t, config, "配置不应为nil")

	assert.Equal(t, 8500, config.Consul.Port, "Consul端口应为默认值")
	assert.Equal(t, "http", config.Consul.Scheme)
	assert.Equal(t, 39100, config.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, config.Kafka.Brokers)
	assert.False(t, config.Service.RegistrationEnabled)
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	os.Setenv("REGISTRATION_CONSUL_PORT", "8600")
	os.Setenv("REGISTRATION_SERVER_PORT", "9090")
	defer func() {
		os.Unsetenv("REGISTRATION_CONSUL_PORT")
		os.Unsetenv("REGISTRATION_SERVER_PORT")
	}()

	config, err := LoadConfig("")
	require.NoError(t, err, "无法加载配置")
	require.NotNil(t, config, "配置不应为nil")

	assert.Equal(t, 8600, config.Consul.Port, "环境变量应正确覆盖Consul端口")
	assert.Equal(t, 9090, config.Server.Port, "环境变量应正确覆盖服务端口")
}

func TestLoadConfigWithMissingFile(t *testing.T) {
	config, err := LoadConfig("non_existent_file.yaml")

	assert.Error(t, err, "从不存在的文件加载配置应该失败")
	assert.Nil(t, config, "加载不存在的配置文件应该返回nil配置")
}
