package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构
type Config struct {
	// Consul发现代理配置
	Consul struct {
		Host   string `mapstructure:"host"`
		Port   int    `mapstructure:"port"`
		Scheme string `mapstructure:"scheme"`
		Token  string `mapstructure:"token"`
	} `mapstructure:"consul"`

	// 关系型存储配置
	Store struct {
		DSN             string `mapstructure:"dsn"`
		MigrationsPath  string `mapstructure:"migrations_path"`
		MaxOpenConns    int    `mapstructure:"max_open_conns"`
		MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	} `mapstructure:"store"`

	// Kafka事件总线配置
	Kafka struct {
		Brokers  []string `mapstructure:"brokers"`
		ClientID string   `mapstructure:"client_id"`
	} `mapstructure:"kafka"`

	// Apicurio模式注册表配置
	Apicurio struct {
		URL     string `mapstructure:"url"`
		GroupID string `mapstructure:"group_id"`
	} `mapstructure:"apicurio"`

	// HTTP传输层配置
	Server struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"server"`

	// 自注册配置
	Service struct {
		RegistrationEnabled bool     `mapstructure:"registration_enabled"`
		Name                string   `mapstructure:"name"`
		Host                string   `mapstructure:"host"`
		Port                int      `mapstructure:"port"`
		Capabilities        []string `mapstructure:"capabilities"`
		Tags                []string `mapstructure:"tags"`
	} `mapstructure:"service"`

	// 日志配置
	Log struct {
		Level       string `mapstructure:"level"`
		Development bool   `mapstructure:"development"`
	} `mapstructure:"log"`
}

// LoadConfig 从文件和环境变量加载配置
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果指定了配置文件路径
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 设置配置文件名和路径
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.platform-registration")
		v.AddConfigPath("/etc/platform-registration")
	}

	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if configPath != "" {
			// 显式指定的文件不存在是错误
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("读取配置文件错误: %w", err)
		}
	}

	// 绑定环境变量
	v.SetEnvPrefix("REGISTRATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置错误: %w", err)
	}

	return &config, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("consul.host", "localhost")
	v.SetDefault("consul.port", 8500)
	v.SetDefault("consul.scheme", "http")

	v.SetDefault("store.dsn", "registration:registration@tcp(localhost:3306)/registration?parseTime=true")
	v.SetDefault("store.migrations_path", "file://internal/store/registry/migrations")
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.client_id", "platform-registration-service")

	v.SetDefault("apicurio.url", "http://localhost:8081/apis/registry/v3")
	v.SetDefault("apicurio.group_id", "ai.pipestream.schemas")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 39100)

	v.SetDefault("service.registration_enabled", false)
	v.SetDefault("service.name", "platform-registration-service")
	v.SetDefault("service.host", "localhost")
	v.SetDefault("service.port", 39100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", true)
}
