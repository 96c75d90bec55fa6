package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Storage:   DefaultStorageConfig(),
		LLM:       DefaultLLMConfig(),
		Image:     DefaultImageConfig(),
		Pipeline:  DefaultPipelineConfig(),
		CAD:       DefaultCADConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8000,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		MaxUploadBytes:  10 << 20,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		MaxConnections:  1024,
		CORSOrigins:     []string{"*"},
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Name:            "prompt2cad.db",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		AutoMigrate:     true,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "prompt2cad:",
		TTL:          24 * time.Hour,
	}
}

// DefaultStorageConfig 返回默认存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Root:      "./static",
		URLPrefix: "/static",
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:          "openai",
		Model:             "gpt-4o",
		Timeout:           60 * time.Second,
		MaxRetries:        3,
		AnalysisMaxTokens: 500,
	}
}

// DefaultImageConfig 返回默认图像服务配置
func DefaultImageConfig() ImageConfig {
	return ImageConfig{
		BaseURL: "https://api.openai.com",
		Model:   "gpt-image-1",
		Timeout: 180 * time.Second,
	}
}

// DefaultPipelineConfig 返回默认流水线配置
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		LockTimeout:     2 * time.Minute,
		ThicknessScale:  10,
		PointsMaxSide:   512,
		PointsThreshold: 128,
		RenderWidth:     800,
		RenderHeight:    800,
	}
}

// DefaultCADConfig 返回默认 CAD 工作流配置
func DefaultCADConfig() CADConfig {
	return CADConfig{
		Enabled:       true,
		Binary:        "openscad",
		UseXvfb:       true,
		XvfbBinary:    "xvfb-run",
		ImageSize:     "800,600",
		Timeout:       2 * time.Minute,
		Temperature:   0.1,
		MaxTokens:     1500,
		CodeBudget:    6000,
		PromptVersion: "v1",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "prompt2cad",
		SampleRate:   0.1,
	}
}

var (
	validDrivers   = map[string]bool{"sqlite": true, "postgres": true, "mysql": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats   = map[string]bool{"json": true, "console": true}
)

// Validate 验证配置，所有错误以 "; " 连接返回
func (c *Config) Validate() error {
	var errs []string

	if !validPort(c.Server.HTTPPort) {
		errs = append(errs, "invalid HTTP port")
	}
	if !validPort(c.Server.MetricsPort) {
		errs = append(errs, "invalid metrics port")
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, "max_upload_bytes must be positive")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, "rate limit must not be negative")
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, "max_connections must not be negative")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("unsupported database driver %q", c.Database.Driver))
	}
	if c.Database.Name == "" {
		errs = append(errs, "database name is required")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis addr is required when redis is enabled")
	}

	if strings.TrimSpace(c.Storage.Root) == "" {
		errs = append(errs, "storage root is required")
	}
	if !strings.HasPrefix(c.Storage.URLPrefix, "/") {
		errs = append(errs, "storage url_prefix must start with /")
	}

	if c.LLM.Provider == "" {
		errs = append(errs, "llm provider is required")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "llm max_retries must not be negative")
	}

	if c.Pipeline.LockTimeout <= 0 {
		errs = append(errs, "pipeline lock_timeout must be positive")
	}
	if c.Pipeline.ThicknessScale <= 0 {
		errs = append(errs, "pipeline thickness_scale must be positive")
	}
	if c.Pipeline.PointsMaxSide <= 0 {
		errs = append(errs, "pipeline points_max_side must be positive")
	}

	if c.CAD.Temperature < 0 || c.CAD.Temperature > 2 {
		errs = append(errs, "cad temperature must be between 0 and 2")
	}
	if c.CAD.Enabled && !c.CAD.Mock && c.CAD.Binary == "" {
		errs = append(errs, "cad binary is required unless mock is enabled")
	}

	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format %q", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return errors.New("config validation errors: " + strings.Join(errs, "; "))
	}
	return nil
}

func validPort(p int) bool { return p > 0 && p <= 65535 }
