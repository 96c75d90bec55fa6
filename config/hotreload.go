// 配置热重载。
//
// 轮询配置文件的修改时间，变更后重新加载并校验，
// 仅将可热重载字段应用到运行中的配置，其余字段记录为需重启。
package config

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConfigChange 描述一次字段变更
type ConfigChange struct {
	Path            string `json:"path"`
	OldValue        any    `json:"old_value,omitempty"`
	NewValue        any    `json:"new_value,omitempty"`
	RequiresRestart bool   `json:"requires_restart"`
}

// HotReloadableField 描述一个无需重启即可生效的字段
type HotReloadableField struct {
	Path        string
	Description string
	Sensitive   bool
}

var hotReloadableFields = map[string]HotReloadableField{
	"Log.Level": {
		Path:        "Log.Level",
		Description: "Log level (debug, info, warn, error)",
	},
	"Server.RateLimitRPS": {
		Path:        "Server.RateLimitRPS",
		Description: "Per-client request rate",
	},
	"Server.RateLimitBurst": {
		Path:        "Server.RateLimitBurst",
		Description: "Per-client burst size",
	},
	"Server.APIKeys": {
		Path:        "Server.APIKeys",
		Description: "Accepted API keys",
		Sensitive:   true,
	},
}

// IsHotReloadable 返回字段路径是否可热重载
func IsHotReloadable(path string) bool {
	_, ok := hotReloadableFields[path]
	return ok
}

// ReloadCallback 在热字段生效后调用
type ReloadCallback func(oldConfig, newConfig *Config, changes []ConfigChange)

// HotReloadManager 监视配置文件并热应用变更
type HotReloadManager struct {
	mu        sync.RWMutex
	path      string
	envPrefix string
	interval  time.Duration
	current   *Config
	modTime   time.Time
	callbacks []ReloadCallback
	logger    *zap.Logger
}

// HotReloadOption 配置 HotReloadManager
type HotReloadOption func(*HotReloadManager)

// WithPollInterval 设置轮询间隔
func WithPollInterval(d time.Duration) HotReloadOption {
	return func(m *HotReloadManager) { m.interval = d }
}

// WithHotReloadLogger 设置日志记录器
func WithHotReloadLogger(logger *zap.Logger) HotReloadOption {
	return func(m *HotReloadManager) { m.logger = logger }
}

// WithReloadEnvPrefix 设置重载时使用的环境变量前缀
func WithReloadEnvPrefix(prefix string) HotReloadOption {
	return func(m *HotReloadManager) { m.envPrefix = prefix }
}

// NewHotReloadManager 创建热重载管理器，initial 为当前生效的配置
func NewHotReloadManager(path string, initial *Config, opts ...HotReloadOption) *HotReloadManager {
	m := &HotReloadManager{
		path:      path,
		envPrefix: DefaultEnvPrefix,
		interval:  2 * time.Second,
		current:   initial,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("component", "config_reload"))
	if info, err := os.Stat(path); err == nil {
		m.modTime = info.ModTime()
	}
	return m
}

// OnReload 注册重载回调
func (m *HotReloadManager) OnReload(cb ReloadCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Config 返回当前生效的配置
func (m *HotReloadManager) Config() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Run 轮询配置文件直到 ctx 结束
func (m *HotReloadManager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(m.path)
			if err != nil || !info.ModTime().After(m.modTime) {
				continue
			}
			m.modTime = info.ModTime()
			if _, err := m.Reload(); err != nil {
				m.logger.Warn("config reload rejected", zap.Error(err))
			}
		}
	}
}

// Reload 重新加载配置文件并应用可热重载字段。
// 校验失败时保持当前配置不变。
func (m *HotReloadManager) Reload() ([]ConfigChange, error) {
	next, err := NewLoader().
		WithConfigPath(m.path).
		WithEnvPrefix(m.envPrefix).
		WithValidator(func(c *Config) error { return c.Validate() }).
		Load()
	if err != nil {
		return nil, fmt.Errorf("reload %s: %w", m.path, err)
	}

	m.mu.Lock()
	old := m.current
	changes := DetectChanges(old, next)
	applied := *old
	hot := make([]ConfigChange, 0, len(changes))
	for _, c := range changes {
		if c.RequiresRestart {
			m.logger.Info("config change requires restart", zap.String("path", c.Path))
			continue
		}
		if err := copyField(&applied, next, c.Path); err != nil {
			m.mu.Unlock()
			return nil, err
		}
		hot = append(hot, c)
		m.logChange(c)
	}
	if len(hot) > 0 {
		m.current = &applied
	}
	callbacks := append([]ReloadCallback(nil), m.callbacks...)
	m.mu.Unlock()

	if len(hot) > 0 {
		for _, cb := range callbacks {
			cb(old, &applied, hot)
		}
	}
	return changes, nil
}

// DetectChanges 递归比较两个配置，返回字段级差异
func DetectChanges(oldConfig, newConfig *Config) []ConfigChange {
	var changes []ConfigChange
	compareStructs("", reflect.ValueOf(oldConfig).Elem(), reflect.ValueOf(newConfig).Elem(), &changes)
	return changes
}

func compareStructs(prefix string, oldVal, newVal reflect.Value, changes *[]ConfigChange) {
	t := oldVal.Type()
	for i := 0; i < oldVal.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		path := field.Name
		if prefix != "" {
			path = prefix + "." + field.Name
		}

		of, nf := oldVal.Field(i), newVal.Field(i)
		if of.Kind() == reflect.Struct {
			compareStructs(path, of, nf, changes)
			continue
		}
		if reflect.DeepEqual(of.Interface(), nf.Interface()) {
			continue
		}
		*changes = append(*changes, ConfigChange{
			Path:            path,
			OldValue:        of.Interface(),
			NewValue:        nf.Interface(),
			RequiresRestart: !IsHotReloadable(path),
		})
	}
}

func copyField(dst, src *Config, path string) error {
	d := reflect.ValueOf(dst).Elem()
	s := reflect.ValueOf(src).Elem()
	for _, name := range strings.Split(path, ".") {
		d = d.FieldByName(name)
		s = s.FieldByName(name)
		if !d.IsValid() || !s.IsValid() {
			return fmt.Errorf("unknown config field %q", path)
		}
	}
	d.Set(s)
	return nil
}

func (m *HotReloadManager) logChange(c ConfigChange) {
	fields := []zap.Field{zap.String("path", c.Path)}
	if !hotReloadableFields[c.Path].Sensitive {
		fields = append(fields, zap.Any("old_value", c.OldValue), zap.Any("new_value", c.NewValue))
	}
	m.logger.Info("config changed", fields...)
}
