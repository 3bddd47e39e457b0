// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/wyfcoding/marketnotify/pkg/logger"
)

// Config 通知服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger logger.Config `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 鉴权配置
	Auth AuthConfig `mapstructure:"auth"`
	// 邮件发送配置
	Email EmailConfig `mapstructure:"email"`
	// 通知管线配置
	Notify NotifyConfig `mapstructure:"notify"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	// RateLimitPerMinute 鉴权前的单客户端 IP 每分钟请求上限，0 关闭
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
	// 认证身份通用操作限流：窗口内最大请求数与窗口（秒），0 关闭
	IdentityRateLimitRequests      int `mapstructure:"identity_rate_limit_requests"`
	IdentityRateLimitWindowSeconds int `mapstructure:"identity_rate_limit_window_seconds"`
}

// IdentityRateLimitWindow 认证身份限流窗口时长
func (h HTTPConfig) IdentityRateLimitWindow() time.Duration {
	return time.Duration(h.IdentityRateLimitWindowSeconds) * time.Second
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：当前仅支持 mysql
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 是否启用。关闭时限流退化为进程内滑动窗口
	Enabled      bool   `mapstructure:"enabled"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	MaxPoolSize  int    `mapstructure:"max_pool_size"`
	ConnTimeout  int    `mapstructure:"conn_timeout"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// 是否启用。关闭时事件发布与触发消费均不启动
	Enabled bool `mapstructure:"enabled"`
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// Consumer Group ID
	GroupID string `mapstructure:"group_id"`
	// 触发事件监听的主题列表
	TriggerTopics []string `mapstructure:"trigger_topics"`
	// 通知生命周期事件发布的主题
	EventTopic string `mapstructure:"event_topic"`
	// 消费者会话超时（秒）
	SessionTimeout int `mapstructure:"session_timeout"`
	// 生产者最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig 鉴权配置
type AuthConfig struct {
	// JWT 签名密钥，与平台 REST 层共用
	JWTSecret string `mapstructure:"jwt_secret"`
}

// EmailConfig 邮件发送配置
type EmailConfig struct {
	// 是否启用 SMTP 投递。关闭时使用日志发送器
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	// From 发件人地址
	From string `mapstructure:"from"`
	// RecipientDomain 收件地址域名，投递目标为 <user_id>@<domain>
	RecipientDomain string `mapstructure:"recipient_domain"`
}

// NotifyConfig 通知管线配置
type NotifyConfig struct {
	// 低库存默认阈值（商品与商家均未配置时）
	LowStockDefaultThreshold int `mapstructure:"low_stock_default_threshold"`
	// 体积重告警阈值（kg）
	CubicWeightThreshold float64 `mapstructure:"cubic_weight_threshold"`
	// 去重窗口（秒）
	DedupWindowSeconds int `mapstructure:"dedup_window_seconds"`
	// 去重窗口内相同内容最大投递次数
	DedupMaxPerWindow int `mapstructure:"dedup_max_per_window"`
	// 管线限流：创建操作窗口（秒）与窗口内最大请求数
	RateWindowSeconds int `mapstructure:"rate_window_seconds"`
	RateMaxPerWindow  int `mapstructure:"rate_max_per_window"`
	// 超级管理员是否豁免管线限流
	ExemptAdmins bool `mapstructure:"exempt_admins"`
	// WebSocket 单连接入站限流：窗口（秒）与窗口内最大事件数
	RealtimeRateWindowSeconds int `mapstructure:"realtime_rate_window_seconds"`
	RealtimeRateMaxPerWindow  int `mapstructure:"realtime_rate_max_per_window"`
	// 过期通知保留天数（未显式指定 expires_at 时使用）
	RetentionDays int `mapstructure:"retention_days"`
	// 过期清理周期（分钟）
	SweepIntervalMinutes int `mapstructure:"sweep_interval_minutes"`
	// 动作链接允许的源站（相对链接始终放行）。
	// 条目为 "scheme://host" 时精确匹配，仅写主机名时 http 与 https 均放行
	AllowedActionOrigins []string `mapstructure:"allowed_action_origins"`
	// 静默时段默认值（用户未配置时）："HH:MM" 格式，为空表示无默认静默时段
	QuietHoursDefaultStart string `mapstructure:"quiet_hours_default_start"`
	QuietHoursDefaultEnd   string `mapstructure:"quiet_hours_default_end"`
}

// DedupWindow 去重窗口时长
func (n NotifyConfig) DedupWindow() time.Duration {
	return time.Duration(n.DedupWindowSeconds) * time.Second
}

// RateWindow 管线限流窗口时长
func (n NotifyConfig) RateWindow() time.Duration {
	return time.Duration(n.RateWindowSeconds) * time.Second
}

// RealtimeRateWindow WebSocket 入站限流窗口时长
func (n NotifyConfig) RealtimeRateWindow() time.Duration {
	return time.Duration(n.RealtimeRateWindowSeconds) * time.Second
}

// SweepInterval 过期清理周期
func (n NotifyConfig) SweepInterval() time.Duration {
	return time.Duration(n.SweepIntervalMinutes) * time.Minute
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers is required when kafka is enabled")
	}
	if c.Notify.DedupMaxPerWindow <= 0 || c.Notify.DedupWindowSeconds <= 0 {
		return fmt.Errorf("invalid dedup window configuration")
	}
	if c.Notify.RateMaxPerWindow <= 0 || c.Notify.RateWindowSeconds <= 0 {
		return fmt.Errorf("invalid rate limit configuration")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.rate_limit_per_minute", 600)
	v.SetDefault("http.identity_rate_limit_requests", 100)
	v.SetDefault("http.identity_rate_limit_window_seconds", 900)
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("kafka.session_timeout", 10)
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)
	v.SetDefault("kafka.event_topic", "notification.events")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("email.port", 587)
	v.SetDefault("notify.low_stock_default_threshold", 10)
	v.SetDefault("notify.cubic_weight_threshold", 32.0)
	v.SetDefault("notify.dedup_window_seconds", 300)
	v.SetDefault("notify.dedup_max_per_window", 5)
	v.SetDefault("notify.rate_window_seconds", 60)
	v.SetDefault("notify.rate_max_per_window", 50)
	v.SetDefault("notify.exempt_admins", true)
	v.SetDefault("notify.realtime_rate_window_seconds", 60)
	v.SetDefault("notify.realtime_rate_max_per_window", 100)
	v.SetDefault("notify.retention_days", 30)
	v.SetDefault("notify.sweep_interval_minutes", 60)
}
