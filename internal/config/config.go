package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	QUIC     QUICConfig     `mapstructure:"quic"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Auth     AuthConfig     `mapstructure:"auth"`
	IM       IMConfig       `mapstructure:"im"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
}

type ServerConfig struct {
	Addr   string `mapstructure:"addr"`
	NodeID int64  `mapstructure:"node_id"`
}

type QUICConfig struct {
	MaxIdleTimeout        time.Duration `mapstructure:"max_idle_timeout"`
	KeepAlivePeriod       time.Duration `mapstructure:"keep_alive_period"`
	MaxIncomingStreams    int64         `mapstructure:"max_incoming_streams"`
	MaxIncomingUniStreams int64         `mapstructure:"max_incoming_uni_streams"`
	CertFile              string        `mapstructure:"cert_file"`
	KeyFile               string        `mapstructure:"key_file"`
}

type HTTPConfig struct {
	Addr             string   `mapstructure:"addr"`
	Mode             string   `mapstructure:"mode"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type NATSConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	URL           string        `mapstructure:"url"`
	MaxReconnects int           `mapstructure:"max_reconnects"`
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"`
}

type AuthConfig struct {
	TokenSecret string        `mapstructure:"token_secret"`
	TokenExpire time.Duration `mapstructure:"token_expire"`
}

// IMConfig 聊天核心的业务参数
type IMConfig struct {
	// 没有已读标记时使用的默认时间，早于它的消息全部算未读
	EpochDefault string `mapstructure:"epoch_default"`
	// 连接空闲多久后判定超时断开
	SessionIdleTimeout time.Duration `mapstructure:"session_idle_timeout"`
	// 空闲检测周期
	IdleCheckInterval time.Duration `mapstructure:"idle_check_interval"`
	// 消息分发 worker 池
	FanoutWorkers   int `mapstructure:"fanout_workers"`
	FanoutQueueSize int `mapstructure:"fanout_queue_size"`
}

// EpochDefaultTime 解析未读兜底时间，解析失败时退回 Unix 纪元
func (c IMConfig) EpochDefaultTime() time.Time {
	if t, err := time.Parse("2006-01-02", c.EpochDefault); err == nil {
		return t
	}
	return time.Unix(0, 0).UTC()
}

// Load 从指定路径加载配置
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
