package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TUTORCHAT_API_BASE_URL
const EnvPrefix = "TUTORCHAT"

// Config holds all configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Socket    SocketConfig    `mapstructure:"socket"`
	Store     StoreConfig     `mapstructure:"store"`
	Chat      ChatConfig      `mapstructure:"chat"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Devserver DevserverConfig `mapstructure:"devserver"`
}

// APIConfig holds REST client configuration
type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// SocketConfig holds realtime connection configuration
type SocketConfig struct {
	URL               string        `mapstructure:"url"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	ReconnectDelayMax time.Duration `mapstructure:"reconnect_delay_max"`
	MaxMessageSize    int64         `mapstructure:"max_message_size"`
	WriteWait         time.Duration `mapstructure:"write_wait"`
	PongWait          time.Duration `mapstructure:"pong_wait"`
	PingPeriod        time.Duration `mapstructure:"ping_period"`
	WriteQueueSize    int           `mapstructure:"write_queue_size"`
}

// StoreConfig holds message store configuration
type StoreConfig struct {
	FetchDebounce time.Duration `mapstructure:"fetch_debounce"`
	PageSize      int           `mapstructure:"page_size"`
	SeenCapacity  int           `mapstructure:"seen_capacity"`
}

// ChatConfig holds chat surface configuration
type ChatConfig struct {
	TypingIdleTimeout time.Duration `mapstructure:"typing_idle_timeout"`
}

// AuthConfig holds the credentials used by the CLI
type AuthConfig struct {
	UserId   string `mapstructure:"user_id"`
	Password string `mapstructure:"password"`
	Token    string `mapstructure:"token"`
	// Profile names the cached token entry
	Profile string `mapstructure:"profile"`
}

// RedisConfig holds Redis configuration. An empty host keeps tokens in memory.
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Enabled reports whether a Redis server is configured
func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

// Addr returns the Redis address
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// DevserverConfig holds development server configuration
type DevserverConfig struct {
	HTTPPort        int      `mapstructure:"http_port"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	MaxConnNum      int64    `mapstructure:"max_conn_num"`
	PushChannelSize int      `mapstructure:"push_channel_size"`
	PushWorkerNum   int      `mapstructure:"push_worker_num"`
	Seed            bool     `mapstructure:"seed"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8080")
	v.SetDefault("api.dial_timeout", 10*time.Second)
	v.SetDefault("api.read_timeout", 30*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)

	v.SetDefault("socket.url", "ws://localhost:8080/ws")
	v.SetDefault("socket.connect_timeout", 10*time.Second)
	v.SetDefault("socket.reconnect_delay", time.Second)
	v.SetDefault("socket.reconnect_delay_max", 5*time.Second)
	v.SetDefault("socket.max_message_size", 51200)
	v.SetDefault("socket.write_wait", 10*time.Second)
	v.SetDefault("socket.pong_wait", 30*time.Second)
	v.SetDefault("socket.ping_period", 27*time.Second)
	v.SetDefault("socket.write_queue_size", 256)

	v.SetDefault("store.fetch_debounce", 2*time.Second)
	v.SetDefault("store.page_size", 20)
	v.SetDefault("store.seen_capacity", 4096)

	v.SetDefault("chat.typing_idle_timeout", time.Second)

	v.SetDefault("auth.user_id", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.token", "")
	v.SetDefault("auth.profile", "default")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "tutorchat:")

	v.SetDefault("jwt.secret", "tutorchat-dev-secret")
	v.SetDefault("jwt.expire_hours", 168)

	v.SetDefault("devserver.http_port", 8080)
	v.SetDefault("devserver.allowed_origins", []string{"*"})
	v.SetDefault("devserver.max_conn_num", 10000)
	v.SetDefault("devserver.push_channel_size", 10000)
	v.SetDefault("devserver.push_worker_num", 4)
	v.SetDefault("devserver.seed", true)
}

// Default returns the configuration built from defaults and environment only
func Default() *Config {
	cfg, err := Load("")
	if err != nil {
		// defaults always unmarshal
		panic(err)
	}
	return cfg
}

// Load loads configuration from an optional YAML file. TUTORCHAT_* environment variables
// override file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	if c.Socket.ReconnectDelayMax < c.Socket.ReconnectDelay {
		c.Socket.ReconnectDelayMax = c.Socket.ReconnectDelay
	}
	if c.Socket.PingPeriod >= c.Socket.PongWait {
		c.Socket.PingPeriod = (c.Socket.PongWait * 9) / 10
	}
	if c.Store.PageSize <= 0 {
		c.Store.PageSize = 20
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "tutorchat:"
	}
	if c.Auth.Profile == "" {
		c.Auth.Profile = "default"
	}
	if c.JWT.ExpireHours <= 0 {
		c.JWT.ExpireHours = 168 // 7 days
	}
	if c.Devserver.PushWorkerNum <= 0 {
		c.Devserver.PushWorkerNum = 4
	}
	if c.Devserver.PushChannelSize <= 0 {
		c.Devserver.PushChannelSize = 10000
	}
}
