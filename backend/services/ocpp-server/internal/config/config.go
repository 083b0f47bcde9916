package config

import (
	"fmt"
	"strings"
	"time"

	libconfig "github.com/iconnor/ocpp-charge-profile/backend/libs/config"
)

const (
	defaultHTTPPort = "9100"
	defaultOpsPort  = "9101"
)

// Config defines OCPP server configuration.
type Config struct {
	HTTP struct {
		Port string `yaml:"port" env:"OCPP_HTTP_PORT"`
	} `yaml:"http"`
	Ops struct {
		Port      string `yaml:"port" env:"OCPP_OPS_PORT"`
		JWTSecret string `yaml:"jwtSecret" env:"OCPP_OPS_JWT_SECRET"`
	} `yaml:"ops"`
	Database struct {
		DSN          string `yaml:"dsn" env:"OCPP_POSTGRES_DSN"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"OCPP_POSTGRES_MAX_OPEN_CONNS"`
		MaxIdleConns int    `yaml:"maxIdleConns" env:"OCPP_POSTGRES_MAX_IDLE_CONNS"`
	} `yaml:"database"`
	Redis struct {
		Addr       string `yaml:"addr" env:"OCPP_REDIS_ADDR"`
		Password   string `yaml:"password" env:"OCPP_REDIS_PASSWORD"`
		DB         int    `yaml:"db" env:"OCPP_REDIS_DB"`
		PoolSize   int    `yaml:"poolSize" env:"OCPP_REDIS_POOL_SIZE"`
		TTLSeconds int    `yaml:"ttlSeconds" env:"OCPP_REDIS_TTL"`
	} `yaml:"redis"`
	WebSocket struct {
		PingIntervalSeconds int `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL"`
		WriteTimeoutSeconds int `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT"`
		CallTimeoutSeconds  int `yaml:"callTimeoutSeconds" env:"OCPP_CALL_TIMEOUT"`
		ReadTimeoutSeconds  int `yaml:"readTimeoutSeconds" env:"OCPP_READ_TIMEOUT"`
	} `yaml:"websocket"`
	Solar struct {
		URL            string `yaml:"url" env:"SOLAR_URL"`
		TimeoutSeconds int    `yaml:"timeoutSeconds" env:"SOLAR_TIMEOUT"`
		Unit           string `yaml:"unit" env:"SOLAR_UNIT"`
		CacheSeconds   int    `yaml:"cacheSeconds" env:"SOLAR_CACHE_SECONDS"`
	} `yaml:"solar"`
	SmartCharging struct {
		Enabled      bool    `yaml:"enabled" env:"SMART_CHARGING_ENABLED"`
		MinimumLimit float64 `yaml:"minimumLimit" env:"SMART_CHARGING_MINIMUM_LIMIT"`
		TickSeconds  int     `yaml:"tickSeconds" env:"SMART_CHARGING_TICK_SECONDS"`
	} `yaml:"smartCharging"`
	Auth struct {
		ChargePoints map[string]string `yaml:"chargePoints" env:"-"`
	} `yaml:"auth"`
}

// Load uses shared config loader and fills defaults.
func Load() (*Config, error) {
	cfg := Default()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Port = defaultHTTPPort
	cfg.Ops.Port = defaultOpsPort
	cfg.Redis.TTLSeconds = 86400
	cfg.WebSocket.PingIntervalSeconds = 30
	cfg.WebSocket.WriteTimeoutSeconds = 15
	cfg.WebSocket.CallTimeoutSeconds = 30
	cfg.Solar.TimeoutSeconds = 5
	cfg.Solar.Unit = "W"
	cfg.Solar.CacheSeconds = 5
	cfg.SmartCharging.Enabled = true
	cfg.SmartCharging.MinimumLimit = 240
	cfg.SmartCharging.TickSeconds = 5
	return cfg
}

// HTTPAddress returns :port style address of the WebSocket listener.
func (c *Config) HTTPAddress() string {
	return address(c.HTTP.Port, defaultHTTPPort)
}

// OpsAddress returns the ops listener address, empty when disabled.
func (c *Config) OpsAddress() string {
	if strings.TrimSpace(c.Ops.Port) == "" {
		return ""
	}
	return address(c.Ops.Port, defaultOpsPort)
}

func address(port, fallback string) string {
	port = strings.TrimSpace(port)
	if port == "" {
		port = fallback
	}
	if strings.Contains(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// PingInterval returns websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	return seconds(c.WebSocket.PingIntervalSeconds, 30)
}

// WriteTimeout returns websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	return seconds(c.WebSocket.WriteTimeoutSeconds, 15)
}

// ReadTimeout returns how long a session may stay silent, pongs included. It is
// always longer than the ping interval and defaults to two intervals.
func (c *Config) ReadTimeout() time.Duration {
	ping := c.PingInterval()
	if timeout := seconds(c.WebSocket.ReadTimeoutSeconds, 0); timeout > ping {
		return timeout
	}
	return 2 * ping
}

// CallTimeout returns how long an outbound call waits for its response.
func (c *Config) CallTimeout() time.Duration {
	return seconds(c.WebSocket.CallTimeoutSeconds, 30)
}

// RedisTTL returns how long applied profiles are kept.
func (c *Config) RedisTTL() time.Duration {
	return seconds(c.Redis.TTLSeconds, 86400)
}

// SolarURL returns the inverter endpoint, empty for the client default.
func (c *Config) SolarURL() string {
	return strings.TrimSpace(c.Solar.URL)
}

// SolarTimeout returns the inverter request timeout.
func (c *Config) SolarTimeout() time.Duration {
	return seconds(c.Solar.TimeoutSeconds, 5)
}

// SolarCacheTTL returns how long a reading is shared between sessions.
func (c *Config) SolarCacheTTL() time.Duration {
	return seconds(c.Solar.CacheSeconds, 5)
}

// SolarUnit returns the expected unit of solar readings.
func (c *Config) SolarUnit() string {
	if strings.TrimSpace(c.Solar.Unit) == "" {
		return "W"
	}
	return c.Solar.Unit
}

// MinimumLimit returns the floor applied to every charging cap.
func (c *Config) MinimumLimit() float64 {
	if c.SmartCharging.MinimumLimit <= 0 {
		return 240
	}
	return c.SmartCharging.MinimumLimit
}

// TickInterval returns how often sessions check for a new minute.
func (c *Config) TickInterval() time.Duration {
	return seconds(c.SmartCharging.TickSeconds, 5)
}

func seconds(value, fallback int) time.Duration {
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Second
}
