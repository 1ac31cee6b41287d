package config

import "time"

type (
	// ClientConfig is the configuration of `algoroom join`
	ClientConfig struct {
		ServerURL      string          `yaml:"server_url" mapstructure:"server_url"`
		Debounce       time.Duration   `yaml:"debounce" mapstructure:"debounce"`
		RequestTimeout time.Duration   `yaml:"request_timeout" mapstructure:"request_timeout"`
		Reconnect      ReconnectConfig `yaml:"reconnect" mapstructure:"reconnect"`
		Logger         LoggerConfig    `yaml:"logger" mapstructure:"logger"`
	}

	// ReconnectConfig is the transport's retry policy
	ReconnectConfig struct {
		BaseDelay        time.Duration `yaml:"base_delay" mapstructure:"base_delay"`
		MaxDelay         time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
		MaxJitter        time.Duration `yaml:"max_jitter" mapstructure:"max_jitter"`
		MaxAttempts      int           `yaml:"max_attempts" mapstructure:"max_attempts"`
		HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout"`
		// ReadTimeout closes a connection that stays silent this long; keep it
		// above the server's ping interval
		ReadTimeout time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	}
)

// DefaultClientConfig returns a client config with every default applied
func DefaultClientConfig() ClientConfig {
	var c ClientConfig
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values
func (c *ClientConfig) SetDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8000"
	}
	if c.Debounce <= 0 {
		c.Debounce = 500 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.Logger.Format == "" {
		c.Logger.Format = "console"
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "warn"
	}
	c.Reconnect.SetDefaults()
}

// SetDefaults fills zero values
func (c *ReconnectConfig) SetDefaults() {
	if c.BaseDelay <= 0 {
		c.BaseDelay = time.Second
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 30 * time.Second
	}
	if c.MaxJitter <= 0 {
		c.MaxJitter = time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 60 * time.Second
	}
}
