package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/devnovikov/algoroom/internal/common/cnst"
	"github.com/devnovikov/algoroom/pkg/trace"
)

type (
	// ServerConfig is the configuration of `algoroom serve`
	ServerConfig struct {
		Port     int            `yaml:"port"`
		PID      string         `yaml:"pid"`
		Logger   LoggerConfig   `yaml:"logger"`
		Database DatabaseConfig `yaml:"database"`
		Relay    RelayConfig    `yaml:"relay"`
		Hub      HubConfig      `yaml:"hub"`
		CORS     CORSConfig     `yaml:"cors"`
		Metrics  MetricsConfig  `yaml:"metrics"`
		Tracing  trace.Config   `yaml:"tracing"`
	}

	DatabaseConfig struct {
		Type     string `yaml:"type"`     // memory, sqlite, postgres, mysql
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}

	// HubConfig tunes the per-connection write path
	HubConfig struct {
		SendQueueSize int           `yaml:"send_queue_size"`
		WriteTimeout  time.Duration `yaml:"write_timeout"`
		PingInterval  time.Duration `yaml:"ping_interval"`
		ReadLimit     int64         `yaml:"read_limit"`
	}

	// RelayConfig selects how updates reach endpoints held by other instances
	RelayConfig struct {
		Type  string           `yaml:"type"` // memory or redis
		Redis RelayRedisConfig `yaml:"redis"`
	}

	RelayRedisConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, sentinel, cluster
		Addr        string `yaml:"addr"`         // comma or semicolon separated for sentinel/cluster
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Topic       string `yaml:"topic"`
	}
)

// SetDefaults fills zero values
func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.Database.Type == "" {
		c.Database.Type = cnst.StoreTypeMemory
	}
	if c.Relay.Type == "" {
		c.Relay.Type = cnst.RelayTypeMemory
	}
	if c.Relay.Redis.ClusterType == "" {
		c.Relay.Redis.ClusterType = cnst.RedisClusterTypeSingle
	}
	if c.Relay.Redis.Topic == "" {
		c.Relay.Redis.Topic = "algoroom:updates"
	}
	if c.Hub.SendQueueSize <= 0 {
		c.Hub.SendQueueSize = 64
	}
	if c.Hub.WriteTimeout <= 0 {
		c.Hub.WriteTimeout = 10 * time.Second
	}
	if c.Hub.PingInterval <= 0 {
		c.Hub.PingInterval = 30 * time.Second
	}
	if c.Hub.ReadLimit <= 0 {
		c.Hub.ReadLimit = 4096
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	if len(c.CORS.AllowMethods) == 0 {
		c.CORS.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(c.CORS.AllowHeaders) == 0 {
		c.CORS.AllowHeaders = []string{"Content-Type", "X-Client-Id", "X-Trace-Id"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "algoroom"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = cnst.AppName
	}
}

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() string {
	switch c.Type {
	case cnst.StoreTypePostgres:
		return c.getPostgresDSN()
	case cnst.StoreTypeMySQL:
		return c.getMySQLDSN()
	case cnst.StoreTypeSQLite:
		if c.DBName == "" || c.DBName == ":memory:" {
			return ":memory:"
		}
		// Ensure the directory for the SQLite database exists.
		// If the directory cannot be created, it's a fatal error.
		if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
			panic(fmt.Errorf("failed to create directory for sqlite database: %w", err))
		}
		return c.DBName // For SQLite, DBName is the file path
	default:
		return ""
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
