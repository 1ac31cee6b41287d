package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/devnovikov/algoroom/internal/common/cnst"
)

// ValidationError collects every problem found in one configuration
type ValidationError struct {
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	sb.WriteString("\n\n")
	for _, f := range e.Fields {
		sb.WriteString("--> ")
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	return sb.String()
}

// ValidateServerConfig checks a server configuration after defaults are applied
func ValidateServerConfig(cfg *ServerConfig) error {
	var fields []string

	if cfg.Port <= 0 || cfg.Port > 65535 {
		fields = append(fields, fmt.Sprintf("port: %d is out of range", cfg.Port))
	}

	switch cfg.Database.Type {
	case cnst.StoreTypeMemory, cnst.StoreTypeSQLite, cnst.StoreTypePostgres, cnst.StoreTypeMySQL:
	default:
		fields = append(fields, fmt.Sprintf("database.type: unsupported %q", cfg.Database.Type))
	}

	switch cfg.Relay.Type {
	case cnst.RelayTypeMemory:
	case cnst.RelayTypeRedis:
		if cfg.Relay.Redis.Addr == "" {
			fields = append(fields, "relay.redis.addr: required for redis relay")
		}
		switch cfg.Relay.Redis.ClusterType {
		case cnst.RedisClusterTypeSingle, cnst.RedisClusterTypeCluster:
		case cnst.RedisClusterTypeSentinel:
			if cfg.Relay.Redis.MasterName == "" {
				fields = append(fields, "relay.redis.master_name: required for sentinel")
			}
		default:
			fields = append(fields, fmt.Sprintf("relay.redis.cluster_type: unsupported %q", cfg.Relay.Redis.ClusterType))
		}
	default:
		fields = append(fields, fmt.Sprintf("relay.type: unsupported %q", cfg.Relay.Type))
	}

	if len(fields) > 0 {
		return &ValidationError{Message: "invalid server configuration", Fields: fields}
	}
	return nil
}

// ValidateClientConfig checks a client configuration after defaults are applied
func ValidateClientConfig(cfg *ClientConfig) error {
	var fields []string

	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		fields = append(fields, fmt.Sprintf("server_url: %q is not an http(s) url", cfg.ServerURL))
	}
	if cfg.Reconnect.MaxDelay < cfg.Reconnect.BaseDelay {
		fields = append(fields, "reconnect.max_delay: must not be below base_delay")
	}

	if len(fields) > 0 {
		return &ValidationError{Message: "invalid client configuration", Fields: fields}
	}
	return nil
}
