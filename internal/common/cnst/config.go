package cnst

// Redis deployment modes understood by the relay
const (
	RedisClusterTypeSingle   = "single"
	RedisClusterTypeSentinel = "sentinel"
	RedisClusterTypeCluster  = "cluster"
)

// Store and relay backends
const (
	StoreTypeMemory   = "memory"
	StoreTypeSQLite   = "sqlite"
	StoreTypePostgres = "postgres"
	StoreTypeMySQL    = "mysql"

	RelayTypeMemory = "memory"
	RelayTypeRedis  = "redis"
)
