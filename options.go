package lexivec

import (
	"time"

	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/config"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	addrs    []string
	username string
	password string

	keyPrefix string
	embedder  Embedder
	logger    *zap.Logger

	capacity              config.CapacityConfig
	filterStringMaxLength int
	maxChunkChars         int
	schemaLockTimeout     time.Duration
}

func defaultClientConfig() *clientConfig {
	return &clientConfig{
		logger: zap.NewNop(),
		capacity: config.CapacityConfig{
			MaxLexicalFieldCount:     100,
			MaxTensorFieldCount:      100,
			MaxStringArrayFieldCount: 100,
		},
		filterStringMaxLength: 50,
		maxChunkChars:         600,
		schemaLockTimeout:     5 * time.Second,
	}
}

// WithRedis sets the Redis connection. password may be empty.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithUsername sets the database username (ACL setups).
func WithUsername(username string) Option {
	return func(c *clientConfig) {
		c.username = username
	}
}

// WithKeyPrefix overrides the store key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *clientConfig) {
		c.keyPrefix = prefix
	}
}

// WithEmbedder sets the embedding provider used for tensor fields.
func WithEmbedder(e Embedder) Option {
	return func(c *clientConfig) {
		c.embedder = e
	}
}

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithFieldLimits sets the per-category schema growth limits for
// semi-structured indexes.
func WithFieldLimits(lexical, tensor, stringArray int) Option {
	return func(c *clientConfig) {
		c.capacity = config.CapacityConfig{
			MaxLexicalFieldCount:     lexical,
			MaxTensorFieldCount:      tensor,
			MaxStringArrayFieldCount: stringArray,
		}
	}
}

// WithFilterStringMaxLength sets the length cap for filterable string copies.
func WithFilterStringMaxLength(n int) Option {
	return func(c *clientConfig) {
		c.filterStringMaxLength = n
	}
}

// WithMaxChunkChars sets the tensor chunking size in characters.
func WithMaxChunkChars(n int) Option {
	return func(c *clientConfig) {
		c.maxChunkChars = n
	}
}

// WithSchemaLockTimeout sets how long a flush waits on the schema lock.
func WithSchemaLockTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.schemaLockTimeout = d
	}
}
