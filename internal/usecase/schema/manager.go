// Package schema implements append-only schema growth for semi-structured
// indexes: field registration with capacity limits and a once-per-batch flush.
package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lexivec/lexivec/internal/config"
	"github.com/lexivec/lexivec/internal/db"
	"github.com/lexivec/lexivec/internal/domain"
	"github.com/lexivec/lexivec/internal/domain/index"
	"github.com/lexivec/lexivec/internal/metrics"
)

// Field categories used in capacity errors and metrics labels.
const (
	CategoryLexical     = "lexical"
	CategoryTensor      = "tensor"
	CategoryStringArray = "string_array"
)

const lockTTL = 30 * time.Second

// Manager tracks schema growth for one index over one ingestion batch. It is
// batch-scoped and not safe for concurrent use; each batch builds its own
// Manager around its own Index clone.
type Manager struct {
	idx      *index.Index
	repo     Persister
	cache    Refresher
	locker   Locker
	capacity config.CapacityConfig

	lockTimeout time.Duration
	dirty       bool
	logger      *zap.Logger
}

// NewManager creates a batch-scoped schema manager.
func NewManager(
	idx *index.Index,
	repo Persister,
	cache Refresher,
	locker Locker,
	capacity config.CapacityConfig,
	lockTimeout time.Duration,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		idx:         idx,
		repo:        repo,
		cache:       cache,
		locker:      locker,
		capacity:    capacity,
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Index returns the schema being grown.
func (m *Manager) Index() *index.Index { return m.idx }

// Dirty reports whether unflushed growth exists.
func (m *Manager) Dirty() bool { return m.dirty }

// RegisterLexicalField ensures a lexical field exists in the schema,
// registering it if the index has room. Registration is idempotent.
func (m *Manager) RegisterLexicalField(name string) error {
	if _, ok := m.idx.FieldMap()[name]; ok {
		return nil
	}
	count := len(m.idx.LexicalFields())
	if count >= m.capacity.MaxLexicalFieldCount {
		return m.capacityError(name, CategoryLexical, count,
			m.capacity.MaxLexicalFieldCount, config.EnvMaxLexicalFieldCount)
	}

	m.idx.AppendLexicalField(index.NewLexicalField(name))
	m.markDirty(name, CategoryLexical)
	return nil
}

// RegisterTensorField ensures a tensor field exists in the schema.
func (m *Manager) RegisterTensorField(name string) error {
	if _, ok := m.idx.TensorFieldMap()[name]; ok {
		return nil
	}
	count := len(m.idx.TensorFields())
	if count >= m.capacity.MaxTensorFieldCount {
		return m.capacityError(name, CategoryTensor, count,
			m.capacity.MaxTensorFieldCount, config.EnvMaxTensorFieldCount)
	}

	m.idx.AppendTensorField(index.NewTensorField(name))
	m.markDirty(name, CategoryTensor)
	return nil
}

// RegisterStringArrayField ensures a string-array field exists in the schema.
func (m *Manager) RegisterStringArrayField(name string) error {
	if _, ok := m.idx.StringArrayFieldMap()[name]; ok {
		return nil
	}
	count := len(m.idx.StringArrayFields())
	if count >= m.capacity.MaxStringArrayFieldCount {
		return m.capacityError(name, CategoryStringArray, count,
			m.capacity.MaxStringArrayFieldCount, config.EnvMaxStringArrayFieldCount)
	}

	m.idx.AppendStringArrayField(index.NewStringArrayField(name))
	m.markDirty(name, CategoryStringArray)
	return nil
}

// Flush persists accumulated growth under the schema lock and refreshes the
// shared cache so later batches observe the new fields. A clean manager is a
// no-op. Lock timeout is fatal for the whole batch.
func (m *Manager) Flush(ctx context.Context) error {
	if !m.dirty {
		metrics.SchemaFlushesTotal.WithLabelValues(m.idx.Name(), "noop").Inc()
		return nil
	}

	lockName := "schema:" + m.idx.Name()
	token, err := m.locker.AcquireLock(ctx, lockName, lockTTL, m.lockTimeout)
	if err != nil {
		metrics.SchemaFlushesTotal.WithLabelValues(m.idx.Name(), "error").Inc()
		if errors.Is(err, db.ErrLockTimeout) {
			return fmt.Errorf("acquire schema lock for %s: %w", m.idx.Name(), domain.ErrLockTimeout)
		}
		return fmt.Errorf("acquire schema lock for %s: %w", m.idx.Name(), err)
	}
	defer func() {
		if relErr := m.locker.ReleaseLock(ctx, lockName, token); relErr != nil {
			m.logger.Warn("Failed to release schema lock",
				zap.String("index", m.idx.Name()), zap.Error(relErr))
		}
	}()

	if err := m.repo.Persist(ctx, m.idx); err != nil {
		metrics.SchemaFlushesTotal.WithLabelValues(m.idx.Name(), "error").Inc()
		return fmt.Errorf("persist schema for %s: %w", m.idx.Name(), err)
	}

	if _, err := m.cache.ForceRefresh(ctx, m.idx.Name()); err != nil {
		// The write succeeded; a refresh failure only delays visibility.
		m.logger.Warn("Failed to refresh schema cache after flush",
			zap.String("index", m.idx.Name()), zap.Error(err))
	}

	m.dirty = false
	metrics.SchemaFlushesTotal.WithLabelValues(m.idx.Name(), "ok").Inc()
	m.logger.Info("Flushed schema growth",
		zap.String("index", m.idx.Name()), zap.Int("version", m.idx.Version()))
	return nil
}

func (m *Manager) markDirty(name, category string) {
	m.dirty = true
	metrics.SchemaFieldsAddedTotal.WithLabelValues(m.idx.Name(), category).Inc()
	m.logger.Debug("Registered schema field",
		zap.String("index", m.idx.Name()),
		zap.String("field", name),
		zap.String("category", category))
}

func (m *Manager) capacityError(field, category string, count, limit int, envVar string) error {
	return &domain.CapacityError{
		Index:    m.idx.Name(),
		Field:    field,
		Category: category,
		Count:    count,
		Limit:    limit,
		EnvVar:   envVar,
	}
}

// IsCapacityError reports whether err is a rejected schema growth attempt.
func IsCapacityError(err error) bool {
	return errors.Is(err, domain.ErrTooManyFields)
}
