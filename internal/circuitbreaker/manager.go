package circuitbreaker

import (
	"context"
	"sort"
	"sync"

	"urlconn/internal/common/logging"
)

// Manager hands out one breaker per dial address. It is shared by every
// connection a handler opens and is safe for concurrent use.
type Manager struct {
	config   Config
	breakers map[string]*Breaker
	logger   logging.Logger
	mu       sync.Mutex
}

// NewManager creates a manager whose breakers all use config
func NewManager(config Config, logger logging.Logger) *Manager {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	return &Manager{
		config:   config,
		breakers: make(map[string]*Breaker),
		logger:   logger,
	}
}

// GetOrCreate returns the breaker for address, creating it on first use
func (m *Manager) GetOrCreate(address string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()

	if breaker, exists := m.breakers[address]; exists {
		return breaker
	}

	breaker := New(address, m.config, m.logger)
	m.breakers[address] = breaker
	return breaker
}

// Execute runs fn behind the breaker for address
func (m *Manager) Execute(ctx context.Context, address string, fn func() error) error {
	return m.GetOrCreate(address).Execute(ctx, fn)
}

// AllStats returns statistics for all breakers, ordered by name
func (m *Manager) AllStats() []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make([]Stats, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		stats = append(stats, breaker.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}
