package engine

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/zzzchinguun/holdem-server/internal/models"
)

// TableManager owns the live tables of one process. Lookups take the read
// lock; table creation and teardown take the write lock. Per-table state
// is guarded by each table's own game mutex, never by the manager lock.
type TableManager struct {
	mu       sync.RWMutex
	tables   map[string]*Table
	clock    quartz.Clock
	logger   *log.Logger
	onEvent  func(models.Event)
	recorder HandRecorder
}

// SetRecorder attaches a hand history sink applied to every table created
// afterwards.
func (m *TableManager) SetRecorder(r HandRecorder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorder = r
}

func NewTableManager(clock quartz.Clock, logger *log.Logger, onEvent func(models.Event)) *TableManager {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &TableManager{
		tables:  make(map[string]*Table),
		clock:   clock,
		logger:  logger,
		onEvent: onEvent,
	}
}

// CreateTable registers a new table. An empty tableID gets a generated one.
func (m *TableManager) CreateTable(tableID string, config models.TableConfig) (*Table, error) {
	if tableID == "" {
		tableID = uuid.New().String()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tables[tableID]; exists {
		return nil, ErrTableExists
	}

	logger := m.logger.With("table", tableID)
	table := NewTable(tableID, config, m.clock, logger, m.onEvent)
	if m.recorder != nil {
		table.SetRecorder(m.recorder)
	}
	m.tables[tableID] = table
	logger.Info("table created",
		"smallBlind", config.SmallBlind,
		"bigBlind", config.BigBlind,
		"maxPlayers", config.MaxPlayers)
	return table, nil
}

func (m *TableManager) GetTable(tableID string) (*Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	table, ok := m.tables[tableID]
	if !ok {
		return nil, ErrTableNotFound
	}
	return table, nil
}

// GetOrCreateTable returns the named table, creating it with config on
// first reference. Used by join handlers so the first player to name a
// table brings it up.
func (m *TableManager) GetOrCreateTable(tableID string, config models.TableConfig) (*Table, error) {
	if table, err := m.GetTable(tableID); err == nil {
		return table, nil
	}
	table, err := m.CreateTable(tableID, config)
	if err == ErrTableExists {
		// Lost the race to another creator.
		return m.GetTable(tableID)
	}
	return table, err
}

// DestroyTable stops a table's timers and forgets it.
func (m *TableManager) DestroyTable(tableID string) error {
	m.mu.Lock()
	table, ok := m.tables[tableID]
	if ok {
		delete(m.tables, tableID)
	}
	m.mu.Unlock()

	if !ok {
		return ErrTableNotFound
	}
	table.Stop()
	m.logger.Info("table destroyed", "table", tableID)
	return nil
}

// TableIDs lists the currently registered tables.
func (m *TableManager) TableIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	return ids
}

// Shutdown stops every table. Called once on process exit.
func (m *TableManager) Shutdown() {
	m.mu.Lock()
	tables := make([]*Table, 0, len(m.tables))
	for _, t := range m.tables {
		tables = append(tables, t)
	}
	m.tables = make(map[string]*Table)
	m.mu.Unlock()

	for _, t := range tables {
		t.Stop()
	}
}
