package exchange

import (
	"context"
	"log"
	"sync"
)

// Manager coordinates multiple exchange connections, keyed by name.
// Lookups take a read lock so they are never blocked by slow network calls
// made during ConnectAll/DisconnectAll.
type Manager struct {
	mu        sync.RWMutex
	exchanges map[string]Exchange
}

// NewManager creates an empty Manager
func NewManager() *Manager {
	return &Manager{
		exchanges: make(map[string]Exchange),
	}
}

// Register adds an exchange to the manager. Registering a name that already
// exists replaces the previous instance.
func (m *Manager) Register(ex Exchange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log.Printf("[Manager] Registering exchange %s", ex.Name())
	m.exchanges[ex.Name()] = ex
}

// Unregister removes an exchange by name
func (m *Manager) Unregister(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.exchanges[name]; !ok {
		log.Printf("[Manager] Attempted to unregister unknown exchange %s", name)
		return NewInternalError("exchange %s not found", name)
	}
	delete(m.exchanges, name)
	log.Printf("[Manager] Unregistered exchange %s", name)
	return nil
}

// Get returns the exchange registered under name, or nil if absent
func (m *Manager) Get(name string) Exchange {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.exchanges[name]
}

// List returns the names of all registered exchanges
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.exchanges))
	for name := range m.exchanges {
		names = append(names, name)
	}
	return names
}

// ConnectAll connects every registered exchange. It stops at the first
// failure and returns that error.
func (m *Manager) ConnectAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ex := range m.exchanges {
		log.Printf("[Manager] Connecting to %s", name)
		if err := ex.Connect(ctx); err != nil {
			log.Printf("[Manager] Failed to connect to %s: %v", name, err)
			return err
		}
	}
	return nil
}

// DisconnectAll disconnects every registered exchange. Individual failures
// are logged and skipped so that every exchange gets a teardown attempt.
func (m *Manager) DisconnectAll(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for name, ex := range m.exchanges {
		log.Printf("[Manager] Disconnecting from %s", name)
		if err := ex.Disconnect(ctx); err != nil {
			log.Printf("[Manager] Failed to disconnect from %s: %v", name, err)
		}
	}
	return nil
}

// Status returns the connected flag of every registered exchange
func (m *Manager) Status() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status := make(map[string]bool, len(m.exchanges))
	for name, ex := range m.exchanges {
		status[name] = ex.IsConnected()
	}
	return status
}
