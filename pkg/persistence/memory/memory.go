package memory

import (
	"sort"
	"sync"

	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of ISessionPersistence.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies data to prevent external mutation.
type MemoryPersistence struct {
	mu sync.RWMutex

	// walletID -> session
	sessions map[string]*types.SessionState

	closed bool
}

var _ persistence.ISessionPersistence = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		sessions: make(map[string]*types.SessionState),
	}
}

// LoadSession retrieves the session for walletID.
func (m *MemoryPersistence) LoadSession(walletID string) (*types.SessionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	return m.sessions[walletID].Copy(), nil
}

// AddWallet creates or replaces the session for walletID.
func (m *MemoryPersistence) AddWallet(walletID string, state *types.SessionState) error {
	if state == nil {
		state = &types.SessionState{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	m.sessions[walletID] = state.Copy()
	return nil
}

func (m *MemoryPersistence) SetAccounts(walletID string, accounts []types.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	existing, ok := m.sessions[walletID]
	if !ok {
		return persistence.ErrWalletNotFound
	}
	m.sessions[walletID] = persistence.ApplyAccounts(existing, accounts)
	return nil
}

func (m *MemoryPersistence) SetActiveAccount(walletID string, targetAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	existing, ok := m.sessions[walletID]
	if !ok {
		return persistence.ErrWalletNotFound
	}
	updated, err := persistence.ApplyActiveAccount(existing, targetAddress)
	if err != nil {
		return err
	}
	m.sessions[walletID] = updated
	return nil
}

// RemoveWallet deletes the session. Idempotent.
func (m *MemoryPersistence) RemoveWallet(walletID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	delete(m.sessions, walletID)
	return nil
}

func (m *MemoryPersistence) ListWallets() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close marks the persistence layer as closed.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
