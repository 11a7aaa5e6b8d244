package persistence

import (
	"errors"

	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
)

var (
	ErrClosed          = errors.New("persistence layer is closed")
	ErrWalletNotFound  = errors.New("wallet session not found")
	ErrAccountNotFound = errors.New("account not found in wallet session")
)

// ISessionPersistence stores one SessionState per wallet id.
// All implementations must be thread-safe; several wallet adapters may share one store.
type ISessionPersistence interface {
	// LoadSession returns the session for walletID.
	// Returns nil if the wallet has no session, error only on storage failure.
	LoadSession(walletID string) (*types.SessionState, error)

	// AddWallet creates or replaces the session for walletID.
	AddWallet(walletID string, state *types.SessionState) error

	// SetAccounts replaces the accounts of an existing session. The active account is kept
	// when it is still among accounts, otherwise the first account becomes active.
	// Returns ErrWalletNotFound if walletID has no session.
	SetAccounts(walletID string, accounts []types.Account) error

	// SetActiveAccount marks the account with targetAddress active.
	// Returns ErrWalletNotFound or ErrAccountNotFound.
	SetActiveAccount(walletID string, targetAddress string) error

	// RemoveWallet deletes the session. Idempotent.
	RemoveWallet(walletID string) error

	// ListWallets returns the ids of all stored sessions, sorted.
	ListWallets() ([]string, error)

	// Close cleanly shuts down the persistence layer.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck verifies the persistence layer is operational.
	HealthCheck() error
}

// ApplyAccounts returns a copy of state holding accounts, with the active account carried
// over when it is still present.
func ApplyAccounts(state *types.SessionState, accounts []types.Account) *types.SessionState {
	out := &types.SessionState{Accounts: append([]types.Account{}, accounts...)}
	if len(out.Accounts) == 0 {
		return out
	}

	if state != nil && state.ActiveAccount != nil {
		for _, a := range out.Accounts {
			if a.TargetAddress == state.ActiveAccount.TargetAddress {
				active := a
				out.ActiveAccount = &active
				return out
			}
		}
	}
	active := out.Accounts[0]
	out.ActiveAccount = &active
	return out
}

// ApplyActiveAccount returns a copy of state with targetAddress active.
func ApplyActiveAccount(state *types.SessionState, targetAddress string) (*types.SessionState, error) {
	out := state.Copy()
	for _, a := range out.Accounts {
		if a.TargetAddress == targetAddress {
			active := a
			out.ActiveAccount = &active
			return out, nil
		}
	}
	return nil, ErrAccountNotFound
}
