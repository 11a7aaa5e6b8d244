// Package wallet is the adapter a host application talks to. It composes the address
// bridge, chain guard, group processor, signing orchestrator and session reconciler over
// one connector and a shared session store.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Layr-Labs/liquid-signer-go/pkg/addressBridge"
	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/chainGuard"
	"github.com/Layr-Labs/liquid-signer-go/pkg/config"
	"github.com/Layr-Labs/liquid-signer-go/pkg/connector"
	"github.com/Layr-Labs/liquid-signer-go/pkg/ledgerClient"
	"github.com/Layr-Labs/liquid-signer-go/pkg/liquidAccounts"
	"github.com/Layr-Labs/liquid-signer-go/pkg/persistence"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/Layr-Labs/liquid-signer-go/pkg/sessionReconciler"
	"github.com/Layr-Labs/liquid-signer-go/pkg/signingOrchestrator"
	"github.com/Layr-Labs/liquid-signer-go/pkg/txGroup"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// OnConnectHook is told which source address now controls which target address.
type OnConnectHook func(ctx context.Context, sourceAddress string, targetAddress string) error

// UIHooks are optional application callbacks. A nil field falls back to the manager default.
type UIHooks struct {
	OnConnect    OnConnectHook
	OnBeforeSign signingOrchestrator.BeforeSignHook
	OnAfterSign  signingOrchestrator.AfterSignHook
}

// Manager carries what every wallet in the process shares: the session store and the
// default UI hooks.
type Manager struct {
	store        persistence.ISessionPersistence
	defaultHooks UIHooks
	logger       *zap.Logger
}

func NewManager(store persistence.ISessionPersistence, defaultHooks UIHooks, logger *zap.Logger) *Manager {
	return &Manager{
		store:        store,
		defaultHooks: defaultHooks,
		logger:       logger,
	}
}

type Wallet struct {
	cfg     *config.BridgeConfig
	conn    connector.IConnector
	store   persistence.ISessionPersistence
	manager *Manager

	hooksMu sync.RWMutex
	hooks   UIHooks

	bridge       *addressBridge.AddressBridge
	orchestrator *signingOrchestrator.SigningOrchestrator
	reconciler   *sessionReconciler.SessionReconciler

	sdkMu sync.Mutex
	sdk   *liquidAccounts.LiquidAccounts

	ledgerMu sync.Mutex
	ledger   ledgerClient.ILedgerClient

	connecting atomic.Bool
	signing    atomic.Bool

	logger *zap.Logger
}

// NewWallet builds a wallet adapter for cfg on top of conn. Nothing talks to the connector
// or loads the signing SDK until the first operation that needs it.
func (m *Manager) NewWallet(cfg *config.BridgeConfig, conn connector.IConnector) (*Wallet, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bridge config cannot be nil")
	}
	if conn == nil {
		return nil, bridgeErrors.Wrap(bridgeErrors.ErrProviderUnavailable, "newWallet", fmt.Errorf("connector cannot be nil"))
	}
	if m.store == nil {
		return nil, fmt.Errorf("session store cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := m.logger.With(zap.String("walletId", cfg.WalletId), zap.String("connector", conn.Name()))
	w := &Wallet{
		cfg:     cfg,
		conn:    conn,
		store:   m.store,
		manager: m,
		logger:  logger,
	}

	w.bridge = addressBridge.NewAddressBridge(func(ctx context.Context) (addressBridge.IAddressDeriver, error) {
		return w.getSdk(ctx)
	}, logger)

	guard, err := chainGuard.NewChainGuard(&chainGuard.Config{
		Network:           cfg.Network,
		Mode:              cfg.Connector.ChainGuardMode,
		UnregisteredCodes: cfg.Connector.UnregisteredChainCodes,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create chain guard: %w", err)
	}

	w.reconciler = sessionReconciler.NewSessionReconciler(w.bridge, &sessionReconciler.Config{
		AccountOptions:        w.accountOptions(),
		AlwaysRefreshMetadata: cfg.Connector.AlwaysRefreshMetadata,
	}, logger)

	w.orchestrator, err = signingOrchestrator.NewSigningOrchestrator(&signingOrchestrator.Dependencies{
		Processor: txGroup.NewProcessor(logger),
		Lookup:    w.bridge,
		Rebuild:   w.rebuildFromStore,
		Guard:     guard,
		Signer:    &lazySigner{conn: conn},
		GetSdk: func(ctx context.Context) (liquidAccounts.ILiquidAccounts, error) {
			return w.getSdk(ctx)
		},
	}, logger)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// lazySigner initializes the connector's provider on first use, so a wallet restored from
// a stored session signs without reconnecting.
type lazySigner struct {
	conn connector.IConnector
}

func (s *lazySigner) GetProvider(ctx context.Context) (provider.IProvider, error) {
	if err := s.conn.InitializeProvider(ctx); err != nil {
		return nil, err
	}
	return s.conn.GetProvider(ctx)
}

func (s *lazySigner) SignTypedData(ctx context.Context, typedData apitypes.TypedData, account string) ([]byte, error) {
	return s.conn.SignTypedData(ctx, typedData, account)
}

func (w *Wallet) Id() string {
	return w.cfg.WalletId
}

// SetHooks installs instance level hooks. Nil fields keep using the manager defaults.
func (w *Wallet) SetHooks(hooks UIHooks) {
	w.hooksMu.Lock()
	defer w.hooksMu.Unlock()
	w.hooks = hooks
}

func (w *Wallet) resolveHooks() UIHooks {
	w.hooksMu.RLock()
	defer w.hooksMu.RUnlock()

	resolved := w.manager.defaultHooks
	if w.hooks.OnConnect != nil {
		resolved.OnConnect = w.hooks.OnConnect
	}
	if w.hooks.OnBeforeSign != nil {
		resolved.OnBeforeSign = w.hooks.OnBeforeSign
	}
	if w.hooks.OnAfterSign != nil {
		resolved.OnAfterSign = w.hooks.OnAfterSign
	}
	return resolved
}

func (w *Wallet) accountOptions() addressBridge.AccountOptions {
	return addressBridge.AccountOptions{
		WalletLabel:   w.cfg.WalletLabel,
		ConnectorName: w.conn.Name(),
		ConnectorIcon: w.conn.Icon(),
	}
}

// Connect asks the connector for its source addresses, derives one account per address
// and stores the session. A Connect that starts while another is running returns an empty
// result and no error.
func (w *Wallet) Connect(ctx context.Context) ([]types.Account, error) {
	if !w.connecting.CompareAndSwap(false, true) {
		w.logger.Sugar().Debugw("Connect already in progress, ignoring")
		return []types.Account{}, nil
	}
	defer w.connecting.Store(false)

	hooks := w.resolveHooks()

	if err := w.conn.InitializeProvider(ctx); err != nil {
		return nil, err
	}
	p, err := w.conn.GetProvider(ctx)
	if err != nil {
		return nil, err
	}
	sources, err := provider.Accounts(ctx, p, true)
	if err != nil {
		return nil, bridgeErrors.FromProviderError("connect", err)
	}
	if len(sources) == 0 {
		return nil, bridgeErrors.Wrap(bridgeErrors.ErrNoAccountsFound, "connect", nil)
	}

	accounts, err := w.bridge.Derive(ctx, sources, w.accountOptions())
	if err != nil {
		return nil, err
	}

	state := &types.SessionState{Accounts: accounts}
	active := accounts[0]
	state.ActiveAccount = &active
	if err := w.store.AddWallet(w.cfg.WalletId, state); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	w.logger.Sugar().Infow("Wallet connected", "accounts", state.TargetAddresses())

	if hooks.OnConnect != nil {
		if err := hooks.OnConnect(ctx, active.Metadata.SourceAddress, active.TargetAddress); err != nil {
			w.logger.Sugar().Warnw("On connect hook failed", "error", err)
		}
	}
	return accounts, nil
}

// Disconnect clears the address map, drops the stored session and releases the provider.
func (w *Wallet) Disconnect(ctx context.Context) error {
	w.bridge.Clear()
	w.conn.Close()
	if err := w.store.RemoveWallet(w.cfg.WalletId); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}
	w.logger.Sugar().Infow("Wallet disconnected")
	return nil
}

// ResumeSession restores a stored session after a reload. Without a stored session it does
// nothing. Any failure leaves the wallet disconnected.
func (w *Wallet) ResumeSession(ctx context.Context) error {
	persisted, err := w.store.LoadSession(w.cfg.WalletId)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if persisted == nil {
		w.logger.Sugar().Debugw("No stored session to resume")
		return nil
	}

	if err := w.resume(ctx, persisted); err != nil {
		w.logger.Sugar().Errorw("Failed to resume session, disconnecting", "error", err)
		if derr := w.Disconnect(ctx); derr != nil {
			w.logger.Sugar().Warnw("Failed to disconnect after resume failure", "error", derr)
		}
		return err
	}
	return nil
}

func (w *Wallet) resume(ctx context.Context, persisted *types.SessionState) error {
	if err := w.conn.InitializeProvider(ctx); err != nil {
		return err
	}
	p, err := w.conn.GetProvider(ctx)
	if err != nil {
		return err
	}
	sources, err := provider.Accounts(ctx, p, false)
	if err != nil {
		return bridgeErrors.FromProviderError("resume", err)
	}

	accounts, shouldPersist, err := w.reconciler.Resume(ctx, sources, persisted)
	if err != nil {
		return err
	}
	if shouldPersist {
		if err := w.store.SetAccounts(w.cfg.WalletId, accounts); err != nil {
			return fmt.Errorf("failed to refresh stored accounts: %w", err)
		}
	}
	w.logger.Sugar().Infow("Session resumed", "accounts", len(accounts), "refreshed", shouldPersist)
	return nil
}

func (w *Wallet) rebuildFromStore(ctx context.Context) error {
	persisted, err := w.store.LoadSession(w.cfg.WalletId)
	if err != nil {
		return err
	}
	w.reconciler.Rebuild(persisted)
	return nil
}

// SignTransactions signs every position of group sent from one of this wallet's accounts
// and returns nil for the rest. Only one signing request runs at a time per wallet.
func (w *Wallet) SignTransactions(ctx context.Context, group txGroup.Group, indexFilter []int) ([][]byte, error) {
	if !w.signing.CompareAndSwap(false, true) {
		return nil, bridgeErrors.Wrap(bridgeErrors.ErrOperationInProgress, "signTransactions", nil)
	}
	defer w.signing.Store(false)

	state, err := w.store.LoadSession(w.cfg.WalletId)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	hooks := w.resolveHooks()
	return w.orchestrator.SignTransactions(ctx, group, state.TargetAddresses(), indexFilter, signingOrchestrator.Hooks{
		BeforeSign: hooks.OnBeforeSign,
		AfterSign:  hooks.OnAfterSign,
	})
}

func (w *Wallet) Accounts() ([]types.Account, error) {
	state, err := w.store.LoadSession(w.cfg.WalletId)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return []types.Account{}, nil
	}
	return state.Accounts, nil
}

// ActiveAccount returns nil when the wallet is not connected.
func (w *Wallet) ActiveAccount() (*types.Account, error) {
	state, err := w.store.LoadSession(w.cfg.WalletId)
	if err != nil || state == nil {
		return nil, err
	}
	return state.ActiveAccount, nil
}

func (w *Wallet) SetActiveAccount(targetAddress string) error {
	return w.store.SetActiveAccount(w.cfg.WalletId, targetAddress)
}

// Submit sends signed blobs to the ledger as one group and returns the first transaction id.
func (w *Wallet) Submit(ctx context.Context, blobs [][]byte) (string, error) {
	client, err := w.getLedger()
	if err != nil {
		return "", err
	}
	return client.SendRawGroup(ctx, blobs)
}

func (w *Wallet) getSdk(ctx context.Context) (*liquidAccounts.LiquidAccounts, error) {
	w.sdkMu.Lock()
	defer w.sdkMu.Unlock()

	if w.sdk != nil {
		return w.sdk, nil
	}
	sdk, err := liquidAccounts.New(&liquidAccounts.Config{ChainId: uint64(w.cfg.ChainID)}, w.logger)
	if err != nil {
		return nil, err
	}
	w.logger.Sugar().Debugw("Initialized signing sdk", "chainId", w.cfg.ChainID)
	w.sdk = sdk
	return sdk, nil
}

var errLedgerNotConfigured = errors.New("ledger client is not configured")

func (w *Wallet) getLedger() (ledgerClient.ILedgerClient, error) {
	w.ledgerMu.Lock()
	defer w.ledgerMu.Unlock()

	if w.ledger != nil {
		return w.ledger, nil
	}
	if w.cfg.Ledger.AlgodUrl == "" {
		return nil, errLedgerNotConfigured
	}
	client, err := ledgerClient.NewLedgerClient(w.cfg.Ledger.AlgodUrl, w.cfg.Ledger.AlgodToken, w.logger)
	if err != nil {
		return nil, err
	}
	w.ledger = client
	return client, nil
}
