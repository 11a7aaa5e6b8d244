package inMemoryProvider

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// InMemoryProvider is a provider backed by local secp256k1 keys. It emulates a wallet's
// network registry: switching to a chain that was never added fails with the configured
// "unrecognized chain" code.
type InMemoryProvider struct {
	mu sync.Mutex

	keys       map[common.Address]*ecdsa.PrivateKey
	addresses  []common.Address
	chainId    uint64
	registered map[uint64]bool

	rejectSigning    bool
	unregisteredCode int
	calls            []string

	logger *zap.Logger
}

var _ provider.IProvider = (*InMemoryProvider)(nil)

func NewInMemoryProvider(keys []*ecdsa.PrivateKey, initialChainId uint64, logger *zap.Logger) *InMemoryProvider {
	p := &InMemoryProvider{
		keys:             make(map[common.Address]*ecdsa.PrivateKey),
		chainId:          initialChainId,
		registered:       map[uint64]bool{initialChainId: true},
		unregisteredCode: bridgeErrors.CodeUnrecognizedChain,
		logger:           logger,
	}
	for _, k := range keys {
		addr := crypto.PubkeyToAddress(k.PublicKey)
		if _, ok := p.keys[addr]; ok {
			continue
		}
		p.keys[addr] = k
		p.addresses = append(p.addresses, addr)
	}
	return p
}

// NewInMemoryProviderFromHex loads hex encoded private keys, with or without 0x prefix.
func NewInMemoryProviderFromHex(hexKeys []string, initialChainId uint64, logger *zap.Logger) (*InMemoryProvider, error) {
	keys := make([]*ecdsa.PrivateKey, 0, len(hexKeys))
	for i, h := range hexKeys {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(h, "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to load private key %d: %w", i, err)
		}
		keys = append(keys, k)
	}
	return NewInMemoryProvider(keys, initialChainId, logger), nil
}

// SetRejectSigning makes signature requests fail as if the user declined them.
func (p *InMemoryProvider) SetRejectSigning(reject bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejectSigning = reject
}

// SetUnregisteredCode changes the code returned when switching to an unknown chain.
func (p *InMemoryProvider) SetUnregisteredCode(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unregisteredCode = code
}

// RegisterChain marks a chain as known without switching to it.
func (p *InMemoryProvider) RegisterChain(chainId uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registered[chainId] = true
}

func (p *InMemoryProvider) CurrentChainId() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.chainId
}

// Calls returns the methods requested so far, in order.
func (p *InMemoryProvider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.calls...)
}

func (p *InMemoryProvider) Addresses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.addresses))
	for _, a := range p.addresses {
		out = append(out, a.Hex())
	}
	return out
}

func (p *InMemoryProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, method)

	switch method {
	case provider.MethodChainId:
		return json.Marshal(hexutil.Uint64(p.chainId))

	case provider.MethodAccounts, provider.MethodRequestAccounts:
		out := make([]string, 0, len(p.addresses))
		for _, a := range p.addresses {
			out = append(out, a.Hex())
		}
		return json.Marshal(out)

	case provider.MethodSwitchChain:
		id, err := chainIdParam(params)
		if err != nil {
			return nil, err
		}
		if !p.registered[id] {
			return nil, &provider.ProviderError{
				Code:    p.unregisteredCode,
				Message: fmt.Sprintf("Unrecognized chain ID %s", hexutil.EncodeUint64(id)),
			}
		}
		p.chainId = id
		return json.Marshal(nil)

	case provider.MethodAddChain:
		id, err := chainIdParam(params)
		if err != nil {
			return nil, err
		}
		p.registered[id] = true
		p.chainId = id
		p.logger.Sugar().Debugw("Added network", "chainId", id)
		return json.Marshal(nil)

	case provider.MethodSignTypedDataV4:
		return p.signTypedData(params)

	default:
		return nil, &provider.ProviderError{
			Code:    bridgeErrors.CodeUnsupportedMethod,
			Message: fmt.Sprintf("method %s is not supported", method),
		}
	}
}

func chainIdParam(params []interface{}) (uint64, error) {
	if len(params) != 1 {
		return 0, &provider.ProviderError{Code: -32602, Message: "expected exactly one parameter"}
	}
	var sp provider.SwitchChainParams
	if err := provider.DecodeParam(params[0], &sp); err != nil {
		return 0, &provider.ProviderError{Code: -32602, Message: err.Error()}
	}
	id, err := hexutil.DecodeUint64(sp.ChainId)
	if err != nil {
		return 0, &provider.ProviderError{Code: -32602, Message: fmt.Sprintf("invalid chainId %q", sp.ChainId)}
	}
	return id, nil
}

func (p *InMemoryProvider) signTypedData(params []interface{}) (json.RawMessage, error) {
	if len(params) != 2 {
		return nil, &provider.ProviderError{Code: -32602, Message: "expected account and typed data"}
	}
	account, ok := params[0].(string)
	if !ok || !common.IsHexAddress(account) {
		return nil, &provider.ProviderError{Code: -32602, Message: "invalid account parameter"}
	}
	key, ok := p.keys[common.HexToAddress(account)]
	if !ok {
		return nil, &provider.ProviderError{
			Code:    bridgeErrors.CodeUnauthorized,
			Message: fmt.Sprintf("account %s is not managed by this provider", account),
		}
	}
	if p.rejectSigning {
		return nil, &provider.ProviderError{Code: bridgeErrors.CodeUserRejected, Message: "User rejected the request."}
	}

	var td apitypes.TypedData
	if err := provider.DecodeParam(params[1], &td); err != nil {
		return nil, &provider.ProviderError{Code: -32602, Message: fmt.Sprintf("invalid typed data: %v", err)}
	}
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return nil, &provider.ProviderError{Code: -32602, Message: fmt.Sprintf("failed to hash typed data: %v", err)}
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[64] += 27

	return json.Marshal(hexutil.Encode(sig))
}
