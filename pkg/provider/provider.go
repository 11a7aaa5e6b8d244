package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// Method names understood by source-chain wallet providers
const (
	MethodChainId         = "eth_chainId"
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
)

// IProvider is an EIP-1193 style request surface.
type IProvider interface {
	Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)
}

// ProviderError is a provider failure carrying a vendor error code.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var _ rpc.Error = (*ProviderError)(nil)

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// SwitchChainParams is the single parameter of wallet_switchEthereumChain.
type SwitchChainParams struct {
	ChainId string `json:"chainId"`
}

// ChainId reads the provider's current network id.
func ChainId(ctx context.Context, p IProvider) (uint64, error) {
	raw, err := p.Request(ctx, MethodChainId)
	if err != nil {
		return 0, err
	}
	var id hexutil.Uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return 0, fmt.Errorf("failed to decode chain id %s: %w", string(raw), err)
	}
	return uint64(id), nil
}

// Accounts enumerates source addresses. When request is true the provider may prompt the
// user to authorize the connection.
func Accounts(ctx context.Context, p IProvider, request bool) ([]string, error) {
	method := MethodAccounts
	if request {
		method = MethodRequestAccounts
	}
	raw, err := p.Request(ctx, method)
	if err != nil {
		return nil, bridgeErrors.FromProviderError(method, err)
	}
	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("failed to decode accounts: %w", err)
	}
	return accounts, nil
}

// SignTypedDataV4 requests an EIP-712 signature over typedData from account.
func SignTypedDataV4(ctx context.Context, p IProvider, account string, typedData apitypes.TypedData) ([]byte, error) {
	payload, err := json.Marshal(typedData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal typed data: %w", err)
	}

	raw, err := p.Request(ctx, MethodSignTypedDataV4, account, string(payload))
	if err != nil {
		return nil, bridgeErrors.FromProviderError(MethodSignTypedDataV4, err)
	}

	var sigHex string
	if err := json.Unmarshal(raw, &sigHex); err != nil {
		return nil, fmt.Errorf("failed to decode signature: %w", err)
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature hex: %w", err)
	}
	return sig, nil
}

// DecodeParam converts a loosely typed request parameter into v.
func DecodeParam(param interface{}, v interface{}) error {
	if s, ok := param.(string); ok {
		if err := json.Unmarshal([]byte(s), v); err == nil {
			return nil
		}
	}
	data, err := json.Marshal(param)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
