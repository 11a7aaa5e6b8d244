package rpcProvider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/provider"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RpcProvider forwards provider requests to a remote wallet over JSON-RPC.
type RpcProvider struct {
	client  *rpc.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ provider.IProvider = (*RpcProvider)(nil)

// NewRpcProvider dials url. requestsPerSecond <= 0 disables throttling.
func NewRpcProvider(ctx context.Context, url string, requestsPerSecond float64, logger *zap.Logger) (*RpcProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet rpc at %s: %w", url, err)
	}
	return NewRpcProviderFromClient(client, requestsPerSecond, logger), nil
}

func NewRpcProviderFromClient(client *rpc.Client, requestsPerSecond float64, logger *zap.Logger) *RpcProvider {
	var limiter *rate.Limiter
	if requestsPerSecond > 0 {
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
	return &RpcProvider{
		client:  client,
		limiter: limiter,
		logger:  logger,
	}
}

func (p *RpcProvider) Request(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: rate limiter: %w", method, err)
		}
	}

	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, method, params...); err != nil {
		if code, ok := bridgeErrors.ErrorCode(err); ok {
			p.logger.Sugar().Debugw("Provider request failed", "method", method, "code", code, "error", err)
			return nil, &provider.ProviderError{Code: code, Message: err.Error()}
		}
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	return result, nil
}

func (p *RpcProvider) Close() {
	p.client.Close()
}
