// Package ledgerClient submits signed transaction groups to an algod node.
package ledgerClient

import (
	"bytes"
	"context"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
	"go.uber.org/zap"
)

type ILedgerClient interface {
	SendRawGroup(ctx context.Context, blobs [][]byte) (string, error)
	HealthCheck(ctx context.Context) error
}

type LedgerClient struct {
	algod  *algod.Client
	logger *zap.Logger
}

var _ ILedgerClient = (*LedgerClient)(nil)

func NewLedgerClient(url string, token string, logger *zap.Logger) (*LedgerClient, error) {
	if url == "" {
		return nil, fmt.Errorf("algod url cannot be empty")
	}
	client, err := algod.MakeClient(url, token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}
	return &LedgerClient{algod: client, logger: logger}, nil
}

// SendRawGroup concatenates the non-nil blobs in order and submits them as one group.
// Returns the id of the first transaction.
func (c *LedgerClient) SendRawGroup(ctx context.Context, blobs [][]byte) (string, error) {
	var buf bytes.Buffer
	count := 0
	for _, b := range blobs {
		if b == nil {
			continue
		}
		buf.Write(b)
		count++
	}
	if count == 0 {
		return "", fmt.Errorf("no signed transactions to submit")
	}

	txid, err := c.algod.SendRawTransaction(buf.Bytes()).Do(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction group: %w", err)
	}
	c.logger.Sugar().Infow("Submitted transaction group", "txId", txid, "transactions", count)
	return txid, nil
}

func (c *LedgerClient) HealthCheck(ctx context.Context) error {
	if err := c.algod.HealthCheck().Do(ctx); err != nil {
		return fmt.Errorf("algod health check failed: %w", err)
	}
	return nil
}
