// Package txGroup turns caller supplied transaction groups into one flat, ordered sequence
// and decides which positions this wallet has to sign.
//
// A group arrives either as structured transactions or as msgpack encoded blobs, never as a
// mix of both. Either shape may be nested one level (atomic sub-groups); nesting is
// flattened in order. Positions used by index filters and by signing results always refer
// to the flattened sequence.
package txGroup

import (
	"fmt"

	"github.com/Layr-Labs/liquid-signer-go/pkg/bridgeErrors"
	"github.com/Layr-Labs/liquid-signer-go/pkg/types"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"go.uber.org/zap"
)

type Encoding int

const (
	Encoding_Structured Encoding = iota
	Encoding_Encoded
)

func (e Encoding) String() string {
	switch e {
	case Encoding_Structured:
		return "structured"
	case Encoding_Encoded:
		return "encoded"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Group is a transaction group in exactly one encoding. Each element is a sub-group; a flat
// group holds single element sub-groups.
type Group struct {
	encoding   Encoding
	structured [][]sdktypes.Transaction
	encoded    [][][]byte
}

// Structured builds a group from sub-groups of transactions.
func Structured(groups ...[]sdktypes.Transaction) Group {
	return Group{encoding: Encoding_Structured, structured: groups}
}

func StructuredFlat(txns []sdktypes.Transaction) Group {
	groups := make([][]sdktypes.Transaction, 0, len(txns))
	for _, txn := range txns {
		groups = append(groups, []sdktypes.Transaction{txn})
	}
	return Structured(groups...)
}

// Encoded builds a group from sub-groups of msgpack encoded transactions, signed or not.
func Encoded(groups ...[][]byte) Group {
	return Group{encoding: Encoding_Encoded, encoded: groups}
}

func EncodedFlat(blobs [][]byte) Group {
	groups := make([][][]byte, 0, len(blobs))
	for _, b := range blobs {
		groups = append(groups, [][]byte{b})
	}
	return Encoded(groups...)
}

func (g Group) Encoding() Encoding {
	return g.encoding
}

// Len is the number of transactions after flattening.
func (g Group) Len() int {
	n := 0
	if g.encoding == Encoding_Encoded {
		for _, sub := range g.encoded {
			n += len(sub)
		}
		return n
	}
	for _, sub := range g.structured {
		n += len(sub)
	}
	return n
}

// NormalizedTransaction is one decoded position of a flattened group.
type NormalizedTransaction struct {
	Transaction sdktypes.Transaction
	// Signed is true when the position arrived as a signed wrapper carrying signature
	// material.
	Signed bool
}

type ITransactionGroupProcessor interface {
	Normalize(group Group) ([]NormalizedTransaction, error)
	Classify(txns []NormalizedTransaction, ownedAddresses []string, indexFilter []int) *types.SigningBatch
}

type Processor struct {
	logger *zap.Logger
}

var _ ITransactionGroupProcessor = (*Processor)(nil)

func NewProcessor(logger *zap.Logger) *Processor {
	return &Processor{logger: logger}
}

// Normalize flattens group one level and decodes encoded positions.
func (p *Processor) Normalize(group Group) ([]NormalizedTransaction, error) {
	out := make([]NormalizedTransaction, 0, group.Len())

	if group.encoding == Encoding_Structured {
		for _, sub := range group.structured {
			for _, txn := range sub {
				out = append(out, NormalizedTransaction{Transaction: txn})
			}
		}
		return out, nil
	}

	for _, sub := range group.encoded {
		for _, blob := range sub {
			n, err := DecodeBlob(blob)
			if err != nil {
				return nil, bridgeErrors.Wrap(bridgeErrors.ErrInvalidTransactionGroup, "normalize",
					fmt.Errorf("position %d: %w", len(out), err))
			}
			out = append(out, n)
		}
	}
	return out, nil
}

// DecodeBlob probes blob as a signed wrapper first and falls back to a bare transaction.
// The msgpack codec rejects unknown fields, so a bare transaction never decodes as a
// wrapper and vice versa. Anything shaped as a wrapper counts as signed, with or without
// signature material.
func DecodeBlob(blob []byte) (NormalizedTransaction, error) {
	if len(blob) == 0 {
		return NormalizedTransaction{}, fmt.Errorf("empty transaction blob")
	}

	var stx sdktypes.SignedTxn
	if err := msgpack.Decode(blob, &stx); err == nil && stx.Txn.Type != "" {
		return NormalizedTransaction{
			Transaction: stx.Txn,
			Signed:      true,
		}, nil
	}

	var txn sdktypes.Transaction
	if err := msgpack.Decode(blob, &txn); err != nil {
		return NormalizedTransaction{}, fmt.Errorf("blob is neither a signed nor an unsigned transaction: %w", err)
	}
	if txn.Type == "" {
		return NormalizedTransaction{}, fmt.Errorf("transaction has no type")
	}
	return NormalizedTransaction{Transaction: txn}, nil
}

// Classify marks each position eligible when it passes indexFilter, its sender is one of
// ownedAddresses and it is not already signed. A nil indexFilter admits every position; an
// empty non-nil one admits none.
func (p *Processor) Classify(txns []NormalizedTransaction, ownedAddresses []string, indexFilter []int) *types.SigningBatch {
	owned := make(map[string]struct{}, len(ownedAddresses))
	for _, a := range ownedAddresses {
		owned[a] = struct{}{}
	}

	var filter map[int]struct{}
	if indexFilter != nil {
		filter = make(map[int]struct{}, len(indexFilter))
		for _, i := range indexFilter {
			filter[i] = struct{}{}
		}
	}

	batch := &types.SigningBatch{Entries: make([]types.TransactionEntry, 0, len(txns))}
	for i, n := range txns {
		eligible := true
		if filter != nil {
			_, eligible = filter[i]
		}
		if eligible {
			_, eligible = owned[n.Transaction.Sender.String()]
		}
		if n.Signed {
			eligible = false
		}
		batch.Entries = append(batch.Entries, types.TransactionEntry{
			Decoded:              n.Transaction,
			OriginalIndex:        i,
			EligibleForSignature: eligible,
			AlreadySigned:        n.Signed,
		})
	}

	p.logger.Sugar().Debugw("Classified transaction group",
		"size", len(txns),
		"eligible", len(batch.SelectedIndexes()),
	)
	return batch
}
