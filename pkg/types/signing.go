package types

import (
	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
)

// TransactionEntry is one position of a normalized transaction group.
type TransactionEntry struct {
	Decoded              sdktypes.Transaction
	OriginalIndex        int
	EligibleForSignature bool

	// AlreadySigned is set for binary input that decoded as a signed wrapper.
	AlreadySigned bool
}

// SigningBatch is the full ordered group plus the eligibility of each entry.
type SigningBatch struct {
	Entries []TransactionEntry
}

func (b *SigningBatch) Len() int {
	return len(b.Entries)
}

// SelectedIndexes returns the positions selected for signing, ascending.
func (b *SigningBatch) SelectedIndexes() []int {
	indexes := make([]int, 0, len(b.Entries))
	for _, e := range b.Entries {
		if e.EligibleForSignature {
			indexes = append(indexes, e.OriginalIndex)
		}
	}
	return indexes
}

// Transactions returns the decoded transactions in original order.
func (b *SigningBatch) Transactions() []sdktypes.Transaction {
	txns := make([]sdktypes.Transaction, 0, len(b.Entries))
	for _, e := range b.Entries {
		txns = append(txns, e.Decoded)
	}
	return txns
}

// FirstEligible returns the first entry selected for signing.
func (b *SigningBatch) FirstEligible() (*TransactionEntry, bool) {
	for i := range b.Entries {
		if b.Entries[i].EligibleForSignature {
			return &b.Entries[i], true
		}
	}
	return nil, false
}
