package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_SessionState_Copy(t *testing.T) {
	orig := &SessionState{
		Accounts: []Account{
			{DisplayName: "a", TargetAddress: "T1", Metadata: AccountMetadata{SourceAddress: "0x1"}},
			{DisplayName: "b", TargetAddress: "T2", Metadata: AccountMetadata{SourceAddress: "0x2"}},
		},
	}
	orig.ActiveAccount = &orig.Accounts[0]

	cp := orig.Copy()
	cp.Accounts[0].DisplayName = "changed"
	cp.ActiveAccount.TargetAddress = "changed"

	assert.Equal(t, "a", orig.Accounts[0].DisplayName)
	assert.Equal(t, "T1", orig.ActiveAccount.TargetAddress)
	assert.Equal(t, []string{"T1", "T2"}, orig.TargetAddresses())

	var nilState *SessionState
	assert.Nil(t, nilState.Copy())
	assert.Nil(t, nilState.TargetAddresses())
}

func Test_SigningBatch(t *testing.T) {
	batch := &SigningBatch{Entries: []TransactionEntry{
		{OriginalIndex: 0, EligibleForSignature: true},
		{OriginalIndex: 1},
		{OriginalIndex: 2, EligibleForSignature: true},
	}}

	assert.Equal(t, 3, batch.Len())
	assert.Equal(t, []int{0, 2}, batch.SelectedIndexes())
	assert.Len(t, batch.Transactions(), 3)

	first, ok := batch.FirstEligible()
	assert.True(t, ok)
	assert.Equal(t, 0, first.OriginalIndex)

	empty := &SigningBatch{Entries: []TransactionEntry{{OriginalIndex: 0}}}
	_, ok = empty.FirstEligible()
	assert.False(t, ok)
	assert.Empty(t, empty.SelectedIndexes())
}
