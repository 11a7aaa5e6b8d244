package types

// AccountMetadata is the payload persisted alongside each derived account. SourceAddress
// is the only field the bridge needs to rebuild its address map after a reload.
type AccountMetadata struct {
	SourceAddress string `json:"sourceAddress"`
	ConnectorName string `json:"connectorName,omitempty"`
	ConnectorIcon string `json:"connectorIcon,omitempty"`
}

// Account is a target-ledger account controlled by a source (EVM) key.
type Account struct {
	DisplayName   string          `json:"name"`
	TargetAddress string          `json:"address"`
	Metadata      AccountMetadata `json:"metadata"`
}

// SessionState is the per-wallet record held by the session store.
type SessionState struct {
	Accounts      []Account `json:"accounts"`
	ActiveAccount *Account  `json:"activeAccount,omitempty"`
}

// TargetAddresses returns the target addresses of all accounts in order.
func (s *SessionState) TargetAddresses() []string {
	if s == nil {
		return nil
	}
	addrs := make([]string, 0, len(s.Accounts))
	for _, a := range s.Accounts {
		addrs = append(addrs, a.TargetAddress)
	}
	return addrs
}

// Copy returns a deep copy so store implementations can hand out state without aliasing.
func (s *SessionState) Copy() *SessionState {
	if s == nil {
		return nil
	}
	out := &SessionState{
		Accounts: make([]Account, len(s.Accounts)),
	}
	copy(out.Accounts, s.Accounts)
	if s.ActiveAccount != nil {
		active := *s.ActiveAccount
		out.ActiveAccount = &active
	}
	return out
}
