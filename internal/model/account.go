package model

// LedgerAccount is the local bank account that synced records are attributed to.
type LedgerAccount struct {
	ID       string
	Currency string // ISO-4217, e.g. "USD"
}

// RemoteAccount is one configured credential set for the payments API.
// Accounts are processed in configuration order.
type RemoteAccount struct {
	AccountID string
	SecretKey string
	Ledger    LedgerAccount
}
