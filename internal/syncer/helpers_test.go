package syncer

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/banksync/internal/model"
	"github.com/cleared-dev/banksync/internal/remote"
	"github.com/cleared-dev/banksync/internal/store"
)

var testNow = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

var testWindow = model.SyncWindow{From: testNow.Add(-24 * time.Hour), To: testNow}

func testClock() time.Time { return testNow }

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "banksync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	s.SetClock(testClock)
	return s
}

func account(accountID, currency string) model.RemoteAccount {
	return model.RemoteAccount{
		AccountID: accountID,
		SecretKey: "secret-" + accountID,
		Ledger:    model.LedgerAccount{ID: "Bank " + currency, Currency: currency},
	}
}

func txn(txnID, net string) model.RemoteTransaction {
	return model.RemoteTransaction{
		ID:         txnID,
		CreatedAt:  "2025-01-15T08:00:00+0000",
		Currency:   "USD",
		Net:        decimal.NewNullDecimal(decimal.RequireFromString(net)),
		SourceType: "PAYMENT",
		Status:     "SETTLED",
	}
}

// fakeFetcher serves fixed pages per account.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string][]remote.Page
	errs   map[string]error
	calls  map[string]int
	before func(account model.RemoteAccount, pageNum int)
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages: map[string][]remote.Page{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, account model.RemoteAccount, _ model.SyncWindow, pageNum, _ int) (remote.Page, error) {
	if f.before != nil {
		f.before(account, pageNum)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[account.AccountID]++
	if err := f.errs[account.AccountID]; err != nil {
		return remote.Page{}, err
	}
	pages := f.pages[account.AccountID]
	if pageNum >= len(pages) {
		return remote.Page{}, nil
	}
	return pages[pageNum], nil
}

func (f *fakeFetcher) callCount(accountID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[accountID]
}
