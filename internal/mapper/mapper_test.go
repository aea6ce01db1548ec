package mapper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/banksync/internal/model"
)

func net(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func sampleTxn() model.RemoteTransaction {
	return model.RemoteTransaction{
		ID:              "7f687fe6-dcf4-4462-92fa-80335301d9d2",
		CreatedAt:       "2021-03-22T16:08:02+0000",
		Currency:        "CNY",
		Net:             net("100.21"),
		Description:     "deposit to",
		SourceType:      "PAYMENT_ATTEMPT",
		SourceID:        "src-1",
		BatchID:         "batch-1",
		Status:          "PENDING",
		TransactionType: "DEPOSIT",
	}
}

var cnyLedger = &model.LedgerAccount{ID: "Bank CNY", Currency: "CNY"}

func TestMap_Deposit(t *testing.T) {
	rec, err := Map(sampleTxn(), cnyLedger)
	require.NoError(t, err)

	assert.Equal(t, "7f687fe6-dcf4-4462-92fa-80335301d9d2", rec.TransactionID)
	assert.True(t, rec.Deposit.Equal(decimal.RequireFromString("100.21")))
	assert.True(t, rec.Withdrawal.IsZero())
	assert.Equal(t, time.Date(2021, 3, 22, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, model.RecordUnreconciled, rec.Status)
	assert.Equal(t, "CNY", rec.Currency)
	assert.Equal(t, "deposit to", rec.Description)
	assert.Equal(t, "batch-1", rec.ReferenceNumber)
	assert.Equal(t, "DEPOSIT", rec.TransactionType)
	assert.Equal(t, "PAYMENT_ATTEMPT", rec.SourceType)
	assert.Equal(t, "src-1", rec.SourceID)
	assert.Equal(t, "Bank CNY", rec.LinkedAccount)
	assert.NoError(t, rec.Validate())
}

func TestMap_Amounts(t *testing.T) {
	tests := []struct {
		name           string
		net            decimal.NullDecimal
		wantDeposit    string
		wantWithdrawal string
	}{
		{"positive", net("100.21"), "100.21", "0"},
		{"negative", net("-50"), "0", "50"},
		{"zero", net("0"), "0", "0"},
		{"missing", decimal.NullDecimal{}, "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := sampleTxn()
			txn.Net = tt.net
			rec, err := Map(txn, cnyLedger)
			require.NoError(t, err)
			assert.True(t, rec.Deposit.Equal(decimal.RequireFromString(tt.wantDeposit)), "deposit %s", rec.Deposit)
			assert.True(t, rec.Withdrawal.Equal(decimal.RequireFromString(tt.wantWithdrawal)), "withdrawal %s", rec.Withdrawal)
			assert.NoError(t, rec.Validate())
		})
	}
}

func TestMap_CurrencyGating(t *testing.T) {
	tests := []struct {
		name     string
		currency string
		ledger   *model.LedgerAccount
		want     string
	}{
		{"match", "CNY", cnyLedger, "Bank CNY"},
		{"match case-insensitive", "cny", cnyLedger, "Bank CNY"},
		{"mismatch", "CNY", &model.LedgerAccount{ID: "Bank USD", Currency: "USD"}, ""},
		{"empty txn currency", "", cnyLedger, ""},
		{"empty ledger currency", "CNY", &model.LedgerAccount{ID: "Bank", Currency: ""}, ""},
		{"no ledger", "CNY", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txn := sampleTxn()
			txn.Currency = tt.currency
			rec, err := Map(txn, tt.ledger)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rec.LinkedAccount)
		})
	}
}

func TestStatus(t *testing.T) {
	tests := map[string]model.RecordStatus{
		"PENDING":   model.RecordUnreconciled,
		"SETTLED":   model.RecordSettled,
		"settled":   model.RecordSettled,
		"CANCELLED": model.RecordCancelled,
		"UNKNOWN_X": model.RecordUnreconciled,
		"":          model.RecordUnreconciled,
	}
	for in, want := range tests {
		assert.Equal(t, want, Status(in), "Status(%q)", in)
	}
}

func TestMap_DescriptionFallback(t *testing.T) {
	txn := sampleTxn()
	txn.Description = ""
	rec, err := Map(txn, cnyLedger)
	require.NoError(t, err)
	assert.Equal(t, "PAYMENT_ATTEMPT", rec.Description)
}

func TestMap_UnparseableDate(t *testing.T) {
	txn := sampleTxn()
	txn.CreatedAt = "garbage"
	rec, err := Map(txn, cnyLedger)
	require.NoError(t, err)
	assert.True(t, rec.Date.IsZero())
}

func TestMap_EmptyID(t *testing.T) {
	for _, id := range []string{"", "   "} {
		txn := sampleTxn()
		txn.ID = id
		_, err := Map(txn, cnyLedger)
		var mapErr *MappingError
		assert.ErrorAs(t, err, &mapErr, "id %q", id)
	}
}

func TestMap_Deterministic(t *testing.T) {
	a, err := Map(sampleTxn(), cnyLedger)
	require.NoError(t, err)
	b, err := Map(sampleTxn(), cnyLedger)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTypeFilter(t *testing.T) {
	tests := []struct {
		name    string
		include []string
		exclude []string
		txnType string
		want    bool
	}{
		{"no lists", nil, nil, "FEE", true},
		{"excluded", nil, []string{"fee"}, "FEE", false},
		{"not excluded", nil, []string{"FEE"}, "DEPOSIT", true},
		{"included", []string{"DEPOSIT"}, nil, "deposit", true},
		{"not included", []string{"DEPOSIT"}, nil, "FEE", false},
		{"exclude wins", []string{"FEE"}, []string{"FEE"}, "FEE", false},
		{"empty type with include", []string{"DEPOSIT"}, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewTypeFilter(tt.include, tt.exclude).Allows(tt.txnType))
		})
	}

	var nilFilter *TypeFilter
	assert.True(t, nilFilter.Allows("ANY"))
}
