package synclog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

func testEntry() Entry {
	return Entry{
		Timestamp:     testTime,
		RunID:         "run-1",
		Level:         LevelError,
		Event:         "transaction_error",
		Account:       "acct-1",
		TransactionID: "txn-1",
		Details:       "mapping transaction txn-1: transaction has no id",
	}
}

func TestAppend_NewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "transaction_error", entries[0].Event)
}

func TestAppend_ExistingFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	e2 := testEntry()
	e2.Level = LevelInfo
	e2.Event = "run_finished"
	e2.TransactionID = ""
	require.NoError(t, Append(dir, []Entry{e2}))

	entries, err := Read(dir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, LevelError, entries[0].Level)
	assert.Equal(t, "run_finished", entries[1].Event)
	assert.Empty(t, entries[1].TransactionID)
}

func TestAppend_CreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs", "nested")
	require.NoError(t, Append(dir, []Entry{testEntry()}))

	info, err := os.Stat(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestRead_NotFound(t *testing.T) {
	entries, err := Read(t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestRead_HeaderOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(Header+"\n"), 0o644))

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestMarshalUnmarshal(t *testing.T) {
	e := testEntry()
	e.Details = "quoted, \"details\"\nwith newline"
	row := MarshalEntry(e)
	assert.Len(t, row, 7)
	assert.Equal(t, "2025-01-15T10:30:00Z", row[0])

	got, err := UnmarshalEntry(row)
	require.NoError(t, err)
	assert.True(t, e.Timestamp.Equal(got.Timestamp))
	assert.Equal(t, e.Details, got.Details)
	assert.Equal(t, e.Account, got.Account)
}

func TestMarshalEntry_TruncatesDetails(t *testing.T) {
	e := testEntry()
	e.Details = strings.Repeat("x", 5000)
	row := MarshalEntry(e)
	assert.Len(t, row[6], 2003)
}

func TestUnmarshalEntry_BadFieldCount(t *testing.T) {
	_, err := UnmarshalEntry([]string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 fields")
}

func TestWriter_Concurrent(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := testEntry()
			e.TransactionID = fmt.Sprintf("txn-%d", i)
			assert.NoError(t, w.Write(e))
		}(i)
	}
	wg.Wait()

	entries, err := Read(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}
