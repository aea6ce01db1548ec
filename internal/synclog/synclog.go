// Package synclog is the durable CSV record of sync runs: one row per run
// boundary, account failure, and transaction error.
package synclog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level classifies an entry.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Entry is one row in the sync log.
type Entry struct {
	Timestamp     time.Time
	RunID         string
	Level         Level
	Event         string
	Account       string
	TransactionID string
	Details       string
}

// Header is the CSV header for sync-log.csv.
const Header = "timestamp,run_id,level,event,account,transaction_id,details"

// FileName is the log file name inside the log directory.
const FileName = "sync-log.csv"

const (
	numFields  = 7
	colTime    = 0
	colRunID   = 1
	colLevel   = 2
	colEvent   = 3
	colAccount = 4
	colTxnID   = 5
	colDetails = 6
	maxDetails = 2000
	timeLayout = time.RFC3339
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTime] = e.Timestamp.UTC().Format(timeLayout)
	row[colRunID] = e.RunID
	row[colLevel] = string(e.Level)
	row[colEvent] = e.Event
	row[colAccount] = e.Account
	row[colTxnID] = e.TransactionID
	row[colDetails] = e.Details
	if len(row[colDetails]) > maxDetails {
		row[colDetails] = row[colDetails][:maxDetails] + "..."
	}
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}
	ts, err := time.Parse(timeLayout, record[colTime])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTime], err)
	}
	return Entry{
		Timestamp:     ts,
		RunID:         record[colRunID],
		Level:         Level(record[colLevel]),
		Event:         record[colEvent],
		Account:       record[colAccount],
		TransactionID: record[colTxnID],
		Details:       record[colDetails],
	}, nil
}

// Append writes entries to <dir>/sync-log.csv, creating the file and header
// if needed.
func Append(dir string, entries []Entry) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating sync log dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	return cw.Error()
}

// Read returns all entries from <dir>/sync-log.csv. A missing file yields
// no entries.
func Read(dir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening sync log: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading sync log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Writer serializes appends from concurrent account workers.
type Writer struct {
	dir string
	mu  sync.Mutex
}

// NewWriter returns a Writer for <dir>/sync-log.csv.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write appends entries.
func (w *Writer) Write(entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return Append(w.dir, entries)
}
