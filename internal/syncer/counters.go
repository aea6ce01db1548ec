package syncer

import "fmt"

// TxnOutcome is the result of processing one fetched transaction.
type TxnOutcome int

const (
	OutcomeCreated TxnOutcome = iota
	OutcomeSkipped
	OutcomeError
)

func (o TxnOutcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeError:
		return "error"
	}
	return fmt.Sprintf("TxnOutcome(%d)", int(o))
}

// Counters tallies transaction outcomes. Processed always equals
// Created + Skipped + Errors.
type Counters struct {
	Processed int
	Created   int
	Skipped   int
	Errors    int
}

// Record counts one outcome.
func (c *Counters) Record(o TxnOutcome) {
	c.Processed++
	switch o {
	case OutcomeCreated:
		c.Created++
	case OutcomeSkipped:
		c.Skipped++
	default:
		c.Errors++
	}
}

// Add accumulates other into c.
func (c *Counters) Add(other Counters) {
	c.Processed += other.Processed
	c.Created += other.Created
	c.Skipped += other.Skipped
	c.Errors += other.Errors
}

// Consistent reports whether the counters add up.
func (c Counters) Consistent() bool {
	return c.Processed == c.Created+c.Skipped+c.Errors
}

func (c Counters) String() string {
	return fmt.Sprintf("processed=%d created=%d skipped=%d errors=%d", c.Processed, c.Created, c.Skipped, c.Errors)
}
