package utils

import (
	"fmt"
	"sync"
	"time"
)

// InvoiceGenerator issues invoice numbers of the form INV-YYYYMMDD-NNNNNN.
// NNNNNN is the low 6 digits of a millisecond counter that never repeats or
// goes backwards within the process, even when the wall clock does.
type InvoiceGenerator struct {
	mu     sync.Mutex
	lastMS int64
	loc    *time.Location
	now    func() time.Time
}

// NewInvoiceGenerator creates a generator stamping dates in loc (UTC when nil).
func NewInvoiceGenerator(loc *time.Location) *InvoiceGenerator {
	if loc == nil {
		loc = time.UTC
	}
	return &InvoiceGenerator{loc: loc, now: time.Now}
}

// Next returns the next invoice number.
func (g *InvoiceGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	ms := now.UnixMilli()
	if ms <= g.lastMS {
		ms = g.lastMS + 1
	}
	g.lastMS = ms

	return fmt.Sprintf("INV-%s-%06d", now.In(g.loc).Format("20060102"), ms%1_000_000)
}
