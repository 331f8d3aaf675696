package calculator

import "strings"

// DefaultHistorySize is the number of calculations kept by a History.
const DefaultHistorySize = 10

const resultSeparator = " = "

// HistoryEntry is one completed calculation.
type HistoryEntry struct {
	// Text is the display record, e.g. "1,200 × 3 = 3,600".
	Text string
	// Result is the raw numeral the calculation produced.
	Result string
}

// History keeps the most recent calculations, newest first. Adding beyond
// capacity drops the oldest entry.
type History struct {
	entries  []HistoryEntry
	capacity int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &History{
		entries:  make([]HistoryEntry, 0, capacity),
		capacity: capacity,
	}
}

func (h *History) Add(e HistoryEntry) {
	if len(h.entries) < h.capacity {
		h.entries = append(h.entries, HistoryEntry{})
	}
	copy(h.entries[1:], h.entries[:len(h.entries)-1])
	h.entries[0] = e
}

func (h *History) Len() int { return len(h.entries) }

func (h *History) Cap() int { return h.capacity }

// Entries returns a copy, newest first.
func (h *History) Entries() []HistoryEntry {
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Texts returns the display records, newest first.
func (h *History) Texts() []string {
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Text
	}
	return out
}

// Lookup finds the newest entry with the given display text.
func (h *History) Lookup(text string) (HistoryEntry, bool) {
	for _, e := range h.entries {
		if e.Text == text {
			return e, true
		}
	}
	return HistoryEntry{}, false
}

// resultText returns the part of a history record after " = ".
func resultText(record string) (string, bool) {
	_, after, ok := strings.Cut(record, resultSeparator)
	if !ok || after == "" {
		return "", false
	}
	return after, true
}
