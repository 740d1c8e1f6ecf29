package models

import "sync"

// ReportEntry records the outcome of one operation for one partition.
type ReportEntry struct {
	Symbol    string `json:"symbol"`
	Partition string `json:"partition,omitempty"`
	Operation string `json:"operation"`
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
}

// Report collects per-symbol outcomes of a pipeline run. Failures stay
// isolated per entry; there is no aggregate pass/fail.
type Report struct {
	RunID   string        `json:"run_id"`
	Entries []ReportEntry `json:"entries"`

	mu sync.Mutex
}

// Add appends an entry. Safe for concurrent use by pipeline workers.
func (r *Report) Add(e ReportEntry) {
	r.mu.Lock()
	r.Entries = append(r.Entries, e)
	r.mu.Unlock()
}

// Failed returns the entries whose operation did not succeed.
func (r *Report) Failed() []ReportEntry {
	var out []ReportEntry
	for _, e := range r.Entries {
		if !e.OK {
			out = append(out, e)
		}
	}
	return out
}
