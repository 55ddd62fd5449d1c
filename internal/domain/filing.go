package domain

import "time"

// FilingRecord is the canonical shape of one corporate disclosure after
// normalization. Company is the grouping key and is always non-empty.
type FilingRecord struct {
	Symbol         string
	Company        string
	Subject        string
	Details        string
	AttachmentURL  string
	AttachmentSize string
	// BroadcastAt keeps the upstream timestamp verbatim; formats vary and
	// are not always parseable.
	BroadcastAt string
	// BroadcastTime is the best-effort parsed value; zero when parsing failed.
	BroadcastTime time.Time
}

// Fingerprint is the derived identity of a filing, computed from
// (company, broadcast_at, subject). Records with equal fingerprints are the
// same event even if details or attachment fields differ.
type Fingerprint string

// Baseline is the set of filings known as of the last completed cycle,
// keyed by company. At most one filing is retained per company (latest-only).
type Baseline struct {
	Version int64
	Entries map[string]FilingRecord
}

// NewBaseline returns an empty baseline at version zero.
func NewBaseline() Baseline {
	return Baseline{Entries: map[string]FilingRecord{}}
}

// Clone copies the baseline so diffing never mutates the loaded snapshot.
func (b Baseline) Clone() Baseline {
	entries := make(map[string]FilingRecord, len(b.Entries))
	for company, rec := range b.Entries {
		entries[company] = rec
	}
	return Baseline{Version: b.Version, Entries: entries}
}

// Recipient is one notification target. Phone is digits-only, 8-15 digits.
type Recipient struct {
	Phone       string
	DisplayName string
}
