// Package dedupe computes filing identity and novelty. It is pure
// computation; all blocking happens at the pipeline's external-call
// boundaries, never here.
package dedupe

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"

	"filingscout/internal/domain"
)

// FingerprintOf derives the stable identity of a filing from
// (company, broadcast_at, subject). Case-sensitive; fields are trimmed but
// otherwise untouched. Details, attachment URL, and size never contribute:
// upstream re-fetches reformat those freely.
func FingerprintOf(rec domain.FilingRecord) domain.Fingerprint {
	h := sha1.New()
	h.Write([]byte(strings.TrimSpace(rec.Company)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(rec.BroadcastAt)))
	h.Write([]byte{'|'})
	h.Write([]byte(strings.TrimSpace(rec.Subject)))
	return domain.Fingerprint(hex.EncodeToString(h.Sum(nil)))
}

// Diff splits the current feed window into novel records and the updated
// baseline.
//
// A record is novel when its company is absent from the running baseline or
// present with a different fingerprint. A same-fingerprint re-observation is
// not novel, but its fields still overwrite the baseline entry (refresh
// without re-notify). Companies absent from the current window keep their old
// baseline entry: the feed is a rolling window, not a universe snapshot.
//
// At most one novel record is emitted per company per window; a later
// same-company row with yet another fingerprint replaces the earlier novelty
// candidate, so the record enqueued is always the one written to the
// baseline. Novel records preserve the relative order of current. The
// updated baseline holds exactly one entry per company and carries the
// loaded version so the store can enforce superseding writes.
func Diff(baseline domain.Baseline, current []domain.FilingRecord) ([]domain.FilingRecord, domain.Baseline) {
	updated := baseline.Clone()

	var novel []domain.FilingRecord
	candidate := map[string]int{}
	for _, rec := range current {
		fp := FingerprintOf(rec)

		prev, exists := updated.Entries[rec.Company]
		if !exists || FingerprintOf(prev) != fp {
			if idx, ok := candidate[rec.Company]; ok {
				novel[idx] = rec
			} else {
				candidate[rec.Company] = len(novel)
				novel = append(novel, rec)
			}
		}

		updated.Entries[rec.Company] = rec
	}

	return novel, updated
}
