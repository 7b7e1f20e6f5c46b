// Package index coordinates the full pipeline: scanning sources, diffing the
// manifest, chunking, embedding, maintaining the lexical and vector indexes,
// and persisting everything atomically.
package index

import (
	"sort"

	"github.com/ramsok/ramsok/internal/source"
	"github.com/ramsok/ramsok/internal/store"
)

// Diff classifies the current source set against the persisted manifest.
// Each document id appears in exactly one bucket; all buckets are sorted.
type Diff struct {
	// New documents present on disk but not in the manifest.
	New []string

	// Changed documents whose content hash differs from the manifest.
	Changed []string

	// Removed documents present in the manifest but gone from disk.
	Removed []string

	// Unchanged documents whose content hash matches the manifest.
	Unchanged []string
}

// HasChanges reports whether any reindex work is needed.
func (d Diff) HasChanges() bool {
	return len(d.New) > 0 || len(d.Changed) > 0 || len(d.Removed) > 0
}

// Manifest is the in-memory view of the persisted per-document records.
type Manifest struct {
	records map[string]store.DocumentRecord
}

// NewManifest builds a manifest from persisted records.
func NewManifest(records []store.DocumentRecord) *Manifest {
	m := &Manifest{records: make(map[string]store.DocumentRecord, len(records))}
	for _, r := range records {
		m.records[r.DocumentID] = r
	}
	return m
}

// Get returns the record for a document id.
func (m *Manifest) Get(id string) (store.DocumentRecord, bool) {
	r, ok := m.records[id]
	return r, ok
}

// Len returns the number of tracked documents.
func (m *Manifest) Len() int {
	return len(m.records)
}

// Records returns all records sorted by document id.
func (m *Manifest) Records() []store.DocumentRecord {
	out := make([]store.DocumentRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentID < out[j].DocumentID })
	return out
}

// Set inserts or replaces a record.
func (m *Manifest) Set(r store.DocumentRecord) {
	m.records[r.DocumentID] = r
}

// Delete removes a record.
func (m *Manifest) Delete(id string) {
	delete(m.records, id)
}

// Diff classifies the scanned files against the manifest by content hash.
// Unreadable documents are withheld from the diff entirely: they are not new,
// not changed, and crucially not removed, so a transient read failure never
// evicts a document's chunks.
func (m *Manifest) Diff(files []source.FileInfo, unreadable []string) Diff {
	skip := make(map[string]bool, len(unreadable))
	for _, id := range unreadable {
		skip[id] = true
	}

	var d Diff
	seen := make(map[string]bool, len(files))

	for _, f := range files {
		if skip[f.ID] {
			continue
		}
		seen[f.ID] = true

		record, exists := m.records[f.ID]
		switch {
		case !exists:
			d.New = append(d.New, f.ID)
		case record.ContentHash != f.Hash:
			d.Changed = append(d.Changed, f.ID)
		default:
			d.Unchanged = append(d.Unchanged, f.ID)
		}
	}

	for id := range m.records {
		if !seen[id] && !skip[id] {
			d.Removed = append(d.Removed, id)
		}
	}

	sort.Strings(d.New)
	sort.Strings(d.Changed)
	sort.Strings(d.Removed)
	sort.Strings(d.Unchanged)
	return d
}
