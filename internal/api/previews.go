package api

import (
	"context"
	"sync"
	"time"

	"github.com/fieldline/stationpm/internal/ingest/niagara"
)

// previewKind discriminates what an import preview holds.
type previewKind string

const (
	previewPlatform  previewKind = "platform"
	previewDevices   previewKind = "devices"
	previewResources previewKind = "resources"
)

// previewEntry is one parsed upload awaiting commit.
//
// Exactly one of Platform, Devices, or Resources is populated, matching Kind.
type previewEntry struct {
	Kind       previewKind
	SourceFile string
	ParsedBy   string
	ParsedAt   time.Time
	Platform   *niagara.PlatformData
	Devices    []niagara.DeviceRecord
	Protocol   string // device previews only
	Resources  []niagara.ResourceMetric
	expiresAt  time.Time
}

// previewStore holds parse previews between the parse and commit phases.
// Previews expire after the configured TTL; commit consumes them.
type previewStore struct {
	ttl     time.Duration
	entries map[string]previewEntry
	mu      sync.Mutex
}

func newPreviewStore(ttl time.Duration) *previewStore {
	return &previewStore{
		ttl:     ttl,
		entries: make(map[string]previewEntry),
	}
}

// put stores a preview under the given import ID.
func (p *previewStore) put(importID string, entry previewEntry) {
	entry.expiresAt = time.Now().Add(p.ttl)
	p.mu.Lock()
	p.entries[importID] = entry
	p.mu.Unlock()
}

// take retrieves and consumes a preview. A preview can be committed once.
func (p *previewStore) take(importID string) (previewEntry, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.entries[importID]
	if !ok {
		return previewEntry{}, false
	}
	delete(p.entries, importID)

	if time.Now().After(entry.expiresAt) {
		return previewEntry{}, false
	}
	return entry, true
}

// cleanLoop removes expired previews periodically until the context is cancelled.
func (p *previewStore) cleanLoop(ctx context.Context) {
	ticker := time.NewTicker(p.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.mu.Lock()
			now := time.Now()
			for id, entry := range p.entries {
				if now.After(entry.expiresAt) {
					delete(p.entries, id)
				}
			}
			p.mu.Unlock()
		}
	}
}
