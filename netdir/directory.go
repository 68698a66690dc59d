// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package netdir

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/tidwall/jsonc"

	"github.com/vanguard-fleet/commsnet/lib/ref"
)

// Directory is the in-memory net directory. Lookups are cheap and safe
// for concurrent use; the two mutating operations (SetDiscipline,
// SetStageMode) notify watchers so connected sessions re-evaluate
// policy.
type Directory struct {
	logger *slog.Logger

	mu   sync.RWMutex
	nets map[ref.NetCode]Net

	// watchers receive a copy of each changed record. Sends never
	// block: a watcher that falls behind misses intermediate states,
	// which is acceptable because records carry full state, not deltas.
	watcherMu   sync.Mutex
	watchers    map[int]chan Net
	nextWatcher int
}

// LoadFile reads a JSONC net directory file and returns a Directory.
// The file is a single JSON array of net records; comments and
// trailing commas are permitted.
func LoadFile(path string, logger *slog.Logger) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading net directory: %w", err)
	}
	return Parse(data, logger)
}

// Parse decodes a JSONC net directory document.
func Parse(data []byte, logger *slog.Logger) (*Directory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var records []Net
	if err := json.Unmarshal(jsonc.ToJSON(data), &records); err != nil {
		return nil, fmt.Errorf("parsing net directory: %w", err)
	}

	nets := make(map[ref.NetCode]Net, len(records))
	for _, record := range records {
		if err := record.validate(); err != nil {
			return nil, err
		}
		if _, exists := nets[record.Code]; exists {
			return nil, fmt.Errorf("duplicate net code %s", record.Code)
		}
		nets[record.Code] = record
	}

	logger.Info("net directory loaded", "nets", len(nets))
	return &Directory{
		logger:   logger,
		nets:     nets,
		watchers: make(map[int]chan Net),
	}, nil
}

// Get returns the record for a net code. The second return is false
// if no such net exists.
func (d *Directory) Get(code ref.NetCode) (Net, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	net, ok := d.nets[code]
	return net, ok
}

// List returns all records, ordered by priority then code.
func (d *Directory) List() []Net {
	d.mu.RLock()
	defer d.mu.RUnlock()

	records := make([]Net, 0, len(d.nets))
	for _, net := range d.nets {
		records = append(records, net)
	}
	sortNets(records)
	return records
}

// SetDiscipline changes a net's discipline mode. The caller is
// responsible for the authorization check (policy.CanDirectNet) — this
// is the write path, not the gate.
func (d *Directory) SetDiscipline(code ref.NetCode, discipline Discipline) error {
	if discipline != Open && discipline != Focused {
		return fmt.Errorf("invalid discipline %q", discipline)
	}
	return d.update(code, func(net *Net) { net.Discipline = discipline })
}

// SetStageMode enables or disables stage mode on a net. Authorization
// is the caller's responsibility, as with SetDiscipline.
func (d *Directory) SetStageMode(code ref.NetCode, enabled bool) error {
	return d.update(code, func(net *Net) { net.StageMode = enabled })
}

func (d *Directory) update(code ref.NetCode, mutate func(*Net)) error {
	d.mu.Lock()
	net, ok := d.nets[code]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("unknown net %s", code)
	}
	mutate(&net)
	d.nets[code] = net
	d.mu.Unlock()

	d.logger.Info("net record changed",
		"net", code,
		"discipline", net.Discipline,
		"stage_mode", net.StageMode,
	)
	d.notify(net)
	return nil
}

// Watch returns a channel receiving each changed record, and a stop
// function that unregisters the watcher and closes the channel. The
// channel is buffered; a slow consumer misses intermediate states
// rather than blocking a discipline change.
func (d *Directory) Watch() (<-chan Net, func()) {
	d.watcherMu.Lock()
	defer d.watcherMu.Unlock()

	id := d.nextWatcher
	d.nextWatcher++
	channel := make(chan Net, 8)
	d.watchers[id] = channel

	stop := func() {
		d.watcherMu.Lock()
		defer d.watcherMu.Unlock()
		if existing, ok := d.watchers[id]; ok {
			delete(d.watchers, id)
			close(existing)
		}
	}
	return channel, stop
}

func (d *Directory) notify(net Net) {
	d.watcherMu.Lock()
	defer d.watcherMu.Unlock()
	for _, channel := range d.watchers {
		select {
		case channel <- net:
		default:
			// Watcher is behind; the next change carries full state.
		}
	}
}

// sortNets orders by priority (command first), then code.
func sortNets(records []Net) {
	sort.Slice(records, func(i, j int) bool {
		if records[i].Priority != records[j].Priority {
			return records[i].Priority < records[j].Priority
		}
		return records[i].Code.String() < records[j].Code.String()
	})
}
