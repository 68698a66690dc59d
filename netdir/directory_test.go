// Copyright 2026 The Commsnet Authors
// SPDX-License-Identifier: Apache-2.0

package netdir

import (
	"testing"
	"time"

	"github.com/vanguard-fleet/commsnet/lib/ref"
	"github.com/vanguard-fleet/commsnet/lib/testutil"
)

// sampleDirectory is a JSONC document exercising comments and trailing
// commas, as found in operator-maintained files.
const sampleDirectory = `
// Vanguard fleet nets — edited by ops staff before each event.
[
  {
    "code": "CMD-1",
    "label": "Fleet Command Primary",
    "type": "command",
    "discipline": "focused",
    "stage_mode": false,
    "min_rank_to_tx": "Voyager",
    "min_rank_to_rx": "Vagrant",
    "priority": 1,
    "require_approval": false,
  },
  {
    "code": "SQD-RAPTOR",
    "label": "Raptor Squad",
    "type": "squad",
    "discipline": "open",
    "priority": 2, // standard
  },
]
`

func loadSample(t *testing.T) *Directory {
	t.Helper()
	directory, err := Parse([]byte(sampleDirectory), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return directory
}

func TestParseJSONC(t *testing.T) {
	directory := loadSample(t)

	net, ok := directory.Get(ref.MustNetCode("CMD-1"))
	if !ok {
		t.Fatal("CMD-1 not found")
	}
	if net.Discipline != Focused {
		t.Errorf("discipline = %q, want focused", net.Discipline)
	}
	if net.MinRankToTransmit != "Voyager" {
		t.Errorf("min_rank_to_tx = %q, want Voyager", net.MinRankToTransmit)
	}
	if net.Room().String() != "net/CMD-1" {
		t.Errorf("room = %q", net.Room())
	}
}

func TestParseRejectsInvalidRecords(t *testing.T) {
	cases := map[string]string{
		"missing label": `[{"code": "CMD-1", "type": "command", "discipline": "open", "priority": 1}]`,
		"bad discipline": `[{"code": "CMD-1", "label": "x", "type": "command",
			"discipline": "strict", "priority": 1}]`,
		"bad priority": `[{"code": "CMD-1", "label": "x", "type": "command",
			"discipline": "open", "priority": 7}]`,
		"duplicate code": `[
			{"code": "CMD-1", "label": "x", "type": "command", "discipline": "open", "priority": 1},
			{"code": "CMD-1", "label": "y", "type": "command", "discipline": "open", "priority": 1}]`,
	}
	for name, document := range cases {
		if _, err := Parse([]byte(document), nil); err == nil {
			t.Errorf("%s: expected parse error", name)
		}
	}
}

func TestListOrdersByPriorityThenCode(t *testing.T) {
	document := `[
		{"code": "ZULU-9", "label": "z", "type": "social", "discipline": "open", "priority": 3},
		{"code": "CMD-1", "label": "c", "type": "command", "discipline": "open", "priority": 1},
		{"code": "TAC-2", "label": "b", "type": "tactical", "discipline": "open", "priority": 2},
		{"code": "TAC-1", "label": "a", "type": "tactical", "discipline": "open", "priority": 2}]`
	directory, err := Parse([]byte(document), nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	var codes []string
	for _, net := range directory.List() {
		codes = append(codes, net.Code.String())
	}
	want := []string{"CMD-1", "TAC-1", "TAC-2", "ZULU-9"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("List order = %v, want %v", codes, want)
		}
	}
}

func TestSetDisciplineNotifiesWatchers(t *testing.T) {
	directory := loadSample(t)
	changes, stop := directory.Watch()
	defer stop()

	code := ref.MustNetCode("SQD-RAPTOR")
	if err := directory.SetDiscipline(code, Focused); err != nil {
		t.Fatalf("SetDiscipline: %v", err)
	}

	changed := testutil.RequireReceive(t, changes, 5*time.Second, "waiting for change notification")
	if changed.Code != code || changed.Discipline != Focused {
		t.Fatalf("change = %+v", changed)
	}

	// The stored record reflects the change.
	net, _ := directory.Get(code)
	if net.Discipline != Focused {
		t.Fatalf("stored discipline = %q", net.Discipline)
	}
}

func TestSetStageMode(t *testing.T) {
	directory := loadSample(t)
	code := ref.MustNetCode("CMD-1")
	if err := directory.SetStageMode(code, true); err != nil {
		t.Fatalf("SetStageMode: %v", err)
	}
	net, _ := directory.Get(code)
	if !net.StageMode {
		t.Fatal("stage mode not set")
	}
}

func TestSetDisciplineUnknownNet(t *testing.T) {
	directory := loadSample(t)
	if err := directory.SetDiscipline(ref.MustNetCode("NOPE-1"), Open); err == nil {
		t.Fatal("expected error for unknown net")
	}
}

func TestSetDisciplineRejectsInvalidValue(t *testing.T) {
	directory := loadSample(t)
	if err := directory.SetDiscipline(ref.MustNetCode("CMD-1"), "strict"); err == nil {
		t.Fatal("expected error for invalid discipline")
	}
}

func TestStoppedWatcherChannelCloses(t *testing.T) {
	directory := loadSample(t)
	changes, stop := directory.Watch()
	stop()
	if _, open := <-changes; open {
		t.Fatal("channel still open after stop")
	}
	// A change after stop must not panic.
	if err := directory.SetStageMode(ref.MustNetCode("CMD-1"), true); err != nil {
		t.Fatalf("SetStageMode after stop: %v", err)
	}
}
