// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lineup

import (
	"errors"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
)

func TestAutoAssignInning(t *testing.T) {
	players := roster(12)

	t.Run("FillsEmptyInning", func(t *testing.T) {
		got := AutoAssignInning(nil, players, nil)
		want := InningAssignment{
			Catcher:     "p1",
			Pitcher:     "p2",
			FirstBase:   "p3",
			SecondBase:  "p4",
			ThirdBase:   "p5",
			Shortstop:   "p6",
			LeftField:   "p7",
			RightField:  "p8",
			LeftCenter:  "p9",
			RightCenter: "p10",
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("assignment mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("PrefersCatcher", func(t *testing.T) {
		avail := NewAvailabilityMap([]Availability{{PlayerID: "p4", Available: true, CanPlayCatcher: true}})
		got := AutoAssignInning(InningAssignment{}, players, avail)
		if got[Catcher] != "p4" {
			t.Errorf("expected p4 at C, got %s", got[Catcher])
		}
		if got[Pitcher] != "p1" {
			t.Errorf("expected p1 at P, got %s", got[Pitcher])
		}
	})

	t.Run("KeepsFilledPositions", func(t *testing.T) {
		current := InningAssignment{Shortstop: "p9", Catcher: "p12"}
		got := AutoAssignInning(current, players, nil)
		if got[Shortstop] != "p9" || got[Catcher] != "p12" {
			t.Errorf("filled positions were overwritten: %v", got)
		}
		if len(current) != 2 {
			t.Errorf("input assignment was modified: %v", current)
		}
		if got.Filled() != NumPositions {
			t.Errorf("expected a full inning, got %d filled", got.Filled())
		}
	})

	t.Run("SkipsUnavailable", func(t *testing.T) {
		avail := NewAvailabilityMap([]Availability{{PlayerID: "p1", Available: false}})
		got := AutoAssignInning(nil, players, avail)
		if _, ok := got.PositionOf("p1"); ok {
			t.Errorf("unavailable p1 was assigned")
		}
	})

	t.Run("ShortPool", func(t *testing.T) {
		got := AutoAssignInning(nil, players[:4], nil)
		if got.Filled() != 4 {
			t.Errorf("expected 4 filled positions, got %d", got.Filled())
		}
		if got[Catcher] == "" || got[Pitcher] == "" || got[FirstBase] == "" || got[SecondBase] == "" {
			t.Errorf("catcher and infield should fill first: %v", got)
		}
	})
}

func TestAutoAssignInningProperties(t *testing.T) {
	f := gofakeit.New(21)
	for trial := 0; trial < 200; trial++ {
		players := roster(f.Number(1, 14))
		records := make([]Availability, 0)
		for _, p := range players {
			records = append(records, Availability{PlayerID: p.ID, Available: f.Number(1, 10) > 2, CanPlayCatcher: f.Bool()})
		}
		avail := NewAvailabilityMap(records)
		current := randomRotation(f, players, 1)[1]
		got := AutoAssignInning(current, players, avail)

		for p, id := range current {
			if got[p] != id {
				t.Fatalf("trial %d: %s overwritten (%s -> %s)", trial, p, id, got[p])
			}
		}
		for id, held := range got.Index() {
			if len(held) > 1 {
				t.Fatalf("trial %d: %s placed at %v", trial, id, held)
			}
		}
	}
}

func TestAutoAssignAllInnings(t *testing.T) {
	players := roster(10)
	rot := Rotation{2: {Catcher: "p5"}}
	got, err := AutoAssignAllInnings(rot, players, nil, 3)
	if err != nil {
		t.Fatalf("AutoAssignAllInnings failed: %v", err)
	}
	for i := 1; i <= 3; i++ {
		if got[i].Filled() != NumPositions {
			t.Errorf("inning %d: %d filled", i, got[i].Filled())
		}
	}
	if got[2][Catcher] != "p5" {
		t.Errorf("inning 2 seed lost: %v", got[2])
	}
	// Innings are independent, so inning 1 and 3 come out identical.
	if diff := cmp.Diff(got[1], got[3]); diff != "" {
		t.Errorf("innings 1 and 3 differ:\n%s", diff)
	}
	if len(rot) != 1 {
		t.Errorf("input rotation modified: %v", rot)
	}

	if _, err := AutoAssignAllInnings(rot, players, nil, 12); !errors.Is(err, ErrInvalidInnings) {
		t.Errorf("expected ErrInvalidInnings, got %v", err)
	}
}

func TestCopyFromPreviousInning(t *testing.T) {
	rot := Rotation{1: {Pitcher: "a", Catcher: "b"}, 2: {Shortstop: "c"}}
	got, err := CopyFromPreviousInning(rot, 2, 6)
	if err != nil {
		t.Fatalf("CopyFromPreviousInning failed: %v", err)
	}
	if diff := cmp.Diff(rot[1], got[2]); diff != "" {
		t.Errorf("inning 2 should equal inning 1:\n%s", diff)
	}
	got[2][Pitcher] = "z"
	if rot[1][Pitcher] != "a" {
		t.Errorf("copy shares storage with the previous inning")
	}
	if rot[2][Shortstop] != "c" {
		t.Errorf("input rotation modified")
	}

	t.Run("EmptyPrevious", func(t *testing.T) {
		got, err := CopyFromPreviousInning(rot, 4, 6)
		if err != nil {
			t.Fatalf("CopyFromPreviousInning failed: %v", err)
		}
		if len(got[4]) != 0 {
			t.Errorf("expected empty inning 4, got %v", got[4])
		}
	})

	for _, inning := range []int{0, 1, 7} {
		if _, err := CopyFromPreviousInning(rot, inning, 6); !errors.Is(err, ErrInvalidInning) {
			t.Errorf("inning %d: expected ErrInvalidInning, got %v", inning, err)
		}
	}
}
