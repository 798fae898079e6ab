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

func TestSummarize(t *testing.T) {
	rot := Rotation{
		1: {Pitcher: "a"},
		2: {LeftField: "a"},
		3: {Pitcher: "a"},
		5: {Catcher: "a"},
	}
	got, err := Summarize(rot, "a", 6)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	want := Summary{
		PlayerID:       "a",
		Infield:        2,
		Outfield:       2,
		Bench:          2,
		PositionCounts: map[Position]int{Pitcher: 2, LeftField: 1, Catcher: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Summarize mismatch (-want +got):\n%s", diff)
	}
}

func TestSummarizeInningsAddUp(t *testing.T) {
	f := gofakeit.New(3)
	players := roster(13)
	for trial := 0; trial < 100; trial++ {
		innings := f.Number(MinInnings, MaxInnings)
		rot := randomRotation(f, players, innings)
		for _, p := range players {
			s, err := Summarize(rot, p.ID, innings)
			if err != nil {
				t.Fatalf("Summarize failed: %v", err)
			}
			if s.Innings() != innings {
				t.Fatalf("trial %d player %s: %d+%d+%d != %d", trial, p.ID, s.Infield, s.Outfield, s.Bench, innings)
			}
			fielded := 0
			for _, n := range s.PositionCounts {
				fielded += n
			}
			if fielded != s.Infield+s.Outfield {
				t.Fatalf("trial %d player %s: position counts %d != fielded innings %d", trial, p.ID, fielded, s.Infield+s.Outfield)
			}
		}
	}
}

func TestSummarizeAllMatchesSummarize(t *testing.T) {
	f := gofakeit.New(5)
	players := roster(12)
	rot := randomRotation(f, players, 7)
	all, err := SummarizeAll(rot, players, 7)
	if err != nil {
		t.Fatalf("SummarizeAll failed: %v", err)
	}
	for i, p := range players {
		one, err := Summarize(rot, p.ID, 7)
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		if diff := cmp.Diff(one, all[i]); diff != "" {
			t.Errorf("player %s differs (-Summarize +SummarizeAll):\n%s", p.ID, diff)
		}
	}
}

func TestSummarizeInvalidInput(t *testing.T) {
	if _, err := Summarize(Rotation{}, "a", 0); !errors.Is(err, ErrInvalidInnings) {
		t.Errorf("expected ErrInvalidInnings, got %v", err)
	}
	if _, err := Summarize(Rotation{}, "", 6); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("expected ErrInvalidPlayer, got %v", err)
	}
	if !IsInputError(func() error { _, err := Summarize(Rotation{}, "", 6); return err }()) {
		t.Errorf("expected an *InputError")
	}
}

func TestSummarizeBatting(t *testing.T) {
	order := BattingOrder{"c", "a", "b"}
	if pos, ok := SummarizeBatting(order, "b"); !ok || pos != 3 {
		t.Errorf("SummarizeBatting(b) = %d, %v; want 3, true", pos, ok)
	}
	if _, ok := SummarizeBatting(order, "z"); ok {
		t.Errorf("z is not in the order")
	}
}
