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
	"encoding/json"
	"errors"
	"testing"
)

func TestParsePosition(t *testing.T) {
	tests := []struct {
		in      string
		want    Position
		wantErr bool
	}{
		{in: "P", want: Pitcher},
		{in: "ss", want: Shortstop},
		{in: " 1B ", want: FirstBase},
		{in: "Catcher", want: Catcher},
		{in: "left center", want: LeftCenter},
		{in: "RightField", want: RightField},
		{in: "DH", wantErr: true},
		{in: "", wantErr: true},
		{in: "Bench", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePosition(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPosition) {
					t.Fatalf("ParsePosition(%q) error = %v, want ErrInvalidPosition", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePosition(%q) unexpected error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePosition(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestZonesPartitionPositions(t *testing.T) {
	seen := make(map[Position]Zone)
	for _, p := range InfieldPositions() {
		seen[p] = ZoneInfield
	}
	for _, p := range OutfieldPositions() {
		if _, dup := seen[p]; dup {
			t.Fatalf("%s is in both zones", p)
		}
		seen[p] = ZoneOutfield
	}
	if len(seen) != NumPositions {
		t.Fatalf("zones cover %d positions, want %d", len(seen), NumPositions)
	}
	for _, p := range AllPositions() {
		if got := p.Zone(); got != seen[p] {
			t.Errorf("%s.Zone() = %s, want %s", p, got, seen[p])
		}
	}
	if Catcher.Zone() != ZoneOutfield {
		t.Errorf("Catcher should be outfield")
	}
	if Position("DH").Zone() != ZoneBench {
		t.Errorf("unknown position should not have a field zone")
	}
}

func TestRotationJSON(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		var rot Rotation
		if err := json.Unmarshal([]byte(`{"1":{"P":"a","SS":"b"},"2":{"C":"a"}}`), &rot); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if rot[1][Pitcher] != "a" || rot[1][Shortstop] != "b" || rot[2][Catcher] != "a" {
			t.Errorf("unexpected rotation: %v", rot)
		}
	})

	t.Run("LongNamesAccepted", func(t *testing.T) {
		var rot Rotation
		if err := json.Unmarshal([]byte(`{"1":{"Pitcher":"a"}}`), &rot); err != nil {
			t.Fatalf("Unmarshal failed: %v", err)
		}
		if rot[1][Pitcher] != "a" {
			t.Errorf("expected a at P, got %v", rot[1])
		}
	})

	t.Run("UnknownPositionRejected", func(t *testing.T) {
		var rot Rotation
		err := json.Unmarshal([]byte(`{"1":{"DH":"a"}}`), &rot)
		if err == nil {
			t.Fatal("expected error for unknown position key")
		}
	})
}

func TestRotationAssign(t *testing.T) {
	rot := Rotation{}

	if err := rot.Assign(1, Pitcher, "a"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if err := rot.Assign(1, Shortstop, "a"); err != nil {
		t.Fatalf("Assign failed: %v", err)
	}
	if _, ok := rot[1][Pitcher]; ok {
		t.Errorf("old position should be cleared when a player moves")
	}
	if rot[1][Shortstop] != "a" {
		t.Errorf("expected a at SS, got %q", rot[1][Shortstop])
	}

	t.Run("Replace", func(t *testing.T) {
		if err := rot.Assign(1, Shortstop, "b"); err != nil {
			t.Fatalf("Assign failed: %v", err)
		}
		if rot[1][Shortstop] != "b" {
			t.Errorf("expected b at SS")
		}
		if _, ok := rot[1].PositionOf("a"); ok {
			t.Errorf("a should be on the bench")
		}
	})

	t.Run("InvalidInputLeavesRotation", func(t *testing.T) {
		before := rot.Clone()
		if err := rot.Assign(0, Pitcher, "c"); !errors.Is(err, ErrInvalidInning) {
			t.Errorf("expected ErrInvalidInning, got %v", err)
		}
		if err := rot.Assign(1, "DH", "c"); !errors.Is(err, ErrInvalidPosition) {
			t.Errorf("expected ErrInvalidPosition, got %v", err)
		}
		if err := rot.Assign(1, Pitcher, ""); !errors.Is(err, ErrInvalidPlayer) {
			t.Errorf("expected ErrInvalidPlayer, got %v", err)
		}
		if len(rot[1]) != len(before[1]) || rot[1][Shortstop] != before[1][Shortstop] {
			t.Errorf("rotation changed after rejected input: %v", rot)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := rot.Clear(1, Shortstop); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if _, ok := rot[1][Shortstop]; ok {
			t.Errorf("SS should be empty")
		}
		if err := rot.Clear(4, Catcher); err != nil {
			t.Errorf("clearing an empty inning should be a no-op, got %v", err)
		}
	})
}
