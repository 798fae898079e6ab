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

// Fill order after the catcher. Catcher is handled first because it is the
// only position with an eligibility flag.
var (
	infieldFillOrder  = [...]Position{Pitcher, FirstBase, SecondBase, ThirdBase, Shortstop}
	outfieldFillOrder = [...]Position{LeftField, RightField, LeftCenter, RightCenter}
)

// AutoAssignInning fills the open positions of current from pool with a
// single greedy pass: Catcher (first catcher-capable player, else the first
// player left), then the infield, then the outfield, each taking the next
// player in pool order. Filled positions are kept, nobody is placed twice,
// and players marked unavailable in avail are skipped. The result is a new
// assignment; it is not fairness-optimal, run Validate on it.
func AutoAssignInning(current InningAssignment, pool []Player, avail AvailabilityMap) InningAssignment {
	out := current.Clone()
	// Drop empty or invalid entries so they read as unfilled below.
	for p, id := range out {
		if id == "" || !p.Valid() {
			delete(out, p)
		}
	}

	used := make(map[PlayerID]bool, len(out))
	for _, id := range out {
		used[id] = true
	}

	remaining := make([]PlayerID, 0, len(pool))
	for _, pl := range pool {
		if pl.ID == "" || used[pl.ID] || !avail.IsAvailable(pl.ID) {
			continue
		}
		used[pl.ID] = true
		remaining = append(remaining, pl.ID)
	}

	take := func(i int) PlayerID {
		id := remaining[i]
		remaining = append(remaining[:i], remaining[i+1:]...)
		return id
	}

	if _, filled := out[Catcher]; !filled && len(remaining) > 0 {
		pick := 0
		for i, id := range remaining {
			if avail.CanPlayCatcher(id) {
				pick = i
				break
			}
		}
		out[Catcher] = take(pick)
	}

	for _, order := range [][]Position{infieldFillOrder[:], outfieldFillOrder[:]} {
		for _, p := range order {
			if len(remaining) == 0 {
				return out
			}
			if _, filled := out[p]; filled {
				continue
			}
			out[p] = take(0)
		}
	}
	return out
}

// AutoAssignAllInnings runs AutoAssignInning on innings 1..innings, each
// seeded only by its own current assignment. rot is not modified.
func AutoAssignAllInnings(rot Rotation, pool []Player, avail AvailabilityMap, innings int) (Rotation, error) {
	if err := CheckInnings(innings); err != nil {
		return nil, err
	}
	out := rot.Clone()
	for i := 1; i <= innings; i++ {
		out[i] = AutoAssignInning(rot[i], pool, avail)
	}
	return out, nil
}

// CopyFromPreviousInning returns a copy of rot in which inning holds a
// structural copy of inning-1. No validation is applied to the result.
func CopyFromPreviousInning(rot Rotation, inning, innings int) (Rotation, error) {
	if err := CheckInnings(innings); err != nil {
		return nil, err
	}
	if err := CheckInning(inning, innings); err != nil {
		return nil, err
	}
	if inning == 1 {
		return nil, &InputError{Kind: ErrInvalidInning, Field: "inning", Value: inning, Reason: "no previous inning to copy"}
	}
	out := rot.Clone()
	out[inning] = rot[inning-1].Clone()
	return out, nil
}
