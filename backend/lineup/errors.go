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
	"fmt"
)

// Input error kinds. Match them with errors.Is.
var (
	ErrInvalidInning   = errors.New("invalid inning")
	ErrInvalidInnings  = errors.New("invalid inning count")
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidPlayer   = errors.New("invalid player")
)

// InputError rejects malformed identifiers or out-of-range innings before
// any computation happens.
type InputError struct {
	Kind   error
	Field  string
	Value  any
	Reason string
}

func (e *InputError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: %s=%v", e.Kind, e.Field, e.Value)
	}
	return fmt.Sprintf("%v: %s=%v: %s", e.Kind, e.Field, e.Value, e.Reason)
}

func (e *InputError) Unwrap() error {
	return e.Kind
}

// IsInputError reports whether err is, or wraps, an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
