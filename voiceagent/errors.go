// Copyright 2025 The NLP Odyssey Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package voiceagent

import (
	"errors"
	"fmt"
)

// UnknownSessionError is returned when an utterance is appended for a call
// that has no active session. It indicates a programming error in the
// caller: every append must be preceded by GetOrCreate.
type UnknownSessionError error

func NewUnknownSessionError(message string) UnknownSessionError {
	return UnknownSessionError(errors.New(message))
}

func UnknownSessionErrorf(format string, a ...any) UnknownSessionError {
	return UnknownSessionError(fmt.Errorf(format, a...))
}

// MalformedEventError is returned when an inbound call event cannot be
// processed at all, e.g. because it carries no call ID. It is the only
// error the Orchestrator ever surfaces to the telephony adapter; no
// session state is touched and no model call is made for such events.
type MalformedEventError error

func NewMalformedEventError(message string) MalformedEventError {
	return MalformedEventError(errors.New(message))
}

func MalformedEventErrorf(format string, a ...any) MalformedEventError {
	return MalformedEventError(fmt.Errorf(format, a...))
}
