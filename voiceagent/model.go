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
	"context"
	"iter"
)

// InteractionType tags why a model call is being made, mirrored from the
// Orchestrator into the backend so providers can correlate turns.
type InteractionType string

const (
	// InteractionResponseRequired is a regular turn: the caller spoke and
	// expects an answer.
	InteractionResponseRequired InteractionType = "response_required"

	// InteractionReminderRequired is a turn triggered by caller silence.
	InteractionReminderRequired InteractionType = "reminder_required"
)

// ResponseFragment is one increment of model output.
//
// A streamed turn arrives as zero or more non-final fragments, each
// carrying only the incremental text delta (callers concatenate), followed
// by exactly one final fragment with empty text. A single-shot turn is
// exactly one final fragment carrying the full text. EndCall reports that
// the turn should be the last of the call.
type ResponseFragment struct {
	Text    string
	Final   bool
	EndCall bool
}

// GenerateParams are the inputs of one model turn.
type GenerateParams struct {
	// Messages is the rendered prompt, in conversational order.
	Messages []ChatMessage

	// ResponseID correlates the produced fragments with the originating
	// turn.
	ResponseID string

	// Interaction reports why the turn was started.
	Interaction InteractionType
}

// Model abstracts the language-model backend behind one capability:
// turning a prompt into a finite, non-restartable sequence of fragments.
//
// A Model never fails: any provider error (network failure, malformed
// response, timeout) is absorbed and surfaces as a single final fragment
// carrying FallbackReply with EndCall set, so the Orchestrator always
// receives a well-formed terminal fragment and can end the call
// gracefully instead of leaving it hanging. No fragment follows the
// failure fragment.
type Model interface {
	Generate(ctx context.Context, params GenerateParams) iter.Seq[ResponseFragment]
}

// FallbackReply is spoken when the model backend fails; the call is ended
// right after.
const FallbackReply = "I apologize, but I'm having trouble responding right now. Could you please try again?"

// FailureFragment is the terminal fragment a Model yields when the
// backend call fails.
func FailureFragment() ResponseFragment {
	return ResponseFragment{Text: FallbackReply, Final: true, EndCall: true}
}
