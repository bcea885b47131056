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

// Package voiceagent implements the per-call conversation core of a
// voice-call agent: it keeps turn-by-turn dialogue state for each call,
// renders prompts for a language-model backend, consumes the backend's
// streamed or single-shot output, and tells the telephony side what to
// speak next and whether to keep listening.
//
// The telephony transport itself (answering calls, speech recognition,
// speech synthesis) lives outside this package; adapters for it can be
// found in the twilio and retell packages.
package voiceagent

// Speaker identifies who produced an utterance.
type Speaker string

const (
	SpeakerSystem Speaker = "system"
	SpeakerUser   Speaker = "user"
	SpeakerAgent  Speaker = "agent"
)

// Utterance is one message in a conversation. Values are immutable once
// created; ordering within a transcript is conversational order.
type Utterance struct {
	Role    Speaker `json:"role"`
	Content string  `json:"content"`
}
