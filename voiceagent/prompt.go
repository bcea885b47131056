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

// ChatMessage is one entry of a model-ready prompt. Role uses the chat API
// vocabulary ("system", "user", "assistant"); the mapping from Speaker is a
// presentation detail of the model API, not a semantic change.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ReminderPrompt is the synthetic user entry appended to the rendered
// prompt of a reminder turn. It is never persisted into the transcript.
const ReminderPrompt = "(The user has not responded in a while, you would say:)"

// BuildPrompt renders a transcript into the message sequence sent to the
// model, in transcript order. When reminder is true the caller has been
// silent past the configured timeout, and one synthetic user entry is
// appended so the model continues the conversation naturally.
//
// BuildPrompt is pure: it never mutates the transcript, and the same
// transcript and flag always yield the same messages.
func BuildPrompt(transcript []Utterance, reminder bool) []ChatMessage {
	n := len(transcript)
	if reminder {
		n++
	}
	messages := make([]ChatMessage, 0, n)

	for _, u := range transcript {
		role := RoleUser
		switch u.Role {
		case SpeakerSystem:
			role = RoleSystem
		case SpeakerAgent:
			role = RoleAssistant
		}
		messages = append(messages, ChatMessage{Role: role, Content: u.Content})
	}

	if reminder {
		messages = append(messages, ChatMessage{Role: RoleUser, Content: ReminderPrompt})
	}
	return messages
}
