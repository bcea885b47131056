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
	"sync"
	"time"

	"github.com/nlpodyssey/voiceagent-go/usage"
)

// TranscriptStore keeps the conversation state of every in-progress call,
// keyed by the provider-assigned call ID. All state is memory-resident:
// it is created empty, and everything is dropped when the owning
// Orchestrator goes away. There is no persistence.
//
// The store is safe for concurrent use across distinct call IDs. Within
// one call ID, an Append happens-before the next read of that transcript.
type TranscriptStore struct {
	mu       sync.Mutex
	sessions map[string]*callSession

	// now is replaceable in tests.
	now func() time.Time
}

type callSession struct {
	transcript   []Utterance
	usage        *usage.Usage
	lastActivity time.Time
}

// NewTranscriptStore creates an empty store.
func NewTranscriptStore() *TranscriptStore {
	return &TranscriptStore{
		sessions: make(map[string]*callSession),
		now:      time.Now,
	}
}

// GetOrCreate returns the transcript for callID, creating the session if it
// does not exist yet. A new transcript is seeded with a single system
// utterance holding systemPrompt; the seed happens exactly once per call
// and is never repeated on later events. The second return value reports
// whether the session was created by this call.
//
// The returned slice is a snapshot; the caller may keep it without
// worrying about later appends.
func (s *TranscriptStore) GetOrCreate(callID, systemPrompt string) ([]Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[callID]; ok {
		sess.lastActivity = s.now()
		return snapshotTranscript(sess.transcript), false
	}

	sess := &callSession{
		transcript:   []Utterance{{Role: SpeakerSystem, Content: systemPrompt}},
		usage:        usage.NewUsage(),
		lastActivity: s.now(),
	}
	s.sessions[callID] = sess
	return snapshotTranscript(sess.transcript), true
}

// Append adds an utterance to the transcript of callID. It returns an
// UnknownSessionError when no session exists for callID: callers must
// always GetOrCreate first.
func (s *TranscriptStore) Append(callID string, u Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return UnknownSessionErrorf("no active session for call %q", callID)
	}
	sess.transcript = append(sess.transcript, u)
	sess.lastActivity = s.now()
	return nil
}

// Transcript returns a snapshot of the transcript for callID, and whether
// a session exists.
func (s *TranscriptStore) Transcript(callID string) ([]Utterance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return nil, false
	}
	return snapshotTranscript(sess.transcript), true
}

// Usage returns the token usage accumulated for callID so far, and whether
// a session exists.
func (s *TranscriptStore) Usage(callID string) (*usage.Usage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[callID]
	if !ok {
		return nil, false
	}
	return sess.usage, true
}

// Remove deletes the session for callID. Removing an absent call ID is a
// no-op, not an error.
func (s *TranscriptStore) Remove(callID string) {
	s.mu.Lock()
	delete(s.sessions, callID)
	s.mu.Unlock()
}

// Len returns the number of active sessions.
func (s *TranscriptStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// reapIdle removes every session whose last activity is older than maxIdle
// and returns the removed call IDs. Telephony providers normally report
// call end explicitly, but a missed status callback would otherwise leak
// the session for the lifetime of the process.
func (s *TranscriptStore) reapIdle(maxIdle time.Duration) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxIdle)
	var removed []string
	for callID, sess := range s.sessions {
		if sess.lastActivity.Before(cutoff) {
			delete(s.sessions, callID)
			removed = append(removed, callID)
		}
	}
	return removed
}

func snapshotTranscript(transcript []Utterance) []Utterance {
	out := make([]Utterance, len(transcript))
	copy(out, transcript)
	return out
}
