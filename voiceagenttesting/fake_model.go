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

// Package voiceagenttesting provides test fakes for the voice agent.
package voiceagenttesting

import (
	"context"
	"iter"
	"sync"

	"github.com/nlpodyssey/voiceagent-go/voiceagent"
)

// FakeModel is a Model that replays scripted fragment sequences, one per
// turn, and records the parameters of the last call.
type FakeModel struct {
	mu          sync.Mutex
	turnOutputs [][]voiceagent.ResponseFragment
	lastParams  voiceagent.GenerateParams
	generations int

	// Block, when non-nil, is closed by the test to let a turn proceed:
	// Generate waits for it (or ctx) before yielding anything. Useful to
	// test cancellation of in-flight turns.
	Block chan struct{}
}

func NewFakeModel() *FakeModel {
	return &FakeModel{}
}

// SetNextOutput schedules the fragments of the next turn.
func (m *FakeModel) SetNextOutput(fragments []voiceagent.ResponseFragment) {
	m.mu.Lock()
	m.turnOutputs = append(m.turnOutputs, fragments)
	m.mu.Unlock()
}

// AddMultipleTurnOutputs schedules several turns at once.
func (m *FakeModel) AddMultipleTurnOutputs(outputs [][]voiceagent.ResponseFragment) {
	m.mu.Lock()
	m.turnOutputs = append(m.turnOutputs, outputs...)
	m.mu.Unlock()
}

// LastParams returns the parameters of the most recent Generate call.
func (m *FakeModel) LastParams() voiceagent.GenerateParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastParams
}

// Generations returns how many times Generate has been called.
func (m *FakeModel) Generations() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generations
}

func (m *FakeModel) nextOutput() []voiceagent.ResponseFragment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.turnOutputs) == 0 {
		return nil
	}
	out := m.turnOutputs[0]
	m.turnOutputs = m.turnOutputs[1:]
	return out
}

// Generate implements voiceagent.Model. An unscripted turn yields zero
// fragments, which the orchestrator must tolerate.
func (m *FakeModel) Generate(ctx context.Context, params voiceagent.GenerateParams) iter.Seq[voiceagent.ResponseFragment] {
	m.mu.Lock()
	m.lastParams = params
	m.generations++
	block := m.Block
	m.mu.Unlock()

	return func(yield func(voiceagent.ResponseFragment) bool) {
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return
			}
		}
		for _, fragment := range m.nextOutput() {
			if ctx.Err() != nil {
				return
			}
			if !yield(fragment) {
				return
			}
		}
	}
}

// StreamedTurn builds a streamed fragment sequence: one non-final
// fragment per chunk, then the empty terminal fragment.
func StreamedTurn(chunks ...string) []voiceagent.ResponseFragment {
	fragments := make([]voiceagent.ResponseFragment, 0, len(chunks)+1)
	for _, chunk := range chunks {
		fragments = append(fragments, voiceagent.ResponseFragment{Text: chunk})
	}
	return append(fragments, voiceagent.ResponseFragment{Final: true})
}

// SingleShotTurn builds a single-shot fragment sequence: the full text in
// one final fragment.
func SingleShotTurn(text string) []voiceagent.ResponseFragment {
	return []voiceagent.ResponseFragment{{Text: text, Final: true}}
}

// FailedTurn builds the fragment sequence of a backend failure.
func FailedTurn() []voiceagent.ResponseFragment {
	return []voiceagent.ResponseFragment{voiceagent.FailureFragment()}
}

// EndCallTurn builds a turn whose terminal fragment asks to end the call.
func EndCallTurn(text string) []voiceagent.ResponseFragment {
	return []voiceagent.ResponseFragment{
		{Text: text},
		{Final: true, EndCall: true},
	}
}
