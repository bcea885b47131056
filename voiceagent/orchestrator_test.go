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

package voiceagent_test

import (
	"sync"
	"testing"
	"time"

	"github.com/nlpodyssey/voiceagent-go/voiceagent"
	"github.com/nlpodyssey/voiceagent-go/voiceagenttesting"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(t *testing.T, model voiceagent.Model) *voiceagent.Orchestrator {
	t.Helper()
	o := voiceagent.NewOrchestrator(voiceagent.OrchestratorParams{
		Model: model,
		Config: voiceagent.Config{
			SystemPrompt: "persona",
			Greeting:     "Hey, I'm Siggi. Would you like to rent out a room?",
		},
	})
	t.Cleanup(o.Close)
	return o
}

func TestOrchestrator_NewCall(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	o := newTestOrchestrator(t, model)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventNewCall,
	})
	require.NoError(t, err)

	assert.Equal(t, "Hey, I'm Siggi. Would you like to rent out a room?", result.SpokenText)
	assert.True(t, result.ContinueListening)

	// The greeting is a constant: no model call is made for it.
	assert.Zero(t, model.Generations())

	transcript, ok := o.Store().Transcript("c1")
	require.True(t, ok)
	assert.Equal(t, []voiceagent.Utterance{
		{Role: voiceagent.SpeakerSystem, Content: "persona"},
	}, transcript)
}

func TestOrchestrator_SpeechTurn(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.SetNextOutput(voiceagenttesting.StreamedTurn("How much rent ", "do you want?"))
	o := newTestOrchestrator(t, model)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "The room is 12 square meters",
	})
	require.NoError(t, err)

	assert.Equal(t, "How much rent do you want?", result.SpokenText)
	assert.True(t, result.ContinueListening)

	// Exactly two utterances per successful speech turn: user, then agent.
	transcript, ok := o.Store().Transcript("c1")
	require.True(t, ok)
	assert.Equal(t, []voiceagent.Utterance{
		{Role: voiceagent.SpeakerSystem, Content: "persona"},
		{Role: voiceagent.SpeakerUser, Content: "The room is 12 square meters"},
		{Role: voiceagent.SpeakerAgent, Content: "How much rent do you want?"},
	}, transcript)

	params := model.LastParams()
	assert.Equal(t, voiceagent.InteractionResponseRequired, params.Interaction)
	assert.NotEmpty(t, params.ResponseID)
	assert.Equal(t, []voiceagent.ChatMessage{
		{Role: voiceagent.RoleSystem, Content: "persona"},
		{Role: voiceagent.RoleUser, Content: "The room is 12 square meters"},
	}, params.Messages)
}

func TestOrchestrator_StreamingConcatenation(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.SetNextOutput(voiceagenttesting.StreamedTurn("Hel", "lo", " there"))
	o := newTestOrchestrator(t, model)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", result.SpokenText)

	transcript, ok := o.Store().Transcript("c1")
	require.True(t, ok)
	assert.Equal(t, voiceagent.Utterance{
		Role:    voiceagent.SpeakerAgent,
		Content: "Hello there",
	}, transcript[len(transcript)-1])
}

func TestOrchestrator_ReminderTurn(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.AddMultipleTurnOutputs([][]voiceagent.ResponseFragment{
		voiceagenttesting.StreamedTurn("Got it."),
		voiceagenttesting.StreamedTurn("Are you still there?"),
	})
	o := newTestOrchestrator(t, model)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)
	_, err = o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventSpeech, Speech: "hello"})
	require.NoError(t, err)

	before, ok := o.Store().Transcript("c1")
	require.True(t, ok)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSilenceTimeout,
	})
	require.NoError(t, err)
	assert.Equal(t, "Are you still there?", result.SpokenText)
	assert.True(t, result.ContinueListening)

	// The synthetic reminder entry reaches the model prompt only; the
	// transcript does not grow on a reminder turn.
	after, ok := o.Store().Transcript("c1")
	require.True(t, ok)
	assert.Equal(t, before, after)

	params := model.LastParams()
	assert.Equal(t, voiceagent.InteractionReminderRequired, params.Interaction)
	assert.Equal(t, voiceagent.ChatMessage{
		Role:    voiceagent.RoleUser,
		Content: voiceagent.ReminderPrompt,
	}, params.Messages[len(params.Messages)-1])
}

func TestOrchestrator_BackendFailure(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.SetNextOutput(voiceagenttesting.FailedTurn())
	o := newTestOrchestrator(t, model)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "hello",
	})
	require.NoError(t, err)

	assert.Equal(t, voiceagent.FallbackReply, result.SpokenText)
	assert.False(t, result.ContinueListening)
}

func TestOrchestrator_ModelRequestsEndOfCall(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.SetNextOutput(voiceagenttesting.EndCallTurn("Goodbye!"))
	o := newTestOrchestrator(t, model)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "this is a demo, make it up",
	})
	require.NoError(t, err)

	assert.Equal(t, "Goodbye!", result.SpokenText)
	assert.False(t, result.ContinueListening)
}

func TestOrchestrator_CallEnded(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	o := newTestOrchestrator(t, model)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)
	require.True(t, o.Active("c1"))

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventCallEnded})
	require.NoError(t, err)
	assert.Zero(t, result)
	assert.False(t, o.Active("c1"))

	// Ending an already-ended call is a no-op.
	_, err = o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventCallEnded})
	require.NoError(t, err)
}

func TestOrchestrator_MalformedEvent(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	o := newTestOrchestrator(t, model)

	t.Run("missing call ID", func(t *testing.T) {
		_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{Kind: voiceagent.EventSpeech, Speech: "hi"})
		require.Error(t, err)
		assert.Zero(t, model.Generations())
		assert.Equal(t, 0, o.Store().Len())
	})

	t.Run("unknown event kind", func(t *testing.T) {
		_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: "telepathy"})
		require.Error(t, err)
		assert.Equal(t, 0, o.Store().Len())
	})
}

func TestOrchestrator_EmptySpeech(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	o := newTestOrchestrator(t, model)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "   ",
	})
	require.NoError(t, err)

	// A no-op turn: nothing to say, keep listening, no model call.
	assert.Empty(t, result.SpokenText)
	assert.True(t, result.ContinueListening)
	assert.Zero(t, model.Generations())

	transcript, ok := o.Store().Transcript("c1")
	require.True(t, ok)
	assert.Len(t, transcript, 1)
}

func TestOrchestrator_ZeroFragments(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	// No scripted output: the backend stream ends without yielding.
	o := newTestOrchestrator(t, model)

	result, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
		CallID: "c1",
		Kind:   voiceagent.EventSpeech,
		Speech: "hello",
	})
	require.NoError(t, err)

	assert.Empty(t, result.SpokenText)
	assert.True(t, result.ContinueListening)
	assert.True(t, o.Active("c1"))
}

func TestOrchestrator_CancelInflightOnCallEnded(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.Block = make(chan struct{})
	model.SetNextOutput(voiceagenttesting.StreamedTurn("never spoken"))
	o := newTestOrchestrator(t, model)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	var result voiceagent.TurnResult
	go func() {
		defer wg.Done()
		result, err = o.HandleEvent(t.Context(), voiceagent.CallEvent{
			CallID: "c1",
			Kind:   voiceagent.EventSpeech,
			Speech: "hello",
		})
	}()

	// Let the turn reach the model, then end the call underneath it.
	require.Eventually(t, func() bool { return model.Generations() == 1 },
		time.Second, time.Millisecond)

	_, endErr := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventCallEnded})
	require.NoError(t, endErr)

	wg.Wait()
	require.NoError(t, err)

	// Partial output was discarded and the session is gone.
	assert.Zero(t, result)
	assert.False(t, o.Active("c1"))
}

func TestOrchestrator_ConcurrentCalls(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	model.AddMultipleTurnOutputs([][]voiceagent.ResponseFragment{
		voiceagenttesting.SingleShotTurn("reply"),
		voiceagenttesting.SingleShotTurn("reply"),
		voiceagenttesting.SingleShotTurn("reply"),
		voiceagenttesting.SingleShotTurn("reply"),
	})
	o := newTestOrchestrator(t, model)

	var wg sync.WaitGroup
	for _, callID := range []string{"c1", "c2", "c3", "c4"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{
				CallID: callID,
				Kind:   voiceagent.EventSpeech,
				Speech: "hello",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, o.Store().Len())
	for _, callID := range []string{"c1", "c2", "c3", "c4"} {
		transcript, ok := o.Store().Transcript(callID)
		require.True(t, ok)
		assert.Len(t, transcript, 3)
	}
}

func TestOrchestrator_IdleSessionsAreReaped(t *testing.T) {
	model := voiceagenttesting.NewFakeModel()
	o := voiceagent.NewOrchestrator(voiceagent.OrchestratorParams{
		Model: model,
		Config: voiceagent.Config{
			SessionIdleTimeout: 2 * time.Second,
		},
	})
	t.Cleanup(o.Close)

	_, err := o.HandleEvent(t.Context(), voiceagent.CallEvent{CallID: "c1", Kind: voiceagent.EventNewCall})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !o.Active("c1") },
		10*time.Second, 100*time.Millisecond)
}
