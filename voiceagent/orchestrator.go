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
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nlpodyssey/voiceagent-go/usage"
)

// EventKind classifies an inbound telephony event.
type EventKind string

const (
	EventNewCall        EventKind = "new_call"
	EventSpeech         EventKind = "speech"
	EventSilenceTimeout EventKind = "silence_timeout"
	EventCallEnded      EventKind = "call_ended"
)

// CallEvent is one inbound event from the telephony adapter.
type CallEvent struct {
	// CallID is the opaque provider-assigned call identifier.
	CallID string

	Kind EventKind

	// Speech is the recognized caller speech, when any accompanied the
	// event.
	Speech string
}

// TurnResult is what the telephony adapter should do next: speak
// SpokenText (possibly nothing) and either keep listening or end the
// call.
type TurnResult struct {
	SpokenText        string
	ContinueListening bool
}

// OrchestratorParams configures a new Orchestrator.
type OrchestratorParams struct {
	// Model is the language-model backend. Required.
	Model Model

	// Store is the session store; a fresh empty one when nil. The store
	// is owned by the orchestrator, never shared process-wide, so two
	// orchestrators (e.g. under test) cannot share state accidentally.
	Store *TranscriptStore

	Config Config
}

// Orchestrator is the per-call turn state machine. It decides when to
// seed a new conversation versus continue one, drives the prompt builder
// and the model backend, updates the transcript store, and answers every
// event with the next spoken output and a continuation directive.
//
// HandleEvent may be invoked concurrently for distinct call IDs; events
// for one call ID serialize on a per-call lock. The only error it ever
// returns is a MalformedEventError; everything else is absorbed into a
// graceful spoken fallback, because a phone call has no channel for
// silent failure.
type Orchestrator struct {
	model  Model
	store  *TranscriptStore
	config Config

	mu       sync.Mutex
	locks    map[string]*callLock
	inflight map[string]context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// NewOrchestrator creates an Orchestrator and starts its session janitor.
// Call Close when done with it.
func NewOrchestrator(params OrchestratorParams) *Orchestrator {
	if params.Model == nil {
		panic("voiceagent: NewOrchestrator requires a Model")
	}
	store := params.Store
	if store == nil {
		store = NewTranscriptStore()
	}

	o := &Orchestrator{
		model:    params.Model,
		store:    store,
		config:   params.Config.withDefaults(),
		locks:    make(map[string]*callLock),
		inflight: make(map[string]context.CancelFunc),
		done:     make(chan struct{}),
	}
	go o.runJanitor()
	return o
}

// Store exposes the session store, mainly for adapters and tests.
func (o *Orchestrator) Store() *TranscriptStore {
	return o.store
}

// Active reports whether callID has a session.
func (o *Orchestrator) Active(callID string) bool {
	_, ok := o.store.Transcript(callID)
	return ok
}

// Close stops the janitor and cancels any in-flight model calls. Sessions
// are simply dropped; there is no persistence to flush.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
		o.mu.Lock()
		for _, cancel := range o.inflight {
			cancel()
		}
		o.mu.Unlock()
	})
}

// HandleEvent processes one inbound call event and returns what to speak
// next. It blocks for the duration of at most one model call; ctx
// cancellation stops an in-flight call, as does a call_ended event
// arriving concurrently.
func (o *Orchestrator) HandleEvent(ctx context.Context, event CallEvent) (TurnResult, error) {
	if event.CallID == "" {
		return TurnResult{}, NewMalformedEventError("event has no call ID")
	}

	switch event.Kind {
	case EventNewCall, EventSpeech, EventSilenceTimeout:
		return o.handleTurn(ctx, event)
	case EventCallEnded:
		o.endCall(event.CallID)
		return TurnResult{}, nil
	default:
		return TurnResult{}, MalformedEventErrorf("unknown event kind %q", event.Kind)
	}
}

func (o *Orchestrator) handleTurn(ctx context.Context, event CallEvent) (TurnResult, error) {
	unlock := o.lockCall(event.CallID)
	defer unlock()

	transcript, created := o.store.GetOrCreate(event.CallID, o.config.SystemPrompt)
	if created {
		Logger().Info("call started", slog.String("call_id", event.CallID))
	}

	speech := strings.TrimSpace(event.Speech)
	reminder := event.Kind == EventSilenceTimeout

	if created && speech == "" && !reminder {
		// The very first greeting is a constant; no model call is made
		// for it.
		return TurnResult{SpokenText: o.config.Greeting, ContinueListening: true}, nil
	}

	if !reminder {
		if speech == "" {
			// Nothing was recognized: a no-op turn. Deliberate silence,
			// keep listening.
			return TurnResult{ContinueListening: true}, nil
		}
		if err := o.store.Append(event.CallID, Utterance{Role: SpeakerUser, Content: speech}); err != nil {
			// Session vanished between GetOrCreate and Append; fatal to
			// the turn, not to the process.
			Logger().Warn("dropping event for unknown session",
				slog.String("call_id", event.CallID),
				slog.String("error", err.Error()))
			return TurnResult{}, nil
		}
		transcript = append(transcript, Utterance{Role: SpeakerUser, Content: speech})
	}

	reply, endCall, ok := o.generateReply(ctx, event.CallID, transcript, reminder)
	if !ok {
		// Canceled mid-generation (call ended or caller gone); partial
		// output is discarded.
		return TurnResult{}, nil
	}

	// Reminder replies are spoken but never persisted: the transcript
	// only grows on regular speech turns.
	if !reminder && reply != "" {
		if err := o.store.Append(event.CallID, Utterance{Role: SpeakerAgent, Content: reply}); err != nil {
			Logger().Warn("dropping reply for unknown session",
				slog.String("call_id", event.CallID),
				slog.String("error", err.Error()))
			return TurnResult{}, nil
		}
	}

	return TurnResult{SpokenText: reply, ContinueListening: !endCall}, nil
}

// generateReply runs one model turn and concatenates the fragment text in
// arrival order. The third return value is false when the turn was
// canceled while the model was generating.
func (o *Orchestrator) generateReply(ctx context.Context, callID string, transcript []Utterance, reminder bool) (string, bool, bool) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.registerInflight(callID, cancel)
	defer o.unregisterInflight(callID)

	if u, ok := o.store.Usage(callID); ok {
		genCtx = usage.NewContext(genCtx, u)
	}

	interaction := InteractionResponseRequired
	if reminder {
		interaction = InteractionReminderRequired
	}

	params := GenerateParams{
		Messages:    BuildPrompt(transcript, reminder),
		ResponseID:  uuid.NewString(),
		Interaction: interaction,
	}

	var sb strings.Builder
	endCall := false
	for fragment := range o.model.Generate(genCtx, params) {
		sb.WriteString(fragment.Text)
		if fragment.EndCall {
			endCall = true
		}
	}

	if genCtx.Err() != nil {
		Logger().Info("turn canceled mid-generation",
			slog.String("call_id", callID),
			slog.String("response_id", params.ResponseID))
		return "", false, false
	}

	// A backend yielding zero fragments is tolerated: the turn produces
	// an empty reply and the call keeps listening.
	return sb.String(), endCall, true
}

func (o *Orchestrator) endCall(callID string) {
	o.cancelInflight(callID)

	unlock := o.lockCall(callID)
	defer unlock()

	if u, ok := o.store.Usage(callID); ok {
		Logger().Info("call ended",
			slog.String("call_id", callID),
			slog.Uint64("requests", u.Requests),
			slog.Uint64("total_tokens", u.TotalTokens))
	}

	o.store.Remove(callID)
}

// callLock serializes events for one call ID. holders counts every
// goroutine that obtained the entry through the map and has not released
// it yet; the last one out removes the entry, so a late event can never
// race a fresh mutex against one still held.
type callLock struct {
	mu      sync.Mutex
	holders int
}

func (o *Orchestrator) lockCall(callID string) func() {
	o.mu.Lock()
	l, ok := o.locks[callID]
	if !ok {
		l = new(callLock)
		o.locks[callID] = l
	}
	l.holders++
	o.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		o.mu.Lock()
		l.holders--
		if l.holders == 0 {
			delete(o.locks, callID)
		}
		o.mu.Unlock()
	}
}

func (o *Orchestrator) registerInflight(callID string, cancel context.CancelFunc) {
	o.mu.Lock()
	o.inflight[callID] = cancel
	o.mu.Unlock()
}

func (o *Orchestrator) unregisterInflight(callID string) {
	o.mu.Lock()
	delete(o.inflight, callID)
	o.mu.Unlock()
}

func (o *Orchestrator) cancelInflight(callID string) {
	o.mu.Lock()
	cancel, ok := o.inflight[callID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
}

// The janitor periodically reaps sessions that stopped receiving events
// without a call-ended notification; they would otherwise leak for the
// lifetime of the process.
func (o *Orchestrator) runJanitor() {
	interval := o.config.SessionIdleTimeout / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.done:
			return
		case <-ticker.C:
			for _, callID := range o.store.reapIdle(o.config.SessionIdleTimeout) {
				Logger().Info("reaped idle session", slog.String("call_id", callID))
				o.cancelInflight(callID)
			}
		}
	}
}
