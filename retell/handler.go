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

// Package retell adapts the Retell AI custom-LLM websocket protocol to
// the conversation orchestrator. Retell handles telephony, speech
// recognition and synthesis; it opens one websocket per call and sends
// interaction events (response_required, reminder_required, ping_pong),
// expecting response frames with the text to speak.
//
// Replies are sent as one complete frame per turn; the per-fragment
// streaming of the model backend stays internal to the orchestrator.
package retell

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/nlpodyssey/voiceagent-go/voiceagent"
)

// Interaction types sent by Retell.
const (
	InteractionResponseRequired = "response_required"
	InteractionReminderRequired = "reminder_required"
	InteractionPingPong         = "ping_pong"
	InteractionUpdateOnly       = "update_only"
	InteractionCallDetails      = "call_details"
)

// interactionEvent is one inbound frame.
type interactionEvent struct {
	InteractionType string      `json:"interaction_type"`
	ResponseID      int         `json:"response_id"`
	Transcript      []utterance `json:"transcript"`
	Timestamp       int64       `json:"timestamp"`
}

// utterance is one transcript entry as Retell serializes it.
type utterance struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// responseFrame is the reply frame Retell speaks to the caller.
type responseFrame struct {
	ResponseType    string `json:"response_type"`
	ResponseID      int    `json:"response_id"`
	Content         string `json:"content"`
	ContentComplete bool   `json:"content_complete"`
	EndCall         bool   `json:"end_call"`
}

type pingPongFrame struct {
	ResponseType string `json:"response_type"`
	Timestamp    int64  `json:"timestamp"`
}

// Handler serves the custom-LLM websocket endpoint.
type Handler struct {
	orchestrator *voiceagent.Orchestrator
	upgrader     websocket.Upgrader
}

// NewHandler creates a Handler around an orchestrator.
func NewHandler(orchestrator *voiceagent.Orchestrator) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Routes returns the websocket router: one endpoint per call ID.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/llm-websocket/{call_id}", h.handleWebSocket)
	return r
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "call_id")
	if callID == "" {
		http.Error(w, "missing call ID", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		voiceagent.Logger().Warn("websocket upgrade failed",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := r.Context()

	// The connection opening is the start of the call; the begin
	// message is the constant greeting, spoken before the caller says
	// anything.
	result, err := h.orchestrator.HandleEvent(ctx, voiceagent.CallEvent{
		CallID: callID,
		Kind:   voiceagent.EventNewCall,
	})
	if err != nil {
		voiceagent.Logger().Warn("rejecting websocket call",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return
	}
	if err := conn.WriteJSON(responseFrame{
		ResponseType:    "response",
		ResponseID:      0,
		Content:         result.SpokenText,
		ContentComplete: true,
	}); err != nil {
		return
	}

	h.readLoop(ctx, conn, callID)

	// However the socket went away, the call is over; the session must
	// not outlive it. The request context is gone by now.
	endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _ = h.orchestrator.HandleEvent(endCtx, voiceagent.CallEvent{
		CallID: callID,
		Kind:   voiceagent.EventCallEnded,
	})
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, callID string) {
	for {
		var event interactionEvent
		if err := conn.ReadJSON(&event); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				voiceagent.Logger().Info("websocket closed",
					slog.String("call_id", callID),
					slog.String("error", err.Error()))
			}
			return
		}

		switch event.InteractionType {
		case InteractionPingPong:
			if err := conn.WriteJSON(pingPongFrame{
				ResponseType: InteractionPingPong,
				Timestamp:    event.Timestamp,
			}); err != nil {
				return
			}

		case InteractionUpdateOnly, InteractionCallDetails:
			// Informational; our transcript store is the source of
			// truth for history.

		case InteractionResponseRequired, InteractionReminderRequired:
			if !h.handleTurn(ctx, conn, callID, event) {
				return
			}

		default:
			voiceagent.Logger().Warn("unknown interaction type",
				slog.String("call_id", callID),
				slog.String("interaction_type", event.InteractionType))
		}
	}
}

// handleTurn runs one conversational turn and writes the reply frame. It
// reports whether the connection is still usable.
func (h *Handler) handleTurn(ctx context.Context, conn *websocket.Conn, callID string, event interactionEvent) bool {
	callEvent := voiceagent.CallEvent{CallID: callID}
	if event.InteractionType == InteractionReminderRequired {
		callEvent.Kind = voiceagent.EventSilenceTimeout
	} else {
		callEvent.Kind = voiceagent.EventSpeech
		callEvent.Speech = lastUserUtterance(event.Transcript)
	}

	result, err := h.orchestrator.HandleEvent(ctx, callEvent)
	if err != nil {
		voiceagent.Logger().Warn("dropping malformed interaction event",
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return true
	}

	return conn.WriteJSON(responseFrame{
		ResponseType:    "response",
		ResponseID:      event.ResponseID,
		Content:         result.SpokenText,
		ContentComplete: true,
		EndCall:         !result.ContinueListening,
	}) == nil
}

// lastUserUtterance returns the content of the most recent caller entry
// of a Retell transcript. Retell resends the whole transcript with every
// event; only the newest caller utterance is new to us.
func lastUserUtterance(transcript []utterance) string {
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "user" {
			return transcript[i].Content
		}
	}
	return ""
}
