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

// Package twilio adapts Twilio programmable-voice webhooks to the
// conversation orchestrator. Twilio does the telephony work — answering
// the call, recognizing speech, speaking replies — and this package only
// translates webhook form posts into call events and turn results into
// TwiML.
package twilio

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/nlpodyssey/voiceagent-go/voiceagent"
)

const (
	// CallStatusCompleted is the status callback value that ends a
	// session.
	CallStatusCompleted = "completed"

	voiceWebhookPath  = "/webhook/voice"
	statusWebhookPath = "/webhook/status"
)

// Config holds the webhook-facing knobs of the adapter.
type Config struct {
	// AuthToken is the Twilio account auth token. When set, every
	// webhook request must carry a valid X-Twilio-Signature header.
	AuthToken string

	// PublicURL is the externally visible base URL of this server
	// (scheme and host), used to reconstruct the signed URL behind
	// proxies. The request's own host is used when empty.
	PublicURL string

	// GatherTimeout is how many seconds Twilio waits for the caller to
	// start speaking before posting a speechless webhook, which becomes
	// a silence-timeout event. Defaults to 10.
	GatherTimeout int

	// Language is the speech recognition and synthesis language.
	// Defaults to "en-US".
	Language string

	// Voice optionally selects a synthesis voice for Say verbs.
	Voice string
}

func (c Config) withDefaults() Config {
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = 10
	}
	if c.Language == "" {
		c.Language = "en-US"
	}
	return c
}

// Handler serves the Twilio voice and status webhooks.
type Handler struct {
	orchestrator *voiceagent.Orchestrator
	config       Config
}

// NewHandler creates a Handler around an orchestrator.
func NewHandler(orchestrator *voiceagent.Orchestrator, config Config) *Handler {
	return &Handler{
		orchestrator: orchestrator,
		config:       config.withDefaults(),
	}
}

// Routes returns the webhook router: a health check at /, the voice
// webhook, and the call-status callback.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.handleHealth)
	r.Post(voiceWebhookPath, h.handleVoice)
	r.Post(statusWebhookPath, h.handleStatus)
	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleVoice(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseAndVerify(w, r)
	if !ok {
		return
	}

	callSid := form("CallSid")
	speech := strings.TrimSpace(form("SpeechResult"))

	event := voiceagent.CallEvent{CallID: callSid, Speech: speech}
	switch {
	case !h.orchestrator.Active(callSid):
		event.Kind = voiceagent.EventNewCall
	case speech == "":
		// Gather gave up waiting for the caller to speak.
		event.Kind = voiceagent.EventSilenceTimeout
	default:
		event.Kind = voiceagent.EventSpeech
	}

	result, err := h.orchestrator.HandleEvent(r.Context(), event)
	if err != nil {
		voiceagent.Logger().Warn("rejecting malformed voice webhook",
			slog.String("error", err.Error()))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The Gather action must point back at this same webhook wherever
	// the router is mounted; Twilio resolves the path against the host
	// root.
	body, err := marshalTwiML(h.twimlFor(result, r.URL.Path))
	if err != nil {
		http.Error(w, "twiml rendering failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write(body)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseAndVerify(w, r)
	if !ok {
		return
	}

	callSid := form("CallSid")
	status := form("CallStatus")
	voiceagent.Logger().Info("call status update",
		slog.String("call_id", callSid),
		slog.String("status", status))

	if status == CallStatusCompleted {
		event := voiceagent.CallEvent{CallID: callSid, Kind: voiceagent.EventCallEnded}
		if _, err := h.orchestrator.HandleEvent(r.Context(), event); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// parseAndVerify parses the form body and, when an auth token is
// configured, checks the request signature. It writes the error response
// itself and reports success through the second return value.
func (h *Handler) parseAndVerify(w http.ResponseWriter, r *http.Request) (func(string) string, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form body", http.StatusBadRequest)
		return nil, false
	}

	if h.config.AuthToken != "" {
		requestURL := h.config.PublicURL
		if requestURL == "" {
			scheme := "http"
			if r.TLS != nil {
				scheme = "https"
			}
			requestURL = scheme + "://" + r.Host
		}
		requestURL += r.URL.RequestURI()

		signature := r.Header.Get("X-Twilio-Signature")
		if err := VerifySignature(h.config.AuthToken, signature, requestURL, r.PostForm); err != nil {
			voiceagent.Logger().Warn("rejecting unsigned webhook request",
				slog.String("error", err.Error()))
			http.Error(w, "signature verification failed", http.StatusForbidden)
			return nil, false
		}
	}

	return r.PostForm.Get, true
}

func (h *Handler) twimlFor(result voiceagent.TurnResult, action string) twimlResponse {
	var say *twimlSay
	if result.SpokenText != "" {
		say = &twimlSay{Text: result.SpokenText, Voice: h.config.Voice}
	}

	if !result.ContinueListening {
		return twimlResponse{Say: say, Hangup: &twimlHangup{}}
	}

	return twimlResponse{Gather: &twimlGather{
		Input:    "speech",
		Action:   action,
		Method:   http.MethodPost,
		Language: h.config.Language,
		Timeout:  h.config.GatherTimeout,
		Say:      say,
	}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
