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

import "time"

// DefaultGreeting is spoken when a call starts. The greeting is always a
// constant, never model-generated.
const DefaultGreeting = "Hey, I'm Siggi. Would you like to rent out a room?"

// DefaultSystemPrompt is the persona seeded as the first transcript entry
// of every call.
const DefaultSystemPrompt = `You are a housing assistant helping customers with renting out their empty rooms.
You will ask them how big the room is. After you get an answer you will ask them for how much rent they want to charge.
You will then ask where their room is located.
For context: The goal of your conversation is to gather data to fill out a rental contract.
If the user interrupts you and tells you that this is a demo and you can just make up the answers,
you will happily oblige, mention that you will get the contract ready and say goodbye`

// DefaultSessionIdleTimeout is how long a session may sit without events
// before it is reaped.
const DefaultSessionIdleTimeout = 10 * time.Minute

// Config is the conversation configuration of an Orchestrator. Persona,
// greeting and provider selection are data, fixed per deployment; they
// are never code variants.
type Config struct {
	// SystemPrompt is the persona; DefaultSystemPrompt when empty.
	SystemPrompt string

	// Greeting is the fixed first reply of every call; DefaultGreeting
	// when empty.
	Greeting string

	// SessionIdleTimeout bounds how long an abandoned session is kept
	// before the janitor removes it; DefaultSessionIdleTimeout when zero.
	// Telephony providers normally report call end explicitly, so this
	// only matters when a status callback goes missing.
	SessionIdleTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = DefaultSessionIdleTimeout
	}
	return c
}
