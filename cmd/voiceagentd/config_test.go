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

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfigDefaults(t *testing.T) {
	config, err := LoadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", config.ListenAddress)
	assert.Equal(t, "gpt-4o", config.OpenAI.Model)
	assert.True(t, config.OpenAI.Streaming)
}

func TestLoadServerConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_address: ":9000"
public_url: "https://agent.example.com"
openai:
  model: gpt-4o-mini
  api_key: sk-test
  streaming: false
  timeout: 45s
agent:
  greeting: "Hello there!"
  session_idle_timeout: 5m
twilio:
  auth_token: tok
  language: de-DE
`), 0o600))

	config, err := LoadServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", config.ListenAddress)
	assert.Equal(t, "https://agent.example.com", config.PublicURL)
	assert.Equal(t, "gpt-4o-mini", config.OpenAI.Model)
	assert.False(t, config.OpenAI.Streaming)
	assert.Equal(t, 45*time.Second, time.Duration(config.OpenAI.Timeout))
	assert.Equal(t, "Hello there!", config.Agent.Greeting)
	assert.Equal(t, 5*time.Minute, time.Duration(config.Agent.SessionIdleTimeout))
	assert.Equal(t, "de-DE", config.Twilio.Language)
	require.NoError(t, config.Validate())
}

func TestLoadServerConfigEnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("TWILIO_AUTH_TOKEN", "tok-from-env")

	config, err := LoadServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", config.OpenAI.APIKey)
	assert.Equal(t, "tok-from-env", config.Twilio.AuthToken)
}

func TestLoadServerConfigBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  timeout: nonsense\n"), 0o600))

	_, err := LoadServerConfig(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestServerConfigValidate(t *testing.T) {
	config := DefaultServerConfig()
	assert.ErrorContains(t, config.Validate(), "api_key")

	config.OpenAI.APIKey = "sk-test"
	assert.NoError(t, config.Validate())

	config.OpenAI.Model = ""
	assert.ErrorContains(t, config.Validate(), "model")
}