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
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig is the voiceagentd configuration file.
type ServerConfig struct {
	// ListenAddress is the HTTP listen address (default ":8080").
	ListenAddress string `yaml:"listen_address"`
	// PublicURL is the externally visible base URL of this server, as
	// configured on the telephony side. It is required for Twilio
	// signature verification behind a proxy.
	PublicURL string `yaml:"public_url"`

	OpenAI OpenAIConfig `yaml:"openai"`
	Agent  AgentConfig  `yaml:"agent"`
	Twilio TwilioConfig `yaml:"twilio"`
}

// OpenAIConfig selects and configures the model backend.
type OpenAIConfig struct {
	Model     string   `yaml:"model"`
	APIKey    string   `yaml:"api_key"`
	BaseURL   string   `yaml:"base_url"`
	Streaming bool     `yaml:"streaming"`
	Timeout   Duration `yaml:"timeout"`
}

// AgentConfig customizes the conversation itself.
type AgentConfig struct {
	SystemPrompt       string   `yaml:"system_prompt"`
	Greeting           string   `yaml:"greeting"`
	SessionIdleTimeout Duration `yaml:"session_idle_timeout"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "30s" or "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// TwilioConfig configures the Twilio webhook adapter.
type TwilioConfig struct {
	AuthToken     string `yaml:"auth_token"`
	GatherTimeout int    `yaml:"gather_timeout"`
	Language      string `yaml:"language"`
	Voice         string `yaml:"voice"`
}

// DefaultServerConfig returns the configuration used when no file is
// given.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		ListenAddress: ":8080",
		OpenAI: OpenAIConfig{
			Model:     "gpt-4o",
			Streaming: true,
		},
	}
}

// LoadServerConfig reads a YAML configuration file and applies
// environment overrides. An empty path yields the defaults.
func LoadServerConfig(path string) (ServerConfig, error) {
	config := DefaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return ServerConfig{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return ServerConfig{}, fmt.Errorf("parsing config file %q: %w", path, err)
		}
	}

	config.applyEnvOverrides()
	return config, nil
}

// applyEnvOverrides lets secrets come from the environment instead of
// the config file.
func (c *ServerConfig) applyEnvOverrides() {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		c.OpenAI.BaseURL = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		c.Twilio.AuthToken = v
	}
}

// Validate reports configuration errors that would only surface at the
// first model call otherwise.
func (c *ServerConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("listen_address must not be empty")
	}
	if c.OpenAI.Model == "" {
		return fmt.Errorf("openai.model must not be empty")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is not set (or OPENAI_API_KEY)")
	}
	return nil
}
