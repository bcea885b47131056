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

// Package modelsettings holds the model parameters used when drafting a
// spoken reply.
package modelsettings

import (
	"maps"

	"github.com/openai/openai-go/v3/packages/param"
)

// ModelSettings holds settings to use when calling an LLM.
//
// This type holds optional model configuration parameters. Not every
// provider supports every parameter, so please check the API
// documentation for the specific model and provider you are using.
type ModelSettings struct {
	// The temperature to use when calling the model.
	Temperature param.Opt[float64] `json:"temperature"`

	// The top_p to use when calling the model.
	TopP param.Opt[float64] `json:"top_p"`

	// The maximum number of output tokens to generate. Voice replies are
	// short; keeping this bounded also bounds per-turn latency.
	MaxTokens param.Opt[int64] `json:"max_tokens"`

	// Optional metadata to include with the model call.
	Metadata map[string]string `json:"metadata"`
}

// Defaults are the settings used when none are configured: the values a
// brief, natural-sounding phone reply wants.
func Defaults() ModelSettings {
	return ModelSettings{
		Temperature: param.NewOpt(0.7),
		MaxTokens:   param.NewOpt[int64](1024),
	}
}

// Resolve returns a new ModelSettings with the values of override merged
// over the receiver. Zero-valued fields of override are ignored.
func (ms ModelSettings) Resolve(override ModelSettings) ModelSettings {
	out := ms
	if override.Temperature.Valid() {
		out.Temperature = override.Temperature
	}
	if override.TopP.Valid() {
		out.TopP = override.TopP
	}
	if override.MaxTokens.Valid() {
		out.MaxTokens = override.MaxTokens
	}
	if override.Metadata != nil {
		out.Metadata = maps.Clone(override.Metadata)
	}
	return out
}
