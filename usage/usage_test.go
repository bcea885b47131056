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

package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsageAdd(t *testing.T) {
	u := NewUsage()
	u.Add(&Usage{Requests: 1, InputTokens: 10, OutputTokens: 20, TotalTokens: 30})
	u.Add(&Usage{Requests: 1, InputTokens: 7, OutputTokens: 8, TotalTokens: 15})

	assert.Equal(t, Usage{
		Requests:     2,
		InputTokens:  17,
		OutputTokens: 28,
		TotalTokens:  45,
	}, *u)
}

func TestUsageContext(t *testing.T) {
	_, ok := FromContext(t.Context())
	assert.False(t, ok)

	u := NewUsage()
	ctx := NewContext(t.Context(), u)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, u, got)
}
