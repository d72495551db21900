// Copyright 2020-2021 Dolthub, Inc.
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

package memory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitterDeliversToSubscriber(t *testing.T) {
	e := newEmitter()

	var got interface{}
	e.Subscribe("changed", func(payload interface{}) { got = payload })

	e.Emit("changed", "table1")
	require.Equal(t, "table1", got)
}

func TestEmitterIgnoresUnrelatedEvent(t *testing.T) {
	e := newEmitter()

	called := false
	e.Subscribe("changed", func(payload interface{}) { called = true })

	e.Emit("other", "payload")
	require.False(t, called)
}

func TestEmitterDeliversToEverySubscriber(t *testing.T) {
	e := newEmitter()

	var calls int
	e.Subscribe("changed", func(payload interface{}) { calls++ })
	e.Subscribe("changed", func(payload interface{}) { calls++ })

	e.Emit("changed", nil)
	require.Equal(t, 2, calls)
}

func TestEmitterEmitWithNoSubscribersIsSafe(t *testing.T) {
	e := newEmitter()
	require.NotPanics(t, func() { e.Emit("changed", nil) })
}
