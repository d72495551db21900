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

import "sync"

// emitter is the minimal sql.EventEmitter this module offers: DDL fires
// "schema-changed" so a caller caching plans can invalidate them (§4.G).
type emitter struct {
	mu   sync.Mutex
	subs map[string][]func(interface{})
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[string][]func(interface{}))}
}

func (e *emitter) Emit(event string, payload interface{}) {
	e.mu.Lock()
	fns := append([]func(interface{}){}, e.subs[event]...)
	e.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func (e *emitter) Subscribe(event string, fn func(payload interface{})) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs[event] = append(e.subs[event], fn)
}
