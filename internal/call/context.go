package call

import (
	"encoding/json"
	"fmt"
)

// Context tags an outbound action so the event it produces can be routed.
type Context string

const (
	ContextIVRLangSelect  Context = "ivr_lang_select"
	ContextGoodbye        Context = "goodbye"
	ContextTransferFailed Context = "transfer_failed"
	ContextConnectAgent   Context = "connect_agent"
)

var knownContexts = map[Context]struct{}{
	ContextIVRLangSelect:  {},
	ContextGoodbye:        {},
	ContextTransferFailed: {},
	ContextConnectAgent:   {},
}

// Contexts is the set of tags attached to one outbound action.
type Contexts []Context

// Has reports whether tag is part of the set.
func (c Contexts) Has(tag Context) bool {
	for _, t := range c {
		if t == tag {
			return true
		}
	}
	return false
}

// Encode renders the set as the operation context token: a JSON array of tag
// names. An empty set encodes to the empty string.
func (c Contexts) Encode() string {
	if len(c) == 0 {
		return ""
	}
	raw, _ := json.Marshal([]Context(c))
	return string(raw)
}

// ParseContexts decodes an operation context token. Unknown tag names are an
// error; the empty string is an empty set.
func ParseContexts(raw string) (Contexts, error) {
	if raw == "" {
		return nil, nil
	}
	var tags []Context
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("invalid operation context %q: %w", raw, err)
	}
	for _, tag := range tags {
		if _, ok := knownContexts[tag]; !ok {
			return nil, fmt.Errorf("unknown operation context tag %q", tag)
		}
	}
	return Contexts(tags), nil
}
