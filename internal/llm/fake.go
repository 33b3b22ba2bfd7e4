package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Compile-time interface check.
var _ Client = (*ScriptedClient)(nil)

// ScriptedClient is a deterministic Client that replays canned responses in
// order. Once the script is exhausted the final response repeats, which lets
// retry loops and graph replays run against a fixed payload. It backs the
// CLI's mock mode and the package tests.
type ScriptedClient struct {
	mu        sync.Mutex
	responses []string
	next      int
	// Calls records every prompt received, for test assertions.
	Calls []string
}

// NewScriptedClient creates a ScriptedClient replaying the given responses.
func NewScriptedClient(responses ...string) *ScriptedClient {
	return &ScriptedClient{responses: responses}
}

// Invoke returns the next scripted response as plain text.
func (c *ScriptedClient) Invoke(_ context.Context, prompt string) (string, error) {
	return c.take(prompt)
}

// InvokeStructured decodes the next scripted response as JSON into out.
func (c *ScriptedClient) InvokeStructured(_ context.Context, prompt string, out any) error {
	payload, err := c.take(prompt)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return &SchemaValidationError{Detail: "decode scripted response", Cause: err}
	}
	return nil
}

func (c *ScriptedClient) take(prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, prompt)
	if len(c.responses) == 0 {
		return "", fmt.Errorf("scripted client has no responses")
	}
	payload := c.responses[c.next]
	if c.next < len(c.responses)-1 {
		c.next++
	}
	return payload, nil
}
