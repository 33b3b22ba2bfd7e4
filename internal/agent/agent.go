// Package agent implements the tool-augmented investigation capability used
// by detective stages. An investigator drives a language model through a
// bounded act-observe loop against a tool session and returns the full
// interaction transcript. The pipeline core consumes only the transcript
// shape; tool implementations live in the tools package.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Turn is one entry in an investigation transcript: either model text, or a
// tool call paired with its result.
type Turn struct {
	// Text is a plain model message; empty for tool-call turns.
	Text string
	// ToolName and ToolArgs describe the tool call, if any.
	ToolName string
	ToolArgs map[string]any
	// ToolResult is the serialized tool output. Failed calls carry the
	// failure text here so the model can observe and recover.
	ToolResult string
}

// IsToolCall reports whether the turn records a tool invocation.
func (t Turn) IsToolCall() bool { return t.ToolName != "" }

// Transcript is the ordered record of an investigation.
type Transcript struct {
	Turns []Turn
}

// ToolCallCount returns the number of tool invocations in the transcript.
func (tr *Transcript) ToolCallCount() int {
	n := 0
	for _, t := range tr.Turns {
		if t.IsToolCall() {
			n++
		}
	}
	return n
}

// Serialize renders the transcript as ordered text lines, the form handed to
// the evidence extraction prompt. Tool call arguments and tool results are
// included so extraction sees everything the investigator saw.
func (tr *Transcript) Serialize() string {
	var b strings.Builder
	for _, t := range tr.Turns {
		if t.IsToolCall() {
			args, err := json.Marshal(t.ToolArgs)
			if err != nil {
				args = []byte("{}")
			}
			fmt.Fprintf(&b, "tool_call: %s %s\n", t.ToolName, args)
			fmt.Fprintf(&b, "tool_result: %s\n", t.ToolResult)
			continue
		}
		fmt.Fprintf(&b, "assistant: %s\n", t.Text)
	}
	return b.String()
}

// Investigator runs a bounded tool-augmented investigation and returns its
// transcript. maxSteps caps the number of model turns to prevent unbounded
// resource consumption.
type Investigator interface {
	Run(ctx context.Context, systemPrompt, userMessage string, maxSteps int) (*Transcript, error)
}

// ToolInfo describes one callable tool advertised by a session.
type ToolInfo struct {
	Name        string
	Description string
}

// ToolSession is the investigator's view of a connected tool server.
type ToolSession interface {
	// Tools lists the callable tools.
	Tools(ctx context.Context) ([]ToolInfo, error)
	// CallTool invokes a tool and returns its serialized text output.
	// Tool-level failures are returned as errors.
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}
