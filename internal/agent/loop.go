package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/dusk-indust/dueprocess/internal/llm"
)

// Compile-time interface check.
var _ Investigator = (*LoopInvestigator)(nil)

// DefaultMaxSteps bounds the investigation loop when the caller passes a
// non-positive limit.
const DefaultMaxSteps = 10

// stepAction is the structured decision the model returns on each loop step:
// either a tool invocation or a final text answer.
type stepAction struct {
	Tool  string         `json:"tool,omitempty"`
	Args  map[string]any `json:"args,omitempty"`
	Final string         `json:"final,omitempty"`
}

// LoopInvestigator implements the act-observe investigation loop on top of a
// structured-output language client and a tool session. Each step the model
// sees the system prompt, the tool list, and the transcript so far, and
// returns either a tool call (executed and appended with its result) or a
// final answer (ends the loop). Exhausting maxSteps ends the loop with
// whatever transcript was accumulated; the grounding check downstream
// decides whether that is acceptable.
type LoopInvestigator struct {
	model   llm.Client
	session ToolSession
}

// NewLoopInvestigator creates a LoopInvestigator over model and session.
func NewLoopInvestigator(model llm.Client, session ToolSession) *LoopInvestigator {
	return &LoopInvestigator{model: model, session: session}
}

// Run executes the bounded investigation loop.
func (inv *LoopInvestigator) Run(ctx context.Context, systemPrompt, userMessage string, maxSteps int) (*Transcript, error) {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}

	tools, err := inv.session.Tools(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: list tools: %w", err)
	}
	toolBlock := formatToolBlock(tools)

	transcript := &Transcript{}
	for step := 0; step < maxSteps; step++ {
		prompt := inv.buildStepPrompt(systemPrompt, toolBlock, userMessage, transcript)

		var action stepAction
		if err := inv.model.InvokeStructured(ctx, prompt, &action); err != nil {
			return nil, fmt.Errorf("agent: step %d: %w", step+1, err)
		}

		if action.Tool == "" {
			transcript.Turns = append(transcript.Turns, Turn{Text: action.Final})
			return transcript, nil
		}

		result, err := inv.session.CallTool(ctx, action.Tool, action.Args)
		if err != nil {
			// Surface the failure to the model as an observation rather
			// than aborting; the loop bound still applies.
			result = fmt.Sprintf("error: %v", err)
		}
		transcript.Turns = append(transcript.Turns, Turn{
			ToolName:   action.Tool,
			ToolArgs:   action.Args,
			ToolResult: result,
		})
	}
	return transcript, nil
}

func (inv *LoopInvestigator) buildStepPrompt(systemPrompt, toolBlock, userMessage string, transcript *Transcript) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")
	b.WriteString(toolBlock)
	b.WriteString("\n\nTask:\n")
	b.WriteString(userMessage)
	if len(transcript.Turns) > 0 {
		b.WriteString("\n\nTranscript so far:\n")
		b.WriteString(transcript.Serialize())
	}
	b.WriteString("\nRespond with a JSON action: " +
		`{"tool": "<name>", "args": {...}} to call a tool, or ` +
		`{"final": "<summary>"} when the investigation is complete.`)
	return b.String()
}

// formatToolBlock renders the advertised tools for the step prompt.
func formatToolBlock(tools []ToolInfo) string {
	if len(tools) == 0 {
		return "Available tools:\n- none"
	}
	lines := []string{"Available tools:"}
	for _, t := range tools {
		lines = append(lines, fmt.Sprintf("- %s: %s", t.Name, t.Description))
	}
	return strings.Join(lines, "\n")
}
