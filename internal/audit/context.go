package audit

import "github.com/covassure/claimflow/internal/model"

// Context accumulates the evidentiary trail for one in-flight decision:
// captured inputs, the prompt sent, the raw unparsed response, intermediate
// parse attempts and evidence snippets. It is finalized into an immutable
// DecisionRecord by Tracker.Record.
type Context struct {
	inputs        map[string]any
	prompt        string
	rawResponse   string
	parseAttempts []string
	evidence      []string
}

// AddInput captures a named input the decision was based on
func (c *Context) AddInput(key string, value any) *Context {
	if c.inputs == nil {
		c.inputs = make(map[string]any)
	}
	c.inputs[key] = value
	return c
}

// SetPrompt captures the raw prompt sent to the text-generation provider
func (c *Context) SetPrompt(prompt string) *Context {
	c.prompt = prompt
	return c
}

// SetRawResponse captures the provider's unparsed response
func (c *Context) SetRawResponse(raw string) *Context {
	c.rawResponse = raw
	return c
}

// AddParseAttempt records one intermediate parsing attempt, success or not
func (c *Context) AddParseAttempt(note string) *Context {
	c.parseAttempts = append(c.parseAttempts, note)
	return c
}

// AddEvidence records an evidence snippet gathered along the way
func (c *Context) AddEvidence(snippet string) *Context {
	c.evidence = append(c.evidence, snippet)
	return c
}

// snapshot deep-copies the accumulated state so later mutation of the
// context can never reach a stored record
func (c *Context) snapshot() model.DecisionContext {
	snap := model.DecisionContext{
		Prompt:      c.prompt,
		RawResponse: c.rawResponse,
	}
	if len(c.inputs) > 0 {
		snap.Inputs = make(map[string]any, len(c.inputs))
		for k, v := range c.inputs {
			snap.Inputs[k] = cloneValue(v)
		}
	}
	if len(c.parseAttempts) > 0 {
		snap.ParseAttempts = append([]string(nil), c.parseAttempts...)
	}
	if len(c.evidence) > 0 {
		snap.Evidence = append([]string(nil), c.evidence...)
	}
	return snap
}
