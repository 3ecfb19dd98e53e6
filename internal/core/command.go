// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package core

import "time"

// Envelope is the JSON body of every API request.
type Envelope struct {
	Action  string         `json:"action"`
	Payload map[string]any `json:"payload,omitempty"`
	Context *Context       `json:"context,omitempty"`
}

// Command is an outbound operation plus its routing hints. Pre and Post
// are ordered child commands the sender executes around the primary leg
// (the speak command's mute/unmute chain is the canonical use). Sending
// fills in a missing context and gives each chain leg the parent's
// context (when it has none) and timeout; nothing else is changed.
type Command struct {
	Action  string
	Payload map[string]any
	Context *Context
	URL     string
	Timeout time.Duration
	Pre     []*Command
	Post    []*Command
}

// NewCommand builds a command for the given action with an empty payload.
func NewCommand(action string) *Command {
	return &Command{
		Action:  action,
		Payload: map[string]any{},
	}
}

// Set stores a verb-specific payload field.
func (c *Command) Set(name string, value any) {
	if c.Payload == nil {
		c.Payload = map[string]any{}
	}
	c.Payload[name] = value
}

// SetContext attaches routing context. An existing context is kept
// unless overwrite is true; the transport uses this to inject the local
// context only when the builder left it empty.
func (c *Command) SetContext(ctx *Context, overwrite bool) {
	if c.Context == nil || overwrite {
		c.Context = ctx
	}
}

// AddPre appends a child command executed before the primary leg.
func (c *Command) AddPre(cmd *Command) {
	c.Pre = append(c.Pre, cmd)
}

// AddPost appends a child command executed after the primary leg.
func (c *Command) AddPost(cmd *Command) {
	c.Post = append(c.Post, cmd)
}

// Envelope flattens the command to its wire representation. Pre and
// post chains never cross the wire; they are a sender-side construct.
func (c *Command) Envelope() Envelope {
	return Envelope{
		Action:  c.Action,
		Payload: c.Payload,
		Context: c.Context,
	}
}

// NewRegisterCommand builds the periodic peer registration command.
func NewRegisterCommand() *Command {
	return NewCommand("register")
}

// NewSpeakCommand builds a speak command wrapped in the mute/unmute
// chain so listeners in the target location do not hear the node talk
// to itself.
func NewSpeakCommand(text string, ctx *Context) *Command {
	cmd := NewCommand("speak")
	cmd.Set("text", text)
	cmd.Context = ctx
	cmd.AddPre(&Command{Action: "mute", Payload: map[string]any{}, Context: ctx})
	cmd.AddPost(&Command{Action: "unmute", Payload: map[string]any{}, Context: ctx})
	return cmd
}

// NewPlayCommand builds a play command with the same mute/unmute chain
// as speak.
func NewPlayCommand(fileName string, ctx *Context) *Command {
	cmd := NewCommand("play")
	cmd.Set("file_name", fileName)
	cmd.Context = ctx
	cmd.AddPre(&Command{Action: "mute", Payload: map[string]any{}, Context: ctx})
	cmd.AddPost(&Command{Action: "unmute", Payload: map[string]any{}, Context: ctx})
	return cmd
}
