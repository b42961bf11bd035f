// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unrenamed/chatd/internal/auth"
	"github.com/unrenamed/chatd/internal/chat"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// ArgKind drives tab completion for a command's first argument.
type ArgKind int

const (
	ArgNone ArgKind = iota
	// ArgUser completes member names.
	ArgUser
	// ArgTheme completes theme names.
	ArgTheme
	// ArgTimestamp completes timestamp modes.
	ArgTimestamp
	// ArgSub marks commands with their own subcommand table
	// (/oplist, /whitelist); completion is handled specially.
	ArgSub
)

// Command describes one slash command.
type Command struct {
	// Name is the canonical form, with the leading slash (e.g. "/msg").
	Name string

	// Aliases are alternative names (e.g. "/quit" for "/exit").
	Aliases []string

	// Usage shows argument syntax (e.g. "<user> <message>").
	Usage string

	// Help is shown by /help; commands with empty help are hidden.
	Help string

	// OpOnly commands require the caller to be on the oplist.
	OpOnly bool

	// Arg selects completion behavior for the first argument.
	Arg ArgKind

	// Handler executes the command. args is everything after the
	// command word, trimmed. A returned error reaches the caller as an
	// Error event; other output goes through ctx.
	Handler func(ctx *Context, args string) error
}

// Visible reports whether the command appears in /help.
func (c *Command) Visible() bool { return c.Help != "" }

// =============================================================================
// SUBCOMMANDS
// =============================================================================

// Subcommand describes one entry of a command's own dispatch table
// (/oplist add, /whitelist on, ...).
type Subcommand struct {
	Name    string
	Usage   string
	Help    string
	Handler func(ctx *Context, args string) error
}

// =============================================================================
// CONTEXT
// =============================================================================

// Context gives handlers access to the room, the join policy, and the
// calling session.
type Context struct {
	Room *chat.Room
	Auth *auth.Auth

	// User is the caller. The session owns it; handlers read identity
	// fields directly and mutate state through Room methods.
	User *chat.User

	// Quit asks the session to end (set by the session controller).
	Quit func()

	// registry is set by Dispatch so handlers like /help can reflect
	// over the command table.
	registry *Registry
}

// IsOp checks the caller's operator status against the live oplist.
func (c *Context) IsOp() bool {
	return c.Auth.IsOp(c.User.Fingerprint)
}

// System sends server output to the caller.
func (c *Context) System(body string) {
	_ = c.Room.System(c.User.Fingerprint, body)
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry holds every slash command, indexed by name and alias.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
	ordered  []*Command

	oplistSubs    []*Subcommand
	whitelistSubs []*Subcommand
}

// NewRegistry builds the registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	r.ordered = append(r.ordered, cmd)
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns the commands in registration order.
func (r *Registry) All() []*Command {
	return r.ordered
}

// =============================================================================
// DISPATCH
// =============================================================================

// IsCommand reports whether the submitted line should be dispatched as
// a command rather than chat.
func IsCommand(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "/")
}

// Dispatch parses and runs a submitted command line. All failures are
// reported to the caller only.
func (r *Registry) Dispatch(ctx *Context, line string) {
	ctx.registry = r
	name, args := splitWord(strings.TrimSpace(line))

	cmd := r.Get(name)
	if cmd == nil {
		r.fail(ctx, "unknown command")
		return
	}
	if cmd.OpOnly && !ctx.IsOp() {
		r.fail(ctx, "must be an operator")
		return
	}
	if err := cmd.Handler(ctx, args); err != nil {
		r.fail(ctx, err.Error())
	}
}

func (r *Registry) fail(ctx *Context, body string) {
	_ = ctx.Room.Error(ctx.User.Fingerprint, body)
}

// dispatchSub routes "/cmd sub args" through a subcommand table.
func dispatchSub(ctx *Context, subs []*Subcommand, args, what string) error {
	name, rest := splitWord(args)
	if name == "" {
		return fmt.Errorf("%s command is expected", what)
	}
	for _, sub := range subs {
		if sub.Name == name {
			return sub.Handler(ctx, rest)
		}
	}
	return fmt.Errorf("unknown %s command", what)
}

// splitWord splits off the first whitespace-delimited word; the rest
// keeps its internal spacing but is trimmed at the edges.
func splitWord(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// =============================================================================
// HELP FORMATTING
// =============================================================================

// helpText renders the command list visible to the caller.
func (r *Registry) helpText(op bool) string {
	var general, ops []string
	for _, cmd := range r.ordered {
		if !cmd.Visible() {
			continue
		}
		line := fmt.Sprintf("%-12s %-22s %s", cmd.Name, cmd.Usage, cmd.Help)
		if cmd.OpOnly {
			ops = append(ops, line)
		} else {
			general = append(general, line)
		}
	}

	var b strings.Builder
	b.WriteString("Available commands:")
	for _, line := range general {
		b.WriteString(chat.Newline)
		b.WriteString(line)
	}
	if op && len(ops) > 0 {
		b.WriteString(chat.Newline)
		b.WriteString(chat.Newline)
		b.WriteString("Operator commands:")
		for _, line := range ops {
			b.WriteString(chat.Newline)
			b.WriteString(line)
		}
	}
	return b.String()
}

func subHelpText(subs []*Subcommand) string {
	var b strings.Builder
	b.WriteString("Available commands:")
	for _, sub := range subs {
		if sub.Help == "" {
			continue
		}
		b.WriteString(chat.Newline)
		fmt.Fprintf(&b, "%-10s %-20s %s", sub.Name, sub.Usage, sub.Help)
	}
	return b.String()
}

func sortedNames(subs []*Subcommand) []string {
	names := make([]string, 0, len(subs))
	for _, sub := range subs {
		names = append(names, sub.Name)
	}
	sort.Strings(names)
	return names
}
