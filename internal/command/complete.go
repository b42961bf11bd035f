// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"strings"

	"github.com/unrenamed/chatd/internal/auth"
	"github.com/unrenamed/chatd/internal/chat"
	"github.com/unrenamed/chatd/internal/terminal"
)

// =============================================================================
// TAB COMPLETION
// =============================================================================

// Completer builds the editor's completion callback for one session.
// Completion is context aware three levels deep: command names, then
// subcommand names for /oplist and /whitelist, then each command's
// argument (user names, theme names, timestamp modes, load modes).
func (r *Registry) Completer(ctx *Context) terminal.CompleteFunc {
	return func(text string, cursor int) ([]string, int, int) {
		if !strings.HasPrefix(strings.TrimSpace(text), "/") {
			return nil, 0, 0
		}

		words := tokenize(text)
		idx, word := wordAt(words, cursor)
		if idx < 0 {
			return nil, 0, 0
		}
		prefix := text[word.start:cursor]

		if idx == 0 {
			return r.commandCandidates(ctx, prefix), word.start, word.end
		}

		cmd := r.Get(words[0].text)
		if cmd == nil {
			return nil, 0, 0
		}

		var candidates []string
		switch cmd.Arg {
		case ArgSub:
			candidates = r.subCandidates(ctx, cmd, words, idx, prefix)
		case ArgUser:
			if idx == 1 {
				candidates = r.userCandidates(ctx, prefix)
			}
		case ArgTheme:
			if idx == 1 {
				candidates = prefixFilter(chat.ThemeNames(), prefix)
			}
		case ArgTimestamp:
			if idx == 1 {
				candidates = prefixFilter(chat.TimestampModeNames(), prefix)
			}
		}
		return candidates, word.start, word.end
	}
}

func (r *Registry) commandCandidates(ctx *Context, prefix string) []string {
	op := ctx.IsOp()
	var out []string
	for _, cmd := range r.ordered {
		if cmd.OpOnly && !op {
			continue
		}
		if strings.HasPrefix(cmd.Name, prefix) {
			out = append(out, cmd.Name)
		}
	}
	return out
}

func (r *Registry) subCandidates(ctx *Context, cmd *Command, words []word, idx int, prefix string) []string {
	subs := r.oplistSubs
	if cmd.Name == "/whitelist" {
		subs = r.whitelistSubs
	}

	if idx == 1 {
		return prefixFilter(sortedNames(subs), prefix)
	}

	// Deeper arguments depend on the subcommand.
	switch words[1].text {
	case "add", "remove":
		return r.userCandidates(ctx, prefix)
	case "load":
		return prefixFilter(auth.LoadModeNames(), prefix)
	}
	return nil
}

// userCandidates matches member names by prefix, most recently active
// first, skipping the caller's own name.
func (r *Registry) userCandidates(ctx *Context, prefix string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	for _, name := range ctx.Room.Names() {
		if name != ctx.User.Name && strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	// Bubble the most recently active match to the front so a single
	// Tab lands on the likeliest target.
	if best, ok := ctx.Room.FindNameByPrefix(prefix, ctx.User.Name); ok {
		for i, name := range out {
			if name == best && i > 0 {
				out[0], out[i] = out[i], out[0]
				break
			}
		}
	}
	return out
}

func prefixFilter(values []string, prefix string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, strings.ToLower(prefix)) {
			out = append(out, v)
		}
	}
	return out
}

// =============================================================================
// TOKENIZING
// =============================================================================

type word struct {
	text  string
	start int
	end   int
}

// tokenize splits text into space-delimited words with byte positions.
func tokenize(text string) []word {
	var words []word
	start := -1
	for i := 0; i < len(text); i++ {
		if text[i] == ' ' || text[i] == '\t' {
			if start >= 0 {
				words = append(words, word{text: text[start:i], start: start, end: i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{text: text[start:], start: start, end: len(text)})
	}
	return words
}

// wordAt finds the word the cursor sits in or directly after. A cursor
// in the gap after a trailing space addresses a fresh empty word.
func wordAt(words []word, cursor int) (int, word) {
	for i, w := range words {
		if cursor >= w.start && cursor <= w.end {
			return i, w
		}
	}
	if len(words) > 0 && cursor > words[len(words)-1].end {
		return len(words), word{start: cursor, end: cursor}
	}
	return -1, word{}
}
