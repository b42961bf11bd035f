// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"hash/fnv"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// RENDERER
// =============================================================================

// Sessions arrive over SSH, so there is no local tty to sniff; styling
// is rendered against a fixed ANSI256 profile that any xterm-like
// client understands.
var renderer = lipgloss.NewRenderer(
	io.Discard,
	termenv.WithProfile(termenv.ANSI256),
	termenv.WithUnsafe(),
)

// =============================================================================
// THEMES
// =============================================================================

// Theme maps the semantic roles of a chat line to terminal styles.
// Three are built in: "colors" (default), "mono", and "hacker".
type Theme struct {
	name string

	text     lipgloss.Style
	system   lipgloss.Style
	errText  lipgloss.Style
	tagged   lipgloss.Style
	userHash bool // hash usernames to a stable palette color
	userBase lipgloss.Style
}

// Name returns the theme's registered name.
func (t *Theme) Name() string { return t.name }

// Text styles regular message text.
func (t *Theme) Text(s string) string { return t.text.Render(s) }

// System styles server/system text (announcements, command output,
// timestamps).
func (t *Theme) System(s string) string { return t.system.Render(s) }

// Error styles error text.
func (t *Theme) Error(s string) string { return t.errText.Render(s) }

// TaggedUsername styles an @mention of the receiving user.
func (t *Theme) TaggedUsername(s string) string { return t.tagged.Render(s) }

// Username styles a display name. The color is a stable function of
// key (the user's fingerprint) so a user keeps their color across
// renames and reconnects.
func (t *Theme) Username(name, key string) string {
	if !t.userHash {
		return t.userBase.Render(name)
	}
	if key == "" {
		key = name
	}
	return t.userBase.Foreground(paletteColor(key)).Render(name)
}

// paletteColor hashes key into the 6x6x6 color cube (palette indexes
// 16..231), skipping the grayscale ramp so names stay legible.
func paletteColor(key string) lipgloss.Color {
	h := fnv.New32a()
	h.Write([]byte(key))
	idx := 16 + h.Sum32()%216
	return lipgloss.Color(strconv.Itoa(int(idx)))
}

func style(fg string) lipgloss.Style {
	return renderer.NewStyle().Foreground(lipgloss.Color(fg))
}

var themes = map[string]*Theme{
	"colors": {
		name:     "colors",
		text:     style("15"),
		system:   style("8"),
		errText:  style("9"),
		tagged:   renderer.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("3")).Bold(true),
		userHash: true,
		userBase: renderer.NewStyle(),
	},
	"mono": {
		name:     "mono",
		text:     style("15"),
		system:   style("15"),
		errText:  style("15"),
		tagged:   renderer.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8")).Bold(true),
		userBase: style("15"),
	},
	"hacker": {
		name:     "hacker",
		text:     style("10"),
		system:   style("2"),
		errText:  style("2"),
		tagged:   renderer.NewStyle().Foreground(lipgloss.Color("2")).Background(lipgloss.Color("10")).Bold(true),
		userBase: style("10"),
	},
}

// DefaultTheme is the theme users start with.
const DefaultTheme = "colors"

// LookupTheme returns a built-in theme by name (case-insensitive).
func LookupTheme(name string) (*Theme, bool) {
	t, ok := themes[strings.ToLower(name)]
	return t, ok
}

// ThemeByPrefix returns the theme name beginning with prefix, for tab
// completion.
func ThemeByPrefix(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	for _, name := range ThemeNames() {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			return name, true
		}
	}
	return "", false
}

// ThemeNames lists the built-in theme names in stable order.
func ThemeNames() []string {
	return []string{"colors", "hacker", "mono"}
}
