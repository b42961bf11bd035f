// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"
)

// Zero Width Joiner: joins characters into a single composed emoji.
const zeroWidthJoiner = "\u200d"

// Variation Selector-16 forces emoji presentation on the preceding
// character. Invisible on its own.
const variationSelector16 = "\ufe0f"

// The five emoji skin tone modifiers.
var skinTones = []string{
	"\U0001f3fb",
	"\U0001f3fc",
	"\U0001f3fd",
	"\U0001f3fe",
	"\U0001f3ff",
}

// DisplayWidth computes the terminal cell width of text, skipping ANSI
// escape sequences (CSI and OSC).
//
// Terminal emulators disagree on emoji modifier sequences; like most,
// this treats ZWJ sequences and skin-toned emoji as two cells and the
// modifier codepoints themselves as zero.
func DisplayWidth(text string) int {
	width := 0
	state := -1
	rest := text
	for len(rest) > 0 {
		var g string
		g, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		if g == "\x1b" {
			rest = skipEscapeSequence(rest)
			state = -1
			continue
		}
		width += graphemeWidth(g)
	}
	return width
}

// GraphemeCount returns the number of grapheme clusters in text.
func GraphemeCount(text string) int {
	return uniseg.GraphemeClusterCount(text)
}

// Graphemes splits text into grapheme clusters.
func Graphemes(text string) []string {
	var out []string
	state := -1
	rest := text
	for len(rest) > 0 {
		var g string
		g, rest, _, state = uniseg.FirstGraphemeClusterInString(rest, state)
		out = append(out, g)
	}
	return out
}

// graphemeWidth computes the cell width of a single grapheme cluster.
func graphemeWidth(g string) int {
	if g == zeroWidthJoiner || g == variationSelector16 {
		return 0
	}
	if strings.Contains(g, zeroWidthJoiner) {
		return 2
	}
	for _, tone := range skinTones {
		if strings.Contains(g, tone) {
			return 2
		}
	}
	if strings.Contains(g, variationSelector16) {
		g = strings.ReplaceAll(g, variationSelector16, "")
	}
	return runewidth.StringWidth(g)
}

// skipEscapeSequence consumes the remainder of an escape sequence whose
// introducing ESC has already been read. CSI sequences end at a final
// byte in 0x40..0x7e; OSC sequences end at BEL or ESC-backslash.
func skipEscapeSequence(rest string) string {
	if len(rest) == 0 {
		return rest
	}
	switch rest[0] {
	case '[':
		for i := 1; i < len(rest); i++ {
			if rest[i] >= 0x40 && rest[i] <= 0x7e {
				return rest[i+1:]
			}
		}
		return ""
	case ']':
		for i := 1; i < len(rest); i++ {
			if rest[i] == '\x07' {
				return rest[i+1:]
			}
			if rest[i] == '\\' && rest[i-1] == '\x1b' {
				return rest[i+1:]
			}
		}
		return ""
	}
	return rest
}
