// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecoderPlainBytes(t *testing.T) {
	d := NewDecoder()
	events := d.Write([]byte("ABC"))

	assert.Equal(t, []KeyEvent{
		{Type: KeyRune, Rune: 'A'},
		{Type: KeyRune, Rune: 'B'},
		{Type: KeyRune, Rune: 'C'},
	}, events)
}

func TestDecoderControlKeys(t *testing.T) {
	d := NewDecoder()
	tests := []struct {
		in   byte
		want KeyEvent
	}{
		{0x01, KeyEvent{Type: KeyCtrl, Rune: 'a'}},
		{0x05, KeyEvent{Type: KeyCtrl, Rune: 'e'}},
		{0x17, KeyEvent{Type: KeyCtrl, Rune: 'w'}},
		{0x03, KeyEvent{Type: KeyCtrl, Rune: 'c'}},
		{'\r', KeyEvent{Type: KeyEnter}},
		{'\t', KeyEvent{Type: KeyTab}},
		{0x7f, KeyEvent{Type: KeyBackspace}},
		{0x08, KeyEvent{Type: KeyBackspace}},
	}

	for _, tc := range tests {
		events := d.Write([]byte{tc.in})
		assert.Equal(t, []KeyEvent{tc.want}, events, "byte 0x%02x", tc.in)
	}
}

func TestDecoderArrowsAndEditingKeys(t *testing.T) {
	d := NewDecoder()
	tests := []struct {
		in   string
		want KeyType
	}{
		{"\x1b[A", KeyUp},
		{"\x1b[B", KeyDown},
		{"\x1b[C", KeyRight},
		{"\x1b[D", KeyLeft},
		{"\x1b[H", KeyHome},
		{"\x1b[F", KeyEnd},
		{"\x1b[1~", KeyHome},
		{"\x1b[4~", KeyEnd},
		{"\x1b[3~", KeyDelete},
		{"\x1bOA", KeyUp},
		{"\x1bOD", KeyLeft},
	}

	for _, tc := range tests {
		events := d.Write([]byte(tc.in))
		assert.Len(t, events, 1, "sequence %q", tc.in)
		assert.Equal(t, tc.want, events[0].Type, "sequence %q", tc.in)
	}
}

func TestDecoderAltKeys(t *testing.T) {
	d := NewDecoder()

	events := d.Write([]byte("\x1bb"))
	assert.Equal(t, []KeyEvent{{Type: KeyRune, Rune: 'b', Alt: true}}, events)

	events = d.Write([]byte("\x1bF"))
	assert.Equal(t, []KeyEvent{{Type: KeyRune, Rune: 'f', Alt: true}}, events)
}

func TestDecoderMixedInput(t *testing.T) {
	d := NewDecoder()
	events := d.Write([]byte("A\x1b[B"))

	assert.Equal(t, []KeyEvent{
		{Type: KeyRune, Rune: 'A'},
		{Type: KeyDown},
	}, events)
}

func TestDecoderUTF8(t *testing.T) {
	d := NewDecoder()
	events := d.Write([]byte("你好"))

	assert.Equal(t, []KeyEvent{
		{Type: KeyRune, Rune: '你'},
		{Type: KeyRune, Rune: '好'},
	}, events)
}

func TestDecoderSplitSequences(t *testing.T) {
	d := NewDecoder()

	// Escape sequence split across reads.
	assert.Empty(t, d.Write([]byte{0x1b}))
	assert.Empty(t, d.Write([]byte{'['}))
	events := d.Write([]byte{'A'})
	assert.Equal(t, []KeyEvent{{Type: KeyUp}}, events)

	// UTF-8 rune split across reads.
	raw := []byte("你")
	assert.Empty(t, d.Write(raw[:1]))
	assert.Empty(t, d.Write(raw[1:2]))
	events = d.Write(raw[2:])
	assert.Equal(t, []KeyEvent{{Type: KeyRune, Rune: '你'}}, events)
}

func TestDecoderBracketedPaste(t *testing.T) {
	d := NewDecoder()
	events := d.Write([]byte("\x1b[200~hi\r!\x1b[201~"))

	var types []KeyType
	var runes []rune
	for _, ev := range events {
		types = append(types, ev.Type)
		if ev.Type == KeyRune {
			runes = append(runes, ev.Rune)
			assert.True(t, ev.Paste, "runes inside a paste are flagged")
		}
	}
	assert.Equal(t, KeyPasteStart, types[0])
	assert.Equal(t, KeyPasteEnd, types[len(types)-1])
	assert.Equal(t, []rune{'h', 'i', ' ', '!'}, runes, "CR inside a paste becomes a space")
}
