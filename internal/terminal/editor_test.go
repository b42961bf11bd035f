// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typeText(e *Editor, s string) {
	for _, r := range s {
		e.Feed(KeyEvent{Type: KeyRune, Rune: r})
	}
}

func TestEditorSubmit(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello")

	res := e.Feed(KeyEvent{Type: KeyEnter})
	assert.Equal(t, EditSubmit, res)
	assert.Equal(t, "hello", e.Submitted())
	assert.True(t, e.Line.Empty(), "submit clears the line")
}

func TestEditorCancel(t *testing.T) {
	e := NewEditor()
	typeText(e, "half a thou")

	res := e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'c'})
	assert.Equal(t, EditCancel, res)
	assert.True(t, e.Line.Empty())
}

func TestEditorEOFOnEmptyLine(t *testing.T) {
	e := NewEditor()
	assert.Equal(t, EditEOF, e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'd'}))

	typeText(e, "x")
	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'a'})
	assert.Equal(t, EditRedraw, e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'd'}), "Ctrl-D deletes when the line has text")
	assert.True(t, e.Line.Empty())
}

func TestEditorEmacsBindings(t *testing.T) {
	e := NewEditor()
	typeText(e, "hello world")

	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'a'})
	assert.Equal(t, 0, e.Line.Cursor())

	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'f'})
	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'f'})
	assert.Equal(t, 2, e.Line.Cursor())

	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'k'})
	assert.Equal(t, "he", e.Line.Text())

	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'u'})
	assert.True(t, e.Line.Empty())
}

func TestEditorWordBindings(t *testing.T) {
	e := NewEditor()
	typeText(e, "one two three")

	e.Feed(KeyEvent{Type: KeyRune, Rune: 'b', Alt: true})
	assert.Equal(t, len("one two "), e.Line.CursorByte())

	e.Feed(KeyEvent{Type: KeyRune, Rune: 'f', Alt: true})
	assert.Equal(t, len("one two three"), e.Line.CursorByte())

	e.Feed(KeyEvent{Type: KeyCtrl, Rune: 'w'})
	assert.Equal(t, "one two ", e.Line.Text())
}

func TestEditorHistoryRecall(t *testing.T) {
	e := NewEditor()
	typeText(e, "first")
	e.Feed(KeyEvent{Type: KeyEnter})
	typeText(e, "second")
	e.Feed(KeyEvent{Type: KeyEnter})

	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "second", e.Line.Text())
	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "first", e.Line.Text())
	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "first", e.Line.Text(), "stays at the oldest entry")

	e.Feed(KeyEvent{Type: KeyDown})
	assert.Equal(t, "second", e.Line.Text())
}

func TestEditorHistoryRestoresUnsubmittedEdit(t *testing.T) {
	e := NewEditor()
	typeText(e, "submitted")
	e.Feed(KeyEvent{Type: KeyEnter})

	typeText(e, "draft in progress")
	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "submitted", e.Line.Text())

	e.Feed(KeyEvent{Type: KeyDown})
	assert.Equal(t, "draft in progress", e.Line.Text(), "navigating back restores the draft")
}

func TestEditorHistoryDeduplicates(t *testing.T) {
	e := NewEditor()
	for i := 0; i < 3; i++ {
		typeText(e, "same")
		e.Feed(KeyEvent{Type: KeyEnter})
	}

	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "same", e.Line.Text())
	e.Feed(KeyEvent{Type: KeyUp})
	assert.Equal(t, "same", e.Line.Text(), "only one copy stored")
}

func TestEditorCompletionSingleCandidate(t *testing.T) {
	e := NewEditor()
	e.SetCompleter(func(text string, cursor int) ([]string, int, int) {
		require.Equal(t, "/opl", text)
		return []string{"/oplist"}, 0, len(text)
	})

	typeText(e, "/opl")
	res := e.Feed(KeyEvent{Type: KeyTab})
	assert.Equal(t, EditRedraw, res)
	assert.Equal(t, "/oplist ", e.Line.Text())
	assert.Equal(t, len("/oplist "), e.Line.CursorByte())
}

func TestEditorCompletionCommonPrefix(t *testing.T) {
	e := NewEditor()
	e.SetCompleter(func(text string, cursor int) ([]string, int, int) {
		return []string{"/theme", "/themes"}, 0, len(text)
	})

	typeText(e, "/th")
	e.Feed(KeyEvent{Type: KeyTab})
	assert.Equal(t, "/theme", e.Line.Text())
	assert.Equal(t, []string{"/theme", "/themes"}, e.TakeCandidates())
	assert.Empty(t, e.TakeCandidates(), "candidates are consumed once")
}

func TestEditorCompletionNoCandidates(t *testing.T) {
	e := NewEditor()
	e.SetCompleter(func(text string, cursor int) ([]string, int, int) {
		return nil, 0, 0
	})

	typeText(e, "/zzz")
	assert.Equal(t, EditNone, e.Feed(KeyEvent{Type: KeyTab}))
	assert.Equal(t, "/zzz", e.Line.Text())
}

func TestEditorPasteDoesNotSubmit(t *testing.T) {
	e := NewEditor()
	d := NewDecoder()

	var submits int
	for _, ev := range d.Write([]byte("\x1b[200~line one\rline two\x1b[201~")) {
		if e.Feed(ev) == EditSubmit {
			submits++
		}
	}
	assert.Zero(t, submits)
	assert.Equal(t, "line one line two", e.Line.Text())
	assert.False(t, strings.Contains(e.Line.Text(), "\r"))
}
