// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package terminal

// =============================================================================
// EDIT RESULTS
// =============================================================================

// EditResult tells the session controller what a key event did to the
// input line.
type EditResult int

const (
	// EditNone: nothing changed; no repaint needed.
	EditNone EditResult = iota
	// EditRedraw: the line or cursor changed; repaint the prompt line.
	EditRedraw
	// EditSubmit: Enter was pressed; Submitted() holds the line.
	EditSubmit
	// EditCancel: Ctrl-C; the line was cleared.
	EditCancel
	// EditEOF: Ctrl-D on an empty line; the session should end.
	EditEOF
)

// CompleteFunc produces tab-completion candidates for the given text
// and cursor byte offset. It returns the candidates plus the byte range
// [start, end) of the text they replace.
type CompleteFunc func(text string, cursor int) (candidates []string, start, end int)

// =============================================================================
// EDITOR
// =============================================================================

// Editor combines the line buffer, input history, and completion into
// the per-session line editor. Bindings are Emacs-style:
//
//	Ctrl-A/E   start/end of line        Ctrl-B/F  char left/right
//	Alt-B/F    word left/right          Ctrl-P/N  history prev/next
//	Ctrl-K     kill to end              Ctrl-U    kill whole line
//	Ctrl-W     kill word back           Ctrl-D    delete char (EOF if empty)
//	Ctrl-C     cancel line              Tab       complete
type Editor struct {
	Line    Line
	history *History

	complete   CompleteFunc
	candidates []string

	// stash holds the unsubmitted line while navigating history.
	stash    string
	stashSet bool

	submitted string
}

// NewEditor creates an editor with an empty line and bounded history.
func NewEditor() *Editor {
	return &Editor{history: NewHistory(HistoryLength)}
}

// SetCompleter installs the tab-completion callback.
func (e *Editor) SetCompleter(fn CompleteFunc) { e.complete = fn }

// Submitted returns the line captured by the last EditSubmit.
func (e *Editor) Submitted() string { return e.submitted }

// TakeCandidates returns completion candidates pending display and
// clears them.
func (e *Editor) TakeCandidates() []string {
	c := e.candidates
	e.candidates = nil
	return c
}

// Feed applies one key event to the editor state.
func (e *Editor) Feed(ev KeyEvent) EditResult {
	switch ev.Type {
	case KeyRune:
		if ev.Alt {
			return e.altKey(ev.Rune)
		}
		e.Line.InsertRune(ev.Rune)
		return EditRedraw

	case KeyEnter:
		e.submitted = e.Line.Text()
		e.history.Push(e.submitted)
		e.Line.Clear()
		e.stashSet = false
		return EditSubmit

	case KeyTab:
		return e.tab()

	case KeyBackspace:
		e.Line.DeleteBack()
		return EditRedraw

	case KeyDelete:
		e.Line.DeleteForward()
		return EditRedraw

	case KeyLeft:
		e.Line.MoveLeft()
		return EditRedraw
	case KeyRight:
		e.Line.MoveRight()
		return EditRedraw
	case KeyHome:
		e.Line.MoveStart()
		return EditRedraw
	case KeyEnd:
		e.Line.MoveEnd()
		return EditRedraw

	case KeyUp:
		return e.historyPrev()
	case KeyDown:
		return e.historyNext()

	case KeyCtrl:
		return e.ctrlKey(ev.Rune)
	}
	return EditNone
}

func (e *Editor) ctrlKey(r rune) EditResult {
	switch r {
	case 'a':
		e.Line.MoveStart()
	case 'e':
		e.Line.MoveEnd()
	case 'b':
		e.Line.MoveLeft()
	case 'f':
		e.Line.MoveRight()
	case 'k':
		e.Line.KillToEnd()
	case 'u':
		e.Line.Clear()
	case 'w':
		e.Line.DeleteWordBack()
	case 'd':
		if e.Line.Empty() {
			return EditEOF
		}
		e.Line.DeleteForward()
	case 'p':
		return e.historyPrev()
	case 'n':
		return e.historyNext()
	case 'c':
		e.Line.Clear()
		e.stashSet = false
		return EditCancel
	default:
		return EditNone
	}
	return EditRedraw
}

func (e *Editor) altKey(r rune) EditResult {
	switch r {
	case 'b':
		e.Line.MoveWordLeft()
		return EditRedraw
	case 'f':
		e.Line.MoveWordRight()
		return EditRedraw
	}
	return EditNone
}

// historyPrev recalls the previous history entry, stashing the current
// unsubmitted line the first time so Down can bring it back.
func (e *Editor) historyPrev() EditResult {
	if !e.history.Navigating() {
		e.stash = e.Line.Text()
		e.stashSet = true
	} else {
		e.history.ReplaceCurrent(e.Line.Text())
	}
	entry, ok := e.history.Prev()
	if !ok {
		return EditNone
	}
	e.Line.Set(entry)
	return EditRedraw
}

func (e *Editor) historyNext() EditResult {
	if !e.history.Navigating() {
		return EditNone
	}
	e.history.ReplaceCurrent(e.Line.Text())
	entry, ok := e.history.Next()
	if !ok {
		if e.stashSet {
			e.Line.Set(e.stash)
			e.stashSet = false
		} else {
			e.Line.Clear()
		}
		return EditRedraw
	}
	e.Line.Set(entry)
	return EditRedraw
}

// tab runs the completer. A single candidate replaces the prefix
// outright (with a trailing space); several insert their common prefix
// and surface the full list through TakeCandidates.
func (e *Editor) tab() EditResult {
	if e.complete == nil {
		return EditNone
	}
	text := e.Line.Text()
	candidates, start, end := e.complete(text, e.Line.CursorByte())
	if len(candidates) == 0 || start < 0 || end > len(text) || start > end {
		return EditNone
	}

	if len(candidates) == 1 {
		e.replaceRange(start, end, candidates[0]+" ")
		return EditRedraw
	}

	prefix := CommonPrefix(candidates)
	if len(prefix) > end-start {
		e.replaceRange(start, end, prefix)
	}
	e.candidates = candidates
	return EditRedraw
}

func (e *Editor) replaceRange(start, end int, repl string) {
	text := e.Line.Text()
	e.Line.Set(text[:start] + repl + text[end:])
	e.Line.MoveToByte(start + len(repl))
}
