// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package terminal provides the raw-PTY primitives for chat sessions.
//
// A session hands the package the byte stream it reads from the SSH
// channel; the package turns it into key events, maintains the editable
// input line, and computes the cursor math needed to repaint the prompt.
//
// # Components
//
//   - Decoder: incremental byte-stream → KeyEvent decoder (UTF-8,
//     control keys, CSI/SS3 escape sequences, bracketed paste)
//   - Line: grapheme-aware input buffer with cursor tracking
//   - Editor: Emacs-style bindings, input history, and tab completion
//     on top of Line
//   - DisplayWidth: terminal cell width of a string, skipping ANSI
//     escapes and normalizing emoji sequences
//
// The editor never writes to the PTY itself; it reports what changed
// through EditResult and leaves painting to the session controller.
package terminal
