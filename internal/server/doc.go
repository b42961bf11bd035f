// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server binds chatd to the network. It runs the SSH listener,
// authenticates clients by public key, and drives one session
// controller per connection: an input task that decodes PTY bytes into
// the line editor and dispatches submissions, and an output task that
// drains the member's event queue back onto the PTY, keeping the
// prompt below the incoming traffic.
//
// The package also owns the pieces that touch the filesystem at
// runtime: the append-only chat log and the fsnotify watcher that
// reloads the oplist, whitelist, and MOTD files when they change.
package server
