// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package command implements the slash command system for chat
// sessions.
//
// Commands are data, not a type hierarchy: each is a descriptor with a
// canonical name, aliases, usage, help text, an operator-only flag, a
// handler, and an argument kind that drives tab completion. The
// registry parses "/cmd sub args", enforces operator permission, and
// routes handler errors back to the calling session as Error events.
package command
