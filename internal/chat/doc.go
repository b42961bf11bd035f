// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the room engine at the heart of chatd.
//
// The Room owns all shared state: membership keyed by public-key
// fingerprint, the name registry, the bounded message history, per-user
// rate limiters, and the MOTD. Every mutation happens under one mutex
// held only for lock-free work — events are rendered per receiver and
// pushed onto each member's bounded outbound queue, and the sessions
// drain their own queues outside the lock.
//
// Messages are tagged variants (Public, Emote, Announce, Private,
// System, Error) that know how to render themselves for a receiver's
// theme and timestamp preferences.
package chat
