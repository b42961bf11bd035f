// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth holds chatd's join policy: the operator list, the
// optional whitelist, and timed bans, all keyed by SSH public key
// fingerprints. Key lists load from authorized_keys-style files and
// can be merged or replaced at runtime by operator commands.
package auth
