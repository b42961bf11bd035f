// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "golang.org/x/time/rate"

// Message-send token bucket: a burst of MessageBurst sends, refilled at
// MessageRate tokens per second.
const (
	MessageBurst = 4
	MessageRate  = rate.Limit(1)
)

// NewMessageLimiter creates the per-member send limiter.
func NewMessageLimiter() *rate.Limiter {
	return rate.NewLimiter(MessageRate, MessageBurst)
}
