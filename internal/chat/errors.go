// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import "errors"

// Engine errors. These surface to the offending session only, as Error
// events; they never interrupt other sessions.
var (
	ErrNameTaken    = errors.New("name taken")
	ErrInvalidName  = errors.New("invalid name")
	ErrSameName     = errors.New("new name is the same as the original")
	ErrUnknownUser  = errors.New("user is not found")
	ErrNotInRoom    = errors.New("not a room member")
	ErrMuted        = errors.New("you are muted and cannot send messages")
	ErrRateLimited  = errors.New("rate limit exceeded. Message dropped")
	ErrSelfMessage  = errors.New("you can't message yourself")
	ErrNoReplyTo    = errors.New("no message to reply to")
	ErrQueueStalled = errors.New("output stalled")
)
