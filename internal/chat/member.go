// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// QueueLength bounds each member's outbound event queue. A client that
// cannot drain this many rendered lines is disconnected rather than
// allowed to stall the room.
const QueueLength = 64

// CloseFunc asks the owning session to shut down, with a reason shown
// in the server log. It must not block; the engine calls it under the
// room lock.
type CloseFunc func(reason string)

// Member ties a User to its session's outbound queue. The queue holds
// fully rendered lines: rendering happens at enqueue time with the
// receiver's own preferences, so the output task only writes bytes.
type Member struct {
	User *User

	queue    chan string
	closeFn  CloseFunc
	limiter  *rate.Limiter
	lastSent time.Time

	closeOnce sync.Once
}

// NewMember wraps a user for room membership. closeFn is invoked at
// most once, when the engine decides the session must end (kick, ban,
// eviction, stalled output).
func NewMember(user *User, closeFn CloseFunc) *Member {
	if closeFn == nil {
		closeFn = func(string) {}
	}
	return &Member{
		User:    user,
		queue:   make(chan string, QueueLength),
		closeFn: closeFn,
		limiter: NewMessageLimiter(),
	}
}

// Events is the session output task's read side of the queue.
func (m *Member) Events() <-chan string { return m.queue }

// Close asks the owning session to terminate.
func (m *Member) Close(reason string) {
	m.closeOnce.Do(func() { m.closeFn(reason) })
}

// send renders msg for this member and enqueues it without blocking.
// A full queue returns ErrQueueStalled; the caller disconnects us.
func (m *Member) send(msg Message) error {
	line := Render(msg, &m.User.Config)
	select {
	case m.queue <- line + Newline:
		return nil
	default:
		return ErrQueueStalled
	}
}

// allowSend consumes one rate-limit token, recording activity used by
// completion's recently-active ordering.
func (m *Member) allowSend() bool {
	if !m.limiter.Allow() {
		return false
	}
	m.lastSent = time.Now()
	return true
}
