// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/unrenamed/chatd/internal/util"
)

// =============================================================================
// USER CONFIG
// =============================================================================

// UserConfig holds the per-user rendering preferences consulted every
// time a message is formatted for that user.
type UserConfig struct {
	// Name is the receiver's own display name, used to render private
	// messages and to highlight @mentions.
	Name string

	Theme         *Theme
	TimestampMode TimestampMode

	// Quiet suppresses room announcements (joins, leaves, renames,
	// away notices); public chat is still delivered.
	Quiet bool

	// Bell appends BEL to private messages so the client can ring.
	Bell bool

	// highlight is the receiver's "@name" mention tag.
	highlight string
}

// NewUserConfig returns the defaults: colors theme, timestamps off.
func NewUserConfig() UserConfig {
	theme, _ := LookupTheme(DefaultTheme)
	return UserConfig{Theme: theme}
}

// Highlight returns the receiver's @mention tag.
func (c *UserConfig) Highlight() string { return c.highlight }

func (c *UserConfig) setName(name string) {
	c.Name = name
	c.highlight = "@" + name
}

// =============================================================================
// USER
// =============================================================================

// UserStatus is a member's presence state.
type UserStatus int

const (
	StatusActive UserStatus = iota
	StatusAway
)

// User is a connected identity. The fingerprint of the SSH public key
// is the primary key; the display name is unique within the room but
// may change. Users are owned by the room and mutated only under the
// room lock.
type User struct {
	Fingerprint string
	Name        string
	SSHClient   string
	JoinedAt    time.Time

	// KeyLine is the authorized_keys form of the user's public key, kept
	// so operator commands can add a present user to a key list by name.
	KeyLine string

	IsOp    bool
	IsMuted bool

	Status     UserStatus
	AwayReason string
	AwaySince  time.Time

	// ReplyTo is the fingerprint of the last user who sent this user a
	// private message, for /reply.
	ReplyTo string

	Config UserConfig

	// Ignored and Focused hold fingerprints.
	Ignored map[string]struct{}
	Focused map[string]struct{}
}

// NewUser creates a user for an authenticated connection.
func NewUser(fingerprint, name, sshClient string, isOp bool) *User {
	u := &User{
		Fingerprint: fingerprint,
		SSHClient:   sshClient,
		JoinedAt:    time.Now(),
		IsOp:        isOp,
		Config:      NewUserConfig(),
		Ignored:     make(map[string]struct{}),
		Focused:     make(map[string]struct{}),
	}
	u.SetName(name)
	return u
}

// SetName updates the display name and the mention highlight tag.
func (u *User) SetName(name string) {
	u.Name = name
	u.Config.setName(name)
}

// Author snapshots the identity fields fan-out needs.
func (u *User) Author() Author {
	return Author{Fingerprint: u.Fingerprint, Name: u.Name, Muted: u.IsMuted}
}

// GoAway marks the user away with a reason.
func (u *User) GoAway(reason string) {
	u.Status = StatusAway
	u.AwayReason = reason
	u.AwaySince = time.Now()
}

// Back clears away status. Returns false if the user was not away.
func (u *User) Back() bool {
	if u.Status != StatusAway {
		return false
	}
	u.Status = StatusActive
	u.AwayReason = ""
	return true
}

// ToggleMute flips the operator-imposed mute and reports the new state.
func (u *User) ToggleMute() bool {
	u.IsMuted = !u.IsMuted
	return u.IsMuted
}

// Ignore hides messages from the given fingerprint.
func (u *User) Ignore(fingerprint string) { u.Ignored[fingerprint] = struct{}{} }

// Unignore stops hiding messages from the given fingerprint.
func (u *User) Unignore(fingerprint string) { delete(u.Ignored, fingerprint) }

// Ignores reports whether messages from fingerprint are hidden.
func (u *User) Ignores(fingerprint string) bool {
	_, ok := u.Ignored[fingerprint]
	return ok
}

// Focus restricts visible public messages to the focused set.
func (u *User) Focus(fingerprint string) { u.Focused[fingerprint] = struct{}{} }

// Unfocus removes one fingerprint from the focus set.
func (u *User) Unfocus(fingerprint string) { delete(u.Focused, fingerprint) }

// ClearFocus removes the focus filter entirely.
func (u *User) ClearFocus() { u.Focused = make(map[string]struct{}) }

// JoinedDuration is how long the user has been connected.
func (u *User) JoinedDuration() time.Duration {
	return time.Since(u.JoinedAt)
}

// Whois formats the /whois block for this user.
func (u *User) Whois() string {
	var b strings.Builder
	fmt.Fprintf(&b, "name: %s", u.Name)
	fmt.Fprintf(&b, "%s > fingerprint: %s", Newline, u.Fingerprint)
	fmt.Fprintf(&b, "%s > client: %s", Newline, u.SSHClient)
	fmt.Fprintf(&b, "%s > joined: %s ago", Newline, util.DurationWords(u.JoinedDuration()))
	if u.Status == StatusAway {
		fmt.Fprintf(&b, "%s > away (%s ago) %s", Newline, util.DurationWords(time.Since(u.AwaySince)), u.AwayReason)
	}
	return b.String()
}
