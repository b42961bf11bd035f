// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"
	"time"
)

// Newline is the CR+LF sequence raw-mode terminals need between lines.
const Newline = "\r\n"

// =============================================================================
// AUTHORS
// =============================================================================

// Author identifies the sender of a message at the moment it was sent.
// Snapshotting it keeps fan-out stable if the sender renames or leaves
// mid-broadcast.
type Author struct {
	Fingerprint string
	Name        string
	Muted       bool
}

// Recipient is the target of a private message.
type Recipient = Author

// =============================================================================
// MESSAGES
// =============================================================================

// Message is a chat event that renders itself for a given receiver.
type Message interface {
	Body() string
	CreatedAt() time.Time
	// Render formats the message for one receiver, without timestamp.
	Render(cfg *UserConfig) string
}

// Render formats a message for a receiver, applying the receiver's
// timestamp mode. The result has no trailing newline.
func Render(m Message, cfg *UserConfig) string {
	layout := cfg.TimestampMode.Layout()
	if layout == "" {
		return m.Render(cfg)
	}
	ts := cfg.Theme.System(m.CreatedAt().UTC().Format(layout))
	return ts + " " + m.Render(cfg)
}

type base struct {
	body    string
	created time.Time
}

func newBase(body string) base {
	return base{body: body, created: time.Now()}
}

func (b base) Body() string         { return b.body }
func (b base) CreatedAt() time.Time { return b.created }

// -----------------------------------------------------------------------------

// Public is a message from a user to the whole room.
type Public struct {
	base
	From Author
}

// NewPublic creates a public chat message.
func NewPublic(from Author, body string) Public {
	return Public{base: newBase(body), From: from}
}

func (m Public) Render(cfg *UserConfig) string {
	body := m.Body()
	if tag := cfg.Highlight(); tag != "" && strings.Contains(body, tag) {
		body = strings.ReplaceAll(body, tag, cfg.Theme.TaggedUsername(tag))
	}
	name := cfg.Theme.Username(m.From.Name, m.From.Fingerprint)
	return name + ": " + cfg.Theme.Text(body)
}

// -----------------------------------------------------------------------------

// Emote is a user action message (/me).
type Emote struct {
	base
	From Author
}

// NewEmote creates an emote message.
func NewEmote(from Author, body string) Emote {
	return Emote{base: newBase(body), From: from}
}

func (m Emote) Render(cfg *UserConfig) string {
	return cfg.Theme.Text(" ** " + m.From.Name + " " + m.Body())
}

// -----------------------------------------------------------------------------

// Announce is a server broadcast about a user (joins, leaves, renames).
type Announce struct {
	base
	From Author
}

// NewAnnounce creates an announcement message.
func NewAnnounce(from Author, body string) Announce {
	return Announce{base: newBase(body), From: from}
}

func (m Announce) Render(cfg *UserConfig) string {
	return cfg.Theme.System(" * " + m.From.Name + " " + m.Body())
}

// -----------------------------------------------------------------------------

// Private is a direct message between two users.
type Private struct {
	base
	From Author
	To   Recipient
}

// NewPrivate creates a private message.
func NewPrivate(from Author, to Recipient, body string) Private {
	return Private{base: newBase(body), From: from, To: to}
}

func (m Private) Render(cfg *UserConfig) string {
	// The same event is rendered for both ends; the receiver's own
	// name decides the direction shown.
	if cfg.Name == m.From.Name {
		return "[PM to " + cfg.Theme.Username(m.To.Name, m.To.Fingerprint) + "] " +
			cfg.Theme.Text(m.Body())
	}
	line := "[PM from " + cfg.Theme.Username(m.From.Name, m.From.Fingerprint) + "] " +
		cfg.Theme.Text(m.Body())
	if cfg.Bell {
		line += "\a"
	}
	return line
}

// -----------------------------------------------------------------------------

// System is server output addressed to a single session, usually in
// response to a command.
type System struct {
	base
	To Recipient
}

// NewSystem creates a system message for one recipient.
func NewSystem(to Recipient, body string) System {
	return System{base: newBase(body), To: to}
}

func (m System) Render(cfg *UserConfig) string {
	return cfg.Theme.System("-> " + m.Body())
}

// -----------------------------------------------------------------------------

// Error is a command or policy failure reported to one session.
type Error struct {
	base
	To Recipient
}

// NewError creates an error message for one recipient.
func NewError(to Recipient, body string) Error {
	return Error{base: newBase(body), To: to}
}

func (m Error) Render(cfg *UserConfig) string {
	return cfg.Theme.Error("-> Error: " + m.Body())
}
