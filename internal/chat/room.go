// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/unrenamed/chatd/internal/util"
)

// =============================================================================
// ROOM
// =============================================================================

// LogFunc receives every public, emote, and announce event for the
// chat log. Implementations must not block: the engine calls it under
// the room lock, so file I/O belongs behind a buffered channel.
type LogFunc func(ts time.Time, name, body string)

// Room is the process-wide chat state. All fields are guarded by mu;
// critical sections stay short and free of I/O — events are rendered
// and pushed onto per-member queues, and sessions drain those queues
// on their own goroutines.
//
// Invariants:
//   - members and names are bijective: every member's current name maps
//     back to its fingerprint and nothing else does
//   - one member per fingerprint; a second login evicts the first
//   - history holds only Public and Emote events
type Room struct {
	mu sync.Mutex

	members map[string]*Member // fingerprint → member
	names   map[string]string  // display name → fingerprint

	history   *History
	motd      string
	createdAt time.Time

	logFn LogFunc
}

// NewRoom creates an empty room with the given message of the day.
func NewRoom(motd string) *Room {
	return &Room{
		members:   make(map[string]*Member),
		names:     make(map[string]string),
		history:   NewHistory(HistoryLength),
		motd:      motd,
		createdAt: time.Now(),
	}
}

// SetLog installs the chat-log sink.
func (r *Room) SetLog(fn LogFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logFn = fn
}

// Motd returns the current message of the day.
func (r *Room) Motd() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.motd
}

// SetMotd replaces the message of the day.
func (r *Room) SetMotd(motd string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.motd = motd
}

// Uptime returns how long the room has existed, in words.
func (r *Room) Uptime() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return util.DurationWords(time.Since(r.createdAt))
}

// MemberCount returns the number of connected members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// =============================================================================
// JOIN / LEAVE
// =============================================================================

// Join adds a member to the room. The caller has already authenticated
// the connection and checked the whitelist and bans. Join evicts any
// previous session with the same fingerprint, makes the display name
// unique, announces the arrival, and replays MOTD plus recent history
// to the newcomer. Returns the name actually assigned.
func (r *Room) Join(m *Member) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp := m.User.Fingerprint
	if old, ok := r.members[fp]; ok {
		_ = old.send(NewSystem(old.User.Author(), "replaced by new connection"))
		r.removeLocked(old)
		old.Close("replaced by new connection")
	}

	name := r.uniquifyLocked(m.User.Name)
	m.User.SetName(name)
	r.members[fp] = m
	r.names[name] = fp

	r.broadcastAnnounceLocked(NewAnnounce(m.User.Author(),
		fmt.Sprintf("joined. (Connected: %d)", len(r.members))))

	if r.motd != "" {
		_ = m.send(NewSystem(m.User.Author(), r.motd))
	}
	r.history.Each(func(msg Message) {
		_ = m.send(msg)
	})

	return name
}

// Leave removes a member. The member pointer (not just the
// fingerprint) is matched, so a session evicted by a newer login
// cannot tear down its replacement during cleanup.
func (r *Room) Leave(m *Member) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp := m.User.Fingerprint
	if current, ok := r.members[fp]; !ok || current != m {
		return
	}

	r.removeLocked(m)
	r.broadcastAnnounceLocked(NewAnnounce(m.User.Author(),
		fmt.Sprintf("left. (After %s)", util.DurationWords(m.User.JoinedDuration()))))

	// Drop the departed identity from everyone's filters.
	for _, other := range r.members {
		other.User.Unignore(fp)
		other.User.Unfocus(fp)
	}
}

func (r *Room) removeLocked(m *Member) {
	delete(r.members, m.User.Fingerprint)
	delete(r.names, m.User.Name)
}

// uniquifyLocked sanitizes the requested name and suffixes a counter
// until it is unique. Auto-suffixing happens only here, at join time;
// /nick collisions are rejected outright.
func (r *Room) uniquifyLocked(requested string) string {
	base := SanitizeName(requested)
	if base == "" {
		base = RandomName()
	}
	name := base
	for i := 1; ; i++ {
		if _, taken := r.names[name]; !taken {
			return name
		}
		name = fmt.Sprintf("%s-%d", base, i)
	}
}

// =============================================================================
// SENDING
// =============================================================================

// SendPublic broadcasts a chat line from the given member. Muted and
// rate-limited sends are reported privately to the sender and produce
// no public event.
func (r *Room) SendPublic(fp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	if err := r.checkSendLocked(m); err != nil {
		return err
	}

	msg := NewPublic(m.User.Author(), body)
	r.history.Push(msg)
	r.logLocked(msg.CreatedAt(), m.User.Name, body)
	for _, member := range r.members {
		if member != m {
			if member.User.Ignores(fp) {
				continue
			}
			if len(member.User.Focused) > 0 && !memberFocuses(member, fp) {
				continue
			}
		}
		r.deliverLocked(member, msg)
	}
	return nil
}

// SendEmote broadcasts a /me action from the given member.
func (r *Room) SendEmote(fp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	if err := r.checkSendLocked(m); err != nil {
		return err
	}

	msg := NewEmote(m.User.Author(), body)
	r.history.Push(msg)
	r.logLocked(msg.CreatedAt(), m.User.Name, "** "+body)
	for _, member := range r.members {
		if member != m && member.User.Ignores(fp) {
			continue
		}
		r.deliverLocked(member, msg)
	}
	return nil
}

// SendPrivate delivers a direct message. The recipient's reply_to is
// updated; a recipient who ignores the sender silently receives
// nothing, and an away recipient triggers a notice back to the sender.
func (r *Room) SendPrivate(fromFp, toName, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sendPrivateLocked(fromFp, toName, body)
}

// Reply sends a private message to the last user who messaged fromFp.
func (r *Room) Reply(fromFp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fromFp]
	if !ok {
		return ErrNotInRoom
	}
	if m.User.ReplyTo == "" {
		return ErrNoReplyTo
	}
	target, ok := r.members[m.User.ReplyTo]
	if !ok {
		return fmt.Errorf("user already left the room")
	}
	return r.sendPrivateLocked(fromFp, target.User.Name, body)
}

func (r *Room) sendPrivateLocked(fromFp, toName, body string) error {
	from, ok := r.members[fromFp]
	if !ok {
		return ErrNotInRoom
	}
	toFp, ok := r.names[toName]
	if !ok {
		return ErrUnknownUser
	}
	if toFp == fromFp {
		return ErrSelfMessage
	}
	if err := r.checkSendLocked(from); err != nil {
		return err
	}

	to := r.members[toFp]
	msg := NewPrivate(from.User.Author(), to.User.Author(), body)
	r.deliverLocked(from, msg)
	if !to.User.Ignores(fromFp) {
		to.User.ReplyTo = fromFp
		r.deliverLocked(to, msg)
	}
	if to.User.Status == StatusAway {
		_ = from.send(NewSystem(from.User.Author(),
			fmt.Sprintf("Sent PM to %s, but they're away now: %s", to.User.Name, to.User.AwayReason)))
	}
	return nil
}

// Announce broadcasts a room-wide notice about the given member.
func (r *Room) Announce(fp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	r.broadcastAnnounceLocked(NewAnnounce(m.User.Author(), body))
	return nil
}

// System delivers server output to one member.
func (r *Room) System(fp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	r.deliverLocked(m, NewSystem(m.User.Author(), body))
	return nil
}

// Error delivers an error event to one member.
func (r *Room) Error(fp, body string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	r.deliverLocked(m, NewError(m.User.Author(), body))
	return nil
}

// checkSendLocked enforces mute and the token bucket, reporting
// violations privately to the sender.
func (r *Room) checkSendLocked(m *Member) error {
	if m.User.IsMuted {
		_ = m.send(NewError(m.User.Author(), "you are muted and cannot send messages"))
		return ErrMuted
	}
	if !m.allowSend() {
		_ = m.send(NewError(m.User.Author(), "rate limit exceeded. Message dropped"))
		return ErrRateLimited
	}
	return nil
}

// broadcastAnnounceLocked fans an announcement out to everyone except
// quiet members and members who ignore the subject.
func (r *Room) broadcastAnnounceLocked(msg Announce) {
	r.logLocked(msg.CreatedAt(), msg.From.Name, "* "+msg.Body())
	for _, member := range r.members {
		if member.User.Config.Quiet {
			continue
		}
		if member.User.Fingerprint != msg.From.Fingerprint && member.User.Ignores(msg.From.Fingerprint) {
			continue
		}
		r.deliverLocked(member, msg)
	}
}

// deliverLocked enqueues a rendered event; a member whose queue is
// full is disconnected instead of blocking the room.
func (r *Room) deliverLocked(m *Member, msg Message) {
	if err := m.send(msg); err != nil {
		r.removeLocked(m)
		m.Close("output stalled")
	}
}

func (r *Room) logLocked(ts time.Time, name, body string) {
	if r.logFn != nil {
		r.logFn(ts, name, body)
	}
}

func memberFocuses(m *Member, fp string) bool {
	_, ok := m.User.Focused[fp]
	return ok
}

// =============================================================================
// USER OPERATIONS
// =============================================================================

// Rename changes a member's display name. Unlike join-time
// uniquification, a collision here is an error.
func (r *Room) Rename(fp, newName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	if !ValidName(newName) {
		return ErrInvalidName
	}
	if newName == m.User.Name {
		return ErrSameName
	}
	if _, taken := r.names[newName]; taken {
		return ErrNameTaken
	}

	was := m.User.Author()
	delete(r.names, m.User.Name)
	m.User.SetName(newName)
	r.names[newName] = fp
	r.broadcastAnnounceLocked(NewAnnounce(was,
		fmt.Sprintf("is now known as %s", newName)))
	return nil
}

// Update runs fn against the member's user under the room lock.
func (r *Room) Update(fp string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return ErrNotInRoom
	}
	fn(m.User)
	return nil
}

// UpdateByName runs fn against the named member's user under the room
// lock.
func (r *Room) UpdateByName(name string, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.names[name]
	if !ok {
		return ErrUnknownUser
	}
	fn(r.members[fp].User)
	return nil
}

// LookupByName returns a snapshot of the named member's identity.
func (r *Room) LookupByName(name string) (Author, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.names[name]
	if !ok {
		return Author{}, false
	}
	return r.members[fp].User.Author(), true
}

// Disconnect closes the named member's session (kick, ban).
func (r *Room) Disconnect(name, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.names[name]
	if !ok {
		return ErrUnknownUser
	}
	r.members[fp].Close(reason)
	return nil
}

// DisconnectIf closes every member whose user matches pred, returning
// the names closed. Used by /whitelist reverify.
func (r *Room) DisconnectIf(pred func(*User) bool, reason string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closed []string
	for _, m := range r.members {
		if pred(m.User) {
			closed = append(closed, m.User.Name)
			m.Close(reason)
		}
	}
	sort.Strings(closed)
	return closed
}

// =============================================================================
// QUERIES
// =============================================================================

// Names lists member display names in sorted order.
func (r *Room) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Authors snapshots every member's identity, sorted by name.
func (r *Room) Authors() []Author {
	r.mu.Lock()
	defer r.mu.Unlock()

	authors := make([]Author, 0, len(r.members))
	for _, m := range r.members {
		authors = append(authors, m.User.Author())
	}
	sort.Slice(authors, func(i, j int) bool { return authors[i].Name < authors[j].Name })
	return authors
}

// FindNameByPrefix returns the name of the most recently active member
// whose name starts with prefix, skipping the caller's own name. Used
// by tab completion.
func (r *Room) FindNameByPrefix(prefix, skip string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var matches []*Member
	for _, m := range r.members {
		if strings.HasPrefix(m.User.Name, prefix) {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].lastSent.Equal(matches[j].lastSent) {
			return matches[i].lastSent.After(matches[j].lastSent)
		}
		return matches[i].User.Name < matches[j].User.Name
	})

	for _, m := range matches {
		if m.User.Name != skip {
			return m.User.Name, true
		}
	}
	return "", false
}

// KeyLineByName returns the named member's public key in
// authorized_keys form.
func (r *Room) KeyLineByName(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.names[name]
	if !ok {
		return "", false
	}
	return r.members[fp].User.KeyLine, true
}

// IgnoredNames resolves a member's ignore set to the display names of
// those still present, sorted.
func (r *Room) IgnoredNames(fp string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return nil, ErrNotInRoom
	}
	return r.resolveLocked(m.User.Ignored), nil
}

// FocusedNames resolves a member's focus set to the display names of
// those still present, sorted.
func (r *Room) FocusedNames(fp string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.members[fp]
	if !ok {
		return nil, ErrNotInRoom
	}
	return r.resolveLocked(m.User.Focused), nil
}

func (r *Room) resolveLocked(set map[string]struct{}) []string {
	names := make([]string, 0, len(set))
	for fp := range set {
		if m, ok := r.members[fp]; ok {
			names = append(names, m.User.Name)
		}
	}
	sort.Strings(names)
	return names
}

// Whois formats the /whois block for the named member.
func (r *Room) Whois(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fp, ok := r.names[name]
	if !ok {
		return "", ErrUnknownUser
	}
	return r.members[fp].User.Whois(), nil
}
