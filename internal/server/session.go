// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/ssh"

	"github.com/unrenamed/chatd/internal/auth"
	"github.com/unrenamed/chatd/internal/chat"
	"github.com/unrenamed/chatd/internal/command"
	"github.com/unrenamed/chatd/internal/terminal"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// writeTimeout bounds one PTY write; a client stuck longer is cut.
	writeTimeout = 5 * time.Second

	// shellTimeout bounds the wait for the client's shell request.
	shellTimeout = 10 * time.Second

	// maxInputLen caps one submitted line, in bytes.
	maxInputLen = 1024
)

const (
	enableBracketedPaste  = "\x1b[?2004h"
	disableBracketedPaste = "\x1b[?2004l"
	clearLine             = "\r\x1b[2K"
)

// ============================================================================
// SESSION
// ============================================================================

// Session is the per-connection controller: it owns the line editor
// and runs the two cooperating tasks — input (PTY bytes → key events →
// editor → engine) and output (member queue → PTY). The two share only
// the member's queue and the session context.
type Session struct {
	id      string
	srv     *Server
	conn    *ssh.ServerConn
	channel ssh.Channel
	key     ssh.PublicKey

	user    *chat.User
	member  *chat.Member
	editor  *terminal.Editor
	decoder *terminal.Decoder

	cancel context.CancelFunc

	mu       sync.Mutex
	reason   string
	width    int
	env      map[string]string
	shellReq chan struct{}

	writeMu sync.Mutex
}

func newSession(srv *Server, conn *ssh.ServerConn, channel ssh.Channel, key ssh.PublicKey) *Session {
	return &Session{
		id:       uuid.NewString(),
		srv:      srv,
		conn:     conn,
		channel:  channel,
		key:      key,
		editor:   terminal.NewEditor(),
		decoder:  terminal.NewDecoder(),
		width:    80,
		env:      make(map[string]string),
		shellReq: make(chan struct{}),
	}
}

// ============================================================================
// SSH REQUESTS
// ============================================================================

type ptyRequest struct {
	Term          string
	Cols, Rows    uint32
	Width, Height uint32
	Modes         string
}

type envRequest struct {
	Name  string
	Value string
}

type windowChange struct {
	Cols, Rows    uint32
	Width, Height uint32
}

// serveRequests answers the channel's out-of-band requests: pty-req,
// env (collected before the shell starts), shell, window-change.
func (s *Session) serveRequests(requests <-chan *ssh.Request) {
	shellSeen := false
	for req := range requests {
		switch req.Type {
		case "pty-req":
			var pty ptyRequest
			if err := ssh.Unmarshal(req.Payload, &pty); err == nil {
				s.setWidth(int(pty.Cols))
			}
			req.Reply(true, nil)
		case "env":
			var env envRequest
			if err := ssh.Unmarshal(req.Payload, &env); err == nil {
				s.setEnv(env.Name, env.Value)
			}
			req.Reply(true, nil)
		case "shell":
			if !shellSeen {
				shellSeen = true
				close(s.shellReq)
			}
			req.Reply(true, nil)
		case "window-change":
			var win windowChange
			if err := ssh.Unmarshal(req.Payload, &win); err == nil {
				s.setWidth(int(win.Cols))
			}
		default:
			// exec, sftp and friends: this server only chats.
			req.Reply(false, nil)
		}
	}
}

func (s *Session) setWidth(w int) {
	if w <= 0 {
		return
	}
	s.mu.Lock()
	s.width = w
	s.mu.Unlock()
}

func (s *Session) setEnv(name, value string) {
	s.mu.Lock()
	s.env[name] = value
	s.mu.Unlock()
}

func (s *Session) setReason(reason string) {
	s.mu.Lock()
	if s.reason == "" {
		s.reason = reason
	}
	s.mu.Unlock()
}

func (s *Session) closeReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// run executes the session to completion.
func (s *Session) run(parent context.Context) {
	defer s.channel.Close()

	select {
	case <-s.shellReq:
	case <-time.After(shellTimeout):
		return
	case <-parent.Done():
		return
	}

	fingerprint := auth.Fingerprint(s.key)
	if err := s.srv.auth.CheckJoin(s.key); err != nil {
		log.Printf("AUTH_DENIED | session=%s fingerprint=%s reason=%v", s.id, fingerprint, err)
		s.rawWrite(err.Error() + chat.Newline)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	s.cancel = cancel

	// Reads on the channel have no deadline of their own; closing the
	// channel is what unblocks the input task when the session is
	// canceled (kick, ban, eviction, shutdown). The recorded reason
	// goes out first so the user sees why they were cut.
	go func() {
		<-ctx.Done()
		if reason := s.closeReason(); reason != "" {
			s.write(clearLine + "-> " + reason + chat.Newline + disableBracketedPaste)
		}
		s.channel.Close()
	}()

	s.user = chat.NewUser(fingerprint, s.conn.User(), string(s.conn.ClientVersion()), s.srv.auth.IsOp(fingerprint))
	s.user.KeyLine = auth.MarshalKey(s.key)
	s.applyEnv()

	s.member = chat.NewMember(s.user, func(reason string) {
		s.setReason(reason)
		cancel()
	})

	cmdCtx := &command.Context{
		Room: s.srv.room,
		Auth: s.srv.auth,
		User: s.user,
		Quit: func() {
			s.setReason("left the room")
			cancel()
		},
	}
	s.editor.SetCompleter(s.srv.registry.Completer(cmdCtx))

	name := s.srv.room.Join(s.member)
	log.Printf("SESSION_JOIN | session=%s name=%s fingerprint=%s remote=%s",
		s.id, name, fingerprint, s.conn.RemoteAddr())

	s.rawWrite(enableBracketedPaste)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.outputTask(ctx)
	}()

	s.inputTask(ctx, cmdCtx)

	cancel()
	s.srv.room.Leave(s.member)
	wg.Wait()
	log.Printf("SESSION_END | session=%s name=%s reason=%q", s.id, s.user.Name, s.closeReason())
}

// ============================================================================
// OUTPUT TASK
// ============================================================================

// outputTask drains the member queue onto the PTY. Each event erases
// the prompt line, prints the event, and repaints the prompt so
// incoming traffic never lands to the right of the user's input.
func (s *Session) outputTask(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case line := <-s.member.Events():
			s.write(clearLine + line + s.promptLine())
		}
	}
}

// promptLine renders "[name] " plus the edit buffer, with the terminal
// cursor moved back to the editor's cursor column.
func (s *Session) promptLine() string {
	theme := s.user.Config.Theme
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(theme.Username(s.user.Name, s.user.Fingerprint))
	b.WriteString("] ")
	b.WriteString(s.editor.Line.Text())
	if back := s.editor.Line.Width() - s.editor.Line.WidthToCursor(); back > 0 {
		fmt.Fprintf(&b, "\x1b[%dD", back)
	}
	return b.String()
}

func (s *Session) repaint() {
	s.write(clearLine + s.promptLine())
}

// write sends bytes with the session write timeout: if the client
// cannot take the write in time, the channel is torn down.
func (s *Session) write(p string) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	timer := time.AfterFunc(writeTimeout, func() {
		s.setReason("output stalled")
		s.channel.Close()
	})
	defer timer.Stop()
	_, _ = s.channel.Write([]byte(p))
}

// rawWrite is write without prompt bookkeeping, for pre-join and
// teardown lines.
func (s *Session) rawWrite(p string) {
	s.write(p)
}

// ============================================================================
// INPUT TASK
// ============================================================================

// inputTask reads PTY bytes until the channel dies or the session is
// canceled.
func (s *Session) inputTask(ctx context.Context, cmdCtx *command.Context) {
	s.repaint()

	buf := make([]byte, 512)
	for {
		n, err := s.channel.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range s.decoder.Write(buf[:n]) {
			if s.srv.cfg.Debug > 1 {
				log.Printf("KEY_EVENT | session=%s type=%d rune=%q", s.id, ev.Type, ev.Rune)
			}
			s.handleKey(cmdCtx, ev)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (s *Session) handleKey(cmdCtx *command.Context, ev terminal.KeyEvent) {
	switch s.editor.Feed(ev) {
	case terminal.EditRedraw:
		if candidates := s.editor.TakeCandidates(); len(candidates) > 0 {
			s.showCandidates(candidates)
			return
		}
		s.repaint()

	case terminal.EditSubmit:
		s.submit(cmdCtx, s.editor.Submitted())
		s.repaint()

	case terminal.EditCancel:
		s.repaint()

	case terminal.EditEOF:
		s.setReason("left the room")
		s.cancel()
	}
}

// showCandidates prints completion candidates on their own line below
// the prompt.
func (s *Session) showCandidates(candidates []string) {
	theme := s.user.Config.Theme
	s.write(clearLine + theme.System(strings.Join(candidates, "  ")) + chat.Newline + s.promptLine())
}

// submit routes one completed line: empty input is ignored, slash
// lines dispatch as commands, everything else is chat.
func (s *Session) submit(cmdCtx *command.Context, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if len(line) > maxInputLen {
		_ = s.srv.room.Error(s.user.Fingerprint, "message dropped. Input is too long")
		return
	}
	if command.IsCommand(line) {
		s.srv.registry.Dispatch(cmdCtx, line)
		return
	}
	// Engine-reported failures (mute, rate limit) already reached the
	// member queue as Error events.
	_ = s.srv.room.SendPublic(s.user.Fingerprint, line)
}

// applyEnv applies the client-forwarded environment accept-list before
// the first render.
func (s *Session) applyEnv() {
	s.mu.Lock()
	env := make(map[string]string, len(s.env))
	for k, v := range s.env {
		env[k] = v
	}
	s.mu.Unlock()

	if name, ok := env["CHATD_THEME"]; ok {
		if theme, found := chat.LookupTheme(name); found {
			s.user.Config.Theme = theme
		}
	}
	if mode, ok := env["CHATD_TIMESTAMP"]; ok {
		if parsed, found := chat.ParseTimestampMode(mode); found {
			s.user.Config.TimestampMode = parsed
		}
	}
}
