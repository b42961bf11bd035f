// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/unrenamed/chatd/internal/auth"
	"github.com/unrenamed/chatd/internal/chat"
	"github.com/unrenamed/chatd/internal/command"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultPort is the SSH listen port.
	DefaultPort = 2222

	// handshakeTimeout bounds the SSH handshake for a new TCP connection.
	handshakeTimeout = 30 * time.Second
)

// ============================================================================
// CONFIG
// ============================================================================

// Config carries everything the server needs to start.
type Config struct {
	Port int

	// IdentityPath is the host private key file. Empty generates an
	// ephemeral ed25519 key, so restarts change the host identity.
	IdentityPath string

	// OplistPath and WhitelistPath are authorized_keys-style files.
	// A non-empty WhitelistPath enables whitelist mode.
	OplistPath    string
	WhitelistPath string

	// MotdPath is shown verbatim to joining users.
	MotdPath string

	// LogPath receives the append-only chat log.
	LogPath string

	// Debug raises operational log verbosity (0..2).
	Debug int
}

// ============================================================================
// SERVER
// ============================================================================

// Server is the chatd SSH frontend: one process-wide room plus one
// session controller per accepted connection.
type Server struct {
	cfg       Config
	sshConfig *ssh.ServerConfig

	room     *chat.Room
	auth     *auth.Auth
	registry *command.Registry

	chatLog *ChatLog
	watcher *Watcher

	listener net.Listener
	wg       sync.WaitGroup
}

// New builds a server: host identity, join policy, MOTD, chat log.
func New(cfg Config) (*Server, error) {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	s := &Server{
		cfg:      cfg,
		room:     chat.NewRoom(""),
		auth:     auth.New(),
		registry: command.NewRegistry(),
	}

	signer, err := loadIdentity(cfg.IdentityPath)
	if err != nil {
		return nil, err
	}

	if cfg.OplistPath != "" {
		s.auth.SetOplistFile(auth.NewKeyFile(cfg.OplistPath))
		if err := s.auth.LoadOperators(auth.LoadReplace); err != nil {
			return nil, fmt.Errorf("load oplist: %w", err)
		}
	}
	if cfg.WhitelistPath != "" {
		s.auth.SetWhitelistFile(auth.NewKeyFile(cfg.WhitelistPath))
		if err := s.auth.LoadTrusted(auth.LoadReplace); err != nil {
			return nil, fmt.Errorf("load whitelist: %w", err)
		}
		s.auth.EnableWhitelist()
	}
	if cfg.MotdPath != "" {
		motd, err := os.ReadFile(cfg.MotdPath)
		if err != nil {
			return nil, fmt.Errorf("load motd: %w", err)
		}
		s.room.SetMotd(string(motd))
	}
	if cfg.LogPath != "" {
		chatLog, err := NewChatLog(cfg.LogPath)
		if err != nil {
			return nil, fmt.Errorf("open chat log: %w", err)
		}
		s.chatLog = chatLog
		s.room.SetLog(chatLog.Log)
	}

	// The callback accepts every key: policy runs after the handshake
	// so rejected users get a readable explanation on their terminal.
	s.sshConfig = &ssh.ServerConfig{
		PublicKeyCallback: func(conn ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			return &ssh.Permissions{
				Extensions: map[string]string{
					"pubkey-line": auth.MarshalKey(key),
				},
			}, nil
		},
	}
	s.sshConfig.AddHostKey(signer)

	return s, nil
}

// Room exposes the engine, for tests and the watcher.
func (s *Server) Room() *chat.Room { return s.room }

// Auth exposes the join policy.
func (s *Server) Auth() *auth.Auth { return s.auth }

// Run listens on the configured port and serves until ctx is
// canceled.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections from listener until ctx is canceled, then
// shuts down gracefully: the listener closes first, then every live
// session is canceled and waited on.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.listener = listener
	log.Printf("SERVER_START | addr=%s version=%s", listener.Addr(), command.Version)

	if s.cfg.OplistPath != "" || s.cfg.WhitelistPath != "" || s.cfg.MotdPath != "" {
		watcher, err := NewWatcher(s)
		if err != nil {
			log.Printf("WATCHER_ERROR | error=%v", err)
		} else {
			s.watcher = watcher
			s.watcher.Start(ctx)
		}
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			log.Printf("ACCEPT_ERROR | error=%v", err)
			continue
		}

		s.wg.Add(1)
		go func(conn net.Conn) {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}(conn)
	}

	s.wg.Wait()
	if s.chatLog != nil {
		s.chatLog.Close()
	}
	log.Printf("SERVER_SHUTDOWN | graceful")
	return nil
}

// handleConn upgrades one TCP connection to SSH and serves its session
// channels.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(handshakeTimeout))

	sshConn, chans, reqs, err := ssh.NewServerConn(conn, s.sshConfig)
	if err != nil {
		if s.cfg.Debug > 0 {
			log.Printf("HANDSHAKE_ERROR | remote=%s error=%v", conn.RemoteAddr(), err)
		}
		return
	}
	conn.SetDeadline(time.Time{})
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)
	go func() {
		<-ctx.Done()
		sshConn.Close()
	}()

	keyLine := sshConn.Permissions.Extensions["pubkey-line"]
	key, err := auth.ParseKey(keyLine)
	if err != nil {
		log.Printf("KEY_ERROR | remote=%s error=%v", conn.RemoteAddr(), err)
		return
	}

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			log.Printf("CHANNEL_ERROR | remote=%s error=%v", conn.RemoteAddr(), err)
			return
		}

		sess := newSession(s, sshConn, channel, key)
		go sess.serveRequests(requests)
		sess.run(ctx)
		return // one chat session per connection
	}
}

// loadIdentity reads the host key, or mints an ephemeral one.
func loadIdentity(path string) (ssh.Signer, error) {
	if path == "" {
		_, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate host key: %w", err)
		}
		signer, err := ssh.NewSignerFromKey(priv)
		if err != nil {
			return nil, fmt.Errorf("wrap host key: %w", err)
		}
		log.Printf("IDENTITY_EPHEMERAL | fingerprint=%s", ssh.FingerprintSHA256(signer.PublicKey()))
		return signer, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read identity %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse identity %s: %w", path, err)
	}
	log.Printf("IDENTITY_LOADED | path=%s fingerprint=%s", path, ssh.FingerprintSHA256(signer.PublicKey()))
	return signer, nil
}
