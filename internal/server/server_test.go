// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/unrenamed/chatd/internal/auth"
)

// ============================================================================
// TEST HARNESS
// ============================================================================

type testServer struct {
	srv    *Server
	addr   string
	cancel context.CancelFunc
	done   chan struct{}
}

func startServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	srv, err := New(cfg)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ts := &testServer{
		srv:    srv,
		addr:   listener.Addr().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(ts.done)
		_ = srv.Serve(ctx, listener)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-ts.done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	})
	return ts
}

type testClient struct {
	conn    *ssh.Client
	session *ssh.Session
	stdin   io.WriteCloser

	mu  sync.Mutex
	out strings.Builder
}

func clientKey(t *testing.T) ssh.Signer {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)
	return signer
}

// connect dials the test server, requests a PTY, forwards env, and
// starts the chat shell.
func connect(t *testing.T, addr, user string, signer ssh.Signer, env map[string]string) *testClient {
	t.Helper()

	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	})
	require.NoError(t, err)

	session, err := conn.NewSession()
	require.NoError(t, err)

	for name, value := range env {
		require.NoError(t, session.Setenv(name, value))
	}
	require.NoError(t, session.RequestPty("xterm-256color", 24, 80, ssh.TerminalModes{}))

	stdin, err := session.StdinPipe()
	require.NoError(t, err)
	stdout, err := session.StdoutPipe()
	require.NoError(t, err)
	require.NoError(t, session.Shell())

	c := &testClient{conn: conn, session: session, stdin: stdin}
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				c.mu.Lock()
				c.out.Write(buf[:n])
				c.mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	t.Cleanup(func() { conn.Close() })
	return c
}

// ansiRE matches the escape sequences the server mixes into its
// output (SGR styling, erase-line, cursor motion, paste guards).
var ansiRE = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

// output returns everything received so far with escape sequences
// stripped, so assertions match what a human would read.
func (c *testClient) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ansiRE.ReplaceAllString(c.out.String(), "")
}

// waitFor polls the client's accumulated output for a substring.
func (c *testClient) waitFor(t *testing.T, substr string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(c.output(), substr) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output:\n%s", substr, c.output())
}

func (c *testClient) typeLine(t *testing.T, line string) {
	t.Helper()
	_, err := c.stdin.Write([]byte(line + "\r"))
	require.NoError(t, err)
}

// ============================================================================
// END-TO-END SCENARIOS
// ============================================================================

func TestChatBetweenTwoUsers(t *testing.T) {
	ts := startServer(t, Config{})

	alice := connect(t, ts.addr, "alice", clientKey(t), nil)
	alice.waitFor(t, "joined")

	bob := connect(t, ts.addr, "bob", clientKey(t), nil)
	bob.waitFor(t, "joined")
	alice.waitFor(t, "bob joined")

	alice.typeLine(t, "hello")
	bob.waitFor(t, "alice: hello")
	alice.waitFor(t, "alice: hello") // sender echo
}

func TestLoginNameBecomesDisplayName(t *testing.T) {
	ts := startServer(t, Config{})

	// The login name is sanitized; an unusable one gets a generated
	// guest name.
	weird := connect(t, ts.addr, "we ird!", clientKey(t), nil)
	weird.waitFor(t, "weird joined")
}

func TestMotdAndHistoryReplayOnJoin(t *testing.T) {
	ts := startServer(t, Config{})
	ts.srv.Room().SetMotd("Welcome to chatd!")

	alice := connect(t, ts.addr, "alice", clientKey(t), nil)
	alice.waitFor(t, "Welcome to chatd!")
	alice.typeLine(t, "for the record")
	alice.waitFor(t, "alice: for the record")

	bob := connect(t, ts.addr, "bob", clientKey(t), nil)
	bob.waitFor(t, "Welcome to chatd!")
	bob.waitFor(t, "alice: for the record")
}

func TestWhitelistDeniesUnknownKey(t *testing.T) {
	ts := startServer(t, Config{})
	ts.srv.Auth().EnableWhitelist()

	denied := connect(t, ts.addr, "mallory", clientKey(t), nil)
	denied.waitFor(t, "access denied: not on whitelist")
	assert.NotContains(t, denied.output(), "joined")
	assert.Equal(t, 0, ts.srv.Room().MemberCount(), "room state unchanged")
}

func TestSameKeyReplacesOldSession(t *testing.T) {
	ts := startServer(t, Config{})
	key := clientKey(t)

	first := connect(t, ts.addr, "alice", key, nil)
	first.waitFor(t, "joined")

	second := connect(t, ts.addr, "alice", key, nil)
	second.waitFor(t, "joined")
	first.waitFor(t, "replaced by new connection")

	require.Eventually(t, func() bool {
		return ts.srv.Room().MemberCount() == 1
	}, 5*time.Second, 20*time.Millisecond)
}

func TestCommandsOverTheWire(t *testing.T) {
	ts := startServer(t, Config{})

	alice := connect(t, ts.addr, "alice", clientKey(t), nil)
	alice.waitFor(t, "joined")

	alice.typeLine(t, "/themes")
	alice.waitFor(t, "Supported themes: colors, hacker, mono")

	alice.typeLine(t, "/kick alice")
	alice.waitFor(t, "must be an operator")
}

func TestEnvPreferencesApply(t *testing.T) {
	ts := startServer(t, Config{})

	alice := connect(t, ts.addr, "alice", clientKey(t), map[string]string{
		"CHATD_THEME":     "hacker",
		"CHATD_TIMESTAMP": "time",
	})
	alice.waitFor(t, "joined")
	alice.typeLine(t, "/theme")
	alice.waitFor(t, "Theme: hacker")

	// Unknown values are ignored rather than rejected.
	bob := connect(t, ts.addr, "bob", clientKey(t), map[string]string{
		"CHATD_THEME": "disco",
	})
	bob.waitFor(t, "joined")
	bob.typeLine(t, "/theme")
	bob.waitFor(t, "Theme: colors")
}

func TestBanLifecycleOverTheWire(t *testing.T) {
	ts := startServer(t, Config{})

	opKey := clientKey(t)
	ts.srv.Auth().AddOperator(opKey.PublicKey())

	carol := connect(t, ts.addr, "carol", opKey, nil)
	carol.waitFor(t, "joined")

	bobKey := clientKey(t)
	bob := connect(t, ts.addr, "bob", bobKey, nil)
	bob.waitFor(t, "joined")
	carol.waitFor(t, "bob joined")

	carol.typeLine(t, "/ban bob 500ms")
	carol.waitFor(t, "banned bob from the server")
	bob.waitFor(t, "banned by operator")

	// Within the ban window the fingerprint cannot rejoin.
	again := connect(t, ts.addr, "bob", bobKey, nil)
	again.waitFor(t, "access denied: banned")

	// After expiry the ban is purged on the next attempt.
	require.Eventually(t, func() bool {
		return ts.srv.Auth().CheckJoin(bobKey.PublicKey()) == nil
	}, 5*time.Second, 50*time.Millisecond)

	back := connect(t, ts.addr, "bob", bobKey, nil)
	back.waitFor(t, "bob joined")
}

func TestTabCompletionOverTheWire(t *testing.T) {
	ts := startServer(t, Config{})

	opKey := clientKey(t)
	ts.srv.Auth().AddOperator(opKey.PublicKey())

	carol := connect(t, ts.addr, "carol", opKey, nil)
	carol.waitFor(t, "joined")
	alice := connect(t, ts.addr, "alice", clientKey(t), nil)
	alice.waitFor(t, "joined")
	carol.waitFor(t, "alice joined")

	// /opl<Tab> completes the command, then "add al<Tab>" completes
	// the sole matching user.
	_, err := carol.stdin.Write([]byte("/opl\t"))
	require.NoError(t, err)
	carol.waitFor(t, "/oplist ")
	_, err = carol.stdin.Write([]byte("add al\t"))
	require.NoError(t, err)
	carol.waitFor(t, "add alice")

	_, err = carol.stdin.Write([]byte("\r"))
	require.NoError(t, err)
	carol.waitFor(t, "Server oplist is updated!")
}

func TestFingerprintAuthKnowsOperators(t *testing.T) {
	key := clientKey(t)
	a := auth.New()
	a.AddOperator(key.PublicKey())
	assert.True(t, a.IsOp(auth.Fingerprint(key.PublicKey())))
}
