// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiRE.ReplaceAllString(s, "")
}

func testConfig(name string) *UserConfig {
	cfg := NewUserConfig()
	cfg.setName(name)
	return &cfg
}

func author(name string) Author {
	return Author{Fingerprint: "SHA256:" + name, Name: name}
}

func TestRenderPublic(t *testing.T) {
	cfg := testConfig("bob")
	msg := NewPublic(author("alice"), "hello")
	assert.Equal(t, "alice: hello", stripANSI(Render(msg, cfg)))
}

func TestRenderPublicHighlightsMention(t *testing.T) {
	cfg := testConfig("bob")
	msg := NewPublic(author("alice"), "hey @bob look")

	rendered := Render(msg, cfg)
	assert.Equal(t, "alice: hey @bob look", stripANSI(rendered))
	// The mention is styled differently from the surrounding text.
	themed, _ := LookupTheme(DefaultTheme)
	assert.Contains(t, rendered, themed.TaggedUsername("@bob"))
}

func TestRenderEmote(t *testing.T) {
	cfg := testConfig("bob")
	msg := NewEmote(author("alice"), "waves")
	assert.Equal(t, " ** alice waves", stripANSI(Render(msg, cfg)))
}

func TestRenderAnnounce(t *testing.T) {
	cfg := testConfig("bob")
	msg := NewAnnounce(author("alice"), "joined. (Connected: 2)")
	assert.Equal(t, " * alice joined. (Connected: 2)", stripANSI(Render(msg, cfg)))
}

func TestRenderSystemAndError(t *testing.T) {
	cfg := testConfig("bob")
	assert.Equal(t, "-> welcome", stripANSI(Render(NewSystem(author("bob"), "welcome"), cfg)))
	assert.Equal(t, "-> Error: unknown command", stripANSI(Render(NewError(author("bob"), "unknown command"), cfg)))
}

func TestRenderPrivateBothDirections(t *testing.T) {
	msg := NewPrivate(author("alice"), author("bob"), "psst")

	assert.Equal(t, "[PM from alice] psst", stripANSI(Render(msg, testConfig("bob"))))
	assert.Equal(t, "[PM to bob] psst", stripANSI(Render(msg, testConfig("alice"))))
}

func TestRenderPrivateBell(t *testing.T) {
	cfg := testConfig("bob")
	cfg.Bell = true
	rendered := Render(NewPrivate(author("alice"), author("bob"), "ding"), cfg)
	assert.True(t, strings.HasSuffix(rendered, "\a"))
}

func TestRenderTimestampModes(t *testing.T) {
	msg := NewPublic(author("alice"), "hi")

	cfg := testConfig("bob")
	cfg.TimestampMode = TimestampTime
	plain := stripANSI(Render(msg, cfg))
	assert.Regexp(t, `^\d{2}:\d{2} alice: hi$`, plain)

	cfg.TimestampMode = TimestampDateTime
	plain = stripANSI(Render(msg, cfg))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} alice: hi$`, plain)

	cfg.TimestampMode = TimestampOff
	assert.Equal(t, "alice: hi", stripANSI(Render(msg, cfg)))
}

func TestRenderPreservesPayloadAcrossThemes(t *testing.T) {
	// The rendered line must carry the event payload verbatim in every
	// theme; styling only wraps it.
	for _, themeName := range ThemeNames() {
		theme, ok := LookupTheme(themeName)
		require.True(t, ok)
		cfg := testConfig("bob")
		cfg.Theme = theme

		tests := []struct {
			msg  Message
			want string
		}{
			{NewPublic(author("alice"), "payload"), "alice: payload"},
			{NewEmote(author("alice"), "payload"), " ** alice payload"},
			{NewAnnounce(author("alice"), "payload"), " * alice payload"},
			{NewSystem(author("bob"), "payload"), "-> payload"},
			{NewError(author("bob"), "payload"), "-> Error: payload"},
			{NewPrivate(author("alice"), author("bob"), "payload"), "[PM from alice] payload"},
		}
		for _, tc := range tests {
			assert.Equal(t, tc.want, stripANSI(tc.msg.Render(cfg)), "theme %s", themeName)
		}
	}
}

func TestUsernameColorStableAcrossRenames(t *testing.T) {
	theme, _ := LookupTheme("colors")

	before := theme.Username("alice", "SHA256:key")
	after := theme.Username("alicia", "SHA256:key")
	assert.Equal(t,
		strings.TrimSuffix(before, "alice\x1b[0m"),
		strings.TrimSuffix(after, "alicia\x1b[0m"),
		"color depends on the fingerprint, not the name")

	other := theme.Username("alice", "SHA256:otherkey")
	assert.NotEqual(t, before, other)
}

func TestThemeLookup(t *testing.T) {
	for _, name := range ThemeNames() {
		theme, ok := LookupTheme(name)
		assert.True(t, ok)
		assert.Equal(t, name, theme.Name())
	}

	_, ok := LookupTheme("neon")
	assert.False(t, ok)

	name, ok := ThemeByPrefix("ha")
	assert.True(t, ok)
	assert.Equal(t, "hacker", name)
}

func TestTimestampModeParse(t *testing.T) {
	tests := []struct {
		in   string
		want TimestampMode
		ok   bool
	}{
		{"off", TimestampOff, true},
		{"time", TimestampTime, true},
		{"DateTime", TimestampDateTime, true},
		{"banana", TimestampOff, false},
	}
	for _, tc := range tests {
		mode, ok := ParseTimestampMode(tc.in)
		assert.Equal(t, tc.ok, ok, "parse %q", tc.in)
		if ok {
			assert.Equal(t, tc.want, mode)
		}
	}

	name, ok := TimestampModeByPrefix("date")
	assert.True(t, ok)
	assert.Equal(t, "datetime", name)
}

func TestHistoryRing(t *testing.T) {
	h := NewHistory(3)
	assert.Zero(t, h.Len())

	for _, body := range []string{"one", "two", "three", "four"} {
		h.Push(NewPublic(author("alice"), body))
	}

	var bodies []string
	h.Each(func(m Message) { bodies = append(bodies, m.Body()) })
	assert.Equal(t, []string{"two", "three", "four"}, bodies, "oldest entry evicted")
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"alice", "alice"},
		{"al ice!", "alice"},
		{"a.b-c_d", "a.b-c_d"},
		{"@#$%", ""},
		{strings.Repeat("x", 40), strings.Repeat("x", MaxNameLength)},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, SanitizeName(tc.in), "sanitize %q", tc.in)
	}

	assert.True(t, ValidName("alice"))
	assert.False(t, ValidName("al ice"))
	assert.False(t, ValidName(""))
}

func TestRandomName(t *testing.T) {
	name := RandomName()
	assert.NotEmpty(t, name)
	assert.True(t, ValidName(name))
}

func TestUserWhois(t *testing.T) {
	u := NewUser("SHA256:abc", "alice", "SSH-2.0-OpenSSH_9.6", false)
	u.JoinedAt = time.Now().Add(-2 * time.Hour)

	info := u.Whois()
	assert.Contains(t, info, "name: alice")
	assert.Contains(t, info, "fingerprint: SHA256:abc")
	assert.Contains(t, info, "client: SSH-2.0-OpenSSH_9.6")
	assert.Contains(t, info, "joined: 2 hours ago")

	u.GoAway("lunch")
	assert.Contains(t, u.Whois(), "away")
	assert.Contains(t, u.Whois(), "lunch")
}
