// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrBanned denies a join from a banned fingerprint.
	ErrBanned = errors.New("access denied: banned")
	// ErrNotWhitelisted denies a join while whitelist mode is on.
	ErrNotWhitelisted = errors.New("access denied: not on whitelist")
	// ErrNoOplist means no oplist file was configured.
	ErrNoOplist = errors.New("no oplist file in the server configuration")
	// ErrNoWhitelist means no whitelist file was configured.
	ErrNoWhitelist = errors.New("no whitelist file in the server configuration")
)

// LoadMode selects how a key-file load combines with in-memory state.
type LoadMode int

const (
	// LoadMerge unions the file's keys with the current set.
	LoadMerge LoadMode = iota
	// LoadReplace discards the current set first.
	LoadReplace
)

func (m LoadMode) String() string {
	if m == LoadReplace {
		return "replace"
	}
	return "merge"
}

// ParseLoadMode parses "merge" or "replace" (case-insensitive).
func ParseLoadMode(s string) (LoadMode, bool) {
	switch strings.ToLower(s) {
	case "merge":
		return LoadMerge, true
	case "replace":
		return LoadReplace, true
	}
	return LoadMerge, false
}

// LoadModeByPrefix completes a load mode name from its prefix.
func LoadModeByPrefix(prefix string) (string, bool) {
	if prefix == "" {
		return "", false
	}
	for _, name := range LoadModeNames() {
		if strings.HasPrefix(name, strings.ToLower(prefix)) {
			return name, true
		}
	}
	return "", false
}

// LoadModeNames lists the mode names in stable order.
func LoadModeNames() []string { return []string{"merge", "replace"} }

// =============================================================================
// AUTH
// =============================================================================

// Auth is chatd's join policy: who operates the room, who may join
// while whitelist mode is on, and who is banned. Keys are tracked by
// fingerprint, with the full public key retained so the lists can be
// written back to disk.
type Auth struct {
	mu sync.Mutex

	whitelistEnabled bool

	oplistFile    *KeyFile
	whitelistFile *KeyFile

	operators map[string]ssh.PublicKey // fingerprint → key
	trusted   map[string]ssh.PublicKey

	bans *TimedSet // fingerprints
}

// New creates an empty policy: whitelist off, nobody banned.
func New() *Auth {
	return &Auth{
		operators: make(map[string]ssh.PublicKey),
		trusted:   make(map[string]ssh.PublicKey),
		bans:      NewTimedSet(),
	}
}

// SetOplistFile attaches the oplist key file.
func (a *Auth) SetOplistFile(f *KeyFile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.oplistFile = f
}

// SetWhitelistFile attaches the whitelist key file.
func (a *Auth) SetWhitelistFile(f *KeyFile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.whitelistFile = f
}

// OplistPath returns the oplist file path, or "".
func (a *Auth) OplistPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.oplistFile == nil {
		return ""
	}
	return a.oplistFile.Path()
}

// WhitelistPath returns the whitelist file path, or "".
func (a *Auth) WhitelistPath() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.whitelistFile == nil {
		return ""
	}
	return a.whitelistFile.Path()
}

// =============================================================================
// WHITELIST MODE
// =============================================================================

// EnableWhitelist turns whitelist mode on for new connections.
func (a *Auth) EnableWhitelist() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.whitelistEnabled = true
}

// DisableWhitelist turns whitelist mode off.
func (a *Auth) DisableWhitelist() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.whitelistEnabled = false
}

// WhitelistEnabled reports whether joins are restricted to trusted keys.
func (a *Auth) WhitelistEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.whitelistEnabled
}

// =============================================================================
// JOIN POLICY
// =============================================================================

// CheckJoin decides whether the key may enter the room. Expired bans
// are purged by the lookup itself.
func (a *Auth) CheckJoin(key ssh.PublicKey) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	fp := Fingerprint(key)
	if a.whitelistEnabled {
		if _, ok := a.trusted[fp]; !ok {
			return ErrNotWhitelisted
		}
	}
	if a.bans.Contains(fp) {
		return ErrBanned
	}
	return nil
}

// IsOp reports whether the fingerprint belongs to an operator.
func (a *Auth) IsOp(fingerprint string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.operators[fingerprint]
	return ok
}

// IsTrusted reports whether the fingerprint is on the whitelist.
func (a *Auth) IsTrusted(fingerprint string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.trusted[fingerprint]
	return ok
}

// =============================================================================
// BANS
// =============================================================================

// Ban bans a fingerprint. Zero duration is permanent.
func (a *Auth) Ban(fingerprint string, d time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bans.Insert(fingerprint, d)
}

// Unban lifts a ban.
func (a *Auth) Unban(fingerprint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.bans.Remove(fingerprint)
}

// Banned lists the currently banned fingerprints.
func (a *Auth) Banned() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bans.Items()
}

// =============================================================================
// KEY SETS
// =============================================================================

// AddOperator grants operator rights to a key.
func (a *Auth) AddOperator(key ssh.PublicKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.operators[Fingerprint(key)] = key
}

// RemoveOperator revokes operator rights.
func (a *Auth) RemoveOperator(fingerprint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.operators, fingerprint)
}

// AddTrusted adds a key to the whitelist.
func (a *Auth) AddTrusted(key ssh.PublicKey) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trusted[Fingerprint(key)] = key
}

// RemoveTrusted removes a key from the whitelist.
func (a *Auth) RemoveTrusted(fingerprint string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.trusted, fingerprint)
}

// OperatorCount returns the number of operator keys.
func (a *Auth) OperatorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.operators)
}

// TrustedCount returns the number of whitelisted keys.
func (a *Auth) TrustedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.trusted)
}

// OperatorFingerprints lists operator fingerprints in sorted order.
func (a *Auth) OperatorFingerprints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.operators)
}

// TrustedFingerprints lists whitelist fingerprints in sorted order.
func (a *Auth) TrustedFingerprints() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return sortedKeys(a.trusted)
}

// =============================================================================
// FILE LOAD / SAVE
// =============================================================================

// LoadOperators (re)loads the oplist file with the given mode.
func (a *Auth) LoadOperators(mode LoadMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.oplistFile == nil {
		return ErrNoOplist
	}
	keys, err := a.oplistFile.Load()
	if err != nil {
		return err
	}
	if mode == LoadReplace {
		a.operators = make(map[string]ssh.PublicKey)
	}
	for _, key := range keys {
		a.operators[Fingerprint(key)] = key
	}
	return nil
}

// LoadTrusted (re)loads the whitelist file with the given mode.
func (a *Auth) LoadTrusted(mode LoadMode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.whitelistFile == nil {
		return ErrNoWhitelist
	}
	keys, err := a.whitelistFile.Load()
	if err != nil {
		return err
	}
	if mode == LoadReplace {
		a.trusted = make(map[string]ssh.PublicKey)
	}
	for _, key := range keys {
		a.trusted[Fingerprint(key)] = key
	}
	return nil
}

// SaveOperators writes the in-memory operator keys back to the oplist
// file.
func (a *Auth) SaveOperators() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.oplistFile == nil {
		return ErrNoOplist
	}
	return a.oplistFile.Save(keyValues(a.operators))
}

// SaveTrusted writes the in-memory whitelist back to its file.
func (a *Auth) SaveTrusted() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.whitelistFile == nil {
		return ErrNoWhitelist
	}
	return a.whitelistFile.Save(keyValues(a.trusted))
}

func sortedKeys(m map[string]ssh.PublicKey) []string {
	out := make([]string, 0, len(m))
	for fp := range m {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

func keyValues(m map[string]ssh.PublicKey) []ssh.PublicKey {
	fps := sortedKeys(m)
	keys := make([]ssh.PublicKey, 0, len(fps))
	for _, fp := range fps {
		keys = append(keys, m[fp])
	}
	return keys
}
