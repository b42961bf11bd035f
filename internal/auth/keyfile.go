// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/crypto/ssh"

	"github.com/unrenamed/chatd/internal/util"
)

// KeyFile reads and writes an authorized_keys-style list: one OpenSSH
// public key per line, blank lines and '#' comments ignored. Both the
// oplist and whitelist use this format.
type KeyFile struct {
	path string
}

// NewKeyFile wraps a key list file path.
func NewKeyFile(path string) *KeyFile {
	return &KeyFile{path: path}
}

// Path returns the underlying file path.
func (f *KeyFile) Path() string { return f.path }

// Load parses every key in the file. Unparseable non-comment lines are
// an error, with the line number in the message.
func (f *KeyFile) Load() ([]ssh.PublicKey, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}

	var keys []ssh.PublicKey
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, err := ParseKey(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", f.path, i+1, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// Save overwrites the file with the given keys, one per line, written
// atomically.
func (f *KeyFile) Save(keys []ssh.PublicKey) error {
	var b strings.Builder
	for _, key := range keys {
		b.WriteString(MarshalKey(key))
		b.WriteString("\n")
	}
	return util.AtomicWriteFile(f.path, []byte(b.String()), 0o600)
}
