// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Fingerprint returns the canonical identity of a public key, the
// OpenSSH "SHA256:..." form. It is the primary user key everywhere in
// chatd.
func Fingerprint(key ssh.PublicKey) string {
	return ssh.FingerprintSHA256(key)
}

// ParseKey parses one OpenSSH authorized_keys-format public key line.
func ParseKey(line string) (ssh.PublicKey, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey([]byte(line))
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	return key, nil
}

// MarshalKey renders a key as a single authorized_keys line, without
// the trailing newline.
func MarshalKey(key ssh.PublicKey) string {
	return strings.TrimRight(string(ssh.MarshalAuthorizedKey(key)), "\n")
}
