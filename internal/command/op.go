// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/unrenamed/chatd/internal/auth"
	"github.com/unrenamed/chatd/internal/chat"
)

func (r *Registry) registerOps() {
	r.Register(&Command{
		Name:    "/mute",
		Usage:   "<user>",
		Help:    "Toggle muting user, preventing messages from broadcasting",
		OpOnly:  true,
		Arg:     ArgUser,
		Handler: handleMute,
	})
	r.Register(&Command{
		Name:    "/kick",
		Usage:   "<user>",
		Help:    "Kick user from the server",
		OpOnly:  true,
		Arg:     ArgUser,
		Handler: handleKick,
	})
	r.Register(&Command{
		Name:    "/ban",
		Usage:   "<user> [duration]",
		Help:    "Ban user from the server, optionally for a limited time",
		OpOnly:  true,
		Arg:     ArgUser,
		Handler: handleBan,
	})
	r.Register(&Command{
		Name:    "/banlist",
		Aliases: []string{"/banned"},
		Help:    "List the current ban conditions",
		OpOnly:  true,
		Handler: handleBanlist,
	})

	r.oplistSubs = []*Subcommand{
		{Name: "add", Usage: "<user | key>...", Help: "Add users or keys to the operators list", Handler: handleOplistAdd},
		{Name: "remove", Usage: "<user | key>...", Help: "Remove users or keys from the operators list", Handler: handleOplistRemove},
		{Name: "load", Usage: "[file] [merge|replace]", Help: "Load public keys from the oplist file", Handler: handleOplistLoad},
		{Name: "save", Usage: "", Help: "Export public keys to the oplist file", Handler: handleOplistSave},
		{Name: "status", Usage: "", Help: "Show status information", Handler: handleOplistStatus},
		{Name: "help", Handler: handleOplistHelp},
	}
	r.whitelistSubs = []*Subcommand{
		{Name: "on", Usage: "", Help: "Enable whitelist mode (applies to new connections only)", Handler: handleWhitelistOn},
		{Name: "off", Usage: "", Help: "Disable whitelist mode (applies to new connections only)", Handler: handleWhitelistOff},
		{Name: "add", Usage: "<user | key>...", Help: "Add users or keys to the trusted keys", Handler: handleWhitelistAdd},
		{Name: "remove", Usage: "<user | key>...", Help: "Remove users or keys from the trusted keys", Handler: handleWhitelistRemove},
		{Name: "load", Usage: "[file] [merge|replace]", Help: "Load public keys from the whitelist file", Handler: handleWhitelistLoad},
		{Name: "save", Usage: "", Help: "Export public keys to the whitelist file", Handler: handleWhitelistSave},
		{Name: "reverify", Usage: "", Help: "Kick all users not on the whitelist", Handler: handleWhitelistReverify},
		{Name: "status", Usage: "", Help: "Show status information", Handler: handleWhitelistStatus},
		{Name: "help", Handler: handleWhitelistHelp},
	}

	r.Register(&Command{
		Name:   "/oplist",
		Usage:  "<command> [args...]",
		Help:   "Modify the operators list. See /oplist help",
		OpOnly: true,
		Arg:    ArgSub,
		Handler: func(ctx *Context, args string) error {
			return dispatchSub(ctx, ctx.registry.oplistSubs, args, "oplist")
		},
	})
	r.Register(&Command{
		Name:   "/whitelist",
		Usage:  "<command> [args...]",
		Help:   "Modify the whitelist or whitelist state. See /whitelist help",
		OpOnly: true,
		Arg:    ArgSub,
		Handler: func(ctx *Context, args string) error {
			return dispatchSub(ctx, ctx.registry.whitelistSubs, args, "whitelist")
		},
	})
}

// =============================================================================
// MODERATION
// =============================================================================

func handleMute(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		return errors.New("user name is expected")
	}
	if target == ctx.User.Name {
		return errors.New("you can't mute yourself")
	}
	var muted bool
	if err := ctx.Room.UpdateByName(target, func(u *chat.User) {
		muted = u.ToggleMute()
	}); err != nil {
		return errors.New("user not found")
	}
	if muted {
		ctx.System(fmt.Sprintf("Muted: %s", target))
	} else {
		ctx.System(fmt.Sprintf("Unmuted: %s", target))
	}
	return nil
}

func handleKick(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		return errors.New("user name is expected")
	}
	if err := ctx.Room.Disconnect(target, "kicked by operator"); err != nil {
		return errors.New("user not found")
	}
	ctx.System(fmt.Sprintf("kicked %s from the server", target))
	return nil
}

func handleBan(ctx *Context, args string) error {
	target, durWord := splitWord(args)
	if target == "" {
		return errors.New("user name is expected")
	}

	var duration time.Duration
	if durWord != "" {
		d, err := time.ParseDuration(durWord)
		if err != nil || d <= 0 {
			return fmt.Errorf("invalid ban duration %q", durWord)
		}
		duration = d
	}

	author, ok := ctx.Room.LookupByName(target)
	if !ok {
		return errors.New("user not found")
	}

	ctx.Auth.Ban(author.Fingerprint, duration)
	_ = ctx.Room.Disconnect(target, "banned by operator")
	ctx.System(fmt.Sprintf("banned %s from the server", target))
	return nil
}

func handleBanlist(ctx *Context, _ string) error {
	banned := ctx.Auth.Banned()
	if len(banned) == 0 {
		ctx.System("0 bans")
		return nil
	}
	var b strings.Builder
	b.WriteString("Banned:")
	for _, fp := range banned {
		fmt.Fprintf(&b, "%s %q", chat.Newline, "fingerprint="+fp)
	}
	ctx.System(b.String())
	return nil
}

// =============================================================================
// OPLIST
// =============================================================================

func handleOplistAdd(ctx *Context, args string) error {
	return keyListAdd(ctx, args, ctx.Auth.AddOperator, "oplist")
}

func handleOplistRemove(ctx *Context, args string) error {
	return keyListRemove(ctx, args, ctx.Auth.RemoveOperator, "oplist")
}

func handleOplistLoad(ctx *Context, args string) error {
	mode, err := loadKeyFile(args, ctx.Auth.SetOplistFile, ctx.Auth.LoadOperators)
	if err != nil {
		return err
	}
	ctx.System(fmt.Sprintf("Loaded public keys from the oplist file (%s)", mode))
	return nil
}

func handleOplistSave(ctx *Context, _ string) error {
	if err := ctx.Auth.SaveOperators(); err != nil {
		return err
	}
	ctx.System("Saved public keys to the oplist file")
	return nil
}

func handleOplistStatus(ctx *Context, _ string) error {
	ctx.System(fmt.Sprintf("%d keys on the operators list", ctx.Auth.OperatorCount()))
	return nil
}

func handleOplistHelp(ctx *Context, _ string) error {
	ctx.System(subHelpText(ctx.registry.oplistSubs))
	return nil
}

// =============================================================================
// WHITELIST
// =============================================================================

func handleWhitelistOn(ctx *Context, _ string) error {
	ctx.Auth.EnableWhitelist()
	ctx.System("Server whitelisting is now enabled")
	return nil
}

func handleWhitelistOff(ctx *Context, _ string) error {
	ctx.Auth.DisableWhitelist()
	ctx.System("Server whitelisting is now disabled")
	return nil
}

func handleWhitelistAdd(ctx *Context, args string) error {
	return keyListAdd(ctx, args, ctx.Auth.AddTrusted, "whitelist")
}

func handleWhitelistRemove(ctx *Context, args string) error {
	return keyListRemove(ctx, args, ctx.Auth.RemoveTrusted, "whitelist")
}

func handleWhitelistLoad(ctx *Context, args string) error {
	mode, err := loadKeyFile(args, ctx.Auth.SetWhitelistFile, ctx.Auth.LoadTrusted)
	if err != nil {
		return err
	}
	ctx.System(fmt.Sprintf("Loaded public keys from the whitelist file (%s)", mode))
	return nil
}

func handleWhitelistSave(ctx *Context, _ string) error {
	if err := ctx.Auth.SaveTrusted(); err != nil {
		return err
	}
	ctx.System("Saved public keys to the whitelist file")
	return nil
}

func handleWhitelistReverify(ctx *Context, _ string) error {
	if !ctx.Auth.WhitelistEnabled() {
		return errors.New("whitelist mode is disabled")
	}
	kicked := ctx.Room.DisconnectIf(func(u *chat.User) bool {
		return !ctx.Auth.IsTrusted(u.Fingerprint) && !ctx.Auth.IsOp(u.Fingerprint)
	}, "removed by whitelist reverification")
	if len(kicked) == 0 {
		ctx.System("All users are on the whitelist")
	} else {
		ctx.System(fmt.Sprintf("Kicked %d users: %s", len(kicked), strings.Join(kicked, ", ")))
	}
	return nil
}

func handleWhitelistStatus(ctx *Context, _ string) error {
	state := "off"
	if ctx.Auth.WhitelistEnabled() {
		state = "on"
	}
	ctx.System(fmt.Sprintf("Whitelist mode: %s, %d trusted keys", state, ctx.Auth.TrustedCount()))
	return nil
}

func handleWhitelistHelp(ctx *Context, _ string) error {
	ctx.System(subHelpText(ctx.registry.whitelistSubs))
	return nil
}

// =============================================================================
// KEY LIST EDITING
// =============================================================================

// keyListAdd adds users (by present display name) or a raw public key
// line to one of the key lists.
func keyListAdd(ctx *Context, args string, add func(ssh.PublicKey), what string) error {
	if args == "" {
		return errors.New("list of users or keys is expected")
	}

	// A raw key line contains spaces, so treat the whole argument as a
	// key when it looks like one.
	if strings.HasPrefix(args, "ssh-") || strings.HasPrefix(args, "ecdsa-") {
		key, err := auth.ParseKey(args)
		if err != nil {
			return err
		}
		add(key)
		ctx.System(fmt.Sprintf("Server %s is updated!", what))
		return nil
	}

	var invalid []string
	added := 0
	for _, name := range strings.Fields(args) {
		line, ok := ctx.Room.KeyLineByName(name)
		if !ok || line == "" {
			invalid = append(invalid, name)
			continue
		}
		key, err := auth.ParseKey(line)
		if err != nil {
			invalid = append(invalid, name)
			continue
		}
		add(key)
		added++
	}

	var parts []string
	if len(invalid) > 0 {
		parts = append(parts, fmt.Sprintf("Invalid users: %s", strings.Join(invalid, ", ")))
	}
	if added > 0 {
		parts = append(parts, fmt.Sprintf("Server %s is updated!", what))
	}
	if len(parts) == 0 {
		parts = append(parts, "No keys were added")
	}
	ctx.System(strings.Join(parts, chat.Newline))
	return nil
}

// keyListRemove removes users (by name) or a raw public key line from
// one of the key lists.
func keyListRemove(ctx *Context, args string, remove func(fingerprint string), what string) error {
	if args == "" {
		return errors.New("list of users or keys is expected")
	}

	if strings.HasPrefix(args, "ssh-") || strings.HasPrefix(args, "ecdsa-") {
		key, err := auth.ParseKey(args)
		if err != nil {
			return err
		}
		remove(auth.Fingerprint(key))
		ctx.System(fmt.Sprintf("Server %s is updated!", what))
		return nil
	}

	var invalid []string
	removed := 0
	for _, name := range strings.Fields(args) {
		author, ok := ctx.Room.LookupByName(name)
		if !ok {
			invalid = append(invalid, name)
			continue
		}
		remove(author.Fingerprint)
		removed++
	}

	var parts []string
	if len(invalid) > 0 {
		parts = append(parts, fmt.Sprintf("Invalid users: %s", strings.Join(invalid, ", ")))
	}
	if removed > 0 {
		parts = append(parts, fmt.Sprintf("Server %s is updated!", what))
	}
	if len(parts) == 0 {
		parts = append(parts, "No keys were removed")
	}
	ctx.System(strings.Join(parts, chat.Newline))
	return nil
}

// loadKeyFile handles "load [file] [merge|replace]": an optional file
// path swaps the backing file, and the mode defaults to merge.
func loadKeyFile(args string, setFile func(*auth.KeyFile), load func(auth.LoadMode) error) (auth.LoadMode, error) {
	first, rest := splitWord(args)

	mode := auth.LoadMerge
	switch {
	case first == "":
		// defaults
	default:
		if m, ok := auth.ParseLoadMode(first); ok {
			mode = m
			break
		}
		// First word is a file path; the mode may follow.
		setFile(auth.NewKeyFile(first))
		if rest != "" {
			m, ok := auth.ParseLoadMode(rest)
			if !ok {
				return mode, fmt.Errorf("load mode value must be one of: %s",
					strings.Join(auth.LoadModeNames(), ", "))
			}
			mode = m
		}
	}
	return mode, load(mode)
}
