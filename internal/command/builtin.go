// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unrenamed/chatd/internal/chat"
)

// Version is stamped by the build; /version reports it.
var Version = "0.3.0"

func (r *Registry) registerBuiltins() {
	r.Register(&Command{
		Name:    "/help",
		Help:    "Show available commands",
		Handler: handleHelp,
	})
	r.Register(&Command{
		Name:    "/exit",
		Aliases: []string{"/quit"},
		Help:    "Leave the chat",
		Handler: handleExit,
	})
	r.Register(&Command{
		Name:    "/nick",
		Aliases: []string{"/name"},
		Usage:   "<name>",
		Help:    "Rename yourself",
		Handler: handleNick,
	})
	r.Register(&Command{
		Name:    "/names",
		Aliases: []string{"/users"},
		Help:    "List users who are connected",
		Handler: handleNames,
	})
	r.Register(&Command{
		Name:    "/me",
		Usage:   "[action]",
		Handler: handleMe,
	})
	r.Register(&Command{
		Name:    "/msg",
		Usage:   "<user> <message>",
		Help:    "Send a private message to a user",
		Arg:     ArgUser,
		Handler: handleMsg,
	})
	r.Register(&Command{
		Name:    "/reply",
		Usage:   "<message>",
		Help:    "Reply to the previous private message",
		Handler: handleReply,
	})
	r.Register(&Command{
		Name:    "/quiet",
		Help:    "Silence room announcements",
		Handler: handleQuiet,
	})
	r.Register(&Command{
		Name:    "/theme",
		Usage:   "<theme>",
		Help:    "Set your color theme",
		Arg:     ArgTheme,
		Handler: handleTheme,
	})
	r.Register(&Command{
		Name:    "/themes",
		Help:    "List supported color themes",
		Handler: handleThemes,
	})
	r.Register(&Command{
		Name:    "/timestamp",
		Usage:   "<time|datetime|off>",
		Help:    "Prefix messages with a UTC timestamp",
		Arg:     ArgTimestamp,
		Handler: handleTimestamp,
	})
	r.Register(&Command{
		Name:    "/ignore",
		Usage:   "[user]",
		Help:    "Hide messages from a user",
		Arg:     ArgUser,
		Handler: handleIgnore,
	})
	r.Register(&Command{
		Name:    "/unignore",
		Usage:   "<user>",
		Help:    "Stop hiding messages from a user",
		Arg:     ArgUser,
		Handler: handleUnignore,
	})
	r.Register(&Command{
		Name:    "/focus",
		Usage:   "[user]",
		Help:    "Only show messages from focused users. $ to reset",
		Arg:     ArgUser,
		Handler: handleFocus,
	})
	r.Register(&Command{
		Name:    "/whois",
		Usage:   "<user>",
		Help:    "Information about a user",
		Arg:     ArgUser,
		Handler: handleWhois,
	})
	r.Register(&Command{
		Name:    "/away",
		Usage:   "<reason>",
		Help:    "Let the room know you can't make it and why",
		Handler: handleAway,
	})
	r.Register(&Command{
		Name:    "/back",
		Help:    "Clear away status",
		Handler: handleBack,
	})
	r.Register(&Command{
		Name:    "/motd",
		Usage:   "[message]",
		Help:    "Print the motd, or set a new one (operators)",
		Handler: handleMotd,
	})
	r.Register(&Command{
		Name:    "/slap",
		Usage:   "[user]",
		Arg:     ArgUser,
		Handler: handleSlap,
	})
	r.Register(&Command{
		Name:    "/shrug",
		Handler: handleShrug,
	})
	r.Register(&Command{
		Name:    "/uptime",
		Handler: handleUptime,
	})
	r.Register(&Command{
		Name:    "/version",
		Handler: handleVersion,
	})

	r.registerOps()
}

// =============================================================================
// GENERAL HANDLERS
// =============================================================================

func handleHelp(ctx *Context, _ string) error {
	reg := ctx.registry
	ctx.System(reg.helpText(ctx.IsOp()))
	return nil
}

func handleExit(ctx *Context, _ string) error {
	if ctx.Quit != nil {
		ctx.Quit()
	}
	return nil
}

func handleNick(ctx *Context, args string) error {
	name, _ := splitWord(args)
	if name == "" {
		return errors.New("new name is expected")
	}
	return ctx.Room.Rename(ctx.User.Fingerprint, name)
}

func handleNames(ctx *Context, _ string) error {
	authors := ctx.Room.Authors()
	theme := ctx.User.Config.Theme
	names := make([]string, 0, len(authors))
	for _, a := range authors {
		names = append(names, theme.Username(a.Name, a.Fingerprint))
	}
	ctx.System(fmt.Sprintf("%d connected: %s", len(authors), strings.Join(names, ", ")))
	return nil
}

func handleMe(ctx *Context, args string) error {
	if args == "" {
		args = "is at a loss for words."
	}
	return filterSendErr(ctx.Room.SendEmote(ctx.User.Fingerprint, args))
}

func handleMsg(ctx *Context, args string) error {
	user, body := splitWord(args)
	if user == "" {
		return errors.New("user name is expected")
	}
	if body == "" {
		return errors.New("message body is expected")
	}
	return filterSendErr(ctx.Room.SendPrivate(ctx.User.Fingerprint, user, body))
}

func handleReply(ctx *Context, args string) error {
	if args == "" {
		return errors.New("message body is expected")
	}
	return filterSendErr(ctx.Room.Reply(ctx.User.Fingerprint, args))
}

func handleQuiet(ctx *Context, _ string) error {
	var quiet bool
	err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.Config.Quiet = !u.Config.Quiet
		quiet = u.Config.Quiet
	})
	if err != nil {
		return err
	}
	if quiet {
		ctx.System("Quiet mode is toggled ON")
	} else {
		ctx.System("Quiet mode is toggled OFF")
	}
	return nil
}

func handleTheme(ctx *Context, args string) error {
	name, _ := splitWord(args)
	switch name {
	case "":
		ctx.System(fmt.Sprintf("Theme: %s", ctx.User.Config.Theme.Name()))
		return nil
	case "list":
		return handleThemes(ctx, "")
	}

	theme, ok := chat.LookupTheme(name)
	if !ok {
		return fmt.Errorf("theme value must be one of: %s", strings.Join(chat.ThemeNames(), ", "))
	}
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.Config.Theme = theme
	}); err != nil {
		return err
	}
	ctx.System(fmt.Sprintf("Set theme: %s", theme.Name()))
	return nil
}

func handleThemes(ctx *Context, _ string) error {
	ctx.System(fmt.Sprintf("Supported themes: %s", strings.Join(chat.ThemeNames(), ", ")))
	return nil
}

func handleTimestamp(ctx *Context, args string) error {
	word, _ := splitWord(args)
	mode, ok := chat.ParseTimestampMode(word)
	if !ok {
		return fmt.Errorf("timestamp mode value must be one of: %s",
			strings.Join(chat.TimestampModeNames(), ", "))
	}
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.Config.TimestampMode = mode
	}); err != nil {
		return err
	}
	if mode == chat.TimestampOff {
		ctx.System("Timestamp is toggled OFF")
	} else {
		ctx.System("Timestamp is toggled ON, timezone is UTC")
	}
	return nil
}

func handleIgnore(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		names, err := ctx.Room.IgnoredNames(ctx.User.Fingerprint)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			ctx.System("0 users ignored")
		} else {
			ctx.System(fmt.Sprintf("%d users ignored: %s", len(names), strings.Join(names, ", ")))
		}
		return nil
	}

	if target == ctx.User.Name {
		return errors.New("you can't ignore yourself")
	}
	author, ok := ctx.Room.LookupByName(target)
	if !ok {
		return errors.New("user not found")
	}
	if ctx.User.Ignores(author.Fingerprint) {
		return errors.New("user already in the ignored list")
	}
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.Ignore(author.Fingerprint)
	}); err != nil {
		return err
	}
	ctx.System(fmt.Sprintf("Ignoring: %s", target))
	return nil
}

func handleUnignore(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		return errors.New("user name is expected")
	}
	author, ok := ctx.Room.LookupByName(target)
	if !ok {
		return errors.New("user not found")
	}
	if !ctx.User.Ignores(author.Fingerprint) {
		return errors.New("user not in the ignored list yet")
	}
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.Unignore(author.Fingerprint)
	}); err != nil {
		return err
	}
	ctx.System(fmt.Sprintf("No longer ignoring: %s", target))
	return nil
}

func handleFocus(ctx *Context, args string) error {
	target, _ := splitWord(args)
	switch target {
	case "":
		names, err := ctx.Room.FocusedNames(ctx.User.Fingerprint)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			ctx.System("Focusing no users")
		} else {
			ctx.System(fmt.Sprintf("Focusing on %d users: %s", len(names), strings.Join(names, ", ")))
		}
		return nil
	case "$":
		if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
			u.ClearFocus()
		}); err != nil {
			return err
		}
		ctx.System("Removed focus from all users")
		return nil
	}

	var focused []string
	for _, name := range strings.Split(target, ",") {
		name = strings.TrimSpace(name)
		author, ok := ctx.Room.LookupByName(name)
		if !ok || name == ctx.User.Name {
			continue
		}
		if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
			u.Focus(author.Fingerprint)
		}); err != nil {
			return err
		}
		focused = append(focused, name)
	}
	if len(focused) == 0 {
		ctx.System("No online users found to focus")
	} else {
		ctx.System(fmt.Sprintf("Focusing on %d users: %s", len(focused), strings.Join(focused, ", ")))
	}
	return nil
}

func handleWhois(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		return errors.New("user name is expected")
	}
	info, err := ctx.Room.Whois(target)
	if err != nil {
		return errors.New("user not found")
	}
	ctx.System(info)
	return nil
}

func handleAway(ctx *Context, args string) error {
	if args == "" {
		return errors.New("away reason is expected")
	}
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		u.GoAway(args)
	}); err != nil {
		return err
	}
	return ctx.Room.Announce(ctx.User.Fingerprint, fmt.Sprintf("has gone away: %q", args))
}

func handleBack(ctx *Context, _ string) error {
	wasAway := false
	if err := ctx.Room.Update(ctx.User.Fingerprint, func(u *chat.User) {
		wasAway = u.Back()
	}); err != nil {
		return err
	}
	if wasAway {
		return ctx.Room.Announce(ctx.User.Fingerprint, "is back")
	}
	return nil
}

func handleMotd(ctx *Context, args string) error {
	if args == "" {
		ctx.System(ctx.Room.Motd())
		return nil
	}
	if !ctx.IsOp() {
		return errors.New("must be an operator to modify the MOTD")
	}
	ctx.Room.SetMotd(args)
	return ctx.Room.Announce(ctx.User.Fingerprint, "set a new message of the day")
}

func handleSlap(ctx *Context, args string) error {
	target, _ := splitWord(args)
	if target == "" {
		return filterSendErr(ctx.Room.SendEmote(ctx.User.Fingerprint,
			"hits himself with a squishy banana."))
	}
	if _, ok := ctx.Room.LookupByName(target); !ok {
		return errors.New("that slippin' monkey not in the room")
	}
	return filterSendErr(ctx.Room.SendEmote(ctx.User.Fingerprint,
		fmt.Sprintf("hits %s with a squishy banana.", target)))
}

func handleShrug(ctx *Context, _ string) error {
	return filterSendErr(ctx.Room.SendEmote(ctx.User.Fingerprint, `¯\_(ツ)_/¯`))
}

func handleUptime(ctx *Context, _ string) error {
	ctx.System(ctx.Room.Uptime())
	return nil
}

func handleVersion(ctx *Context, _ string) error {
	ctx.System(Version)
	return nil
}

// filterSendErr swallows the engine errors it already reported to the
// sender itself (mute, rate limit); everything else bubbles up.
func filterSendErr(err error) error {
	if errors.Is(err, chat.ErrMuted) || errors.Is(err, chat.ErrRateLimited) {
		return nil
	}
	if errors.Is(err, chat.ErrUnknownUser) {
		return errors.New("user is not found")
	}
	return err
}
