// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unrenamed/chatd/internal/auth"
)

// debounceWindow coalesces the burst of fsnotify events most editors
// emit for a single save.
const debounceWindow = 250 * time.Millisecond

// Watcher hot-reloads the oplist, whitelist, and MOTD files when they
// change on disk. Key lists reload with merge semantics — revocation
// stays an explicit operator action (/oplist load replace) — and the
// MOTD is replaced outright.
type Watcher struct {
	srv *Server
	fsw *fsnotify.Watcher
}

// NewWatcher registers the server's configured files for watching.
func NewWatcher(srv *Server) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, path := range []string{srv.cfg.OplistPath, srv.cfg.WhitelistPath, srv.cfg.MotdPath} {
		if path == "" {
			continue
		}
		if err := fsw.Add(path); err != nil {
			log.Printf("WATCH_ERROR | path=%s error=%v", path, err)
		}
	}
	return &Watcher{srv: srv, fsw: fsw}, nil
}

// Start runs the watch loop until ctx is canceled.
func (w *Watcher) Start(ctx context.Context) {
	go w.loop(ctx.Done())
}

func (w *Watcher) loop(done <-chan struct{}) {
	defer w.fsw.Close()

	pending := make(map[string]bool)
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-done:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			pending[event.Name] = true
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Reset(debounceWindow)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("WATCH_ERROR | error=%v", err)
		case <-fire:
			fire = nil
			for path := range pending {
				w.reload(path)
			}
			pending = make(map[string]bool)
		}
	}
}

func (w *Watcher) reload(path string) {
	switch path {
	case w.srv.cfg.OplistPath:
		if err := w.srv.auth.LoadOperators(auth.LoadMerge); err != nil {
			log.Printf("RELOAD_ERROR | file=oplist error=%v", err)
			return
		}
		log.Printf("RELOAD | file=oplist keys=%d", w.srv.auth.OperatorCount())
	case w.srv.cfg.WhitelistPath:
		if err := w.srv.auth.LoadTrusted(auth.LoadMerge); err != nil {
			log.Printf("RELOAD_ERROR | file=whitelist error=%v", err)
			return
		}
		log.Printf("RELOAD | file=whitelist keys=%d", w.srv.auth.TrustedCount())
	case w.srv.cfg.MotdPath:
		motd, err := os.ReadFile(path)
		if err != nil {
			log.Printf("RELOAD_ERROR | file=motd error=%v", err)
			return
		}
		w.srv.room.SetMotd(string(motd))
		log.Printf("RELOAD | file=motd bytes=%d", len(motd))
	}
}
