// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/aplane-algo/apcold/internal/assembler"
	"github.com/aplane-algo/apcold/internal/cliutil"
	"github.com/aplane-algo/apcold/internal/envelope"
)

const watchDebounce = 500 * time.Millisecond

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:  "watch",
		Usage: "Broadcast once signature files for the unsigned message land in a directory",
		Description: `Watches an inbox directory (for example a mounted transfer medium) for
*.sig.json and signature.json files. Each arrival is attached to the unsigned
message; when every required signature is present the transaction is
broadcast and the command exits.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "dir",
				Usage:    "Inbox directory to watch",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "unsigned",
				Aliases: []string{"u"},
				Usage:   "Unsigned message file (defaults to unsigned_file in config)",
			},
		},
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	rt := cliutil.FromContext(c)
	dir := rt.Path(c.String("dir"), "")

	raw, err := envelope.ReadUnsignedFile(rt.Path(c.String("unsigned"), rt.Config.UnsignedFile))
	if err != nil {
		return err
	}
	base, err := assembler.New(raw)
	if err != nil {
		return err
	}

	o, err := connect(c)
	if err != nil {
		return err
	}
	defer o.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := c.App.Writer
	_, _ = fmt.Fprintf(w, "✓ Watching %s for %d signature(s)\n", dir, len(base.Signers()))

	ready := make(chan struct{}, 1)
	notify := func() {
		select {
		case ready <- struct{}{}:
		default:
		}
	}
	notify() // files already present

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	reported := -1
	warned := problemLog{}
	for {
		select {
		case <-ctx.Done():
			_, _ = fmt.Fprintln(w, "Stopped before all signatures arrived")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isSignatureFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(watchDebounce, notify)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			rt.Logger.Warn("file watcher error", zap.Error(err))

		case <-ready:
			tx, problems := collectSignatures(dir, base)
			for _, p := range warned.fresh(problems) {
				cliutil.Warnf(c, "%v", p.Err)
			}
			missing := tx.Missing()
			if len(missing) != reported {
				reported = len(missing)
				_, _ = fmt.Fprintf(w, "Signatures: %d of %d present\n", len(tx.Signers())-len(missing), len(tx.Signers()))
			}
			if len(missing) == 0 {
				return o.broadcast(c, tx, false)
			}
		}
	}
}

// isSignatureFile reports whether name looks like a detached signature envelope.
func isSignatureFile(name string) bool {
	base := filepath.Base(name)
	return base == envelope.SignatureFileName || strings.HasSuffix(base, ".sig.json")
}

// signatureProblem is a signature file that could not be attached.
type signatureProblem struct {
	File string
	Err  error
}

// collectSignatures attaches every readable signature file in dir to base.
// Files that fail to decode or do not belong to the message are reported and
// skipped.
func collectSignatures(dir string, base *assembler.Transaction) (*assembler.Transaction, []signatureProblem) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return base, []signatureProblem{{File: dir, Err: err}}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && isSignatureFile(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	tx := base
	var problems []signatureProblem
	for _, name := range names {
		d, err := envelope.ReadSignatureFile(filepath.Join(dir, name))
		if err != nil {
			problems = append(problems, signatureProblem{File: name, Err: err})
			continue
		}
		next, err := tx.Attach(d.PublicKey, d.Signature)
		if err != nil {
			problems = append(problems, signatureProblem{File: name, Err: fmt.Errorf("%s: %w", name, err)})
			continue
		}
		tx = next
	}
	return tx, problems
}

// problemLog remembers the last error reported per file so each rescan of
// the inbox only warns about what changed.
type problemLog map[string]string

// fresh records problems and returns those not already reported with the
// same error. Files that no longer fail are forgotten, so a later failure is
// reported again.
func (l problemLog) fresh(problems []signatureProblem) []signatureProblem {
	current := make(map[string]bool, len(problems))
	var out []signatureProblem
	for _, p := range problems {
		current[p.File] = true
		msg := p.Err.Error()
		if l[p.File] == msg {
			continue
		}
		l[p.File] = msg
		out = append(out, p)
	}
	for file := range l {
		if !current[file] {
			delete(l, file)
		}
	}
	return out
}
