package system

import (
	"context"
	"os/exec"
	"path/filepath"
)

// Detect runs the detection probe. The first stage that matches wins:
//
//  1. the config path exists
//  2. an agent executable resolves on PATH (or the custom probe passes)
//  3. an alternate marker path exists; agents without markers fall back to
//     the config file's parent directory
//
// Detection has no side effects. ctx bounds stages that spawn processes.
func (b *BaseSystem) Detect(ctx context.Context) bool {
	if pathExists(b.ConfigPath()) {
		return true
	}

	if b.probe != nil {
		if b.probe(ctx) {
			return true
		}
	} else {
		names := b.executables
		if len(names) == 0 {
			names = []string{b.id}
		}
		for _, name := range names {
			if _, ok := lookPath(ctx, name); ok {
				return true
			}
		}
	}

	if len(b.markers) == 0 {
		return dirExists(filepath.Dir(b.ConfigPath()))
	}
	for _, m := range b.Markers() {
		if pathExists(m) {
			return true
		}
	}
	return false
}

// lookPath resolves name on PATH, giving up when ctx is done.
func lookPath(ctx context.Context, name string) (string, bool) {
	type result struct {
		path string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		p, err := exec.LookPath(name)
		done <- result{p, err}
	}()

	select {
	case r := <-done:
		return r.path, r.err == nil
	case <-ctx.Done():
		return "", false
	}
}

// commandSucceeds runs name with args and reports a zero exit status. The
// process is killed when ctx expires.
func commandSucceeds(ctx context.Context, name string, args ...string) bool {
	if _, ok := lookPath(ctx, name); !ok {
		return false
	}
	cmd := exec.CommandContext(ctx, name, args...)
	return cmd.Run() == nil
}
