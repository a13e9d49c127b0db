package system

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/barysiuk/skillrow/internal/logger"
)

// ReconcileResult lists the entry names a reconciliation touched.
type ReconcileResult struct {
	Created  []string
	Removed  []string
	Repaired []string // links that pointed at the wrong target
}

// Ops returns the number of filesystem mutations performed.
func (r ReconcileResult) Ops() int {
	return len(r.Created) + len(r.Removed) + len(r.Repaired)
}

// Reconcile makes dir an exact mirror of items: one symlink per item, named
// by nameFn and pointing at sourceFn. Missing links are created, links with
// the wrong target are replaced and every other entry is deleted. Hidden
// entries are left alone. Running it again with the same input performs no
// filesystem operations.
//
// Failures on individual entries do not stop the pass; they are collected
// into the returned error.
func Reconcile[T any](dir string, items []T, nameFn func(T) string, sourceFn func(T) string) (ReconcileResult, error) {
	var res ReconcileResult

	desired := make(map[string]string, len(items))
	for _, it := range items {
		desired[nameFn(it)] = sourceFn(it)
	}

	entries, err := os.ReadDir(dir)
	if err != nil && !os.IsNotExist(err) {
		return res, fmt.Errorf("listing %s: %w", dir, err)
	}
	if os.IsNotExist(err) && len(desired) > 0 {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return res, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	var errs *multierror.Error
	actual := make(map[string]bool, len(entries))

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		actual[name] = true
		path := filepath.Join(dir, name)

		target, want := desired[name]
		if !want {
			if err := os.RemoveAll(path); err != nil {
				errs = multierror.Append(errs, fmt.Errorf("removing %s: %w", path, err))
				continue
			}
			res.Removed = append(res.Removed, name)
			continue
		}

		if e.Type()&os.ModeSymlink != 0 {
			if cur, err := os.Readlink(path); err == nil && cur == target {
				continue
			}
		}
		if err := os.RemoveAll(path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("removing %s: %w", path, err))
			continue
		}
		if err := os.Symlink(target, path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("linking %s: %w", path, err))
			continue
		}
		res.Repaired = append(res.Repaired, name)
	}

	names := make([]string, 0, len(desired))
	for name := range desired {
		if !actual[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		if err := os.Symlink(desired[name], path); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("linking %s: %w", path, err))
			continue
		}
		res.Created = append(res.Created, name)
	}

	return res, errs.ErrorOrNil()
}

// DirectorySystem projects enabled skills as a symlink farm.
type DirectorySystem struct {
	BaseSystem
	skillsDir string // with ~ or $VAR
}

func (d *DirectorySystem) Strategy() Strategy { return StrategyDirectory }

// Target returns the expanded symlink directory.
func (d *DirectorySystem) Target() string { return ExpandPath(d.skillsDir) }

// Project implements System.
func (d *DirectorySystem) Project(ctx context.Context, skills []Skill, _ ProjectOptions) error {
	res, err := Reconcile(d.Target(), skills,
		func(s Skill) string { return s.LinkName() },
		func(s Skill) string { return s.Path },
	)
	if res.Ops() > 0 {
		logger.G(ctx).WithField("agent", d.id).
			WithField("created", len(res.Created)).
			WithField("removed", len(res.Removed)).
			WithField("repaired", len(res.Repaired)).
			Debug("reconciled skills directory")
	}
	if err != nil {
		return fmt.Errorf("projecting %s: %w", d.displayName, err)
	}
	return nil
}

// EnsureConfig creates the skills directory.
func (d *DirectorySystem) EnsureConfig() (string, error) {
	dir := d.Target()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating %s: %w", dir, err)
	}
	return dir, nil
}
