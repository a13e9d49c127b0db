package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var sanitizeRegexp = regexp.MustCompile(`[^a-z0-9-]`)

// runCommand runs name with args, bounded by timeout, and returns the
// combined output. When the timeout fires the process is killed and the
// error wraps ErrTimedOut.
func runCommand(ctx context.Context, timeout time.Duration, env []string, name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	cmd.WaitDelay = 2 * time.Second

	output, err := cmd.CombinedOutput()
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return string(output), fmt.Errorf("%s timed out after %s: %w", name, timeout, ErrTimedOut)
	}
	return string(output), err
}

// copyDirectory copies src into dst recursively. Hidden entries (names
// starting with ".") are skipped.
func copyDirectory(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if rel != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		dstPath := filepath.Join(dst, rel)

		if d.IsDir() {
			return os.MkdirAll(dstPath, 0o755)
		}
		if !d.Type().IsRegular() {
			// Symlinks and special files inside a skill are not carried over.
			return nil
		}

		return copyFile(path, dstPath)
	})
}

// copyFile copies a single file from src to dst.
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = srcFile.Close() }()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer func() { _ = dstFile.Close() }()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// cleanupEmptyDir removes a directory if it is empty.
func cleanupEmptyDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	if len(entries) == 0 {
		_ = os.Remove(dir)
	}
}

// dirExists returns true if the path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// pathExists returns true if anything (including a dangling symlink) is at path.
func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// within reports whether path is strictly inside root.
func within(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RepoDirKey derives the working-copy directory name for a repository URL:
// a readable owner-repo part plus a short hash so distinct URLs never share
// a clone.
func RepoDirKey(repoURL string) string {
	normalized := strings.ToLower(strings.TrimSuffix(strings.TrimSuffix(repoURL, "/"), ".git"))

	// "git@github.com:org/repo" and "https://github.com/org/repo" -> "org/repo"
	readable := normalized
	if idx := strings.LastIndex(readable, ":"); idx >= 0 && !strings.Contains(readable, "://") {
		readable = readable[idx+1:]
	}
	if idx := strings.LastIndex(readable, "://"); idx >= 0 {
		readable = readable[idx+3:]
		if slashIdx := strings.Index(readable, "/"); slashIdx >= 0 {
			readable = readable[slashIdx+1:]
		}
	}
	parts := strings.Split(filepath.ToSlash(readable), "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	readable = strings.Trim(sanitizeRegexp.ReplaceAllString(strings.Join(parts, "-"), "-"), "-")

	h := sha256.Sum256([]byte(repoURL))
	shortHash := hex.EncodeToString(h[:4])

	if readable == "" {
		return shortHash
	}
	return readable + "-" + shortHash
}
