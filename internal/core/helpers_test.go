package core

import (
	"path/filepath"
	"regexp"
	"testing"
)

func TestRepoDirKey(t *testing.T) {
	tests := []struct {
		url    string
		prefix string
	}{
		{"https://github.com/anthropics/skills", "anthropics-skills-"},
		{"https://github.com/anthropics/skills.git", "anthropics-skills-"},
		{"git@github.com:obra/superpowers.git", "obra-superpowers-"},
		{"https://gitlab.com/group/sub/Tools", "sub-tools-"},
		{"file:///tmp/x/My Repo", "x-my-repo-"},
	}

	hash := regexp.MustCompile(`^[0-9a-f]{8}$`)
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got := RepoDirKey(tt.url)
			if len(got) != len(tt.prefix)+8 || got[:len(tt.prefix)] != tt.prefix {
				t.Fatalf("RepoDirKey(%q) = %q, want prefix %q plus 8 hex", tt.url, got, tt.prefix)
			}
			if !hash.MatchString(got[len(tt.prefix):]) {
				t.Errorf("RepoDirKey(%q) suffix = %q", tt.url, got[len(tt.prefix):])
			}
		})
	}

	if RepoDirKey("https://github.com/a/skills") == RepoDirKey("https://gitlab.com/a/skills") {
		t.Error("distinct URLs must not share a working copy")
	}
	if RepoDirKey("https://github.com/a/b") != RepoDirKey("https://github.com/a/b") {
		t.Error("RepoDirKey must be stable")
	}
}

func TestWithin(t *testing.T) {
	root := filepath.Join("/data", "repos", "x")
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join(root, "skills", "a"), true},
		{filepath.Join(root, "a"), true},
		{root, false},
		{root + "/", false},
		{filepath.Join(root, ".."), false},
		{filepath.Join("/data", "repos", "xy"), false},
		{filepath.Join(root, "..", "x", "a"), true},
	}
	for _, tt := range tests {
		if got := within(root, tt.path); got != tt.want {
			t.Errorf("within(%q, %q) = %v, want %v", root, tt.path, got, tt.want)
		}
	}
}
