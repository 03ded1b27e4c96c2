package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		line   string
		want   Entry
		wantOk bool
	}{
		{"web: bundle exec rails server # start web", Entry{"web", "bundle exec rails server"}, true},
		{"# just a comment", Entry{}, false},
		{"", Entry{}, false},
		{"   \t ", Entry{}, false},
		{"   # indented comment", Entry{}, false},
		{"worker:", Entry{"worker", ""}, true},
		{"  api  :  node server.js", Entry{"api", " node server.js"}, true},
		{"clock:ruby clock.rb", Entry{"clock", "ruby clock.rb"}, true},
		{"no separator here", Entry{"no separator here", ""}, true},
		{"url: curl http://a/b:8080", Entry{"url", "curl http://a/b:8080"}, true},
		{`tag: echo \#1 # note`, Entry{"tag", "echo #1"}, true},
		{"crlf: echo hi\r", Entry{"crlf", "echo hi"}, true},
	}

	for _, tt := range tests {
		got, ok := ParseLine(tt.line)
		if ok != tt.wantOk {
			t.Errorf("ParseLine(%q) ok = %v, want %v", tt.line, ok, tt.wantOk)
			continue
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("ParseLine(%q) mismatch (-want +got):\n%s", tt.line, diff)
		}
	}
}

func TestParseKeepsOrder(t *testing.T) {
	input := strings.Join([]string{
		"# Procfile",
		"web: rails s",
		"",
		"worker:",
		"assets: yarn watch",
		"tail: printf X",
	}, "\n")

	var got []Entry
	for entry, err := range Parse(strings.NewReader(input)) {
		require.NoError(t, err)
		got = append(got, entry)
	}

	want := []Entry{
		{"web", "rails s"},
		{"worker", ""},
		{"assets", "yarn watch"},
		{"tail", "printf X"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Parse mismatch (-want +got):\n%s", diff)
	}
}

func TestParseStopsEarly(t *testing.T) {
	input := "a: one\nb: two\nc: three\n"
	count := 0
	for range Parse(strings.NewReader(input)) {
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestRunnableFiltersInert(t *testing.T) {
	entries := []Entry{{"web", "rails s"}, {"worker", ""}, {"assets", "yarn"}}
	got := Runnable(entries)
	assert.Equal(t, []Entry{{"web", "rails s"}, {"assets", "yarn"}}, got)
	assert.Equal(t, []string{"web", "worker", "assets"}, Names(entries))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Procfile")
	require.NoError(t, os.WriteFile(path, []byte("alpha: printf X\nbeta: printf Y\n"), 0o644))

	entries, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{{"alpha", "printf X"}, {"beta", "printf Y"}}, entries)

	_, err = Load(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
