package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/aluiziolira/go-books-catalog/crawler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunWithoutCommandPrintsUsage(t *testing.T) {
	_, stderr, err := runArgs(t)
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Usage: bookcrawl")
}

func TestRunUnknownCommand(t *testing.T) {
	_, stderr, err := runArgs(t, "scrape")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, `unknown command "scrape"`)
}

func TestRunHelp(t *testing.T) {
	stdout, _, err := runArgs(t, "help")
	require.NoError(t, err)
	assert.Contains(t, stdout, "categories")
}

func TestRunBooksRejectsInvalidTargets(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"page and category", []string{"books", "-page", "2", "-category", "poetry_23"}},
		{"zero page", []string{"books", "-page", "0"}},
		{"blank category", []string{"books", "-category", " "}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runArgs(t, tt.args...)
			assert.ErrorIs(t, err, crawler.ErrInvalidTarget)
		})
	}
}

func TestRunBooksRejectsStrayArguments(t *testing.T) {
	_, stderr, err := runArgs(t, "books", "-page", "1", "extra")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "unexpected arguments: extra")
}

func TestRunCommandHelpFlag(t *testing.T) {
	_, stderr, err := runArgs(t, "export", "-h")
	require.True(t, errors.Is(err, flag.ErrHelp))
	assert.Contains(t, stderr, "-format")
}

func TestRunExportRejectsUnknownFormat(t *testing.T) {
	_, _, err := runArgs(t, "export", "-format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "export format")
}

func TestRunMigrateRequiresDirection(t *testing.T) {
	_, stderr, err := runArgs(t, "migrate")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "up or down")

	_, stderr, err = runArgs(t, "migrate", "sideways")
	require.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "sideways")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, "Book crawl complete",
		summaryRow{"Books added", "20"},
		summaryRow{"Page", "3"},
	)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Book crawl complete", lines[1])
	assert.Equal(t, "  Books added:   20", lines[2])
	assert.Equal(t, "  Page:          3", lines[3])
}
