package view

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"loan-console/internal/common/errors"
)

// Banner holds at most one dismissible message per view.
type Banner struct {
	mu       sync.Mutex
	message  string
	severity errors.Severity
	fields   map[string]string
}

// Show replaces the banner with err; a nil err clears it.
func (b *Banner) Show(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		b.message, b.severity, b.fields = "", "", nil
		return
	}
	std := errors.Normalize(err)
	b.message = std.Message
	b.severity = errors.SeverityOf(err)
	b.fields = std.Fields
}

func (b *Banner) Dismiss() {
	b.Show(nil)
}

func (b *Banner) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message != ""
}

func (b *Banner) Message() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message
}

func (b *Banner) Severity() errors.Severity {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.severity
}

// String renders the banner for a terminal: "[error] message" followed by one
// indented line per field.
func (b *Banner) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.message == "" {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", b.severity, b.message)
	keys := make([]string, 0, len(b.fields))
	for k := range b.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "\n  %s: %s", k, b.fields[k])
	}
	return sb.String()
}
