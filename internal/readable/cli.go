package readable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CLIExtractor shells out to an external clean-extractor command that
// prints a mercury-style JSON document on stdout. The URL is appended
// as the last argument.
type CLIExtractor struct {
	command []string
	timeout time.Duration
}

// NewCLIExtractor parses the configured command line. Returns nil for
// an empty command, which callers treat as "use the built-in extractor".
func NewCLIExtractor(command string, timeout time.Duration) *CLIExtractor {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CLIExtractor{command: fields, timeout: timeout}
}

func (e *CLIExtractor) Extract(ctx context.Context, url string) (*Document, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	args := append(append([]string{}, e.command[1:]...), url)
	cmd := exec.CommandContext(ctx, e.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("clean extractor: %w: %s", err, msg)
		}
		return nil, fmt.Errorf("clean extractor: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		return nil, fmt.Errorf("clean extractor output: %w", err)
	}
	if doc.Empty() {
		return nil, fmt.Errorf("clean extractor returned no content for %s", url)
	}
	return &doc, nil
}
