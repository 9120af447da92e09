package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	// Each external call is bounded; the CLI occasionally hangs on OAuth
	// refresh, so the timeout is generous but hard.
	callTimeout   = 60 * time.Second
	maxOutputSize = 10 << 20 // 10MB
)

// CLIClient implements Searcher by shelling out to a Gmail search CLI.
// The tool prints human-readable progress around a JSON payload, so the
// payload is located inside the output rather than decoded directly.
type CLIClient struct {
	bin string
}

var _ Searcher = (*CLIClient)(nil)

// NewCLIClient builds a client around the given binary path
func NewCLIClient(bin string) *CLIClient {
	return &CLIClient{bin: bin}
}

type searchOutput struct {
	Messages []Message `json:"messages"`
}

type threadOutput struct {
	Threads []struct {
		ID       string    `json:"id"`
		Messages []Message `json:"messages"`
	} `json:"threads"`
}

// Search runs one search call and returns preview messages
func (c *CLIClient) Search(ctx context.Context, query string, maxResults int) ([]Message, error) {
	out, err := c.run(ctx, "search", "--query", query, "--max", strconv.Itoa(maxResults), "--json")
	if err != nil {
		return nil, err
	}

	payload, err := extractJSON(out)
	if err != nil {
		return nil, fmt.Errorf("failed to locate search payload: %w", err)
	}

	var result searchOutput
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search payload: %w", err)
	}

	return result.Messages, nil
}

// FetchBodies retrieves full messages for the given threads, keyed by thread ID
func (c *CLIClient) FetchBodies(ctx context.Context, threadIDs []string, includeFull bool) (map[string][]Message, error) {
	args := []string{"threads", "--ids", strings.Join(threadIDs, ","), "--json"}
	if includeFull {
		args = append(args, "--full")
	}

	out, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}

	payload, err := extractJSON(out)
	if err != nil {
		return nil, fmt.Errorf("failed to locate thread payload: %w", err)
	}

	var result threadOutput
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("failed to decode thread payload: %w", err)
	}

	byThread := make(map[string][]Message, len(result.Threads))
	for _, thread := range result.Threads {
		byThread[thread.ID] = thread.Messages
	}

	return byThread, nil
}

func (c *CLIClient) run(ctx context.Context, args ...string) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, c.bin, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", c.bin, err)
	}

	out, readErr := io.ReadAll(io.LimitReader(stdout, maxOutputSize+1))

	waitErr := cmd.Wait()
	if readErr != nil {
		return nil, fmt.Errorf("failed to read %s output: %w", c.bin, readErr)
	}
	if len(out) > maxOutputSize {
		return nil, fmt.Errorf("%s output exceeded %d bytes", c.bin, maxOutputSize)
	}
	if waitErr != nil {
		slog.Debug("Mail CLI stderr", "bin", c.bin, "stderr", stderr.String())
		return nil, fmt.Errorf("%s %s failed: %w", c.bin, args[0], waitErr)
	}

	return out, nil
}

// extractJSON locates the JSON payload inside loosely-structured CLI output.
// The payload is the span from the first opening brace or bracket to its
// matching close, tracked outside of string literals.
func extractJSON(data []byte) ([]byte, error) {
	start := bytes.IndexAny(data, "{[")
	if start == -1 {
		return nil, fmt.Errorf("no JSON payload found in output")
	}

	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(data); i++ {
		ch := data[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return data[start : i+1], nil
			}
		}
	}

	return nil, fmt.Errorf("unterminated JSON payload in output")
}
