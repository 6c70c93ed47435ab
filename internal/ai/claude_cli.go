package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// cleanEnv returns os.Environ() with Claude Code session vars removed
// so the subprocess doesn't get blocked by the nested-session check.
func cleanEnv() []string {
	blocked := map[string]bool{
		"CLAUDECODE":                           true,
		"CLAUDE_CODE_ENTRYPOINT":               true,
		"CLAUDE_CODE_EXPERIMENTAL_AGENT_TEAMS": true,
	}
	var env []string
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if !blocked[key] {
			env = append(env, e)
		}
	}
	return env
}

type ClaudeCLI struct {
	Model      string
	Binary     string        // defaults to "claude" on PATH
	Timeout    time.Duration // zero means no limit beyond ctx
	logger     *slog.Logger
	OnThinking func(text string) // optional: called with streaming text chunks
}

func NewClaudeCLI(model string, logger *slog.Logger) *ClaudeCLI {
	if model == "" {
		model = "sonnet"
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ClaudeCLI{Model: model, Binary: "claude", logger: logger}
}

func (c *ClaudeCLI) Narrate(ctx context.Context, d Digest) (*Narrative, error) {
	userPrompt, err := buildUserPrompt(d)
	if err != nil {
		return nil, err
	}

	args := []string{
		"-p", userPrompt,
		"--output-format", "json",
		"--model", c.Model,
		"--system-prompt", systemPrompt,
		"--json-schema", narrativeSchemaJSON,
		"--no-session-persistence",
		"--effort", "low",
	}

	c.logger.Debug("invoking claude CLI",
		"model", c.Model,
		"days", len(d.Days),
		"user_prompt_len", len(userPrompt),
		"schema_len", len(narrativeSchemaJSON),
	)

	ctx, cancel := withTimeout(ctx, c.Timeout)
	defer cancel()

	result, err := c.runCLI(ctx, args)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("narrative result to parse",
		"result_len", len(result),
		"result", truncateStr(result, 2000),
	)

	n, err := parseNarrative(result)
	if err != nil {
		c.logger.Error("failed to parse narrative", "error", err)
		return nil, err
	}

	c.logger.Debug("parsed narrative", "headline", n.Headline, "highlights", len(n.Highlights))
	return n, nil
}

// runCLI executes the claude CLI, using streaming if OnThinking is set.
func (c *ClaudeCLI) runCLI(ctx context.Context, args []string) (string, error) {
	if c.OnThinking != nil {
		return c.runStreamingCLI(ctx, args)
	}
	return c.runBufferedCLI(ctx, args)
}

// runBufferedCLI runs the CLI and captures all output at once.
func (c *ClaudeCLI) runBufferedCLI(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary(), args...)
	cmd.Env = cleanEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	startTime := time.Now()
	err := cmd.Run()
	elapsed := time.Since(startTime)

	c.logger.Debug("claude CLI finished",
		"elapsed", elapsed,
		"stdout_bytes", stdout.Len(),
		"stderr_bytes", stderr.Len(),
		"error", err,
	)

	if err != nil {
		c.logger.Error("claude CLI failed",
			"error", err,
			"elapsed", elapsed,
			"stderr", stderr.String(),
		)
		if ctx.Err() != nil {
			return "", fmt.Errorf("claude CLI timed out after %s", elapsed.Truncate(time.Second))
		}
		return "", fmt.Errorf("running claude CLI: %w (stderr: %s)", err, stderr.String())
	}

	c.logger.Debug("claude CLI raw response",
		"stdout", truncateStr(stdout.String(), 2000),
		"stdout_len", stdout.Len(),
	)

	var env envelope
	if err := json.Unmarshal(stdout.Bytes(), &env); err != nil {
		c.logger.Debug("envelope parse failed, treating as raw output", "error", err)
		return stdout.String(), nil
	}
	if payload, ok := env.payload(); ok {
		c.logger.Debug("unwrapped envelope",
			"type", env.Type,
			"subtype", env.Subtype,
			"structured", len(env.StructuredOutput) > 0,
			"len", len(payload),
		)
		return payload, nil
	}
	return stdout.String(), nil
}

// envelope is both the --output-format json document and the final "result"
// event of stream-json.
type envelope struct {
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype,omitempty"`
	Result           json.RawMessage `json:"result,omitempty"`
	StructuredOutput json.RawMessage `json:"structured_output,omitempty"`
}

// payload returns the narrative JSON carried by e: structured_output from
// --json-schema first, then result as an escaped string (`"{\"headline\":...}"`)
// or an inline object.
func (e envelope) payload() (string, bool) {
	if len(e.StructuredOutput) > 0 && e.StructuredOutput[0] == '{' {
		return string(e.StructuredOutput), true
	}
	if len(e.Result) == 0 {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Result, &s); err == nil {
		return s, s != ""
	}
	if e.Result[0] == '{' || e.Result[0] == '[' {
		return string(e.Result), true
	}
	return "", false
}

// streamEvent is one line of stream-json output.
type streamEvent struct {
	envelope
	Delta struct {
		Text string `json:"text,omitempty"`
	} `json:"delta"`
	Message struct {
		Content []struct {
			Type string `json:"type,omitempty"`
			Text string `json:"text,omitempty"`
		} `json:"content,omitempty"`
	} `json:"message"`
}

// streamArgs swaps --output-format json for stream-json, which also needs --verbose.
func streamArgs(args []string) []string {
	out := make([]string, 0, len(args)+1)
	for i, a := range args {
		if a == "json" && i > 0 && args[i-1] == "--output-format" {
			a = "stream-json"
		}
		out = append(out, a)
	}
	return append(out, "--verbose")
}

// runStreamingCLI runs the CLI with stream-json output, calling OnThinking for text chunks.
func (c *ClaudeCLI) runStreamingCLI(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, c.binary(), streamArgs(args)...)
	cmd.Env = cleanEnv()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("creating stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	startTime := time.Now()
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting claude CLI: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var result string
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event streamEvent
		if err := json.Unmarshal(line, &event); err != nil {
			c.logger.Debug("skipping unparseable stream line", "error", err, "line", truncateStr(string(line), 200))
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" {
				c.OnThinking(event.Delta.Text)
			}
		case "assistant":
			for _, block := range event.Message.Content {
				if block.Type == "text" && block.Text != "" {
					c.OnThinking(block.Text)
				}
			}
		case "result":
			if payload, ok := event.payload(); ok {
				result = payload
				c.logger.Debug("stream result event", "result_len", len(result), "result_preview", truncateStr(result, 500))
			}
		}
	}

	elapsed := time.Since(startTime)
	if err := cmd.Wait(); err != nil {
		c.logger.Error("claude CLI failed (streaming)", "error", err, "elapsed", elapsed, "stderr", stderr.String())
		if ctx.Err() != nil {
			return "", fmt.Errorf("claude CLI timed out after %s", elapsed.Truncate(time.Second))
		}
		return "", fmt.Errorf("running claude CLI: %w (stderr: %s)", err, stderr.String())
	}
	c.logger.Debug("claude CLI streaming finished", "elapsed", elapsed, "result_len", len(result))

	if result == "" {
		return "", fmt.Errorf("no result received from claude CLI stream")
	}

	// Older CLI versions nest a second envelope inside result.
	var nested envelope
	if err := json.Unmarshal([]byte(result), &nested); err == nil && len(nested.Result) > 0 {
		if payload, ok := nested.payload(); ok {
			return payload, nil
		}
	}
	return result, nil
}

func (c *ClaudeCLI) binary() string {
	if c.Binary == "" {
		return "claude"
	}
	return c.Binary
}
