// Package bird wraps the bird CLI, the local tool this module uses to
// search X. Everything runs through a Runner interface so tests never
// touch a real binary.
package bird

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DefaultBinary is the bird executable name resolved on PATH.
const DefaultBinary = "bird"

const whoamiTimeout = 10 * time.Second

// Runner executes local commands.
type Runner interface {
	LookPath(name string) (string, error)
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

// NewRunner returns the os/exec backed Runner used in production.
func NewRunner() Runner {
	return execRunner{}
}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("running %s: %w: %s", name, err, msg)
		}
		return nil, fmt.Errorf("running %s: %w", name, err)
	}
	return stdout.Bytes(), nil
}

// Author is the posting account on a tweet.
type Author struct {
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

// Tweet is one search result decoded from the CLI's JSON output.
type Tweet struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Author    Author `json:"author"`
	CreatedAt string `json:"created_at"`
	Likes     int    `json:"like_count"`
	Retweets  int    `json:"retweet_count"`
	Replies   int    `json:"reply_count"`
}

// URL reconstructs the tweet's canonical address.
func (t Tweet) URL() string {
	if t.Author.Username == "" || t.ID == "" {
		return ""
	}
	return fmt.Sprintf("https://x.com/%s/status/%s", t.Author.Username, t.ID)
}

// Client searches X through the bird CLI.
type Client interface {
	Search(ctx context.Context, query string, limit int) ([]Tweet, error)
}

type cliClient struct {
	runner Runner
	binary string
}

// NewClient returns a Client that shells out to the given bird binary.
func NewClient(runner Runner, binary string) Client {
	if binary == "" {
		binary = DefaultBinary
	}
	return &cliClient{runner: runner, binary: binary}
}

// Search runs one bird search and decodes its JSON output.
func (c *cliClient) Search(ctx context.Context, query string, limit int) ([]Tweet, error) {
	args := []string{"search", query, "--json"}
	if limit > 0 {
		args = append(args, "-n", strconv.Itoa(limit))
	}

	out, err := c.runner.Output(ctx, c.binary, args...)
	if err != nil {
		return nil, fmt.Errorf("searching x: %w", err)
	}

	var tweets []Tweet
	if err := json.Unmarshal(bytes.TrimSpace(out), &tweets); err != nil {
		return nil, fmt.Errorf("decoding bird search output: %w", err)
	}
	return tweets, nil
}

// Status reports what the local bird install can do.
type Status struct {
	Installed     bool
	Authenticated bool
	Username      string
}

// CheckStatus probes the local bird CLI: binary on PATH, then whoami for
// login state. Absence is a status, never an error.
func CheckStatus(ctx context.Context, runner Runner, binary string) Status {
	if binary == "" {
		binary = DefaultBinary
	}
	if _, err := runner.LookPath(binary); err != nil {
		return Status{}
	}

	status := Status{Installed: true}

	ctx, cancel := context.WithTimeout(ctx, whoamiTimeout)
	defer cancel()

	out, err := runner.Output(ctx, binary, "whoami")
	if err != nil {
		return status
	}

	username := strings.TrimSpace(string(out))
	if i := strings.IndexByte(username, '\n'); i >= 0 {
		username = strings.TrimSpace(username[:i])
	}
	username = strings.TrimPrefix(username, "@")
	if username == "" {
		return status
	}

	status.Authenticated = true
	status.Username = username
	return status
}
