package piston

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/nimnim111/LeetDuel-Online/internal/sandbox"
)

// Client runs code on a Piston execution service (https://github.com/engineer-man/piston).
type Client struct {
	BaseURL  string
	Language string
	Version  string
	http     *http.Client
}

func New(baseURL, language, version string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:2000"
	}
	if language == "" {
		language = "python"
	}
	if version == "" {
		version = "*"
	}
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Language: language,
		Version:  version,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

type file struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

type executeRequest struct {
	Language   string `json:"language"`
	Version    string `json:"version"`
	Files      []file `json:"files"`
	Stdin      string `json:"stdin"`
	RunTimeout int64  `json:"run_timeout"`
}

type stage struct {
	Stdout string  `json:"stdout"`
	Stderr string  `json:"stderr"`
	Code   *int    `json:"code"`
	Signal *string `json:"signal"`
}

func (c *Client) Execute(ctx context.Context, source string, stdin string, timeout time.Duration) (sandbox.Output, error) {
	payload := executeRequest{
		Language:   c.Language,
		Version:    c.Version,
		Files:      []file{{Name: "main.py", Content: source}},
		Stdin:      stdin,
		RunTimeout: timeout.Milliseconds(),
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return sandbox.Output{}, err
	}
	// allow some transport slack on top of the run limit
	ctx, cancel := context.WithTimeout(ctx, timeout+5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/api/v2/execute", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return sandbox.Output{}, sandbox.ErrTimeout
		}
		return sandbox.Output{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return sandbox.Output{}, fmt.Errorf("piston status %d", resp.StatusCode)
	}
	var out struct {
		Compile *stage `json:"compile"`
		Run     stage  `json:"run"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sandbox.Output{}, err
	}
	if out.Compile != nil && out.Compile.Code != nil && *out.Compile.Code != 0 {
		return sandbox.Output{Stderr: out.Compile.Stderr}, nil
	}
	if out.Run.Signal != nil && *out.Run.Signal == "SIGKILL" {
		return sandbox.Output{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr}, sandbox.ErrTimeout
	}
	exitOK := out.Run.Code != nil && *out.Run.Code == 0
	return sandbox.Output{Stdout: out.Run.Stdout, Stderr: out.Run.Stderr, ExitOK: exitOK}, nil
}
