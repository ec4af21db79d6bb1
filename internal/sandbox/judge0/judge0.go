package judge0

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

// Judge0 status ids, see https://ce.judge0.com/statuses
const (
	statusAccepted          = 3
	statusTimeLimitExceeded = 5
)

// PythonLanguageID is Python 3.12 on Judge0 CE.
const PythonLanguageID = 100

type Client struct {
	Host       string
	APIKey     string
	LanguageID int
	http       *http.Client
}

func New(host, apiKey string, languageID int) *Client {
	if host == "" {
		host = "https://judge0-ce.p.rapidapi.com"
	}
	if languageID == 0 {
		languageID = PythonLanguageID
	}
	return &Client{Host: strings.TrimRight(host, "/"), APIKey: apiKey, LanguageID: languageID, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) Execute(ctx context.Context, source string, stdin string, timeout time.Duration) (sandbox.Output, error) {
	payload := map[string]any{
		"source_code":     source,
		"language_id":     c.LanguageID,
		"stdin":           stdin,
		"wall_time_limit": timeout.Seconds(),
		"cpu_time_limit":  timeout.Seconds() / 2,
	}
	b, _ := json.Marshal(payload)
	ctx, cancel := context.WithTimeout(ctx, timeout+10*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "POST", c.Host+"/submissions?base64_encoded=false&wait=true", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.APIKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return sandbox.Output{}, sandbox.ErrTimeout
		}
		return sandbox.Output{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return sandbox.Output{}, fmt.Errorf("judge0 status %d", resp.StatusCode)
	}
	var out struct {
		Stdout        *string `json:"stdout"`
		Stderr        *string `json:"stderr"`
		CompileOutput *string `json:"compile_output"`
		Status        struct {
			ID          int    `json:"id"`
			Description string `json:"description"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return sandbox.Output{}, err
	}
	res := sandbox.Output{Stdout: deref(out.Stdout), Stderr: deref(out.Stderr)}
	if res.Stderr == "" {
		res.Stderr = deref(out.CompileOutput)
	}
	switch out.Status.ID {
	case statusAccepted:
		res.ExitOK = true
	case statusTimeLimitExceeded:
		return res, sandbox.ErrTimeout
	default:
		if res.Stderr == "" {
			res.Stderr = out.Status.Description
		}
	}
	return res, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
