// Package captcha submits challenges to the RuCaptcha solving service.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://rucaptcha.com"
	pollInterval   = 2 * time.Second
)

var ErrNotReady = errors.New("captcha solution not ready")

type apiResponse struct {
	Status  int    `json:"status"`
	Request string `json:"request"`
}

// Client is a minimal RuCaptcha API client: submit to in.php, poll res.php.
type Client struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	pollInterval time.Duration
	http         *resty.Client
}

func NewClient(apiKey string, solveTimeout time.Duration) *Client {
	return &Client{
		apiKey:       apiKey,
		baseURL:      defaultBaseURL,
		timeout:      solveTimeout,
		pollInterval: pollInterval,
		http:         resty.New().SetTimeout(30 * time.Second),
	}
}

// SolveRecaptcha submits a reCAPTCHA v2 task and polls until a token comes
// back or the solve timeout expires.
func (c *Client) SolveRecaptcha(ctx context.Context, siteKey, pageURL string) (string, error) {
	var submitted apiResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":       c.apiKey,
			"method":    "userrecaptcha",
			"googlekey": siteKey,
			"pageurl":   pageURL,
			"json":      "1",
		}).
		SetResult(&submitted).
		Post(c.baseURL + "/in.php")
	if err != nil {
		return "", fmt.Errorf("captcha submit failed: %w", err)
	}
	if submitted.Status != 1 {
		return "", fmt.Errorf("captcha submit rejected: %s (http %d)", submitted.Request, resp.StatusCode())
	}

	taskID := submitted.Request
	log.Debug().Str("task_id", taskID).Msg("Captcha task submitted")

	deadline := time.Now().Add(c.timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.pollInterval):
		}

		token, err := c.poll(ctx, taskID)
		if errors.Is(err, ErrNotReady) {
			continue
		}
		if err != nil {
			return "", err
		}
		return token, nil
	}
	return "", fmt.Errorf("captcha not solved within %v", c.timeout)
}

func (c *Client) poll(ctx context.Context, taskID string) (string, error) {
	var result apiResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    c.apiKey,
			"action": "get",
			"id":     taskID,
			"json":   "1",
		}).
		SetResult(&result).
		Get(c.baseURL + "/res.php")
	if err != nil {
		return "", fmt.Errorf("captcha poll failed: %w", err)
	}
	if result.Status == 1 {
		return result.Request, nil
	}
	if result.Request == "CAPCHA_NOT_READY" {
		return "", ErrNotReady
	}
	return "", fmt.Errorf("captcha solve failed: %s", result.Request)
}

// Balance returns the remaining account balance in roubles.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var result apiResponse
	_, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key":    c.apiKey,
			"action": "getbalance",
			"json":   "1",
		}).
		SetResult(&result).
		Get(c.baseURL + "/res.php")
	if err != nil {
		return 0, fmt.Errorf("balance request failed: %w", err)
	}
	if result.Status != 1 {
		return 0, fmt.Errorf("balance request rejected: %s", result.Request)
	}
	balance, err := strconv.ParseFloat(strings.TrimSpace(result.Request), 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected balance value %q", result.Request)
	}
	return balance, nil
}
