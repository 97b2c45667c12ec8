// Package telegram sends operator notifications for complaintsync.
//
// This package handles:
//   - Critical alerts when a batch cannot run (no connection, source down)
//   - Batch reports with a PNG table when records failed
//
// A nil *Client is valid: every method logs and returns nil, so callers
// never need to check whether Telegram is configured.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"complaintsync/internal/config"
	"complaintsync/internal/logger"
	"complaintsync/internal/reconcile"
)

const defaultBaseURL = "https://api.telegram.org"

// Client is a minimal Bot API client.
//
// Fields:
//   - BotToken: Telegram bot API token
//   - ChatID: Target chat ID for notifications
//   - DebugMode: If true, skip actual API calls
type Client struct {
	BotToken  string
	ChatID    string
	DebugMode bool

	baseURL string
	http    *http.Client
	log     *logger.Logger
}

// Message represents a Telegram message for sending.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// apiResponse is the envelope of every Bot API answer.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// NewClient creates a Telegram client from configuration.
//
// Returns:
//   - *Client: Configured client, or nil if TELEGRAM_BOT_TOKEN or
//     TELEGRAM_CHAT_ID is missing (notifications disabled)
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "telegram")

	if !cfg.TelegramEnabled() {
		log.Info("Telegram notifications disabled", "token_set", cfg.TelegramBotToken != "", "chat_id_set", cfg.TelegramChatID != "")
		return nil
	}
	if cfg.DebugMode {
		log.Info("Debug mode enabled, Telegram calls will be simulated")
	}

	return &Client{
		BotToken:  cfg.TelegramBotToken,
		ChatID:    cfg.TelegramChatID,
		DebugMode: cfg.DebugMode,
		baseURL:   defaultBaseURL,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

// WithBaseURL points the client at another API root (tests, proxies).
func (c *Client) WithBaseURL(u string) *Client {
	if c != nil {
		c.baseURL = strings.TrimRight(u, "/")
	}
	return c
}

func (c *Client) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.BotToken, method)
}

// doRequest sends a JSON request to the Bot API.
func (c *Client) doRequest(ctx context.Context, method string, payload interface{}) error {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.send(req)
}

func (c *Client) send(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse response (status %d): %w", resp.StatusCode, err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// SendCriticalAlert reports a batch that could not run.
//
// Alert format:
//
//	🚨 CRITICAL ALERT - COMPLAINTSYNC
//	Error Type: Connect Failure
//	Error Message: [details]
//	Retry Attempts: 0
//	Timestamp: 2025-05-12 15:05:00
func (c *Client) SendCriticalAlert(ctx context.Context, errorType, errorMsg string, retryCount int) error {
	if c == nil {
		return nil
	}

	message := fmt.Sprintf(
		"🚨 <b>CRITICAL ALERT - COMPLAINTSYNC</b>\n\n"+
			"<b>Error Type:</b> %s\n"+
			"<b>Error Message:</b> %s\n"+
			"<b>Retry Attempts:</b> %d\n"+
			"<b>Timestamp:</b> %s\n\n"+
			"⚠️ <b>Action Required:</b> The next scheduled run will retry automatically.",
		html.EscapeString(errorType),
		html.EscapeString(errorMsg),
		retryCount,
		time.Now().Format("2006-01-02 15:04:05"),
	)

	if c.DebugMode {
		c.log.Info("Debug mode: critical alert not sent", "type", errorType)
		return nil
	}
	err := c.doRequest(ctx, "sendMessage", Message{
		ChatID:                c.ChatID,
		Text:                  message,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send Telegram alert: %w", err)
	}
	c.log.Info("Critical alert sent", "type", errorType)
	return nil
}

// BatchCaption renders the counters of a run for a report caption.
func BatchCaption(s *reconcile.Summary) string {
	return fmt.Sprintf(
		"⚠️ <b>%s run finished with failures</b>\n"+
			"Run: <code>%s</code>\n"+
			"Inserted %d · Updated %d · Skipped %d · <b>Failed %d</b>\n"+
			"Duplicates in batch: %d\n"+
			"Duration: %s",
		html.EscapeString(s.Driver), s.RunID,
		s.Inserted, s.Updated, s.Skipped, s.Failed,
		s.Duplicates,
		s.Duration().Round(time.Millisecond),
	)
}

// SendBatchReport posts a run summary. With a PNG it goes out as a photo
// with the summary as caption; without one as a plain message.
func (c *Client) SendBatchReport(ctx context.Context, s *reconcile.Summary, pngData []byte) error {
	if c == nil {
		return nil
	}
	caption := BatchCaption(s)

	if c.DebugMode {
		c.log.Info("Debug mode: batch report not sent", "run_id", s.RunID)
		return nil
	}

	var err error
	if len(pngData) == 0 {
		err = c.doRequest(ctx, "sendMessage", Message{ChatID: c.ChatID, Text: caption, ParseMode: "HTML", DisableWebPagePreview: true})
	} else {
		err = c.sendPhoto(ctx, caption, pngData)
	}
	if err != nil {
		return fmt.Errorf("failed to send batch report: %w", err)
	}
	c.log.Info("Batch report sent", "run_id", s.RunID, "failed", s.Failed)
	return nil
}

// sendPhoto uploads a PNG via multipart/form-data.
func (c *Client) sendPhoto(ctx context.Context, caption string, pngData []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", c.ChatID)
	_ = w.WriteField("caption", caption)
	_ = w.WriteField("parse_mode", "HTML")
	part, err := w.CreateFormFile("photo", "failures.png")
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(pngData); err != nil {
		return fmt.Errorf("failed to write photo: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendPhoto"), &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.send(req)
}
