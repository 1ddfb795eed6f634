package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/govorilka/core/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotConfigured = errors.New("интеграция с MoyKlass не настроена")
	ErrUnauthorized  = errors.New("MoyKlass отверг токен")
)

// Client talks to the MoyKlass company API. Every outbound call is logged
// to crm_request_logs; the auth token is cached until its expiry and
// refreshed once on a 401.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	db         *gorm.DB
	logger     *zap.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(db *gorm.DB, logger *zap.Logger, baseURL, apiKey string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		db:         db,
		logger:     logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.apiKey != "" }

type tokenResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt"`
}

// getToken returns a cached access token, requesting a new one when the
// cache is empty or expired.
func (c *Client) getToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	return c.refreshTokenLocked(ctx)
}

func (c *Client) refreshTokenLocked(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}

	body := map[string]string{"apiKey": c.apiKey}
	status, respBody, err := c.roundTrip(ctx, http.MethodPost, "/v1/company/auth/getToken", "", body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("getToken вернул статус %d", status)
	}

	var tok tokenResponse
	if err := json.Unmarshal(respBody, &tok); err != nil {
		return "", fmt.Errorf("getToken: невалидный ответ: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("getToken: пустой accessToken")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(50 * time.Minute)
	if ts, err := time.Parse(time.RFC3339, tok.ExpiresAt); err == nil {
		// refresh a bit before the server-side expiry
		c.tokenExpiry = ts.Add(-1 * time.Minute)
	}
	return c.token, nil
}

// invalidateToken drops the cached token so the next call re-authenticates.
func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

// Do performs an authenticated API call, retrying exactly once with a fresh
// token after a 401. The decoded response lands in out when it is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.getToken(ctx)
	if err != nil {
		return err
	}

	status, respBody, err := c.roundTrip(ctx, method, path, token, payload)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized {
		c.invalidateToken()
		token, err = c.getToken(ctx)
		if err != nil {
			return err
		}
		status, respBody, err = c.roundTrip(ctx, method, path, token, payload)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			return ErrUnauthorized
		}
	}

	if status < 200 || status >= 300 {
		return fmt.Errorf("MoyKlass %s %s: статус %d: %s", method, path, status, truncateBody(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("MoyKlass %s %s: невалидный ответ: %w", method, path, err)
		}
	}
	return nil
}

// roundTrip executes one HTTP exchange and records it in the audit log.
func (c *Client) roundTrip(ctx context.Context, method, path, token string, payload interface{}) (int, []byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(reqBody))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("x-access-token", token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	var status int
	var respBody []byte
	var callErr string
	if err != nil {
		callErr = err.Error()
	} else {
		defer resp.Body.Close()
		status = resp.StatusCode
		respBody, _ = io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	}

	c.logRequest(method, url, reqBody, respBody, status, duration, callErr)

	if err != nil {
		return 0, nil, err
	}
	return status, respBody, nil
}

func (c *Client) logRequest(method, url string, reqBody, respBody []byte, status int, duration time.Duration, callErr string) {
	entry := models.CRMRequestLogModel{
		Method:     method,
		URL:        url,
		ReqBody:    redactSecrets(string(reqBody)),
		RespBody:   redactSecrets(truncateBody(respBody)),
		StatusCode: status,
		DurationMS: duration.Milliseconds(),
		Error:      callErr,
		Timestamp:  time.Now(),
	}
	if err := c.db.Create(&entry).Error; err != nil {
		c.logger.Error("не удалось записать crm request log", zap.Error(err))
	}
}

var secretJSONKeys = []string{"apiKey", "accessToken"}

// redactSecrets masks token material in logged bodies. The log is for
// debugging payload shapes, not for replaying credentials.
func redactSecrets(body string) string {
	if body == "" {
		return body
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(body), &data); err != nil {
		return body
	}
	changed := false
	for _, key := range secretJSONKeys {
		if _, ok := data[key]; ok {
			data[key] = "***"
			changed = true
		}
	}
	if !changed {
		return body
	}
	out, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return string(out)
}

func truncateBody(body []byte) string {
	const max = 4096
	if len(body) > max {
		return string(body[:max]) + "...(обрезано)"
	}
	return string(body)
}
