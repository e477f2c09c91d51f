// Package api is the HTTP client for the care API used by the viewer-side
// packages and carectl.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/meucuidador/care-api/internal/model"
)

const defaultTimeout = 15 * time.Second

// APIError is returned for every non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) Login(ctx context.Context, email, password string) (*model.TokenResponse, error) {
	var resp model.TokenResponse
	body := model.LoginRequest{Email: email, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &resp); err != nil {
		return nil, err
	}
	c.SetToken(resp.AccessToken)
	return &resp, nil
}

func (c *Client) ListPatients(ctx context.Context) ([]*model.Patient, error) {
	var patients []*model.Patient
	if err := c.do(ctx, http.MethodGet, "/api/caregiver/patients", nil, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

func (c *Client) ListPatientsBasic(ctx context.Context) ([]model.PatientBasic, error) {
	var patients []model.PatientBasic
	if err := c.do(ctx, http.MethodGet, "/api/caregiver/patients/basic", nil, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

func (c *Client) SearchPatients(ctx context.Context, query string) ([]*model.Patient, error) {
	var patients []*model.Patient
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/api/users/search-patients", q, nil, &patients); err != nil {
		return nil, err
	}
	return patients, nil
}

// SwitchPatient asks the server to make patientID the viewing context. The
// returned patient is nil when the server sends no body.
func (c *Client) SwitchPatient(ctx context.Context, patientID int64) (*model.Patient, error) {
	var resp model.SwitchPatientResponse
	body := model.SwitchPatientRequest{PatientID: patientID}
	if err := c.do(ctx, http.MethodPost, "/api/caregiver/switch-patient", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.Patient, nil
}

func (c *Client) ClearPatientContext(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/caregiver/clear-patient-context", nil, nil, nil)
}

func (c *Client) CurrentContext(ctx context.Context) (*model.ContextResponse, error) {
	var resp model.ContextResponse
	if err := c.do(ctx, http.MethodGet, "/api/caregiver/context", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListNotifications accepts both the paged listing and a bare array. For a
// bare array the summary and pagination are derived from the items.
func (c *Client) ListNotifications(ctx context.Context, page model.Pagination) (*model.NotificationPage, error) {
	q := url.Values{}
	if page.Limit > 0 {
		q.Set("limit", strconv.Itoa(page.Limit))
	}
	if page.Offset > 0 {
		q.Set("offset", strconv.Itoa(page.Offset))
	}

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/api/notifications", q, nil, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []*model.Notification
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("failed to decode notifications: %w", err)
		}
		return pageFromItems(items, page), nil
	}

	var result model.NotificationPage
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &result); err != nil {
			return nil, fmt.Errorf("failed to decode notifications: %w", err)
		}
	}
	if result.Notifications == nil {
		result.Notifications = []*model.Notification{}
	}
	return &result, nil
}

func pageFromItems(items []*model.Notification, page model.Pagination) *model.NotificationPage {
	unread := 0
	for _, n := range items {
		if !n.IsRead {
			unread++
		}
	}
	if items == nil {
		items = []*model.Notification{}
	}
	return &model.NotificationPage{
		Notifications: items,
		Summary:       model.NotificationSummary{Total: len(items), Unread: unread},
		Pagination: model.NotificationPagination{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  len(items),
		},
	}
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPut, "/api/notifications/"+strconv.FormatInt(id, 10)+"/read", nil, nil, nil)
}

func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

func (c *Client) ClearReadNotifications(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/clear-read", nil, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("api request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, data)}
	}

	if out == nil {
		return nil
	}
	payload := unwrap(data)
	if len(payload) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], payload...)
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

type envelope struct {
	Status  *string         `json:"status"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// unwrap returns the data field of a {status,message,data} envelope, or the
// body itself when it is not enveloped.
func unwrap(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Status == nil {
		return trimmed
	}
	data := bytes.TrimSpace(env.Data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return data
}

func errorMessage(status int, body []byte) string {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		if env.Error != "" {
			return env.Error
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 200 && !strings.HasPrefix(text, "{") {
		return text
	}
	return http.StatusText(status)
}
