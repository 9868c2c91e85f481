// Package panel предоставляет клиент REST API панели SMM-сервисов.
package panel

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
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/mmeshcher/smm-dashboard/internal/metrics"
	"github.com/mmeshcher/smm-dashboard/internal/model"
)

const maxBodySize = 4 << 20

// Options содержит параметры транспорта клиента.
type Options struct {
	Timeout time.Duration
	Retries int
	Metrics *metrics.Registry
}

// Client инкапсулирует HTTP-взаимодействие с бэкендом панели.
// Идемпотентные GET-запросы повторяются при сбоях, изменяющие запросы не повторяются.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	retry   *retryablehttp.Client
	metrics *metrics.Registry
}

// NewClient создаёт клиент бэкенда панели по указанному адресу.
func NewClient(baseURL string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	base := strings.TrimRight(baseURL, "/")
	if base != "" && !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	httpClient := cleanhttp.DefaultPooledClient()
	httpClient.Timeout = opts.Timeout

	retry := retryablehttp.NewClient()
	retry.HTTPClient = httpClient
	retry.RetryMax = opts.Retries
	retry.RetryWaitMin = 200 * time.Millisecond
	retry.RetryWaitMax = 2 * time.Second
	retry.Logger = nil
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &Client{
		baseURL: base,
		http:    httpClient,
		retry:   retry,
		metrics: opts.Metrics,
	}
}

// WithToken возвращает копию клиента, авторизованную токеном пользователя.
// Копия разделяет транспорт с исходным клиентом.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Currencies возвращает список валют.
func (c *Client) Currencies(ctx context.Context) ([]model.Currency, error) {
	body, err := c.get(ctx, "currencies", "/api/currencies", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Currency](body)
}

// Balance возвращает баланс пользователя в базовой валюте.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	body, err := c.get(ctx, "balance", "/api/user/balance", nil)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Balance *float64 `json:"balance"`
		Data    *struct {
			Balance float64 `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode balance: %w", err)
	}
	switch {
	case resp.Balance != nil:
		return *resp.Balance, nil
	case resp.Data != nil:
		return resp.Data.Balance, nil
	}
	return 0, fmt.Errorf("decode balance: %w", ErrUnexpectedEnvelope)
}

// Categories возвращает список категорий услуг.
func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	body, err := c.get(ctx, "categories", "/api/categories", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Category](body)
}

// Services возвращает услуги одной категории.
func (c *Client) Services(ctx context.Context, categoryID int64) ([]model.Service, error) {
	q := url.Values{}
	q.Set("category", strconv.FormatInt(categoryID, 10))

	body, err := c.get(ctx, "services", "/api/services", q)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Service](body)
}

// Search выполняет нечёткий поиск услуг на стороне бэкенда.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]model.Service, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, "search", "/api/services/search", q)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Service](body)
}

// CreateOrder создаёт заказ. Запрос не повторяется ни при каких сбоях.
func (c *Client) CreateOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	body, err := c.send(ctx, "create_order", http.MethodPost, "/api/orders", req)
	if err != nil {
		return nil, err
	}

	// Ответ 2xx означает, что заказ создан, даже если тело не разбирается.
	var resp struct {
		OrderID json.RawMessage `json:"order_id"`
		Balance json.RawMessage `json:"balance"`
	}
	_ = json.Unmarshal(body, &resp)

	return &model.OrderResult{
		OrderID: rawID(resp.OrderID),
		Balance: rawAmount(resp.Balance),
	}, nil
}

// Notifications возвращает уведомления пользователя.
func (c *Client) Notifications(ctx context.Context) ([]model.Notification, error) {
	body, err := c.get(ctx, "notifications", "/api/notifications", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[model.Notification](body)
}

// MarkNotificationRead помечает уведомление прочитанным.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	_, err := c.send(ctx, "notification_read", http.MethodPost, fmt.Sprintf("/api/notifications/%d/read", id), nil)
	return err
}

// MarkAllNotificationsRead помечает все уведомления прочитанными.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	_, err := c.send(ctx, "notifications_read_all", http.MethodPost, "/api/notifications/read-all", nil)
	return err
}

// DeleteNotification удаляет уведомление.
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	_, err := c.send(ctx, "notification_delete", http.MethodDelete, fmt.Sprintf("/api/notifications/%d", id), nil)
	return err
}

// ClearNotifications удаляет все уведомления.
func (c *Client) ClearNotifications(ctx context.Context) error {
	_, err := c.send(ctx, "notifications_clear", http.MethodDelete, "/api/notifications", nil)
	return err
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values) ([]byte, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req.Header)

	defer c.metrics.ObserveBackend(op, time.Now())

	resp, err := c.retry.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return readResponse(resp)
}

func (c *Client) send(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if err := c.configured(); err != nil {
		return nil, err
	}

	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req.Header)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	defer c.metrics.ObserveBackend(op, time.Now())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	return readResponse(resp)
}

func (c *Client) configured() error {
	if c == nil || c.baseURL == "" {
		return ErrNotConfigured
	}
	return nil
}

func (c *Client) setHeaders(h http.Header) {
	h.Set("Accept", "application/json")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Op: "read body", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// rawAmount разбирает сумму, переданную числом или строкой. Нераспознанное значение даёт nil.
func rawAmount(raw json.RawMessage) *float64 {
	if len(raw) == 0 {
		return nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &n
}
