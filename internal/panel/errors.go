package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotConfigured возвращается, если адрес бэкенда не задан.
	ErrNotConfigured = errors.New("panel client not configured")
	// ErrUnexpectedEnvelope возвращается, если ответ не удалось привести к ожидаемой форме.
	ErrUnexpectedEnvelope = errors.New("unexpected response envelope")
	// ErrUnsuccessful возвращается, если бэкенд ответил success=false.
	ErrUnsuccessful = errors.New("backend reported failure")
)

// APIError означает, что бэкенд ответил статусом вне диапазона 2xx.
type APIError struct {
	StatusCode     int
	Message        string
	Shortfall      *float64
	RequiredAmount *float64
	CurrentBalance *float64
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("panel api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("panel api: status %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var resp struct {
		Message        string   `json:"message"`
		Error          string   `json:"error"`
		Shortfall      *float64 `json:"shortfall"`
		RequiredAmount *float64 `json:"required_amount"`
		CurrentBalance *float64 `json:"current_balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return apiErr
	}

	apiErr.Message = resp.Message
	if apiErr.Message == "" {
		apiErr.Message = resp.Error
	}
	apiErr.Shortfall = resp.Shortfall
	apiErr.RequiredAmount = resp.RequiredAmount
	apiErr.CurrentBalance = resp.CurrentBalance
	return apiErr
}

// NotFound сообщает, что ресурс не найден.
func (e *APIError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// TransportError означает, что запрос не получил ответа от бэкенда.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("panel %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Timeout сообщает, что запрос прерван по таймауту транспорта.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}
