package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrChannelTransient помечает сбои канала, которые имеет смысл
// повторить: таймауты, обрывы соединения, ответы 5xx.
var ErrChannelTransient = errors.New("notification channel transient failure")

// Channel описывает внешний канал доставки кода подтверждения.
type Channel interface {
	Deliver(ctx context.Context, email, code, purpose string) error
}

// Client вызывает внешний сервис уведомлений по HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент сервиса уведомлений.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type otpDeliveryRequest struct {
	Email   string `json:"email"`
	Otp     string `json:"otp"`
	Purpose string `json:"purpose"`
}

// Deliver отправляет код через POST /notification/otp.
// Сетевые ошибки и ответы 5xx считаются временными, ответы 4xx — нет:
// повторная отправка того же запроса их не исправит.
func (c *Client) Deliver(ctx context.Context, email, code, purpose string) error {
	payload, err := json.Marshal(otpDeliveryRequest{
		Email:   email,
		Otp:     code,
		Purpose: purpose,
	})
	if err != nil {
		return fmt.Errorf("notification client: не удалось сериализовать запрос: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/notification/otp", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notification client: не удалось создать запрос: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChannelTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: сервис уведомлений ответил %d", ErrChannelTransient, resp.StatusCode)
	default:
		return fmt.Errorf("notification client: сервис уведомлений отклонил запрос: %d", resp.StatusCode)
	}
}
