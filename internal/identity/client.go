package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/unihub-backend/internal/domain"
	"github.com/xela07ax/unihub-backend/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client — HTTP-клиент каталога пользователей Identity-сервиса.
// Каталог — внешний коллаборатор, поэтому весь трафик идет через цепочку
// Rate Limiter -> Circuit Breaker -> Retries.
type Client struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewClient(cfg infra.IdentityConfig, logger *zap.Logger) *Client {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "identity-directory",
		MaxRequests: 3,
		Interval:    5 * time.Second,
		Timeout:     30 * time.Second, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Если более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
	})

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		cb:      cb,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:  logger.Named("identity-client"),
	}
}

// GetUser возвращает запись каталога по идентификатору пользователя.
func (c *Client) GetUser(ctx context.Context, userID int64) (*domain.DirectoryUser, error) {
	// 1. Rate Limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	var user *domain.DirectoryUser

	// 2. Circuit Breaker
	cbResult, err := c.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(3),
			// Умный расчет задержки
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если сервис вернул 429 с заголовком Retry-After — уважаем его
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 500-ка) — экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
			// 404 ретраить бессмысленно
			retry.RetryIf(func(err error) bool {
				return !errors.Is(err, ErrUserNotFound)
			}),
		)

		retryErr := r.Do(func() error {
			var callErr error
			user, callErr = c.fetchUser(ctx, userID)
			return callErr
		})

		return user, retryErr
	})

	if err != nil {
		return nil, err
	}

	return cbResult.(*domain.DirectoryUser), nil
}

func (c *Client) fetchUser(ctx context.Context, userID int64) (*domain.DirectoryUser, error) {
	url := fmt.Sprintf("%s/v1/users/%d", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("identity: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: directory call failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// ok
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	case http.StatusTooManyRequests:
		return nil, &ThrottleError{
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Cause:      fmt.Errorf("identity: status %d", resp.StatusCode),
		}
	default:
		return nil, fmt.Errorf("identity: unexpected status %d", resp.StatusCode)
	}

	var user domain.DirectoryUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("identity: decode user: %w", err)
	}
	return &user, nil
}

func parseRetryAfter(header string) time.Duration {
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return time.Second
}
