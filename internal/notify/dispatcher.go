package notify

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/ignatzorin/signup-backend/internal/logger"
)

// DispatchResult описывает итог отправки кода подтверждения.
type DispatchResult string

const (
	// DispatchSent — код принят каналом доставки.
	DispatchSent DispatchResult = "sent"
	// DispatchRateLimited — превышен лимит исходящих отправок,
	// вызов канала не выполнялся.
	DispatchRateLimited DispatchResult = "rate_limited"
	// DispatchUnavailable — канал недоступен: исчерпаны повторы
	// либо разомкнута цепь.
	DispatchUnavailable DispatchResult = "unavailable"
)

const dispatchLimiterKey = "notifications"

// DispatcherConfig задаёт пороги политик устойчивости.
type DispatcherConfig struct {
	RateLimit     int64
	RatePeriod    time.Duration
	MaxAttempts   int
	RetryInterval time.Duration
	FailureRatio  float64
	MinRequests   uint32
	Cooldown      time.Duration
}

// Dispatcher отправляет коды через внешний канал под тремя политиками,
// вложенными в порядке: rate limiter -> retry -> circuit breaker -> канал.
// Лимитер отсекает вызов до каких-либо попыток; повторяются только
// временные сбои; предохранитель считает каждый вызов канала, поэтому
// серия неудачных повторов приближает размыкание цепи.
type Dispatcher struct {
	channel Channel
	limiter *limiter.Limiter
	breaker *gobreaker.CircuitBreaker[struct{}]
	cfg     DispatcherConfig
}

// NewDispatcher создаёт диспетчер с заданными политиками.
func NewDispatcher(channel Channel, cfg DispatcherConfig) *Dispatcher {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.RatePeriod <= 0 {
		cfg.RatePeriod = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.FailureRatio <= 0 {
		cfg.FailureRatio = 0.5
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}

	rate := limiter.Rate{
		Period: cfg.RatePeriod,
		Limit:  cfg.RateLimit,
	}
	instance := limiter.New(memory.NewStore(), rate)

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "notification-channel",
		Timeout: cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger.Log != nil {
				logger.Log.WithFields(logrus.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("notify: предохранитель сменил состояние")
			}
		},
	})

	return &Dispatcher{
		channel: channel,
		limiter: instance,
		breaker: breaker,
		cfg:     cfg,
	}
}

// Send доставляет код и возвращает итог как значение, а не ошибку:
// отказ лимитера и разомкнутая цепь — ожидаемые исходы, на которые
// вызывающий отвечает пользователю, не откатывая заявку.
func (d *Dispatcher) Send(ctx context.Context, email, code, purpose string) DispatchResult {
	limiterCtx, err := d.limiter.Get(ctx, dispatchLimiterKey)
	if err != nil {
		// Память под лимитером не отказывает в нормальной работе;
		// при сбое считаем отправку невозможной.
		if logger.Log != nil {
			logger.Log.WithField("error", err.Error()).Error("notify: сбой rate limiter")
		}
		return DispatchUnavailable
	}

	if limiterCtx.Reached {
		return DispatchRateLimited
	}

	operation := func() error {
		_, err := d.breaker.Execute(func() (struct{}, error) {
			return struct{}{}, d.channel.Deliver(ctx, email, code, purpose)
		})
		if err == nil {
			return nil
		}

		// Разомкнутая цепь и невременные сбои не повторяются.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return backoff.Permanent(err)
		}
		if !errors.Is(err, ErrChannelTransient) {
			return backoff.Permanent(err)
		}

		return err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = d.cfg.RetryInterval

	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(d.cfg.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"email": email,
				"error": err.Error(),
			}).Warn("notify: не удалось доставить код подтверждения")
		}
		return DispatchUnavailable
	}

	return DispatchSent
}
