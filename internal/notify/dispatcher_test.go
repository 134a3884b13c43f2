package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeChannel считает вызовы и отдаёт ошибки по заданному сценарию.
type fakeChannel struct {
	mu    sync.Mutex
	calls int
	fn    func(call int) error
}

func (f *fakeChannel) Deliver(ctx context.Context, email, code, purpose string) error {
	f.mu.Lock()
	f.calls++
	call := f.calls
	f.mu.Unlock()
	if f.fn == nil {
		return nil
	}
	return f.fn(call)
}

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testConfig отключает лишние политики, чтобы каждый тест
// проверял ровно одну из них.
func testConfig() DispatcherConfig {
	return DispatcherConfig{
		RateLimit:     1000,
		RatePeriod:    time.Minute,
		MaxAttempts:   1,
		RetryInterval: time.Millisecond,
		FailureRatio:  0.99,
		MinRequests:   100,
		Cooldown:      time.Minute,
	}
}

func TestDispatcher_Sent(t *testing.T) {
	channel := &fakeChannel{}
	dispatcher := NewDispatcher(channel, testConfig())

	result := dispatcher.Send(context.Background(), "user@example.com", "123456", "Registration")
	if result != DispatchSent {
		t.Fatalf("ожидали %q, получили %q", DispatchSent, result)
	}
	if channel.callCount() != 1 {
		t.Fatalf("ожидали один вызов канала, получили %d", channel.callCount())
	}
}

func TestDispatcher_RetriesTransientFailure(t *testing.T) {
	channel := &fakeChannel{fn: func(call int) error {
		if call < 3 {
			return fmt.Errorf("%w: таймаут", ErrChannelTransient)
		}
		return nil
	}}

	cfg := testConfig()
	cfg.MaxAttempts = 3
	dispatcher := NewDispatcher(channel, cfg)

	result := dispatcher.Send(context.Background(), "user@example.com", "123456", "Registration")
	if result != DispatchSent {
		t.Fatalf("ожидали %q после повторов, получили %q", DispatchSent, result)
	}
	if channel.callCount() != 3 {
		t.Fatalf("ожидали три вызова канала, получили %d", channel.callCount())
	}
}

func TestDispatcher_ExhaustedRetries(t *testing.T) {
	channel := &fakeChannel{fn: func(call int) error {
		return fmt.Errorf("%w: таймаут", ErrChannelTransient)
	}}

	cfg := testConfig()
	cfg.MaxAttempts = 3
	dispatcher := NewDispatcher(channel, cfg)

	result := dispatcher.Send(context.Background(), "user@example.com", "123456", "Registration")
	if result != DispatchUnavailable {
		t.Fatalf("ожидали %q после исчерпания повторов, получили %q", DispatchUnavailable, result)
	}
	if channel.callCount() != 3 {
		t.Fatalf("ожидали ровно три попытки, получили %d", channel.callCount())
	}
}

func TestDispatcher_PermanentFailureNotRetried(t *testing.T) {
	channel := &fakeChannel{fn: func(call int) error {
		return errors.New("канал отклонил запрос: статус 400")
	}}

	cfg := testConfig()
	cfg.MaxAttempts = 3
	dispatcher := NewDispatcher(channel, cfg)

	result := dispatcher.Send(context.Background(), "user@example.com", "123456", "Registration")
	if result != DispatchUnavailable {
		t.Fatalf("ожидали %q, получили %q", DispatchUnavailable, result)
	}
	if channel.callCount() != 1 {
		t.Fatalf("невременный сбой не должен повторяться, вызовов: %d", channel.callCount())
	}
}

func TestDispatcher_RateLimited(t *testing.T) {
	channel := &fakeChannel{}

	cfg := testConfig()
	cfg.RateLimit = 1
	dispatcher := NewDispatcher(channel, cfg)

	ctx := context.Background()
	if result := dispatcher.Send(ctx, "user@example.com", "123456", "Registration"); result != DispatchSent {
		t.Fatalf("первая отправка должна пройти, получили %q", result)
	}
	if result := dispatcher.Send(ctx, "user@example.com", "654321", "Registration"); result != DispatchRateLimited {
		t.Fatalf("ожидали %q, получили %q", DispatchRateLimited, result)
	}
	if channel.callCount() != 1 {
		t.Fatalf("лимитер должен отсекать вызов до канала, вызовов: %d", channel.callCount())
	}
}

func TestDispatcher_OpenBreakerShortCircuits(t *testing.T) {
	channel := &fakeChannel{fn: func(call int) error {
		return fmt.Errorf("%w: соединение отклонено", ErrChannelTransient)
	}}

	cfg := testConfig()
	cfg.FailureRatio = 0.5
	cfg.MinRequests = 1
	dispatcher := NewDispatcher(channel, cfg)

	ctx := context.Background()
	if result := dispatcher.Send(ctx, "user@example.com", "123456", "Registration"); result != DispatchUnavailable {
		t.Fatalf("ожидали %q, получили %q", DispatchUnavailable, result)
	}
	callsAfterTrip := channel.callCount()

	// Цепь разомкнута: новые отправки не доходят до канала.
	if result := dispatcher.Send(ctx, "user@example.com", "654321", "Registration"); result != DispatchUnavailable {
		t.Fatalf("ожидали %q при разомкнутой цепи, получили %q", DispatchUnavailable, result)
	}
	if channel.callCount() != callsAfterTrip {
		t.Fatalf("разомкнутая цепь не должна пропускать вызовы, было %d, стало %d", callsAfterTrip, channel.callCount())
	}
}

func TestDispatcher_FailureDoesNotReturnError(t *testing.T) {
	channel := &fakeChannel{fn: func(call int) error {
		return fmt.Errorf("%w: недоступен", ErrChannelTransient)
	}}

	dispatcher := NewDispatcher(channel, testConfig())

	// Итог отправки всегда выражается значением DispatchResult.
	result := dispatcher.Send(context.Background(), "user@example.com", "123456", "Registration")
	switch result {
	case DispatchSent, DispatchRateLimited, DispatchUnavailable:
	default:
		t.Fatalf("неизвестный итог отправки: %q", result)
	}
}
