package kafka

import (
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Publisher — всё, что умеет опубликовать событие (Producer, RetryingPublisher).
type Publisher interface {
	PublishEvent(topic string, key string, event interface{}) error
}

// ErrCircuitOpen возвращается, пока публикация приостановлена после серии сбоев.
var ErrCircuitOpen = errors.New("kafka publisher circuit is open")

// RetryConfig конфигурация повторов публикации.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// FailureThreshold — число подряд неудачных публикаций, после которого цепь размыкается.
	FailureThreshold int
	ResetTimeout     time.Duration
}

// DefaultRetryConfig возвращает конфигурацию по умолчанию.
// Публикация синхронная, поэтому задержки короткие.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:      3,
		InitialDelay:     50 * time.Millisecond,
		MaxDelay:         time.Second,
		BackoffFactor:    2.0,
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// RetryingPublisher повторяет неудачную публикацию с экспоненциальной задержкой
// и временно отключает публикацию, если брокер недоступен.
type RetryingPublisher struct {
	next    Publisher
	config  RetryConfig
	breaker *circuitBreaker
	logger  *log.Entry
	sleep   func(time.Duration)
}

var _ Publisher = (*RetryingPublisher)(nil)

// NewRetryingPublisher оборачивает next. Неположительные значения config заменяются значениями по умолчанию.
func NewRetryingPublisher(next Publisher, config RetryConfig, logger *log.Entry) *RetryingPublisher {
	if logger == nil {
		logger = log.New().WithField("component", "kafka-retrying-publisher")
	}
	defaults := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	if config.MaxDelay < config.InitialDelay {
		config.MaxDelay = config.InitialDelay
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = defaults.FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = defaults.ResetTimeout
	}

	return &RetryingPublisher{
		next:    next,
		config:  config,
		breaker: newCircuitBreaker(config.FailureThreshold, config.ResetTimeout, time.Now),
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// PublishEvent публикует событие, повторяя попытки при временных ошибках.
func (p *RetryingPublisher) PublishEvent(topic string, key string, event interface{}) error {
	if !p.breaker.allow() {
		return ErrCircuitOpen
	}

	err := p.publishWithRetry(topic, key, event)
	switch {
	case err == nil:
		p.breaker.success()
	case errors.Is(err, ErrEncodeEvent):
		// брокер не вызывался
		p.breaker.release()
	default:
		if p.breaker.failure() {
			p.logger.WithFields(log.Fields{
				"topic":         topic,
				"reset_timeout": p.config.ResetTimeout,
			}).Warn("kafka publisher circuit opened")
		}
	}
	return err
}

func (p *RetryingPublisher) publishWithRetry(topic, key string, event interface{}) error {
	var lastErr error
	delay := p.config.InitialDelay

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		err := p.next.PublishEvent(topic, key, event)
		if err == nil {
			if attempt > 1 {
				p.logger.WithFields(log.Fields{
					"topic":   topic,
					"key":     key,
					"attempt": attempt,
				}).Info("event published after retry")
			}
			return nil
		}

		lastErr = err
		if !shouldRetry(err) {
			return err
		}

		if attempt < p.config.MaxAttempts {
			p.logger.WithError(err).WithFields(log.Fields{
				"topic":   topic,
				"key":     key,
				"attempt": attempt,
				"delay":   delay,
			}).Warn("publish failed, retrying")

			p.sleep(delay)
			delay = time.Duration(float64(delay) * p.config.BackoffFactor)
			if delay > p.config.MaxDelay {
				delay = p.config.MaxDelay
			}
		}
	}

	return lastErr
}

// shouldRetry: ошибка сериализации не исчезнет при повторе.
func shouldRetry(err error) bool {
	return !errors.Is(err, ErrEncodeEvent)
}

type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

// circuitBreaker считает подряд идущие сбои. После threshold сбоев цепь размыкается
// на resetTimeout, затем пропускает одну пробную публикацию.
type circuitBreaker struct {
	mu           sync.Mutex
	threshold    int
	resetTimeout time.Duration
	now          func() time.Time

	failures    int
	lastFailure time.Time
	state       circuitState
}

func newCircuitBreaker(threshold int, resetTimeout time.Duration, now func() time.Time) *circuitBreaker {
	return &circuitBreaker{threshold: threshold, resetTimeout: resetTimeout, now: now}
}

func (cb *circuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case circuitOpen:
		if cb.now().Sub(cb.lastFailure) < cb.resetTimeout {
			return false
		}
		cb.state = circuitHalfOpen
		return true
	case circuitHalfOpen:
		// пробная публикация уже идёт
		return false
	default:
		return true
	}
}

func (cb *circuitBreaker) success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.state = circuitClosed
}

// release возвращает незавершённую пробу в разомкнутое состояние.
func (cb *circuitBreaker) release() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == circuitHalfOpen {
		cb.state = circuitOpen
	}
}

// failure возвращает true, если цепь только что разомкнулась.
func (cb *circuitBreaker) failure() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()
	if cb.state == circuitHalfOpen || cb.failures >= cb.threshold {
		opened := cb.state != circuitOpen
		cb.state = circuitOpen
		return opened
	}
	return false
}
