package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy 定义重试策略配置
// 线性退避：第 n 次重试前等待 n × BaseDelay
type RetryPolicy struct {
	MaxRetries int                                               // 额外尝试次数（0 表示不重试）
	BaseDelay  time.Duration                                     // 线性退避基数
	Retryable  func(err error) bool                              // 为空则重试所有错误
	OnRetry    func(attempt int, err error, delay time.Duration) // 重试回调
}

// DefaultRetryPolicy 返回默认的重试策略：最多 3 次额外尝试，基数 1s
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Second,
	}
}

// Delay 返回第 attempt 次重试前的等待时间
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return time.Duration(attempt) * p.BaseDelay
}

// ExhaustedError 表示重试次数耗尽，Last 为最后一次尝试的错误
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Retryer 重试器接口
type Retryer interface {
	// Do 执行 fn，失败时根据策略重试。attempt 从 0 开始。
	Do(ctx context.Context, fn func(attempt int) error) error
}

type linearRetryer struct {
	policy *RetryPolicy
	logger *zap.Logger
}

// NewLinearRetryer 创建线性退避重试器
func NewLinearRetryer(policy *RetryPolicy, logger *zap.Logger) Retryer {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := *policy
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	return &linearRetryer{policy: &p, logger: logger}
}

// Do 实现 Retryer.Do
// 不可重试的错误原样返回；ctx 取消时返回 ctx.Err()；耗尽时返回 *ExhaustedError
func (r *linearRetryer) Do(ctx context.Context, fn func(attempt int) error) error {
	var lastErr error
	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.policy.Delay(attempt)
			r.logger.Debug("retrying",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", r.policy.MaxRetries),
				zap.Duration("delay", delay),
				zap.Error(lastErr))
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			if err := Wait(ctx, delay); err != nil {
				return err
			}
		}

		lastErr = fn(attempt)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if r.policy.Retryable != nil && !r.policy.Retryable(lastErr) {
			return lastErr
		}
	}

	r.logger.Warn("retries exhausted",
		zap.Int("attempts", r.policy.MaxRetries+1),
		zap.Error(lastErr))
	return &ExhaustedError{Attempts: r.policy.MaxRetries + 1, Last: lastErr}
}

// DoWithResult 执行带返回值的 fn，只返回最后一次成功尝试的结果
func DoWithResult[T any](ctx context.Context, r Retryer, fn func(attempt int) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(attempt int) error {
		v, err := fn(attempt)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// Wait 等待 d，同时监听 ctx 取消
func Wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
