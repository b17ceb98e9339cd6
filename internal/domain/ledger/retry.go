package ledger

import "time"

// RetryPolicy bounds expense creation. MaxAttempts counts every try,
// including the first; the delay before attempt n is
// BaseDelay * Multiplier^(n-2), so the defaults wait 2s then 4s.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 2 * time.Second, Multiplier: 2}
}

// DelayBefore returns how long to wait before the given attempt number.
func (p RetryPolicy) DelayBefore(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delay := p.BaseDelay
	for i := 2; i < attempt; i++ {
		delay *= time.Duration(p.Multiplier)
	}
	return delay
}
