package limiter

import (
	"context"
	"sort"
	"time"

	"golang.org/x/time/rate"
)

// 限速器接口，统一了不同限速器的行为
type RateLimiter interface {
	Wait(context.Context) error // 阻塞调用者直到取得令牌，或上下文被取消
	Limit() rate.Limit          // 返回限速器的速率限制
}

// 将多个限速器按速率限制从小到大排序，然后返回一个多限速器实例
func Multi(limiters ...RateLimiter) *multiLimiter {
	byLimit := func(i, j int) bool {
		return limiters[i].Limit() < limiters[j].Limit()
	}
	sort.Slice(limiters, byLimit)
	return &multiLimiter{limiters: limiters}
}

// 多限速器，只有所有限速器都放行时才能继续执行
type multiLimiter struct {
	limiters []RateLimiter
}

// 依次等待每个限速器的令牌，任何一个限速器返回错误（如上下文被取消）则直接返回该错误
func (l *multiLimiter) Wait(ctx context.Context) error {
	for _, l := range l.limiters {
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// 返回最严格（速率最小）的限速器的速率限制，没有限速器时不限速
func (l *multiLimiter) Limit() rate.Limit {
	if len(l.limiters) == 0 {
		return rate.Inf
	}
	return l.limiters[0].Limit()
}

// 每duration时间内允许eventCount个事件，返回相邻两个令牌之间的间隔对应的速率
func Per(eventCount int, duration time.Duration) rate.Limit {
	return rate.Every(duration / time.Duration(eventCount))
}

/*
输入每个周期的事件数、周期和桶大小，输出一个令牌桶限速器

事件数或周期不合法时返回不限速的限速器，桶大小小于1时按1处理
*/
func NewTokenLimiter(eventCount int, duration time.Duration, bucket int) *rate.Limiter {
	if eventCount <= 0 || duration <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	if bucket < 1 {
		bucket = 1
	}
	return rate.NewLimiter(Per(eventCount, duration), bucket)
}
