package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
	queueSize       = 1000
)

// SendFunc performs a single outgoing call to a chat.
type SendFunc func(ctx context.Context) error

type request struct {
	ctx      context.Context
	chatID   int64
	send     SendFunc
	response chan error
}

// RateLimiter serializes outgoing calls and keeps at least the chat rate
// between two calls to the same chat. Negative chat IDs are groups.
type RateLimiter struct {
	queue    chan request
	lastSent map[int64]time.Time
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	now      func() time.Time
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		queue:    make(chan request, queueSize),
		lastSent: make(map[int64]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		now:      time.Now,
		log:      log,
	}

	go rl.processQueue()

	return rl
}

// Send queues send for chatID and waits for its result.
func (rl *RateLimiter) Send(ctx context.Context, chatID int64, send SendFunc) error {
	req := request{
		ctx:      ctx,
		chatID:   chatID,
		send:     send,
		response: make(chan error, 1),
	}

	if err := rl.ctx.Err(); err != nil {
		return err
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.ctx.Done():
		return rl.ctx.Err()
	}

	select {
	case err := <-req.response:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-rl.done:
		select {
		case err := <-req.response:
			return err
		default:
			return rl.ctx.Err()
		}
	}
}

// Stop cancels pending requests and waits for the queue worker to exit.
func (rl *RateLimiter) Stop() {
	rl.cancel()
	<-rl.done
}

func (rl *RateLimiter) processQueue() {
	defer close(rl.done)

	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			for {
				select {
				case req := <-rl.queue:
					req.response <- rl.ctx.Err()
				default:
					return
				}
			}
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	if err := req.ctx.Err(); err != nil {
		req.response <- err
		return
	}

	rl.mu.Lock()
	lastSent, exists := rl.lastSent[req.chatID]
	rl.mu.Unlock()

	if exists {
		delay := getDelay(req.chatID, lastSent, rl.now())

		if delay > 0 {
			rl.log.DebugContext(req.ctx, "Rate limiting message",
				"chatID", req.chatID,
				"delay", delay,
				"queueLen", len(rl.queue))

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-req.ctx.Done():
				timer.Stop()
				req.response <- req.ctx.Err()
				return
			case <-rl.ctx.Done():
				timer.Stop()
				req.response <- rl.ctx.Err()
				return
			}
		}
	}

	err := req.send(req.ctx)

	rl.mu.Lock()
	rl.lastSent[req.chatID] = rl.now()
	rl.mu.Unlock()

	req.response <- err
}

func getDelay(chatID int64, lastSent, now time.Time) time.Duration {
	elapsed := now.Sub(lastSent)
	rate := getRate(chatID)

	return max(rate-elapsed, 0)
}

func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
