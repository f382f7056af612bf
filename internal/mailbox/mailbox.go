// Package mailbox relays human-required input and system notifications
// across process boundaries. It keeps two redis FIFO lists, one for
// question/answer records and one for fire-and-forget notifications,
// each guarded by a distributed lock so producers and consumers in
// different workers never race on a partially scanned queue.
package mailbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/merchflow/p2pbot/internal/locker"
	"github.com/merchflow/p2pbot/pkg/models"
)

// ErrNoAnswer is returned when a question went unanswered for the whole
// bounded polling window.
var ErrNoAnswer = errors.New("no answer")

const (
	questionQueue    = "mbx:questions"
	notifyQueue      = "mbx:notifications"
	questionLockName = "msg_lock"
	notifyLockName   = "notify_lock"
)

// Question is one pending request for out-of-band input. Answer stays
// nil until the merchant responds.
type Question struct {
	Owner  string             `json:"owner"`
	Kind   models.Interaction `json:"kind"`
	Answer *string            `json:"answer,omitempty"`
}

// Notification is a one-way message to the merchant's frontend.
type Notification struct {
	Owner  string             `json:"owner"`
	Kind   models.Interaction `json:"kind"`
	Detail string             `json:"detail,omitempty"`
}

// Mailbox is the synchronous question/answer and notification channel.
type Mailbox struct {
	rdb          redis.UniversalClient
	locks        *locker.Locker
	log          *zap.Logger
	pollInterval time.Duration
	maxPolls     int
}

// New creates a Mailbox. Zero polling bounds default to 600 polls at 1s,
// a ten minute ceiling on waiting for a human.
func New(rdb redis.UniversalClient, locks *locker.Locker, log *zap.Logger, pollInterval time.Duration, maxPolls int) *Mailbox {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxPolls <= 0 {
		maxPolls = 600
	}
	return &Mailbox{rdb: rdb, locks: locks, log: log, pollInterval: pollInterval, maxPolls: maxPolls}
}

func (m *Mailbox) withLock(ctx context.Context, name string, fn func() error) error {
	lock, err := m.locks.Acquire(ctx, models.ExchangeUnspecified, name, true)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			m.log.Warn("mailbox lock release failed", zap.Error(rerr))
		}
	}()
	return fn()
}

// rotateQuestions walks the whole list once, popping each entry and
// letting match decide whether it is taken and whether it goes back on
// the tail. Entries after the first taken one are requeued untouched.
func (m *Mailbox) rotateQuestions(ctx context.Context, match func(*Question) (take bool, requeue bool)) (*Question, error) {
	llen, err := m.rdb.LLen(ctx, questionQueue).Result()
	if err != nil {
		return nil, fmt.Errorf("mailbox llen: %w", err)
	}
	var found *Question
	for i := int64(0); i < llen; i++ {
		raw, err := m.rdb.LPop(ctx, questionQueue).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("mailbox lpop: %w", err)
		}
		var q Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			m.log.Error("dropping malformed mailbox entry", zap.String("raw", raw), zap.Error(err))
			continue
		}
		take, requeue := false, true
		if found == nil {
			take, requeue = match(&q)
		}
		if requeue {
			if err := m.pushQuestion(ctx, q); err != nil {
				return nil, err
			}
		}
		if take {
			found = &q
		}
	}
	return found, nil
}

func (m *Mailbox) pushQuestion(ctx context.Context, q Question) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("mailbox encode: %w", err)
	}
	if err := m.rdb.RPush(ctx, questionQueue, raw).Err(); err != nil {
		return fmt.Errorf("mailbox rpush: %w", err)
	}
	return nil
}

// Query posts a question for owner and blocks until an answer arrives
// or the polling window closes with ErrNoAnswer. Stale answered entries
// left over from an earlier, timed-out query are consumed on entry so
// an old answer is never mistaken for a fresh one.
func (m *Mailbox) Query(ctx context.Context, owner string, kind models.Interaction) (string, error) {
	err := m.withLock(ctx, questionLockName, func() error {
		_, err := m.rotateQuestions(ctx, func(q *Question) (bool, bool) {
			if q.Owner == owner && q.Answer != nil {
				m.log.Info("consuming stale answered question", zap.String("owner", owner))
				return false, false
			}
			return false, true
		})
		if err != nil {
			return err
		}
		return m.pushQuestion(ctx, Question{Owner: owner, Kind: kind})
	})
	if err != nil {
		return "", err
	}
	m.log.Debug("question posted", zap.String("owner", owner), zap.String("kind", string(kind)))

	for i := 0; i < m.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.pollInterval):
		}

		var answer *string
		err := m.withLock(ctx, questionLockName, func() error {
			q, err := m.rotateQuestions(ctx, func(q *Question) (bool, bool) {
				if q.Owner == owner && q.Answer != nil {
					return true, false
				}
				return false, true
			})
			if err != nil {
				return err
			}
			if q != nil {
				answer = q.Answer
			}
			return nil
		})
		if err != nil {
			return "", err
		}
		if answer != nil {
			m.log.Debug("answer received", zap.String("owner", owner))
			return *answer, nil
		}
	}
	return "", fmt.Errorf("owner %s: %w", owner, ErrNoAnswer)
}

// PutAnswer fills in the oldest unanswered question belonging to owner.
// Without a matching question it is a no-op.
func (m *Mailbox) PutAnswer(ctx context.Context, owner, answer string) error {
	return m.withLock(ctx, questionLockName, func() error {
		_, err := m.rotateQuestions(ctx, func(q *Question) (bool, bool) {
			if q.Owner == owner && q.Answer == nil {
				q.Answer = &answer
				return true, true
			}
			return false, true
		})
		return err
	})
}

// GetQuestion peeks at the oldest unanswered question for owner without
// consuming it, so the frontend can render the prompt.
func (m *Mailbox) GetQuestion(ctx context.Context, owner string) (models.Interaction, bool, error) {
	var kind models.Interaction
	var ok bool
	err := m.withLock(ctx, questionLockName, func() error {
		q, err := m.rotateQuestions(ctx, func(q *Question) (bool, bool) {
			return q.Owner == owner && q.Answer == nil, true
		})
		if err != nil {
			return err
		}
		if q != nil {
			kind, ok = q.Kind, true
		}
		return nil
	})
	return kind, ok, err
}

// PutNotification appends a notification; it never blocks the producer
// beyond the queue lock.
func (m *Mailbox) PutNotification(ctx context.Context, owner string, kind models.Interaction, detail string) error {
	return m.withLock(ctx, notifyLockName, func() error {
		raw, err := json.Marshal(Notification{Owner: owner, Kind: kind, Detail: detail})
		if err != nil {
			return fmt.Errorf("mailbox encode: %w", err)
		}
		if err := m.rdb.RPush(ctx, notifyQueue, raw).Err(); err != nil {
			return fmt.Errorf("mailbox rpush: %w", err)
		}
		return nil
	})
}

// GetNotification pops the oldest notification for owner, or returns
// nil when there is none. Other owners' entries keep their order.
func (m *Mailbox) GetNotification(ctx context.Context, owner string) (*Notification, error) {
	var found *Notification
	err := m.withLock(ctx, notifyLockName, func() error {
		llen, err := m.rdb.LLen(ctx, notifyQueue).Result()
		if err != nil {
			return fmt.Errorf("mailbox llen: %w", err)
		}
		for i := int64(0); i < llen; i++ {
			raw, err := m.rdb.LPop(ctx, notifyQueue).Result()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return fmt.Errorf("mailbox lpop: %w", err)
			}
			var n Notification
			if err := json.Unmarshal([]byte(raw), &n); err != nil {
				m.log.Error("dropping malformed notification", zap.String("raw", raw), zap.Error(err))
				continue
			}
			if found == nil && n.Owner == owner {
				found = &n
				continue
			}
			if err := m.rdb.RPush(ctx, notifyQueue, raw).Err(); err != nil {
				return fmt.Errorf("mailbox rpush: %w", err)
			}
		}
		return nil
	})
	return found, err
}
