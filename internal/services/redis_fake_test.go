package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type publishedMessage struct {
	Channel string
	Payload string
}

type fakeRedis struct {
	mu         sync.Mutex
	data       map[string]string
	ttls       map[string]time.Duration
	published  []publishedMessage
	subs       map[string][]*fakeSubscription
	GetErr     error
	SetErr     error
	PublishErr error
	SubErr     error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data: map[string]string{},
		ttls: map[string]time.Duration{},
		subs: map[string][]*fakeSubscription{},
	}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	if f.SetErr != nil {
		return f.SetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch v := value.(type) {
	case string:
		f.data[key] = v
	case []byte:
		f.data[key] = string(v)
	default:
		return errors.New("unsupported value type")
	}
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Get(ctx context.Context, key string) (string, error) {
	if f.GetErr != nil {
		return "", f.GetErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ttls[key] = expiration
	return nil
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
		delete(f.ttls, k)
	}
	return nil
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, payload string) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{Channel: channel, Payload: payload})
	for _, sub := range f.subs[channel] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

func (f *fakeRedis) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if f.SubErr != nil {
		return nil, f.SubErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{ch: make(chan string, 16), closed: make(chan struct{})}
	f.subs[channel] = append(f.subs[channel], sub)
	return sub, nil
}

func (f *fakeRedis) subscriberCount(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[channel])
}

type fakeSubscription struct {
	ch     chan string
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSubscription) Receive(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-s.closed:
		return "", errors.New("subscription closed")
	case p := <-s.ch:
		return p, nil
	}
}

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}
