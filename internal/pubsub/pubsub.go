// Package pubsub decouples producers of run events from their consumers: a
// run publishes progress without knowing whether a chat session, a CLI
// progress bar, or nobody at all is listening.
package pubsub

import (
	"sync"

	"github.com/tgfetch/tgfetch/internal/sync_"
)

const DefaultSubscriberBufSize = 16

// Publisher[T] fans values out to any number of subscribers. Send blocks
// until every live subscriber has accepted the value, so event order is
// preserved per subscriber.
type Publisher[T any] struct {
	mu          sync.Mutex
	sending     sync.WaitGroup
	subscribers []*Subscriber[T]
	closed      bool
}

func NewPublisher[T any]() *Publisher[T] {
	return &Publisher[T]{}
}

// Subscribe registers a new subscriber. Subscribing to a closed publisher
// returns an already-closed subscriber.
func (p *Publisher[T]) Subscribe() *Subscriber[T] {
	s := &Subscriber[T]{ch: make(chan T, DefaultSubscriberBufSize)}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(s.ch)
		s.closed.Set()
		return s
	}
	p.subscribers = append(p.subscribers, s)
	return s
}

// Send delivers v to every subscriber, returning false if the publisher is
// already closed. Subscribers that have closed themselves are dropped.
func (p *Publisher[T]) Send(v T) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.sending.Add(1)
	defer p.sending.Done()
	// Copy the subscriber list so a slow subscriber doesn't block Subscribe.
	subscribers := make([]*Subscriber[T], len(p.subscribers))
	copy(subscribers, p.subscribers)
	p.mu.Unlock()

	for _, s := range subscribers {
		select {
		case s.ch <- v:
		case <-s.closed.Wait():
			p.unsubscribe(s)
		}
	}
	return true
}

// Close shuts the publisher down and closes every subscriber's channel once
// any in-flight Send has finished.
func (p *Publisher[T]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subscribers := p.subscribers
	p.subscribers = nil
	p.mu.Unlock()

	p.sending.Wait()
	for _, s := range subscribers {
		if s.closed.Set() {
			close(s.ch)
		}
	}
}

func (p *Publisher[T]) unsubscribe(target *Subscriber[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, s := range p.subscribers {
		if s == target {
			p.subscribers = append(p.subscribers[:i], p.subscribers[i+1:]...)
			return
		}
	}
}

// Subscriber[T] receives the values sent on its Publisher after Subscribe.
type Subscriber[T any] struct {
	ch     chan T
	closed sync_.Event
}

// Receive returns the channel values arrive on; it is closed when the
// publisher closes.
func (s *Subscriber[T]) Receive() <-chan T {
	return s.ch
}

// Close detaches the subscriber. Values already buffered may still be read.
func (s *Subscriber[T]) Close() {
	s.closed.Set()
}
