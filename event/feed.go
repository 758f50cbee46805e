// Copyright 2025 The tongji-blockchain Authors
// This file is part of the tongji-blockchain library.
//
// The tongji-blockchain library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The tongji-blockchain library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the tongji-blockchain library. If not, see <http://www.gnu.org/licenses/>.

package event

import "sync"

// FeedOf implements one-to-many subscriptions where the carrier of events is
// a channel. Values sent to the feed are delivered to all subscribed
// channels.
//
// The zero value is ready to use.
type FeedOf[T any] struct {
	mu   sync.Mutex
	subs []*feedOfSub[T]
}

type feedOfSub[T any] struct {
	feed    *FeedOf[T]
	channel chan<- T
	once    sync.Once
	quit    chan struct{}
	err     chan error
}

// Subscribe adds a channel to the feed. Future sends will be delivered on
// the channel until the subscription is canceled. Send blocks on slow
// subscribers, so the channel usually has sufficient buffer or a dedicated
// drain goroutine.
func (f *FeedOf[T]) Subscribe(channel chan<- T) Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := &feedOfSub[T]{
		feed:    f,
		channel: channel,
		quit:    make(chan struct{}),
		err:     make(chan error, 1),
	}
	f.subs = append(f.subs, sub)
	return sub
}

// Send delivers to all subscribed channels simultaneously established at the
// time of the call. It returns the number of subscribers that the value was
// sent to. Unsubscribing during a blocked delivery releases that subscriber.
func (f *FeedOf[T]) Send(value T) (nsent int) {
	f.mu.Lock()
	targets := make([]*feedOfSub[T], len(f.subs))
	copy(targets, f.subs)
	f.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.channel <- value:
			nsent++
		case <-sub.quit:
		}
	}
	return nsent
}

func (f *FeedOf[T]) remove(sub *feedOfSub[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.subs {
		if s == sub {
			f.subs = append(f.subs[:i], f.subs[i+1:]...)
			return
		}
	}
}

func (sub *feedOfSub[T]) Unsubscribe() {
	sub.once.Do(func() {
		sub.feed.remove(sub)
		close(sub.quit)
		close(sub.err)
	})
}

func (sub *feedOfSub[T]) Err() <-chan error {
	return sub.err
}
