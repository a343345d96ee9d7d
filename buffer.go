// buffer.go: AsyncChannel, a lock-free MPSC queue in front of a Channel
//
// Copyright (c) 2025 AGILira
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package charon

import (
	"context"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"
)

// Backpressure policies for AsyncChannel when its buffer is full.
const (
	BackpressureBlock = "block"
	BackpressureDrop  = "drop"
	BackpressureSync  = "sync"
)

// AsyncOptions configures an AsyncChannel.
type AsyncOptions struct {
	// BufferSize is the ring capacity, rounded up to a power of 2 (default 1024).
	BufferSize int

	// FlushInterval is how often the consumer drains the ring (default 1ms).
	FlushInterval time.Duration

	// Backpressure selects what Log does when the ring is full:
	// "block" (default) waits for room, "drop" discards the message,
	// "sync" writes it directly to the inner channel.
	Backpressure string

	// ErrorCallback receives errors from messages written by the consumer.
	ErrorCallback func(operation string, err error)
}

// AsyncChannel decouples callers from a blocking Channel: Log enqueues the
// message in a bounded ring buffer and a single consumer goroutine delivers
// it to the inner channel in order.
//
// Errors from delivered messages cannot be returned to the caller that
// logged them; they go to AsyncOptions.ErrorCallback.
type AsyncChannel struct {
	inner  Channel
	buffer *ringBuffer
	opts   AsyncOptions

	// deliverMu serializes calls into inner between the consumer and the
	// "sync" backpressure path.
	deliverMu sync.Mutex

	// stateMu keeps pushes from racing with Close.
	stateMu sync.RWMutex
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	dropped   atomic.Uint64
	delivered atomic.Uint64
}

var _ Channel = (*AsyncChannel)(nil)

// NewAsyncChannel starts the consumer goroutine for inner.
// Close must be called to stop it.
func NewAsyncChannel(inner Channel, opts AsyncOptions) *AsyncChannel {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Millisecond
	}
	if opts.Backpressure == "" {
		opts.Backpressure = BackpressureBlock
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &AsyncChannel{
		inner:  inner,
		buffer: newRingBuffer(uint64(opts.BufferSize)), // #nosec G115 -- BufferSize checked positive above
		opts:   opts,
		ctx:    ctx,
		cancel: cancel,
	}

	a.wg.Add(1)
	go a.run()
	return a
}

// Open opens the inner channel.
func (a *AsyncChannel) Open() error {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()
	return a.inner.Open()
}

// Log enqueues msg. It returns ErrClosed after Close.
func (a *AsyncChannel) Log(msg Message) error {
	a.stateMu.RLock()
	defer a.stateMu.RUnlock()

	if a.closed {
		return ErrClosed
	}
	if a.buffer.push(msg) {
		return nil
	}

	switch a.opts.Backpressure {
	case BackpressureDrop:
		a.dropped.Add(1)
		return nil
	case BackpressureSync:
		a.deliverMu.Lock()
		defer a.deliverMu.Unlock()
		return a.inner.Log(msg)
	default:
		for !a.buffer.push(msg) {
			time.Sleep(a.opts.FlushInterval)
		}
		return nil
	}
}

// Flush delivers every queued message before returning.
func (a *AsyncChannel) Flush() {
	a.drain()
}

// Close stops accepting messages, delivers the queued ones, stops the
// consumer and closes the inner channel. Later calls are no-ops.
func (a *AsyncChannel) Close() error {
	var err error
	a.closeOnce.Do(func() {
		a.stateMu.Lock()
		a.closed = true
		a.stateMu.Unlock()

		a.cancel()
		a.wg.Wait()

		a.deliverMu.Lock()
		defer a.deliverMu.Unlock()
		err = a.inner.Close()
	})
	return err
}

// Dropped returns how many messages the "drop" policy discarded.
func (a *AsyncChannel) Dropped() uint64 { return a.dropped.Load() }

// Delivered returns how many queued messages reached the inner channel.
func (a *AsyncChannel) Delivered() uint64 { return a.delivered.Load() }

// Pending returns the number of queued messages.
func (a *AsyncChannel) Pending() int { return a.buffer.len() }

func (a *AsyncChannel) run() {
	defer a.wg.Done()

	ticker := time.NewTicker(a.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			a.drain()
			return
		case <-ticker.C:
			a.drain()
		}
	}
}

// drain delivers queued messages until the ring is empty.
func (a *AsyncChannel) drain() int {
	a.deliverMu.Lock()
	defer a.deliverMu.Unlock()

	n := 0
	for {
		msg, ok := a.buffer.pop()
		if !ok {
			return n
		}
		if err := a.inner.Log(msg); err != nil && a.opts.ErrorCallback != nil {
			a.opts.ErrorCallback("async_log", err)
		}
		a.delivered.Add(1)
		n++
	}
}

// nextPow2 returns the next power of 2 greater than or equal to x
func nextPow2(x uint64) uint64 {
	if x <= 1 {
		return 1
	}
	return 1 << (64 - bits.LeadingZeros64(x-1))
}

// ringBuffer is a bounded multi-producer single-consumer queue.
// Producers reserve a slot by CAS on tail and publish into it; the consumer
// only advances head after the slot has been published.
type ringBuffer struct {
	slots []atomic.Pointer[Message]
	mask  uint64
	head  atomic.Uint64
	tail  atomic.Uint64
}

func newRingBuffer(size uint64) *ringBuffer {
	size = nextPow2(size)
	return &ringBuffer{
		slots: make([]atomic.Pointer[Message], size),
		mask:  size - 1,
	}
}

// push reports false when the ring is full.
func (rb *ringBuffer) push(msg Message) bool {
	size := uint64(len(rb.slots))
	for {
		head := rb.head.Load()
		tail := rb.tail.Load()
		if tail-head >= size {
			return false
		}
		if rb.tail.CompareAndSwap(tail, tail+1) {
			m := msg
			rb.slots[tail&rb.mask].Store(&m)
			return true
		}
	}
}

// pop must only be called by one goroutine at a time.
func (rb *ringBuffer) pop() (Message, bool) {
	head := rb.head.Load()
	if head >= rb.tail.Load() {
		return Message{}, false
	}
	slot := &rb.slots[head&rb.mask]
	p := slot.Load()
	if p == nil {
		// Reserved but not yet published
		return Message{}, false
	}
	slot.Store(nil)
	rb.head.Store(head + 1)
	return *p, true
}

func (rb *ringBuffer) len() int {
	head := rb.head.Load()
	tail := rb.tail.Load()
	return int(tail - head) // #nosec G115 -- bounded by the ring size
}
