package terminal

import "context"

// dispatchLoop drains the notification queue and invokes callbacks one at a time,
// in queue order.
func (c *Core) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
		}

		for ctx.Err() == nil {
			ev, ok := c.events.Dequeue()
			if !ok {
				break
			}
			c.dispatch(ev)
		}
	}
}

func (c *Core) dispatch(ev event) {
	switch ev.kind {
	case readEvent:
		c.dispatchRead(ev.gen)
	case errorEvent:
		c.dispatchError(ev.gen, ev.err)
	case barrierEvent:
		close(ev.done)
	}
}

// admit reports whether a notification raised in generation gen may invoke a
// callback now. It shares the gate with Start, Stop and Close. On success the caller
// must call enter before invoking the callback, or when it decides not to invoke it.
func (c *Core) admit(gen uint64) bool {
	c.gate.Lock()
	ok := c.state.IsActive() && c.gen == gen
	c.starting = ok
	c.gate.Unlock()

	if ok && c.onAdmit != nil {
		c.onAdmit()
	}

	return ok
}

// enter marks the admitted callback as begun and releases a waiting Stop.
func (c *Core) enter() {
	c.gate.Lock()
	c.starting = false
	c.gate.Unlock()
	c.started.Broadcast()
}

// current reports whether gen is still the active generation, without admitting.
func (c *Core) current(gen uint64) bool {
	c.gate.Lock()
	defer c.gate.Unlock()

	return c.state.IsActive() && c.gen == gen
}

func (c *Core) dispatchRead(gen uint64) {
	// later deliveries of gen queue a fresh notification from here on
	c.readPending.CompareAndSwap(gen, 0)

	if !c.current(gen) {
		c.metrics.DiscardedEvents.Add(1)
		return
	}
	if c.readCb.Load() == nil {
		// bytes stay buffered for Read
		return
	}

	c.rxMu.Lock()
	start, data := c.rx.Snapshot(c.scratch[:0])
	c.rxMu.Unlock()
	c.scratch = data

	// an earlier notification or Read already took these bytes
	if len(data) == 0 {
		return
	}

	if !c.admit(gen) {
		c.metrics.DiscardedEvents.Add(1)
		return
	}

	cb := c.readCb.Load()
	if cb == nil {
		c.enter()
		return
	}

	var consumed bool
	if c.tasks.Recover("read callback", func() {
		c.enter()
		consumed = (*cb)(data)
	}) {
		c.metrics.CallbackPanics.Add(1)
	}
	c.metrics.ReadNotifyCount.Add(1)

	if consumed {
		c.rxMu.Lock()
		c.rx.DiscardTo(start + uint64(len(data)))
		c.rxMu.Unlock()
	}
}

func (c *Core) dispatchError(gen uint64, e Error) {
	if !c.admit(gen) {
		c.metrics.DiscardedEvents.Add(1)
		return
	}

	cb := c.errCb.Load()
	if cb == nil {
		c.enter()
		c.metrics.DiscardedEvents.Add(1)
		return
	}

	if c.tasks.Recover("error callback", func() {
		c.enter()
		(*cb)(e)
	}) {
		c.metrics.CallbackPanics.Add(1)
	}
	c.metrics.ErrorNotifyCount.Add(1)
}
