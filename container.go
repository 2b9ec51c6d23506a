package texload

// containerRef is the loader's bookkeeping for one registered bulk archive.
// All fields except the AsyncMutex are owner-goroutine only.
type containerRef struct {
	c Container

	// mu serializes Close against in-flight reads: a load routine holds the
	// lock across its archive read, and the deferred unload takes it before
	// closing.
	mu *AsyncMutex

	// consumers counts loads currently reading from (or resolved against)
	// this container.
	consumers int

	// scheduled and unloadAt implement the delayed unload: when the last
	// consumer finishes, the unload is scheduled graceFrames later instead
	// of running immediately, because closing synchronizes with background
	// I/O and is costly. A re-request before unloadAt cancels it.
	scheduled bool
	unloadAt  uint64

	// closing is set once the unload begins; the container is no longer a
	// valid load source after that.
	closing bool
}

// AddContainer registers a bulk archive as a load source. Loads name it via
// LoadOptions.Containers. Owner goroutine only.
func (l *Loader) AddContainer(c Container) {
	l.bridge.assertOwner("AddContainer")
	name := c.Name()
	if _, ok := l.containers[name]; ok {
		panic("texload: container registered twice: " + name)
	}
	l.containers[name] = &containerRef{c: c, mu: NewAsyncMutex()}
	Logger().Info("texload: container added", "name", name, "path", c.Path())
}

// resolveContainer finds the first named container holding key, claiming a
// consumer slot on it (which also cancels any scheduled unload). Owner
// goroutine only.
func (l *Loader) resolveContainer(names []string, key string) (ref *containerRef, off, n int64) {
	for _, name := range names {
		cr, ok := l.containers[name]
		if !ok || cr.closing {
			continue
		}
		if o, length, ok := cr.c.Entry(key); ok {
			cr.consumers++
			cr.scheduled = false
			return cr, o, length
		}
	}
	return nil, 0, 0
}

// releaseContainer returns a consumer slot. The last consumer does not
// unload the container; it schedules an unload after the grace period.
func (l *Loader) releaseContainer(ref *containerRef) {
	ref.consumers--
	if ref.consumers < 0 {
		panic("texload: container released more often than acquired")
	}
	if ref.consumers == 0 && !ref.closing {
		ref.scheduled = true
		ref.unloadAt = l.frame + l.cfg.graceFrames
		Logger().Debug("texload: container unload scheduled",
			"name", ref.c.Name(), "frame", ref.unloadAt)
	}
}

// runEvictions executes due container unloads: take the container's async
// mutex (waiting out any in-flight read), close the archive on a background
// worker, then unlock and forget it on the owner goroutine.
func (l *Loader) runEvictions() {
	for name, ref := range l.containers {
		if !ref.scheduled || ref.consumers != 0 || ref.closing || l.frame < ref.unloadAt {
			continue
		}
		ref.closing = true
		name, ref := name, ref
		lockFut := ref.mu.Lock()
		lockFut.OnDone(func() {
			token, err := lockFut.Result()
			if err != nil {
				return // mutex closed during teardown
			}
			l.cfg.scheduler.Submit(func() {
				closeErr := ref.c.Close()
				l.bridge.Post(func() {
					ref.mu.Unlock(token)
					ref.mu.Close()
					delete(l.containers, name)
					if closeErr != nil {
						Logger().Warn("texload: container close failed",
							"name", name, "err", closeErr)
					} else {
						Logger().Info("texload: container unloaded", "name", name)
					}
				})
			})
		})
	}
}
