package crawler

import (
	"net/url"
	"sync"
)

// Frontier is the FIFO of pages still to visit. A URL enters the queue at most
// once per crawl, keyed on its normalised string form.
type Frontier struct {
	mu    sync.Mutex
	queue []*url.URL
	seen  map[string]struct{}
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{seen: make(map[string]struct{})}
}

// Push enqueues u unless it has been enqueued before. It reports whether u was added.
func (f *Frontier) Push(u *url.URL) bool {
	if u == nil {
		return false
	}
	key := u.String()

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.seen[key]; ok {
		return false
	}
	f.seen[key] = struct{}{}
	f.queue = append(f.queue, u)
	return true
}

// Pop removes and returns the oldest queued URL.
func (f *Frontier) Pop() (*url.URL, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return nil, false
	}
	u := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return u, true
}

// Len is the number of URLs waiting to be visited.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// Seen is the number of distinct URLs ever enqueued.
func (f *Frontier) Seen() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
