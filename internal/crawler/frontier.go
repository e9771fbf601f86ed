package crawler

import "sync"

// pageRef is a queued page with its BFS depth from the root
type pageRef struct {
	URL   string
	Depth int
}

// frontier is a FIFO URL frontier with seen-set deduplication. It is safe
// for concurrent use by multiple goroutines. Page caps bound its memory.
type frontier struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	queue []pageRef
}

func newFrontier() *frontier {
	return &frontier{seen: make(map[string]struct{})}
}

// push adds a URL to the frontier. Returns false if the URL has already
// been seen. The URL must be normalized by the caller.
func (f *frontier) push(url string, depth int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, dup := f.seen[url]; dup {
		return false
	}
	f.seen[url] = struct{}{}
	f.queue = append(f.queue, pageRef{URL: url, Depth: depth})
	return true
}

// pop returns the next page in breadth-first order.
// The bool result is false if the frontier is empty.
func (f *frontier) pop() (pageRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return pageRef{}, false
	}
	ref := f.queue[0]
	f.queue = f.queue[1:]
	return ref, true
}

// seenCount returns the number of distinct URLs ever pushed
func (f *frontier) seenCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}
