package aggregator

import "sort"

// DefaultFeedCapacity bounds the live request feed.
const DefaultFeedCapacity = 100

// feed is a bounded list of recent requests, newest first. While paused the
// visible list is frozen; new arrivals keep updating the live list and are
// revealed on resume.
type feed struct {
	live     []*entry
	frozen   []*entry
	capacity int
	// gen is bumped on every pause; entries pushed while paused carry it.
	gen    uint64
	paused bool
}

func newFeed(capacity int) *feed {
	if capacity <= 0 {
		capacity = DefaultFeedCapacity
	}
	return &feed{capacity: capacity}
}

// newer orders by timestamp, then by arrival.
func newer(a, b *entry) bool {
	if !a.rec.Timestamp.Equal(b.rec.Timestamp) {
		return a.rec.Timestamp.After(b.rec.Timestamp)
	}
	return a.seq > b.seq
}

func (f *feed) push(e *entry) {
	i := sort.Search(len(f.live), func(i int) bool { return newer(e, f.live[i]) })
	if i >= f.capacity {
		return
	}
	f.live = append(f.live, nil)
	copy(f.live[i+1:], f.live[i:])
	f.live[i] = e
	if len(f.live) > f.capacity {
		f.live = f.live[:f.capacity]
	}
	if f.paused {
		e.pauseGen = f.gen
	}
}

func (f *feed) remove(e *entry) {
	f.live = removeEntry(f.live, e)
	f.frozen = removeEntry(f.frozen, e)
}

func removeEntry(list []*entry, e *entry) []*entry {
	for i, x := range list {
		if x == e {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}

func (f *feed) setPaused(paused bool) {
	if paused == f.paused {
		return
	}
	f.paused = paused
	if paused {
		f.gen++
		f.frozen = append([]*entry(nil), f.live...)
	} else {
		f.frozen = nil
	}
}

// visible returns the entries the view should show.
func (f *feed) visible() []*entry {
	if f.paused {
		return f.frozen
	}
	return f.live
}

// pending counts live entries that arrived during the current pause.
// Replaced, evicted and trimmed entries no longer count.
func (f *feed) pending() int {
	if !f.paused {
		return 0
	}
	n := 0
	for _, e := range f.live {
		if e.pauseGen == f.gen {
			n++
		}
	}
	return n
}

func (f *feed) retain(keep func(*entry) bool) {
	f.live = filterEntries(f.live, keep)
	f.frozen = filterEntries(f.frozen, keep)
}

func filterEntries(list []*entry, keep func(*entry) bool) []*entry {
	out := list[:0]
	for _, e := range list {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func (f *feed) reset() {
	f.live = nil
	f.frozen = nil
}
