package dedupe

import "sync"

// Entry is an accepted fingerprint together with the natural key
// ("source|source_id") of the record that produced it.
type Entry struct {
	Fingerprint uint64
	Key         string

	loaded bool
}

// Set holds the fingerprints accepted during one run. CheckAndAdd is atomic,
// so two near-identical records racing from different adapters cannot both
// be accepted.
type Set struct {
	mu        sync.Mutex
	threshold int
	all       []Entry
	added     []Entry

	// bucketed mode: each entry is filed under every one of its bands
	bands   []band
	buckets map[bandKey][]Entry
}

type band struct {
	shift uint
	mask  uint64
}

type bandKey struct {
	band  int
	value uint64
}

// NewSet creates a Set that treats fingerprints within threshold bits of
// each other as duplicates. When bucketed is true the 64 bits are split into
// threshold+1 bands; two fingerprints within the threshold must agree on at
// least one band, so only fingerprints sharing a band are compared.
func NewSet(threshold int, bucketed bool) *Set {
	s := &Set{threshold: threshold}
	if bucketed {
		s.bands = splitBands(threshold + 1)
		s.buckets = make(map[bandKey][]Entry)
	}
	return s
}

func splitBands(n int) []band {
	if n > 64 {
		n = 64
	}
	out := make([]band, 0, n)
	start := 0
	for i := range n {
		width := 64 / n
		if i < 64%n {
			width++
		}
		var mask uint64 = 1<<uint(width) - 1
		if width == 64 {
			mask = ^uint64(0)
		}
		out = append(out, band{shift: uint(start), mask: mask})
		start += width
	}
	return out
}

// CheckAndAdd reports whether fp is within the threshold of a fingerprint
// already in the set, returning that match. Otherwise fp is added under key.
// A loaded entry with the same key is the record itself seen in an earlier
// run, so it never counts as a match.
func (s *Set) CheckAndAdd(fp uint64, key string) (match uint64, dup bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if m, ok := s.find(fp, key); ok {
		return m.Fingerprint, true
	}
	e := Entry{Fingerprint: fp, Key: key}
	s.insert(e)
	s.added = append(s.added, e)
	return 0, false
}

// Load seeds the set with entries from earlier runs. They take part in
// comparisons but are not reported by Added.
func (s *Set) Load(entries []Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		e.loaded = true
		s.insert(e)
	}
}

// Added returns the entries accepted by CheckAndAdd, in order.
func (s *Set) Added() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.added))
	copy(out, s.added)
	return out
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.all)
}

func (s *Set) matches(e Entry, fp uint64, key string) bool {
	if e.loaded && key != "" && e.Key == key {
		return false
	}
	return Distance(fp, e.Fingerprint) <= s.threshold
}

func (s *Set) find(fp uint64, key string) (Entry, bool) {
	if s.buckets == nil {
		for _, other := range s.all {
			if s.matches(other, fp, key) {
				return other, true
			}
		}
		return Entry{}, false
	}
	for i, b := range s.bands {
		for _, other := range s.buckets[bandKey{band: i, value: (fp >> b.shift) & b.mask}] {
			if s.matches(other, fp, key) {
				return other, true
			}
		}
	}
	return Entry{}, false
}

func (s *Set) insert(e Entry) {
	s.all = append(s.all, e)
	for i, b := range s.bands {
		k := bandKey{band: i, value: (e.Fingerprint >> b.shift) & b.mask}
		s.buckets[k] = append(s.buckets[k], e)
	}
}
