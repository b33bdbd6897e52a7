package store

// seenSet remembers the most recent message ids, evicting the oldest beyond capacity
type seenSet struct {
	capacity int
	ids      map[string]struct{}
	order    []string
	head     int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{
		capacity: capacity,
		ids:      make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

func (s *seenSet) has(id string) bool {
	_, ok := s.ids[id]
	return ok
}

// add records id; it is a no-op for ids already present
func (s *seenSet) add(id string) {
	if s.has(id) {
		return
	}
	if len(s.order) < s.capacity {
		s.order = append(s.order, id)
	} else {
		delete(s.ids, s.order[s.head])
		s.order[s.head] = id
		s.head = (s.head + 1) % s.capacity
	}
	s.ids[id] = struct{}{}
}

func (s *seenSet) len() int {
	return len(s.ids)
}
