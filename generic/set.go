package generic

// Set[T] is an unordered collection of unique items.
type Set[T comparable] map[T]Void

func NewSet[T comparable](items ...T) Set[T] {
	res := make(Set[T], len(items))
	for _, item := range items {
		res.Add(item)
	}
	return res
}

// Add returns true if the item was not already present.
func (s Set[T]) Add(item T) bool {
	if _, ok := s[item]; ok {
		return false
	}
	s[item] = Void{}
	return true
}

// Contains returns true only if every supplied item is present.
func (s Set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, ok := s[item]; !ok {
			return false
		}
	}
	return true
}

// Remove returns true if the item was present.
func (s Set[T]) Remove(item T) bool {
	if _, ok := s[item]; !ok {
		return false
	}
	delete(s, item)
	return true
}

func (s Set[T]) Count() int {
	return len(s)
}

func (s Set[T]) ToSlice() []T {
	res := make([]T, 0, len(s))
	for item := range s {
		res = append(res, item)
	}
	return res
}
