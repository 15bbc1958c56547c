package ownership

// OrderedSet 是按插入顺序迭代的集合，保证同样的输入得到同样的输出顺序
type OrderedSet[T comparable] struct {
	index map[T]int
	items []T
}

func NewOrderedSet[T comparable]() *OrderedSet[T] {
	return &OrderedSet[T]{
		index: make(map[T]int),
		items: make([]T, 0),
	}
}

// Add 在元素不存在时追加到末尾，返回是否新增
func (s *OrderedSet[T]) Add(item T) bool {
	if _, exists := s.index[item]; exists {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	return true
}

func (s *OrderedSet[T]) AddAll(other *OrderedSet[T]) {
	for _, item := range other.items {
		s.Add(item)
	}
}

func (s *OrderedSet[T]) Contains(item T) bool {
	_, exists := s.index[item]
	return exists
}

func (s *OrderedSet[T]) Len() int {
	return len(s.items)
}

// Items 返回元素的副本
func (s *OrderedSet[T]) Items() []T {
	return append(make([]T, 0, len(s.items)), s.items...)
}

// Equal 按无序集合比较，只看大小和成员
func (s *OrderedSet[T]) Equal(other *OrderedSet[T]) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, item := range s.items {
		if !other.Contains(item) {
			return false
		}
	}
	return true
}
