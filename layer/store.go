package layer

import "sync"

// Store 是会话内的有序图层集合，顺序即绘制顺序（靠后的在上层）。
// 每次修改都整体替换对应记录，读者拿到的快照不会看到半途的修改。
type Store struct {
	mu     sync.RWMutex
	layers []TextLayer
}

// NewStore 创建空的图层集合。
func NewStore() *Store { return &Store{} }

// Add 以 max+1 规则分配 id，追加一个默认图层并返回它。
func (s *Store) Add() TextLayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := Default(NextID(s.layers))
	s.layers = append(s.layers, l)
	return l
}

// Update 对匹配 id 的图层依次应用修改；id 不存在时不做任何事并返回 false。
func (s *Store) Update(id int, updates ...Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	next := make([]TextLayer, len(s.layers))
	copy(next, s.layers)
	next[idx] = Apply(next[idx], updates...)
	s.layers = next
	return true
}

// UpdateAttribute 是字符串边界上的修改入口（场景文件、终端界面）。
// 属性名会被校验；id 不存在时与 Update 一样静默忽略。
func (s *Store) UpdateAttribute(id int, name, value string) error {
	u, err := ParseUpdate(name, value)
	if err != nil {
		return err
	}
	s.Update(id, u)
	return nil
}

// Duplicate 复制匹配的图层并以新 id 追加到末尾，原图层保持不变。
func (s *Store) Duplicate(id int) (TextLayer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return TextLayer{}, false
	}
	dup := s.layers[idx]
	dup.ID = NextID(s.layers)
	s.layers = append(s.layers, dup)
	return dup, true
}

// Remove 删除第一个匹配 id 的图层，其余图层顺序不变。
func (s *Store) Remove(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return false
	}
	next := make([]TextLayer, 0, len(s.layers)-1)
	next = append(next, s.layers[:idx]...)
	next = append(next, s.layers[idx+1:]...)
	s.layers = next
	return true
}

// Get 返回指定 id 的图层。
func (s *Store) Get(id int) (TextLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexOf(id)
	if idx < 0 {
		return TextLayer{}, false
	}
	return s.layers[idx], true
}

// Layers 返回按绘制顺序排列的快照。
func (s *Store) Layers() []TextLayer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TextLayer, len(s.layers))
	copy(out, s.layers)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.layers)
}

// Reset 清空所有图层，下一次 Add 会重新从 1 开始分配。
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layers = nil
}

func (s *Store) indexOf(id int) int {
	for i, l := range s.layers {
		if l.ID == id {
			return i
		}
	}
	return -1
}
