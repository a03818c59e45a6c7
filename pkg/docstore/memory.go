package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemStore 进程内文档存储，契约与 MySQL 实现一致。
// 用于测试与本地开发；变更回调在 Publish 协程外同步触发，便于测试断言。
type MemStore struct {
	mu   sync.RWMutex
	data map[string]map[string]map[string]interface{}

	subMu  sync.Mutex
	nextID int
	subs   map[string]map[int]func(Event)
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string]map[string]map[string]interface{}),
		subs: make(map[string]map[int]func(Event)),
	}
}

var _ Store = (*MemStore)(nil)

func (s *MemStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	copied, err := normalize(doc)
	if err != nil {
		return nil, err
	}
	return &Document{ID: id, Data: copied}, nil
}

func (s *MemStore) Create(ctx context.Context, collection, id string, data map[string]interface{}) error {
	norm, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if _, ok := s.data[collection][id]; ok {
		s.mu.Unlock()
		return ErrAlreadyExists
	}
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]interface{})
	}
	s.data[collection][id] = norm
	s.mu.Unlock()
	s.notify(collection, id)
	return nil
}

func (s *MemStore) Set(ctx context.Context, collection, id string, data map[string]interface{}, merge bool) error {
	norm, err := normalize(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.data[collection] == nil {
		s.data[collection] = make(map[string]map[string]interface{})
	}
	existing, ok := s.data[collection][id]
	if merge && ok {
		s.data[collection][id] = mergePatch(existing, norm)
	} else {
		s.data[collection][id] = norm
	}
	s.mu.Unlock()
	s.notify(collection, id)
	return nil
}

func (s *MemStore) Update(ctx context.Context, collection, id string, fields map[string]interface{}) error {
	norm, err := normalize(fields)
	if err != nil {
		return err
	}
	s.mu.Lock()
	existing, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.data[collection][id] = mergePatch(existing, norm)
	s.mu.Unlock()
	s.notify(collection, id)
	return nil
}

func (s *MemStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	delete(s.data[collection], id)
	s.mu.Unlock()
	s.notify(collection, id)
	return nil
}

func (s *MemStore) Query(ctx context.Context, collection string, filters []Filter, opts ...QueryOption) ([]Document, error) {
	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.RLock()
	var docs []Document
	for id, data := range s.data[collection] {
		matched := true
		for _, f := range filters {
			if !matchFilter(data, f) {
				matched = false
				break
			}
		}
		if matched {
			copied, err := normalize(data)
			if err != nil {
				s.mu.RUnlock()
				return nil, err
			}
			docs = append(docs, Document{ID: id, Data: copied})
		}
	}
	s.mu.RUnlock()

	if o.orderBy != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			less := compareValues(lookupPath(docs[i].Data, o.orderBy), lookupPath(docs[j].Data, o.orderBy)) < 0
			if o.descending {
				return !less
			}
			return less
		})
	} else {
		// 无排序字段时按 ID 稳定排序，保证查询结果可复现
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	}
	if o.limit > 0 && len(docs) > o.limit {
		docs = docs[:o.limit]
	}
	return docs, nil
}

func (s *MemStore) Increment(ctx context.Context, collection, id, field string, delta float64) error {
	s.mu.Lock()
	doc, ok := s.data[collection][id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	parts := strings.Split(field, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := doc[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			doc[p] = next
		}
		doc = next
	}
	leaf := parts[len(parts)-1]
	current, _ := doc[leaf].(float64)
	doc[leaf] = current + delta
	s.mu.Unlock()
	s.notify(collection, id)
	return nil
}

func (s *MemStore) Subscribe(collection string, fn func(Event)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs[collection] == nil {
		s.subs[collection] = make(map[int]func(Event))
	}
	id := s.nextID
	s.nextID++
	s.subs[collection][id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs[collection], id)
	}
}

func (s *MemStore) notify(collection, id string) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs[collection]))
	for _, fn := range s.subs[collection] {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(Event{Collection: collection, ID: id})
	}
}

// mergePatch RFC 7386 合并语义：嵌套对象递归合并，null 删除字段，其余整体替换
func mergePatch(target, patch map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(target))
	for k, v := range target {
		out[k] = v
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		patchMap, pOK := v.(map[string]interface{})
		targetMap, tOK := out[k].(map[string]interface{})
		if pOK && tOK {
			out[k] = mergePatch(targetMap, patchMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func lookupPath(data map[string]interface{}, path string) interface{} {
	parts := strings.Split(path, ".")
	var current interface{} = data
	for _, p := range parts {
		m, ok := current.(map[string]interface{})
		if !ok {
			return nil
		}
		current = m[p]
	}
	return current
}

func matchFilter(data map[string]interface{}, f Filter) bool {
	got := lookupPath(data, f.Field)
	want := normalizeValue(f.Value)
	cmp := compareValues(got, want)
	switch f.Op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	}
	return false
}

func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	case bool, string, float64, nil:
		return val
	default:
		return val
	}
}

func compareValues(a, b interface{}) int {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	as, aStr := a.(string)
	bs, bStr := b.(string)
	if aStr && bStr {
		return strings.Compare(as, bs)
	}
	ab, aBool := a.(bool)
	bb, bBool := b.(bool)
	if aBool && bBool {
		switch {
		case ab == bb:
			return 0
		case bb:
			return -1
		default:
			return 1
		}
	}
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	return 1
}
