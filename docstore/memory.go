package docstore

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Store used by tests. It resolves the same
// sentinels the Mongo implementation does and can be told to fail its
// next writes to exercise the flush retry path.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
	failures    int
	failErr     error
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Document),
		now:         time.Now,
	}
}

// FailNext makes the next n mutating calls return err.
func (s *MemoryStore) FailNext(n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = n
	s.failErr = err
}

// SetClock overrides the server-timestamp clock.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) takeFailure() error {
	if s.failures > 0 {
		s.failures--
		return s.failErr
	}
	return nil
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]Document)
		s.collections[collection] = coll
	}
	doc := Document{"_id": id}
	s.applyFields(doc, data)
	coll[id] = doc
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *MemoryStore) UpdateFields(ctx context.Context, collection, id string, fields Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return err
	}
	doc, ok := s.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	s.applyFields(doc, fields)
	return nil
}

func (s *MemoryStore) QueryByField(ctx context.Context, collection, field string, value any, limit int64) ([]Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var docs []Document
	for _, doc := range s.collections[collection] {
		if lookupPath(doc, field) == value {
			docs = append(docs, cloneDoc(doc))
			if limit > 0 && int64(len(docs)) >= limit {
				break
			}
		}
	}
	return docs, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.takeFailure()
}

func (s *MemoryStore) applyFields(doc Document, fields Document) {
	for key, value := range fields {
		switch v := value.(type) {
		case IncrementValue:
			prev, _ := lookupPath(doc, key).(int64)
			setPath(doc, key, prev+v.Delta)
		case MaxValue:
			prev, _ := lookupPath(doc, key).(int64)
			if v.Candidate > prev {
				setPath(doc, key, v.Candidate)
			}
		case TimestampValue:
			setPath(doc, key, s.now())
		default:
			setPath(doc, key, value)
		}
	}
}

func setPath(doc Document, path string, value any) {
	parts := strings.Split(path, ".")
	for len(parts) > 1 {
		child, ok := doc[parts[0]].(Document)
		if !ok {
			if m, isMap := doc[parts[0]].(map[string]any); isMap {
				child = Document(m)
			} else {
				child = Document{}
			}
			doc[parts[0]] = child
		}
		doc = child
		parts = parts[1:]
	}
	doc[parts[0]] = value
}

func lookupPath(doc Document, path string) any {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, part := range parts {
		switch m := cur.(type) {
		case Document:
			cur = m[part]
		case map[string]any:
			cur = m[part]
		default:
			return nil
		}
	}
	return cur
}

func cloneDoc(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		switch child := v.(type) {
		case Document:
			out[k] = cloneDoc(child)
		case map[string]any:
			out[k] = cloneDoc(Document(child))
		default:
			out[k] = v
		}
	}
	return out
}
