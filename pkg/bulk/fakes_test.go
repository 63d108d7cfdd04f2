package bulk

import (
	"context"
	"sort"
	"sync"

	"github.com/shishobooks/folio/pkg/advisor"
	"github.com/shishobooks/folio/pkg/models"
)

// memStore keeps records in a map. PutFunc, when set, runs before each put
// and can fail it.
type memStore struct {
	mu       sync.Mutex
	books    map[string]*models.Book
	settings map[string]string
	puts     []string

	PutFunc     func(b *models.Book) error
	ListAllFunc func() error
}

func newMemStore(books ...*models.Book) *memStore {
	s := &memStore{books: map[string]*models.Book{}, settings: map[string]string{}}
	for _, b := range books {
		s.books[b.ID] = b.Clone()
	}
	return s
}

func (s *memStore) ListAll(_ context.Context) ([]*models.Book, error) {
	if s.ListAllFunc != nil {
		if err := s.ListAllFunc(); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Book, 0, len(s.books))
	for _, b := range s.books {
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt > out[j].AddedAt })
	return out, nil
}

func (s *memStore) Put(_ context.Context, b *models.Book) error {
	if s.PutFunc != nil {
		if err := s.PutFunc(b); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.books[b.ID] = b.Clone()
	s.puts = append(s.puts, b.ID)
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.books, id)
	return nil
}

func (s *memStore) GetSetting(_ context.Context, key string) (*string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.settings[key]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (s *memStore) PutSetting(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[key] = value
	return nil
}

func (s *memStore) get(id string) *models.Book {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.books[id]
}

func (s *memStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.puts)
}

type fakeAdvisor struct {
	InferMetadataFunc    func(ctx context.Context, req advisor.InferRequest) (*advisor.Metadata, error)
	OrganizeFunc         func(ctx context.Context, books []advisor.BookSummary, instruction string) ([]advisor.OrganizeUpdate, error)
	SuggestGroupNameFunc func(ctx context.Context, books []advisor.BookSummary) (string, error)
}

func (f *fakeAdvisor) InferMetadata(ctx context.Context, req advisor.InferRequest) (*advisor.Metadata, error) {
	if f.InferMetadataFunc == nil {
		return nil, advisor.ErrUnavailable
	}
	return f.InferMetadataFunc(ctx, req)
}

func (f *fakeAdvisor) Organize(ctx context.Context, books []advisor.BookSummary, instruction string) ([]advisor.OrganizeUpdate, error) {
	if f.OrganizeFunc == nil {
		return nil, advisor.ErrUnavailable
	}
	return f.OrganizeFunc(ctx, books, instruction)
}

func (f *fakeAdvisor) SuggestGroupName(ctx context.Context, books []advisor.BookSummary) (string, error) {
	if f.SuggestGroupNameFunc == nil {
		return "", advisor.ErrUnavailable
	}
	return f.SuggestGroupNameFunc(ctx, books)
}
