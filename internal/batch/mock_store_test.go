package batch

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/investor-resolver/internal/model"
	"github.com/sells-group/investor-resolver/internal/store"
)

type mockStore struct {
	mock.Mock
	limits store.Limits
}

var _ store.DocumentStore = (*mockStore)(nil)

func newMockStore(limits store.Limits) *mockStore {
	return &mockStore{limits: limits}
}

func docs(args mock.Arguments) []model.Document {
	d, _ := args.Get(0).([]model.Document)
	return d
}

func (m *mockStore) FetchAll(ctx context.Context, collection string, filter *store.Filter) ([]model.Document, error) {
	args := m.Called(ctx, collection, filter)
	return docs(args), args.Error(1)
}

func (m *mockStore) FetchByIDs(ctx context.Context, collection string, ids []string) ([]model.Document, error) {
	args := m.Called(ctx, collection, ids)
	return docs(args), args.Error(1)
}

func (m *mockStore) FetchByField(ctx context.Context, collection, field string, value any) ([]model.Document, error) {
	args := m.Called(ctx, collection, field, value)
	return docs(args), args.Error(1)
}

func (m *mockStore) WriteBatch(ctx context.Context, collection string, d []model.Document) ([]model.WriteOutcome, error) {
	args := m.Called(ctx, collection, d)
	out, _ := args.Get(0).([]model.WriteOutcome)
	return out, args.Error(1)
}

func (m *mockStore) GetCachedResult(context.Context, string) ([]byte, error) { return nil, nil }

func (m *mockStore) SetCachedResult(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (m *mockStore) DeleteExpiredResults(context.Context) (int, error) { return 0, nil }

func (m *mockStore) Limits() store.Limits { return m.limits }

func (m *mockStore) Ping(context.Context) error { return nil }

func (m *mockStore) Migrate(context.Context) error { return nil }

func (m *mockStore) Close() error { return nil }
