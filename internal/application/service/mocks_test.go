package service

import (
	"context"
	"errors"

	appwf "github.com/garyjia/travel-backoffice/internal/application/workflow"
	"github.com/garyjia/travel-backoffice/internal/domain/entity"
	domainwf "github.com/garyjia/travel-backoffice/internal/domain/workflow"
)

// mockGroupRepo keeps groups in memory unless a func field overrides a method
type mockGroupRepo struct {
	groups       map[int64]*entity.BenchmarkGroup
	nextID       int64
	createFunc   func(ctx context.Context, group *entity.BenchmarkGroup) error
	updateFunc   func(ctx context.Context, group *entity.BenchmarkGroup) error
	addEntryFunc func(ctx context.Context, entry *entity.BenchmarkEntry) error
	updated      int
}

func newMockGroupRepo(groups ...*entity.BenchmarkGroup) *mockGroupRepo {
	m := &mockGroupRepo{groups: make(map[int64]*entity.BenchmarkGroup), nextID: 100}
	for _, g := range groups {
		m.groups[g.ID] = g
	}
	return m
}

func (m *mockGroupRepo) Create(ctx context.Context, group *entity.BenchmarkGroup) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, group)
	}
	m.nextID++
	group.ID = m.nextID
	m.groups[group.ID] = group
	return nil
}

func (m *mockGroupRepo) GetByID(ctx context.Context, id int64) (*entity.BenchmarkGroup, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, nil
	}
	return clone(g), nil
}

func (m *mockGroupRepo) GetByIDs(ctx context.Context, ids []int64) ([]*entity.BenchmarkGroup, error) {
	var out []*entity.BenchmarkGroup
	for _, id := range ids {
		if g, ok := m.groups[id]; ok {
			out = append(out, clone(g))
		}
	}
	return out, nil
}

func (m *mockGroupRepo) Update(ctx context.Context, group *entity.BenchmarkGroup) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, group)
	}
	m.updated++
	m.groups[group.ID] = clone(group)
	return nil
}

func (m *mockGroupRepo) AddEntry(ctx context.Context, entry *entity.BenchmarkEntry) error {
	if m.addEntryFunc != nil {
		return m.addEntryFunc(ctx, entry)
	}
	g, ok := m.groups[entry.GroupID]
	if !ok {
		return errors.New("no such group")
	}
	m.nextID++
	entry.ID = m.nextID
	cp := *entry
	g.Entries = append(g.Entries, &cp)
	return nil
}

func (m *mockGroupRepo) UpdateEntryRate(ctx context.Context, entryID int64, rate float64) error {
	for _, g := range m.groups {
		if e := g.Entry(entryID); e != nil {
			e.ExchangeRate = rate
			return nil
		}
	}
	return errors.New("no such entry")
}

func (m *mockGroupRepo) SetReference(ctx context.Context, groupID, entryID int64) error {
	g, ok := m.groups[groupID]
	if !ok {
		return errors.New("no such group")
	}
	for _, e := range g.Entries {
		e.IsReference = e.ID == entryID
	}
	return nil
}

func (m *mockGroupRepo) List(ctx context.Context, limit, offset int) ([]*entity.BenchmarkGroup, error) {
	var out []*entity.BenchmarkGroup
	for _, g := range m.groups {
		out = append(out, g)
	}
	return out, nil
}

func clone(g *entity.BenchmarkGroup) *entity.BenchmarkGroup {
	cp := *g
	cp.Entries = make([]*entity.BenchmarkEntry, 0, len(g.Entries))
	for _, e := range g.Entries {
		ec := *e
		cp.Entries = append(cp.Entries, &ec)
	}
	if g.ClientLine != nil {
		cl := *g.ClientLine
		cp.ClientLine = &cl
	}
	return &cp
}

type mockQuoteRepo struct {
	createFunc func(ctx context.Context, q *entity.Quote) error
	quotes     map[int64]*entity.Quote
}

func (m *mockQuoteRepo) Create(ctx context.Context, q *entity.Quote) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, q)
	}
	if m.quotes == nil {
		m.quotes = make(map[int64]*entity.Quote)
	}
	q.ID = int64(len(m.quotes) + 1)
	m.quotes[q.ID] = q
	return nil
}

func (m *mockQuoteRepo) GetByID(ctx context.Context, id int64) (*entity.Quote, error) {
	return m.quotes[id], nil
}

func (m *mockQuoteRepo) GetByReference(ctx context.Context, reference string) (*entity.Quote, error) {
	for _, q := range m.quotes {
		if q.Reference == reference {
			return q, nil
		}
	}
	return nil, nil
}

func (m *mockQuoteRepo) List(ctx context.Context, limit, offset int) ([]*entity.Quote, error) {
	var out []*entity.Quote
	for _, q := range m.quotes {
		out = append(out, q)
	}
	return out, nil
}

type mockTxManager struct {
	calls int
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.calls++
	return fn(ctx)
}

type mockRateProvider struct {
	rateFunc func(ctx context.Context, from, to string) (float64, error)
}

func (m *mockRateProvider) Rate(ctx context.Context, from, to string) (float64, error) {
	return m.rateFunc(ctx, from, to)
}

type mockEngine struct {
	startFunc func(ctx context.Context, quoteID int64, actor string) (*domainwf.Record, error)
}

func (m *mockEngine) Start(ctx context.Context, quoteID int64, actor string) (*domainwf.Record, error) {
	if m.startFunc != nil {
		return m.startFunc(ctx, quoteID, actor)
	}
	rec := domainwf.Record{QuoteID: quoteID, State: domainwf.StateCreated}
	return &rec, nil
}

func (m *mockEngine) Transition(ctx context.Context, quoteID int64, cmd appwf.TransitionCommand) (*domainwf.Record, error) {
	return nil, errors.New("not used")
}

func (m *mockEngine) GetRecord(ctx context.Context, quoteID int64) (*domainwf.Record, error) {
	return nil, errors.New("not used")
}

func (m *mockEngine) PermittedTargets(ctx context.Context, quoteID int64) ([]domainwf.State, error) {
	return nil, errors.New("not used")
}

func (m *mockEngine) History(ctx context.Context, quoteID int64) ([]*entity.LifecycleHistory, error) {
	return nil, errors.New("not used")
}

type mockExporter struct {
	exportFunc func(ctx context.Context, q *entity.Quote, groups []*entity.BenchmarkGroup) ([]byte, error)
}

func (m *mockExporter) Export(ctx context.Context, q *entity.Quote, groups []*entity.BenchmarkGroup) ([]byte, error) {
	if m.exportFunc != nil {
		return m.exportFunc(ctx, q, groups)
	}
	return []byte("xlsx"), nil
}

func (m *mockExporter) FileName(q *entity.Quote) string {
	return q.Reference + ".xlsx"
}

func (m *mockExporter) ContentType() string {
	return "application/octet-stream"
}

type mockStore struct {
	saved map[string][]byte
}

func (m *mockStore) Save(ctx context.Context, path string, content []byte) error {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[path] = content
	return nil
}

func (m *mockStore) Read(ctx context.Context, path string) ([]byte, error) {
	return m.saved[path], nil
}

func (m *mockStore) Exists(ctx context.Context, path string) bool {
	_, ok := m.saved[path]
	return ok
}

type mockLogger struct{}

func (m *mockLogger) Info(msg string, keysAndValues ...interface{})  {}
func (m *mockLogger) Error(msg string, keysAndValues ...interface{}) {}
