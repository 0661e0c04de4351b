package quotations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/reseller/internal/masterdata/products"
	"github.com/odyssey-erp/reseller/internal/platform/mail"
	"github.com/odyssey-erp/reseller/internal/sales/customers"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memoryRepo enforces number uniqueness the way the database constraint does.
type memoryRepo struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]Quotation
	numbers   map[string]uuid.UUID
	createErr error
	creates   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{byID: map[uuid.UUID]Quotation{}, numbers: map[string]uuid.UUID{}}
}

func (r *memoryRepo) Create(_ context.Context, q Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if _, taken := r.numbers[q.Number]; taken {
		return ErrDuplicateNumber
	}
	q.Items = append([]LineItem(nil), q.Items...)
	r.byID[q.ID] = q
	r.numbers[q.Number] = q.ID
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id uuid.UUID) (Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return Quotation{}, ErrNotFound
	}
	q.Items = append([]LineItem(nil), q.Items...)
	return q, nil
}

func (r *memoryRepo) GetByNumber(ctx context.Context, number string) (Quotation, error) {
	r.mu.Lock()
	id, ok := r.numbers[number]
	r.mu.Unlock()
	if !ok {
		return Quotation{}, ErrNotFound
	}
	return r.Get(ctx, id)
}

func (r *memoryRepo) List(_ context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []Quotation
	for _, q := range r.byID {
		if req.ClientID != nil && q.ClientID != *req.ClientID {
			continue
		}
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		q.Items = nil
		all = append(all, q)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Number < all[j].Number })
	total := len(all)
	start := req.offset()
	if start > total {
		start = total
	}
	end := start + req.PageSize
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *memoryRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status, validUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	q.ValidUntil = validUntil
	r.byID[id] = q
	return nil
}

func (r *memoryRepo) SetRenderedDocument(_ context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	q.RenderedDocumentRef = &ref
	r.byID[id] = q
	return nil
}

func (r *memoryRepo) LatestNumber(context.Context) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	latest := ""
	for n := range r.numbers {
		if n > latest {
			latest = n
		}
	}
	return latest, latest != "", nil
}

type memoryCounter struct {
	mu   sync.Mutex
	seqs  map[string]int64
	err   error
	syncs int
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{seqs: map[string]int64{}}
}

func (c *memoryCounter) NextSequence(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	c.seqs[key]++
	return c.seqs[key], nil
}

func (c *memoryCounter) SyncSequence(_ context.Context, key string, atLeast int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.syncs++
	if atLeast > c.seqs[key] {
		c.seqs[key] = atLeast
	}
	return nil
}

// scriptedCounter hands out a fixed sequence of values.
type scriptedCounter struct {
	mu     sync.Mutex
	values []int64
}

func (c *scriptedCounter) SyncSequence(context.Context, string, int64) error {
	return nil
}

func (c *scriptedCounter) NextSequence(context.Context, string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.values) == 0 {
		return 0, errors.New("counter exhausted")
	}
	v := c.values[0]
	c.values = c.values[1:]
	return v, nil
}

type fakeCustomers map[int64]customers.Customer

func (f fakeCustomers) Get(_ context.Context, id int64) (customers.Customer, error) {
	c, ok := f[id]
	if !ok {
		return customers.Customer{}, customers.ErrNotFound
	}
	return c, nil
}

type fakeProducts struct {
	mu    sync.Mutex
	items map[int64]products.Product
}

func newFakeProducts(items ...products.Product) *fakeProducts {
	f := &fakeProducts{items: map[int64]products.Product{}}
	for _, p := range items {
		f.items[p.ID] = p
	}
	return f
}

func (f *fakeProducts) Get(_ context.Context, id int64) (products.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.items[id]
	if !ok {
		return products.Product{}, products.ErrNotFound
	}
	return p, nil
}

func (f *fakeProducts) set(p products.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[p.ID] = p
}

type countingRenderer struct {
	calls int
	err   error
}

func (r *countingRenderer) RenderQuotation(_ context.Context, doc Document) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return []byte("%PDF-" + doc.Quotation.Number), nil
}

type memoryDocuments struct {
	objects map[string][]byte
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{objects: map[string][]byte{}}
}

func (d *memoryDocuments) Put(_ context.Context, key string, data []byte, _ string) error {
	d.objects[key] = data
	return nil
}

func (d *memoryDocuments) Exists(_ context.Context, key string) (bool, error) {
	_, ok := d.objects[key]
	return ok, nil
}

func (d *memoryDocuments) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := d.objects[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return data, nil
}

type capturedMail struct {
	sent []mail.Message
}

func (m *capturedMail) Send(_ context.Context, msg mail.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type recordedMetrics struct {
	mu        sync.Mutex
	created   map[string]int
	conflicts int
	fallbacks map[string]int
}

func newRecordedMetrics() *recordedMetrics {
	return &recordedMetrics{created: map[string]int{}, fallbacks: map[string]int{}}
}

func (m *recordedMetrics) QuotationCreated(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created[source]++
}

func (m *recordedMetrics) NumberConflict() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *recordedMetrics) SequenceFallback(source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallbacks[source]++
}

type fixture struct {
	repo      *memoryRepo
	counter   Counter
	products  *fakeProducts
	renderer  *countingRenderer
	documents *memoryDocuments
	mailer    *capturedMail
	metrics   *recordedMetrics
	service   *Service
}

func router() products.Product {
	return products.Product{
		ID: 1, Name: "Router AX", Category: "Networking", Brand: "Cisco",
		Pricing: products.Pricing{SellingPrice: 50000},
	}
}

func switchProduct() products.Product {
	return products.Product{
		ID: 2, Name: "Switch 24p", Category: "Networking", Brand: "HP",
		Pricing: products.Pricing{SellingPrice: 100000},
	}
}

func newFixture(counter Counter) *fixture {
	f := &fixture{
		repo:      newMemoryRepo(),
		counter:   counter,
		products:  newFakeProducts(router(), switchProduct()),
		renderer:  &countingRenderer{},
		documents: newMemoryDocuments(),
		mailer:    &capturedMail{},
		metrics:   newRecordedMetrics(),
	}
	allocator := NewAllocator("PRES", counter, f.repo, f.metrics, discardLogger())
	allocator.now = func() time.Time { return fixedNow }
	f.service = NewService(Deps{
		Repo: f.repo,
		Customers: fakeCustomers{
			7: {ID: 7, Name: "PT Maju", Email: "buyer@maju.example"},
			8: {ID: 8, Name: "CV Tanpa Email"},
		},
		Products:  f.products,
		Allocator: allocator,
		Renderer:  f.renderer,
		Documents: f.documents,
		Mailer:    f.mailer,
		Metrics:   f.metrics,
		Logger:    discardLogger(),
	}, Options{Now: func() time.Time { return fixedNow }})
	return f
}

func int64p(v int64) *int64 { return &v }

func sampleRequest() CreateQuotationRequest {
	return CreateQuotationRequest{
		ClientID: 7,
		Items: []ItemRequest{
			{ProductID: int64p(1), Quantity: Num(2), DiscountPercent: Num(10)},
			{Snapshot: &SnapshotRequest{Name: "Installation"}, Quantity: Num(1), UnitPrice: Num(200000)},
		},
		DiscountPercent: Num(5),
		TaxPercent:      Num(10),
	}
}
