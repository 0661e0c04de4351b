package quotations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/reseller/internal/sales/customers"
	"github.com/odyssey-erp/reseller/internal/shared"
)

func TestCreateQuotationComputesTotals(t *testing.T) {
	f := newFixture(newMemoryCounter())

	q, err := f.service.Create(context.Background(), sampleRequest(), 42)
	require.NoError(t, err)

	assert.Equal(t, "PRES-00001", q.Number)
	assert.NotEqual(t, uuid.Nil, q.ID)
	assert.Equal(t, StatusDraft, q.Status)
	assert.Equal(t, int64(42), q.CreatedBy)
	assert.Equal(t, fixedNow.AddDate(0, 0, 15), q.ValidUntil)

	require.Len(t, q.Items, 2)
	assert.Equal(t, 1, q.Items[0].Position)
	assert.Equal(t, ItemKindCatalog, q.Items[0].Kind)
	assert.Equal(t, 50000.0, q.Items[0].UnitPrice)
	assert.Equal(t, 90000.0, q.Items[0].Subtotal)
	assert.Equal(t, "Router AX", q.Items[0].Snapshot.Name)
	assert.Equal(t, 2, q.Items[1].Position)
	assert.Equal(t, ItemKindCustom, q.Items[1].Kind)
	assert.Nil(t, q.Items[1].ProductID)
	assert.Equal(t, 200000.0, q.Items[1].Subtotal)
	assert.Equal(t, 200000.0, q.Items[1].Snapshot.Price)

	assert.Equal(t, 290000.0, q.Subtotal)
	assert.Equal(t, 303050.0, q.FinalAmount)
	assert.Equal(t, 1, f.metrics.created[SourceCounter])
}

func TestCreateQuotationKeepsSnapshotAfterCatalogChange(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	changed := router()
	changed.Name = "Router AX (2027)"
	changed.Pricing.SellingPrice = 75000
	f.products.set(changed)

	stored, err := f.service.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "Router AX", stored.Items[0].Snapshot.Name)
	assert.Equal(t, 50000.0, stored.Items[0].Snapshot.Price)
	assert.Equal(t, 90000.0, stored.Items[0].Subtotal)
	assert.Equal(t, 303050.0, stored.FinalAmount)
}

func TestCreateQuotationNumbersAreUniqueUnderConcurrency(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	const workers = 40
	numbers := make([]string, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			q, err := f.service.Create(ctx, sampleRequest(), 1)
			numbers[i], errs[i] = q.Number, err
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := range numbers {
		require.NoError(t, errs[i])
		assert.False(t, seen[numbers[i]], "duplicate number %s", numbers[i])
		seen[numbers[i]] = true
	}
	assert.Len(t, seen, workers)
	assert.True(t, seen[fmt.Sprintf("PRES-%05d", workers)])
}

func TestCreateQuotationRetriesAfterNumberConflict(t *testing.T) {
	f := newFixture(&scriptedCounter{values: []int64{1, 1, 2}})
	ctx := context.Background()

	first, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)
	second, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	assert.Equal(t, "PRES-00001", first.Number)
	assert.Equal(t, "PRES-00002", second.Number)
	assert.Equal(t, 1, f.metrics.conflicts)
}

func TestCreateQuotationGivesUpAfterRepeatedConflicts(t *testing.T) {
	f := newFixture(&scriptedCounter{values: []int64{1, 1, 1, 1}})
	ctx := context.Background()

	_, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	_, err = f.service.Create(ctx, sampleRequest(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.Equal(t, 4, f.repo.creates)
	assert.Equal(t, 3, f.metrics.conflicts)
}

func TestCreateQuotationFallsBackToLatestNumber(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("connection refused")
	f := newFixture(counter)
	ctx := context.Background()

	first, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)
	second, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	assert.Equal(t, "PRES-00001", first.Number)
	assert.Equal(t, "PRES-00002", second.Number)
	assert.Equal(t, 2, f.metrics.fallbacks[SourceLatest])
	assert.Equal(t, 2, f.metrics.created[SourceLatest])
}

func TestCreateQuotationResyncsCounterAfterOutage(t *testing.T) {
	counter := newMemoryCounter()
	counter.err = errors.New("connection refused")
	f := newFixture(counter)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.service.Create(ctx, sampleRequest(), 1)
		require.NoError(t, err)
	}
	counter.mu.Lock()
	counter.err = nil
	counter.mu.Unlock()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, "PRES-00006", q.Number)
	assert.Equal(t, 1, f.metrics.conflicts)
	assert.Equal(t, 1, counter.syncs)

	q, err = f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)
	assert.Equal(t, "PRES-00007", q.Number)
	assert.Equal(t, 1, f.metrics.conflicts)
}

func TestCreateQuotationRejectsInvalidInput(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*CreateQuotationRequest)
		target error
	}{
		{"missing client", func(r *CreateQuotationRequest) { r.ClientID = 0 }, shared.ErrValidation},
		{"unknown client", func(r *CreateQuotationRequest) { r.ClientID = 99 }, shared.ErrNotFound},
		{"no items", func(r *CreateQuotationRequest) { r.Items = nil }, shared.ErrValidation},
		{"discount above 100", func(r *CreateQuotationRequest) { r.DiscountPercent = Num(150) }, shared.ErrValidation},
		{"negative tax", func(r *CreateQuotationRequest) { r.TaxPercent = Num(-1) }, shared.ErrValidation},
		{"unknown product", func(r *CreateQuotationRequest) { r.Items[0].ProductID = int64p(404) }, shared.ErrNotFound},
		{"item without source", func(r *CreateQuotationRequest) { r.Items[0] = ItemRequest{Quantity: Num(1)} }, shared.ErrValidation},
		{"fractional quantity", func(r *CreateQuotationRequest) { r.Items[0].Quantity = Num(1.5) }, shared.ErrValidation},
		{"NaN item discount", func(r *CreateQuotationRequest) { r.Items[0].DiscountPercent = Num(math.NaN()) }, shared.ErrValidation},
		{"infinite item price", func(r *CreateQuotationRequest) { r.Items[0].UnitPrice = Num(math.Inf(1)) }, shared.ErrValidation},
		{"NaN quote discount", func(r *CreateQuotationRequest) { r.DiscountPercent = Num(math.NaN()) }, shared.ErrValidation},
		{"infinite tax", func(r *CreateQuotationRequest) { r.TaxPercent = Num(math.Inf(1)) }, shared.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := sampleRequest()
			tt.mutate(&req)
			_, err := f.service.Create(ctx, req, 1)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
		})
	}
	assert.Zero(t, f.repo.creates)
}

func TestCreateQuotationRejectsNonFiniteJSON(t *testing.T) {
	f := newFixture(newMemoryCounter())
	var items []ItemRequest
	require.NoError(t, json.Unmarshal([]byte(`[{"snapshot":{"name":"Cable"},"quantity":1,"unit_price":"Inf","discount_percent":"NaN"}]`), &items))
	req := sampleRequest()
	req.Items = items

	var err error
	require.NotPanics(t, func() {
		_, err = f.service.Create(context.Background(), req, 1)
	})
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Zero(t, f.repo.creates)
}

func TestCreateQuotationStoreFailureIsProcessing(t *testing.T) {
	f := newFixture(newMemoryCounter())
	f.repo.createErr = errors.New("disk full")

	_, err := f.service.Create(context.Background(), sampleRequest(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.Equal(t, 1, f.repo.creates)
}

func TestCreateQuotationHonoursExplicitValidity(t *testing.T) {
	f := newFixture(newMemoryCounter())
	req := sampleRequest()
	until := fixedNow.AddDate(0, 1, 0)
	req.ValidUntil = &until
	req.Notes = "  deliver to site  "

	q, err := f.service.Create(context.Background(), req, 1)
	require.NoError(t, err)
	assert.Equal(t, until, q.ValidUntil)
	assert.Equal(t, "deliver to site", q.Notes)
}

func TestSetStatusExpiryClampsValidity(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	updated, err := f.service.SetStatus(ctx, q.ID, "EXPIRED")
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, updated.Status)
	assert.Equal(t, fixedNow, updated.ValidUntil)

	stored, err := f.service.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, fixedNow, stored.ValidUntil)
}

func TestSetStatusIsPermissive(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	for _, s := range []string{"converted", "draft", "sent", "accepted"} {
		updated, err := f.service.SetStatus(ctx, q.ID, s)
		require.NoError(t, err)
		assert.Equal(t, Status(s), updated.Status)
		assert.Equal(t, q.ValidUntil, updated.ValidUntil)
	}

	_, err = f.service.SetStatus(ctx, q.ID, "archived")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.service.SetStatus(ctx, uuid.New(), "sent")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGetByNumber(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	found, err := f.service.GetByNumber(ctx, " PRES-00001 ")
	require.NoError(t, err)
	assert.Equal(t, q.ID, found.ID)

	_, err = f.service.GetByNumber(ctx, "PRES-99999")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = f.service.GetByNumber(ctx, "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestListQuotationsPages(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.service.Create(ctx, sampleRequest(), 1)
		require.NoError(t, err)
	}

	result, err := f.service.List(ctx, ListQuotationsRequest{Page: 2, PageSize: 2, SortField: "number"})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 3, result.Pages)
	assert.Equal(t, 2, result.Page)
	require.Len(t, result.Quotations, 2)
	assert.Equal(t, "PRES-00003", result.Quotations[0].Number)
	assert.Empty(t, result.Quotations[0].Items)

	_, err = f.service.List(ctx, ListQuotationsRequest{SortField: "password"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestRenderDocumentReusesStoredArtifact(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()

	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	first, err := f.service.RenderDocument(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, first.Reused)
	assert.Contains(t, first.Ref, "quotations/PRES-00001/")

	second, err := f.service.RenderDocument(ctx, q.ID)
	require.NoError(t, err)
	assert.True(t, second.Reused)
	assert.Equal(t, first.Ref, second.Ref)
	assert.Equal(t, 1, f.renderer.calls)

	delete(f.documents.objects, first.Ref)
	third, err := f.service.RenderDocument(ctx, q.ID)
	require.NoError(t, err)
	assert.False(t, third.Reused)
	assert.NotEqual(t, first.Ref, third.Ref)
	assert.Equal(t, 2, f.renderer.calls)
}

func TestRenderDocumentFailureIsProcessing(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()
	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	f.renderer.err = errors.New("gotenberg: 503")
	_, err = f.service.RenderDocument(ctx, q.ID)
	assert.ErrorIs(t, err, shared.ErrProcessing)

	stored, err := f.service.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.RenderedDocumentRef)
}

func TestDownloadDocument(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()
	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	data, name, err := f.service.DownloadDocument(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "PRES-00001.pdf", name)
	assert.Equal(t, []byte("%PDF-PRES-00001"), data)
}

func TestResolveRecipient(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()
	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	to, err := f.service.ResolveRecipient(ctx, q.ID, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", to)

	to, err = f.service.ResolveRecipient(ctx, q.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "buyer@maju.example", to)

	req := sampleRequest()
	req.ClientID = 8
	noEmail, err := f.service.Create(ctx, req, 1)
	require.NoError(t, err)
	_, err = f.service.ResolveRecipient(ctx, noEmail.ID, "")
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeliverDocumentSendsAttachment(t *testing.T) {
	f := newFixture(newMemoryCounter())
	ctx := context.Background()
	q, err := f.service.Create(ctx, sampleRequest(), 1)
	require.NoError(t, err)

	require.NoError(t, f.service.DeliverDocument(ctx, q.ID, ""))
	require.Len(t, f.mailer.sent, 1)
	msg := f.mailer.sent[0]
	assert.Equal(t, "buyer@maju.example", msg.To)
	assert.Equal(t, "Quotation PRES-00001", msg.Subject)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "PRES-00001.pdf", msg.Attachments[0].FileName)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)

	require.NoError(t, f.service.DeliverDocument(ctx, q.ID, "other@example.com"))
	assert.Equal(t, 1, f.renderer.calls)
}

func TestStoreTimeoutSurfacesAsProcessing(t *testing.T) {
	f := newFixture(newMemoryCounter())
	f.service.customers = slowCustomers{}
	f.service.opts.StoreTimeout = 10 * time.Millisecond

	_, err := f.service.Create(context.Background(), sampleRequest(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrProcessing)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type slowCustomers struct{}

func (slowCustomers) Get(ctx context.Context, _ int64) (customers.Customer, error) {
	<-ctx.Done()
	return customers.Customer{}, ctx.Err()
}
