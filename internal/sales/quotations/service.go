package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/reseller/internal/platform/mail"
	"github.com/odyssey-erp/reseller/internal/sales/customers"
	"github.com/odyssey-erp/reseller/internal/shared"
)

const pdfContentType = "application/pdf"

// CustomerLookup resolves the client a quotation is addressed to.
type CustomerLookup interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// Document is what the renderer turns into a file.
type Document struct {
	Quotation Quotation
	Customer  customers.Customer
}

// Renderer produces the PDF of a quotation.
type Renderer interface {
	RenderQuotation(ctx context.Context, doc Document) ([]byte, error)
}

// DocumentStore keeps rendered documents.
type DocumentStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	Get(ctx context.Context, key string) ([]byte, error)
}

// Mailer sends outbound email.
type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Metrics observes quotation creation.
type Metrics interface {
	QuotationCreated(source string)
	NumberConflict()
}

type Options struct {
	NumberAttempts int
	ValidityDays   int
	StoreTimeout   time.Duration
	Now            func() time.Time
}

type Deps struct {
	Repo      Repository
	Customers CustomerLookup
	Products  ProductLookup
	Allocator *Allocator
	Renderer  Renderer
	Documents DocumentStore
	Mailer    Mailer
	Metrics   Metrics
	Logger    *slog.Logger
}

type Service struct {
	repo      Repository
	customers CustomerLookup
	builder   ItemBuilder
	allocator *Allocator
	renderer  Renderer
	documents DocumentStore
	mailer    Mailer
	metrics   Metrics
	logger    *slog.Logger
	opts      Options
}

func NewService(deps Deps, opts Options) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if opts.NumberAttempts <= 0 {
		opts.NumberAttempts = 3
	}
	if opts.ValidityDays <= 0 {
		opts.ValidityDays = 15
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:      deps.Repo,
		customers: deps.Customers,
		builder:   NewItemBuilder(deps.Products),
		allocator: deps.Allocator,
		renderer:  deps.Renderer,
		documents: deps.Documents,
		mailer:    deps.Mailer,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		opts:      opts,
	}
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

// Create validates the request, snapshots the items and persists the
// quotation under a freshly allocated number. A number collision retries the
// allocation; the quotation is only numbered once it is stored.
func (s *Service) Create(ctx context.Context, req CreateQuotationRequest, createdBy int64) (Quotation, error) {
	if err := shared.ValidateStruct(req); err != nil {
		return Quotation{}, err
	}
	// Unset percents decode to zero.
	discount, tax := req.DiscountPercent.Value, req.TaxPercent.Value

	if _, err := s.customer(ctx, req.ClientID); err != nil {
		return Quotation{}, err
	}

	lookupCtx, cancel := s.storeCtx(ctx)
	items, err := s.builder.BuildAll(lookupCtx, req.Items)
	cancel()
	if err != nil {
		return Quotation{}, err
	}
	totals, err := ComputeTotals(items, discount, tax)
	if err != nil {
		return Quotation{}, err
	}

	now := s.opts.Now()
	validUntil := now.AddDate(0, 0, s.opts.ValidityDays)
	if req.ValidUntil != nil {
		validUntil = *req.ValidUntil
	}

	q := Quotation{
		ClientID:        req.ClientID,
		Items:           items,
		Subtotal:        totals.Subtotal,
		DiscountPercent: discount,
		TaxPercent:      tax,
		FinalAmount:     totals.FinalAmount,
		Status:          StatusDraft,
		ValidUntil:      validUntil,
		Notes:           strings.TrimSpace(req.Notes),
		PaymentTerms:    strings.TrimSpace(req.PaymentTerms),
		DeliveryMethod:  strings.TrimSpace(req.DeliveryMethod),
		CreatedBy:       createdBy,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	for attempt := 1; attempt <= s.opts.NumberAttempts; attempt++ {
		allocCtx, cancel := s.storeCtx(ctx)
		number, source := s.allocator.Next(allocCtx)
		cancel()

		candidate := q
		candidate.ID = uuid.New()
		candidate.Number = number

		writeCtx, cancel := s.storeCtx(ctx)
		err := s.repo.Create(writeCtx, candidate)
		cancel()
		if err == nil {
			if s.metrics != nil {
				s.metrics.QuotationCreated(source)
			}
			s.logger.Info("quotation created",
				slog.String("id", candidate.ID.String()),
				slog.String("number", candidate.Number),
				slog.String("number_source", source),
				slog.Float64("final_amount", candidate.FinalAmount),
			)
			return candidate, nil
		}
		if !errors.Is(err, ErrDuplicateNumber) {
			return Quotation{}, shared.Processing("create quotation", err)
		}
		if s.metrics != nil {
			s.metrics.NumberConflict()
		}
		s.logger.Warn("quotation number conflict",
			slog.String("number", number),
			slog.String("number_source", source),
			slog.Int("attempt", attempt),
		)
		syncCtx, cancel := s.storeCtx(ctx)
		if err := s.allocator.Resync(syncCtx); err != nil {
			s.logger.Warn("quotation counter resync failed", slog.Any("error", err))
		}
		cancel()
	}
	return Quotation{}, shared.Processing("create quotation",
		fmt.Errorf("no free quotation number after %d attempts", s.opts.NumberAttempts))
}

// List returns one page of quotations matching the filters.
func (s *Service) List(ctx context.Context, req ListQuotationsRequest) (ListResult, error) {
	req, err := req.Normalize()
	if err != nil {
		return ListResult{}, err
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	items, total, err := s.repo.List(storeCtx, req)
	if err != nil {
		return ListResult{}, shared.Processing("list quotations", err)
	}
	page := shared.NewPagination(req.Page, req.PageSize, total)
	return ListResult{
		Quotations: items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PerPage,
		Pages:      page.TotalPages,
	}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	q, err := s.repo.Get(storeCtx, id)
	if err != nil {
		return Quotation{}, shared.Processing("get quotation", err)
	}
	return q, nil
}

func (s *Service) GetByNumber(ctx context.Context, number string) (Quotation, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return Quotation{}, shared.Validationf("quotation number is required")
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	q, err := s.repo.GetByNumber(storeCtx, number)
	if err != nil {
		return Quotation{}, shared.Processing("get quotation by number", err)
	}
	return q, nil
}

// SetStatus moves a quotation to any known status.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, raw string) (Quotation, error) {
	target, err := ParseStatus(raw)
	if err != nil {
		return Quotation{}, err
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}

	now := s.opts.Now()
	from := ApplyStatus(&q, target, now)

	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.repo.UpdateStatus(storeCtx, id, q.Status, q.ValidUntil); err != nil {
		return Quotation{}, shared.Processing("update quotation status", err)
	}
	q.UpdatedAt = now
	s.logger.Info("quotation status changed",
		slog.String("number", q.Number),
		slog.String("from", string(from)),
		slog.String("to", string(q.Status)),
	)
	return q, nil
}

// RenderDocument returns the quotation's document, reusing the stored one
// while it still exists.
func (s *Service) RenderDocument(ctx context.Context, id uuid.UUID) (DocumentResult, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return DocumentResult{}, err
	}
	return s.render(ctx, q)
}

func (s *Service) render(ctx context.Context, q Quotation) (DocumentResult, error) {
	if s.renderer == nil || s.documents == nil {
		return DocumentResult{}, shared.Processing("render quotation", errors.New("document rendering is not configured"))
	}
	if q.RenderedDocumentRef != nil {
		storeCtx, cancel := s.storeCtx(ctx)
		exists, err := s.documents.Exists(storeCtx, *q.RenderedDocumentRef)
		cancel()
		if err == nil && exists {
			return DocumentResult{Ref: *q.RenderedDocumentRef, Reused: true}, nil
		}
		s.logger.Warn("rendered quotation missing, rendering again",
			slog.String("number", q.Number),
			slog.String("ref", *q.RenderedDocumentRef),
			slog.Any("error", err),
		)
	}

	customer, err := s.customer(ctx, q.ClientID)
	if err != nil {
		return DocumentResult{}, err
	}
	pdf, err := s.renderer.RenderQuotation(ctx, Document{Quotation: q, Customer: customer})
	if err != nil {
		return DocumentResult{}, shared.Processing("render quotation", err)
	}

	ref := fmt.Sprintf("quotations/%s/%s.pdf", q.Number, uuid.NewString())
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.documents.Put(storeCtx, ref, pdf, pdfContentType); err != nil {
		return DocumentResult{}, shared.Processing("store rendered quotation", err)
	}
	if err := s.repo.SetRenderedDocument(storeCtx, q.ID, ref); err != nil {
		return DocumentResult{}, shared.Processing("record rendered quotation", err)
	}
	s.logger.Info("quotation rendered", slog.String("number", q.Number), slog.String("ref", ref))
	return DocumentResult{Ref: ref}, nil
}

// DownloadDocument returns the PDF bytes and a file name for the quotation.
func (s *Service) DownloadDocument(ctx context.Context, id uuid.UUID) ([]byte, string, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	doc, err := s.render(ctx, q)
	if err != nil {
		return nil, "", err
	}
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	data, err := s.documents.Get(storeCtx, doc.Ref)
	if err != nil {
		return nil, "", shared.Processing("read rendered quotation", err)
	}
	return data, q.Number + ".pdf", nil
}

// ResolveRecipient returns the address a quotation is sent to: the explicit
// recipient, or the client's email.
func (s *Service) ResolveRecipient(ctx context.Context, id uuid.UUID, recipient string) (string, error) {
	if r := strings.TrimSpace(recipient); r != "" {
		return r, nil
	}
	q, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	customer, err := s.customer(ctx, q.ClientID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(customer.Email) == "" {
		return "", shared.Validationf("client %d has no email address, a recipient is required", customer.ID)
	}
	return customer.Email, nil
}

// DeliverDocument renders the quotation when needed and emails it.
func (s *Service) DeliverDocument(ctx context.Context, id uuid.UUID, recipient string) error {
	if s.mailer == nil {
		return shared.Processing("deliver quotation", errors.New("mail delivery is not configured"))
	}
	to, err := s.ResolveRecipient(ctx, id, recipient)
	if err != nil {
		return err
	}
	data, name, err := s.DownloadDocument(ctx, id)
	if err != nil {
		return err
	}
	number := strings.TrimSuffix(name, ".pdf")
	err = s.mailer.Send(ctx, mail.Message{
		To:       to,
		Subject:  "Quotation " + number,
		TextBody: fmt.Sprintf("Please find attached quotation %s.", number),
		Attachments: []mail.Attachment{
			{FileName: name, ContentType: pdfContentType, Content: data},
		},
	})
	if err != nil {
		return shared.Processing("send quotation email", err)
	}
	s.logger.Info("quotation delivered", slog.String("number", number), slog.String("to", to))
	return nil
}

func (s *Service) customer(ctx context.Context, id int64) (customers.Customer, error) {
	storeCtx, cancel := s.storeCtx(ctx)
	defer cancel()
	c, err := s.customers.Get(storeCtx, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return customers.Customer{}, shared.NotFoundf("client %d", id)
		}
		return customers.Customer{}, shared.Processing("load client", err)
	}
	return c, nil
}
