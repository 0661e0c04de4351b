package quotations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/reseller/internal/platform/db"
	"github.com/odyssey-erp/reseller/internal/shared"
)

const numberConstraint = "quotations_number_key"

var (
	ErrNotFound = fmt.Errorf("quotation %w", shared.ErrNotFound)
	// ErrDuplicateNumber reports that another quotation already holds the number.
	ErrDuplicateNumber = errors.New("quotation number already taken")
)

type Repository interface {
	Create(ctx context.Context, q Quotation) error
	Get(ctx context.Context, id uuid.UUID) (Quotation, error)
	GetByNumber(ctx context.Context, number string) (Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, validUntil time.Time) error
	SetRenderedDocument(ctx context.Context, id uuid.UUID, ref string) error
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PostgresRepository stores quotations and owns the quotation sequence.
type PostgresRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool}
}

const headerColumns = `q.id, q.number, q.customer_id, q.subtotal::float8, q.discount_percent::float8,
	q.tax_percent::float8, q.final_amount::float8, q.status, q.valid_until, q.notes, q.payment_terms,
	q.delivery_method, q.created_by, q.rendered_document_ref, q.created_at, q.updated_at`

// Create inserts the header and its items atomically.
func (r *PostgresRepository) Create(ctx context.Context, q Quotation) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotations (
				id, number, customer_id, subtotal, discount_percent, tax_percent, final_amount,
				status, valid_until, notes, payment_terms, delivery_method, created_by,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)`,
			q.ID, q.Number, q.ClientID, q.Subtotal, q.DiscountPercent, q.TaxPercent, q.FinalAmount,
			string(q.Status), q.ValidUntil, q.Notes, q.PaymentTerms, q.DeliveryMethod, q.CreatedBy,
			q.CreatedAt,
		)
		if err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for _, item := range q.Items {
			batch.Queue(`
				INSERT INTO quotation_items (
					quotation_id, position, kind, product_id, snapshot_name, snapshot_price,
					snapshot_description, snapshot_category, snapshot_subcategory, snapshot_brand,
					quantity, unit_price, discount_percent, subtotal
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
				q.ID, item.Position, string(item.Kind), item.ProductID, item.Snapshot.Name, item.Snapshot.Price,
				item.Snapshot.Description, item.Snapshot.Category, item.Snapshot.Subcategory, item.Snapshot.Brand,
				item.Quantity, item.UnitPrice, item.DiscountPercent, item.Subtotal,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if db.IsUniqueViolation(err, numberConstraint) {
		return fmt.Errorf("%w: %s", ErrDuplicateNumber, q.Number)
	}
	return err
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Quotation, error) {
	return r.getOne(ctx, `SELECT `+headerColumns+` FROM quotations q WHERE q.id = $1`, id)
}

func (r *PostgresRepository) GetByNumber(ctx context.Context, number string) (Quotation, error) {
	return r.getOne(ctx, `SELECT `+headerColumns+` FROM quotations q WHERE q.number = $1`, number)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg interface{}) (Quotation, error) {
	q, err := scanHeader(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	items, err := r.items(ctx, q.ID)
	if err != nil {
		return Quotation{}, err
	}
	q.Items = items
	return q, nil
}

func (r *PostgresRepository) items(ctx context.Context, id uuid.UUID) ([]LineItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT position, kind, product_id, snapshot_name, snapshot_price::float8, snapshot_description,
		       snapshot_category, snapshot_subcategory, snapshot_brand, quantity,
		       unit_price::float8, discount_percent::float8, subtotal::float8
		FROM quotation_items
		WHERE quotation_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var item LineItem
		var kind string
		if err := rows.Scan(
			&item.Position, &kind, &item.ProductID, &item.Snapshot.Name, &item.Snapshot.Price,
			&item.Snapshot.Description, &item.Snapshot.Category, &item.Snapshot.Subcategory,
			&item.Snapshot.Brand, &item.Quantity, &item.UnitPrice, &item.DiscountPercent, &item.Subtotal,
		); err != nil {
			return nil, err
		}
		item.Kind = ItemKind(kind)
		items = append(items, item)
	}
	return items, rows.Err()
}

// List returns one page of headers; items are loaded only by Get.
func (r *PostgresRepository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	add := func(cond string, v interface{}) {
		conditions = append(conditions, fmt.Sprintf(cond, argPos))
		args = append(args, v)
		argPos++
	}
	if req.ClientID != nil {
		add("q.customer_id = $%d", *req.ClientID)
	}
	if req.Status != nil {
		add("q.status = $%d", string(*req.Status))
	}
	if req.DateFrom != nil {
		add("q.created_at >= $%d", *req.DateFrom)
	}
	if req.DateTo != nil {
		add("q.created_at <= $%d", *req.DateTo)
	}
	if req.MinAmount != nil {
		add("q.final_amount >= $%d", *req.MinAmount)
	}
	if req.MaxAmount != nil {
		add("q.final_amount <= $%d", *req.MaxAmount)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM quotations q "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	column, ok := sortColumns[req.SortField]
	if !ok {
		column = sortColumns["created_at"]
	}
	dir := "DESC"
	if req.SortDir == "asc" {
		dir = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM quotations q %s ORDER BY %s %s, q.id %s LIMIT $%d OFFSET $%d`,
		headerColumns, whereClause, column, dir, dir, argPos, argPos+1)
	args = append(args, req.PageSize, req.offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotations := []Quotation{}
	for rows.Next() {
		q, err := scanHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		quotations = append(quotations, q)
	}
	return quotations, total, rows.Err()
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, validUntil time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET status = $2, valid_until = $3, updated_at = NOW()
		WHERE id = $1`, id, string(status), validUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) SetRenderedDocument(ctx context.Context, id uuid.UUID, ref string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE quotations SET rendered_document_ref = $2, updated_at = NOW()
		WHERE id = $1`, id, ref)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// NextSequence increments the named counter in a single statement.
func (r *PostgresRepository) NextSequence(ctx context.Context, key string) (int64, error) {
	var seq int64
	err := r.db.QueryRow(ctx, `
		INSERT INTO document_sequences (doc_type, seq, updated_at)
		VALUES ($1, 1, NOW())
		ON CONFLICT (doc_type)
		DO UPDATE SET seq = document_sequences.seq + 1, updated_at = NOW()
		RETURNING seq`, key).Scan(&seq)
	return seq, err
}

// SyncSequence raises the named counter to atLeast; a higher value is kept.
func (r *PostgresRepository) SyncSequence(ctx context.Context, key string, atLeast int64) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO document_sequences (doc_type, seq, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (doc_type)
		DO UPDATE SET seq = GREATEST(document_sequences.seq, EXCLUDED.seq), updated_at = NOW()`, key, atLeast)
	return err
}

// LatestNumber returns the number of the most recently created quotation.
func (r *PostgresRepository) LatestNumber(ctx context.Context) (string, bool, error) {
	var number string
	err := r.db.QueryRow(ctx, `SELECT number FROM quotations ORDER BY created_at DESC, number DESC LIMIT 1`).Scan(&number)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return number, true, nil
}

func scanHeader(row pgx.Row) (Quotation, error) {
	var q Quotation
	var status string
	err := row.Scan(
		&q.ID, &q.Number, &q.ClientID, &q.Subtotal, &q.DiscountPercent,
		&q.TaxPercent, &q.FinalAmount, &status, &q.ValidUntil, &q.Notes, &q.PaymentTerms,
		&q.DeliveryMethod, &q.CreatedBy, &q.RenderedDocumentRef, &q.CreatedAt, &q.UpdatedAt,
	)
	q.Status = Status(status)
	return q, err
}
