package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validate = validator.New()

type ItemInput struct {
	ClothingItemID string `json:"clothing_item_id"`
	Quantity       int    `json:"quantity"`
}

type PlaceOrderInput struct {
	PickupDate time.Time   `json:"pickup_date"`
	Notes      string      `json:"notes"`
	Items      []ItemInput `json:"items"`
}

// StatusPatch is the per-transition side-effect data written together with
// the status field. Nil pointer fields leave the column untouched.
type StatusPatch struct {
	Status       Status
	WorkerID     *string
	DeliveryDate *time.Time
	Notes        *string
	// ReleaseWash returns the reserved wash to the student's quota
	// (cancellations only).
	ReleaseWash bool
}

type Contact struct {
	Email string
	Name  string
}

type Repo struct{ DB *pgxpool.Pool }

const viewColumns = `
	o.id, o.student_id, o.status, o.total_cents, o.pickup_date, o.delivery_date,
	o.notes, o.worker_id, o.created_at, o.updated_at,
	p.full_name, p.gender, p.hostel, p.floor, p.washes_left, p.total_washes`

// ListViews returns denormalized order views for the given statuses, most
// recent first. A missing or malformed student relation degrades to the
// fallback student; a failed item fetch degrades to nil items. Neither drops
// the order from the result.
func (r *Repo) ListViews(ctx context.Context, statuses ...Status) ([]OrderView, error) {
	ss := make([]string, 0, len(statuses))
	for _, s := range statuses {
		ss = append(ss, string(s))
	}
	rows, err := r.DB.Query(ctx, `
		SELECT `+viewColumns+`
		FROM orders o
		LEFT JOIN profiles p ON p.id = o.student_id
		WHERE o.status::text = ANY($1)
		ORDER BY o.created_at DESC`, ss)
	if err != nil {
		return nil, err
	}
	views, err := scanViews(rows)
	if err != nil {
		return nil, err
	}
	r.attachItems(ctx, views)
	return views, nil
}

// ListByStudent returns one student's order history, most recent first.
func (r *Repo) ListByStudent(ctx context.Context, studentID string) ([]OrderView, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+viewColumns+`
		FROM orders o
		LEFT JOIN profiles p ON p.id = o.student_id
		WHERE o.student_id = $1
		ORDER BY o.created_at DESC`, studentID)
	if err != nil {
		return nil, err
	}
	views, err := scanViews(rows)
	if err != nil {
		return nil, err
	}
	r.attachItems(ctx, views)
	return views, nil
}

func scanViews(rows pgx.Rows) ([]OrderView, error) {
	defer rows.Close()
	views := []OrderView{}
	for rows.Next() {
		var (
			v                            OrderView
			fullName, gender, hostel, fl *string
			washesLeft, totalWashes      *int
		)
		if err := rows.Scan(
			&v.ID, &v.StudentID, &v.Status, &v.TotalCents, &v.PickupDate, &v.DeliveryDate,
			&v.Notes, &v.WorkerID, &v.CreatedAt, &v.UpdatedAt,
			&fullName, &gender, &hostel, &fl, &washesLeft, &totalWashes,
		); err != nil {
			return nil, err
		}
		v.Student = studentOrFallback(fullName, gender, hostel, fl, washesLeft, totalWashes)
		views = append(views, v)
	}
	return views, rows.Err()
}

// studentOrFallback validates the joined profile columns against the Student
// shape and substitutes the fallback record when the relation is absent or
// structurally invalid.
func studentOrFallback(fullName, gender, hostel, floor *string, washesLeft, totalWashes *int) Student {
	s := Student{
		FullName: deref(fullName),
		Gender:   deref(gender),
		Hostel:   deref(hostel),
		Floor:    deref(floor),
	}
	if washesLeft != nil {
		s.WashesLeft = *washesLeft
	}
	if totalWashes != nil {
		s.TotalWashes = *totalWashes
	}
	if err := validate.Struct(s); err != nil {
		return FallbackStudent()
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (r *Repo) attachItems(ctx context.Context, views []OrderView) {
	for i := range views {
		items, err := r.listItems(ctx, views[i].ID)
		if err != nil {
			// partial data beats dropped data
			continue
		}
		views[i].Items = items
	}
}

func (r *Repo) listItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.quantity, oi.price_cents,
		       ci.id, ci.name, ci.price_cents, COALESCE(ci.description, ''), ci.gender
		FROM order_items oi
		JOIN clothing_items ci ON ci.id = oi.clothing_item_id
		WHERE oi.order_id = $1`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(
			&it.ID, &it.Quantity, &it.PriceCents,
			&it.Item.ID, &it.Item.Name, &it.Item.PriceCents, &it.Item.Description, &it.Item.Gender,
		); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// Create places a new pending order and reserves one wash from the student's
// quota in the same transaction. Prices come from the catalog, never from
// the client.
func (r *Repo) Create(ctx context.Context, studentID string, in PlaceOrderInput) (orderID string, total int, err error) {
	if len(in.Items) == 0 {
		return "", 0, fmt.Errorf("%w: no items", ErrBadInput)
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var washesLeft int
	err = tx.QueryRow(ctx, `
		SELECT washes_left FROM profiles
		WHERE id = $1 AND role = 'student' FOR UPDATE`, studentID).Scan(&washesLeft)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, fmt.Errorf("%w: unknown student %s", ErrBadInput, studentID)
	}
	if err != nil {
		return "", 0, err
	}
	if washesLeft <= 0 {
		return "", 0, ErrNoWashesLeft
	}

	ids := make([]string, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return "", 0, fmt.Errorf("%w: invalid quantity for item %s", ErrBadInput, it.ClothingItemID)
		}
		ids = append(ids, it.ClothingItemID)
	}
	rows, err := tx.Query(ctx, `SELECT id, price_cents FROM clothing_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return "", 0, err
	}
	prices := map[string]int{}
	for rows.Next() {
		var id string
		var price int
		if err := rows.Scan(&id, &price); err != nil {
			rows.Close()
			return "", 0, err
		}
		prices[id] = price
	}
	if err := rows.Err(); err != nil {
		return "", 0, err
	}

	for _, it := range in.Items {
		price, ok := prices[it.ClothingItemID]
		if !ok {
			return "", 0, fmt.Errorf("%w: clothing item not found: %s", ErrBadInput, it.ClothingItemID)
		}
		total += price * it.Quantity
	}

	pickup := in.PickupDate
	if pickup.IsZero() {
		pickup = time.Now().UTC()
	}
	var notes *string
	if in.Notes != "" {
		notes = &in.Notes
	}

	orderID = uuid.NewString()
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, student_id, status, total_cents, pickup_date, notes)
		VALUES ($1, $2, 'pending', $3, $4, $5)`,
		orderID, studentID, total, pickup, notes)
	if err != nil {
		return "", 0, err
	}

	for _, it := range in.Items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items (id, order_id, clothing_item_id, quantity, price_cents)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), orderID, it.ClothingItemID, it.Quantity, prices[it.ClothingItemID])
		if err != nil {
			return "", 0, err
		}
	}

	_, err = tx.Exec(ctx, `UPDATE profiles SET washes_left = washes_left - 1 WHERE id = $1`, studentID)
	if err != nil {
		return "", 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", 0, err
	}
	return orderID, total, nil
}

func (r *Repo) Get(ctx context.Context, orderID string) (*Order, error) {
	var o Order
	err := r.DB.QueryRow(ctx, `
		SELECT id, student_id, status, total_cents, pickup_date, delivery_date,
		       notes, worker_id, created_at, updated_at
		FROM orders WHERE id = $1`, orderID).Scan(
		&o.ID, &o.StudentID, &o.Status, &o.TotalCents, &o.PickupDate, &o.DeliveryDate,
		&o.Notes, &o.WorkerID, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// UpdateStatus applies a status patch to exactly one row by primary key.
// Anything other than one updated row fails the whole transaction.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, p StatusPatch) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $2,
		    worker_id = COALESCE($3, worker_id),
		    delivery_date = COALESCE($4, delivery_date),
		    notes = COALESCE($5, notes),
		    updated_at = now()
		WHERE id = $1`,
		orderID, p.Status, p.WorkerID, p.DeliveryDate, p.Notes)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrNotFound
	}

	if p.ReleaseWash {
		_, err = tx.Exec(ctx, `
			UPDATE profiles p
			SET washes_left = LEAST(p.washes_left + 1, p.total_washes)
			FROM orders o
			WHERE o.id = $1 AND p.id = o.student_id`, orderID)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// StudentContact resolves the email address and display name for the
// completion notification.
func (r *Repo) StudentContact(ctx context.Context, studentID string) (Contact, error) {
	var c Contact
	err := r.DB.QueryRow(ctx,
		`SELECT email, full_name FROM profiles WHERE id = $1`, studentID).Scan(&c.Email, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, err
	}
	return c, nil
}

func (r *Repo) Catalog(ctx context.Context) ([]ClothingItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, COALESCE(description, ''), gender
		FROM clothing_items ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClothingItem
	for rows.Next() {
		var ci ClothingItem
		if err := rows.Scan(&ci.ID, &ci.Name, &ci.PriceCents, &ci.Description, &ci.Gender); err != nil {
			return nil, err
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}
