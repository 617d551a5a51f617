package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/cabinbook/cabinbook/libs/db"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/model"
	"github.com/cabinbook/cabinbook/services/booking-service/internal/outbox"
)

// Postgres enforces the per-SlotKey uniqueness invariant with a partial
// unique index on bookings (cabin_id, day, shift) WHERE status <> 'cancelled'
// (see migrations/0001_init.sql). The index makes ReserveSlot linearizable
// per SlotKey across any number of processes.
type Postgres struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewPostgres(pool *db.Pool, outboxRepo *outbox.Repository) *Postgres {
	return &Postgres{pool: pool, outbox: outboxRepo}
}

var _ Store = (*Postgres)(nil)

func (s *Postgres) CreateCabin(ctx context.Context, cabin *model.Cabin) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cabins (id, location_id, owner_id, name, default_price, open_morning, open_afternoon, open_evening, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, cabin.ID, cabin.LocationID, cabin.OwnerID, cabin.Name, cabin.DefaultPrice.String(),
		cabin.OpenMorning, cabin.OpenAfternoon, cabin.OpenEvening, cabin.CreatedAt)
	return err
}

func (s *Postgres) GetCabin(ctx context.Context, id string) (model.Cabin, error) {
	var c model.Cabin
	var price string
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, location_id::text, owner_id::text, name, default_price::text,
			open_morning, open_afternoon, open_evening, created_at
		FROM cabins
		WHERE id = $1
	`, id).Scan(&c.ID, &c.LocationID, &c.OwnerID, &c.Name, &price,
		&c.OpenMorning, &c.OpenAfternoon, &c.OpenEvening, &c.CreatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.Cabin{}, model.ErrNotFound
		}
		return model.Cabin{}, err
	}
	c.DefaultPrice, err = decimal.NewFromString(price)
	if err != nil {
		return model.Cabin{}, err
	}
	return c, nil
}

func (s *Postgres) ReserveSlot(ctx context.Context, booking *model.Booking, events []outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, cabin_id, professional_id, day, shift, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, booking.ID, booking.CabinID, booking.ProfessionalID, booking.Day, string(booking.Shift),
		booking.Price.String(), string(booking.Status), booking.CreatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.ErrConflict
		}
		return err
	}

	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	b, err := s.scanBookingRow(s.pool.QueryRow(ctx, bookingSelect+` WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, model.ErrNotFound
		}
		return model.Booking{}, err
	}
	return b, nil
}

func (s *Postgres) CancelBooking(ctx context.Context, id string, cancelledAt time.Time, events []outbox.Event) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled', cancelled_at = $2
		WHERE id = $1 AND status <> 'cancelled'
	`, id, cancelledAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return model.ErrNotFound
		}
		return model.ErrInvalidState
	}

	for _, evt := range events {
		if err := s.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *Postgres) ActiveBooking(ctx context.Context, key model.SlotKey) (model.Booking, bool, error) {
	b, err := s.scanBookingRow(s.pool.QueryRow(ctx, bookingSelect+`
		WHERE cabin_id = $1 AND day = $2 AND shift = $3 AND status <> 'cancelled'
	`, key.CabinID, key.Day, string(key.Shift)))
	if err != nil {
		if IsNotFound(err) {
			return model.Booking{}, false, nil
		}
		return model.Booking{}, false, err
	}
	return b, true, nil
}

func (s *Postgres) ListActiveBookings(ctx context.Context, cabinID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, bookingSelect+`
		WHERE cabin_id = $1 AND day >= $2 AND day <= $3 AND status <> 'cancelled'
		ORDER BY day, shift
	`, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func (s *Postgres) ListBookingsByProfessional(ctx context.Context, professionalID string, from, to time.Time) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, bookingSelect+`
		WHERE professional_id = $1 AND day >= $2 AND day <= $3
		ORDER BY day, shift
	`, professionalID, from, to)
	if err != nil {
		return nil, err
	}
	return scanBookings(rows)
}

func (s *Postgres) GetManualOverride(ctx context.Context, key model.SlotKey) (model.ManualOverride, bool, error) {
	var o model.ManualOverride
	err := s.pool.QueryRow(ctx, `
		SELECT cabin_id::text, day, shift, closed, updated_at
		FROM manual_overrides
		WHERE cabin_id = $1 AND day = $2 AND shift = $3
	`, key.CabinID, key.Day, string(key.Shift)).Scan(&o.CabinID, &o.Day, &o.Shift, &o.Closed, &o.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.ManualOverride{}, false, nil
		}
		return model.ManualOverride{}, false, err
	}
	o.Day = model.DayOf(o.Day)
	return o, true, nil
}

func (s *Postgres) SetManualOverride(ctx context.Context, key model.SlotKey, closed bool) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO manual_overrides (cabin_id, day, shift, closed)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cabin_id, day, shift) DO UPDATE
		SET closed = EXCLUDED.closed,
			updated_at = now()
	`, key.CabinID, key.Day, string(key.Shift), closed)
	return err
}

func (s *Postgres) ListManualOverrides(ctx context.Context, cabinID string, from, to time.Time) ([]model.ManualOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cabin_id::text, day, shift, closed, updated_at
		FROM manual_overrides
		WHERE cabin_id = $1 AND day >= $2 AND day <= $3
	`, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ManualOverride
	for rows.Next() {
		var o model.ManualOverride
		if err := rows.Scan(&o.CabinID, &o.Day, &o.Shift, &o.Closed, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Day = model.DayOf(o.Day)
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Postgres) GetPriceOverride(ctx context.Context, key model.SlotKey) (model.PriceOverride, bool, error) {
	var o model.PriceOverride
	var price string
	err := s.pool.QueryRow(ctx, `
		SELECT cabin_id::text, day, shift, price::text, updated_at
		FROM price_overrides
		WHERE cabin_id = $1 AND day = $2 AND shift = $3
	`, key.CabinID, key.Day, string(key.Shift)).Scan(&o.CabinID, &o.Day, &o.Shift, &price, &o.UpdatedAt)
	if err != nil {
		if IsNotFound(err) {
			return model.PriceOverride{}, false, nil
		}
		return model.PriceOverride{}, false, err
	}
	o.Day = model.DayOf(o.Day)
	o.Price, err = decimal.NewFromString(price)
	if err != nil {
		return model.PriceOverride{}, false, err
	}
	return o, true, nil
}

func (s *Postgres) SetPriceOverride(ctx context.Context, key model.SlotKey, price decimal.Decimal) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_overrides (cabin_id, day, shift, price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cabin_id, day, shift) DO UPDATE
		SET price = EXCLUDED.price,
			updated_at = now()
	`, key.CabinID, key.Day, string(key.Shift), price.String())
	return err
}

func (s *Postgres) ListPriceOverrides(ctx context.Context, cabinID string, from, to time.Time) ([]model.PriceOverride, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cabin_id::text, day, shift, price::text, updated_at
		FROM price_overrides
		WHERE cabin_id = $1 AND day >= $2 AND day <= $3
	`, cabinID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceOverride
	for rows.Next() {
		var o model.PriceOverride
		var price string
		if err := rows.Scan(&o.CabinID, &o.Day, &o.Shift, &price, &o.UpdatedAt); err != nil {
			return nil, err
		}
		o.Day = model.DayOf(o.Day)
		o.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const bookingSelect = `
	SELECT id::text, cabin_id::text, professional_id::text, day, shift, price::text, status, created_at, cancelled_at
	FROM bookings`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Postgres) scanBookingRow(row rowScanner) (model.Booking, error) {
	var b model.Booking
	var price, shift, status string
	var cancelledAt *time.Time
	if err := row.Scan(&b.ID, &b.CabinID, &b.ProfessionalID, &b.Day, &shift, &price, &status, &b.CreatedAt, &cancelledAt); err != nil {
		return model.Booking{}, err
	}
	b.Day = model.DayOf(b.Day)
	b.Shift = model.Shift(shift)
	b.Status = model.BookingStatus(status)
	b.CancelledAt = cancelledAt
	var err error
	b.Price, err = decimal.NewFromString(price)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

func scanBookings(rows pgx.Rows) ([]model.Booking, error) {
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var b model.Booking
		var price, shift, status string
		var cancelledAt *time.Time
		if err := rows.Scan(&b.ID, &b.CabinID, &b.ProfessionalID, &b.Day, &shift, &price, &status, &b.CreatedAt, &cancelledAt); err != nil {
			return nil, err
		}
		b.Day = model.DayOf(b.Day)
		b.Shift = model.Shift(shift)
		b.Status = model.BookingStatus(status)
		b.CancelledAt = cancelledAt
		var err error
		b.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// IsConflict reports whether err is the partial unique index violation raised
// when a second active booking targets an occupied SlotKey.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
