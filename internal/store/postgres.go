package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/db"
	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// ErrConflict marks a composite-key violation the upsert logic could not
// absorb. It indicates a programming error, not bad input.
var ErrConflict = errors.New("rate identity conflict")

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_order":    `SELECT id, order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, default_rate_id, default_carrier, default_service, default_price, default_currency, default_source, shipping_rate_fetched, created_at, updated_at FROM orders WHERE id = $1`,
	"list_items":   `SELECT id, order_id, sku, quantity, height, width, length, weight, original_height, original_width, original_length, original_weight, height_d, width_d, length_d, weight_d FROM order_items WHERE order_id = $1 ORDER BY id`,
	"list_rates":   `SELECT id, order_id, carrier, service, price, currency, source, COALESCE(rate_type, 'O'), rate_id, is_cheapest, created_at, updated_at FROM order_shipping_rates WHERE order_id = $1 AND (rate_type = $2 OR ($2 = 'O' AND rate_type IS NULL)) ORDER BY price ASC, lower(carrier) ASC`,
	"delete_rates": `DELETE FROM order_shipping_rates WHERE order_id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id                    BIGSERIAL PRIMARY KEY,
	order_number          TEXT NOT NULL,
	marketplace           TEXT NOT NULL,
	ship_name             TEXT NOT NULL DEFAULT '',
	ship_phone            TEXT NOT NULL DEFAULT '',
	ship_street1          TEXT NOT NULL DEFAULT '',
	ship_street2          TEXT NOT NULL DEFAULT '',
	ship_city             TEXT NOT NULL DEFAULT '',
	ship_state            TEXT NOT NULL DEFAULT '',
	ship_zip              TEXT NOT NULL DEFAULT '',
	ship_country          TEXT NOT NULL DEFAULT '',
	default_rate_id       TEXT NOT NULL DEFAULT '',
	default_carrier       TEXT NOT NULL DEFAULT '',
	default_service       TEXT NOT NULL DEFAULT '',
	default_price         NUMERIC(12,2) NOT NULL DEFAULT 0,
	default_currency      TEXT NOT NULL DEFAULT '',
	default_source        TEXT NOT NULL DEFAULT '',
	shipping_rate_fetched BOOLEAN NOT NULL DEFAULT false,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_marketplace_number ON orders(marketplace, order_number);
CREATE INDEX IF NOT EXISTS idx_orders_rate_fetched ON orders(shipping_rate_fetched);

CREATE TABLE IF NOT EXISTS order_items (
	id              BIGSERIAL PRIMARY KEY,
	order_id        BIGINT NOT NULL REFERENCES orders(id),
	sku             TEXT NOT NULL,
	quantity        INTEGER NOT NULL DEFAULT 1,
	height          DOUBLE PRECISION NOT NULL DEFAULT 0,
	width           DOUBLE PRECISION NOT NULL DEFAULT 0,
	length          DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight          DOUBLE PRECISION NOT NULL DEFAULT 0,
	original_height DOUBLE PRECISION NOT NULL DEFAULT 0,
	original_width  DOUBLE PRECISION NOT NULL DEFAULT 0,
	original_length DOUBLE PRECISION NOT NULL DEFAULT 0,
	original_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
	height_d        DOUBLE PRECISION NOT NULL DEFAULT 0,
	width_d         DOUBLE PRECISION NOT NULL DEFAULT 0,
	length_d        DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight_d        DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

CREATE TABLE IF NOT EXISTS dimension_data (
	sku    TEXT PRIMARY KEY,
	height DOUBLE PRECISION NOT NULL DEFAULT 0,
	width  DOUBLE PRECISION NOT NULL DEFAULT 0,
	length DOUBLE PRECISION NOT NULL DEFAULT 0,
	weight DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_shipping_rates (
	id          TEXT PRIMARY KEY,
	order_id    BIGINT NOT NULL REFERENCES orders(id),
	carrier     TEXT NOT NULL,
	service     TEXT NOT NULL,
	price       NUMERIC(12,2) NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	source      TEXT NOT NULL,
	rate_type   TEXT,
	rate_id     TEXT NOT NULL DEFAULT '',
	is_cheapest BOOLEAN NOT NULL DEFAULT false,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- The composite identity key. rate_type is folded through COALESCE so legacy
-- NULL rows occupy the O partition instead of escaping uniqueness.
CREATE UNIQUE INDEX IF NOT EXISTS uq_order_shipping_rates_identity
	ON order_shipping_rates (order_id, carrier, service, source, (COALESCE(rate_type, 'O')), rate_id);

CREATE INDEX IF NOT EXISTS idx_order_shipping_rates_order ON order_shipping_rates(order_id);
CREATE INDEX IF NOT EXISTS idx_order_shipping_rates_cheapest ON order_shipping_rates(order_id, is_cheapest);

-- One-time backfill: historical rows wrote NULL rate_type to mean O.
UPDATE order_shipping_rates SET rate_type = 'O' WHERE rate_type IS NULL;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateOrder(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO orders (order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 RETURNING id`,
		o.OrderNumber, string(o.Marketplace),
		o.ShipTo.Name, o.ShipTo.Phone, o.ShipTo.Street1, o.ShipTo.Street2,
		o.ShipTo.City, o.ShipTo.State, o.ShipTo.Zip, o.ShipTo.Country,
		now,
	).Scan(&o.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert order %s/%s", o.Marketplace, o.OrderNumber)
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	var o model.Order
	var marketplace string
	err := s.pool.QueryRow(ctx,
		`SELECT id, order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, default_rate_id, default_carrier, default_service, default_price, default_currency, default_source, shipping_rate_fetched, created_at, updated_at FROM orders WHERE id = $1`,
		orderID,
	).Scan(
		&o.ID, &o.OrderNumber, &marketplace,
		&o.ShipTo.Name, &o.ShipTo.Phone, &o.ShipTo.Street1, &o.ShipTo.Street2,
		&o.ShipTo.City, &o.ShipTo.State, &o.ShipTo.Zip, &o.ShipTo.Country,
		&o.DefaultRateID, &o.DefaultCarrier, &o.DefaultService,
		&o.DefaultPrice, &o.DefaultCurrency, &o.DefaultSource,
		&o.RateFetched, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get order %d", orderID)
	}
	o.Marketplace = model.Marketplace(marketplace)
	return &o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT id, order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, default_rate_id, default_carrier, default_service, default_price, default_currency, default_source, shipping_rate_fetched, created_at, updated_at FROM orders WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Marketplace != "" {
		query += fmt.Sprintf(` AND marketplace = $%d`, argIdx)
		args = append(args, string(filter.Marketplace))
		argIdx++
	}
	if filter.PendingOnly {
		query += ` AND shipping_rate_fetched = false`
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		var marketplace string
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &marketplace,
			&o.ShipTo.Name, &o.ShipTo.Phone, &o.ShipTo.Street1, &o.ShipTo.Street2,
			&o.ShipTo.City, &o.ShipTo.State, &o.ShipTo.Zip, &o.ShipTo.Country,
			&o.DefaultRateID, &o.DefaultCarrier, &o.DefaultService,
			&o.DefaultPrice, &o.DefaultCurrency, &o.DefaultSource,
			&o.RateFetched, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan order")
		}
		o.Marketplace = model.Marketplace(marketplace)
		orders = append(orders, o)
	}
	return orders, eris.Wrap(rows.Err(), "postgres: list orders iterate")
}

func (s *PostgresStore) UpdateOrderDefaultRate(ctx context.Context, orderID int64, rate model.DefaultRate) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE orders SET default_rate_id = $1, default_carrier = $2, default_service = $3, default_price = $4, default_currency = $5, default_source = $6, shipping_rate_fetched = true, updated_at = $7 WHERE id = $8`,
		rate.RateID, rate.Carrier, rate.Service, rate.Price, rate.Currency, rate.Source,
		time.Now().UTC(), orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update default rate for order %d", orderID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("order not found: %d", orderID)
	}
	return nil
}

func (s *PostgresStore) CreateOrderItem(ctx context.Context, item *model.OrderItem) error {
	// The original_* snapshot is written from the incoming dimensions in the
	// same statement, so it can never drift from the first entered values.
	err := s.pool.QueryRow(ctx,
		`INSERT INTO order_items (order_id, sku, quantity, height, width, length, weight, original_height, original_width, original_length, original_weight, height_d, width_d, length_d, weight_d)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		item.OrderID, item.SKU, item.Quantity,
		item.Height, item.Width, item.Length, item.Weight,
		item.HeightD, item.WidthD, item.LengthD, item.WeightD,
	).Scan(&item.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert item for order %d", item.OrderID)
	}
	item.OriginalHeight = item.Height
	item.OriginalWidth = item.Width
	item.OriginalLength = item.Length
	item.OriginalWeight = item.Weight
	return nil
}

func (s *PostgresStore) ListOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, sku, quantity, height, width, length, weight, original_height, original_width, original_length, original_weight, height_d, width_d, length_d, weight_d FROM order_items WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list items for order %d", orderID)
	}
	defer rows.Close()

	var items []model.OrderItem
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(
			&it.ID, &it.OrderID, &it.SKU, &it.Quantity,
			&it.Height, &it.Width, &it.Length, &it.Weight,
			&it.OriginalHeight, &it.OriginalWidth, &it.OriginalLength, &it.OriginalWeight,
			&it.HeightD, &it.WidthD, &it.LengthD, &it.WeightD,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: list items iterate")
}

func (s *PostgresStore) UpdateItemDimensions(ctx context.Context, itemID int64, regime model.RateType, dims model.Dimensions) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin item update")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var orderID int64
	if regime == model.RateTypeDeclared {
		err = tx.QueryRow(ctx,
			`UPDATE order_items SET height_d = $2, width_d = $3, length_d = $4, weight_d = $5 WHERE id = $1 RETURNING order_id`,
			itemID, dims.Height, dims.Width, dims.Length, dims.Weight,
		).Scan(&orderID)
	} else {
		// Backfill each original_* field from the pre-update value only if it
		// was never set, then apply the new working dimensions.
		err = tx.QueryRow(
			ctx,
			`UPDATE order_items SET
				original_height = CASE WHEN original_height > 0 THEN original_height ELSE height END,
				original_width  = CASE WHEN original_width  > 0 THEN original_width  ELSE width  END,
				original_length = CASE WHEN original_length > 0 THEN original_length ELSE length END,
				original_weight = CASE WHEN original_weight > 0 THEN original_weight ELSE weight END,
				height = $2, width = $3, length = $4, weight = $5
			 WHERE id = $1 RETURNING order_id`,
			itemID, dims.Height, dims.Width, dims.Length, dims.Weight,
		).Scan(&orderID)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Errorf("order item not found: %d", itemID)
		}
		return eris.Wrapf(err, "postgres: update dimensions for item %d", itemID)
	}

	// Dimensions changed, so every persisted quote for the order is stale.
	// Drop both regimes and re-open the order for the batch fetcher.
	if _, err := tx.Exec(ctx, `DELETE FROM order_shipping_rates WHERE order_id = $1`, orderID); err != nil {
		return eris.Wrapf(err, "postgres: clear rates for order %d", orderID)
	}
	if _, err := tx.Exec(ctx, `UPDATE orders SET shipping_rate_fetched = false, updated_at = $2 WHERE id = $1`, orderID, time.Now().UTC()); err != nil {
		return eris.Wrapf(err, "postgres: reopen order %d", orderID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit item update")
}

func (s *PostgresStore) GetDimensionData(ctx context.Context, sku string) (*model.DimensionData, error) {
	var dd model.DimensionData
	err := s.pool.QueryRow(ctx,
		`SELECT sku, height, width, length, weight FROM dimension_data WHERE sku = $1`,
		sku,
	).Scan(&dd.SKU, &dd.Height, &dd.Width, &dd.Length, &dd.Weight)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get dimension data for %s", sku)
	}
	return &dd, nil
}

func (s *PostgresStore) UpsertRate(ctx context.Context, orderID int64, q model.RateQuote, rt model.RateType) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO order_shipping_rates (id, order_id, carrier, service, price, currency, source, rate_type, rate_id, is_cheapest, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, false, $10, $10)
		 ON CONFLICT (order_id, carrier, service, source, (COALESCE(rate_type, 'O')), rate_id)
		 DO UPDATE SET price = EXCLUDED.price, currency = EXCLUDED.currency, updated_at = EXCLUDED.updated_at`,
		id, orderID, q.Carrier, q.Service, q.Price, q.Currency, q.Source, string(rt), q.RateID, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return eris.Wrapf(ErrConflict, "postgres: upsert rate for order %d: %s", orderID, pgErr.Detail)
		}
		return eris.Wrapf(err, "postgres: upsert rate for order %d", orderID)
	}
	return nil
}

func (s *PostgresStore) ListRates(ctx context.Context, orderID int64, rt model.RateType) ([]model.PersistedRate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, carrier, service, price, currency, source, COALESCE(rate_type, 'O'), rate_id, is_cheapest, created_at, updated_at FROM order_shipping_rates WHERE order_id = $1 AND (rate_type = $2 OR ($2 = 'O' AND rate_type IS NULL)) ORDER BY price ASC, lower(carrier) ASC`,
		orderID, string(rt),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list rates for order %d", orderID)
	}
	defer rows.Close()

	var rates []model.PersistedRate
	for rows.Next() {
		var r model.PersistedRate
		var rateType string
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.Carrier, &r.Service, &r.Price, &r.Currency,
			&r.Source, &rateType, &r.RateID, &r.IsCheapest, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rate")
		}
		r.RateType = model.RateType(rateType)
		rates = append(rates, r)
	}
	return rates, eris.Wrap(rows.Err(), "postgres: list rates iterate")
}

func (s *PostgresStore) DeleteRates(ctx context.Context, orderID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM order_shipping_rates WHERE order_id = $1`, orderID)
	return eris.Wrapf(err, "postgres: delete rates for order %d", orderID)
}

// MarkCheapest resets is_cheapest across one (order, rate_type) partition and
// sets it on the winning row, in a single transaction. The winner's rate_type
// is written explicitly, which heals legacy NULL rows when they win.
func (s *PostgresStore) MarkCheapest(ctx context.Context, orderID int64, rt model.RateType, rateRowID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin mark cheapest")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx,
		`UPDATE order_shipping_rates SET is_cheapest = false, updated_at = $3 WHERE order_id = $1 AND (rate_type = $2 OR ($2 = 'O' AND rate_type IS NULL)) AND is_cheapest = true`,
		orderID, string(rt), now,
	); err != nil {
		return eris.Wrapf(err, "postgres: reset cheapest for order %d", orderID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE order_shipping_rates SET is_cheapest = true, rate_type = $2, updated_at = $4 WHERE id = $1 AND order_id = $3`,
		rateRowID, string(rt), orderID, now,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set cheapest for order %d", orderID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrConflict, "postgres: cheapest row %s vanished for order %d", rateRowID, orderID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit mark cheapest")
}
