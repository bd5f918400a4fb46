package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/5CORE-ALL/ship-hub-sub001/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It backs local
// development and single-warehouse installs that have no Postgres.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS orders (
	id                    INTEGER PRIMARY KEY AUTOINCREMENT,
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
	default_price         TEXT NOT NULL DEFAULT '0',
	default_currency      TEXT NOT NULL DEFAULT '',
	default_source        TEXT NOT NULL DEFAULT '',
	shipping_rate_fetched INTEGER NOT NULL DEFAULT 0,
	created_at            DATETIME NOT NULL,
	updated_at            DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_marketplace_number ON orders(marketplace, order_number);
CREATE INDEX IF NOT EXISTS idx_orders_rate_fetched ON orders(shipping_rate_fetched);

CREATE TABLE IF NOT EXISTS order_items (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	order_id        INTEGER NOT NULL REFERENCES orders(id),
	sku             TEXT NOT NULL,
	quantity        INTEGER NOT NULL DEFAULT 1,
	height          REAL NOT NULL DEFAULT 0,
	width           REAL NOT NULL DEFAULT 0,
	length          REAL NOT NULL DEFAULT 0,
	weight          REAL NOT NULL DEFAULT 0,
	original_height REAL NOT NULL DEFAULT 0,
	original_width  REAL NOT NULL DEFAULT 0,
	original_length REAL NOT NULL DEFAULT 0,
	original_weight REAL NOT NULL DEFAULT 0,
	height_d        REAL NOT NULL DEFAULT 0,
	width_d         REAL NOT NULL DEFAULT 0,
	length_d        REAL NOT NULL DEFAULT 0,
	weight_d        REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id);

CREATE TABLE IF NOT EXISTS dimension_data (
	sku    TEXT PRIMARY KEY,
	height REAL NOT NULL DEFAULT 0,
	width  REAL NOT NULL DEFAULT 0,
	length REAL NOT NULL DEFAULT 0,
	weight REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS order_shipping_rates (
	id          TEXT PRIMARY KEY,
	order_id    INTEGER NOT NULL REFERENCES orders(id),
	carrier     TEXT NOT NULL,
	service     TEXT NOT NULL,
	price       TEXT NOT NULL,
	currency    TEXT NOT NULL DEFAULT 'USD',
	source      TEXT NOT NULL,
	rate_type   TEXT NOT NULL DEFAULT 'O',
	rate_id     TEXT NOT NULL DEFAULT '',
	is_cheapest INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_order_shipping_rates_identity
	ON order_shipping_rates (order_id, carrier, service, source, rate_type, rate_id);

CREATE INDEX IF NOT EXISTS idx_order_shipping_rates_order ON order_shipping_rates(order_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, o *model.Order) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.OrderNumber, string(o.Marketplace),
		o.ShipTo.Name, o.ShipTo.Phone, o.ShipTo.Street1, o.ShipTo.Street2,
		o.ShipTo.City, o.ShipTo.State, o.ShipTo.Zip, o.ShipTo.Country,
		now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert order %s/%s", o.Marketplace, o.OrderNumber)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: order last insert id")
	}
	o.ID = id
	o.CreatedAt = now
	o.UpdatedAt = now
	return nil
}

const sqliteOrderColumns = `id, order_number, marketplace, ship_name, ship_phone, ship_street1, ship_street2, ship_city, ship_state, ship_zip, ship_country, default_rate_id, default_carrier, default_service, default_price, default_currency, default_source, shipping_rate_fetched, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*model.Order, error) {
	var o model.Order
	var price string
	var marketplace string
	if err := row.Scan(
		&o.ID, &o.OrderNumber, &marketplace,
		&o.ShipTo.Name, &o.ShipTo.Phone, &o.ShipTo.Street1, &o.ShipTo.Street2,
		&o.ShipTo.City, &o.ShipTo.State, &o.ShipTo.Zip, &o.ShipTo.Country,
		&o.DefaultRateID, &o.DefaultCarrier, &o.DefaultService,
		&price, &o.DefaultCurrency, &o.DefaultSource,
		&o.RateFetched, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	o.Marketplace = model.Marketplace(marketplace)
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse default price %q", price)
	}
	o.DefaultPrice = p
	return &o, nil
}

func (s *SQLiteStore) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx,
		`SELECT `+sqliteOrderColumns+` FROM orders WHERE id = ?`, orderID,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get order %d", orderID)
	}
	return o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, filter OrderFilter) ([]model.Order, error) {
	query := `SELECT ` + sqliteOrderColumns + ` FROM orders WHERE 1=1`
	args := []any{}

	if filter.Marketplace != "" {
		query += ` AND marketplace = ?`
		args = append(args, string(filter.Marketplace))
	}
	if filter.PendingOnly {
		query += ` AND shipping_rate_fetched = 0`
	}
	query += ` ORDER BY created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list orders")
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan order")
		}
		orders = append(orders, *o)
	}
	return orders, eris.Wrap(rows.Err(), "sqlite: list orders iterate")
}

func (s *SQLiteStore) UpdateOrderDefaultRate(ctx context.Context, orderID int64, rate model.DefaultRate) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET default_rate_id = ?, default_carrier = ?, default_service = ?, default_price = ?, default_currency = ?, default_source = ?, shipping_rate_fetched = 1, updated_at = ? WHERE id = ?`,
		rate.RateID, rate.Carrier, rate.Service, rate.Price.String(), rate.Currency, rate.Source,
		time.Now().UTC(), orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update default rate for order %d", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("order not found: %d", orderID)
	}
	return nil
}

func (s *SQLiteStore) CreateOrderItem(ctx context.Context, item *model.OrderItem) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO order_items (order_id, sku, quantity, height, width, length, weight, original_height, original_width, original_length, original_weight, height_d, width_d, length_d, weight_d)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.OrderID, item.SKU, item.Quantity,
		item.Height, item.Width, item.Length, item.Weight,
		item.Height, item.Width, item.Length, item.Weight,
		item.HeightD, item.WidthD, item.LengthD, item.WeightD,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert item for order %d", item.OrderID)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: item last insert id")
	}
	item.ID = id
	item.OriginalHeight = item.Height
	item.OriginalWidth = item.Width
	item.OriginalLength = item.Length
	item.OriginalWeight = item.Weight
	return nil
}

func (s *SQLiteStore) ListOrderItems(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, sku, quantity, height, width, length, weight, original_height, original_width, original_length, original_weight, height_d, width_d, length_d, weight_d FROM order_items WHERE order_id = ? ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list items for order %d", orderID)
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
			return nil, eris.Wrap(err, "sqlite: scan item")
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: list items iterate")
}

func (s *SQLiteStore) UpdateItemDimensions(ctx context.Context, itemID int64, regime model.RateType, dims model.Dimensions) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin item update")
	}
	defer tx.Rollback() //nolint:errcheck

	var orderID int64
	if regime == model.RateTypeDeclared {
		err = tx.QueryRowContext(ctx,
			`UPDATE order_items SET height_d = ?, width_d = ?, length_d = ?, weight_d = ? WHERE id = ? RETURNING order_id`,
			dims.Height, dims.Width, dims.Length, dims.Weight, itemID,
		).Scan(&orderID)
	} else {
		err = tx.QueryRowContext(ctx,
			`UPDATE order_items SET
				original_height = CASE WHEN original_height > 0 THEN original_height ELSE height END,
				original_width  = CASE WHEN original_width  > 0 THEN original_width  ELSE width  END,
				original_length = CASE WHEN original_length > 0 THEN original_length ELSE length END,
				original_weight = CASE WHEN original_weight > 0 THEN original_weight ELSE weight END,
				height = ?, width = ?, length = ?, weight = ?
			 WHERE id = ? RETURNING order_id`,
			dims.Height, dims.Width, dims.Length, dims.Weight, itemID,
		).Scan(&orderID)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Errorf("order item not found: %d", itemID)
		}
		return eris.Wrapf(err, "sqlite: update dimensions for item %d", itemID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM order_shipping_rates WHERE order_id = ?`, orderID); err != nil {
		return eris.Wrapf(err, "sqlite: clear rates for order %d", orderID)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET shipping_rate_fetched = 0, updated_at = ? WHERE id = ?`, time.Now().UTC(), orderID); err != nil {
		return eris.Wrapf(err, "sqlite: reopen order %d", orderID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit item update")
}

func (s *SQLiteStore) GetDimensionData(ctx context.Context, sku string) (*model.DimensionData, error) {
	var dd model.DimensionData
	err := s.db.QueryRowContext(ctx,
		`SELECT sku, height, width, length, weight FROM dimension_data WHERE sku = ?`,
		sku,
	).Scan(&dd.SKU, &dd.Height, &dd.Width, &dd.Length, &dd.Weight)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get dimension data for %s", sku)
	}
	return &dd, nil
}

func (s *SQLiteStore) UpsertRate(ctx context.Context, orderID int64, q model.RateQuote, rt model.RateType) error {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_shipping_rates (id, order_id, carrier, service, price, currency, source, rate_type, rate_id, is_cheapest, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (order_id, carrier, service, source, rate_type, rate_id)
		 DO UPDATE SET price = excluded.price, currency = excluded.currency, updated_at = excluded.updated_at`,
		id, orderID, q.Carrier, q.Service, q.Price.String(), q.Currency, q.Source, string(rt), q.RateID, now, now,
	)
	return eris.Wrapf(err, "sqlite: upsert rate for order %d", orderID)
}

func (s *SQLiteStore) ListRates(ctx context.Context, orderID int64, rt model.RateType) ([]model.PersistedRate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, carrier, service, price, currency, source, rate_type, rate_id, is_cheapest, created_at, updated_at FROM order_shipping_rates WHERE order_id = ? AND rate_type = ? ORDER BY CAST(price AS REAL) ASC, lower(carrier) ASC`,
		orderID, string(rt),
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list rates for order %d", orderID)
	}
	defer rows.Close()

	var rates []model.PersistedRate
	for rows.Next() {
		var r model.PersistedRate
		var price, rateType string
		if err := rows.Scan(
			&r.ID, &r.OrderID, &r.Carrier, &r.Service, &price, &r.Currency,
			&r.Source, &rateType, &r.RateID, &r.IsCheapest, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rate")
		}
		p, err := decimal.NewFromString(price)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse rate price %q", price)
		}
		r.Price = p
		r.RateType = model.RateType(rateType)
		rates = append(rates, r)
	}
	return rates, eris.Wrap(rows.Err(), "sqlite: list rates iterate")
}

func (s *SQLiteStore) DeleteRates(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM order_shipping_rates WHERE order_id = ?`, orderID)
	return eris.Wrapf(err, "sqlite: delete rates for order %d", orderID)
}

func (s *SQLiteStore) MarkCheapest(ctx context.Context, orderID int64, rt model.RateType, rateRowID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin mark cheapest")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE order_shipping_rates SET is_cheapest = 0, updated_at = ? WHERE order_id = ? AND rate_type = ? AND is_cheapest = 1`,
		now, orderID, string(rt),
	); err != nil {
		return eris.Wrapf(err, "sqlite: reset cheapest for order %d", orderID)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE order_shipping_rates SET is_cheapest = 1, rate_type = ?, updated_at = ? WHERE id = ? AND order_id = ?`,
		string(rt), now, rateRowID, orderID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set cheapest for order %d", orderID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrConflict, "sqlite: cheapest row %s vanished for order %d", rateRowID, orderID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit mark cheapest")
}

var _ Store = (*SQLiteStore)(nil)
var _ Store = (*PostgresStore)(nil)
