package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/op-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderExists возвращается при попытке создать ОП с уже занятым номером.
var ErrOrderExists = errors.New("order already exists")

// PostgresRepository хранит ОП и журнал изменений в PostgreSQL. Используется
// в развёртываниях, где таблица зеркалируется в локальную БД.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

const orderColumns = `number, created_at, "group", raw_sku, raw_color,
	requested_spools, requested_kg, finished_sku, finished_description,
	finished_qty, barcode, separation_status, separated_spools, separated_kg,
	note, separation_at, separating_user, print_status, printed_at, order_status`

// FetchAll возвращает все ОП в порядке создания.
func (r *PostgresRepository) FetchAll(ctx context.Context) ([]model.ProductionOrder, error) {
	var orders []model.ProductionOrder

	err := r.withRetry(ctx, func() error {
		rows, err := r.pool.Query(ctx,
			`SELECT `+orderColumns+` FROM production_orders ORDER BY created_at, number`,
		)
		if err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		defer rows.Close()

		orders = orders[:0]
		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, o)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows error: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return orders, nil
}

// FetchByNumber возвращает ОП по номеру.
func (r *PostgresRepository) FetchByNumber(ctx context.Context, number string) (*model.ProductionOrder, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM production_orders WHERE number = $1`,
		number,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return &o, nil
}

// AppendOrder сохраняет новую ОП.
func (r *PostgresRepository) AppendOrder(ctx context.Context, o model.ProductionOrder) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO production_orders (`+orderColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		         $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		o.Number, o.CreatedAt, string(o.Group), o.RawSKU, o.RawColor,
		o.RequestedSpools, o.RequestedKg, o.FinishedSKU, o.FinishedDescription,
		o.FinishedQty, o.Barcode, string(o.SeparationStatus), o.SeparatedSpools,
		o.SeparatedKg, o.Note, o.SeparationTimestamp, o.SeparatingUser,
		string(o.PrintStatus), o.PrintTimestamp, string(o.OrderStatus),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrOrderExists, o.Number)
		}
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// PersistSeparation записывает поля сепарации одной командой. Нулевое число
// затронутых строк означает, что ОП исчезла между чтением и записью.
func (r *PostgresRepository) PersistSeparation(ctx context.Context, number string, upd SeparationUpdate) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE production_orders
			 SET separation_status = $2, separated_spools = $3, separated_kg = $4,
			     note = $5, separation_at = $6, separating_user = $7
			 WHERE number = $1`,
			number, string(upd.Status), upd.SeparatedSpools, upd.SeparatedKg,
			upd.Note, upd.Timestamp, upd.User,
		)
		if err != nil {
			return fmt.Errorf("update separation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentModification
		}
		return nil
	})
}

// PersistPrintMark отмечает ОП напечатанной.
func (r *PostgresRepository) PersistPrintMark(ctx context.Context, number string, at time.Time) error {
	return r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE production_orders SET print_status = $2, printed_at = $3 WHERE number = $1`,
			number, string(model.PrintStatusPrinted), at,
		)
		if err != nil {
			return fmt.Errorf("update print mark: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConcurrentModification
		}
		return nil
	})
}

// AppendAuditRecord добавляет запись в журнал изменений.
func (r *PostgresRepository) AppendAuditRecord(ctx context.Context, rec model.AuditRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_trail (id, recorded_at, order_number, action, actor, previous_state, new_state)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.Timestamp, rec.OrderNumber, rec.Action, rec.Actor, rec.Previous, rec.New,
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// AuditByOrder возвращает журнал изменений одной ОП.
func (r *PostgresRepository) AuditByOrder(ctx context.Context, number string) ([]model.AuditRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, recorded_at, order_number, action, actor, previous_state, new_state
		 FROM audit_trail
		 WHERE order_number = $1
		 ORDER BY recorded_at`,
		number,
	)
	if err != nil {
		return nil, fmt.Errorf("select audit: %w", err)
	}
	defer rows.Close()

	var res []model.AuditRecord
	for rows.Next() {
		var rec model.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.OrderNumber, &rec.Action,
			&rec.Actor, &rec.Previous, &rec.New); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		res = append(res, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

func scanOrder(row pgx.Row) (model.ProductionOrder, error) {
	var (
		o                model.ProductionOrder
		group            string
		separationStatus string
		printStatus      string
		orderStatus      string
	)

	err := row.Scan(
		&o.Number, &o.CreatedAt, &group, &o.RawSKU, &o.RawColor,
		&o.RequestedSpools, &o.RequestedKg, &o.FinishedSKU, &o.FinishedDescription,
		&o.FinishedQty, &o.Barcode, &separationStatus, &o.SeparatedSpools,
		&o.SeparatedKg, &o.Note, &o.SeparationTimestamp, &o.SeparatingUser,
		&printStatus, &o.PrintTimestamp, &orderStatus,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scan order: %w", err)
	}

	o.Group = model.OrderGroup(group)
	o.SeparationStatus = model.SeparationStatus(separationStatus)
	o.PrintStatus = model.PrintStatus(printStatus)
	o.OrderStatus = model.OrderStatus(orderStatus)

	return o, nil
}
