package postgres

import (
	"context"
	"fmt"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LogRepository is the append-only action log of payment services.
type LogRepository struct {
	pool *pgxpool.Pool
}

func NewLogRepository(pool *pgxpool.Pool) *LogRepository {
	return &LogRepository{pool: pool}
}

func (r *LogRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *LogRepository) Append(ctx context.Context, e *fin.LogEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO payment_service_log (id, date, service_id, action, result, reason)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Date, e.ServiceID, e.Action, string(e.Result), e.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert action log entry: %w", err)
	}
	return nil
}

// List returns the entries of a service, newest first.
func (r *LogRepository) List(ctx context.Context, serviceID uuid.UUID, limit, offset int) ([]*fin.LogEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, date, service_id, action, result, reason
		 FROM payment_service_log
		 WHERE service_id = $1
		 ORDER BY date DESC
		 LIMIT $2 OFFSET $3`,
		serviceID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list action log: %w", err)
	}
	defer rows.Close()

	var entries []*fin.LogEntry
	for rows.Next() {
		var (
			e      fin.LogEntry
			result string
		)
		if err := rows.Scan(&e.ID, &e.Date, &e.ServiceID, &e.Action, &result, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan action log entry: %w", err)
		}
		e.Result = fin.LogResult(result)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
