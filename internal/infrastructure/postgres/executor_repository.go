package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/execution-hub/choreographer/internal/domain/executor"
)

const uniqueViolation = "23505"

const executorColumns = `e.executor_id, e.name, e.address, e.port, e.base_path, e.locked, e.created_at, e.updated_at`

// ExecutorDirectory implements executor.Directory.
type ExecutorDirectory struct {
	pool *pgxpool.Pool
}

func NewExecutorDirectory(pool *pgxpool.Pool) *ExecutorDirectory {
	return &ExecutorDirectory{pool: pool}
}

func (r *ExecutorDirectory) Create(ctx context.Context, exec *executor.Executor) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO executors (executor_id, name, address, port, base_path, locked, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, exec.ExecutorID, exec.Name, exec.Address, exec.Port, exec.BasePath, exec.Locked, exec.CreatedAt, exec.UpdatedAt); err != nil {
		return mapUniqueViolation(err, exec)
	}
	for _, d := range exec.ServiceDefinitions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO executor_service_definitions (executor_id, service_definition, min_version, max_version)
			VALUES ($1,$2,$3,$4)
		`, exec.ExecutorID, d.ServiceDefinition, d.MinVersion, d.MaxVersion); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *ExecutorDirectory) FindByCapability(ctx context.Context, serviceDefinition string, minVersion, maxVersion int) ([]*executor.Executor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+executorColumns+`
		FROM executors e
		WHERE EXISTS (
			SELECT 1 FROM executor_service_definitions d
			WHERE d.executor_id = e.executor_id
			  AND lower(d.service_definition) = lower($1)
			  AND d.min_version <= $3
			  AND d.max_version >= $2
		)
		ORDER BY e.executor_id
	`, serviceDefinition, minVersion, maxVersion)
	if err != nil {
		return nil, err
	}
	execs, err := collectExecutors(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadServiceDefinitions(ctx, execs); err != nil {
		return nil, err
	}
	return execs, nil
}

func (r *ExecutorDirectory) FindByID(ctx context.Context, executorID string) (*executor.Executor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+executorColumns+`
		FROM executors e WHERE e.executor_id=$1
	`, executorID)
	exec, err := scanExecutor(row)
	if err != nil || exec == nil {
		return nil, err
	}
	if err := r.loadServiceDefinitions(ctx, []*executor.Executor{exec}); err != nil {
		return nil, err
	}
	return exec, nil
}

// TrySetLocked flips the lock bit only when it is currently clear.
func (r *ExecutorDirectory) TrySetLocked(ctx context.Context, executorID string) (executor.ClaimResult, error) {
	res, err := r.pool.Exec(ctx, `
		UPDATE executors SET locked=TRUE, updated_at=NOW()
		WHERE executor_id=$1 AND locked=FALSE
	`, executorID)
	if err != nil {
		return executor.ClaimAbsent, err
	}
	if res.RowsAffected() == 1 {
		return executor.ClaimSuccess, nil
	}
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM executors WHERE executor_id=$1)`, executorID).Scan(&exists); err != nil {
		return executor.ClaimAbsent, err
	}
	if exists {
		return executor.ClaimAlreadyLocked, nil
	}
	return executor.ClaimAbsent, nil
}

func (r *ExecutorDirectory) Unlock(ctx context.Context, executorID string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE executors SET locked=FALSE, updated_at=NOW() WHERE executor_id=$1
	`, executorID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return executor.ErrNotFound
	}
	return nil
}

func (r *ExecutorDirectory) List(ctx context.Context, limit, offset int) ([]*executor.Executor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+executorColumns+`
		FROM executors e ORDER BY e.executor_id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	execs, err := collectExecutors(rows)
	if err != nil {
		return nil, err
	}
	if err := r.loadServiceDefinitions(ctx, execs); err != nil {
		return nil, err
	}
	return execs, nil
}

func (r *ExecutorDirectory) Delete(ctx context.Context, executorID string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM executors WHERE executor_id=$1`, executorID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return executor.ErrNotFound
	}
	return nil
}

func (r *ExecutorDirectory) loadServiceDefinitions(ctx context.Context, execs []*executor.Executor) error {
	if len(execs) == 0 {
		return nil
	}
	byID := make(map[string]*executor.Executor, len(execs))
	ids := make([]string, 0, len(execs))
	for _, e := range execs {
		byID[e.ExecutorID] = e
		ids = append(ids, e.ExecutorID)
	}
	rows, err := r.pool.Query(ctx, `
		SELECT executor_id, service_definition, min_version, max_version
		FROM executor_service_definitions
		WHERE executor_id = ANY($1)
		ORDER BY executor_id, service_definition
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var d executor.ServiceDefinition
		if err := rows.Scan(&id, &d.ServiceDefinition, &d.MinVersion, &d.MaxVersion); err != nil {
			return err
		}
		if e, ok := byID[id]; ok {
			e.ServiceDefinitions = append(e.ServiceDefinitions, d)
		}
	}
	return rows.Err()
}

func collectExecutors(rows pgx.Rows) ([]*executor.Executor, error) {
	defer rows.Close()
	var out []*executor.Executor
	for rows.Next() {
		exec, err := scanExecutor(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

func scanExecutor(row pgx.Row) (*executor.Executor, error) {
	var exec executor.Executor
	if err := row.Scan(&exec.ExecutorID, &exec.Name, &exec.Address, &exec.Port, &exec.BasePath, &exec.Locked, &exec.CreatedAt, &exec.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &exec, nil
}

// mapUniqueViolation turns a duplicate id or endpoint into executor.ErrAlreadyExists.
func mapUniqueViolation(err error, exec *executor.Executor) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		if pgErr.ConstraintName == "executors_pkey" {
			return fmt.Errorf("%w: %s", executor.ErrAlreadyExists, exec.ExecutorID)
		}
		return fmt.Errorf("%w: endpoint %s:%d%s is already registered",
			executor.ErrAlreadyExists, exec.Address, exec.Port, exec.BasePath)
	}
	return err
}
