package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/vibast-solutions/ms-go-wxpay/app/entity"
)

// ErrConcurrentUpdate is returned by UpdateIfVersion when the row moved on
// since it was read.
var ErrConcurrentUpdate = errors.New("concurrent update")

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

func nullableStringValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func stringPtrFromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func serializeSnapshot(snapshot *entity.ResultSnapshot) (interface{}, error) {
	if snapshot == nil {
		return nil, nil
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return string(payload), nil
}

func parseSnapshot(raw sql.NullString) (*entity.ResultSnapshot, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	snapshot := &entity.ResultSnapshot{}
	if err := json.Unmarshal([]byte(raw.String), snapshot); err != nil {
		return nil, err
	}
	if snapshot.Payload == nil {
		snapshot.Payload = map[string]string{}
	}
	return snapshot, nil
}

// serializeSnapshots marshals snapshots in order, stopping at the first error.
func serializeSnapshots(snapshots ...*entity.ResultSnapshot) ([]interface{}, error) {
	out := make([]interface{}, 0, len(snapshots))
	for _, snapshot := range snapshots {
		value, err := serializeSnapshot(snapshot)
		if err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, nil
}

func inPlaceholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func checkVersionedUpdate(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrConcurrentUpdate
	}
	return nil
}
