package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
)

func AddEventLog(ctx context.Context, db *pgxpool.Pool, format string, args ...any) error {
	tag, err := db.Exec(ctx, `INSERT INTO eventlog (msg) values ($1)`, fmt.Sprintf(format, args...))
	if err != nil {
		return err
	}
	if !tag.Insert() {
		return errors.New("returned tag is not insert")
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("returned affected rows on insert is not 1 (%d)", tag.RowsAffected())
	}
	return nil
}
