package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// GetSetting returns a value and whether it is set. A NULL value counts as unset.
func (s *SQLStore) GetSetting(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.builder.
		Select("value").
		From("settings").
		Where(sq.Eq{"setting": key}).
		ToSql()
	if err != nil {
		return "", false, fmt.Errorf("build get setting: %w", err)
	}

	var value sql.NullString
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return value.String, value.Valid, nil
}

// SetSetting upserts a value; nil stores NULL.
func (s *SQLStore) SetSetting(ctx context.Context, key string, value *string) error {
	var v sql.NullString
	if value != nil {
		v = sql.NullString{String: *value, Valid: true}
	}

	query, args, err := s.builder.
		Insert("settings").
		Columns("setting", "value").
		Values(key, v).
		Suffix("ON CONFLICT (setting) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("build set setting: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// DeleteSetting removes the row and reports whether it existed.
func (s *SQLStore) DeleteSetting(ctx context.Context, key string) (bool, error) {
	query, args, err := s.builder.Delete("settings").Where(sq.Eq{"setting": key}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build delete setting: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete setting %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListSettings returns every setting; unset values map to nil.
func (s *SQLStore) ListSettings(ctx context.Context) (map[string]*string, error) {
	query, args, err := s.builder.Select("setting", "value").From("settings").OrderBy("setting").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list settings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	defer rows.Close()

	result := map[string]*string{}
	for rows.Next() {
		var (
			key   string
			value sql.NullString
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		if value.Valid {
			v := value.String
			result[key] = &v
		} else {
			result[key] = nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// ResetSettings deletes every setting.
func (s *SQLStore) ResetSettings(ctx context.Context) error {
	query, args, err := s.builder.Delete("settings").ToSql()
	if err != nil {
		return fmt.Errorf("build reset settings: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("reset settings: %w", err)
	}
	return nil
}
