package storage

import (
	"context"
	"fmt"
	"time"

	"VisaDecisions/internal/domain"
)

// RecordDocument remembers a processed bulletin. Reprocessing the same filename
// refreshes the row and accumulates its new-record count.
func (s *SQLStore) RecordDocument(ctx context.Context, doc domain.Document) error {
	addedAt := doc.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now()
	}

	query, args, err := s.builder.
		Insert("documents").
		Columns("filename", "url", "run_id", "week_label", "new_records", "date_added").
		Values(doc.Filename, doc.URL, doc.RunID, doc.WeekLabel, doc.NewRecords, addedAt.UTC().Format(timestampLayout)).
		Suffix(`ON CONFLICT (filename) DO UPDATE SET
			run_id = excluded.run_id,
			week_label = excluded.week_label,
			new_records = documents.new_records + excluded.new_records,
			date_added = excluded.date_added`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record document: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record document %s: %w", doc.Filename, err)
	}
	return nil
}

// KnownDocuments returns the set of recorded filenames.
func (s *SQLStore) KnownDocuments(ctx context.Context) (map[string]bool, error) {
	query, args, err := s.builder.Select("filename").From("documents").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build known documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	result := map[string]bool{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan filename: %w", err)
		}
		result[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Documents lists processed bulletins, newest first.
func (s *SQLStore) Documents(ctx context.Context) ([]domain.Document, error) {
	query, args, err := s.builder.
		Select("filename", "url", "run_id", "week_label", "new_records", "date_added").
		From("documents").
		OrderBy("date_added DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build documents: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	var result []domain.Document
	for rows.Next() {
		var (
			doc   domain.Document
			added string
		)
		if err := rows.Scan(&doc.Filename, &doc.URL, &doc.RunID, &doc.WeekLabel, &doc.NewRecords, &added); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if doc.AddedAt, err = time.Parse(timestampLayout, added); err != nil {
			return nil, fmt.Errorf("parse date_added %q: %w", added, err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}
