package storage

import (
	"context"
	"fmt"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// ReadArticlesParquet reads scored articles from a parquet file with the columns id,
// published_on, source, title, categories, tags, score, confidence and an optional
// event_type. Articles are ordered by publication time.
func (s *Store) ReadArticlesParquet(ctx context.Context, path string) ([]types.Article, error) {
	s.logger.Debug("Reading scored articles", zap.String("path", path))

	hasEvent, err := s.parquetHasColumn(ctx, path, "event_type")
	if err != nil {
		return nil, err
	}

	event := "''"
	if hasEvent {
		event = "COALESCE(CAST(event_type AS TEXT), '')"
	}

	query := fmt.Sprintf(`
		SELECT CAST(id AS TEXT), CAST(published_on AS TIMESTAMP), COALESCE(source, ''), COALESCE(title, ''),
			COALESCE(categories, ''), COALESCE(tags, ''), CAST(score AS DOUBLE), COALESCE(CAST(confidence AS DOUBLE), 0), %s
		FROM read_parquet(%s)
		WHERE score IS NOT NULL
		ORDER BY published_on, id
	`, event, quoteLiteral(path))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read articles from %s", path)
	}
	defer rows.Close()

	articles := make([]types.Article, 0)

	for rows.Next() {
		var a types.Article
		if err := rows.Scan(&a.ID, &a.Published, &a.Source, &a.Title, &a.Categories, &a.Tags, &a.Score, &a.Confidence, &a.EventType); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan article", err)
		}

		a.Published = a.Published.UTC()
		articles = append(articles, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate articles", err)
	}

	return articles, nil
}

func (s *Store) parquetHasColumn(ctx context.Context, path, column string) (bool, error) {
	query := fmt.Sprintf(`SELECT count(*) FROM parquet_schema(%s) WHERE name = ?`, quoteLiteral(path))

	var n int
	if err := s.db.QueryRowContext(ctx, query, column).Scan(&n); err != nil {
		return false, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read schema of %s", path)
	}

	return n > 0, nil
}
