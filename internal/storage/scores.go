package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rxtech-lab/argo-fusion/internal/types"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

// ReadPriceScores reads the price-forecast scores of one day from a parquet or CSV file
// with asset and score columns. Assets are returned in name order.
func (s *Store) ReadPriceScores(ctx context.Context, path string) ([]types.PriceScore, error) {
	var reader string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		reader = fmt.Sprintf("read_parquet(%s)", quoteLiteral(path))
	case ".csv":
		reader = fmt.Sprintf("read_csv_auto(%s)", quoteLiteral(path))
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "unsupported price score file %s", path)
	}

	query := fmt.Sprintf(`
		SELECT CAST(asset AS TEXT), CAST(score AS DOUBLE)
		FROM %s
		WHERE score IS NOT NULL
		ORDER BY 1
	`, reader)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to read price scores from %s", path)
	}
	defer rows.Close()

	scores := make([]types.PriceScore, 0)

	for rows.Next() {
		var score types.PriceScore
		if err := rows.Scan(&score.Asset, &score.Score); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan price score", err)
		}

		scores = append(scores, score)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to iterate price scores", err)
	}

	s.logger.Debug("Read price scores", zap.String("path", path), zap.Int("assets", len(scores)))

	return scores, nil
}
