package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"go.uber.org/zap"
)

var exportable = map[string]struct{}{
	"labels":           {},
	MatrixView:         {},
	"signals":          {},
	"job_runs":         {},
	"models":           {},
	"backtest_results": {},
}

// ExportParquet copies a table or view to a parquet file inside dir and returns its path.
func (s *Store) ExportParquet(ctx context.Context, table, dir string) (string, error) {
	if _, ok := exportable[table]; !ok {
		return "", errors.Newf(errors.ErrCodeInvalidParameter, "table %s cannot be exported", table)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(errors.ErrCodeExportFailed, "failed to create export directory", err)
	}

	path := filepath.Join(dir, table+".parquet")

	query := fmt.Sprintf(`COPY (SELECT * FROM %s) TO %s (FORMAT PARQUET)`, quoteIdent(table), quoteLiteral(path))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return "", errors.Wrapf(errors.ErrCodeExportFailed, err, "failed to export %s", table)
	}

	s.logger.Info("Exported table", zap.String("table", table), zap.String("path", path))

	return path, nil
}
