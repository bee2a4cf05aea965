package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"itqan-progress-service/internal/domain"
)

// CatalogLoader reads the achievement catalog from Postgres in definition
// order, which is the order the evaluator must preserve.
type CatalogLoader struct {
	pool *pgxpool.Pool
}

func NewCatalogLoader(pool *pgxpool.Pool) *CatalogLoader {
	return &CatalogLoader{pool: pool}
}

func (l *CatalogLoader) LoadCatalog(ctx context.Context) ([]domain.Achievement, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, name, criteria, threshold, grade_group, reward
		FROM achievements
		ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	defer rows.Close()

	var defs []domain.Achievement
	for rows.Next() {
		var def domain.Achievement
		if err := rows.Scan(&def.ID, &def.Name, &def.Criteria, &def.Threshold, &def.GradeGroup, &def.Reward); err != nil {
			return nil, fmt.Errorf("scan achievement: %w", err)
		}
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return defs, nil
}
