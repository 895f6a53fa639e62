package repository

import (
	"context"
	"fmt"

	"github.com/ErezMalka/bite-checkout-signing/internal/plans"
	"github.com/lib/pq"
)

// FetchPlans batch-loads plan rows for all given products in one round trip.
func (r *Repository) FetchPlans(ctx context.Context, productIDs []int64) ([]plans.PlanRow, error) {
	query := `SELECT product_id, installments, surcharge_pct
	          FROM product_payment_plans
	          WHERE product_id = ANY($1)
	          ORDER BY product_id, installments`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("query payment plans: %w", err)
	}
	defer rows.Close()

	var result []plans.PlanRow
	for rows.Next() {
		var row plans.PlanRow
		if err := rows.Scan(&row.ProductID, &row.Installments, &row.SurchargePct); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return result, nil
}

func (r *Repository) UpsertPlan(ctx context.Context, productID int64, installments int, surchargePct float64) error {
	query := `INSERT INTO product_payment_plans (product_id, installments, surcharge_pct, created_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (product_id, installments)
	          DO UPDATE SET surcharge_pct = EXCLUDED.surcharge_pct`

	_, err := r.db.ExecContext(ctx, query, productID, installments, surchargePct)
	if err != nil {
		return fmt.Errorf("upsert payment plan: %w", err)
	}
	return nil
}
