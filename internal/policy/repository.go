// AngelaMos | 2026
// repository.go

package policy

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/payroll-ledger/internal/core"
)

// Sync rewrites role_permissions from the compiled-in table so reporting
// queries see exactly what Check enforces.
func Sync(ctx context.Context, db *sqlx.DB) error {
	grants := Matrix()

	return core.InTx(ctx, db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions`); err != nil {
			return core.StoreError("clear role permissions", err)
		}

		query := `
			INSERT INTO role_permissions (role, permission)
			VALUES (:role, :permission)`

		for _, g := range grants {
			if _, err := tx.NamedExecContext(ctx, query, g); err != nil {
				return core.StoreError(
					fmt.Sprintf("insert grant %s/%s", g.Role, g.Permission),
					err,
				)
			}
		}

		return nil
	})
}
