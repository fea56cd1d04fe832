package persistence

import (
	"context"
	"fmt"
)

// Session variable names read by the row-level security policies in
// database/schema/platform/rls.sql. Renaming either one without updating the
// policies turns every tenant filter into NULL and silently hides or exposes rows.
const (
	SessionTenantIDVar = "app.current_tenant_id"
	SessionUserRoleVar = "app.current_user_role"
)

const setLocalConfigSQL = `SELECT set_config($1, $2, true)`

// localSetter is implemented by transactions that cannot run set_config as a
// standalone round-trip and instead attach it to every statement batch.
type localSetter interface {
	setLocal(name, value string) error
}

// SetSessionVariable assigns a transaction-local setting. It stays visible to every
// later statement of tx and disappears at commit or rollback.
func SetSessionVariable(ctx context.Context, tx Tx, name, value string) error {
	if ls, ok := tx.(localSetter); ok {
		return ls.setLocal(name, value)
	}
	if _, err := tx.Exec(ctx, setLocalConfigSQL, name, value); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	return nil
}
