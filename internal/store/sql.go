package store

import (
	"fmt"
	"strings"

	"github.com/sells-group/childcare-etl/internal/model"
)

// placeholder renders the n-th (1-based) bind parameter for a dialect.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

// insertSQL names every column of model.Columns and binds one parameter per
// column; Provider.Values supplies the arguments in the same order.
func insertSQL(ph placeholder) string {
	names := model.ColumnNames()
	params := make([]string, len(names))
	for i := range names {
		params[i] = ph(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		model.Table, strings.Join(names, ", "), strings.Join(params, ", "))
}

// updateSQL sets every column of model.Columns; the id is the final parameter.
func updateSQL(ph placeholder) string {
	names := model.ColumnNames()
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = fmt.Sprintf("%s = %s", name, ph(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = %s",
		model.Table, strings.Join(sets, ", "), ph(len(names)+1))
}

func findByIdentitySQL(ph placeholder) string {
	return fmt.Sprintf(
		"SELECT id, record_hash FROM %s WHERE address1 = %s AND city = %s AND state = %s ORDER BY id LIMIT 1",
		model.Table, ph(1), ph(2), ph(3))
}

func selectByIDSQL(ph placeholder) string {
	return fmt.Sprintf("SELECT id, %s FROM %s WHERE id = %s",
		strings.Join(model.ColumnNames(), ", "), model.Table, ph(1))
}

const countBySourceSQL = "SELECT source_file, COUNT(*) FROM " + model.Table + " GROUP BY source_file"

// identityArgs returns the bind arguments for findByIdentitySQL.
func identityArgs(key model.IdentityKey) []any {
	return []any{*key.Address1, *key.City, *key.State}
}
