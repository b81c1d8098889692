package google

import (
	"fmt"
	"strings"

	ports "budgetsim/internal/sheets"
)

func toValues(table [][]string) [][]interface{} {
	out := make([][]interface{}, len(table))
	for i, row := range table {
		out[i] = make([]interface{}, len(row))
		for j, v := range row {
			out[i][j] = v
		}
	}
	return out
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func indexOf(arr []string, target string) int {
	for i, v := range arr {
		if strings.EqualFold(v, target) {
			return i
		}
	}
	return -1
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}

// parseBalances converts a values matrix whose first row is the export header
// into name -> balance. Rows without a name are skipped.
func parseBalances(values [][]interface{}) (map[string]string, error) {
	out := map[string]string{}
	if len(values) == 0 {
		return out, nil
	}
	headers := toStrings(values[0])
	colName := indexOf(headers, ports.ColumnName)
	colBalance := indexOf(headers, ports.ColumnBankTotal)
	if colName == -1 || colBalance == -1 {
		return nil, fmt.Errorf("unexpected export header: got headers=%v", headers)
	}
	for _, raw := range values[1:] {
		row := toStrings(raw)
		name := safeGet(row, colName)
		if name == "" {
			continue
		}
		out[name] = safeGet(row, colBalance)
	}
	return out, nil
}
