package clickhouse

import "fmt"

// PredictionsSchema returns the DDL for the prediction audit log. Rows are
// partitioned by month and expire after ttlDays (0 keeps them forever).
func PredictionsSchema(database, table string, ttlDays int) []string {
	ttl := ""
	if ttlDays > 0 {
		ttl = fmt.Sprintf("\nTTL created_at + INTERVAL %d DAY", ttlDays)
	}
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
    id              UUID,
    created_at      DateTime64(3, 'UTC'),
    source          LowCardinality(String),
    request_id      String,
    tenure          Int32,
    monthly_charges Float64,
    contract        LowCardinality(String),
    payment_method  LowCardinality(String),
    label           UInt8,
    probability     Float64,
    probability_pct Float64,
    unknown_fields  Array(LowCardinality(String)),
    model_version   LowCardinality(String)
) ENGINE = MergeTree
PARTITION BY toYYYYMM(created_at)
ORDER BY (created_at, id)%s`, database, table, ttl),
	}
}
