package clickhouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN(ClientConfig{
		Host:         "ch",
		Port:         9000,
		Database:     "churn",
		User:         "default",
		Password:     "p@ss",
		DialTimeout:  5 * time.Second,
		MaxExecTime:  30 * time.Second,
		AsyncInsert:  true,
		WaitForAsync: true,
	})

	assert.True(t, strings.HasPrefix(dsn, "clickhouse://default:p%40ss@ch:9000/churn?"), dsn)
	assert.Contains(t, dsn, "dial_timeout=5s")
	assert.Contains(t, dsn, "max_execution_time=30")
	assert.Contains(t, dsn, "async_insert=1")
	assert.Contains(t, dsn, "wait_for_async_insert=1")
}

func TestBuildDSNHTTP(t *testing.T) {
	dsn := buildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "churn", UseHTTP: true})
	assert.True(t, strings.HasPrefix(dsn, "http://ch:8123/churn"), dsn)
}

func TestPredictionsSchema(t *testing.T) {
	stmts := PredictionsSchema("churn", "predictions", 90)
	assert.Len(t, stmts, 2)
	assert.Equal(t, "CREATE DATABASE IF NOT EXISTS churn", stmts[0])
	assert.Contains(t, stmts[1], "CREATE TABLE IF NOT EXISTS churn.predictions")
	assert.Contains(t, stmts[1], "TTL created_at + INTERVAL 90 DAY")

	assert.NotContains(t, PredictionsSchema("churn", "predictions", 0)[1], "TTL")
}
