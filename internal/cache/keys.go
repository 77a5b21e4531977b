package cache

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
)

const (
	DatasetTTL = 24 * time.Hour
	LockTTL    = 10 * time.Second
	// EvaluationTTL keeps the last monitor result visible across restarts.
	EvaluationTTL = 7 * 24 * time.Hour

	EvaluationKey = "news:evaluation:latest"
)

// DatasetKey generates Redis key for a downloaded dataset config
func DatasetKey(name, config, split string) string {
	hash := sha1.Sum([]byte(fmt.Sprintf("%s|%s|%s", name, config, split)))
	return fmt.Sprintf("cache:v1:dataset:%x", hash)
}

// TraceLogKey generates Redis key for the log records of one trace
func TraceLogKey(traceID string) string {
	return fmt.Sprintf("trace:log:%s", strings.ToLower(traceID))
}

// LockKey generates Redis key guarding the computation of key
func LockKey(key string) string {
	return fmt.Sprintf("lock:%s", key)
}
