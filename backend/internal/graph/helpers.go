package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ============================================================================
// Record Helpers
// ============================================================================

func getStringFromRecord(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	if str, ok := val.(string); ok {
		return str
	}
	return ""
}

func getIntFromRecord(record *neo4j.Record, key string) int {
	return int(getInt64FromRecord(record, key))
}

func getInt64FromRecord(record *neo4j.Record, key string) int64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func getFloat64FromRecord(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0.0
	}
	if f, ok := val.(float64); ok {
		return f
	}
	if i, ok := val.(int64); ok {
		return float64(i)
	}
	return 0.0
}

func getTimeFromRecord(record *neo4j.Record, key string) time.Time {
	val, ok := record.Get(key)
	if !ok {
		return time.Time{}
	}
	return asTime(val)
}

func getStringSliceFromRecord(record *neo4j.Record, key string) []string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return []string{}
	}
	return asStringSlice(val)
}

// asTime converts Neo4j temporal values (DateTime arrives as time.Time)
func asTime(val interface{}) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v.UTC()
	case neo4j.LocalDateTime:
		return time.Time(v).UTC()
	case neo4j.Date:
		return time.Time(v).UTC()
	}
	return time.Time{}
}

func asStringSlice(val interface{}) []string {
	slice, ok := val.([]interface{})
	if !ok {
		return []string{}
	}
	result := make([]string, 0, len(slice))
	for _, v := range slice {
		if str, ok := v.(string); ok && str != "" {
			result = append(result, str)
		}
	}
	return result
}

// timeParam formats t for datetime($param); the zero time becomes null
func timeParam(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
