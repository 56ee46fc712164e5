package scoring

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"
)

// FeatureNames is the column order every scorer receives.
var FeatureNames = []string{"latitude", "longitude", "hour", "day_of_week", "crime_type_enc", "severity"}

// RiskScoreKey is the field RankRecords adds to each record.
const RiskScoreKey = "risk_score"

// DefaultTopN is used when the caller gives no usable limit.
const DefaultTopN = 10

// Record is one incident as submitted by a client. Unknown fields pass through.
type Record map[string]any

// Number returns the numeric value of key, or 0 when it is absent or not a number.
func (r Record) Number(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func (r Record) has(key string) bool {
	_, ok := r[key]
	return ok
}

var timeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// Features builds the raw feature vector of a record in FeatureNames order.
// Missing columns are 0 and the crime type is never encoded. hour and
// day_of_week fall back to the record's "time" field (Monday = 0) when absent.
func Features(r Record) []float64 { return Vector(r, FeatureNames) }

// Vector builds the raw feature vector of a record for the named columns.
// Columns outside FeatureNames are read from the record as numbers.
func Vector(r Record, names []string) []float64 {
	hour, dow := r.Number("hour"), r.Number("day_of_week")
	if ts, ok := r["time"].(string); ok && (!r.has("hour") || !r.has("day_of_week")) {
		for _, layout := range timeLayouts {
			t, err := time.Parse(layout, ts)
			if err != nil {
				continue
			}
			if !r.has("hour") {
				hour = float64(t.Hour())
			}
			if !r.has("day_of_week") {
				dow = float64((int(t.Weekday()) + 6) % 7)
			}
			break
		}
	}
	out := make([]float64, len(names))
	for i, name := range names {
		switch name {
		case "hour":
			out[i] = hour
		case "day_of_week":
			out[i] = dow
		case "crime_type_enc", "crime_type_encoded":
			out[i] = 0
		default:
			out[i] = r.Number(name)
		}
	}
	return out
}

// Columnar is implemented by scorers that declare their own feature columns.
type Columnar interface {
	Columns() []string
}

// VectorFor builds the feature vector s expects: its own columns when it
// declares them, FeatureNames otherwise.
func VectorFor(s Scorer, r Record) []float64 {
	if c, ok := s.(Columnar); ok {
		return Vector(r, c.Columns())
	}
	return Features(r)
}

// RankRecords scores every record, orders them by descending risk and keeps
// the first topN. Input records are not modified.
func RankRecords(records []Record, s Scorer, topN int) ([]Record, error) {
	out := make([]Record, len(records))
	for i, rec := range records {
		p, err := s.Score(VectorFor(s, rec))
		if err != nil {
			return nil, fmt.Errorf("score record %d: %w", i, err)
		}
		cp := make(Record, len(rec)+1)
		for k, v := range rec {
			cp[k] = v
		}
		cp[RiskScoreKey] = p
		out[i] = cp
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i][RiskScoreKey].(float64) > out[j][RiskScoreKey].(float64)
	})
	if topN < 0 {
		topN = 0
	}
	if topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}

// ParseTopN reads a topn query value; anything unparsable or negative yields DefaultTopN.
func ParseTopN(v string) int {
	if v == "" {
		return DefaultTopN
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return DefaultTopN
	}
	return n
}
