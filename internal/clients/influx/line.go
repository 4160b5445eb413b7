package influx

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/foliosync/foliosync/internal/models"
)

// encodeLine renders one point in InfluxDB line protocol with nanosecond
// timestamps. Tags and fields are emitted in sorted key order so output is
// deterministic.
func encodeLine(p models.Point) (string, error) {
	if p.Measurement == "" {
		return "", fmt.Errorf("point has no measurement")
	}
	if len(p.Fields) == 0 {
		return "", fmt.Errorf("point %q has no fields", p.Measurement)
	}

	var b strings.Builder
	b.WriteString(escapeMeasurement(p.Measurement))

	for _, k := range sortedKeys(p.Tags) {
		v := p.Tags[k]
		if v == "" {
			continue
		}
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(v))
	}

	b.WriteByte(' ')
	fieldKeys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)

	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		val, err := encodeFieldValue(p.Fields[k])
		if err != nil {
			return "", fmt.Errorf("field %q: %w", k, err)
		}
		b.WriteString(val)
	}

	if !p.Time.IsZero() {
		b.WriteByte(' ')
		b.WriteString(strconv.FormatInt(p.Time.UnixNano(), 10))
	}

	return b.String(), nil
}

// encodeLines renders a batch as the newline-joined write body
func encodeLines(points []models.Point) (string, error) {
	lines := make([]string, 0, len(points))
	for _, p := range points {
		line, err := encodeLine(p)
		if err != nil {
			return "", err
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"), nil
}

func encodeFieldValue(v interface{}) (string, error) {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), nil
	case int:
		return strconv.FormatInt(int64(val), 10) + "i", nil
	case int64:
		return strconv.FormatInt(val, 10) + "i", nil
	case bool:
		return strconv.FormatBool(val), nil
	case string:
		return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(val) + `"`, nil
	default:
		return "", fmt.Errorf("unsupported type %T", v)
	}
}

func escapeMeasurement(s string) string {
	return strings.NewReplacer(`,`, `\,`, ` `, `\ `).Replace(s)
}

func escapeTag(s string) string {
	return strings.NewReplacer(`,`, `\,`, `=`, `\=`, ` `, `\ `).Replace(s)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
