package influx

import (
	"strings"
	"testing"
	"time"

	"github.com/foliosync/foliosync/internal/models"
)

func TestEncodeLine_SortedTagsAndFields(t *testing.T) {
	p := models.Point{
		Measurement: "positions",
		Tags: map[string]string{
			"symbol":   "AAPL",
			"exchange": "NASDAQ",
		},
		Fields: map[string]interface{}{
			"value":    1505.0,
			"price":    150.5,
			"quantity": 10.0,
		},
	}

	line, err := encodeLine(p)
	if err != nil {
		t.Fatalf("encodeLine failed: %v", err)
	}

	expected := "positions,exchange=NASDAQ,symbol=AAPL price=150.5,quantity=10,value=1505"
	if line != expected {
		t.Errorf("expected %q, got %q", expected, line)
	}
}

func TestEncodeLine_Timestamp(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	p := models.Point{
		Measurement: "portfolio",
		Fields:      map[string]interface{}{"total_value": 15505.25},
		Time:        ts,
	}

	line, err := encodeLine(p)
	if err != nil {
		t.Fatalf("encodeLine failed: %v", err)
	}

	expected := "portfolio total_value=15505.25 1773480600000000000"
	if line != expected {
		t.Errorf("expected %q, got %q", expected, line)
	}
}

func TestEncodeLine_IntegerFieldSuffix(t *testing.T) {
	p := models.Point{
		Measurement: "portfolio",
		Fields: map[string]interface{}{
			"position_count": 7,
			"total_value":    15505.0,
		},
	}

	line, err := encodeLine(p)
	if err != nil {
		t.Fatalf("encodeLine failed: %v", err)
	}

	if !strings.Contains(line, "position_count=7i") {
		t.Errorf("expected integer suffix in %q", line)
	}
	if !strings.Contains(line, "total_value=15505") {
		t.Errorf("expected float field in %q", line)
	}
}

func TestEncodeLine_Escaping(t *testing.T) {
	p := models.Point{
		Measurement: "my measurement",
		Tags:        map[string]string{"label": "a=b, c"},
		Fields:      map[string]interface{}{"note": `say "hi"`},
	}

	line, err := encodeLine(p)
	if err != nil {
		t.Fatalf("encodeLine failed: %v", err)
	}

	expected := `my\ measurement,label=a\=b\,\ c note="say \"hi\""`
	if line != expected {
		t.Errorf("expected %q, got %q", expected, line)
	}
}

func TestEncodeLine_SkipsEmptyTagValues(t *testing.T) {
	p := models.Point{
		Measurement: "positions",
		Tags:        map[string]string{"symbol": "VAS", "sector": ""},
		Fields:      map[string]interface{}{"value": 100.0},
	}

	line, err := encodeLine(p)
	if err != nil {
		t.Fatalf("encodeLine failed: %v", err)
	}

	expected := "positions,symbol=VAS value=100"
	if line != expected {
		t.Errorf("expected %q, got %q", expected, line)
	}
}

func TestEncodeLine_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		point models.Point
	}{
		{"no measurement", models.Point{Fields: map[string]interface{}{"v": 1.0}}},
		{"no fields", models.Point{Measurement: "positions"}},
		{"unsupported field type", models.Point{
			Measurement: "positions",
			Fields:      map[string]interface{}{"v": []string{"nope"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := encodeLine(tt.point); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestEncodeLines_JoinsWithNewlines(t *testing.T) {
	points := []models.Point{
		{Measurement: "positions", Tags: map[string]string{"symbol": "AAPL"}, Fields: map[string]interface{}{"value": 1505.0}},
		{Measurement: "positions", Tags: map[string]string{"symbol": "GOOGL"}, Fields: map[string]interface{}{"value": 14000.0}},
	}

	body, err := encodeLines(points)
	if err != nil {
		t.Fatalf("encodeLines failed: %v", err)
	}

	lines := strings.Split(body, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), body)
	}
	if !strings.HasPrefix(lines[0], "positions,symbol=AAPL") {
		t.Errorf("unexpected first line: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "positions,symbol=GOOGL") {
		t.Errorf("unexpected second line: %q", lines[1])
	}
}
