package widget

import (
	"encoding/json"
	"strconv"
)

// PlaceholderKey tags locally generated fallback data.
const PlaceholderKey = "placeholder"

// FallbackFunc builds placeholder content for an action.
type FallbackFunc func(action string, data json.RawMessage) json.RawMessage

// ChartPoint is one point of a chart series.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// ChartData is the payload shape chart widgets render.
type ChartData struct {
	Placeholder bool         `json:"placeholder,omitempty"`
	Title       string       `json:"title,omitempty"`
	Points      []ChartPoint `json:"points"`
}

// TableData is the payload shape table widgets render.
type TableData struct {
	Placeholder bool       `json:"placeholder,omitempty"`
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
}

// ChartFallback returns a FallbackFunc producing a flat chart of n points.
func ChartFallback(n int) FallbackFunc {
	return func(action string, _ json.RawMessage) json.RawMessage {
		points := make([]ChartPoint, n)
		for i := range points {
			points[i] = ChartPoint{Label: strconv.Itoa(i + 1)}
		}
		return mustMarshal(ChartData{
			Placeholder: true,
			Title:       "No data available",
			Points:      points,
		})
	}
}

// TableFallback returns a FallbackFunc producing an empty table.
func TableFallback(columns ...string) FallbackFunc {
	return func(action string, _ json.RawMessage) json.RawMessage {
		return mustMarshal(TableData{
			Placeholder: true,
			Columns:     columns,
			Rows:        [][]string{},
		})
	}
}

// EmptyFallback produces {"placeholder":true}.
func EmptyFallback(string, json.RawMessage) json.RawMessage {
	return json.RawMessage(`{"placeholder":true}`)
}

// IsPlaceholder reports whether data carries the placeholder tag.
func IsPlaceholder(data json.RawMessage) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return false
	}
	var tagged bool
	if raw, ok := probe[PlaceholderKey]; ok && json.Unmarshal(raw, &tagged) == nil {
		return tagged
	}
	return false
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
