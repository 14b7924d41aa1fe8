// ABOUTME: Tests for decoding and encoding visualization envelopes.
// ABOUTME: Covers every variant, the "name" alias, loose scalar types, and malformed payloads.

package viz

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Variant
	}{
		{
			name: "bar chart",
			raw:  `{"component":"BarChart","props":{"title":"Quarterly Revenue","data":[{"label":"Q1","value":12500},{"label":"Q2","value":14200.5}]}}`,
			want: BarChart{Series{Title: "Quarterly Revenue", Data: []DataPoint{{"Q1", 12500}, {"Q2", 14200.5}}}},
		},
		{
			name: "line chart with name labels",
			raw:  `{"component":"LineChart","props":{"data":[{"name":"Jan","value":2450},{"name":"Feb","value":2520}],"color":"green"}}`,
			want: LineChart{Series{Data: []DataPoint{{"Jan", 2450}, {"Feb", 2520}}, Color: "green"}},
		},
		{
			name: "pie chart",
			raw:  `{"component":"PieChart","props":{"title":"Mix","data":[{"label":"Digital","value":45},{"label":"Retail","value":55}]}}`,
			want: PieChart{Series{Title: "Mix", Data: []DataPoint{{"Digital", 45}, {"Retail", 55}}}},
		},
		{
			name: "table with numeric cells",
			raw:  `{"component":"Table","props":{"headers":["Metric","Value"],"rows":[["Revenue",2300],["EBITDA","₹58K Cr"]]}}`,
			want: Table{Headers: []string{"Metric", "Value"}, Rows: [][]Cell{{"Revenue", "2300"}, {"EBITDA", "₹58K Cr"}}},
		},
		{
			name: "metric card",
			raw:  `{"component":"MetricCard","props":{"title":"Revenue Growth","value":"₹2,34,500 Cr","change":"+15.2%","color":"green"}}`,
			want: MetricCard{Title: "Revenue Growth", Value: "₹2,34,500 Cr", Change: "+15.2%", Color: "green"},
		},
		{
			name: "info card with numeric value via name alias",
			raw:  `{"name":"InfoCard","props":{"title":"Pages","value":42,"icon":"📊"}}`,
			want: InfoCard{Title: "Pages", Value: "42", Icon: "📊"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Decode([]byte(tt.raw))
			require.NoError(t, r.Err)
			assert.Equal(t, tt.want, r.Spec.Variant)
			assert.Equal(t, tt.want.Kind(), r.Spec.Kind())
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	tests := map[string]string{
		"not json":          `{"component":`,
		"missing component": `{"props":{"title":"x"}}`,
		"missing props":     `{"component":"InfoCard"}`,
		"null props":        `{"component":"InfoCard","props":null}`,
		"string value":      `{"component":"BarChart","props":{"data":[{"label":"Q1","value":"100"},{"label":"Q2","value":2}]}}`,
		"null value":        `{"component":"BarChart","props":{"data":[{"label":"Q1","value":null},{"label":"Q2","value":2}]}}`,
		"object cell":       `{"component":"Table","props":{"rows":[[{"a":1}]]}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			r := Decode([]byte(raw))
			require.Error(t, r.Err)
			assert.ErrorIs(t, r.Err, ErrMalformed)
			assert.False(t, r.OK())
		})
	}
}

func TestDecodeUnsupportedVariant(t *testing.T) {
	r := Decode([]byte(`{"component":"Heatmap","props":{}}`))
	var unsupported *UnsupportedVariantError
	require.True(t, errors.As(r.Err, &unsupported))
	assert.Equal(t, Kind("Heatmap"), unsupported.Kind)
}

func TestSpecJSONRoundTripUsesComponentEnvelope(t *testing.T) {
	spec := Of(MetricCard{Title: "EBITDA", Value: "₹58K Cr", Change: "+11%"})
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"component":"MetricCard","props":{"title":"EBITDA","value":"₹58K Cr","change":"+11%"}}`, string(raw))

	var back Spec
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, spec, back)
}

func TestMarshalEmptySpecFails(t *testing.T) {
	_, err := json.Marshal(Spec{})
	assert.Error(t, err)
}

func TestDefaultCards(t *testing.T) {
	def := DefaultCard()
	card, ok := def.Variant.(InfoCard)
	require.True(t, ok)
	assert.Equal(t, "Analysis Complete", card.Title)
	assert.Equal(t, Scalar("View response for details"), card.Value)
	assert.Equal(t, "blue", card.Color)

	rec, ok := RecoveryCard().Variant.(InfoCard)
	require.True(t, ok)
	assert.Equal(t, "gray", rec.Color)
}
