// ABOUTME: Visualization spec tagged union: one struct per variant behind a sealed Variant interface.
// ABOUTME: Handles the {"component", "props"} wire envelope, including the backend's "name" alias.

package viz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Kind names a visualization variant on the wire.
type Kind string

const (
	KindBarChart   Kind = "BarChart"
	KindTable      Kind = "Table"
	KindMetricCard Kind = "MetricCard"
	KindPieChart   Kind = "PieChart"
	KindLineChart  Kind = "LineChart"
	KindInfoCard   Kind = "InfoCard"
)

// Kinds lists every supported variant in preference order.
var Kinds = []Kind{KindBarChart, KindTable, KindMetricCard, KindPieChart, KindLineChart, KindInfoCard}

// Variant is implemented by exactly the six variant structs in this package.
type Variant interface {
	Kind() Kind
	variant()
}

// InfoCard is a single headline with no numeric series.
type InfoCard struct {
	Title string `json:"title" validate:"required"`
	Value Scalar `json:"value" validate:"required"`
	Icon  string `json:"icon,omitempty"`
	Color string `json:"color,omitempty"`
}

// MetricCard is a key metric with an optional change indicator.
type MetricCard struct {
	Title  string `json:"title" validate:"required"`
	Value  Scalar `json:"value" validate:"required"`
	Change string `json:"change,omitempty"`
	Color  string `json:"color,omitempty"`
}

// DataPoint is one labelled numeric entry of a chart series.
type DataPoint struct {
	Label string  `json:"label" validate:"required"`
	Value float64 `json:"value"`
}

// Series is the shared shape of the chart variants.
type Series struct {
	Title string      `json:"title,omitempty"`
	Data  []DataPoint `json:"data" validate:"min=2,dive"`
	Color string      `json:"color,omitempty"`
}

// BarChart compares values across categories.
type BarChart struct{ Series }

// LineChart shows a trend over an ordered axis.
type LineChart struct{ Series }

// PieChart shows proportions of a whole.
type PieChart struct{ Series }

// Table is a titled grid of cells.
type Table struct {
	Title   string   `json:"title,omitempty"`
	Headers []string `json:"headers" validate:"required,min=1"`
	Rows    [][]Cell `json:"rows" validate:"min=1"`
}

func (InfoCard) Kind() Kind   { return KindInfoCard }
func (MetricCard) Kind() Kind { return KindMetricCard }
func (BarChart) Kind() Kind   { return KindBarChart }
func (LineChart) Kind() Kind  { return KindLineChart }
func (PieChart) Kind() Kind   { return KindPieChart }
func (Table) Kind() Kind      { return KindTable }

func (InfoCard) variant()   {}
func (MetricCard) variant() {}
func (BarChart) variant()   {}
func (LineChart) variant()  {}
func (PieChart) variant()   {}
func (Table) variant()      {}

// Spec is a decoded visualization. The zero Spec has no variant and never
// validates or renders.
type Spec struct {
	Variant Variant
}

// Of wraps a variant in a Spec.
func Of(v Variant) Spec { return Spec{Variant: v} }

// Kind returns the variant's kind, or "" for the zero Spec.
func (s Spec) Kind() Kind {
	if s.Variant == nil {
		return ""
	}
	return s.Variant.Kind()
}

// IsZero reports whether the spec carries no variant.
func (s Spec) IsZero() bool { return s.Variant == nil }

type envelope struct {
	Component Kind            `json:"component,omitempty"`
	Name      Kind            `json:"name,omitempty"`
	Props     json.RawMessage `json:"props"`
}

// MarshalJSON writes the {"component", "props"} envelope.
func (s Spec) MarshalJSON() ([]byte, error) {
	if s.Variant == nil {
		return nil, errors.New("viz: cannot marshal empty spec")
	}
	props, err := json.Marshal(s.Variant)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Component: s.Variant.Kind(), Props: props})
}

// UnmarshalJSON decodes an envelope. Unknown kinds yield UnsupportedVariantError.
func (s *Spec) UnmarshalJSON(data []byte) error {
	decoded, err := decodeEnvelope(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// Decode parses one JSON envelope into a Result. It never validates; see Validate.
func Decode(raw []byte) Result {
	spec, err := decodeEnvelope(raw)
	if err != nil {
		return Err(err)
	}
	return Ok(spec)
}

func decodeEnvelope(raw []byte) (Spec, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Spec{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	kind := env.Component
	if kind == "" {
		kind = env.Name
	}
	if kind == "" {
		return Spec{}, fmt.Errorf("%w: missing component name", ErrMalformed)
	}
	props := bytes.TrimSpace(env.Props)
	if len(props) == 0 || bytes.Equal(props, []byte("null")) {
		return Spec{}, fmt.Errorf("%w: %s has no props", ErrMalformed, kind)
	}

	var v Variant
	var err error
	switch kind {
	case KindInfoCard:
		var c InfoCard
		err = json.Unmarshal(props, &c)
		v = c
	case KindMetricCard:
		var c MetricCard
		err = json.Unmarshal(props, &c)
		v = c
	case KindBarChart:
		var c BarChart
		err = json.Unmarshal(props, &c)
		v = c
	case KindLineChart:
		var c LineChart
		err = json.Unmarshal(props, &c)
		v = c
	case KindPieChart:
		var c PieChart
		err = json.Unmarshal(props, &c)
		v = c
	case KindTable:
		var c Table
		err = json.Unmarshal(props, &c)
		v = c
	default:
		return Spec{}, &UnsupportedVariantError{Kind: kind}
	}
	if err != nil {
		return Spec{}, fmt.Errorf("%w: %s props: %v", ErrMalformed, kind, err)
	}
	return Of(v), nil
}

// UnmarshalJSON accepts "label" or "name" for the label and requires a JSON
// number for the value.
func (d *DataPoint) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label *string         `json:"label"`
		Name  *string         `json:"name"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Label != nil:
		d.Label = *raw.Label
	case raw.Name != nil:
		d.Label = *raw.Name
	}
	value := bytes.TrimSpace(raw.Value)
	if len(value) == 0 || value[0] == '"' || value[0] == '{' || value[0] == '[' || bytes.Equal(value, []byte("null")) {
		return fmt.Errorf("data point %q: value %s is not numeric", d.Label, string(value))
	}
	f, err := strconv.ParseFloat(string(value), 64)
	if err != nil {
		return fmt.Errorf("data point %q: value %s is not numeric", d.Label, string(value))
	}
	d.Value = f
	return nil
}

// Scalar is a display value that arrives as either a JSON string or number.
type Scalar string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	text, err := scalarText(data)
	if err != nil {
		return err
	}
	*s = Scalar(text)
	return nil
}

// Cell is one table cell. Numbers and booleans are kept as their JSON text.
type Cell string

// UnmarshalJSON implements json.Unmarshaler.
func (c *Cell) UnmarshalJSON(data []byte) error {
	text, err := scalarText(data)
	if err != nil {
		return err
	}
	*c = Cell(text)
	return nil
}

func scalarText(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil
	}
	switch data[0] {
	case '"':
		var s string
		err := json.Unmarshal(data, &s)
		return s, err
	case '{', '[':
		return "", fmt.Errorf("expected string or number, got %s", string(data))
	default:
		return string(data), nil
	}
}

// DefaultCard is the fixed visualization used when every generation stage fails.
func DefaultCard() Spec {
	return Of(InfoCard{
		Title: "Analysis Complete",
		Value: "View response for details",
		Icon:  "📄",
		Color: "blue",
	})
}

// RecoveryCard is served by the generation endpoint when the pipeline itself
// fails unexpectedly.
func RecoveryCard() Spec {
	return Of(InfoCard{
		Title: "Analysis Complete",
		Value: "See response above",
		Icon:  "📄",
		Color: "gray",
	})
}
