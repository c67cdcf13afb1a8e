package whery

// ValueKey is an owning tuple specifying exact values for a subset of an
// underlying record schema's columns, identified by fieldIndices.
type ValueKey struct {
	FreshTuple
	fieldIndices []int
}

// NewValueKey builds a ValueKey over the columns named by fieldIndices,
// using the corresponding manipulators from schema (schema is the full
// underlying record schema; fieldIndices select and order a subset of
// it). Returns ErrEmptySchema if fieldIndices is empty.
func NewValueKey(schema []FieldManipulator, fieldIndices []int) (*ValueKey, error) {
	if len(fieldIndices) == 0 {
		return nil, ErrEmptySchema
	}

	projected := make([]FieldManipulator, len(fieldIndices))
	for i, idx := range fieldIndices {
		projected[i] = schema[idx]
	}

	layout, err := NewLayout(projected)
	if err != nil {
		return nil, err
	}

	idx := make([]int, len(fieldIndices))
	copy(idx, fieldIndices)

	return &ValueKey{
		FreshTuple:   *NewFreshTuple(layout),
		fieldIndices: idx,
	}, nil
}

// FieldIndices returns the underlying-schema column indices this key's
// fields correspond to.
func (k *ValueKey) FieldIndices() []int { return k.fieldIndices }

// RangeEndpointKind distinguishes inclusive from exclusive range
// endpoints.
type RangeEndpointKind int

const (
	Closed RangeEndpointKind = iota
	Open
)

// rangeEndpoint pairs an owning value with its inclusive/exclusive kind.
type rangeEndpoint struct {
	value *ValueKey
	kind  RangeEndpointKind
}

// RangeKey describes an interval over a subset of an underlying record
// schema's columns, with optional open/closed low and high endpoints.
type RangeKey struct {
	schema       []FieldManipulator
	fieldIndices []int
	low          *rangeEndpoint
	high         *rangeEndpoint
}

// NewRangeKey builds a RangeKey over the columns named by fieldIndices,
// using the corresponding manipulators from schema. Returns
// ErrEmptySchema if fieldIndices is empty. Neither endpoint is set
// initially.
func NewRangeKey(schema []FieldManipulator, fieldIndices []int) (*RangeKey, error) {
	if len(fieldIndices) == 0 {
		return nil, ErrEmptySchema
	}
	idx := make([]int, len(fieldIndices))
	copy(idx, fieldIndices)
	sch := make([]FieldManipulator, len(schema))
	copy(sch, schema)
	return &RangeKey{schema: sch, fieldIndices: idx}, nil
}

// Arity returns the key's arity (number of selected columns).
func (k *RangeKey) Arity() int { return len(k.fieldIndices) }

// FieldIndices returns the underlying-schema column indices this key's
// fields correspond to.
func (k *RangeKey) FieldIndices() []int { return k.fieldIndices }

// HasLow reports whether the range has a low endpoint.
func (k *RangeKey) HasLow() bool { return k.low != nil }

// HasHigh reports whether the range has a high endpoint.
func (k *RangeKey) HasHigh() bool { return k.high != nil }

// ClearLow removes the low endpoint, if any.
func (k *RangeKey) ClearLow() { k.low = nil }

// ClearHigh removes the high endpoint, if any.
func (k *RangeKey) ClearHigh() { k.high = nil }

// ensureLow lazily creates a closed-kind low endpoint if absent, per the
// source's RangeKey::ensure_endpoint convenience.
func (k *RangeKey) ensureLow() *rangeEndpoint {
	if k.low == nil {
		vk, err := NewValueKey(k.schema, k.fieldIndices)
		if err != nil {
			panic(err)
		}
		k.low = &rangeEndpoint{value: vk, kind: Closed}
	}
	return k.low
}

// ensureHigh lazily creates a closed-kind high endpoint if absent.
func (k *RangeKey) ensureHigh() *rangeEndpoint {
	if k.high == nil {
		vk, err := NewValueKey(k.schema, k.fieldIndices)
		if err != nil {
			panic(err)
		}
		k.high = &rangeEndpoint{value: vk, kind: Closed}
	}
	return k.high
}

// LowValue returns a mutable view of the low endpoint's value,
// lazily creating a closed endpoint if none exists yet.
func (k *RangeKey) LowValue() *ValueKey { return k.ensureLow().value }

// HighValue returns a mutable view of the high endpoint's value,
// lazily creating a closed endpoint if none exists yet.
func (k *RangeKey) HighValue() *ValueKey { return k.ensureHigh().value }

// LowKind returns the kind of the low endpoint, lazily creating a
// closed endpoint if none exists yet.
func (k *RangeKey) LowKind() RangeEndpointKind { return k.ensureLow().kind }

// HighKind returns the kind of the high endpoint, lazily creating a
// closed endpoint if none exists yet.
func (k *RangeKey) HighKind() RangeEndpointKind { return k.ensureHigh().kind }

// SetLowKind sets the kind of the low endpoint, lazily creating it if
// absent.
func (k *RangeKey) SetLowKind(kind RangeEndpointKind) { k.ensureLow().kind = kind }

// SetHighKind sets the kind of the high endpoint, lazily creating it if
// absent.
func (k *RangeKey) SetHighKind(kind RangeEndpointKind) { k.ensureHigh().kind = kind }
