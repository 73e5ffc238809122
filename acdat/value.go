package acdat

// Char marks a value as a single UTF-16 code unit on the wire, distinct
// from a general uint16. Use it when a caller wants the narrower
// wire tag instead of the generic unsigned-integer encoding.
type Char uint16

// Decimal carries an arbitrary-precision decimal literal through the
// codec as an opaque string. Go has no native decimal type; this
// preserves the wire tag the original value types reserve for one
// without pretending float64 round-trips it exactly.
type Decimal string
