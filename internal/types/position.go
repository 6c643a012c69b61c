package types

// PositionSnapshot is the broker's authoritative net position for the tracked
// instrument at one point in time. It is fetched fresh for every reconciliation.
type PositionSnapshot struct {
	// Quantity is the signed contract count (positive = long).
	Quantity int `yaml:"quantity" json:"quantity"`
	// Found is false when the broker reported no entry for the instrument.
	Found bool `yaml:"found" json:"found"`
}
