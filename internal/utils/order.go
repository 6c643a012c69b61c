package utils

import (
	"math"
	"strconv"
)

// ContractsToQuantity converts a whole contract count into the venue quantity
// string (contracts × contractSize) at the given precision.
func ContractsToQuantity(contracts int, contractSize float64, decimalPrecision int) string {
	return strconv.FormatFloat(float64(contracts)*contractSize, 'f', decimalPrecision, 64)
}

// QuantityToContracts converts a signed venue quantity into whole contracts,
// rounding to the nearest contract.
func QuantityToContracts(quantity float64, contractSize float64) int {
	if contractSize <= 0 {
		return 0
	}

	return int(math.Round(quantity / contractSize))
}
