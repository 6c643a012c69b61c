package utils

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type UtilsTestSuite struct {
	suite.Suite
}

func TestUtilsTestSuite(t *testing.T) {
	suite.Run(t, new(UtilsTestSuite))
}

func (suite *UtilsTestSuite) TestContractsToQuantity() {
	tests := []struct {
		name         string
		contracts    int
		contractSize float64
		precision    int
		expected     string
	}{
		{name: "one contract of 0.001", contracts: 1, contractSize: 0.001, precision: 3, expected: "0.001"},
		{name: "three contracts of 0.1", contracts: 3, contractSize: 0.1, precision: 3, expected: "0.300"},
		{name: "whole units", contracts: 2, contractSize: 1, precision: 0, expected: "2"},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, ContractsToQuantity(tc.contracts, tc.contractSize, tc.precision))
		})
	}
}

func (suite *UtilsTestSuite) TestQuantityToContracts() {
	suite.Equal(2, QuantityToContracts(0.002, 0.001))
	suite.Equal(-3, QuantityToContracts(-0.3, 0.1))
	suite.Equal(0, QuantityToContracts(0, 0.001))
	suite.Equal(0, QuantityToContracts(1, 0))
}
