package types

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type SignalTestSuite struct {
	suite.Suite
}

func TestSignalSuite(t *testing.T) {
	suite.Run(t, new(SignalTestSuite))
}

func (suite *SignalTestSuite) TestParseSignal() {
	tests := []struct {
		name     string
		raw      string
		expected Signal
	}{
		{name: "long entry", raw: "long entry", expected: SignalLongEntry},
		{name: "short entry", raw: "short entry", expected: SignalShortEntry},
		{name: "long exit", raw: "long exit", expected: SignalLongExit},
		{name: "short exit", raw: "short exit", expected: SignalShortExit},
		{name: "upper case", raw: "LONG ENTRY", expected: SignalLongEntry},
		{name: "mixed case with padding", raw: "  Short Exit ", expected: SignalShortExit},
		{name: "underscore", raw: "long_exit", expected: SignalLongExit},
		{name: "hyphen", raw: "short-entry", expected: SignalShortEntry},
		{name: "double space", raw: "long  entry", expected: SignalLongEntry},
		{name: "hold", raw: "hold", expected: SignalInvalid},
		{name: "empty", raw: "", expected: SignalInvalid},
		{name: "partial", raw: "long", expected: SignalInvalid},
		{name: "literal invalid", raw: "invalid", expected: SignalInvalid},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, ParseSignal(tc.raw))
		})
	}
}

func (suite *SignalTestSuite) TestClassification() {
	suite.True(SignalLongEntry.IsEntry())
	suite.True(SignalShortEntry.IsEntry())
	suite.False(SignalLongExit.IsEntry())

	suite.True(SignalLongExit.IsExit())
	suite.True(SignalShortExit.IsExit())
	suite.False(SignalShortEntry.IsExit())

	suite.False(SignalInvalid.IsValid())
	suite.False(SignalInvalid.IsEntry())
	suite.False(SignalInvalid.IsExit())
	suite.True(SignalLongExit.IsValid())
}
