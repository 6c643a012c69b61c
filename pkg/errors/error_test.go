package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidSignal, "invalid signal")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidSignal, err.Code)
	suite.Equal("invalid signal", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeCapExceeded, "ledger at cap %d", 6)
	suite.NotNil(err)
	suite.Equal(ErrCodeCapExceeded, err.Code)
	suite.Equal("ledger at cap 6", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeConnectivity, "broker unreachable", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeConnectivity, err.Code)
	suite.Equal("broker unreachable", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("rejected")
	err := Wrapf(ErrCodeSubmissionFailed, cause, "failed to submit %s order", "MKT")
	suite.NotNil(err)
	suite.Equal(ErrCodeSubmissionFailed, err.Code)
	suite.Equal("failed to submit MKT order", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidSignal, "invalid signal")
	suite.Equal("[200] invalid signal", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeConnectivity, "broker unreachable", cause)
	suite.Equal("[300] broker unreachable: connection refused", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("connection refused")
	err := Wrap(ErrCodeConnectivity, "broker unreachable", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeConnectivity, "broker unreachable")
	err := Wrap(ErrCodeSubmissionFailed, "submission failed", cause)
	// GetCode returns the outermost code
	suite.Equal(ErrCodeSubmissionFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromStandardError() {
	suite.Equal(ErrCodeUnknown, GetCode(errors.New("standard error")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeCapExceeded, "cap")
	suite.True(HasCode(err, ErrCodeCapExceeded))
	suite.False(HasCode(err, ErrCodeInvalidSignal))
}

func (suite *ErrorTestSuite) TestIsAndAs() {
	cause := errors.New("underlying")
	err := Wrap(ErrCodeSubmissionFailed, "submission failed", cause)
	suite.True(Is(err, cause))

	var coded *Error
	suite.True(As(err, &coded))
	suite.Equal(ErrCodeSubmissionFailed, coded.Code)
}

func (suite *ErrorTestSuite) TestIsRejection() {
	suite.True(IsRejection(New(ErrCodeInvalidSignal, "x")))
	suite.True(IsRejection(New(ErrCodeCapExceeded, "x")))
	suite.True(IsRejection(New(ErrCodeMarketDataMissing, "x")))
	suite.False(IsRejection(New(ErrCodeConnectivity, "x")))
	suite.False(IsRejection(New(ErrCodeSubmissionFailed, "x")))
	suite.False(IsRejection(errors.New("plain")))
	suite.False(IsRejection(nil))
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeInvalidSignal)
	suite.Equal(ErrorCode(300), ErrCodeConnectivity)
	suite.Equal(ErrorCode(400), ErrCodeQueueFull)
	suite.Equal(ErrorCode(500), ErrCodeJournalInitFailed)
}

func (suite *ErrorTestSuite) TestCodeString() {
	suite.Equal("invalid_signal", ErrCodeInvalidSignal.String())
	suite.Equal("unprotected_position", ErrCodeUnprotectedPosition.String())
	suite.Equal("journal_write_failed", ErrCodeJournalWriteFailed.String())
	suite.Equal("result_timeout", ErrCodeResultTimeout.String())
	suite.Equal("299", ErrorCode(299).String())
}

func (suite *ErrorTestSuite) TestCategory() {
	tests := []struct {
		code     ErrorCode
		expected Category
	}{
		{ErrCodeUnknown, CategoryGeneral},
		{ErrCodeInvalidProvider, CategoryValidation},
		{ErrCodeMarketDataMissing, CategorySignal},
		{ErrCodeCancelFailed, CategoryBroker},
		{ErrCodeEngineStopped, CategoryEngine},
		{ErrCodeResultTimeout, CategoryEngine},
		{ErrCodeJournalInitFailed, CategoryJournal},
	}

	for _, tc := range tests {
		suite.Equal(tc.expected, tc.code.Category(), tc.code.String())
	}
}

func (suite *ErrorTestSuite) TestIsBrokerFailure() {
	wrapped := Wrap(ErrCodeUnprotectedPosition, "stop rejected", New(ErrCodeSubmissionFailed, "x"))
	suite.True(IsBrokerFailure(wrapped))
	suite.False(IsBrokerFailure(New(ErrCodeCapExceeded, "x")))
	suite.False(IsBrokerFailure(nil))
}
