package logger

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNew() {
	tests := []struct {
		name    string
		opts    Options
		wantErr bool
	}{
		{name: "defaults", opts: Options{}},
		{name: "debug json", opts: Options{Level: "debug", Format: FormatJSON}},
		{name: "warn console", opts: Options{Level: "warn", Format: FormatConsole}},
		{name: "error", opts: Options{Level: "error"}},
		{name: "unknown level", opts: Options{Level: "loud"}, wantErr: true},
		{name: "unknown format", opts: Options{Format: "xml"}, wantErr: true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			logger, err := New(tc.opts)
			if tc.wantErr {
				suite.Error(err)
				suite.Nil(logger)

				return
			}

			suite.NoError(err)
			suite.NotNil(logger)
		})
	}
}

func (suite *LoggerTestSuite) TestNewLoggerWithLevel() {
	logger, err := NewLoggerWithLevel("debug")
	suite.NoError(err)
	suite.True(logger.Core().Enabled(zapcore.DebugLevel))
}

func (suite *LoggerTestSuite) TestNamedAndWith() {
	core, logs := observer.New(zapcore.InfoLevel)
	root := &Logger{Logger: zap.New(core)}

	root.Named("engine").Named("ledger").With(zap.String("instrument", "MNQ")).Info("committed")

	entries := logs.All()
	suite.Require().Len(entries, 1)
	suite.Equal("engine.ledger", entries[0].LoggerName)
	suite.Equal("MNQ", entries[0].ContextMap()["instrument"])
}

func (suite *LoggerTestSuite) TestNamedOnNilLogger() {
	var logger *Logger

	// a nil logger yields a usable no-op child
	suite.NotPanics(func() { logger.Named("paper").Info("ignored") })
	suite.NotPanics(func() { (&Logger{}).With(zap.Int("n", 1)).Info("ignored") })
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}
	suite.NoError(logger.Sync())
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	suite.NotNil(logger.Logger)

	logger.Info("test info message")
	logger.Warn("test warn message")
	suite.NoError(logger.Sync())
}
