package logger

type NullLogger struct{}

var _ Logger = (*NullLogger)(nil)

func (NullLogger) Successf(string, ...interface{}) {}

func (NullLogger) Debugf(string, ...interface{}) {}

func (NullLogger) Warnf(string, ...interface{}) {}

func (NullLogger) SQL(string, ...interface{}) {}

func (NullLogger) Error(error) {}
