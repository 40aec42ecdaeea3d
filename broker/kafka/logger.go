package kafka

import "github.com/go-kratos/kratos/v2/log"

// Logger kafka-go 的普通日志，写入量较大，降为 debug
type Logger struct {
	logger *log.Helper
}

func (l *Logger) Printf(msg string, args ...interface{}) {
	l.logger.Debugf("kafka: "+msg, args...)
}

type ErrorLogger struct {
	logger *log.Helper
}

func (l *ErrorLogger) Printf(msg string, args ...interface{}) {
	l.logger.Errorf("kafka: "+msg, args...)
}
