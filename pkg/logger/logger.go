package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	log  *zap.Logger
	once sync.Once
)

// Init builds the process logger. Development mode uses the console encoder,
// anything else logs JSON at info level.
func Init(env string) error {
	var err error
	var l *zap.Logger
	if env == "development" {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return err
	}
	log = l
	return nil
}

// Get returns the process logger. Before Init it falls back to a no-op
// logger so library code and tests never nil-check.
func Get() *zap.Logger {
	once.Do(func() {
		if log == nil {
			log = zap.NewNop()
		}
	})
	return log
}

// Sync flushes buffered entries. Call on shutdown.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
