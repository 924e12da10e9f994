package logger

import (
	"time"
)

// OperationLogger logs the steps of one pipeline operation with timing
type OperationLogger struct {
	logger    Logger
	operation string
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	if logger == nil {
		logger = GetGlobalLogger()
	}

	ol := &OperationLogger{
		logger:    logger.WithField("operation", operation),
		operation: operation,
		startTime: time.Now(),
	}

	ol.logger.Debug("Starting operation")
	return ol
}

// WithField adds a field to every subsequent line of the operation
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.logger = ol.logger.WithField(key, value)
	return ol
}

// WithFields adds multiple fields to the operation context
func (ol *OperationLogger) WithFields(fields Fields) *OperationLogger {
	ol.logger = ol.logger.WithFields(fields)
	return ol
}

// Step logs a step within the operation
func (ol *OperationLogger) Step(step string, fields Fields) {
	entry := ol.logger.WithField("step", step)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Info("Operation step")
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	}).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	}).Error(message)
}

// Elapsed returns the time since the operation started.
func (ol *OperationLogger) Elapsed() time.Duration {
	return time.Since(ol.startTime)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed successfully")
	}

	return err
}
