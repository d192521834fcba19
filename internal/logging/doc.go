// Package logging provides a simple leveled logging interface for the
// verticlipper service.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable, or
// forced to debug with DEBUG=true. Component loggers created with With
// prefix each line with the component name so that compose and cleanup
// activity can be told apart in a shared log stream.
package logging
