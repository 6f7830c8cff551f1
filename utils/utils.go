package utils

import (
	"fmt"
	"log"
	"strings"
)

// AddToLogMessage appends one formatted line to a per-unit log buffer.
// The buffer is flushed once with FlushLogMessage so lines of one item stay together.
func AddToLogMessage(logMessagesBuilder *strings.Builder, format string, args ...any) {
	if logMessagesBuilder == nil {
		return
	}
	if len(args) > 0 {
		format = fmt.Sprintf(format, args...)
	}
	logMessagesBuilder.WriteString(format)
	logMessagesBuilder.WriteString(";")
	logMessagesBuilder.WriteString("\n")
}

// FlushLogMessage writes the accumulated buffer to the standard logger
func FlushLogMessage(logMessagesBuilder *strings.Builder) {
	if logMessagesBuilder == nil || logMessagesBuilder.Len() == 0 {
		return
	}
	log.Print(strings.TrimSuffix(logMessagesBuilder.String(), "\n"))
	logMessagesBuilder.Reset()
}
