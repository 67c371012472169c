package logging

import (
	"io"
	"log"
	"os"
	"regexp"
)

const redactedMarker = "REDACTED"

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)("(?:api_?key|secret|passphrase)"\s*:\s*")([^"]*)(")`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|secret|passphrase)=)([^&\s"']+)()`),
}

func New() *log.Logger {
	return NewWithWriter(os.Stdout)
}

func NewWithWriter(w io.Writer) *log.Logger {
	return log.New(w, "polylatency ", log.LstdFlags|log.LUTC)
}

// Redact masks credential values in s.
func Redact(s string) string {
	for _, pattern := range secretPatterns {
		s = pattern.ReplaceAllString(s, "${1}"+redactedMarker+"${3}")
	}
	return s
}
