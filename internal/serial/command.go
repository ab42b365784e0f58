// Package serial is the line protocol spoken over the USB CDC data port:
//
//	COMMAND:METADATA:PAYLOAD\n
//
// Split happens at the first two colons, payload may contain more.
package serial

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/temoto/zeos/internal/types"
)

const DebugPrefix = "debug:"

// ParseError means the line is dropped without response.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("serial parse: %s line=%q", e.Reason, Trunc(e.Line, 40))
}

func IsParseError(err error) bool {
	_, ok := err.(*ParseError)
	return ok
}

type Parser struct {
	// Debug enables `debug:` prefix, only effective in zeosdebug builds.
	Debug bool
	// Base64 accepts whole line base64 encoded command when line has no colon.
	Base64 bool
	Source string
}

// DebugBuild reports whether binary was built with zeosdebug tag.
func DebugBuild() bool { return debugBuild }

// Clean replaces every whitespace rune with space and trims.
func Clean(line string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, line))
}

// Parse never panics, malformed input is *ParseError.
func (p *Parser) Parse(line string) (types.Command, error) {
	if !utf8.ValidString(line) {
		return types.Command{}, &ParseError{Line: line, Reason: "invalid utf-8"}
	}
	line = Clean(line)
	if line == "" {
		return types.Command{}, &ParseError{Line: line, Reason: "empty line"}
	}
	if debugBuild && p.Debug && strings.HasPrefix(line, DebugPrefix) {
		line = line[len(DebugPrefix):]
	} else if p.Base64 && !strings.Contains(line, ":") {
		plain, err := base64.StdEncoding.DecodeString(line)
		if err != nil || !utf8.Valid(plain) {
			return types.Command{}, &ParseError{Line: line, Reason: "expected 3 parts"}
		}
		line = Clean(string(plain))
	}
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		return types.Command{}, &ParseError{Line: line, Reason: fmt.Sprintf("expected 3 parts, got %d", len(parts))}
	}
	c := types.Command{
		Name:    strings.TrimSpace(parts[0]),
		Meta:    strings.TrimSpace(parts[1]),
		Payload: strings.TrimSpace(parts[2]),
		Source:  p.Source,
	}
	if c.Name == "" {
		return types.Command{}, &ParseError{Line: line, Reason: "empty command"}
	}
	return c, nil
}

// Trunc cuts middle of long message for logs.
func Trunc(s string, max int) string {
	if len(s) <= max || max < 8 {
		return s
	}
	half := (max - 3) / 2
	return s[:half] + "..." + s[len(s)-half:]
}
