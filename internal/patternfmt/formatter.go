// Package patternfmt renders a record's pattern string (e.g.
// "%(time) [%(level)] %(logger_name): %(message)") into the final log line,
// caching the compiled token list per (pattern, time pattern, timezone)
// tuple so loggers sharing a pattern share one compiled formatter.
package patternfmt

import (
	"strconv"
	"strings"
	"time"
)

// Record is the minimal view of a log record a Formatter needs to render a
// pattern.
type Record struct {
	TimestampNanos int64
	Level          string
	LoggerName     string
	ThreadID       string
	ThreadName     string
	File           string
	Line           int
	Function       string
	Message        string
}

type tokenKind int

const (
	tokenLiteral tokenKind = iota
	tokenTime
	tokenLevel
	tokenLoggerName
	tokenThreadID
	tokenThreadName
	tokenFile
	tokenLine
	tokenFunction
	tokenMessage
)

type token struct {
	kind    tokenKind
	literal string
}

// Formatter renders Records according to a compiled pattern.
type Formatter struct {
	tokens      []token
	timePattern string
	timezone    *time.Location
}

var placeholders = map[string]tokenKind{
	"%(time)":        tokenTime,
	"%(level)":       tokenLevel,
	"%(logger_name)": tokenLoggerName,
	"%(thread_id)":   tokenThreadID,
	"%(thread_name)": tokenThreadName,
	"%(file)":        tokenFile,
	"%(line)":        tokenLine,
	"%(function)":    tokenFunction,
	"%(message)":     tokenMessage,
}

// Compile parses pattern into a Formatter. timePattern is a Go reference
// layout (e.g. time.RFC3339Nano) used to render %(time); timezone defaults
// to time.Local when nil.
func Compile(pattern, timePattern string, timezone *time.Location) *Formatter {
	if timezone == nil {
		timezone = time.Local
	}
	if timePattern == "" {
		timePattern = "2006-01-02T15:04:05.000000Z07:00"
	}

	var tokens []token
	rest := pattern
	for len(rest) > 0 {
		matched := false
		for lit, kind := range placeholders {
			if strings.HasPrefix(rest, lit) {
				tokens = append(tokens, token{kind: kind})
				rest = rest[len(lit):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		next := len(rest)
		for lit := range placeholders {
			if idx := strings.Index(rest, lit); idx >= 0 && idx < next {
				next = idx
			}
		}
		if next == 0 {
			next = 1
		}
		tokens = append(tokens, token{kind: tokenLiteral, literal: rest[:next]})
		rest = rest[next:]
	}

	return &Formatter{tokens: tokens, timePattern: timePattern, timezone: timezone}
}

// Render writes the formatted record to a string.
func (f *Formatter) Render(r Record) string {
	var b strings.Builder
	for _, t := range f.tokens {
		switch t.kind {
		case tokenLiteral:
			b.WriteString(t.literal)
		case tokenTime:
			b.WriteString(time.Unix(0, r.TimestampNanos).In(f.timezone).Format(f.timePattern))
		case tokenLevel:
			b.WriteString(r.Level)
		case tokenLoggerName:
			b.WriteString(r.LoggerName)
		case tokenThreadID:
			b.WriteString(r.ThreadID)
		case tokenThreadName:
			b.WriteString(r.ThreadName)
		case tokenFile:
			b.WriteString(r.File)
		case tokenLine:
			b.WriteString(strconv.Itoa(r.Line))
		case tokenFunction:
			b.WriteString(r.Function)
		case tokenMessage:
			b.WriteString(r.Message)
		}
	}
	return b.String()
}
