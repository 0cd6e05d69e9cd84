// Package splitter turns a SQL script into executable statements.
//
// Statements are split on ';' except inside CREATE PROCEDURE, FUNCTION and
// TRIGGER definitions, which run up to the first END; and are kept whole.
// Outside routines a ';' inside quotes or comments does not split, and
// pieces holding nothing but comments are dropped. Quoting follows MySQL:
// '...', "..." and `...`, with doubled quotes and backslash escapes.
package splitter

import (
	"fmt"
	"regexp"
	"strings"
)

// Statement is one executable unit of a script.
type Statement struct {
	// Ordinal is the 1-based position in execution order.
	Ordinal int
	SQL     string
	// Routine marks a CREATE PROCEDURE/FUNCTION/TRIGGER ... END; block.
	Routine bool
}

func (s Statement) String() string {
	return fmt.Sprintf("#%d %s", s.Ordinal, s.SQL)
}

// Warning records input the splitter could only handle on a best-effort basis.
type Warning struct {
	Ordinal int
	Message string
}

// Result holds the statements of a script in execution order.
type Result struct {
	Statements []Statement
	Warnings   []Warning
}

// Func is a dialect-specific splitter.
type Func func(script string) Result

var (
	routineStart = regexp.MustCompile(`(?i)\bCREATE\s+(?:PROCEDURE|FUNCTION|TRIGGER)\b`)
	routineEnd   = regexp.MustCompile(`(?i)\bEND\s*;`)
	delimiter    = regexp.MustCompile(`(?im)^[ \t]*DELIMITER\s+\S+`)
)

// Split splits script into statements, keeping routine bodies intact.
func Split(script string) Result {
	var res Result
	text := blankLineComments(script)

	pos := 0
	for pos < len(text) {
		loc := routineStart.FindStringIndex(text[pos:])
		if loc == nil {
			res.appendPlain(text[pos:])
			break
		}
		start := pos + loc[0]
		res.appendPlain(text[pos:start])

		end := routineEnd.FindStringIndex(text[start:])
		if end == nil {
			rest := strings.TrimSpace(text[start:])
			if rest != "" {
				res.append(rest, true)
				res.Warnings = append(res.Warnings, Warning{
					Ordinal: len(res.Statements),
					Message: "routine definition has no terminating END; statement emitted as-is",
				})
			}
			break
		}
		stop := start + end[1]
		res.append(strings.TrimSpace(text[start:stop]), true)
		pos = stop
	}
	return res
}

// HasDelimiterDirective reports whether the script changes the client
// delimiter. Only command-line clients understand DELIMITER.
func HasDelimiterDirective(script string) bool {
	return delimiter.MatchString(blankLineComments(script))
}

// SQLs returns the statement texts in order.
func (r Result) SQLs() []string {
	out := make([]string, len(r.Statements))
	for i, st := range r.Statements {
		out[i] = st.SQL
	}
	return out
}

func (r *Result) appendPlain(text string) {
	var (
		start   int
		quote   byte // open quote character, 0 outside quotes
		line    bool // inside a -- or # comment
		block   bool // inside a /* */ comment
		hasCode bool // piece holds something besides comments
		tail    bool // piece ends with a -- or # comment
	)
	emit := func(end int) {
		piece := strings.TrimSpace(text[start:end])
		if hasCode && piece != "" {
			if tail {
				// The terminator would otherwise land in the comment
				piece += "\n"
			}
			r.append(piece+";", false)
		}
		hasCode = false
		tail = false
	}

	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case line:
			if ch == '\n' {
				line = false
			}
		case block:
			if ch == '*' && i+1 < len(text) && text[i+1] == '/' {
				block = false
				i++
			}
		case quote != 0:
			switch {
			case ch == '\\' && quote != '`':
				i++
			case ch == quote && i+1 < len(text) && text[i+1] == quote:
				i++
			case ch == quote:
				quote = 0
			}
		case ch == '-' && i+1 < len(text) && text[i+1] == '-', ch == '#':
			line = true
			tail = true
		case ch == '/' && i+1 < len(text) && text[i+1] == '*':
			block = true
			tail = false
			i++
		case ch == ';':
			emit(i)
			start = i + 1
		default:
			if ch == '\'' || ch == '"' || ch == '`' {
				quote = ch
			}
			if !isSpace(ch) {
				hasCode = true
				tail = false
			}
		}
	}
	emit(len(text))
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f' || ch == '\v'
}

func (r *Result) append(sql string, routine bool) {
	r.Statements = append(r.Statements, Statement{
		Ordinal: len(r.Statements) + 1,
		SQL:     sql,
		Routine: routine,
	})
}

// blankLineComments empties lines that hold nothing but a -- comment.
// Line breaks are kept so the remaining text keeps its shape.
func blankLineComments(script string) string {
	if !strings.Contains(script, "--") {
		return script
	}
	lines := strings.Split(script, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			lines[i] = ""
		}
	}
	return strings.Join(lines, "\n")
}
