package interpreter

import "strings"

// CommandKind is the closed set of things a source line can be.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandAssign
	CommandPrint
	CommandPause
	CommandLoop
	CommandIf
)

var commandKindNames = map[CommandKind]string{
	CommandUnknown: "UNKNOWN",
	CommandAssign:  "ASSIGN",
	CommandPrint:   "PRINT",
	CommandPause:   "PAUSE",
	CommandLoop:    "LOOP",
	CommandIf:      "IF",
}

func (k CommandKind) String() string {
	return commandKindNames[k]
}

// IsBlockStart reports whether the kind opens a block that needs a terminator.
func (k CommandKind) IsBlockStart() bool {
	return k == CommandLoop || k == CommandIf
}

// Command is one classified source line.
type Command struct {
	Kind CommandKind
	Line string // trimmed source line

	// Name and Value are set for CommandAssign. Value has one pair of
	// enclosing quotes removed.
	Name  string
	Value string

	// Payload is everything after the keyword for print, loop and if.
	Payload string
}

// Classify decides what a single line is. The checks run in a fixed order and
// the first match wins: assignment, print, pause, loop, if. Classify has no
// side effects; whether loop and if are honoured depends on where the caller
// is dispatching from.
func Classify(line string) Command {
	line = strings.TrimSpace(line)
	cmd := Command{Kind: CommandUnknown, Line: line}

	switch {
	case strings.Contains(line, OperatorAssign) && !strings.HasPrefix(line, KeywordIfBare):
		name, value, _ := strings.Cut(line, OperatorAssign)
		cmd.Kind = CommandAssign
		cmd.Name = strings.TrimSpace(name)
		cmd.Value = unquote(strings.TrimSpace(value))
	case strings.HasPrefix(line, KeywordPrint):
		cmd.Kind = CommandPrint
		cmd.Payload = strings.TrimPrefix(line, KeywordPrint)
	case strings.HasPrefix(line, KeywordPause):
		cmd.Kind = CommandPause
	case strings.HasPrefix(line, KeywordLoop):
		cmd.Kind = CommandLoop
		cmd.Payload = strings.TrimSpace(strings.TrimPrefix(line, KeywordLoop))
	case strings.HasPrefix(line, KeywordIf):
		cmd.Kind = CommandIf
		cmd.Payload = strings.TrimSpace(strings.TrimPrefix(line, KeywordIf))
	}
	return cmd
}

// ClassifyStatement classifies a program-level line. Block starts are
// checked before assignment there, so `വരിക്കു n=2` still opens a loop.
// Everywhere else Classify applies.
func ClassifyStatement(line string) Command {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, KeywordLoop):
		return Command{
			Kind:    CommandLoop,
			Line:    trimmed,
			Payload: strings.TrimSpace(strings.TrimPrefix(trimmed, KeywordLoop)),
		}
	case strings.HasPrefix(trimmed, KeywordIf):
		return Command{
			Kind:    CommandIf,
			Line:    trimmed,
			Payload: strings.TrimSpace(strings.TrimPrefix(trimmed, KeywordIf)),
		}
	}
	return Classify(trimmed)
}

// isQuoted reports whether s starts and ends with a double quote. A lone `"`
// counts and unquotes to the empty string.
func isQuoted(s string) bool {
	return strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`)
}

// unquote strips exactly one pair of enclosing double quotes. No escape
// processing is done.
func unquote(s string) string {
	if !isQuoted(s) {
		return s
	}
	if len(s) < 2 {
		return ""
	}
	return s[1 : len(s)-1]
}
