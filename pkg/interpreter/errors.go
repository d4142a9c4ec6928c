package interpreter

import "fmt"

// ErrorKind classifies a script error line.
type ErrorKind int

const (
	ErrUnknownCommand ErrorKind = iota
	ErrInvalidLoopCount
	ErrInvalidCondition
)

var errorFormats = map[ErrorKind]string{
	ErrUnknownCommand:   "❌ തെറ്റ്: '%s' എനിക്ക് മനസ്സിലായില്ല",
	ErrInvalidLoopCount: "❌ തെറ്റ്: '%s' സംഖ്യയല്ല",
	ErrInvalidCondition: "❌ തെറ്റ്: '%s' ശരിയായ സ്ഥിതിയല്ല",
}

var errorKindNames = map[ErrorKind]string{
	ErrUnknownCommand:   "UNKNOWN_COMMAND",
	ErrInvalidLoopCount: "INVALID_LOOP_COUNT",
	ErrInvalidCondition: "INVALID_CONDITION",
}

// String returns the log name of the kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ScriptError is a failure inside a running script. It never aborts a run;
// its rendered form is appended to the output like any other line.
type ScriptError struct {
	Kind   ErrorKind
	Source string // offending text, quoted verbatim in the message
}

// Error renders the output line for the error.
func (e *ScriptError) Error() string {
	return fmt.Sprintf(errorFormats[e.Kind], e.Source)
}

func newScriptError(kind ErrorKind, source string) *ScriptError {
	return &ScriptError{Kind: kind, Source: source}
}
