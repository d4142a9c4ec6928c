package interpreter

// Language keywords. Keywords that take a payload carry their trailing space,
// so "പറയു" on its own is not a print command.
const (
	KeywordPrint      = "പറയു "
	KeywordPause      = "ചായകട"
	KeywordLoop       = "വരിക്കു "
	KeywordIf         = "എങ്കിൽ "
	KeywordIfBare     = "എങ്കിൽ"
	KeywordTerminator = "അവസാനം"

	OperatorAssign = "="
	OperatorEquals = "=="
)

// PauseMessage is emitted before every tea break.
const PauseMessage = "☕ ചായ കുടിക്കുന്നു... (5s break)"
