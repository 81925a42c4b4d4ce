package host

// Language tags a project's language. The engine only synchronizes packages
// for the fixed set of managed languages below; anything else is treated as
// not queryable.
type Language string

const (
	LanguageCSharp      Language = "csharp"
	LanguageFSharp      Language = "fsharp"
	LanguageVisualBasic Language = "vb"
)

// Supported reports whether the engine synchronizes packages for projects of
// this language.
func (l Language) Supported() bool {
	switch l {
	case LanguageCSharp, LanguageFSharp, LanguageVisualBasic:
		return true
	default:
		return false
	}
}
