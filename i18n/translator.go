package i18n

// Translator retrieves localized messages for issue codes.
// data provides optional metadata to embed in the message.
type Translator interface {
	Message(code string, data map[string]string) string
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	switch t.lang {
	case "ja":
		switch code {
		case "malformed_document":
			return "データシート文書が不正です"
		case "unknown_class":
			return "未知のクラスです"
		case "unknown_member":
			return "未知のメンバーです（非推奨データとして保持）"
		case "invalid_value":
			return "値が不正です"
		case "duplicate_uuid":
			return "UUIDが重複しています"
		case "dangling_instance":
			return "参照されていないインスタンスです"
		case "unresolved_instance":
			return "インスタンスを解決できません"
		case "invalid_reference":
			return "参照先のクラスが不正です"
		case "invalid_parent":
			return "親データシートが不正です"
		case "recursive_parent":
			return "親データシートが循環しています"
		case "binding_version":
			return "バインディングのバージョンが異なります"
		}
	default: // "en"
		switch code {
		case "malformed_document":
			return "malformed datasheet document"
		case "unknown_class":
			return "unknown class"
		case "unknown_member":
			return "unknown data member (kept as deprecated data)"
		case "invalid_value":
			return "invalid value"
		case "duplicate_uuid":
			return "duplicate uuid"
		case "dangling_instance":
			return "instance object is not referenced"
		case "unresolved_instance":
			return "instance object cannot be resolved"
		case "invalid_reference":
			return "referenced datasheet has an incompatible class"
		case "invalid_parent":
			return "invalid parent datasheet"
		case "recursive_parent":
			return "recursive parent datasheet"
		case "binding_version":
			return "binding version mismatch"
		}
	}
	return code
}

var currentTranslator Translator = dictTranslator{lang: "en"}

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if lang != "ja" {
		lang = "en"
	}
	currentTranslator = dictTranslator{lang: lang}
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version).
func SetTranslator(tr Translator) {
	if tr == nil {
		currentTranslator = dictTranslator{lang: "en"}
		return
	}
	currentTranslator = tr
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string { return currentTranslator.Message(code, data) }
