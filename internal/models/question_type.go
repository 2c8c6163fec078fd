package models

// QuestionType is the display type tag of a question.
type QuestionType string

const (
	TypeText                QuestionType = "text"
	TypeTextMultiline       QuestionType = "text_multiline"
	TypeTextGrouped         QuestionType = "text_grouped"
	TypeMCQ                 QuestionType = "mcq"
	TypeSCMCQ               QuestionType = "scmcq"
	TypeMCMCQ               QuestionType = "mcmcq"
	TypeDrawing             QuestionType = "drawing"
	TypeAudio               QuestionType = "audio"
	TypeFileUpload          QuestionType = "file_upload"
	TypeMatching            QuestionType = "matching"
	TypeVigilance           QuestionType = "vigilance"
	TypeDigitSpan           QuestionType = "digit_span"
	TypeMemoryRegistration  QuestionType = "memory_registration"
	TypeMemoryWordsDisplay  QuestionType = "memory_words_display"
	TypeNameAddressLearning QuestionType = "name_address_learning"
	TypeNamingGrouped       QuestionType = "naming_grouped"
)

// AllQuestionTypes lists every display type the runner can render.
var AllQuestionTypes = []QuestionType{
	TypeText,
	TypeTextMultiline,
	TypeTextGrouped,
	TypeMCQ,
	TypeSCMCQ,
	TypeMCMCQ,
	TypeDrawing,
	TypeAudio,
	TypeFileUpload,
	TypeMatching,
	TypeVigilance,
	TypeDigitSpan,
	TypeMemoryRegistration,
	TypeMemoryWordsDisplay,
	TypeNameAddressLearning,
	TypeNamingGrouped,
}

func (t QuestionType) IsValid() bool {
	for _, known := range AllQuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// IsTimedDisplay reports whether the type runs a display -> recall cycle.
func (t QuestionType) IsTimedDisplay() bool {
	switch t {
	case TypeMemoryRegistration, TypeMemoryWordsDisplay, TypeNameAddressLearning:
		return true
	}
	return false
}

// TakesMedia reports whether answers of this type are stored as media
// references.
func (t QuestionType) TakesMedia() bool {
	switch t {
	case TypeDrawing, TypeAudio, TypeFileUpload:
		return true
	}
	return false
}
