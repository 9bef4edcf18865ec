package constants

// VoiceOption is one backend voice a device may request.
type VoiceOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Gender      string `json:"gender"`
	Description string `json:"description"`
}

type LanguageOption struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Region string `json:"region,omitempty"`
}

const (
	DefaultVoice    = "alloy"
	DefaultLanguage = "en"
)

var Voices = []VoiceOption{
	{ID: "alloy", Name: "Alloy", Gender: "neutral", Description: "Balanced & friendly"},
	{ID: "shimmer", Name: "Shimmer", Gender: "female", Description: "Warm & friendly"},
	{ID: "nova", Name: "Nova", Gender: "female", Description: "Clear & expressive"},
	{ID: "echo", Name: "Echo", Gender: "male", Description: "Calm & conversational"},
	{ID: "onyx", Name: "Onyx", Gender: "male", Description: "Deep & confident"},
}

var Languages = []LanguageOption{
	{Code: "en", Name: "English", Region: "US"},
	{Code: "en-GB", Name: "English", Region: "UK"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ja", Name: "Japanese"},
	{Code: "ko", Name: "Korean"},
	{Code: "zh", Name: "Chinese"},
	{Code: "hi", Name: "Hindi"},
	{Code: "ar", Name: "Arabic"},
	{Code: "ru", Name: "Russian"},
	{Code: "nl", Name: "Dutch"},
	{Code: "pl", Name: "Polish"},
	{Code: "tr", Name: "Turkish"},
	{Code: "sv", Name: "Swedish"},
	{Code: "th", Name: "Thai"},
	{Code: "vi", Name: "Vietnamese"},
	{Code: "id", Name: "Indonesian"},
	{Code: "ta", Name: "Tamil"},
	{Code: "te", Name: "Telugu"},
	{Code: "bn", Name: "Bengali"},
	{Code: "uk", Name: "Ukrainian"},
	{Code: "el", Name: "Greek"},
	{Code: "he", Name: "Hebrew"},
	{Code: "cs", Name: "Czech"},
	{Code: "ro", Name: "Romanian"},
	{Code: "hu", Name: "Hungarian"},
}

var (
	voicesByID      = make(map[string]VoiceOption, len(Voices))
	languagesByCode = make(map[string]LanguageOption, len(Languages))
)

func init() {
	for _, v := range Voices {
		voicesByID[v.ID] = v
	}
	for _, l := range Languages {
		languagesByCode[l.Code] = l
	}
}

func LookupVoice(id string) (VoiceOption, bool) {
	v, ok := voicesByID[id]
	return v, ok
}

func LookupLanguage(code string) (LanguageOption, bool) {
	l, ok := languagesByCode[code]
	return l, ok
}

// ResolveVoice returns id when it is in the catalog, otherwise fallback, and
// DefaultVoice when neither is known.
func ResolveVoice(id, fallback string) string {
	for _, candidate := range []string{id, fallback} {
		if _, ok := voicesByID[candidate]; ok {
			return candidate
		}
	}
	return DefaultVoice
}

func ResolveLanguage(code, fallback string) LanguageOption {
	for _, candidate := range []string{code, fallback} {
		if l, ok := languagesByCode[candidate]; ok {
			return l
		}
	}
	return languagesByCode[DefaultLanguage]
}
