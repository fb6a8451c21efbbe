// Package catalog holds the static avatar customization catalogs: characters,
// styles, voices, gestures, backgrounds and the character/style compatibility
// matrix. Data is fixed at build time; accessors return copies.
package catalog

import "strings"

type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Style struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Voice struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Gender   string `json:"gender"`
	Language string `json:"language"`
}

type Gesture struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type BackgroundType string

const (
	BackgroundColor       BackgroundType = "color"
	BackgroundTransparent BackgroundType = "transparent"
	BackgroundImage       BackgroundType = "image"
)

type Background struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Type  BackgroundType `json:"type"`
	Value string         `json:"value"`
}

var characters = []Character{
	{ID: "lisa", Name: "Lisa", Description: "Professional female avatar"},
	{ID: "mark", Name: "Mark", Description: "Professional male avatar"},
	{ID: "anna", Name: "Anna", Description: "Casual female avatar"},
	{ID: "jenny", Name: "Jenny", Description: "Friendly female avatar"},
	{ID: "ryan", Name: "Ryan", Description: "Young male avatar"},
}

var styles = []Style{
	{ID: "casual-sitting", Name: "Casual Sitting", Description: "Relaxed seated pose"},
	{ID: "graceful-sitting", Name: "Graceful Sitting", Description: "Elegant seated pose"},
	{ID: "standing", Name: "Standing", Description: "Professional standing pose"},
	{ID: "casual", Name: "Casual", Description: "Relaxed casual pose"},
	{ID: "professional", Name: "Professional", Description: "Business professional pose"},
}

// Each character supports only a subset of poses; synthesis rejects pairs
// outside this matrix, so validation has to enforce it up front.
var styleMatrix = map[string][]string{
	"lisa":  {"casual-sitting"},
	"mark":  {"standing", "professional"},
	"anna":  {"graceful-sitting", "casual"},
	"jenny": {"casual", "casual-sitting"},
	"ryan":  {"standing", "professional", "casual"},
}

var voices = []Voice{
	{ID: "en-US-JennyNeural", Name: "Jenny (US)", Gender: "Female", Language: "English (US)"},
	{ID: "en-US-AriaNeural", Name: "Aria (US)", Gender: "Female", Language: "English (US)"},
	{ID: "en-US-DavisNeural", Name: "Davis (US)", Gender: "Male", Language: "English (US)"},
	{ID: "en-US-JasonNeural", Name: "Jason (US)", Gender: "Male", Language: "English (US)"},
	{ID: "en-GB-SoniaNeural", Name: "Sonia (UK)", Gender: "Female", Language: "English (UK)"},
	{ID: "en-AU-NatashaNeural", Name: "Natasha (AU)", Gender: "Female", Language: "English (AU)"},
	{ID: "en-CA-ClaraNeural", Name: "Clara (CA)", Gender: "Female", Language: "English (CA)"},
	{ID: "en-IN-NeerjaNeural", Name: "Neerja (IN)", Gender: "Female", Language: "English (IN)"},
	{ID: "es-ES-ElviraNeural", Name: "Elvira (ES)", Gender: "Female", Language: "Spanish (ES)"},
	{ID: "fr-FR-DeniseNeural", Name: "Denise (FR)", Gender: "Female", Language: "French (FR)"},
	{ID: "de-DE-KatjaNeural", Name: "Katja (DE)", Gender: "Female", Language: "German (DE)"},
	{ID: "it-IT-ElsaNeural", Name: "Elsa (IT)", Gender: "Female", Language: "Italian (IT)"},
	{ID: "pt-BR-FranciscaNeural", Name: "Francisca (BR)", Gender: "Female", Language: "Portuguese (BR)"},
	{ID: "ja-JP-NanamiNeural", Name: "Nanami (JP)", Gender: "Female", Language: "Japanese (JP)"},
	{ID: "ko-KR-SunHiNeural", Name: "SunHi (KR)", Gender: "Female", Language: "Korean (KR)"},
	{ID: "zh-CN-XiaoxiaoNeural", Name: "Xiaoxiao (CN)", Gender: "Female", Language: "Chinese (CN)"},
}

var gestures = []Gesture{
	{ID: "wave-left-1", Name: "Wave Left", Description: "Wave with left hand"},
	{ID: "wave-right-1", Name: "Wave Right", Description: "Wave with right hand"},
	{ID: "nod-1", Name: "Nod", Description: "Nod head in agreement"},
	{ID: "shake-1", Name: "Shake Head", Description: "Shake head in disagreement"},
	{ID: "thumbs-up-1", Name: "Thumbs Up", Description: "Show thumbs up"},
	{ID: "point-1", Name: "Point", Description: "Point forward"},
}

var backgrounds = []Background{
	{ID: "solid-white", Name: "Solid White", Type: BackgroundColor, Value: "#FFFFFF"},
	{ID: "solid-blue", Name: "Solid Blue", Type: BackgroundColor, Value: "#4A90E2"},
	{ID: "solid-gray", Name: "Solid Gray", Type: BackgroundColor, Value: "#F5F5F5"},
	{ID: "solid-green", Name: "Solid Green", Type: BackgroundColor, Value: "#5CB85C"},
	{ID: "transparent", Name: "Transparent", Type: BackgroundTransparent, Value: ""},
	{ID: "office", Name: "Office Background", Type: BackgroundImage, Value: "/static/backgrounds/office.jpg"},
	{ID: "living-room", Name: "Living Room", Type: BackgroundImage, Value: "/static/backgrounds/living-room.jpg"},
}

func Characters() []Character { return append([]Character(nil), characters...) }
func Styles() []Style         { return append([]Style(nil), styles...) }
func Voices() []Voice         { return append([]Voice(nil), voices...) }
func Gestures() []Gesture     { return append([]Gesture(nil), gestures...) }
func Backgrounds() []Background {
	return append([]Background(nil), backgrounds...)
}

func HasCharacter(id string) bool {
	for _, c := range characters {
		if c.ID == id {
			return true
		}
	}
	return false
}

func HasStyle(id string) bool {
	for _, s := range styles {
		if s.ID == id {
			return true
		}
	}
	return false
}

func HasVoice(id string) bool {
	for _, v := range voices {
		if v.ID == id {
			return true
		}
	}
	return false
}

func HasGesture(id string) bool {
	for _, g := range gestures {
		if g.ID == id {
			return true
		}
	}
	return false
}

// StylesFor returns the style ids a character may be rendered with.
func StylesFor(characterID string) []string {
	return append([]string(nil), styleMatrix[characterID]...)
}

// StyleAllowed reports whether the character/style pairing is renderable.
func StyleAllowed(characterID, styleID string) bool {
	for _, s := range styleMatrix[characterID] {
		if s == styleID {
			return true
		}
	}
	return false
}

// BackgroundByID resolves a background id. The first catalog entry serves as
// the defensive fallback for unknown ids.
func BackgroundByID(id string) Background {
	for _, b := range backgrounds {
		if b.ID == id {
			return b
		}
	}
	return backgrounds[0]
}

// FilterVoices narrows the voice list by language substring and exact gender.
// Empty filters match everything.
func FilterVoices(language, gender string) []Voice {
	out := make([]Voice, 0, len(voices))
	for _, v := range voices {
		if language != "" && !strings.Contains(v.Language, language) {
			continue
		}
		if gender != "" && v.Gender != gender {
			continue
		}
		out = append(out, v)
	}
	return out
}
