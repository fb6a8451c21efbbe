package avatar

import "fmt"

// Compose renders the SSML payload for the synthesis engine: a voice tag
// wrapping the text, with an optional gesture bookmark placed after it.
// The output is deterministic for identical inputs.
func Compose(text string, cfg ResolvedConfig, gesture string) string {
	if gesture != "" {
		return fmt.Sprintf(
			`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="en-US"><voice name="%s">%s <bookmark mark="gesture.%s"/></voice></speak>`,
			cfg.Voice, text, gesture,
		)
	}
	return fmt.Sprintf(
		`<speak version="1.0" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="en-US"><voice name="%s">%s</voice></speak>`,
		cfg.Voice, text,
	)
}
