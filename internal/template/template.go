package template

import "strings"

// Render substitutes {{key}} placeholders with their values. Unknown
// placeholders are left untouched so a bad contact row never breaks a
// prompt outright.
func Render(text string, variables map[string]string) string {
	if len(variables) == 0 {
		return text
	}

	pairs := make([]string, 0, len(variables)*2)
	for key, value := range variables {
		pairs = append(pairs, "{{"+key+"}}", value)
	}

	return strings.NewReplacer(pairs...).Replace(text)
}
