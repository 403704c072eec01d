package generator

import "strings"

// systemPrompt is the fixed behavior preamble. It is a hard constraint on
// the model: exactly three recommendations, grounded only in the supplied
// context. The output structure is trusted, not validated (see Generate).
const systemPrompt = `You are an anime recommendation assistant. You will be given context describing anime titles and a user's stated preference.

Recommend exactly three anime. For each one give:
1. The title.
2. A synopsis of 2-3 sentences.
3. An explicit statement of why it matches the user's stated preference.

Use only the information in the supplied context. Do not recommend titles that are not in the context and do not draw on outside knowledge.`

// buildUserPrompt combines the retrieved chunk texts with the raw query.
func buildUserPrompt(query string, contextChunks []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, c := range contextChunks {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nUser preference: ")
	b.WriteString(query)
	return b.String()
}
