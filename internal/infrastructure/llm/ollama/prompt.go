package ollama

import "fmt"

func buildRelevancePrompt(query, passage string) string {
	return fmt.Sprintf(`Rate how relevant the following passage is to the question on a scale from 0.0 to 1.0.
0.0 means completely irrelevant, 1.0 means directly answers the question.

Question: %s

Passage:
%s

Reply with a single number between 0.0 and 1.0 and nothing else.`, query, passage)
}
