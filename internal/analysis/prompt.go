package analysis

import "fmt"

const promptTemplate = `Analyze the following conversation between a recruiter and %s's AI portfolio agent.

Conversation:
%s
Provide a JSON response with:
1. topics: List of key topics discussed (e.g., ["Python", "Data Engineering", "Machine Learning", "Experience", "Skills"])
2. sentiment: Overall sentiment - one of: "Positive", "Neutral", "Negative", "Very Interested"
3. summary: A 2-3 sentence summary of the conversation
4. interest_level: Interest level - one of: "High", "Medium", "Low"

Respond in this exact JSON format:
{
    "topics": ["topic1", "topic2"],
    "sentiment": "Sentiment",
    "summary": "Brief summary",
    "interest_level": "Interest"
}`

// BuildPrompt asks the model for the four annotation keys as one JSON
// object. transcript is the output of Render.
func BuildPrompt(subject, transcript string) string {
	return fmt.Sprintf(promptTemplate, subject, transcript)
}
