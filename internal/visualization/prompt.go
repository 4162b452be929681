package visualization

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const gatePromptTemplate = `You are a content moderation decision assistant. A piece of content has been flagged for manual review.

Content Type: %s
Content: %s
Concerns: %s
Severity: %s
Reason: %s

Your task: Decide if generating a visual preview/illustration would help human reviewers understand the flagged concerns.

Consider generating a visualization when:
- The concern is complex or abstract and would benefit from visual explanation
- Visual representation would help illustrate the specific policy violation
- The flagged content involves visual elements that need context (e.g., images with subtle inappropriate elements)
- A diagram could help explain why borderline content was flagged

DO NOT generate visualization when:
- The concern is straightforward and self-explanatory from text alone
- The flagged content is simple text with obvious issues
- Visualization would not add meaningful value to the review process
- The concern is purely textual (e.g., spelling mistakes, simple spam)

Respond with ONLY a JSON object:
{
  "shouldGenerate": true/false,
  "reasoning": "Brief explanation of why visualization is/isn't needed"
}`

const imagePromptTemplate = "Create a simple, educational diagram or illustration that explains content moderation concerns. " +
	"The image should visually represent: %s. " +
	"Style: clean, professional, informational diagram with icons or symbols representing safety concerns. " +
	"Do not include any offensive content - this is an explanatory visualization only."

// BuildGatePrompt renders the judgment prompt for a flagged state.
func BuildGatePrompt(s domain.ModerationState) string {
	var r domain.AnalysisResult
	if s.AnalysisResult != nil {
		r = *s.AnalysisResult
	}
	return fmt.Sprintf(gatePromptTemplate,
		s.ContentType,
		s.Content,
		strings.Join(r.Concerns, ", "),
		r.Severity,
		r.DetailedReason,
	)
}

// BuildImagePrompt renders the image generation prompt for reasoning.
func BuildImagePrompt(reasoning string) string {
	return fmt.Sprintf(imagePromptTemplate, reasoning)
}
