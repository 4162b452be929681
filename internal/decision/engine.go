// Package decision maps analysis results to a verdict and the reasoning
// shown to the submitter. Everything here is pure.
package decision

import (
	"fmt"
	"strings"

	"github.com/tjfontaine/polyglot-moderation-gateway/internal/domain"
)

const (
	approvedMessage = "Content approved. Your content meets all community guidelines and safety standards."

	flaggedTemplate = "Your content has been flagged for manual review due to potential concerns: %s. " +
		"This content will be reviewed by our moderation team before publication."

	adultTemplate = "Your content has been rejected because it contains adult or sexually explicit material (+18). " +
		"Our platform does not allow pornographic content, nudity, or sexually suggestive material. " +
		"Specific concerns: %s."

	violenceTemplate = "Your content has been rejected because it contains graphic violence or harmful content. " +
		"Our platform prohibits content depicting violence, gore, self-harm, or cruelty. " +
		"Specific concerns: %s."

	minorsMessage = "Your content has been rejected due to serious safety violations involving minors. " +
		"This type of content is strictly prohibited and may be reported to authorities."

	genericTemplate = "Your content has been rejected because it violates our community guidelines. " +
		"Specific violations: %s. Please review our content policy and submit appropriate content."
)

// rejectionRules are checked in order; the first rule with a keyword
// contained in any concern wins.
var rejectionRules = []struct {
	keywords     []string
	template     string
	withConcerns bool
}{
	{[]string{"adult", "explicit", "sexual"}, adultTemplate, true},
	{[]string{"violence", "gore", "harm"}, violenceTemplate, true},
	{[]string{"child", "minor"}, minorsMessage, false},
}

// Classify derives the classification of an analysis. IsSafe dominates
// severity; an unsafe result that is not high severity is flagged.
func Classify(r domain.AnalysisResult) domain.Classification {
	switch {
	case r.IsSafe:
		return domain.ClassificationSafe
	case r.Severity == domain.SeverityHigh:
		return domain.ClassificationHarmful
	default:
		return domain.ClassificationFlagged
	}
}

// Decide returns the decision for classification and the reasoning to show
// the submitter. Unrecognised classifications are treated as flagged.
func Decide(c domain.Classification, r domain.AnalysisResult, _ domain.Provider) (domain.Decision, string) {
	switch c {
	case domain.ClassificationSafe:
		return domain.DecisionApproved, approvedMessage
	case domain.ClassificationHarmful:
		return domain.DecisionRejected, rejectionReason(r)
	default:
		return domain.DecisionFlagged, flaggedReason(r)
	}
}

// DecisionFor returns the decision that corresponds to c.
func DecisionFor(c domain.Classification) domain.Decision {
	d, _ := Decide(c, domain.AnalysisResult{}, "")
	return d
}

func flaggedReason(r domain.AnalysisResult) string {
	if r.DetailedReason != "" {
		return r.DetailedReason
	}
	return fmt.Sprintf(flaggedTemplate, joinConcerns(r.Concerns))
}

func rejectionReason(r domain.AnalysisResult) string {
	if r.DetailedReason != "" {
		return r.DetailedReason
	}

	joined := joinConcerns(r.Concerns)
	for _, rule := range rejectionRules {
		if matchesAny(r.Concerns, rule.keywords) {
			if !rule.withConcerns {
				return rule.template
			}
			return fmt.Sprintf(rule.template, joined)
		}
	}
	return fmt.Sprintf(genericTemplate, joined)
}

func matchesAny(concerns []string, keywords []string) bool {
	for _, c := range concerns {
		lower := strings.ToLower(c)
		for _, k := range keywords {
			if strings.Contains(lower, k) {
				return true
			}
		}
	}
	return false
}

func joinConcerns(concerns []string) string {
	if joined := strings.Join(concerns, ", "); joined != "" {
		return joined
	}
	return "Unknown"
}
