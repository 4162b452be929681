package domain

// ContentType identifies the kind of submitted content.
type ContentType string

const (
	ContentTypeText  ContentType = "text"
	ContentTypeImage ContentType = "image"
)

// Valid reports whether t is a known content type.
func (t ContentType) Valid() bool {
	return t == ContentTypeText || t == ContentTypeImage
}

// Provider names an external AI provider.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// DefaultProvider is the primary provider used when no preference is given.
const DefaultProvider = ProviderOpenAI

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// Other returns the alternate provider.
func (p Provider) Other() Provider {
	if p == ProviderGemini {
		return ProviderOpenAI
	}
	return ProviderGemini
}

// ParseProvider converts a user supplied name into a Provider.
// An empty name yields DefaultProvider.
func ParseProvider(name string) (Provider, error) {
	switch Provider(name) {
	case "":
		return DefaultProvider, nil
	case ProviderOpenAI, ProviderGemini:
		return Provider(name), nil
	default:
		return "", ErrInvalidRequest("AI provider must be either openai or gemini").WithParam("aiProvider")
	}
}

// Severity grades how serious the concerns in an analysis are.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Classification is derived from an AnalysisResult.
type Classification string

const (
	ClassificationSafe    Classification = "safe"
	ClassificationFlagged Classification = "flagged"
	ClassificationHarmful Classification = "harmful"
)

// Decision is the final moderation outcome.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionFlagged  Decision = "flagged"
	DecisionRejected Decision = "rejected"
)

// AnalysisResult is the structured output of a single AI analysis call.
// When IsSafe is true, Concerns and Severity carry no meaning.
type AnalysisResult struct {
	IsSafe         bool     `json:"isSafe"`
	Concerns       []string `json:"concerns"`
	Severity       Severity `json:"severity"`
	DetailedReason string   `json:"detailedReason,omitempty"`
}

// ModerationState is the working record of one pipeline run. Stages fill
// it in order; empty strings and nil pointers mean "not yet set".
type ModerationState struct {
	Content            string
	ContentType        ContentType
	AnalysisResult     *AnalysisResult
	Classification     Classification
	Decision           Decision
	Reasoning          string
	NeedsVisualization *bool
	VisualizationURL   string
	AIProvider         Provider
}

// StateUpdate is the partial result a pipeline stage returns.
type StateUpdate struct {
	AnalysisResult     *AnalysisResult
	Classification     Classification
	Decision           Decision
	Reasoning          string
	NeedsVisualization *bool
	VisualizationURL   string
	AIProvider         Provider
}

// Apply merges the non-empty fields of u into a copy of s.
func (s ModerationState) Apply(u StateUpdate) ModerationState {
	if u.AnalysisResult != nil {
		r := *u.AnalysisResult
		s.AnalysisResult = &r
	}
	if u.Classification != "" {
		s.Classification = u.Classification
	}
	if u.Decision != "" {
		s.Decision = u.Decision
	}
	if u.Reasoning != "" {
		s.Reasoning = u.Reasoning
	}
	if u.NeedsVisualization != nil {
		v := *u.NeedsVisualization
		s.NeedsVisualization = &v
	}
	if u.VisualizationURL != "" {
		s.VisualizationURL = u.VisualizationURL
	}
	if u.AIProvider != "" {
		s.AIProvider = u.AIProvider
	}
	return s
}

// ModerationResult is the projection of a finished ModerationState that is
// cached and handed to persistence.
type ModerationResult struct {
	Decision         Decision        `json:"decision"`
	Reasoning        string          `json:"reasoning"`
	Classification   []string        `json:"classification"`
	AnalysisResult   *AnalysisResult `json:"analysisResult,omitempty"`
	VisualizationURL string          `json:"visualizationUrl,omitempty"`
	AIProvider       Provider        `json:"aiProvider,omitempty"`
}

// Result projects the state into a ModerationResult.
func (s ModerationState) Result() *ModerationResult {
	classification := []string{}
	if s.Classification != "" {
		classification = append(classification, string(s.Classification))
	}
	return &ModerationResult{
		Decision:         s.Decision,
		Reasoning:        s.Reasoning,
		Classification:   classification,
		AnalysisResult:   s.AnalysisResult,
		VisualizationURL: s.VisualizationURL,
		AIProvider:       s.AIProvider,
	}
}

// Bool returns a pointer to b.
func Bool(b bool) *bool {
	return &b
}
