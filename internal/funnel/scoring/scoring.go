// Package scoring rates assessment answers and physical program applications.
package scoring

import (
	"strings"
	"unicode/utf8"

	"funnel_backend/platform/config"
)

const (
	ResultHighPotential = "High Potential"
	ResultEntryLevel    = "Entry Level"

	RecommendationPhysical = "Physical Program (₦500,000+)"
	RecommendationOnline   = "Online Program (₦50,000 – ₦150,000)"
)

// Rating is the application quality bucket.
type Rating string

const (
	RatingStrong   Rating = "STRONG"
	RatingModerate Rating = "MODERATE"
	RatingWeak     Rating = "WEAK"
)

const (
	commitmentKeywordPoints = 5
	commitmentLengthPoints  = 2
	experiencePoints        = 3
	goalsPoints             = 3

	commitmentMinLength = 20
	detailMinLength     = 50
)

// AssessmentResult is the outcome of an assessment.
type AssessmentResult struct {
	Score          int
	Result         string
	Recommendation string
	HighPotential  bool
}

// ApplicationScore is the outcome of scoring an application. The breakdown
// fields hold the points awarded per answer.
type ApplicationScore struct {
	Score      int
	Rating     Rating
	Commitment int
	Experience int
	Goals      int
}

type Scorer struct {
	cfg config.ScoringConfig
}

func New(cfg config.ScoringConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Assessment sums the answers. A total strictly above the threshold is high
// potential.
func (s *Scorer) Assessment(answers map[string]int) AssessmentResult {
	total := 0
	for _, v := range answers {
		total += v
	}

	if total > s.cfg.GetAssessmentHighPotentialThreshold() {
		return AssessmentResult{
			Score:          total,
			Result:         ResultHighPotential,
			Recommendation: RecommendationPhysical,
			HighPotential:  true,
		}
	}
	return AssessmentResult{
		Score:          total,
		Result:         ResultEntryLevel,
		Recommendation: RecommendationOnline,
	}
}

// Application scores the free text answers of an application.
func (s *Scorer) Application(commitment, experience, goals string) ApplicationScore {
	var out ApplicationScore

	commitment = strings.ToLower(strings.TrimSpace(commitment))
	switch {
	case s.mentionsCommitment(commitment):
		out.Commitment = commitmentKeywordPoints
	case utf8.RuneCountInString(commitment) > commitmentMinLength:
		out.Commitment = commitmentLengthPoints
	}
	if utf8.RuneCountInString(strings.TrimSpace(experience)) > detailMinLength {
		out.Experience = experiencePoints
	}
	if utf8.RuneCountInString(strings.TrimSpace(goals)) > detailMinLength {
		out.Goals = goalsPoints
	}

	out.Score = out.Commitment + out.Experience + out.Goals
	switch {
	case out.Score >= s.cfg.GetApplicationStrongThreshold():
		out.Rating = RatingStrong
	case out.Score >= s.cfg.GetApplicationModerateThreshold():
		out.Rating = RatingModerate
	default:
		out.Rating = RatingWeak
	}
	return out
}

func (s *Scorer) mentionsCommitment(text string) bool {
	for _, kw := range s.cfg.GetApplicationCommitmentKeywords() {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
