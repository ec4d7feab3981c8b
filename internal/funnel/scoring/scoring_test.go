package scoring

import (
	"strings"
	"testing"
)

type testScoringConfig struct{}

func (testScoringConfig) GetAssessmentHighPotentialThreshold() int { return 10 }
func (testScoringConfig) GetApplicationStrongThreshold() int       { return 8 }
func (testScoringConfig) GetApplicationModerateThreshold() int     { return 4 }
func (testScoringConfig) GetApplicationCommitmentKeywords() []string {
	return []string{"ready", "budget", "pay", "yes"}
}

func TestAssessment(t *testing.T) {
	s := New(testScoringConfig{})

	tests := []struct {
		name    string
		answers map[string]int
		want    string
		score   int
	}{
		{name: "empty", answers: map[string]int{}, want: ResultEntryLevel, score: 0},
		{name: "at threshold", answers: map[string]int{"q1": 5, "q2": 5}, want: ResultEntryLevel, score: 10},
		{name: "above threshold", answers: map[string]int{"q1": 5, "q2": 6}, want: ResultHighPotential, score: 11},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Assessment(tt.answers)
			if got.Result != tt.want || got.Score != tt.score {
				t.Fatalf("expected %s/%d, got %s/%d", tt.want, tt.score, got.Result, got.Score)
			}
			if got.HighPotential != (tt.want == ResultHighPotential) {
				t.Fatalf("high potential flag mismatch: %+v", got)
			}
		})
	}
}

func TestAssessmentRecommendation(t *testing.T) {
	s := New(testScoringConfig{})
	if got := s.Assessment(map[string]int{"q": 11}).Recommendation; got != RecommendationPhysical {
		t.Fatalf("expected physical recommendation, got %s", got)
	}
	if got := s.Assessment(map[string]int{"q": 3}).Recommendation; got != RecommendationOnline {
		t.Fatalf("expected online recommendation, got %s", got)
	}
}

func TestApplication(t *testing.T) {
	s := New(testScoringConfig{})
	long := strings.Repeat("x", 51)

	tests := []struct {
		name       string
		commitment string
		experience string
		goals      string
		score      int
		rating     Rating
	}{
		{name: "nothing", score: 0, rating: RatingWeak},
		{name: "keyword is case insensitive", commitment: "YES, I can start next month", score: 5, rating: RatingModerate},
		{name: "long commitment without keyword", commitment: "I will think about it this week", score: 2, rating: RatingWeak},
		{name: "short commitment without keyword", commitment: "maybe", score: 0, rating: RatingWeak},
		{name: "keyword with details", commitment: "budget approved", experience: long, goals: long, score: 11, rating: RatingStrong},
		{name: "keyword with experience", commitment: "ready", experience: long, score: 8, rating: RatingStrong},
		{name: "details only", experience: long, goals: long, score: 6, rating: RatingModerate},
		{name: "exactly fifty characters", experience: strings.Repeat("x", 50), score: 0, rating: RatingWeak},
		{name: "multibyte text counts characters", commitment: strings.Repeat("₦", 20), experience: strings.Repeat("é", 50), goals: strings.Repeat("ọ", 50), score: 0, rating: RatingWeak},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Application(tt.commitment, tt.experience, tt.goals)
			if got.Score != tt.score || got.Rating != tt.rating {
				t.Fatalf("expected %d/%s, got %d/%s", tt.score, tt.rating, got.Score, got.Rating)
			}
			if got.Commitment+got.Experience+got.Goals != got.Score {
				t.Fatalf("breakdown does not add up: %+v", got)
			}
		})
	}
}
