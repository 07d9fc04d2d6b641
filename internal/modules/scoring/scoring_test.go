package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecommend(t *testing.T) {
	tests := []struct {
		score int
		want  Recommendation
	}{
		{100, RecommendationBuy},
		{BuyThreshold, RecommendationBuy},
		{BuyThreshold - 1, RecommendationNeutral},
		{0, RecommendationNeutral},
		{HoldThreshold + 1, RecommendationNeutral},
		{HoldThreshold, RecommendationHold},
		{-50, RecommendationHold},
	}

	for _, tt := range tests {
		got, desc := Recommend(tt.score)
		assert.Equal(t, tt.want, got, "score %d", tt.score)
		assert.NotEmpty(t, desc)
	}
}
