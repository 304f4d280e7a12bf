package cache

import (
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestMarketDataKey(t *testing.T) {
	got := MarketDataKey("XAU_USD", "M5", 100)
	if got != "md:XAU_USD:M5:100" {
		t.Errorf("MarketDataKey: got %q", got)
	}
}

func TestAnalysisKey(t *testing.T) {
	got := AnalysisKey("openai", "XAU_USD", "H1")
	if got != "analysis:openai:XAU_USD:H1" {
		t.Errorf("AnalysisKey: got %q", got)
	}
}

func TestIsMiss(t *testing.T) {
	if !IsMiss(redis.Nil) {
		t.Error("redis.Nil should be a miss")
	}
	if IsMiss(nil) {
		t.Error("nil is not a miss")
	}
}
