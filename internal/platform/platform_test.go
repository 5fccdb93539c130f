package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected Platform
	}{
		{"Musinsa product", "https://www.musinsa.com/products/12345", Musinsa},
		{"Musinsa legacy", "https://store.musinsa.com/app/goods/12345", Musinsa},
		{"29cm product", "https://www.29cm.co.kr/products/998877", TwentyNineCM},
		{"Zigzag product", "https://zigzag.kr/catalog/products/112233", Zigzag},
		{"Amazon", "https://www.amazon.de/dp/B00TEST", Unknown},
		{"Empty", "", Unknown},
		{"Lookalike without dot", "https://musinsacom.example.org/1", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Detect(tt.url))
		})
	}
}

func TestDetect_PriorityOrder(t *testing.T) {
	// both fragments present: the earlier rule wins
	url := "https://www.musinsa.com/redirect?to=https://zigzag.kr/catalog/products/1"
	assert.Equal(t, Musinsa, Detect(url))
}

func TestSupported(t *testing.T) {
	assert.Equal(t, []Platform{Musinsa, TwentyNineCM, Zigzag}, Supported())
	for _, p := range Supported() {
		assert.True(t, p.IsSupported(), p)
	}
	assert.False(t, Unknown.IsSupported())
}

func TestParse(t *testing.T) {
	assert.Equal(t, TwentyNineCM, Parse("29CM"))
	assert.Equal(t, Zigzag, Parse("zigzag"))
	assert.Equal(t, Unknown, Parse("coupang"))
}
