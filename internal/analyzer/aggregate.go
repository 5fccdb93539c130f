package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMaxChars = 5000

	reviewSeparator  = "\n\n"
	truncationMarker = "..."
)

// Combine joins reviews with a blank line between them and truncates the
// combined text to maxChars runes, appending a marker when cut. Individual
// reviews are never shortened on their own.
func Combine(reviews []string, maxChars int) (string, bool) {
	text := strings.Join(reviews, reviewSeparator)
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text, false
	}

	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i] + truncationMarker, true
		}
		n++
	}
	return text, false
}

const promptTemplate = `다음은 패션 제품에 대한 여러 리뷰입니다. 이 리뷰들을 분석하여 아래 JSON 형식으로 요약해주세요. 말투는 친근한 느낌을 주는 말투를 사용해주세요:

%s

다음 JSON 형식으로만 응답해주세요:
{
  "pros": ["장점1", "장점2", "장점3", "장점4", "장점5"],
  "cons": ["단점1", "단점2", "단점3", "단점4", "단점5"],
  "ratio": "긍정:중립:부정",
  "summary": "전반적인 평가 요약 (100자 이내)",
  "size": "제품 사이즈에 관한 평가 (70자 이내)",
  "recommendation": "추천 대상 (70자 이내)"
}

ratio에는 전체 리뷰 중 긍정적인 리뷰, 긍정과 부정이 섞였거나 중립적인 리뷰, 부정적인 리뷰의 비율을 추정해서 적어주세요.`

// BuildPrompt embeds the combined review text into the fixed instruction.
func BuildPrompt(text string) string {
	return fmt.Sprintf(promptTemplate, text)
}
