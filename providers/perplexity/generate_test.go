package perplexity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONPlainObject(t *testing.T) {
	raw, err := ExtractJSON(`{"headline": "제목"}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"headline": "제목"}`, string(raw))
}

func TestExtractJSONStripsCodeFences(t *testing.T) {
	content := "```json\n{\"headline\": \"제목\", \"summary\": \"요약\"}\n```"
	raw, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.JSONEq(t, `{"headline": "제목", "summary": "요약"}`, string(raw))
}

func TestExtractJSONIgnoresSurroundingProse(t *testing.T) {
	content := "분석 결과는 다음과 같습니다.\n{\"bias\": \"left\"}\n참고하세요."
	raw, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.JSONEq(t, `{"bias": "left"}`, string(raw))
}

func TestExtractJSONKeepsNestedObjects(t *testing.T) {
	content := `prefix {"outer": {"inner": [1, 2]}} suffix`
	raw, err := ExtractJSON(content)
	require.NoError(t, err)
	assert.JSONEq(t, `{"outer": {"inner": [1, 2]}}`, string(raw))
}

func TestExtractJSONRejectsGarbage(t *testing.T) {
	_, err := ExtractJSON("여기에는 JSON이 없습니다.")
	assert.Error(t, err)

	_, err = ExtractJSON(`{"broken": `)
	assert.Error(t, err)
}
