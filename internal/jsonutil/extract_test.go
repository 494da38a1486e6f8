package jsonutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractPlainObject(t *testing.T) {
	got, err := Extract(`{"answer": "yes"}`)
	require.NoError(t, err)
	require.JSONEq(t, `{"answer": "yes"}`, got)
}

func TestExtractStripsCodeFences(t *testing.T) {
	cases := []string{
		"```json\n{\"answer\": \"yes\"}\n```",
		"```\n{\"answer\": \"yes\"}\n```",
	}
	for _, in := range cases {
		got, err := Extract(in)
		require.NoError(t, err, in)
		require.JSONEq(t, `{"answer": "yes"}`, got)
	}
}

func TestExtractFromSurroundingCommentary(t *testing.T) {
	got, err := Extract(`Sure, here is the result: {"answer": "yes", "plan": []} Hope that helps!`)
	require.NoError(t, err)
	require.JSONEq(t, `{"answer": "yes", "plan": []}`, got)
}

func TestExtractNoJSON(t *testing.T) {
	_, err := Extract("there is no structured data here")
	require.Error(t, err)
	require.Contains(t, err.Error(), "no valid JSON object")
}

func TestExtractErrorPreviewTruncated(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	_, err := Extract(string(long))
	require.Error(t, err)
	require.Less(t, len(err.Error()), 200)
}

func TestExtractInto(t *testing.T) {
	var out struct {
		Answer string `json:"answer"`
	}
	require.NoError(t, ExtractInto("```json\n{\"answer\": \"fine\"}\n```", &out))
	require.Equal(t, "fine", out.Answer)
}

func TestExtractIntoTypeMismatch(t *testing.T) {
	var out struct {
		Answer int `json:"answer"`
	}
	err := ExtractInto(`{"answer": "not a number"}`, &out)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unmarshal extracted JSON")
}
