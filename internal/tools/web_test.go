package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL_Valid(t *testing.T) {
	ok, _ := validateURL("https://example.com")
	assert.True(t, ok)
}

func TestValidateURL_InvalidScheme(t *testing.T) {
	ok, msg := validateURL("ftp://example.com")
	assert.False(t, ok)
	assert.Contains(t, msg, "Only http/https")
}

func TestValidateURL_NoHost(t *testing.T) {
	ok, msg := validateURL("https://")
	assert.False(t, ok)
	assert.Contains(t, msg, "Missing domain")
}

func TestStripTags(t *testing.T) {
	input := `<html><head><script>alert(1)</script><style>body{}</style></head><body><h1>Hello</h1><p>World</p></body></html>`
	result := stripTags(input)
	assert.NotContains(t, result, "<")
	assert.Contains(t, result, "Hello")
	assert.Contains(t, result, "World")
	assert.NotContains(t, result, "alert")
	assert.NotContains(t, result, "body{}")
}

func TestNormalizeWhitespace(t *testing.T) {
	input := "  hello   world\n\n\n\n\nfoo  "
	result := normalizeWhitespace(input)
	assert.Equal(t, "hello world\n\nfoo", result)
}

func TestWebFetchTool_InvalidURL(t *testing.T) {
	tool := &WebFetchTool{}
	result, err := tool.Execute(context.Background(), map[string]any{"url": "ftp://bad"})
	assert.NoError(t, err)
	assert.Contains(t, result, "URL validation failed")
}

func TestWebFetchTool_ExtractsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><h1>Title</h1><p>Some   body text</p><script>ignored()</script></body></html>`))
	}))
	defer srv.Close()

	tool := &WebFetchTool{}
	result, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)

	var out struct {
		Status    int    `json:"status"`
		Truncated bool   `json:"truncated"`
		Text      string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(result), &out))
	assert.Equal(t, 200, out.Status)
	assert.False(t, out.Truncated)
	assert.Contains(t, out.Text, "Title")
	assert.Contains(t, out.Text, "Some body text")
	assert.NotContains(t, out.Text, "ignored")
}

func TestWebFetchTool_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 100; i++ {
			w.Write([]byte("0123456789"))
		}
	}))
	defer srv.Close()

	tool := &WebFetchTool{}
	result, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL, "maxChars": float64(200)})
	require.NoError(t, err)

	var out struct {
		Truncated bool   `json:"truncated"`
		Length    int    `json:"length"`
		Text      string `json:"text"`
	}
	require.NoError(t, json.Unmarshal([]byte(result), &out))
	assert.True(t, out.Truncated)
	assert.Equal(t, 200, out.Length)
}

func TestWebFetchTool_RejectsBinaryContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01, 0x02})
	}))
	defer srv.Close()

	tool := &WebFetchTool{}
	result, err := tool.Execute(context.Background(), map[string]any{"url": srv.URL})
	require.NoError(t, err)
	assert.Contains(t, result, "unsupported content type")
}

func TestWebSearchTool_NoAPIKey(t *testing.T) {
	tool := &WebSearchTool{}
	t.Setenv("BRAVE_API_KEY", "")
	result, err := tool.Execute(context.Background(), map[string]any{"query": "test"})
	assert.NoError(t, err)
	assert.Contains(t, result, "BRAVE_API_KEY not configured")
}
