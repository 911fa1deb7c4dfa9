package render

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeShortener struct {
	short string
	err   error
	calls int
}

func (f *fakeShortener) Shorten(_ context.Context, _ string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.short, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("Hello {{ first_name }}!"))
	assert.NoError(t, Validate("plain text"))
	assert.Error(t, Validate("{% if x %}unterminated"))
}

func TestRender(t *testing.T) {
	r := New(nil, testLogger())

	out, err := r.Render(context.Background(), "Hi {{ first_name }}, see {{ title }}", map[string]any{
		"first_name": "Ada",
		"title":      "The Movie",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi Ada, see The Movie", out)
}

func TestRender_UnknownVariableIsEmpty(t *testing.T) {
	r := New(nil, testLogger())

	out, err := r.Render(context.Background(), "Hi {{ missing }}!", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Hi !", out)
}

func TestRender_ShortensURL(t *testing.T) {
	s := &fakeShortener{short: "https://tiny.url/abc"}
	r := New(s, testLogger())

	out, err := r.Render(context.Background(), "Visit {{ url }}", map[string]any{
		"url": "https://example.com/very/long/path",
	})
	require.NoError(t, err)
	assert.Equal(t, "Visit https://tiny.url/abc", out)
	assert.Equal(t, 1, s.calls)
}

func TestRender_ShortenerFailureKeepsOriginal(t *testing.T) {
	s := &fakeShortener{err: errors.New("service down")}
	r := New(s, testLogger())

	ctx := map[string]any{"url": "https://example.com/original"}
	out, err := r.Render(context.Background(), "Visit {{ url }}", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Visit https://example.com/original", out)

	// Caller's context is untouched.
	assert.Equal(t, "https://example.com/original", ctx["url"])
}

func TestRender_NoURLSkipsShortener(t *testing.T) {
	s := &fakeShortener{short: "unused"}
	r := New(s, testLogger())

	_, err := r.Render(context.Background(), "Hello", map[string]any{"name": "x"})
	require.NoError(t, err)
	assert.Zero(t, s.calls)
}
