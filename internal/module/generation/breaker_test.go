package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBreakerBackend(t *testing.T) {
	calls := 0
	failing := BackendFunc(func(context.Context, *Request) (string, error) {
		calls++
		return "", errors.New("503")
	})
	b := NewBreakerBackend(failing, BreakerConfig{Name: "image", FailureThreshold: 3, Timeout: time.Minute}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := b.Generate(context.Background(), &Request{})
		assert.EqualError(t, err, "503")
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Generate(context.Background(), &Request{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 3, calls)
}

func TestBreakerBackend_PassesResults(t *testing.T) {
	b := NewBreakerBackend(BackendFunc(func(context.Context, *Request) (string, error) {
		return "https://cdn/a.mp4", nil
	}), BreakerConfig{Name: "video"}, nil)

	url, err := b.Generate(context.Background(), &Request{})
	assert.NoError(t, err)
	assert.Equal(t, "https://cdn/a.mp4", url)
	assert.Equal(t, gobreaker.StateClosed, b.State())
}
