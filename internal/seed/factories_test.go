package seed

import (
	"testing"
	"time"

	"opinara/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_ProducesValidInputs(t *testing.T) {
	t.Parallel()
	f := NewFactory(42, 7)

	for i := 0; i < 50; i++ {
		signup := f.Signup(i, DemoPassword)
		assert.NoError(t, validation.ValidateEmail(signup.Email), signup.Email)

		wave := f.Wave(i, 1)
		assert.NoError(t, validation.ValidateWaveName(validation.NormalizeWaveName(wave.Name)), wave.Name)

		post := f.Post(1, nil)
		assert.NotEmpty(t, post.Title)
		for _, m := range post.Media {
			assert.Contains(t, m.URL, "http")
		}

		created := f.CreatedAt()
		assert.WithinDuration(t, time.Now().UTC(), created, 7*24*time.Hour+time.Minute)
	}
	require.NoError(t, validation.ValidatePassword(DemoPassword))
}

func TestFactory_SeedIsDeterministic(t *testing.T) {
	t.Parallel()
	a, b := NewFactory(7, 30), NewFactory(7, 30)
	for i := 0; i < 5; i++ {
		assert.Equal(t, a.Signup(i, DemoPassword), b.Signup(i, DemoPassword))
		assert.Equal(t, a.Wave(i, 1).Name, b.Wave(i, 1).Name)
	}
}

func TestSlug(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in, want string
	}{
		{"Rock Climbing", "rock-climbing"},
		{"  O'Brien ", "obrien"},
		{"Zoë", "fallback"},
		{"--", "fallback"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, slug(tt.in, "fallback"), tt.in)
	}
}
