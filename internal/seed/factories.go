// Package seed provides helpers to create demo data for the application
// database. These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"opinara/internal/models"
	"opinara/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

// maxWaveBase leaves room for the numeric suffix inside the wave name limit.
const maxWaveBase = 40

// Factory builds service inputs from fake data. A fixed seed yields the same
// sequence of values.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
}

// NewFactory creates a Factory. A zero seed picks a time-based one.
func NewFactory(seed int64, maxDays int) *Factory {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays}
}

// Signup returns the i-th demo account. Emails are unique per index.
func (f *Factory) Signup(i int, password string) service.SignupInput {
	first := f.faker.FirstName()
	last := f.faker.LastName()
	return service.SignupInput{
		Email:    fmt.Sprintf("%s.%s.%d@example.com", slug(first, "user"), slug(last, "demo"), i),
		Fullname: first + " " + last,
		Password: password,
	}
}

// Wave returns the i-th demo wave owned by ownerID. Names carry the index so
// they never collide.
func (f *Factory) Wave(i int, ownerID uint) service.CreateWaveInput {
	base := slug(f.faker.Adjective()+" "+f.faker.Noun(), "wave")
	if len(base) > maxWaveBase {
		base = strings.TrimRight(base[:maxWaveBase], " -_")
	}
	return service.CreateWaveInput{
		UserID:        ownerID,
		Name:          fmt.Sprintf("%s %d", base, i),
		Description:   f.faker.Sentence(12),
		Summary:       f.faker.Paragraph(1, 2, 12, " "),
		CoverImageURL: f.faker.ImageURL(1200, 400),
	}
}

// Post returns a demo post. Roughly one in four carries an image.
func (f *Factory) Post(authorID uint, waveID *uint) service.CreatePostInput {
	in := service.CreatePostInput{
		UserID:  authorID,
		WaveID:  waveID,
		Title:   strings.TrimSuffix(f.faker.Sentence(f.faker.Number(4, 10)), "."),
		Content: f.faker.Paragraph(f.faker.Number(1, 3), f.faker.Number(2, 5), 12, "\n\n"),
	}
	if f.faker.Number(1, 4) == 1 {
		in.Media = []service.MediaInput{{Type: models.MediaTypeImage, URL: f.faker.ImageURL(800, 600)}}
	}
	return in
}

// CommentText returns a short demo comment.
func (f *Factory) CommentText() string {
	return f.faker.Sentence(f.faker.Number(3, 20))
}

// VoteAction returns upvote about three times in four.
func (f *Factory) VoteAction() models.VoteType {
	if f.faker.Number(1, 4) == 1 {
		return models.VoteDown
	}
	return models.VoteUp
}

// CreatedAt returns a timestamp spread over the last maxDays.
func (f *Factory) CreatedAt() time.Time {
	offset := time.Duration(f.faker.Number(0, f.maxDays*24*60)) * time.Minute
	return time.Now().UTC().Add(-offset)
}

// Intn returns a value in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

// slug lowercases s and keeps only characters valid in names and emails.
func slug(s, fallback string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if len(out) < 3 {
		return fallback
	}
	return out
}
