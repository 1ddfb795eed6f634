package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractHashtags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "latin tags in order",
			text: "big news #promo today #sale",
			want: []string{"promo", "sale"},
		},
		{
			name: "cyrillic tags",
			text: "Запись на занятия #логопед #развитие_речи",
			want: []string{"логопед", "развитие_речи"},
		},
		{
			name: "case is normalized",
			text: "#Promo and #PROMO",
			want: []string{"promo", "promo"},
		},
		{
			name: "duplicates retained in order",
			text: "#a #b #a",
			want: []string{"a", "b", "a"},
		},
		{
			name: "digits and underscore",
			text: "#akciya_2024",
			want: []string{"akciya_2024"},
		},
		{
			name: "no tags",
			text: "просто текст без тегов",
			want: nil,
		},
		{
			name: "empty text",
			text: "",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractHashtags(tt.text)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractHashtagsCaseInvariant(t *testing.T) {
	lower := ExtractHashtags("скидка #promo #news")
	upper := ExtractHashtags("скидка #PROMO #News")
	assert.Equal(t, lower, upper)
}

func TestStripHashtags(t *testing.T) {
	assert.Equal(t, "Новая акция!  Подробности внутри",
		StripHashtags("Новая акция! #promo Подробности внутри"))
	assert.Equal(t, "без тегов", StripHashtags("без тегов"))
	assert.Equal(t, " ", StripHashtags("#one #two"))
}
