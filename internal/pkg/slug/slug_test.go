package slug

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Новая акция!", "novaya-aktsiya"},
		{"Логопед", "logoped"},
		{"Занятия для детей 3-5 лет", "zanyatiya-dlya-detey-3-5-let"},
		{"Already latin", "already-latin"},
		{"  mixed  Пример 42 ", "mixed-primer-42"},
		{"подъезд", "podezd"},
		{"!!!", "item"},
		{"", "item"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Make(tt.in), "Make(%q)", tt.in)
	}
}

func TestMakeLengthCap(t *testing.T) {
	got := Make(strings.Repeat("слово ", 40))
	assert.LessOrEqual(t, len(got), 80)
	assert.False(t, strings.HasSuffix(got, "-"))
}
