package tokenizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty string", "", []string{}},
		{"simple", "apple banana", []string{"apple", "banana"}},
		{"case folded", "Apple BANANA", []string{"apple", "banana"}},
		{"punctuation", "hello, world!", []string{"hello", "world"}},
		{"digits kept", "item123 test", []string{"item123", "test"}},
		{"underscore is a word char", "snake_case", []string{"snake_case"}},
		{"hyphen splits", "state-of-the-art", []string{"state", "art"}},
		{"single chars dropped", "a b c go", []string{}},
		{"stop words dropped", "the quick brown fox", []string{"quick", "brown", "fox"}},
		{"repetitions kept", "echo echo", []string{"echo", "echo"}},
		{"unicode letters", "Café Über", []string{"café", "über"}},
		{"only symbols", "!@#$%^", []string{}},
		{"numeric runes are word chars", "m² area", []string{"m²", "area"}},
		{"combining marks split", "nai\u0308ve", []string{"nai", "ve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.input))
		})
	}
}

func TestDistinct(t *testing.T) {
	assert.Equal(t, []string{"banana", "apple"}, Distinct("banana apple Banana"))
	assert.Empty(t, Distinct("the of and"))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.True(t, IsStopWord("yourselves"))
	assert.False(t, IsStopWord("banana"))
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat(`Information retrieval systems combine tokenization and stop word
removal to normalize text into searchable terms. The inverted index maps each
term to the documents containing it. `, 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
