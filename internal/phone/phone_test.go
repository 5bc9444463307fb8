package phone

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain ten digits", input: "5141234567", want: "5141234567"},
		{name: "punctuated", input: "(514) 123-4567", want: "5141234567"},
		{name: "country code", input: "+1 514 123 4567", want: "5141234567"},
		{name: "eleven digits not starting with 1", input: "25141234567", want: "25141234567"},
		{name: "no digits", input: "unknown", want: ""},
		{name: "empty", input: "", want: ""},
		{name: "short", input: "12345", want: "12345"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestDisplayRoundTrip(t *testing.T) {
	formats := []string{"%s", "1%s", "+1%s", "+1 (%s)", "1-%s"}
	numbers := []string{"5141234567", "4385550000", "8005551212"}

	for _, n := range numbers {
		for _, f := range formats {
			input := fmt.Sprintf(f, n)
			t.Run(input, func(t *testing.T) {
				assert.Equal(t, "+1"+n, Display(Normalize(input)))
				assert.Equal(t, "+1"+n, Display(input))
			})
		}
	}
}

func TestDisplayFallback(t *testing.T) {
	assert.Equal(t, "+33 6 12 34 56 78", Display("+33 6 12 34 56 78"))
	assert.Equal(t, "12345", Display("12345"))
	assert.Equal(t, Unknown, Display(""))
	assert.Equal(t, Unknown, Display("   "))
}

func TestLast10(t *testing.T) {
	assert.Equal(t, "5141234567", Last10("+15141234567"))
	assert.Equal(t, "5141234567", Last10("0015141234567"))
	assert.Equal(t, "1234", Last10("12-34"))
	assert.Equal(t, "", Last10("abc"))
}

func TestToE164(t *testing.T) {
	assert.Equal(t, "+15141234567", ToE164("514-123-4567"))
	assert.Equal(t, "+15141234567", ToE164(" +15141234567 "))
	assert.Equal(t, "+33612345678", ToE164("+33612345678"))
	assert.Equal(t, "+1", ToE164(""))
}

func TestForStorage(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"514 123 4567", "+15141234567"},
		{"15141234567", "+15141234567"},
		{"0033612345678", "+0033612345678"},
		{"12345", "12345"},
		{"  ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ForStorage(tt.input), tt.input)
	}
}

func TestLooksLikePhone(t *testing.T) {
	assert.False(t, LooksLikePhone("42"))
	assert.False(t, LooksLikePhone("1000000"))
	assert.True(t, LooksLikePhone("5141234567"))
	assert.True(t, LooksLikePhone("+15141234567"))
	assert.True(t, LooksLikePhone("(514) 123-4567"))
	assert.True(t, LooksLikePhone("abc"))
}
