package evidence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"plain", "  탄저병  ", "탄저병"},
		{"percent encoded", "%ED%83%84%EC%A0%80%EB%B3%91", "탄저병"},
		{"markup", "<p>강우 전<br>보호살균제</p><p>살포</p>", "강우 전 보호살균제 살포"},
		{"entities", "고온&amp;다습", "고온&다습"},
		{"placeholder dash", "-", ""},
		{"placeholder none", "None", ""},
		{"empty", "", ""},
		{"bad escape kept", "100%", "100%"},
		{"escapes mixed with literal percent", "%EC%82%AC%EA%B3%BC %ED%83%84%EC%A0%80%EB%B3%91 50% %EC%9D%B4%EC%83%81", "사과 탄저병 50% 이상"},
		{"truncated escape kept", "습도 9%E", "습도 9%E"},
		{"decoded once", "%2541", "%41"},
		{"plus is literal", "1%EB%8B%A8%EA%B3%84!+@+!", "1단계!+@+!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanText(tt.raw))
		})
	}
}
