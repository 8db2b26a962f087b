package security

import "testing"

func TestSanitizeText(t *testing.T) {
	s := NewTextSanitizer()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"空文字列", "", ""},
		{"プレーンテキスト", "Le Petit Bistro", "Le Petit Bistro"},
		{"アンパサンドは元の文字のまま", "Ben & Jerry's", "Ben & Jerry's"},
		{"タグを除去", "<b>Chez</b> <i>Marcel</i>", "Chez Marcel"},
		{"scriptを除去", `Pizza<script>alert("x")</script>`, "Pizza"},
		{"前後の空白を除去", "  12 rue de Rivoli  ", "12 rue de Rivoli"},
		{"イベント属性ごと除去", `<img src=x onerror=alert(1)>Sushi`, "Sushi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.in); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeText_Idempotent(t *testing.T) {
	s := NewTextSanitizer()
	in := "<p>Café &amp; Bar</p>"

	first := s.SanitizeText(in)
	second := s.SanitizeText(first)
	if first != second {
		t.Errorf("not idempotent: %q -> %q", first, second)
	}
}

func TestTextSanitizerInterface(t *testing.T) {
	var _ TextSanitizerService = NewTextSanitizer()
}
