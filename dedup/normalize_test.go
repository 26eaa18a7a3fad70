package dedup

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"lowercase", "Dízimo", "dizimo"},
		{"trims", "  oferta  ", "oferta"},
		{"strips accents", "Aluguel Salão", "aluguel salao"},
		{"collapses whitespace", "oferta   especial\t de  domingo", "oferta especial de domingo"},
		{"mixed", "  OFERTA   Especial ", "oferta especial"},
		{"cedilla", "Manutenção", "manutencao"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Aluguel Salão",
		"  OFERTA   Especial ",
		"dízimo João  da Silva",
		"",
	}

	for _, input := range inputs {
		once := Normalize(input)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: first %q, second %q", input, once, twice)
		}
	}
}
