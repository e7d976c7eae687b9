package normalize

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		input    string
		wantName string
		wantProt string
	}{
		{"https://www.Google.com", "GOOGLE.COM", HTTPS},
		{"http://example.org", "EXAMPLE.ORG", HTTP},
		{"https://subdomain.www.example.com", "SUBDOMAIN.WWW.EXAMPLE.COM", HTTPS},
		{"example.com", "EXAMPLE.COM", HTTP},
		{"WWW.EXAMPLE.COM", "EXAMPLE.COM", HTTP},
	}

	for _, c := range cases {
		gotName, gotProt := Normalize(c.input)
		if gotName != c.wantName || gotProt != c.wantProt {
			t.Errorf("Normalize(%q) = (%q, %q), want (%q, %q)", c.input, gotName, gotProt, c.wantName, c.wantProt)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"https://www.Google.com", "http://example.org", "https://a.b.c.com"}
	for _, in := range inputs {
		name, protocol := Normalize(in)
		name2, protocol2 := Normalize(protocol + name)
		if name != name2 || protocol != protocol2 {
			t.Errorf("Normalize not idempotent for %q: first=(%q,%q) second=(%q,%q)", in, name, protocol, name2, protocol2)
		}
	}
}
