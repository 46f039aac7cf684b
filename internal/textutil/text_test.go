package textutil

import "testing"

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain   text\n here", "plain text here"},
		{"<p>Світла</p><p>квартира</p>", "Світла квартира"},
		{"a<br>b &amp; c", "a b & c"},
		{"<div>x<script>alert(1)</script></div>", "x"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestExcerpt(t *testing.T) {
	if got := Excerpt("short", 10); got != "short" {
		t.Errorf("got %q; want %q", got, "short")
	}
	if got := Excerpt("one two three four", 12); got != "one two…" {
		t.Errorf("got %q; want %q", got, "one two…")
	}
}

func TestUpperFirst(t *testing.T) {
	tests := map[string]string{
		"квартира, 2-room, Київ": "Квартира, 2-room, Київ",
		"already":                "Already",
		"":                       "",
		"ёлка":                   "Ёлка",
	}
	for in, want := range tests {
		if got := UpperFirst(in); got != want {
			t.Errorf("UpperFirst(%q) = %q; want %q", in, got, want)
		}
	}
}
