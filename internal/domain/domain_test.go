package domain

import "testing"

func TestRoot(t *testing.T) {
	tests := []struct {
		host string
		want string
	}{
		{"example.com", "example.com"},
		{"www.example.com", "example.com"},
		{"a.b.example.com", "example.com"},
		{"www.example.co.uk", "example.co.uk"},
		{"example.co.uk", "example.co.uk"},
		{"shop.example.com.au", "example.com.au"},
		{"localhost", "localhost"},
		{"www.example.com.", "example.com"},
		{"www.example.co.uk.", "example.co.uk"},
		{"", ""},
		// Not in the hard-coded list: reduced to the suffix.
		{"www.example.gov.au", "gov.au"},
	}
	for _, tt := range tests {
		if got := Root(tt.host); got != tt.want {
			t.Errorf("Root(%q) = %q, want %q", tt.host, got, tt.want)
		}
	}
}

func TestRootIdempotent(t *testing.T) {
	for _, host := range []string{"example.com", "docs.github.com", "news.bbc.co.uk", "x.y.z.example.co.jp"} {
		once := Root(host)
		if twice := Root(once); twice != once {
			t.Errorf("Root(Root(%q)) = %q, want %q", host, twice, once)
		}
	}
}

func TestHostname(t *testing.T) {
	tests := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://Docs.Example.com/path?q=1", "docs.example.com", true},
		{"http://localhost:8080/", "localhost", true},
		{"https://www.example.com./x", "www.example.com", true},
		{"http://./", "", false},
		{"chrome://newtab/", "", false},
		{"about:blank", "", false},
		{"moz-extension://abc/popup.html", "", false},
		{"not a url", "", false},
		{"", "", false},
		{"%zz", "", false},
	}
	for _, tt := range tests {
		got, ok := Hostname(tt.url)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Hostname(%q) = %q, %v; want %q, %v", tt.url, got, ok, tt.want, tt.ok)
		}
	}
}

func TestClassifierExtraTLDs(t *testing.T) {
	c := NewClassifier(false, []string{"gov.au"})
	if got := c.Root("www.example.gov.au"); got != "example.gov.au" {
		t.Errorf("Root = %q, want example.gov.au", got)
	}
	if got := c.Root("www.example.co.uk"); got != "example.co.uk" {
		t.Errorf("Root = %q, want example.co.uk", got)
	}
}

func TestClassifierPublicSuffix(t *testing.T) {
	c := NewClassifier(true, nil)
	if got := c.Root("www.example.gov.au"); got != "example.gov.au" {
		t.Errorf("Root = %q, want example.gov.au", got)
	}
	if got := c.Root("localhost"); got != "localhost" {
		t.Errorf("Root = %q, want localhost", got)
	}
	if got := c.Root("www.example.com."); got != "example.com" {
		t.Errorf("Root = %q, want example.com", got)
	}
}

func TestNilClassifier(t *testing.T) {
	var c *Classifier
	if got := c.Root("a.b.example.com"); got != "example.com" {
		t.Errorf("Root = %q, want example.com", got)
	}
}
