// Package domain maps hostnames to the bucket key used for grouping.
//
// Root is a heuristic approximation of registrable-domain matching, not a
// public suffix list implementation. It only knows the two-part TLDs listed
// in twoPartTLDs; a host under any other multi-label suffix (for example
// "example.gov.au" or "example.ac.jp") is reduced to its last two labels
// and therefore grouped under the suffix itself. Classifier can be switched
// to the public suffix list when that matters.
package domain

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var twoPartTLDs = map[string]bool{
	"co.uk": true, "com.au": true, "co.nz": true, "co.za": true, "com.br": true, "co.in": true,
	"com.cn": true, "com.mx": true, "co.jp": true, "com.ar": true, "com.sg": true, "co.id": true,
	"com.tr": true, "co.kr": true, "com.tw": true, "co.th": true, "com.my": true, "com.vn": true,
}

// Root returns the root domain of hostname. Hosts with two labels or fewer
// are returned without a trailing dot but otherwise unchanged.
func Root(hostname string) string {
	return rootWith(hostname, nil)
}

func rootWith(hostname string, extra map[string]bool) string {
	hostname = strings.TrimSuffix(hostname, ".")
	parts := strings.Split(hostname, ".")
	if len(parts) <= 2 {
		return hostname
	}
	lastTwo := strings.Join(parts[len(parts)-2:], ".")
	if twoPartTLDs[lastTwo] || extra[lastTwo] {
		return strings.Join(parts[len(parts)-3:], ".")
	}
	return lastTwo
}

// Hostname extracts the lower-cased hostname from rawURL. It fails for
// unparseable input and for URLs without a host, such as about:blank,
// chrome://newtab or moz-extension pages without an authority.
func Hostname(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	switch u.Scheme {
	case "http", "https", "ftp", "file":
	default:
		return "", false
	}
	// Fully qualified hosts carry a trailing dot.
	host := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	if host == "" {
		return "", false
	}
	return host, true
}

// Classifier computes root domains with optional extensions to the
// built-in heuristic.
type Classifier struct {
	// PublicSuffix switches to the public suffix list (eTLD+1).
	PublicSuffix bool
	// ExtraTwoPartTLDs extends the built-in two-part TLD list.
	ExtraTwoPartTLDs []string

	extra map[string]bool
}

// NewClassifier builds a Classifier. The zero Classifier behaves like Root.
func NewClassifier(publicSuffix bool, extraTLDs []string) *Classifier {
	c := &Classifier{PublicSuffix: publicSuffix, ExtraTwoPartTLDs: extraTLDs}
	if len(extraTLDs) > 0 {
		c.extra = make(map[string]bool, len(extraTLDs))
		for _, tld := range extraTLDs {
			c.extra[strings.ToLower(strings.Trim(tld, ". "))] = true
		}
	}
	return c
}

// Root returns the bucket key for hostname.
func (c *Classifier) Root(hostname string) string {
	if c == nil {
		return Root(hostname)
	}
	if c.PublicSuffix {
		hostname = strings.TrimSuffix(hostname, ".")
		// IP addresses and single-label hosts have no eTLD+1.
		if root, err := publicsuffix.EffectiveTLDPlusOne(hostname); err == nil {
			return root
		}
		return hostname
	}
	return rootWith(hostname, c.extra)
}
