package library

import "strings"

// multiPartTLDs are public suffixes made of two labels.
var multiPartTLDs = map[string]bool{
	"co.uk": true, "co.jp": true, "co.kr": true, "co.nz": true, "co.za": true,
	"co.in": true, "co.id": true, "co.th": true,
	"com.cn": true, "com.tw": true, "com.hk": true, "com.sg": true, "com.au": true,
	"com.br": true, "com.mx": true, "com.ar": true, "com.tr": true, "com.ua": true,
	"com.my": true, "com.ph": true, "com.vn": true, "com.pk": true,
	"org.cn": true, "org.uk": true, "org.au": true, "org.tw": true, "org.hk": true,
	"net.cn": true, "net.au": true, "net.tw": true,
	"gov.cn": true, "gov.uk": true, "gov.au": true,
	"edu.cn": true, "edu.au": true, "edu.tw": true, "edu.hk": true,
	"ac.uk": true, "ac.jp": true, "ac.kr": true, "ac.cn": true,
}

// Host returns the lowercase hostname of a URL without port or "www.".
func Host(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.ToLower(s)
	return strings.TrimPrefix(s, "www.")
}

// ExtractDomain reduces a URL to its registrable domain, e.g.
// "https://news.bbc.co.uk/x" becomes "bbc.co.uk".
func ExtractDomain(rawURL string) string {
	host := Host(rawURL)
	parts := strings.Split(host, ".")
	n := len(parts)
	if n <= 2 {
		return host
	}
	if multiPartTLDs[parts[n-2]+"."+parts[n-1]] {
		return strings.Join(parts[n-3:], ".")
	}
	return strings.Join(parts[n-2:], ".")
}

// MatchesDomain reports whether rawURL is on domain or one of its subdomains.
func MatchesDomain(rawURL, domain string) bool {
	if rawURL == "" || domain == "" {
		return false
	}
	host := Host(rawURL)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
