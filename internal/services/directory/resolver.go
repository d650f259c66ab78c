package directory

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/shopwise/dealagent/internal/models"
)

// Contact resolution matches a free-text seller name or offer URL against
// the directory snapshot using ordered fallback strategies. Pure and
// idempotent; re-run opportunistically whenever the snapshot changes to
// backfill records parsed before the directory finished loading.

var (
	separatorPattern  = regexp.MustCompile(`[-_./,&+']+`)
	nonWordPattern    = regexp.MustCompile(`[^\p{L}\p{N} ]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// searchEngineHosts are generic hosts an offer URL may point at when the
// producer quoted a search result rather than the seller's own site; they
// never identify a seller.
var searchEngineHosts = map[string]bool{
	"google.com":     true,
	"google.co.il":   true,
	"bing.com":       true,
	"duckduckgo.com": true,
	"yahoo.com":      true,
	"yandex.com":     true,
}

// ResolveContact returns the directory contact number for a parsed seller,
// trying in order: URL host exact match, normalized name exact match,
// substring containment in stable directory order, then the same two
// stages with whitespace stripped. First match wins.
func ResolveContact(displayName, offerURL string, entries []models.SellerDirectoryEntry) (string, bool) {
	if host, ok := registrableHost(offerURL); ok {
		for _, entry := range entries {
			if entry.Domain == "" {
				continue
			}
			if normalizeDomain(entry.Domain) == host {
				if phone := entry.ContactNumber(); phone != "" {
					return phone, true
				}
			}
		}
	}

	name := normalizeName(displayName)
	if name == "" {
		return "", false
	}

	if phone, ok := matchByName(name, entries, false); ok {
		return phone, true
	}
	return matchByName(name, entries, true)
}

// matchByName tries exact match then substring containment in either
// direction, in stable directory order. With stripSpaces the comparison
// additionally removes whitespace for a looser pass.
func matchByName(name string, entries []models.SellerDirectoryEntry, stripSpaces bool) (string, bool) {
	target := name
	if stripSpaces {
		target = strings.ReplaceAll(target, " ", "")
	}
	if target == "" {
		return "", false
	}

	for _, entry := range entries {
		if candidateName(entry, stripSpaces) == target {
			if phone := entry.ContactNumber(); phone != "" {
				return phone, true
			}
		}
	}

	for _, entry := range entries {
		candidate := candidateName(entry, stripSpaces)
		if candidate == "" {
			continue
		}
		if strings.Contains(candidate, target) || strings.Contains(target, candidate) {
			if phone := entry.ContactNumber(); phone != "" {
				return phone, true
			}
		}
	}

	return "", false
}

func candidateName(entry models.SellerDirectoryEntry, stripSpaces bool) string {
	name := normalizeName(entry.Name)
	if stripSpaces {
		name = strings.ReplaceAll(name, " ", "")
	}
	return name
}

// normalizeName lower-cases, collapses separator punctuation to spaces,
// strips remaining non-word characters and collapses whitespace.
func normalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = separatorPattern.ReplaceAllString(s, " ")
	s = nonWordPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// registrableHost derives the host an offer URL points at, with the
// leading www. stripped. Generic search-engine hosts are ignored.
func registrableHost(offerURL string) (string, bool) {
	if offerURL == "" {
		return "", false
	}
	parsed, err := url.Parse(offerURL)
	if err != nil || parsed.Hostname() == "" {
		return "", false
	}
	host := normalizeDomain(parsed.Hostname())
	if host == "" || searchEngineHosts[host] {
		return "", false
	}
	return host, true
}

func normalizeDomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(domain)), "www.")
}
