package fingerprint

import (
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/newsradar-io/newsradar/internal/domain"
)

// trackingParams are query parameters that never change article identity.
var trackingParams = map[string]struct{}{
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
	"igshid":       {},
	"mc_cid":       {},
	"mc_eid":       {},
	"ref":          {},
	"ref_src":      {},
	"cmpid":        {},
	"ito":          {},
	"ncid":         {},
	"ocid":         {},
	"smid":         {},
	"sref":         {},
	"_hsenc":       {},
	"_hsmi":        {},
	"spm":          {},
	"share_source": {},
}

// NormalizeURL canonicalizes an article URL for identity purposes: tracking
// query parameters are stripped, the scheme and host are lowercased, the
// fragment is dropped and a trailing slash is removed. Invalid URLs are
// returned trimmed but otherwise untouched.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if _, drop := trackingParams[lower]; drop || strings.HasPrefix(lower, "utm_") {
			q.Del(key)
		}
	}
	u.RawQuery = encodeSorted(q)

	u.Path = strings.TrimSuffix(u.Path, "/")

	return u.String()
}

// encodeSorted encodes query values with sorted keys so parameter order
// never influences identity.
func encodeSorted(q url.Values) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range q[k] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(v))
		}
	}
	return b.String()
}

// Fingerprint derives the canonical identity string for an article. The
// normalized URL is the primary identity; when no usable URL exists it
// falls back to a hash of the normalized title and source domain.
func Fingerprint(title, rawURL, sourceDomain string) string {
	if normalized := NormalizeURL(rawURL); normalized != "" && strings.Contains(normalized, "://") {
		return hash(normalized)
	}

	title = strings.ToLower(strings.Join(strings.Fields(title), " "))
	return hash(title + "|" + strings.ToLower(strings.TrimSpace(sourceDomain)))
}

// hash generates a SHA-1 hex digest of the given string.
func hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Dedupe removes articles whose fingerprint was already seen earlier in the
// list. It is a single linear pass: output preserves input order minus the
// removed duplicates, so the first-seen copy always wins.
func Dedupe(articles []domain.Article) []domain.Article {
	if len(articles) < 2 {
		return articles
	}

	seen := make(map[string]struct{}, len(articles))
	out := make([]domain.Article, 0, len(articles))
	for _, a := range articles {
		fp := a.Fingerprint
		if fp == "" {
			fp = Fingerprint(a.Title, a.URL, a.Source.Name)
		}
		if _, dup := seen[fp]; dup {
			continue
		}
		seen[fp] = struct{}{}
		out = append(out, a)
	}
	return out
}
