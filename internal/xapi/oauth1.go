package xapi

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// Credentials is the user-context credential set required for posting.
// Reads go through the bearer token instead; see Client.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

// Sign computes the OAuth 1.0a HMAC-SHA1 Authorization header for one
// request. params must contain every query and form parameter of the
// request. Pure function: nonce and timestamp are inputs, so known-vector
// tests can pin the output.
func Sign(method, rawurl string, params url.Values, creds Credentials, nonce string, timestamp int64) string {
	oauth := map[string]string{
		"oauth_consumer_key":     creds.ConsumerKey,
		"oauth_nonce":            nonce,
		"oauth_signature_method": "HMAC-SHA1",
		"oauth_timestamp":        strconv.FormatInt(timestamp, 10),
		"oauth_token":            creds.AccessToken,
		"oauth_version":          "1.0",
	}

	type pair struct{ k, v string }
	var pairs []pair
	for k, vs := range params {
		for _, v := range vs {
			pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
		}
	}
	for k, v := range oauth {
		pairs = append(pairs, pair{percentEncode(k), percentEncode(v)})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].k != pairs[j].k {
			return pairs[i].k < pairs[j].k
		}
		return pairs[i].v < pairs[j].v
	})

	var ps strings.Builder
	for i, p := range pairs {
		if i > 0 {
			ps.WriteByte('&')
		}
		ps.WriteString(p.k)
		ps.WriteByte('=')
		ps.WriteString(p.v)
	}

	base := strings.ToUpper(method) + "&" + percentEncode(rawurl) + "&" + percentEncode(ps.String())
	key := percentEncode(creds.ConsumerSecret) + "&" + percentEncode(creds.AccessSecret)

	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(base))
	oauth["oauth_signature"] = base64.StdEncoding.EncodeToString(mac.Sum(nil))

	keys := make([]string, 0, len(oauth))
	for k := range oauth {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var h strings.Builder
	h.WriteString("OAuth ")
	for i, k := range keys {
		if i > 0 {
			h.WriteString(", ")
		}
		h.WriteString(percentEncode(k))
		h.WriteString(`="`)
		h.WriteString(percentEncode(oauth[k]))
		h.WriteString(`"`)
	}
	return h.String()
}

// percentEncode implements RFC 3986 encoding as the signing scheme
// requires (unreserved characters only, uppercase hex).
func percentEncode(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9',
			c == '-', c == '.', c == '_', c == '~':
			b.WriteByte(c)
		default:
			b.WriteString(fmt.Sprintf("%%%02X", c))
		}
	}
	return b.String()
}
