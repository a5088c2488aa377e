package apiclient

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Fingerprint returns the identity of a logical request. Two requests with
// the same method, path, query, identity headers and semantically equal
// JSON body share a fingerprint regardless of key order.
//
// The form is "METHOD /path?sorted=query" optionally followed by
// "#<digest>" when a body or identity headers are present. GET keys
// therefore start with "GET /path", which WithInvalidate relies on.
func Fingerprint(method, path string, query url.Values, header http.Header, body []byte) string {
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte(' ')
	b.WriteString(path)
	if len(query) > 0 {
		b.WriteByte('?')
		b.WriteString(query.Encode())
	}

	if len(body) == 0 && len(header) == 0 {
		return b.String()
	}

	h := sha256.New()
	h.Write(canonicalBody(body))
	h.Write([]byte{'\n'})
	for _, name := range sortedHeaderNames(header) {
		h.Write([]byte(name))
		h.Write([]byte{':'})
		h.Write([]byte(strings.Join(header.Values(name), ",")))
		h.Write([]byte{'\n'})
	}
	b.WriteByte('#')
	b.WriteString(hex.EncodeToString(h.Sum(nil)[:16]))
	return b.String()
}

// canonicalBody re-encodes JSON with sorted object keys. Non-JSON bodies
// are used verbatim.
func canonicalBody(body []byte) []byte {
	if len(body) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return body
	}
	out, err := json.Marshal(v)
	if err != nil {
		return body
	}
	return out
}

func sortedHeaderNames(header http.Header) []string {
	names := make([]string, 0, len(header))
	for name := range header {
		names = append(names, http.CanonicalHeaderKey(name))
	}
	sort.Strings(names)
	return names
}
