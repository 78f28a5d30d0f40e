package keys

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

type hasher interface {
	WriteString(value string) error
}

// NewRequestHasher returns a hasher over the parts of a request that define
// its identity: method, normalized URL, and (for methods where the body
// participates) the body bytes. It sorts query parameters so two URLs that
// differ only in parameter order produce the same fingerprint.
func NewRequestHasher(method string, u *url.URL, body []byte) *requestHasher {
	return &requestHasher{method: method, url: u, body: body}
}

type requestHasher struct {
	method string
	url    *url.URL
	body   []byte
}

func (r *requestHasher) Append(h hasher) error {
	if err := h.WriteString(strings.ToUpper(r.method)); err != nil {
		return err
	}
	// prefix to avoid overlap with previous strings written
	if err := h.WriteString("/"); err != nil {
		return err
	}
	if err := h.WriteString(r.url.Host); err != nil {
		return err
	}
	if err := h.WriteString(r.url.EscapedPath()); err != nil {
		return err
	}

	params := r.url.Query()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range params[name] {
			if err := h.WriteString(name + "=" + value + "&"); err != nil {
				return err
			}
		}
	}

	if len(r.body) > 0 {
		if err := h.WriteString("#"); err != nil {
			return err
		}
		if err := h.WriteString(string(r.body)); err != nil {
			return err
		}
	}
	return nil
}

// RequestFingerprint computes the fingerprint for one request, mixing in the
// collection generation so a bumped generation orphans earlier entries.
func RequestFingerprint(method string, u *url.URL, body []byte, generation uint64) (Fingerprint, error) {
	h := NewFingerprintHasher(xxhash.New())
	if err := h.WriteString(strconv.FormatUint(generation, 10)); err != nil {
		return Fingerprint{}, err
	}
	if err := NewRequestHasher(method, u, body).Append(h); err != nil {
		return Fingerprint{}, err
	}
	return h.Key(), nil
}
