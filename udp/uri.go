package udp

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

var ErrInvalidURI = errors.New("invalid coap uri")

// URI is a parsed coap:// address.
type URI struct {
	// Host is host:port; the port defaults to 5683.
	Host    string
	Path    string
	Queries []string
}

// ParseURI parses coap://host[:port]/path?query. Fragments are not allowed.
func ParseURI(raw string) (URI, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URI{}, fmt.Errorf("%w: %w", ErrInvalidURI, err)
	}
	if u.Scheme != "coap" {
		return URI{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURI, u.Scheme)
	}
	if u.Fragment != "" {
		return URI{}, fmt.Errorf("%w: fragment is not allowed", ErrInvalidURI)
	}
	host := u.Hostname()
	if host == "" {
		return URI{}, fmt.Errorf("%w: missing host", ErrInvalidURI)
	}
	port := u.Port()
	if port == "" {
		port = strconv.Itoa(DefaultPort)
	}
	res := URI{
		Host: net.JoinHostPort(host, port),
		Path: u.Path,
	}
	if res.Path == "" {
		res.Path = "/"
	}
	if u.RawQuery != "" {
		for _, q := range strings.Split(u.RawQuery, "&") {
			if q == "" {
				continue
			}
			v, err := url.QueryUnescape(q)
			if err != nil {
				return URI{}, fmt.Errorf("%w: %w", ErrInvalidURI, err)
			}
			res.Queries = append(res.Queries, v)
		}
	}
	return res, nil
}

func (u URI) String() string {
	s := "coap://" + u.Host + u.Path
	if len(u.Queries) > 0 {
		s += "?" + strings.Join(u.Queries, "&")
	}
	return s
}
