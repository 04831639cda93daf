// Package core contains library functions shared by the spikeplot suite of
// tools.
package core

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/pkg/combinators"
)

// Source schemes understood by the proxy.
const (
	SchemeTCP    = "tcp"
	SchemeListen = "listen"
	SchemeSerial = "serial"
	SchemeSim    = "sim"
	SchemeRFCOMM = "rfcomm"
)

// SourceURL describes where the proxy gets raw spike frames from.
type SourceURL struct {
	Scheme string
	Host   string
	Port   string
	Path   string
	Query  url.Values
}

// URL converts a SourceURL into a url.URL.
func (s SourceURL) URL() url.URL {
	u := url.URL{
		Scheme: s.Scheme,
		Host:   s.Address(),
		Path:   s.Path,
	}
	if len(s.Query) > 0 {
		u.RawQuery = s.Query.Encode()
	}
	return u
}

// String returns a URL of the form scheme://host:port/path?query.
func (s SourceURL) String() string {
	if s.Scheme == SchemeRFCOMM {
		out := s.Scheme + "://" + s.Host + "/" + s.Port
		if len(s.Query) > 0 {
			out += "?" + s.Query.Encode()
		}
		return out
	}
	u := s.URL()
	if u.Host == "" && u.Path == "" {
		// url.URL drops the slashes when there is no authority
		out := u.Scheme + "://"
		if u.RawQuery != "" {
			out += "?" + u.RawQuery
		}
		return out
	}
	return u.String()
}

// Address return a string of the form "host:port".
func (s SourceURL) Address() string {
	if s.Port != "" {
		return net.JoinHostPort(s.Host, s.Port)
	}
	return s.Host
}

// IsNetwork reports whether the source is reached over TCP.
func (s SourceURL) IsNetwork() bool {
	return s.Scheme == SchemeTCP || s.Scheme == SchemeListen
}

// IntParam returns the integer query parameter key, or def when it is absent.
func (s SourceURL) IntParam(key string, def int) (int, error) {
	raw := s.Query.Get(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("source parameter %s=%q is not an integer", key, raw)
	}
	return v, nil
}

// parseURL parses a URL of the form [scheme://][host][:port][/path][?query]
// to a url.URL. A bare host:port is treated as tcp. It rejects fragments and
// user info.
func parseURL(address string) (*url.URL, error) {
	var u *url.URL
	var err error
	if strings.Contains(address, "://") {
		u, err = url.Parse(address)
	} else {
		// Force the URL to parse a scheme
		u, err = url.Parse(fmt.Sprintf("%s://%s", SchemeTCP, address))
	}
	if err != nil {
		return nil, err
	}
	if u.Fragment != "" || u.RawFragment != "" {
		return nil, fmt.Errorf("source URLs cannot contain a fragment: %q", u.String())
	}
	if u.User != nil {
		return nil, fmt.Errorf("source URLs cannot contain user info: %q", u.String())
	}
	return u, nil
}

// parseRFCOMM handles rfcomm://MAC[/channel][?query] and bare Bluetooth
// device addresses, whose colons url.Parse would read as a port. It reports
// false when in is neither.
func parseRFCOMM(in string) (*SourceURL, bool, error) {
	rest, found := strings.CutPrefix(in, SchemeRFCOMM+"://")
	if !found {
		if strings.Contains(in, "://") {
			return nil, false, nil
		}
		if hw, err := net.ParseMAC(in); err != nil || len(hw) != 6 {
			return nil, false, nil
		}
		rest = in
	}
	s := &SourceURL{Scheme: SchemeRFCOMM}
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		q, err := url.ParseQuery(rest[i+1:])
		if err != nil {
			return nil, true, err
		}
		s.Query = q
		rest = rest[:i]
	}
	mac, channel, _ := strings.Cut(rest, "/")
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return nil, true, fmt.Errorf("rfcomm sources need a bluetooth device address: %q", in)
	}
	s.Host = strings.ToUpper(hw.String())
	s.Port = combinators.StringOr(channel, strconv.Itoa(common.DefaultRFCOMMChannel))
	if ch, err := strconv.Atoi(s.Port); err != nil || ch < 1 || ch > 30 {
		return nil, true, fmt.Errorf("rfcomm channel must be within 1..30: %q", in)
	}
	return s, true, nil
}

// ParseSource parses a proxy source specification into a SourceURL and
// checks that the parts the scheme needs are present.
func ParseSource(in string) (*SourceURL, error) {
	if s, ok, err := parseRFCOMM(in); ok {
		return s, err
	}
	u, err := parseURL(in)
	if err != nil {
		return nil, err
	}
	s := &SourceURL{
		Scheme: strings.ToLower(u.Scheme),
		Host:   u.Hostname(),
		Port:   u.Port(),
		Path:   u.Path,
		Query:  u.Query(),
	}
	switch s.Scheme {
	case SchemeTCP:
		s.Host = combinators.StringOr(s.Host, common.DefaultProxyHost)
		s.Port = combinators.StringOr(s.Port, strconv.Itoa(common.DefaultSourcePort))
		if s.Path != "" {
			return nil, fmt.Errorf("tcp sources cannot contain a path: %q", in)
		}
	case SchemeListen:
		if s.Port == "" {
			return nil, fmt.Errorf("listen sources need a port: %q", in)
		}
		if s.Path != "" {
			return nil, fmt.Errorf("listen sources cannot contain a path: %q", in)
		}
	case SchemeSerial:
		if s.Path == "" {
			return nil, fmt.Errorf("serial sources need a device path: %q", in)
		}
		if s.Host != "" {
			return nil, fmt.Errorf("serial sources cannot name a host: %q", in)
		}
	case SchemeSim:
	default:
		return nil, fmt.Errorf("unknown source scheme %q", s.Scheme)
	}
	return s, nil
}

// ServerAddress joins a host and port given on a command line. An empty host
// means localhost.
func ServerAddress(host string, port int) string {
	return net.JoinHostPort(combinators.StringOr(host, common.DefaultProxyHost), strconv.Itoa(port))
}
