// /internal/music/sources/youtube/client.go
package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	"github.com/rs/zerolog"
	"golang.org/x/net/proxy"
)

const httpTimeout = 15 * time.Second

// NewHTTPClient returns a client routed through proxyStr when it is set.
// http, https, socks5 and socks4 schemes are understood; anything else
// falls back to a direct client.
func NewHTTPClient(proxyStr string, log zerolog.Logger) *http.Client {
	direct := &http.Client{Timeout: httpTimeout}
	if proxyStr == "" {
		return direct
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Warn().Err(err).Msg("invalid proxy, going direct")
		return direct
	}

	var transport *http.Transport

	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Warn().Err(err).Msg("socks5 dialer")
			break
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	case "socks4":
		// go-socks4 registers the scheme with x/net/proxy on import.
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Warn().Err(err).Msg("socks4 dialer")
			break
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	default:
		log.Warn().Str("scheme", proxyURL.Scheme).Msg("unsupported proxy scheme")
	}

	if transport == nil {
		return direct
	}

	log.Info().Str("scheme", proxyURL.Scheme).Str("host", proxyURL.Host).Msg("using proxy")
	return &http.Client{Timeout: httpTimeout, Transport: transport}
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
