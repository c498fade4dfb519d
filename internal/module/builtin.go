package module

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"

	"github.com/roach88/cascade/internal/target"
)

const (
	// ParseURLName splits the stored url into domain, top_domain and base_url.
	ParseURLName = "parse_url"
	// DumpName writes every stored key as key=value.
	DumpName = "dump"
)

// URLParts are the values derived from a URL by parse_url.
type URLParts struct {
	Domain    string
	TopDomain string
	BaseURL   string
}

// ParseURL derives the host, the registrable two-label domain and the URL
// without query or fragment. An empty path becomes "/".
func ParseURL(raw string) (URLParts, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return URLParts{}, fmt.Errorf("parse url %q: %w", raw, err)
	}
	host := u.Hostname()
	if host == "" {
		return URLParts{}, fmt.Errorf("parse url %q: missing host", raw)
	}
	host = strings.ToLower(host)

	top := host
	if strings.Count(host, ".") > 1 {
		labels := strings.Split(host, ".")
		top = strings.Join(labels[len(labels)-2:], ".")
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return URLParts{
		Domain:    host,
		TopDomain: top,
		BaseURL:   u.Scheme + "://" + u.Host + path,
	}, nil
}

func newParseURL(t *target.Target) (Runnable, error) {
	return RunnableFunc(func(ctx context.Context, w io.Writer) error {
		raw, ok := t.Get("url")
		if !ok {
			return fmt.Errorf("%s: no url stored", ParseURLName)
		}
		parts, err := ParseURL(raw)
		if err != nil {
			return err
		}
		for _, kv := range [][2]string{
			{"domain", parts.Domain},
			{"top_domain", parts.TopDomain},
			{"base_url", parts.BaseURL},
		} {
			if err := ctx.Err(); err != nil {
				return err
			}
			t.StoreLocked(kv[0], kv[1])
			if _, err := fmt.Fprintf(w, "%s=%s\n", kv[0], kv[1]); err != nil {
				return err
			}
		}
		return nil
	}), nil
}

func newDump(t *target.Target) (Runnable, error) {
	return RunnableFunc(func(ctx context.Context, w io.Writer) error {
		stored := t.Snapshot()
		keys := make([]string, 0, len(stored))
		for k := range stored {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s=%s\n", k, stored[k]); err != nil {
				return err
			}
		}
		return nil
	}), nil
}
