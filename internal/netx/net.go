// Package netx holds plain HTTP helpers not tied to the remote API.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Reachable issues a HEAD request to url and reports whether a server
// answered. Any status below 500 counts as reachable: the goal is to learn
// whether the internet path works, not whether the resource exists.
func Reachable(ctx context.Context, client *http.Client, url string) error {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("probe %s: %s", url, resp.Status)
	}
	return nil
}

// AnyReachable returns nil as soon as one of urls answers, otherwise the
// last probe error. An empty list is reported as unreachable.
func AnyReachable(ctx context.Context, client *http.Client, urls []string) error {
	err := fmt.Errorf("no probe urls configured")
	for _, u := range urls {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err = Reachable(ctx, client, u); err == nil {
			return nil
		}
	}
	return err
}
