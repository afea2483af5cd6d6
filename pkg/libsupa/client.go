package libsupa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/pkg/errors"
)

type (
	// A Client defines all interactions that can be performed on a hosted table datastore.
	// Each call is a single round trip, there is no retry.
	Client interface {
		// Endpoint returns the base URL of the datastore.
		Endpoint() string
		// Ping checks that the REST API is reachable.
		Ping(ctx context.Context) error
		// Select reads the rows of table matching q and decodes them into dest (pointer to a slice).
		Select(ctx context.Context, table string, q *Query, dest any) error
		// Upsert inserts or replaces rows by primary key.
		// The stored representation is decoded into dest when dest is not nil.
		Upsert(ctx context.Context, table string, rows any, dest any) error
		// Update patches the rows of table matching q.
		// The updated representation is decoded into dest when dest is not nil.
		Update(ctx context.Context, table string, q *Query, patch any, dest any) error
		// Subscribe opens a change stream on the given channel.
		// handler is called sequentially for each received change.
		Subscribe(ctx context.Context, channel string, filter ChangeFilter, handler func(ChangeEvent)) (*Subscription, error)
	}

	client struct {
		http     *http.Client
		endpoint string
		apikey   string
	}
)

// NewDefaultClient returns a new Client with default HTTP client.
func NewDefaultClient(endpoint, apikey string) (Client, error) {
	return NewClient(http.DefaultClient, endpoint, apikey)
}

// NewClient returns a new Client.
func NewClient(c *http.Client, endpoint, apikey string) (Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse endpoint")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.Errorf("unsupported endpoint scheme: %q", u.Scheme)
	}
	return &client{http: c, endpoint: endpoint, apikey: apikey}, nil
}

func (c *client) Endpoint() string {
	return c.endpoint
}

func (c *client) Ping(ctx context.Context) error {
	req, err := c.request(ctx, http.MethodHead, "", nil, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 500 {
		return parseAPIError(res.Body, res.StatusCode)
	}
	return nil
}

func (c *client) Select(ctx context.Context, table string, q *Query, dest any) error {
	if q == nil {
		q = NewQuery()
	}

	req, err := c.request(ctx, http.MethodGet, table, q.Values(), nil)
	if err != nil {
		return err
	}

	return c.do(req, dest)
}

func (c *client) Upsert(ctx context.Context, table string, rows any, dest any) error {
	body, err := json.Marshal(rows)
	if err != nil {
		return errors.Wrap(err, "could not serialize rows")
	}

	req, err := c.request(ctx, http.MethodPost, table, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Prefer", "resolution=merge-duplicates")
	req.Header.Add("Prefer", prefer(dest))

	return c.do(req, dest)
}

func (c *client) Update(ctx context.Context, table string, q *Query, patch any, dest any) error {
	if q == nil || len(q.Filters()) == 0 {
		return errors.New("refusing to update a table without filter")
	}

	body, err := json.Marshal(patch)
	if err != nil {
		return errors.Wrap(err, "could not serialize patch")
	}

	values := q.Values()
	values.Del("select")
	values.Del("order")

	req, err := c.request(ctx, http.MethodPatch, table, values, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Add("Prefer", prefer(dest))

	return c.do(req, dest)
}

func (c *client) request(ctx context.Context, method, table string, query url.Values, body io.Reader) (*http.Request, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "could not parse endpoint")
	}
	u.Path = path.Join(u.Path, "/rest/v1", table)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	//
	// Build request
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "could not build request")
	}
	req.Close = true
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("apikey", c.apikey)
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.apikey))
	return req, nil
}

func (c *client) do(req *http.Request, dest any) error {
	//
	// Perform request
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "could not perform request")
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return parseAPIError(res.Body, res.StatusCode)
	}

	if dest == nil || res.StatusCode == http.StatusNoContent {
		return nil
	}

	//
	// Process response
	dec := json.NewDecoder(res.Body)
	return errors.Wrap(dec.Decode(dest), "could not parse response")
}

func prefer(dest any) string {
	if dest == nil {
		return "return=minimal"
	}
	return "return=representation"
}
