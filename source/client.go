// Package source is the thin transport over the SGF integration gateway.
// Every entity exposes two endpoint shapes: obtain-all (full snapshot) and
// obtain-changed-since (delta), both paginated with an offset window. The
// engine drives this client; no sync decisions live here.
package source

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/fariaslabs/sgfsync/constants"
	"github.com/fariaslabs/sgfsync/errs"
	"github.com/fariaslabs/sgfsync/types"
)

// endpoint paths per entity, relative to the gateway base URL.
var (
	allPaths = map[types.Entity]string{
		types.Sales:     "/rest/integracao/venda/obter-todos-v1",
		types.Products:  "/rest/integracao/produto/obter-todos-v1",
		types.Sellers:   "/rest/integracao/vendedor/obter-todos-v1",
		types.Suppliers: "/rest/integracao/fornecedor/obter-todos-v1",
	}
	changedPaths = map[types.Entity]string{
		types.Sales:     "/rest/integracao/venda/obter-alterados-v1",
		types.Purchases: "/rest/integracao/compra/obter-alterados-v1",
		types.Products:  "/rest/integracao/produto/obter-alterados-v1",
		types.Stock:     "/rest/integracao/estoque/obter-alterados-v1",
		types.Suppliers: "/rest/integracao/fornecedor/obter-alterados-v1",
	}
	cancellationsPath = "/rest/integracao/venda/cancelamento/obter-todos-v1"
)

const dateLayout = "2006-01-02"

// Fetcher is the capability the engine consumes; tests substitute fakes.
type Fetcher interface {
	All(entity types.Entity) (Iterator, error)
	ChangedBetween(entity types.Entity, from, to time.Time) (Iterator, error)
	Cancellations(from, to time.Time) (Iterator, error)
}

type Client struct {
	http    *http.Client
	baseURL string
	token   string
	retries int
	backoff time.Duration
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   token,
		retries: constants.DefaultRetryCount,
		backoff: constants.DefaultRetryBackoff,
	}
}

// Ping verifies reachability and token validity with a single one-record
// request against the seller list, the cheapest endpoint the gateway has.
func (c *Client) Ping() error {
	query := url.Values{}
	query.Set("primeiroRegistro", "0")
	query.Set("quantidadeRegistros", "1")

	req, err := http.NewRequest(http.MethodGet, c.baseURL+allPaths[types.Sellers]+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Transient.Wrap(err, "gateway unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return errs.Auth.New("gateway rejected token: %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("gateway returned %s", resp.Status)
	}
	return nil
}

// WithRetry overrides the transient-failure retry policy.
func (c *Client) WithRetry(retries int, backoff time.Duration) *Client {
	c.retries = retries
	c.backoff = backoff
	return c
}

// All returns a page iterator over the obtain-all endpoint for entity.
func (c *Client) All(entity types.Entity) (Iterator, error) {
	path, found := allPaths[entity]
	if !found {
		return nil, fmt.Errorf("entity %s has no obtain-all endpoint", entity)
	}
	return c.pages(path, url.Values{}), nil
}

// ChangedBetween returns a page iterator over records created or changed in
// [from, to], the delta shape used for incremental sync and windowed
// backfill.
func (c *Client) ChangedBetween(entity types.Entity, from, to time.Time) (Iterator, error) {
	path, found := changedPaths[entity]
	if !found {
		return nil, fmt.Errorf("entity %s has no obtain-changed endpoint", entity)
	}
	params := url.Values{}
	params.Set("dataInicial", from.Format(dateLayout))
	params.Set("dataFinal", to.Format(dateLayout))
	return c.pages(path, params), nil
}

// Cancellations returns sale cancellations issued in [from, to]. The
// cancellation endpoint filters on issue date, not change date.
func (c *Client) Cancellations(from, to time.Time) (Iterator, error) {
	params := url.Values{}
	params.Set("dataEmissaoInicial", from.Format(dateLayout))
	params.Set("dataEmissaoFinal", to.Format(dateLayout))
	return c.pages(cancellationsPath, params), nil
}

// fetchPage performs one authenticated GET for a single page window.
func (c *Client) fetchPage(rawURL string, params url.Values, offset int) ([]types.RawRecord, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("primeiroRegistro", fmt.Sprint(offset))
	query.Set("quantidadeRegistros", fmt.Sprint(constants.PageSize))

	req, err := http.NewRequest(http.MethodGet, rawURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Transient.Wrap(err, "request to %s failed", rawURL)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errs.Auth.New("gateway rejected token for %s: %s", rawURL, resp.Status)
	case resp.StatusCode >= 500:
		return nil, errs.Transient.New("gateway error for %s: %s", rawURL, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("unexpected status for %s: %s", rawURL, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Transient.Wrap(err, "failed to read response from %s", rawURL)
	}

	var records []types.RawRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("failed to decode page from %s: %s", rawURL, err)
	}
	return records, nil
}
