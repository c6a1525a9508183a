package source

import (
	"context"
	"net/url"

	"github.com/fariaslabs/sgfsync/constants"
	"github.com/fariaslabs/sgfsync/types"
	"github.com/fariaslabs/sgfsync/utils"
)

// Iterator produces a lazy, finite sequence of record batches. Each batch
// is one remote page, sized so a single transform+persist transaction stays
// bounded. A new iterator restarted from the same cursor replays any page
// whose commit was never observed.
type Iterator interface {
	Next(ctx context.Context) bool
	Records() []types.RawRecord
	Err() error
}

// Pages walks an offset-paginated endpoint until a short or empty page.
type Pages struct {
	client *Client
	url    string
	params url.Values

	offset  int
	done    bool
	current []types.RawRecord
	err     error
}

func (c *Client) pages(path string, params url.Values) *Pages {
	return &Pages{
		client: c,
		url:    c.baseURL + path,
		params: params,
	}
}

// Next fetches the next page, retrying transient failures with backoff.
// It returns false once the sequence is exhausted or a fetch gave up.
func (p *Pages) Next(ctx context.Context) bool {
	if p.done || p.err != nil {
		return false
	}
	if err := ctx.Err(); err != nil {
		p.err = err
		return false
	}

	var page []types.RawRecord
	p.err = utils.RetryOnBackoff(ctx, p.client.retries, p.client.backoff, func() error {
		fetched, err := p.client.fetchPage(p.url, p.params, p.offset)
		if err != nil {
			return err
		}
		page = fetched
		return nil
	})
	if p.err != nil {
		p.done = true
		return false
	}

	if len(page) == 0 {
		p.done = true
		return false
	}
	if len(page) < constants.PageSize {
		p.done = true // short page is the last page
	}

	p.current = page
	p.offset += len(page)
	return true
}

func (p *Pages) Records() []types.RawRecord { return p.current }

func (p *Pages) Err() error { return p.err }
