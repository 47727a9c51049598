package clients

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
)

const timeout = time.Second * 15

var ErrFailedCloseResponseBody = errors.New("failed close response body")

type HTTPClientI interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient builds a retrying client suitable for provider API calls.
// Retries use exponential backoff and never replay a request that already
// produced a response with a non-5xx status.
func NewHTTPClient() *pester.Client {
	c := pester.New()
	c.Timeout = timeout
	c.MaxRetries = 3
	c.Backoff = pester.ExponentialBackoff
	c.RetryOnHTTP429 = true
	return c
}

// ReadBody drains and closes a response body.
func ReadBody(resp *http.Response) (body []byte, err error) {
	defer func() {
		if e := resp.Body.Close(); e != nil {
			err = errors.Join(err, ErrFailedCloseResponseBody)
		}
	}()
	return io.ReadAll(resp.Body)
}
