package awattar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/angas/awattar-go/hours"
	"github.com/angas/awattar-go/types"
)

const (
	DefaultApiUrl = "https://api.awattar.de/v1/marketdata"
	Timeout       = 10 * time.Second

	maxBodySize = 10 << 20
)

type marketData struct {
	Object string                 `json:"object"`
	Data   *[]types.PriceInterval `json:"data"`
	Url    string                 `json:"url"`
}

type Response struct {
	StatusCode int
	Body       []byte // Compacted JSON as received
	Data       []types.PriceInterval
}

type Awattar struct {
	apiUrl string
	client *http.Client
}

func New(apiUrl string, userAgent string) *Awattar {
	return &Awattar{
		apiUrl: apiUrl,
		client: httpClient(Timeout, userAgent),
	}
}

// NewWithClient is mostly useful for tests.
func NewWithClient(apiUrl string, client *http.Client) *Awattar {
	return &Awattar{apiUrl: apiUrl, client: client}
}

// GetPrices does a single GET with the window appended as start/end query parameters.
// Errors are one of *RequestError, *NoResponseError, *RemoteError or *DecodeError.
func (a *Awattar) GetPrices(ctx context.Context, window hours.QueryWindow) (*Response, error) {
	u, err := url.Parse(a.apiUrl)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("invalid api url: %w", err)}
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, &RequestError{Err: fmt.Errorf("invalid api url: %q is not absolute", a.apiUrl)}
	}

	q := u.Query()
	q.Set("start", strconv.FormatInt(window.Start, 10))
	q.Set("end", strconv.FormatInt(window.End, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &RequestError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &NoResponseError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &NoResponseError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RemoteError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var md marketData
	if err := json.Unmarshal(body, &md); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if md.Data == nil {
		return nil, &DecodeError{Err: errors.New("response has no data field")}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("failed to compact response: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       compact.Bytes(),
		Data:       *md.Data,
	}, nil
}
