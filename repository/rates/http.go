package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"github.com/fastygo/ledger/domain"
	"github.com/fastygo/ledger/repository"
)

// Client quotes rates from an external pricing service over HTTP. The service
// is expected to answer GET {base}/rates?from=X&to=Y with {"rate": "1.2345"}.
type Client struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
}

// NewClient creates an HTTP rate provider.
func NewClient(baseURL string, timeout time.Duration) repository.RateProvider {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout},
		timeout: timeout,
	}
}

type rateResponse struct {
	Rate string `json:"rate"`
}

func (c *Client) GetRate(ctx context.Context, fromAsset, toAsset string) (decimal.Decimal, error) {
	if fromAsset == toAsset {
		return decimal.NewFromInt(1), nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(fmt.Sprintf("%s/rates?from=%s&to=%s",
		c.baseURL, url.QueryEscape(fromAsset), url.QueryEscape(toAsset)))
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
		return decimal.Decimal{}, domain.WrapError(domain.ErrCodeInternal, "rate service unavailable", err)
	}
	if resp.StatusCode() == fasthttp.StatusNotFound {
		return decimal.Decimal{}, domain.NewError(domain.ErrCodeNotFound,
			fmt.Sprintf("no rate for %s/%s", fromAsset, toAsset))
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return decimal.Decimal{}, domain.NewError(domain.ErrCodeInternal,
			fmt.Sprintf("rate service returned %d", resp.StatusCode()))
	}

	var body rateResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return decimal.Decimal{}, domain.WrapError(domain.ErrCodeInternal, "rate response not decodable", err)
	}
	rate, err := decimal.NewFromString(body.Rate)
	if err != nil {
		return decimal.Decimal{}, domain.WrapError(domain.ErrCodeInternal, "rate not a decimal", err)
	}
	if rate.IsZero() || rate.IsNegative() {
		return decimal.Decimal{}, domain.NewError(domain.ErrCodeInvalid, "rate must be positive")
	}
	return rate, nil
}
