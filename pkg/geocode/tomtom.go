package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/childcare-etl/internal/resilience"
)

// tomtomResponse is the subset of the Search API geocode response we read.
type tomtomResponse struct {
	Results []tomtomResult `json:"results"`
}

type tomtomResult struct {
	Address struct {
		CountrySubdivision string `json:"countrySubdivision"`
		Municipality       string `json:"municipality"`
		PostalCode         string `json:"postalCode"`
	} `json:"address"`
}

// Resolve geocodes address and returns the first result's region, locality
// and postal code.
//
// Rate-limited and gateway responses are retried like transport errors; if
// they persist the lookup degrades to an empty Location. Transport failures
// that outlast the retry policy are returned.
func (c *Client) Resolve(ctx context.Context, address string) (Location, error) {
	loc, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (Location, error) {
		return c.lookup(ctx, address)
	})
	if err != nil {
		var te *resilience.TransientError
		if errors.As(err, &te) && te.StatusCode != 0 {
			zap.L().Warn("geocode: giving up on non-success response",
				zap.String("address", address),
				zap.Int("status", te.StatusCode),
			)
			return Location{}, nil
		}
		return Location{}, err
	}
	return loc, nil
}

func (c *Client) lookup(ctx context.Context, address string) (Location, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Location{}, eris.Wrap(err, "geocode: rate limit")
	}

	reqURL := c.baseURL + "/search/2/geocode/" + url.PathEscape(address) + ".json?" +
		url.Values{"key": {c.apiKey}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Location{}, eris.Wrap(err, "geocode: tomtom build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, eris.Wrap(err, "geocode: tomtom request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Location{}, resilience.NewTransientError(
				eris.Errorf("geocode: tomtom returned status %d", resp.StatusCode), resp.StatusCode)
		}
		zap.L().Debug("geocode: non-success response",
			zap.String("address", address),
			zap.Int("status", resp.StatusCode),
		)
		return Location{}, nil
	}

	var body tomtomResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Location{}, eris.Wrap(err, "geocode: tomtom parse response")
	}
	if len(body.Results) == 0 {
		return Location{}, nil
	}

	first := body.Results[0].Address
	return Location{
		Region:     first.CountrySubdivision,
		Locality:   first.Municipality,
		PostalCode: first.PostalCode,
	}, nil
}
