package coverage

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
)

// ParseQuery builds a Request from the lat, lng, alt and maxSats query
// parameters. lat and lng are required; alt defaults to 0 and maxSats to
// DefaultMaxSats. A maxSats above DefaultMaxSats is clamped to it. The result
// is validated.
func ParseQuery(constellation string, q url.Values) (Request, error) {
	req := Request{Constellation: constellation}

	var err error
	if req.Observer.Lat, err = requiredFloat(q, "lat"); err != nil {
		return Request{}, err
	}
	if req.Observer.Lng, err = requiredFloat(q, "lng"); err != nil {
		return Request{}, err
	}
	if v := q.Get("alt"); v != "" {
		if req.Observer.Alt, err = parseFinite("alt", v); err != nil {
			return Request{}, err
		}
	}
	if v := q.Get("maxSats"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Request{}, fmt.Errorf("%w: maxSats must be a positive integer", ErrInvalidRequest)
		}
		req.MaxSats = min(n, DefaultMaxSats)
	}

	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

func requiredFloat(q url.Values, name string) (float64, error) {
	v := q.Get(name)
	if v == "" {
		return 0, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name)
	}
	return parseFinite(name, v)
}

func parseFinite(name, v string) (float64, error) {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s must be a finite number", ErrInvalidRequest, name)
	}
	return f, nil
}
