// Package salesforce wraps the go-salesforce REST client behind the small
// surface the CRM sync needs: SOQL queries, single-record writes, batched
// collection updates, and object describes, all behind one rate limiter.
package salesforce

import (
	"context"
	"encoding/json"

	"github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// maxBatchSize is the record limit per Salesforce Collections API request.
const maxBatchSize = 200

// Client defines the Salesforce API operations used by the CRM sync.
type Client interface {
	Query(ctx context.Context, soql string, out any) error
	InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error)
	UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error
	UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error)
	DescribeSObject(ctx context.Context, name string) (*SObjectDescription, error)
}

// CollectionRecord is one record in a collection update. ID is the
// Salesforce record ID; Fields holds the values to write.
type CollectionRecord struct {
	ID     string         `json:"Id"`
	Fields map[string]any `json:"fields"`
}

// CollectionResult is the per-record outcome of a collection operation.
type CollectionResult struct {
	ID      string   `json:"id"`
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

// SObjectField describes one field on a Salesforce object.
type SObjectField struct {
	Name       string `json:"name"`
	Label      string `json:"label"`
	Type       string `json:"type"`
	Length     int    `json:"length"`
	Updateable bool   `json:"updateable"`
}

// SObjectDescription holds the describe metadata for a Salesforce object.
type SObjectDescription struct {
	Name   string         `json:"name"`
	Label  string         `json:"label"`
	Fields []SObjectField `json:"fields"`
}

// HasField reports whether the object carries a field with the given API name.
func (d *SObjectDescription) HasField(name string) bool {
	for _, f := range d.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ClientOption configures the Salesforce client.
type ClientOption func(*sfClient)

// WithRateLimit caps outgoing API calls at rps per second, with a burst of
// the integer part of rps (at least one).
func WithRateLimit(rps float64) ClientOption {
	return func(c *sfClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// sfClient adapts a go-salesforce/v3 session to the Client interface.
//
// go-salesforce does not take a context.Context, so the ctx parameter only
// governs the rate-limiter wait; the API call itself cannot be cancelled.
type sfClient struct {
	sf      *salesforce.Salesforce
	limiter *rate.Limiter
}

// NewClient wraps an authenticated go-salesforce session.
func NewClient(sf *salesforce.Salesforce, opts ...ClientOption) Client {
	c := &sfClient{sf: sf}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// wait blocks until the rate limiter admits one call, or ctx is cancelled.
func (c *sfClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *sfClient) Query(ctx context.Context, soql string, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	if err := c.sf.Query(soql, out); err != nil {
		return eris.Wrap(err, "sf: query")
	}
	return nil
}

func (c *sfClient) InsertOne(ctx context.Context, sObjectName string, record map[string]any) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", eris.Wrap(err, "sf: rate limit")
	}
	result, err := c.sf.InsertOne(sObjectName, record)
	if err != nil {
		return "", eris.Wrapf(err, "sf: insert %s", sObjectName)
	}
	if !result.Success {
		return "", eris.Errorf("sf: insert %s failed: %v", sObjectName, result.Errors)
	}
	return result.Id, nil
}

func (c *sfClient) UpdateOne(ctx context.Context, sObjectName string, id string, fields map[string]any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "sf: rate limit")
	}
	fields["Id"] = id
	if err := c.sf.UpdateOne(sObjectName, fields); err != nil {
		return eris.Wrapf(err, "sf: update %s %s", sObjectName, id)
	}
	return nil
}

func (c *sfClient) UpdateCollection(ctx context.Context, sObjectName string, records []CollectionRecord) ([]CollectionResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	// go-salesforce takes flat maps with the ID inlined.
	maps := make([]map[string]any, len(records))
	for i, rec := range records {
		m := make(map[string]any, len(rec.Fields)+1)
		for k, v := range rec.Fields {
			m[k] = v
		}
		m["Id"] = rec.ID
		maps[i] = m
	}

	sfResults, err := c.sf.UpdateCollection(sObjectName, maps, maxBatchSize)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: update collection %s", sObjectName)
	}

	results := make([]CollectionResult, len(sfResults.Results))
	for i, r := range sfResults.Results {
		var errs []string
		for _, e := range r.Errors {
			errs = append(errs, e.Message)
		}
		results[i] = CollectionResult{
			ID:      r.Id,
			Success: r.Success,
			Errors:  errs,
		}
	}
	return results, nil
}

func (c *sfClient) DescribeSObject(ctx context.Context, name string) (*SObjectDescription, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sf: rate limit")
	}
	resp, err := c.sf.DoRequest("GET", "/sobjects/"+name+"/describe", nil)
	if err != nil {
		return nil, eris.Wrapf(err, "sf: describe %s", name)
	}
	defer resp.Body.Close() //nolint:errcheck

	var desc SObjectDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return nil, eris.Wrapf(err, "sf: decode describe %s", name)
	}
	return &desc, nil
}
