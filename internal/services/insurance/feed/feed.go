// Package feed fetches and normalizes third-party activity evidence.
//
// The upstream feed is unreliable: it answers with either a keyed mapping or
// a list of records, and reports its own failures inside a 200 response.
// Absence of evidence is a transient, retryable condition, so transport and
// upstream errors degrade to an empty sequence instead of failing the caller.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/danieltrsl/odcover/internal/platform/timeouts"
)

// Record is one normalized evidence record in feed order.
type Record struct {
	Text      string
	Timestamp time.Time
}

// ErrInvalidCredential indicates a caller-supplied credential that fails
// input validation. This is caller misuse, not feed unavailability.
var ErrInvalidCredential = errors.New("invalid operator credential")

var credentialPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// ValidateCredential checks the operator credential shape before any
// network call. Credentials are hex-like upstream keys; block only
// obviously invalid input.
func ValidateCredential(credential string) error {
	if len(credential) < 8 || len(credential) > 128 {
		return fmt.Errorf("%w: length out of range", ErrInvalidCredential)
	}
	if !credentialPattern.MatchString(credential) {
		return fmt.Errorf("%w: not alphanumeric", ErrInvalidCredential)
	}
	return nil
}

// Client queries the evidence feed for one operator credential.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a feed client. A nil http client gets a default with
// the shared feed request timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeouts.FeedRequest}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Events returns the evidence records within the lookback window, in feed
// order. A lookback of zero keeps every record. The only error is an
// invalid credential; everything upstream degrades to an empty sequence.
// The credential is never logged.
func (c *Client) Events(ctx context.Context, credential string, lookback time.Duration) ([]Record, error) {
	if err := ValidateCredential(credential); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("selections", "events")
	query.Set("key", credential)
	requestURL := c.baseURL + "/user/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		log.Printf("feed: build request: %v", err)
		return nil, nil
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("feed: request failed: %v", urlErrorSansCredential(err))
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("feed: upstream returned %s", resp.Status)
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		log.Printf("feed: read response: %v", err)
		return nil, nil
	}

	var envelope struct {
		Events json.RawMessage `json:"events"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"error"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		log.Printf("feed: decode response: %v", err)
		return nil, nil
	}
	if envelope.Error != nil {
		log.Printf("feed: upstream error %d: %s", envelope.Error.Code, envelope.Error.Message)
		return nil, nil
	}

	entries := parseEntries(envelope.Events)

	var cutoff time.Time
	if lookback > 0 {
		cutoff = time.Now().UTC().Add(-lookback)
	}

	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		text := entry.Log
		if text == "" {
			text = entry.Event
		}
		if text == "" || entry.Timestamp == 0 {
			continue
		}
		when := time.Unix(entry.Timestamp, 0).UTC()
		if !cutoff.IsZero() && when.Before(cutoff) {
			continue
		}
		records = append(records, Record{Text: text, Timestamp: when})
	}
	return records, nil
}

type feedEntry struct {
	Event     string `json:"event"`
	Log       string `json:"log"`
	Timestamp int64  `json:"timestamp"`
}

// parseEntries accepts both upstream payload shapes: a list of records, or
// a mapping keyed by log id. For the mapping shape, document order is
// preserved by walking decoder tokens instead of unmarshaling into a map.
func parseEntries(raw json.RawMessage) []feedEntry {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	switch trimmed[0] {
	case '[':
		var entries []feedEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil
		}
		return entries
	case '{':
		decoder := json.NewDecoder(bytes.NewReader(trimmed))
		if _, err := decoder.Token(); err != nil {
			return nil
		}
		var entries []feedEntry
		for decoder.More() {
			if _, err := decoder.Token(); err != nil {
				return entries
			}
			var entry feedEntry
			if err := decoder.Decode(&entry); err != nil {
				return entries
			}
			entries = append(entries, entry)
		}
		return entries
	default:
		return nil
	}
}

// urlErrorSansCredential strips the request URL, which embeds the
// credential, from transport errors before they reach the log.
func urlErrorSansCredential(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return fmt.Errorf("%s request: %w", urlErr.Op, urlErr.Err)
	}
	return err
}
