// Package kobo is a thin client for a KoBoToolbox-style survey-collection
// API. It pulls form submissions and flattens them into intake rows.
package kobo

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/datacarwash/datacarwash/internal/domain/intake"
)

// Client talks to one survey-platform instance using static token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type submissionsResponse struct {
	Count   int                          `json:"count"`
	Results []map[string]json.RawMessage `json:"results"`
}

// FetchSubmissions pulls all submissions of a form. Scalar values are
// coerced to strings; nested structures and metadata are carried as their
// raw JSON encoding so nothing captured on the form is lost.
func (c *Client) FetchSubmissions(ctx context.Context, formID string) ([]intake.Row, error) {
	url := fmt.Sprintf("%s/api/v2/assets/%s/data/?format=json", c.baseURL, formID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch submissions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("fetch submissions: %s: %s", resp.Status, body)
	}

	var payload submissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode submissions: %w", err)
	}

	rows := make([]intake.Row, 0, len(payload.Results))
	for _, result := range payload.Results {
		row := make(intake.Row, len(result))
		for k, raw := range result {
			row[k] = coerceValue(raw)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteCSV writes fetched rows to a CSV file the wash command can ingest.
// Columns are the sorted union of all row keys.
func WriteCSV(rows []intake.Row, path string) error {
	colSet := make(map[string]struct{})
	for _, row := range rows {
		for k := range row {
			colSet[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(colSet))
	for k := range colSet {
		header = append(header, k)
	}
	sort.Strings(header)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	cells := make([]string, len(header))
	for _, row := range rows {
		for i, col := range header {
			cells[i] = row[col]
		}
		if err := w.Write(cells); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return nil
}

func coerceValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return string(raw)
}
