// Package sheets предоставляет клиент для удалённого табличного хранилища
// с API значений в стиле Google Sheets.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// ErrUnavailable возвращается при сетевой ошибке или ошибочном статусе
// удалённого хранилища.
var ErrUnavailable = errors.New("remote store unavailable")

// Client инкапсулирует HTTP-взаимодействие с API значений таблицы.
// Диапазоны задаются в нотации A1 с именем вкладки: "OPs!A2:R1000".
type Client struct {
	baseURL       string
	spreadsheetID string
	token         string
	httpClient    *retryablehttp.Client
}

// ValueRange описывает прямоугольный блок значений таблицы.
type ValueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

// NewClient создаёт клиент API значений для указанной таблицы.
// Токен передаётся в заголовке Authorization как bearer.
func NewClient(baseURL, spreadsheetID, token string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 200 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.HTTPClient.Timeout = 10 * time.Second
	rc.Logger = nil

	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		spreadsheetID: spreadsheetID,
		token:         token,
		httpClient:    rc,
	}
}

// GetValues читает блок значений по диапазону.
func (c *Client) GetValues(ctx context.Context, rng string) ([][]string, error) {
	var res ValueRange
	if err := c.do(ctx, http.MethodGet, c.valuesURL(rng, "", nil), nil, &res); err != nil {
		return nil, err
	}
	return res.Values, nil
}

// UpdateValues записывает блок значений ровно в указанный диапазон.
func (c *Client) UpdateValues(ctx context.Context, rng string, values [][]string) error {
	q := url.Values{"valueInputOption": {"USER_ENTERED"}}
	return c.do(ctx, http.MethodPut, c.valuesURL(rng, "", q), &ValueRange{Values: values}, nil)
}

// AppendValues добавляет строки в конец вкладки.
func (c *Client) AppendValues(ctx context.Context, sheet string, values [][]string) error {
	q := url.Values{
		"valueInputOption": {"USER_ENTERED"},
		"insertDataOption": {"INSERT_ROWS"},
	}
	u := c.valuesURL(sheet+"!A:Z", ":append", q)
	return c.do(ctx, http.MethodPost, u, &ValueRange{Values: values}, nil)
}

func (c *Client) valuesURL(rng, suffix string, q url.Values) string {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s%s",
		c.baseURL, c.spreadsheetID, url.PathEscape(rng), suffix)
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var buf *bytes.Buffer
	if body != nil {
		buf = &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
	}

	var req *retryablehttp.Request
	var err error
	if buf != nil {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, u, buf)
	} else {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	if buf != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
