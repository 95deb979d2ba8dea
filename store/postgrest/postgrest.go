/*
Package postgrest implements table.Store against a PostgREST endpoint (Supabase).

PURPOSE:
  Hosted deployments keep both tables in a Supabase project and reach them over its REST
  interface. Each table.Store operation is one HTTP request:

    Select  GET    /rest/v1/{table}?select=*&order=id.asc&offset=..&limit=..
    Insert  POST   /rest/v1/{table}                 body: JSON array
    Update  PATCH  /rest/v1/{table}?col=eq.value     body: JSON object
    Delete  DELETE /rest/v1/{table}?col=eq.value

  Writes send "Prefer: return=representation" so the response carries the touched rows.

NO TRANSACTIONS:
  PostgREST has no cross-request transactions, so Store is a plain table.Store and the
  engine falls back to compensation (table.Atomically) for multi-step writes.

FILTERS:
  A nil filter value renders as "col=is.null". An empty filter on Update/Delete renders
  "id=not.is.null", since Supabase rejects unfiltered writes.

SEE ALSO:
  - table/saga.go: compensation used for this backend
*/
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/warp/parcelas/table"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

// Store is a table.Store speaking PostgREST.
type Store struct {
	client *resty.Client
}

// New builds a client for the project at baseURL (e.g. https://xyz.supabase.co)
// authenticated with key.
func New(baseURL, key string, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")+"/rest/v1").
		SetTimeout(timeout).
		SetHeader("apikey", key).
		SetHeader("Accept", "application/json")
	if key != "" {
		client.SetAuthToken(key)
	}
	return &Store{client: client}
}

func (s *Store) Select(ctx context.Context, t table.Name, offset, limit int) ([]table.Row, error) {
	if err := table.ValidateColumns(t, nil); err != nil {
		return nil, err
	}
	req := s.client.R().
		SetContext(ctx).
		SetQueryParam("select", "*").
		SetQueryParam("order", "id.asc").
		SetQueryParam("offset", strconv.Itoa(offset)).
		SetQueryParam("limit", strconv.Itoa(limit))
	return s.do(req, "select", t, resty.MethodGet)
}

func (s *Store) Insert(ctx context.Context, t table.Name, rows []table.Row) ([]table.Row, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	body := make([]table.Row, len(rows))
	keys := map[string]bool{}
	for i, r := range rows {
		if err := table.ValidateColumns(t, r); err != nil {
			return nil, err
		}
		body[i] = table.NormalizeRow(r)
		for k := range r {
			keys[k] = true
		}
	}
	// Bulk inserts require every object to carry the same keys.
	for _, r := range body {
		for k := range keys {
			if _, ok := r[k]; !ok {
				r[k] = nil
			}
		}
	}
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetBody(body)
	return s.do(req, "insert", t, resty.MethodPost)
}

func (s *Store) Update(ctx context.Context, t table.Name, patch table.Row, filter table.Filter) ([]table.Row, error) {
	if err := table.ValidateColumns(t, patch); err != nil {
		return nil, err
	}
	if err := table.ValidateColumns(t, filter); err != nil {
		return nil, err
	}
	body := table.NormalizeRow(patch)
	delete(body, "id")
	if len(body) == 0 {
		return nil, fmt.Errorf("update %s: empty patch", t)
	}
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(filterParams(filter)).
		SetBody(body)
	return s.do(req, "update", t, resty.MethodPatch)
}

func (s *Store) Delete(ctx context.Context, t table.Name, filter table.Filter) ([]table.Row, error) {
	if err := table.ValidateColumns(t, filter); err != nil {
		return nil, err
	}
	req := s.client.R().
		SetContext(ctx).
		SetHeader("Prefer", "return=representation").
		SetQueryParamsFromValues(filterParams(filter))
	return s.do(req, "delete", t, resty.MethodDelete)
}

func (s *Store) do(req *resty.Request, op string, t table.Name, method string) ([]table.Row, error) {
	resp, err := req.Execute(method, "/"+string(t))
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: fmt.Errorf("%w: %v", table.ErrUnavailable, err)}
	}
	if resp.IsError() {
		return nil, &table.StoreError{Op: op, Table: t, Err: fmt.Errorf("%s: %s", resp.Status(), strings.TrimSpace(resp.String()))}
	}
	rows, err := decodeRows(resp.Body())
	if err != nil {
		return nil, &table.StoreError{Op: op, Table: t, Err: err}
	}
	return rows, nil
}

// filterParams renders a Filter as PostgREST operators.
func filterParams(filter table.Filter) url.Values {
	params := url.Values{}
	for col, v := range filter {
		v = table.Normalize(v)
		if v == nil {
			params.Set(col, "is.null")
			continue
		}
		params.Set(col, "eq."+formatValue(v))
	}
	if len(params) == 0 {
		params.Set("id", "not.is.null")
	}
	return params
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// decodeRows parses a JSON array of objects. Whole numbers become int64, others float64.
func decodeRows(body []byte) ([]table.Row, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []table.Row{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw []map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out := make([]table.Row, len(raw))
	for i, obj := range raw {
		r := make(table.Row, len(obj))
		for k, v := range obj {
			if n, ok := v.(json.Number); ok {
				if iv, err := n.Int64(); err == nil {
					r[k] = iv
				} else if fv, err := n.Float64(); err == nil {
					r[k] = fv
				} else {
					r[k] = n.String()
				}
				continue
			}
			r[k] = table.Normalize(v)
		}
		out[i] = r
	}
	return out, nil
}
