package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cleared-dev/banksync/internal/model"
)

// LogExchange appends one API round trip to the api_log table. Headers must
// already be masked.
func (s *Store) LogExchange(ctx context.Context, e model.APIExchange) error {
	headers, err := json.Marshal(e.RequestHeaders)
	if err != nil {
		return fmt.Errorf("encoding request headers: %w", err)
	}
	at := e.At
	if at.IsZero() {
		at = s.now()
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO api_log(logged_at, account_id, method, url, status_code, request_headers,
	 request_body, response_body, error)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(at), e.AccountID, e.Method, e.URL, e.StatusCode, string(headers),
		e.RequestBody, e.ResponseBody, e.Err)
	if err != nil {
		return fmt.Errorf("writing api log: %w", err)
	}
	return nil
}

// RecentExchanges returns up to limit API log rows, newest first.
func (s *Store) RecentExchanges(ctx context.Context, limit int) ([]model.APIExchange, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT logged_at, account_id, method, url, status_code, request_headers, request_body,
	 response_body, error
	FROM api_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading api log: %w", err)
	}
	defer rows.Close()

	var out []model.APIExchange
	for rows.Next() {
		var (
			e        model.APIExchange
			loggedAt string
			headers  string
		)
		if err := rows.Scan(&loggedAt, &e.AccountID, &e.Method, &e.URL, &e.StatusCode, &headers,
			&e.RequestBody, &e.ResponseBody, &e.Err); err != nil {
			return nil, fmt.Errorf("scanning api log: %w", err)
		}
		at, err := parseNullTime(nullString(loggedAt))
		if err != nil {
			return nil, err
		}
		if at != nil {
			e.At = *at
		}
		if headers != "" && headers != "null" {
			if err := json.Unmarshal([]byte(headers), &e.RequestHeaders); err != nil {
				return nil, fmt.Errorf("decoding request headers: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
