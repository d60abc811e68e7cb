package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
)

func TestExtractMarker(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantMarker string
		wantBody   string
		wantErr    bool
	}{
		{
			name:       "valid marker",
			query:      "--sql 0a378684-50a9-4463-9fd6-aa3981376a99\nselect 1;",
			wantMarker: "0a378684-50a9-4463-9fd6-aa3981376a99",
			wantBody:   "select 1;",
		},
		{
			name:       "leading whitespace",
			query:      "\n  --sql 0a378684-50a9-4463-9fd6-aa3981376a99\nselect 1;\n",
			wantMarker: "0a378684-50a9-4463-9fd6-aa3981376a99",
			wantBody:   "select 1;",
		},
		{name: "missing marker", query: "select 1;", wantErr: true},
		{name: "uppercase uuid rejected", query: "--sql 0A378684-50A9-4463-9FD6-AA3981376A99\nselect 1;", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			marker, body, err := extractMarker(tt.query)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("extractMarker error: %v", err)
			}
			if marker != tt.wantMarker {
				t.Fatalf("marker = %q, want %q", marker, tt.wantMarker)
			}
			if body != tt.wantBody {
				t.Fatalf("body = %q, want %q", body, tt.wantBody)
			}
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	if !IsNoRows(fmt.Errorf("wrapped: %w", pgx.ErrNoRows)) {
		t.Fatalf("expected wrapped ErrNoRows to match")
	}
	if IsNoRows(errors.New("other")) {
		t.Fatalf("unexpected match")
	}
	check := &pgconn.PgError{Code: "23514", ConstraintName: "users_video_credits_nonnegative"}
	if !IsCheckViolation(check, "users_video_credits_nonnegative") {
		t.Fatalf("expected check violation match")
	}
	if !IsCheckViolation(fmt.Errorf("exec: %w", check), "") {
		t.Fatalf("expected wrapped check violation to match any constraint")
	}
	if IsCheckViolation(&pgconn.PgError{Code: "23505"}, "") {
		t.Fatalf("unique violation must not match")
	}
}

type fakeRow struct{ err error }

func (r fakeRow) Scan(dest ...any) error { return r.err }

type fakePool struct {
	delay   time.Duration
	err     error
	queries []string
}

func (p *fakePool) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	p.queries = append(p.queries, query)
	time.Sleep(p.delay)
	return pgconn.NewCommandTag("UPDATE 1"), p.err
}

func (p *fakePool) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	p.queries = append(p.queries, query)
	return fakeRow{err: p.err}
}

func (p *fakePool) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	p.queries = append(p.queries, query)
	return nil, p.err
}

const markedQuery = "--sql 0a378684-50a9-4463-9fd6-aa3981376a99\nupdate t set x = 1"

func TestSQLRunnerLogging(t *testing.T) {
	tests := []struct {
		name      string
		pool      *fakePool
		slow      time.Duration
		wantLevel string
	}{
		{name: "fast statement", pool: &fakePool{}, slow: time.Hour, wantLevel: `"level":"debug"`},
		{name: "slow statement", pool: &fakePool{delay: 5 * time.Millisecond}, slow: time.Millisecond, wantLevel: `"level":"warn"`},
		{name: "failed statement", pool: &fakePool{err: errors.New("boom")}, slow: time.Hour, wantLevel: `"level":"error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			r := NewSQLRunner(tt.pool, zerolog.New(&buf).Level(zerolog.DebugLevel))
			r.SlowQuery = tt.slow
			_, _ = r.Exec(context.Background(), markedQuery)

			if len(tt.pool.queries) != 1 || tt.pool.queries[0] != "update t set x = 1" {
				t.Fatalf("marker not stripped: %q", tt.pool.queries)
			}
			out := buf.String()
			if !strings.Contains(out, tt.wantLevel) || !strings.Contains(out, `"sql_marker":"0a378684-50a9-4463-9fd6-aa3981376a99"`) {
				t.Fatalf("log = %s", out)
			}
		})
	}
}

func TestSQLRunnerRejectsUnmarked(t *testing.T) {
	pool := &fakePool{}
	r := NewSQLRunner(pool, zerolog.Nop())
	if _, err := r.Exec(context.Background(), "select 1"); err == nil {
		t.Fatalf("expected marker error from Exec")
	}
	if err := r.QueryRow(context.Background(), "select 1").Scan(); err == nil {
		t.Fatalf("expected marker error from QueryRow")
	}
	if len(pool.queries) != 0 {
		t.Fatalf("unmarked statement reached the pool: %q", pool.queries)
	}
}

func TestSQLRunnerNoRowsIsNotAnError(t *testing.T) {
	var buf bytes.Buffer
	r := NewSQLRunner(&fakePool{err: pgx.ErrNoRows}, zerolog.New(&buf))
	r.SlowQuery = time.Hour
	if err := r.QueryRow(context.Background(), markedQuery).Scan(); !IsNoRows(err) {
		t.Fatalf("err = %v", err)
	}
	if strings.Contains(buf.String(), `"level":"error"`) {
		t.Fatalf("no rows logged as error: %s", buf.String())
	}
}
