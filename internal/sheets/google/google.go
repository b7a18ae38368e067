// Package google writes balance snapshots to a Google spreadsheet.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"labfunds/internal/funds"
	ports "labfunds/internal/sheets"
)

// Config selects the spreadsheet and the service account used to reach it.
type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
}

// values is the slice of the Sheets values API the client uses.
type values interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]any, error)
	Update(ctx context.Context, spreadsheetID, rng string, rows [][]any) error
	Clear(ctx context.Context, spreadsheetID, rng string) error
}

type Client struct {
	values        values
	spreadsheetID string
	sheet         string
	now           func() time.Time
}

var _ ports.BalanceExporter = (*Client)(nil)

// New creates a client authenticated with a service account.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return newClient(serviceValues{svc: svc}, cfg), nil
}

func newClient(v values, cfg Config) *Client {
	sheet := strings.TrimSpace(cfg.SheetName)
	if sheet == "" {
		sheet = "Balances"
	}
	return &Client{values: v, spreadsheetID: cfg.SpreadsheetID, sheet: sheet, now: time.Now}
}

func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	credentialsFile := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && credentialsFile == "" {
		credentialsFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case cfg.CredentialsJSON != "":
		credentialsJSON = []byte(cfg.CredentialsJSON)
	case credentialsFile != "":
		b, err := os.ReadFile(credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// ExportProject rewrites the rows of b in place and appends rows for heads
// the sheet does not have yet.
func (c *Client) ExportProject(ctx context.Context, b funds.ProjectBalance) error {
	existing, err := c.values.Get(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:C", c.sheet))
	if err != nil {
		return fmt.Errorf("read %s: %w", c.sheet, err)
	}
	rowOf := make(map[ports.Key]int, len(existing))
	for i, row := range existing {
		if k, ok := ports.RowKey(toStrings(row)); ok && i > 0 {
			rowOf[k] = i + 1
		}
	}
	next := len(existing) + 1
	if next == 1 {
		if err := c.values.Update(ctx, c.spreadsheetID, c.rowRange(1), [][]any{ports.Header}); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		next = 2
	}

	for _, row := range ports.Rows(b, c.now()) {
		k, _ := ports.RowKey(row)
		n, ok := rowOf[k]
		if !ok {
			n = next
			next++
		}
		if err := c.values.Update(ctx, c.spreadsheetID, c.rowRange(n), [][]any{row}); err != nil {
			return fmt.Errorf("update row %d in sheet %s: %w", n, c.sheet, err)
		}
	}
	slog.InfoContext(ctx, "Exported project balance",
		"project_id", b.ProjectID,
		"heads", len(b.Heads),
		"sheet", c.sheet)
	return nil
}

// ExportAll clears the sheet and writes the header plus every row.
func (c *Client) ExportAll(ctx context.Context, all []funds.ProjectBalance) error {
	if err := c.values.Clear(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:I", c.sheet)); err != nil {
		return fmt.Errorf("clear %s: %w", c.sheet, err)
	}
	now := c.now()
	rows := [][]any{ports.Header}
	for _, b := range all {
		rows = append(rows, ports.Rows(b, now)...)
	}
	rng := fmt.Sprintf("%s!A1:I%d", c.sheet, len(rows))
	if err := c.values.Update(ctx, c.spreadsheetID, rng, rows); err != nil {
		return fmt.Errorf("write %s: %w", rng, err)
	}
	slog.InfoContext(ctx, "Exported balance snapshot", "projects", len(all), "rows", len(rows)-1)
	return nil
}

func (c *Client) rowRange(n int) string {
	return fmt.Sprintf("%s!A%d:I%d", c.sheet, n, n)
}

func toStrings(in []any) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

type serviceValues struct {
	svc *gsheet.Service
}

func (s serviceValues) Get(ctx context.Context, id, rng string) ([][]any, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (s serviceValues) Update(ctx context.Context, id, rng string, rows [][]any) error {
	_, err := s.svc.Spreadsheets.Values.Update(id, rng, &gsheet.ValueRange{Values: rows}).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	return err
}

func (s serviceValues) Clear(ctx context.Context, id, rng string) error {
	_, err := s.svc.Spreadsheets.Values.Clear(id, rng, &gsheet.ClearValuesRequest{}).Context(ctx).Do()
	return err
}
