package sheet

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"jobalertbot/internal/jobs"
)

// Config locates the spreadsheet and its credentials. Exactly one of
// CredentialsJSON (inline service-account key, e.g. from an env var) or
// CredentialsFile must be usable; failing to build the client is fatal at
// startup by design.
type Config struct {
	SpreadsheetID   string `json:"spreadsheet_id"`
	SheetName       string `json:"sheet_name"`
	CredentialsFile string `json:"credentials_file,omitempty"`
	CredentialsJSON string `json:"-"`

	// DateFormats are the accepted last-date layouts (Go time layouts).
	DateFormats []string `json:"date_formats,omitempty"`
}

// Client talks to a Google Sheet through the Sheets v4 API.
type Client struct {
	svc   *sheets.Service
	log   zerolog.Logger
	id    string
	tab   string
	forms []string

	gridID   int64
	gridOnce bool
}

func New(ctx context.Context, cfg Config, log zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("sheet: spreadsheet_id is required")
	}
	tab := strings.TrimSpace(cfg.SheetName)
	if tab == "" {
		tab = "Sheet1"
	}

	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	default:
		return nil, errors.New("sheet: no credentials configured")
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheet: build service: %w", err)
	}
	return &Client{
		svc:   svc,
		log:   log.With().Str("component", "sheet").Logger(),
		id:    cfg.SpreadsheetID,
		tab:   tab,
		forms: cfg.DateFormats,
	}, nil
}

func (c *Client) ReadRows(ctx context.Context) ([]jobs.Row, error) {
	values, err := c.readValues(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.ensureHeaders(ctx, values); err != nil {
		return nil, err
	}
	return rowsFromValues(values), nil
}

func (c *Client) RemoveExpired(ctx context.Context, rows []jobs.Row, today time.Time) ([]jobs.Row, error) {
	expired := jobs.ExpiredIndices(rows, c.forms, today)
	for _, idx := range expired {
		if err := c.deleteRow(ctx, idx); err != nil {
			c.log.Warn().Err(err).Int("row", idx).Msg("failed to delete expired row")
		}
	}
	if len(expired) > 0 {
		c.log.Info().Int("deleted", len(expired)).Msg("removed expired rows from sheet")
	}
	return c.ReadRows(ctx)
}

func (c *Client) AppendJobs(ctx context.Context, recs []jobs.Record) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}
	existing, err := c.ReadRows(ctx)
	if err != nil {
		return 0, err
	}
	seen := map[string]bool{}
	for _, r := range existing {
		seen[r.Record.ID()] = true
	}

	var values [][]any
	for _, r := range recs {
		if strings.TrimSpace(r.Title) == "" || seen[r.ID()] {
			continue
		}
		seen[r.ID()] = true
		values = append(values, []any{
			strings.TrimSpace(r.Title),
			strings.TrimSpace(r.LastDate),
			strings.TrimSpace(r.AgeLimit),
			strings.TrimSpace(r.Qualification),
			strings.TrimSpace(r.Experience),
			strings.TrimSpace(r.ApplyLink),
			strings.TrimSpace(r.Source),
		})
	}
	if len(values) == 0 {
		c.log.Debug().Msg("no new rows to append after dedupe")
		return 0, nil
	}

	_, err = c.svc.Spreadsheets.Values.
		Append(c.id, c.tab, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheet: append rows: %w", err)
	}
	c.log.Info().Int("appended", len(values)).Msg("appended new job rows")
	return len(values), nil
}

func (c *Client) readValues(ctx context.Context) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.id, c.tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheet: read values: %w", err)
	}
	return resp.Values, nil
}

// ensureHeaders rewrites row 1 when it does not match the schema exactly.
func (c *Client) ensureHeaders(ctx context.Context, values [][]any) error {
	if headerRowMatches(values) {
		return nil
	}
	row := make([]any, len(jobs.Headers))
	for i, h := range jobs.Headers {
		row[i] = h
	}
	_, err := c.svc.Spreadsheets.Values.
		Update(c.id, c.tab+"!A1", &sheets.ValueRange{Values: [][]any{row}}).
		ValueInputOption("RAW").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheet: write header row: %w", err)
	}
	return nil
}

func headerRowMatches(values [][]any) bool {
	if len(values) == 0 || len(values[0]) < len(jobs.Headers) {
		return false
	}
	for i, h := range jobs.Headers {
		got, _ := values[0][i].(string)
		if strings.TrimSpace(got) != h {
			return false
		}
	}
	return true
}

// deleteRow removes a single 1-indexed sheet row. The Sheets API addresses
// dimension ranges with 0-based half-open indices.
func (c *Client) deleteRow(ctx context.Context, rowIndex int) error {
	gid, err := c.gridIDFor(ctx)
	if err != nil {
		return err
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    gid,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex - 1),
					EndIndex:   int64(rowIndex),
				},
			},
		}},
	}
	_, err = c.svc.Spreadsheets.BatchUpdate(c.id, req).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("sheet: delete row %d: %w", rowIndex, err)
	}
	return nil
}

func (c *Client) gridIDFor(ctx context.Context) (int64, error) {
	if c.gridOnce {
		return c.gridID, nil
	}
	meta, err := c.svc.Spreadsheets.Get(c.id).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("sheet: read metadata: %w", err)
	}
	for _, s := range meta.Sheets {
		if s.Properties != nil && s.Properties.Title == c.tab {
			c.gridID = s.Properties.SheetId
			c.gridOnce = true
			return c.gridID, nil
		}
	}
	return 0, fmt.Errorf("sheet: tab %q not found", c.tab)
}

// rowsFromValues converts the raw value grid (header row first) into
// normalized rows with their 1-indexed sheet positions.
func rowsFromValues(values [][]any) []jobs.Row {
	if len(values) < 2 {
		return nil
	}
	headers := make([]string, 0, len(values[0]))
	for _, v := range values[0] {
		s, _ := v.(string)
		headers = append(headers, s)
	}

	rows := make([]jobs.Row, 0, len(values)-1)
	for i, rv := range values[1:] {
		raw := map[string]string{}
		for j, cell := range rv {
			if j >= len(headers) {
				break
			}
			s := fmt.Sprint(cell)
			raw[headers[j]] = s
		}
		rows = append(rows, jobs.Row{Index: i + 2, Record: jobs.Normalize(raw)})
	}
	return rows
}
