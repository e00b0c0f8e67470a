// Package google mirrors meal records to a Google Sheets spreadsheet.
// Column layout of the backup sheet: A id, B date, C meal, D food,
// E quantity, F unit, G calories. The id column is what lets update and
// delete find their row again.
package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"caltrack/internal/cache"
	"caltrack/internal/config"
	"caltrack/internal/core"
	ports "caltrack/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	// Tab ids are stable unless someone renames or recreates the sheet,
	// so the metadata lookup is cached with a TTL.
	sheetIDs *cache.LRU[int64]
}

var (
	_ ports.MealWriter  = (*Client)(nil)
	_ ports.MealDeleter = (*Client)(nil)
)

// New creates a Sheets client for the configured backup spreadsheet.
// Credentials resolve in two steps: a service account when one is
// configured, else the OAuth client paired with the token saved by
// cmd/oauth-init.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.GoogleSpreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id (set GOOGLE_SPREADSHEET_ID)")
	}

	sheetName := strings.TrimSpace(cfg.GoogleSheetName)
	if sheetName == "" {
		sheetName = "Meals"
	}

	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		sheetIDs:      cache.NewLRU[int64](4, 10*time.Minute),
	}, nil
}

func newSheetsService(ctx context.Context, cfg *config.Config) (*gsheet.Service, error) {
	if credentialsJSON, err := readCredential(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile); err != nil {
		return nil, fmt.Errorf("service account credentials: %w", err)
	} else if credentialsJSON != nil {
		service, err := gsheet.NewService(ctx,
			goption.WithCredentialsJSON(credentialsJSON),
			goption.WithScopes(gsheet.SpreadsheetsScope))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return service, nil
	}

	ts, err := storedTokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	service, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// storedTokenSource builds a token source from the OAuth client config and
// the refresh token cmd/oauth-init saved.
func storedTokenSource(ctx context.Context, cfg *config.Config) (oauth2.TokenSource, error) {
	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("oauth client credentials: %w", err)
	}
	if clientJSON == nil {
		return nil, errors.New("no credentials configured (set a service account or an OAuth client)")
	}

	oauthCfg, err := oauthgoogle.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client config: %w", err)
	}

	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if errors.Is(err, os.ErrNotExist) || (err == nil && tokenJSON == nil) {
		return nil, errors.New("no saved oauth token; run oauth-init first")
	}
	if err != nil {
		return nil, fmt.Errorf("oauth token: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(tokenJSON, &tok); err != nil {
		return nil, fmt.Errorf("parse oauth token: %w", err)
	}

	return oauthCfg.TokenSource(ctx, &tok), nil
}

// readCredential resolves an inline-JSON-or-file credential pair. Both
// empty yields nil with no error so callers can fall through.
func readCredential(inline, file string) ([]byte, error) {
	if inline = strings.TrimSpace(inline); inline != "" {
		return []byte(inline), nil
	}
	if file = strings.TrimSpace(file); file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		return b, nil
	}
	return nil, nil
}

// Append writes the record as a new row after the current last one and
// returns its A1 reference.
func (c *Client) Append(ctx context.Context, m core.MealRecord) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	if m.ID == 0 {
		return "", errors.New("meal has no id")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("get sheet dimensions for %s: %w", c.sheetName, err)
	}
	nextRow := len(resp.Values) + 1

	dataRange := fmt.Sprintf("%s!A%d:G%d", c.sheetName, nextRow, nextRow)
	vr := &gsheet.ValueRange{Values: [][]any{{
		m.ID.String(), m.Date, m.Slot, m.FoodName, m.Quantity, m.Unit, int64(m.Calories),
	}}}

	_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, dataRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update %s: %w", dataRange, err)
	}

	return dataRange, nil
}

// DeleteByID scans the id column and removes the first matching row. No
// matching row means the record was never mirrored; nothing to do.
func (c *Client) DeleteByID(ctx context.Context, id core.RecordID) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	rng := fmt.Sprintf("%s!A:A", c.sheetName)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read id column: %w", err)
	}

	rowIndex := -1
	want := id.String()
	for i, row := range resp.Values {
		if len(row) > 0 && strings.TrimSpace(fmt.Sprint(row[0])) == want {
			rowIndex = i
			break
		}
	}
	if rowIndex < 0 {
		return nil
	}

	sheetID, err := c.numericSheetID(ctx)
	if err != nil {
		return err
	}

	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			DeleteDimension: &gsheet.DeleteDimensionRequest{
				Range: &gsheet.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(rowIndex),
					EndIndex:   int64(rowIndex + 1),
				},
			},
		}},
	}
	if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete row %d: %w", rowIndex+1, err)
	}
	return nil
}

// numericSheetID resolves the tab's numeric id from its title.
func (c *Client) numericSheetID(ctx context.Context) (int64, error) {
	if id, ok := c.sheetIDs.Get(c.sheetName); ok {
		return id, nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).
		Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("get spreadsheet metadata: %w", err)
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil && sh.Properties.Title == c.sheetName {
			c.sheetIDs.Set(c.sheetName, sh.Properties.SheetId)
			return sh.Properties.SheetId, nil
		}
	}
	return 0, fmt.Errorf("sheet %q not found in spreadsheet", c.sheetName)
}
