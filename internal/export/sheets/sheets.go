// Package sheets writes a transaction view to a Google Sheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

const timeLayout = "2006-01-02 15:04"

var header = []any{"Date", "Description", "Type", "Amount"}

// Credentials select the service account used for the export. JSON wins
// over File when both are set.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

type Exporter struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
	logger        *log.Logger
}

// New builds an Exporter authenticated with a service account.
func New(ctx context.Context, spreadsheetID, sheetName string, creds Credentials, logger *log.Logger) (*Exporter, error) {
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	raw, err := creds.load()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewWithService(svc, spreadsheetID, sheetName, logger), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string, logger *log.Logger) *Exporter {
	if sheetName == "" {
		sheetName = "Transactions"
	}
	return &Exporter{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.WithComponent(log.ComponentExport),
	}
}

// Export replaces the sheet contents with txs in the order given and
// returns the range that was written.
func (e *Exporter) Export(ctx context.Context, txs []core.Transaction) (string, error) {
	if e.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	clearRange := fmt.Sprintf("%s!A:D", e.sheetName)
	_, err := e.svc.Spreadsheets.Values.Clear(e.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear %s: %w", clearRange, err)
	}

	writeRange := fmt.Sprintf("%s!A1:D%d", e.sheetName, len(txs)+1)
	vr := &gsheet.ValueRange{Values: Rows(txs)}
	resp, err := e.svc.Spreadsheets.Values.Update(e.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("write %s: %w", writeRange, err)
	}

	e.logger.InfoContext(ctx, "Exported transactions",
		log.FieldSpreadsheet, e.spreadsheetID,
		log.FieldCount, len(txs),
		"range", resp.UpdatedRange)
	return resp.UpdatedRange, nil
}

// Rows renders the header plus one row per transaction.
func Rows(txs []core.Transaction) [][]any {
	out := make([][]any, 0, len(txs)+1)
	out = append(out, header)
	for _, t := range txs {
		date := ""
		if !t.CreatedAt.IsZero() {
			date = t.CreatedAt.UTC().Format(timeLayout)
		}
		out = append(out, []any{date, t.Text, string(t.Kind()), t.Amount.StringFixed(2)})
	}
	return out
}
