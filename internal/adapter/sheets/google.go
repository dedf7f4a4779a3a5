package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

const (
	spreadsheetMime = "application/vnd.google-apps.spreadsheet"
	readRange       = "A:Z"
)

type googleAPI struct {
	sheets *gsheets.Service
	drive  *drive.Service
}

func newGoogleAPI(ctx context.Context, credentialsFile string, extra ...option.ClientOption) (*googleAPI, error) {
	opts := []option.ClientOption{
		option.WithScopes(gsheets.SpreadsheetsScope, drive.DriveScope),
	}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, extra...)

	ss, err := gsheets.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create sheets client")
	}
	ds, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: create drive client")
	}
	return &googleAPI{sheets: ss, drive: ds}, nil
}

func (g *googleAPI) whoami(ctx context.Context) (string, error) {
	about, err := g.drive.About.Get().Fields("user(emailAddress)").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if about.User == nil {
		return "", nil
	}
	return about.User.EmailAddress, nil
}

func (g *googleAPI) find(ctx context.Context, title string) (string, bool, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(title), spreadsheetMime)
	list, err := g.drive.Files.List().Q(q).Fields("files(id, name)").PageSize(1).Context(ctx).Do()
	if err != nil {
		return "", false, err
	}
	if len(list.Files) == 0 {
		return "", false, nil
	}
	return list.Files[0].Id, true, nil
}

func (g *googleAPI) create(ctx context.Context, title string) (string, error) {
	ss, err := g.sheets.Spreadsheets.Create(&gsheets.Spreadsheet{
		Properties: &gsheets.SpreadsheetProperties{Title: title},
	}).Fields("spreadsheetId").Context(ctx).Do()
	if err != nil {
		return "", err
	}
	return ss.SpreadsheetId, nil
}

func (g *googleAPI) share(ctx context.Context, id, email string) error {
	_, err := g.drive.Permissions.Create(id, &drive.Permission{
		Type:         "user",
		Role:         "writer",
		EmailAddress: email,
	}).Context(ctx).Do()
	return err
}

func (g *googleAPI) values(ctx context.Context, id string) ([][]string, error) {
	vr, err := g.sheets.Spreadsheets.Values.Get(id, readRange).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (g *googleAPI) appendRow(ctx context.Context, id string, row []string) error {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	_, err := g.sheets.Spreadsheets.Values.Append(id, "A1", &gsheets.ValueRange{
		Values: [][]any{cells},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	return err
}

// escapeQuery escapes a literal for a Drive files.list query.
func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
