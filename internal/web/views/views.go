// Package views renders the HTML pages of the upload UI with gomponents.
package views

import (
	"fmt"
	"strconv"
	"time"

	. "maragu.dev/gomponents"
	. "maragu.dev/gomponents/html"

	"github.com/JonMunkholm/jsonbi/internal/core"
	"github.com/JonMunkholm/jsonbi/internal/powerbi"
)

const appTitle = "JSON to Power BI"

// NoticeKind selects the colour of a notification.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Notice is a notification box shown above page content.
type Notice struct {
	Kind    NoticeKind
	Message string
	Action  string
	Code    string
	Detail  string // verbatim provider or parser text
}

// ErrorNotice builds an error notification from a mapped error.
func ErrorNotice(msg core.UserMessage) *Notice {
	return &Notice{
		Kind:    NoticeError,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
		Detail:  msg.Detail,
	}
}

const styles = `
body{font-family:system-ui,sans-serif;margin:0;background:#f6f8fa;color:#1f2328}
header{background:#24292f;color:#fff;padding:12px 24px;display:flex;gap:24px;align-items:center}
header a{color:#fff;text-decoration:none}
main{max-width:1100px;margin:24px auto;padding:0 24px}
.card{background:#fff;border:1px solid #d0d7de;border-radius:6px;padding:16px;margin-bottom:16px}
.notice{border-radius:6px;padding:12px 16px;margin-bottom:16px;border:1px solid}
.notice-success{background:#dafbe1;border-color:#4ac26b}
.notice-error{background:#ffebe9;border-color:#ff8182}
.notice-info{background:#ddf4ff;border-color:#54aeff}
.notice pre{white-space:pre-wrap;word-break:break-word;margin:8px 0 0}
.table-wrap{overflow-x:auto}
table{border-collapse:collapse;width:100%;font-size:14px}
th,td{border:1px solid #d0d7de;padding:6px 8px;text-align:left;vertical-align:top}
th{background:#f6f8fa}
.muted{color:#656d76;font-size:13px}
button{background:#1f883d;color:#fff;border:0;border-radius:6px;padding:8px 16px;cursor:pointer;font-size:14px}
`

func page(title string, body ...Node) Node {
	return Doctype(HTML(
		Lang("en"),
		Head(
			Meta(Charset("utf-8")),
			Meta(Name("viewport"), Content("width=device-width, initial-scale=1")),
			TitleEl(Text(title+" | "+appTitle)),
			Link(Rel("icon"), Href("data:,")),
			StyleEl(Raw(styles)),
		),
		Body(
			Header(
				Strong(Text(appTitle)),
				Nav(
					A(Href("/"), Text("Upload")),
					Text(" · "),
					A(Href("/history"), Text("History")),
				),
			),
			Main(
				H1(Text(title)),
				Group(compact(body)),
			),
		),
	))
}

// compact drops nil nodes so optional sections can be passed inline.
func compact(nodes []Node) []Node {
	out := nodes[:0:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

func notice(n *Notice) Node {
	if n == nil {
		return nil
	}
	kind := n.Kind
	if kind == "" {
		kind = NoticeInfo
	}

	msg := n.Message
	if n.Code != "" {
		msg += " (Code: " + n.Code + ")"
	}

	return Div(
		Class("notice notice-"+string(kind)),
		Attr("role", "status"),
		Strong(Text(msg)),
		If(n.Action != "", P(Text(n.Action))),
		If(n.Detail != "", Pre(Code(Text(n.Detail)))),
	)
}

func uploadForm(maxFileSize int64) Node {
	return Div(Class("card"),
		Form(
			Method("post"),
			Action("/convert"),
			EncType("multipart/form-data"),
			Label(For("file"), Text("Upload your JSON file here:")),
			P(Input(Type("file"), ID("file"), Name("file"), Accept(".json,application/json"), Required())),
			P(Class("muted"), Text("Maximum size "+formatBytes(maxFileSize)+". An object becomes one row; an array becomes one row per element.")),
			Button(Type("submit"), Text("Convert")),
		),
	)
}

// UploadPage is the landing page with the file form.
func UploadPage(maxFileSize int64, n *Notice) Node {
	return page("Convert JSON to Power BI",
		notice(n),
		uploadForm(maxFileSize),
	)
}

// PreviewPage shows the first rows of a converted file and the publish button.
func PreviewPage(p *core.Preview, n *Notice) Node {
	header := make([]Node, 0, len(p.Columns))
	for _, col := range p.Columns {
		header = append(header, Th(Text(col)))
	}

	rows := make([]Node, 0, len(p.Rows))
	for _, row := range p.Rows {
		cells := make([]Node, 0, len(row))
		for _, v := range row {
			cells = append(cells, Td(Text(v)))
		}
		rows = append(rows, Tr(Group(cells)))
	}

	summary := fmt.Sprintf("Showing %d of %d rows, %d columns.", len(p.Rows), p.TotalRows, len(p.Columns))

	return page("Preview",
		notice(n),
		Div(Class("card"),
			P(Strong(Text(p.FileName))),
			P(Class("muted"), Text(summary)),
			If(len(p.Columns) > 0,
				Div(Class("table-wrap"),
					Table(
						THead(Tr(Group(header))),
						TBody(Group(rows)),
					),
				),
			),
			If(len(p.Columns) == 0, P(Class("muted"), Text("The file contains no rows."))),
		),
		Div(Class("card"),
			Form(
				Method("post"),
				Action("/publish/"+p.SessionID),
				Button(Type("submit"), Text("Upload to Power BI")),
			),
			P(Class("muted"), Text("The full table is sent. This preview expires at "+p.ExpiresAt.Format(time.Kitchen)+".")),
		),
	)
}

// PublishedPage confirms a created dataset and offers the form again.
func PublishedPage(fileName string, result *powerbi.PublishResult, maxFileSize int64) Node {
	details := []Node{
		detailRow("File", fileName),
		detailRow("Dataset", result.DatasetName),
		detailRow("Workspace", result.WorkspaceID),
		detailRow("Table", result.TableName),
		detailRow("Rows", strconv.Itoa(result.Rows)),
		detailRow("Columns", strconv.Itoa(result.Columns)),
	}
	if result.DatasetID != "" {
		details = append(details, detailRow("Dataset ID", result.DatasetID))
	}

	return page("Published",
		notice(&Notice{Kind: NoticeSuccess, Message: "Data uploaded to Power BI successfully!"}),
		Div(Class("card"), Table(TBody(Group(details)))),
		uploadForm(maxFileSize),
	)
}

func detailRow(label, value string) Node {
	return Tr(Th(Text(label)), Td(Text(value)))
}

// HistoryPage lists recent publish attempts.
func HistoryPage(records []core.PublishRecord) Node {
	if len(records) == 0 {
		return page("Publish history", Div(Class("card"), P(Class("muted"), Text("No publishes yet."))))
	}

	rows := make([]Node, 0, len(records))
	for _, rec := range records {
		rows = append(rows, Tr(
			Td(Text(rec.CreatedAt.Local().Format("2006-01-02 15:04:05"))),
			Td(Text(rec.FileName)),
			Td(Text(rec.DatasetName)),
			Td(Text(string(rec.Status))),
			Td(Text(strconv.Itoa(rec.Rows))),
			Td(Text(strconv.Itoa(rec.Columns))),
			Td(Text(rec.Duration.Round(time.Millisecond).String())),
			Td(Text(rec.Error)),
		))
	}

	return page("Publish history",
		Div(Class("card table-wrap"),
			Table(
				THead(Tr(
					Th(Text("When")),
					Th(Text("File")),
					Th(Text("Dataset")),
					Th(Text("Status")),
					Th(Text("Rows")),
					Th(Text("Columns")),
					Th(Text("Duration")),
					Th(Text("Error")),
				)),
				TBody(Group(rows)),
			),
		),
	)
}

// ErrorPage renders a standalone error for requests without a better page.
func ErrorPage(status int, msg core.UserMessage) Node {
	return page(fmt.Sprintf("Error %d", status),
		notice(ErrorNotice(msg)),
		P(A(Href("/"), Text("Back to upload"))),
	)
}

func formatBytes(n int64) string {
	if n <= 0 {
		return "unlimited"
	}
	const mb = 1 << 20
	if n >= mb {
		return fmt.Sprintf("%.0f MB", float64(n)/mb)
	}
	return fmt.Sprintf("%d KB", n/1024)
}
