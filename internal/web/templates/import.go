package templates

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/voucherdash/internal/core"
)

// ImportPageParams is the initial state of the import screen.
type ImportPageParams struct {
	FlowID      string
	MaxFileSize int64
	Status      core.Snapshot
	History     []core.ImportAttempt
}

// ImportPage is the CSV import screen. The script drives the flow through
// the /api/import endpoints, asking for HTML fragments.
func ImportPage(params ImportPageParams) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw(`<h1>Import vouchers</h1>`)
		p.rawf(`<div id="import" data-flow="%s">`, attr(params.FlowID))
		p.raw(`<p>Upload a .csv file with the columns <code>voucher_code</code>, <code>discount_percent</code> and <code>expiry_date</code>. `)
		p.raw(`Column names are case-insensitive and extra columns are ignored. `)
		p.rawf(`Maximum size %s.</p>`, attr(humanize.Bytes(uint64(params.MaxFileSize))))
		p.raw(`<input id="import-file" type="file" accept=".csv,text/csv">`)
		p.raw(`<div id="import-status">`)
		p.render(ctx, ImportStatus(params.Status))
		p.raw(`</div><h2>Recent imports</h2><div id="import-history">`)
		p.render(ctx, ImportHistory(params.History))
		p.raw(`</div></div><script>`)
		p.raw(importScript)
		p.raw(`</script>`)
		return p.err
	})
	return Layout("Import vouchers", Nav{Active: "import", LoggedIn: true}, body)
}

// ImportStatus renders one flow snapshot: verdict, preview, controls and
// the result of the last submission.
func ImportStatus(s core.Snapshot) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}

		if s.FileName != "" {
			p.raw(`<p><strong>`)
			p.text(s.FileName)
			p.raw(`</strong> `)
			p.text("(" + humanize.Bytes(uint64(s.FileSize)) + ")")
			p.raw(` <button type="button" data-action="clear">Remove</button></p>`)
		}

		switch {
		case s.ParseError != "":
			// Covers both unreadable files and missing headers.
			p.render(ctx, ErrorAlert(s.ParseError, "", s.ErrorCode))
		case s.HeaderValid != nil && *s.HeaderValid:
			p.raw(`<div class="success" role="status">Header looks good. `)
			p.text(humanize.Comma(int64(s.DataRows)) + " data " + plural(s.DataRows, "row", "rows") + " found.")
			p.raw(`</div>`)
		}
		if len(s.Duplicates) > 0 {
			p.raw(`<div class="notice">Duplicate columns ignored (first one used): `)
			p.text(joinFields(s.Duplicates))
			p.raw(`</div>`)
		}

		p.render(ctx, Message("notice", s.Notice))

		if len(s.Preview) > 0 {
			previewTable(p, s)
		}

		if s.Pending {
			p.raw(`<p aria-busy="true">Uploading… <button type="button" data-action="cancel">Cancel</button></p>`)
		} else if s.FileName != "" {
			disabled := ""
			if !s.CanSubmit {
				disabled = " disabled"
			}
			p.rawf(`<p><button type="button" data-action="submit"%s>Upload</button></p>`, disabled)
		}

		if s.Result != nil {
			resultBlock(ctx, p, s.Result)
		}
		return p.err
	})
}

func previewTable(p *page, s core.Snapshot) {
	issues := core.IssuesByLine(s.PreviewIssues)

	p.raw(`<h2>Preview</h2><table><thead><tr><th>Line</th>`)
	for _, f := range core.RequiredFields {
		p.raw(`<th>`)
		p.text(string(f))
		p.raw(`</th>`)
	}
	if issues != nil {
		p.raw(`<th>Check</th>`)
	}
	p.raw(`</tr></thead><tbody>`)
	for _, row := range s.Preview {
		rowIssues := issues[row.LineNumber]
		if len(rowIssues) > 0 {
			p.rawf(`<tr class="warn"><td>%d</td>`, row.LineNumber)
		} else {
			p.rawf(`<tr><td>%d</td>`, row.LineNumber)
		}
		for _, f := range core.RequiredFields {
			p.raw(`<td>`)
			p.text(row.Value(f))
			p.raw(`</td>`)
		}
		if issues != nil {
			p.raw(`<td>`)
			for i, is := range rowIssues {
				if i > 0 {
					p.raw(`<br>`)
				}
				p.text(is.Message)
			}
			p.raw(`</td>`)
		}
		p.raw(`</tr>`)
	}
	p.raw(`</tbody></table>`)
	if issues != nil {
		p.raw(`<p><small>Highlighted rows look invalid and will probably be rejected. The server makes the final decision.</small></p>`)
	}
	if s.DataRows > len(s.Preview) {
		p.raw(`<p><small>Showing the first `)
		p.text(strconv.Itoa(len(s.Preview)) + " of " + humanize.Comma(int64(s.DataRows)))
		p.raw(` rows.</small></p>`)
	}
}

func resultBlock(ctx context.Context, p *page, r *core.ImportResult) {
	if r.Summary == nil {
		p.render(ctx, ErrorAlert(r.Message, "", r.Code))
		return
	}

	kind := "alert"
	if r.Success {
		kind = "success"
	}
	p.render(ctx, Message(kind, r.Message))

	sum := r.Summary
	if sum.AllSucceeded() {
		p.raw(`<div class="success">All rows were uploaded successfully.</div>`)
	}
	p.raw(`<p>`)
	p.text(humanize.Comma(int64(sum.SuccessCount)) + " imported, " + humanize.Comma(int64(sum.FailedCount)) + " failed.")
	p.raw(`</p>`)

	if len(sum.FailedRows) == 0 {
		return
	}
	p.raw(`<table><thead><tr><th>Row</th><th>Voucher code</th><th>Reason</th></tr></thead><tbody>`)
	for _, fr := range sum.FailedRows {
		p.rawf(`<tr><td>%d</td><td>`, fr.RowNumber)
		p.text(fr.VoucherCode)
		p.raw(`</td><td>`)
		p.text(fr.Reason)
		p.raw(`</td></tr>`)
	}
	p.raw(`</tbody></table>`)
}

// ImportHistory lists recent import attempts.
func ImportHistory(attempts []core.ImportAttempt) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		p := &page{w: w}
		if len(attempts) == 0 {
			p.raw(`<p>No imports yet.</p>`)
			return p.err
		}
		p.raw(`<table><thead><tr><th>When</th><th>File</th><th>Size</th><th>Result</th><th>Imported</th><th>Failed</th></tr></thead><tbody>`)
		for _, a := range attempts {
			p.rawf(`<tr><td title="%s">`, attr(a.SubmittedAt.Format("2006-01-02 15:04:05 MST")))
			p.text(humanize.Time(a.SubmittedAt))
			p.raw(`</td><td>`)
			p.text(a.FileName)
			p.raw(`</td><td>`)
			p.text(humanize.Bytes(uint64(a.FileSize)))
			p.raw(`</td><td>`)
			if a.Success {
				p.raw(`<span class="badge">OK</span> `)
			} else {
				p.raw(`<span class="badge expired">Failed</span> `)
			}
			p.text(a.Message)
			p.rawf(`</td><td>%d</td><td>%d</td></tr>`, a.SuccessCount, a.FailedCount)
		}
		p.raw(`</tbody></table>`)
		return p.err
	})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func joinFields(fields []core.Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

const importScript = `
(function () {
  var root = document.getElementById('import');
  var status = document.getElementById('import-status');
  var history = document.getElementById('import-history');
  var input = document.getElementById('import-file');
  var base = '/api/import/' + encodeURIComponent(root.dataset.flow);

  function html(url, opts) {
    opts = opts || {};
    opts.headers = {'Accept': 'text/html'};
    opts.credentials = 'same-origin';
    return fetch(url, opts);
  }

  function show(resp, waited) {
    return resp.text().then(function (body) {
      status.innerHTML = body;
      if (resp.headers.get('X-Import-Pending') === 'true') {
        return html(base + '?wait=1').then(function (r) { return show(r, true); });
      }
      if (waited) {
        return html('/api/import/history').then(function (r) {
          return r.text().then(function (t) { history.innerHTML = t; });
        });
      }
    });
  }

  function call(method, path, body) {
    return html(base + path, {method: method, body: body})
      .then(function (r) { return show(r, false); })
      .catch(function () {
        status.insertAdjacentHTML('afterbegin', '<div class="alert">Network error. Please try again.</div>');
      });
  }

  input.addEventListener('change', function () {
    if (!input.files.length) { call('DELETE', '/file'); return; }
    var form = new FormData();
    form.append('file', input.files[0]);
    call('POST', '/file', form);
  });

  status.addEventListener('click', function (e) {
    var action = e.target.getAttribute('data-action');
    if (action === 'submit') { call('POST', '/submit'); }
    if (action === 'cancel') { html(base + '/cancel', {method: 'POST'}); }
    if (action === 'clear') { input.value = ''; call('DELETE', '/file'); }
  });
})();
`
