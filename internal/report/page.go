package report

import (
	"fmt"
	"html/template"
	"io"
	"path/filepath"
	"time"

	"github.com/FranksOps/signlead/internal/lead"
)

// PagesDir is the directory pages are published under.
const PagesDir = "state-pages"

// PageFileName is the file a state's page is written to, e.g.
// "new-york-sign-leads.html".
func PageFileName(st lead.State) string {
	return st.Slug() + "-sign-leads.html"
}

// PublishPath is the repository path a state's page is published to.
func PublishPath(st lead.State) string {
	return PagesDir + "/" + PageFileName(st)
}

// PageData is everything a state page shows.
type PageData struct {
	State     lead.State
	Leads     []lead.Lead
	Generated time.Time
	NextRun   time.Time
}

type pageView struct {
	PageData
	Hot  int
	Warm int
}

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"date": func(t time.Time) string {
		if t.IsZero() {
			return "TBA"
		}
		return t.UTC().Format("Jan 2, 2006 15:04 MST")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.State.Name}} Sign Leads</title>
<style>
  body { font-family: sans-serif; margin: 0; color: #222; background: #f6f7f9; }
  header { background: #1f3a5f; color: #fff; padding: 24px 40px; }
  header p { margin: 4px 0 0; opacity: .8; }
  main { padding: 24px 40px; }
  .stat-card { display: inline-block; padding: 16px 20px; margin: 0 10px 10px 0; background: #fff; border-radius: 6px; min-width: 120px; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
  .stat-val { font-size: 24px; font-weight: bold; }
  .controls { margin: 16px 0; }
  .controls input, .controls select { padding: 8px; font-size: 14px; margin-right: 8px; }
  .lead { background: #fff; border-radius: 6px; padding: 16px 20px; margin-bottom: 12px; box-shadow: 0 1px 2px rgba(0,0,0,.08); }
  .lead h3 { margin: 0 0 6px; }
  .temp { display: inline-block; padding: 2px 8px; border-radius: 10px; font-size: 12px; text-transform: uppercase; color: #fff; }
  .temp.hot { background: #c0392b; }
  .temp.warm { background: #e67e22; }
  .meta { color: #555; font-size: 14px; margin: 4px 0; }
  .signage span { display: inline-block; background: #eef2f7; border-radius: 4px; padding: 2px 6px; margin: 2px 4px 2px 0; font-size: 12px; }
  .empty { color: #777; }
</style>
</head>
<body>
<header>
  <h1>{{.State.Name}} ({{.State.Code}}) Sign Leads</h1>
  <p>Generated {{date .Generated}} &middot; Next update {{date .NextRun}}</p>
</header>
<main>
  <div class="stat-card"><div>Total Leads</div><div class="stat-val">{{len .Leads}}</div></div>
  <div class="stat-card"><div>Hot</div><div class="stat-val">{{.Hot}}</div></div>
  <div class="stat-card"><div>Warm</div><div class="stat-val">{{.Warm}}</div></div>

  <div class="controls">
    <input id="search" type="search" placeholder="Search leads">
    <select id="temp">
      <option value="">All temperatures</option>
      <option value="hot">Hot</option>
      <option value="warm">Warm</option>
    </select>
  </div>

  <div id="leads"></div>
</main>
<script>
const leads = {{.Leads}} || [];
const list = document.getElementById("leads");
const search = document.getElementById("search");
const temp = document.getElementById("temp");

function el(tag, cls, text) {
  const e = document.createElement(tag);
  if (cls) e.className = cls;
  if (text !== undefined) e.textContent = text;
  return e;
}

function render() {
  const q = search.value.trim().toLowerCase();
  const t = temp.value;
  list.replaceChildren();
  const shown = leads.filter(function (l) {
    if (t && l.temp !== t) return false;
    if (!q) return true;
    return [l.name, l.summary, l.location, l.opening, (l.signage || []).join(" ")]
      .join(" ").toLowerCase().includes(q);
  });
  if (shown.length === 0) {
    list.appendChild(el("p", "empty", "No leads match."));
    return;
  }
  shown.forEach(function (l) {
    const card = el("div", "lead");
    const h = el("h3", "", l.name + " ");
    h.appendChild(el("span", "temp " + l.temp, l.temp));
    card.appendChild(h);
    card.appendChild(el("p", "meta", l.summary));
    card.appendChild(el("p", "meta", "Location: " + l.location + " | Opening: " + l.opening + " | Phone: " + l.phone));
    card.appendChild(el("p", "meta", "Estimated signage budget: " + l.revenue));
    const signs = el("div", "signage");
    (l.signage || []).forEach(function (s) { signs.appendChild(el("span", "", s)); });
    card.appendChild(signs);
    const src = el("a", "", "Source");
    src.href = l.source;
    src.rel = "noopener";
    src.target = "_blank";
    card.appendChild(src);
    list.appendChild(card);
  });
}

search.addEventListener("input", render);
temp.addEventListener("change", render);
render();
</script>
</body>
</html>
`))

// WritePage renders a state's lead page.
func WritePage(w io.Writer, data PageData) error {
	hot, warm := lead.Counts(data.Leads)
	if err := pageTmpl.Execute(w, pageView{PageData: data, Hot: hot, Warm: warm}); err != nil {
		return fmt.Errorf("report: render page for %s: %w", data.State.Name, err)
	}
	return nil
}

// SavePage writes the state's page into dir and returns its path.
func SavePage(dir string, data PageData) (string, error) {
	path := filepath.Join(dir, PageFileName(data.State))
	err := writeFile(path, func(w io.Writer) error { return WritePage(w, data) })
	return path, err
}
