package report

// htmlTemplate is the self-contained QA report page.
const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
  :root {
    --bg: #ffffff;
    --text: #1a1a2e;
    --muted: #6b7280;
    --border: #e5e7eb;
    --accent: #2563eb;
    --green: #16a34a;
    --red: #dc2626;
    --orange: #ea580c;
    --section-bg: #f8fafc;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    color: var(--text);
    background: var(--bg);
    line-height: 1.6;
    max-width: 960px;
    margin: 0 auto;
    padding: 20px;
  }
  h1 { font-size: 1.5rem; color: var(--accent); }
  h2 { font-size: 1.2rem; margin: 24px 0 12px; padding-bottom: 6px; border-bottom: 2px solid var(--accent); }
  .muted { color: var(--muted); font-size: 0.85rem; }
  .header { border-bottom: 3px solid var(--accent); padding-bottom: 12px; margin-bottom: 16px; }
  .stats {
    display: grid;
    grid-template-columns: repeat(auto-fill, minmax(140px, 1fr));
    gap: 8px;
    background: var(--section-bg);
    padding: 12px;
    border-radius: 8px;
  }
  .stat { text-align: center; }
  .stat .label { font-size: 0.75rem; color: var(--muted); text-transform: uppercase; }
  .stat .value { font-size: 1.1rem; font-weight: 600; }
  .charts { display: flex; gap: 16px; align-items: center; margin: 16px 0; }
  table { width: 100%; border-collapse: collapse; font-size: 0.85rem; }
  th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid var(--border); }
  th { background: var(--section-bg); }
  .passed { color: var(--green); font-weight: 600; }
  .warning { color: var(--orange); font-weight: 600; }
  .failed { color: var(--red); font-weight: 600; }
  .skipped { color: var(--muted); }
  .issues { margin: 4px 0 0 16px; color: var(--muted); }
</style>
</head>
<body>
<div class="header">
  <h1>{{.Title}}</h1>
  <p class="muted">Run {{.RunID}} &middot; {{.GeneratedAt}} &middot; {{.Elapsed}}</p>
</div>

<div class="stats">
  <div class="stat"><div class="label">Calculators</div><div class="value">{{.Total}}</div></div>
  <div class="stat"><div class="label">Passed</div><div class="value passed">{{.Passed}}</div></div>
  <div class="stat"><div class="label">Warnings</div><div class="value warning">{{.Warnings}}</div></div>
  <div class="stat"><div class="label">Failed</div><div class="value failed">{{.Failed}}</div></div>
  <div class="stat"><div class="label">Average</div><div class="value">{{.AverageScore}}</div></div>
  {{if .Best}}<div class="stat"><div class="label">Best / Worst</div><div class="value">{{.Best}} / {{.Worst}}</div></div>{{end}}
</div>

<div class="charts">
  {{.ScoreGauge}}
  {{.CategoryChart}}
</div>

<h2>Calculators</h2>
<table>
  <thead><tr><th>Calculator</th><th>Category</th><th>Status</th><th>Score</th><th>Tests</th><th>Time</th></tr></thead>
  <tbody>
  {{range .Rows}}
  <tr>
    <td><strong>{{.Name}}</strong><br><span class="muted">{{.ID}}</span>
      {{if .Issues}}<ul class="issues">{{range .Issues}}<li>[{{.Test}}/{{.Severity}}] {{.Name}}: {{.Message}}</li>{{end}}</ul>{{end}}
    </td>
    <td>{{.Category}}</td>
    <td class="{{.StatusClass}}">{{.Status}}</td>
    <td>{{.Score}}</td>
    <td>{{range .Tests}}<span class="{{.Status}}">{{.Kind}} {{.Score}}</span><br>{{end}}</td>
    <td>{{.Duration}}</td>
  </tr>
  {{else}}
  <tr><td colspan="6" class="muted">No calculators to show.</td></tr>
  {{end}}
  </tbody>
</table>
</body>
</html>
`
