package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/drawer-sensor/internal/logic"
	"github.com/sweeney/drawer-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"position": func(p logic.Position) string {
		if !p.Known {
			return "UNKNOWN"
		}
		if p.Closed() {
			return "closed"
		}
		return fmt.Sprintf("%d%%", p.Percent)
	},
	"positionClass": func(p logic.Position) string {
		switch {
		case !p.Known:
			return "unknown"
		case p.Closed():
			return "closed"
		}
		return "open"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Drawer Sensor {{.Config.Unit}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.open { color: green; font-weight: bold; }
.closed { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.warning { color: orange; }
</style>
</head>
<body>
<h1>Drawer Sensor {{.Config.Unit}}</h1>

<h2>Drawers</h2>
<table>
<tr><th>Drawer</th><td>Position</td><td>Last reading</td></tr>
{{range .Drawers}}<tr><th>{{.Key}}</th><td class="{{positionClass .Stable}}">{{position .Stable}}</td><td class="{{positionClass .Raw}}">{{position .Raw}}</td></tr>
{{else}}<tr><td colspan="3" class="unknown">no measurements yet</td></tr>
{{end}}</table>
<p>Ready: {{if .Baselined}}yes{{else}}no{{end}}</p>
{{if .Warnings}}<ul>{{range .Warnings}}<li class="warning">{{.}}</li>{{end}}</ul>{{end}}

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}{{if .MQTTBuffered}} ({{.MQTTBuffered}} buffered){{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.HubPort}}<tr><th>Hub</th><td class="{{if .HubConnected}}connected{{else}}disconnected{{end}}">{{.Config.HubPort}} {{if .HubConnected}}connected{{else}}disconnected{{end}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Opened</th><td>{{.Counts.Opened}}</td></tr>
<tr><th>Closed</th><td>{{.Counts.Closed}}</td></tr>
<tr><th>Moved</th><td>{{.Counts.Moved}}</td></tr>
<tr><th>Lost</th><td>{{.Counts.Lost}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Cycles</th><td>{{.Cycles}} ({{.UnknownCount}} unknown readings, last {{.LastCycleTime}})</td></tr>
<tr><th>Cabinets</th><td>{{range .Config.Cabinets}}{{.}} {{end}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>Debounce</th><td>{{.Config.DebounceMs}}ms</td></tr>
<tr><th>Deadband</th><td>{{.Config.Deadband}}%</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

type drawerRow struct {
	Key    string
	Stable logic.Position
	Raw    logic.Position
}

func drawerRows(snap status.Snapshot) []drawerRow {
	raw := logic.Index(snap.Latest)
	stable := logic.Index(snap.Stable)
	order := snap.Stable
	if len(order) == 0 {
		order = snap.Latest
	}

	rows := make([]drawerRow, 0, len(order))
	for _, r := range order {
		k := r.Key()
		rows = append(rows, drawerRow{Key: k.String(), Stable: stable[k], Raw: raw[k]})
	}
	return rows
}

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime  time.Duration
		Drawers []drawerRow
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Drawers:  drawerRows(snap),
	}
	indexTmpl.Execute(w, data)
}
