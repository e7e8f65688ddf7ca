package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/rclights/internal/lights"
	"github.com/sweeney/rclights/internal/status"
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
	"stateClass": func(s lights.State) string {
		switch s {
		case lights.StateHigh:
			return "high"
		case lights.StateOn:
			return "on"
		default:
			return "off"
		}
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>RC Lights</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.high { color: #c60; font-weight: bold; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>RC Lights</h1>

<h2>Lights</h2>
<table>
{{range .Channels}}<tr><th>{{.Name}}</th><td class="{{stateClass .State}}">{{.State}}</td></tr>
{{end}}<tr><th>Blink phase</th><td>{{if .BlinkOn}}on{{else}}off{{end}}</td></tr>
</table>

<h2>Input</h2>
<table>
<tr><th>Ready</th><td>{{if .Ready}}yes{{else}}no{{end}}</td></tr>
<tr><th>Raw width</th><td>{{printf "%.0f" .Cycle.Raw}}us</td></tr>
<tr><th>Stable width</th><td>{{printf "%.0f" .Cycle.Stable}}us</td></tr>
<tr><th>Configuration</th><td>{{.Cycle.Result.ID}} ({{.Cycle.Result.Config}}){{if .Cycle.Result.Clamped}} clamped from {{.Cycle.Result.RawID}}{{end}}</td></tr>
<tr><th>Brake</th><td>{{.Cycle.Result.Fields.Brake}}</td></tr>
<tr><th>Reverse</th><td>{{.Cycle.Result.Fields.Reverse}}</td></tr>
<tr><th>Blink</th><td>{{.Cycle.Result.Fields.Blink}}</td></tr>
<tr><th>High beam</th><td>{{.Cycle.Result.Fields.HighBeam}}</td></tr>
<tr><th>Day/night</th><td>{{.Cycle.Result.Fields.DayNight}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}, {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Transitions</th><td>{{.Counts.Transitions}}</td></tr>
<tr><th>Blink toggles</th><td>{{.Counts.BlinkToggles}}</td></tr>
<tr><th>Clamped</th><td>{{.Counts.Clamped}}</td></tr>
<tr><th>Write errors</th><td>{{.Counts.WriteErrors}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Input</th><td>{{.Config.InputHz}}Hz, {{.Config.RangeMinUs}}..{{.Config.RangeMaxUs}}us, {{.Config.Configurations}} configurations</td></tr>
<tr><th>Filter</th><td>{{.Config.Filter}}</td></tr>
<tr><th>Blink interval</th><td>{{.Config.BlinkIntervalMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Ready() methods but the template wants fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Ready  bool
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Ready:    snap.Ready(),
	}
	indexTmpl.Execute(w, data)
}
