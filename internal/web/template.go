package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/pulse-meter/internal/status"
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
	"percent": func(p float64) int {
		return int(p * 100)
	},
	"bpmOrDash": func(bpm int) string {
		if bpm == 0 {
			return "—"
		}
		return fmt.Sprintf("%d", bpm)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Pulse Meter</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.bpm { font-size: 2em; font-weight: bold; }
.MEASURING { color: green; font-weight: bold; }
.IDLE { color: #888; }
.FINISHED { color: green; }
.FAILED { color: red; }
.POOR { color: red; }
.FAIR { color: orange; }
.GOOD { color: green; }
.EXCELLENT { color: green; font-weight: bold; }
.connected { color: green; }
.disconnected { color: red; }
.bar { background: #eee; height: 10px; border-radius: 5px; }
.bar div { background: green; height: 10px; border-radius: 5px; }
</style>
</head>
<body>
<h1>Pulse Meter</h1>
<p class="bpm">{{bpmOrDash .BPM}} bpm</p>
<div class="bar"><div style="width: {{percent .Progress}}%"></div></div>
<table>
<tr><th>State</th><td class="{{.State}}">{{.State}}</td></tr>
<tr><th>Signal quality</th><td class="{{.Quality}}">{{.Quality}}</td></tr>
<tr><th>Last average</th><td>{{bpmOrDash .AverageBPM}} bpm</td></tr>
<tr><th>Progress</th><td>{{percent .Progress}}%</td></tr>
<tr><th>Measurements</th><td>{{.Counts.Started}} started / {{.Counts.Finished}} finished / {{.Counts.Failed}} failed</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}} ({{.Config.Broker}})</td></tr>
<tr><th>Camera</th><td>{{.Config.Device}} @ {{.Config.SampleRateHz}} Hz</td></tr>
<tr><th>Torch</th><td>{{.Config.TorchChip}} line {{.Config.TorchLine}}</td></tr>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
</table>
<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	if err := indexTmpl.Execute(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}
