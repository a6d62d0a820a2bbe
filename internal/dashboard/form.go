package dashboard

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/log"

	"heart-predictor/internal/features"
	"heart-predictor/internal/ml"
)

// Option is one choice of an enumerated field.
type Option struct {
	Value string
	Label string
}

// Field is one input of the prediction form.
type Field struct {
	Name    string
	Label   string
	Options []Option
	Min     string
	Max     string
	Step    string
	Default string
}

// PageData is rendered by the form template.
type PageData struct {
	Title       string
	ModelLoaded bool
	Version     string
	Accuracy    float64
	Fields      []Field
	FeedEnabled bool
}

func opts(labels ...string) []Option {
	out := make([]Option, len(labels))
	for i, l := range labels {
		out[i] = Option{Value: string(rune('0' + i)), Label: l}
	}
	return out
}

// formFields follows canonical feature order.
var formFields = []Field{
	{Name: features.Age, Label: "Age", Min: "20", Max: "100", Step: "1", Default: "50"},
	{Name: features.Sex, Label: "Sex", Options: opts("Female", "Male")},
	{Name: features.CP, Label: "Chest Pain Type (cp)", Options: opts("Typical angina", "Atypical angina", "Non-anginal pain", "Asymptomatic")},
	{Name: features.Trestbps, Label: "Resting Blood Pressure (trestbps)", Min: "80", Max: "200", Step: "1", Default: "120"},
	{Name: features.Chol, Label: "Serum Cholesterol (chol)", Min: "100", Max: "600", Step: "1", Default: "200"},
	{Name: features.FBS, Label: "Fasting blood sugar > 120 mg/dl (fbs)", Options: opts("No", "Yes")},
	{Name: features.RestECG, Label: "Resting electrocardiographic results (restecg)", Options: opts("Normal", "ST-T wave abnormality", "Left ventricular hypertrophy")},
	{Name: features.Thalach, Label: "Maximum heart rate achieved (thalach)", Min: "60", Max: "220", Step: "1", Default: "150"},
	{Name: features.Exang, Label: "Exercise induced angina (exang)", Options: opts("No", "Yes")},
	{Name: features.Oldpeak, Label: "ST depression (oldpeak)", Min: "0", Max: "10", Step: "0.1", Default: "1.0"},
	{Name: features.Slope, Label: "Slope of ST segment (slope)", Options: opts("Upsloping", "Flat", "Downsloping")},
	{Name: features.CA, Label: "Number of major vessels colored by fluoroscopy (ca)", Options: opts("0", "1", "2", "3", "4")},
	{Name: features.Thal, Label: "Thalassemia (thal)", Options: opts("0", "1", "2", "3")},
}

// Fields returns the form inputs in canonical order.
func Fields() []Field {
	out := make([]Field, len(formFields))
	copy(out, formFields)
	return out
}

// ModelInfo is what the form page needs from the predictor.
type ModelInfo interface {
	Available() bool
	Artifacts() *ml.Artifacts
}

// FormHandler renders the prediction form.
type FormHandler struct {
	model       ModelInfo
	feedEnabled bool
}

// NewFormHandler creates the index page handler.
func NewFormHandler(model ModelInfo, feedEnabled bool) *FormHandler {
	return &FormHandler{model: model, feedEnabled: feedEnabled}
}

func (h *FormHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:       "Heart Disease Prediction",
		ModelLoaded: h.model.Available(),
		Fields:      formFields,
		FeedEnabled: h.feedEnabled,
	}
	if a := h.model.Artifacts(); a != nil {
		data.Version = a.Metadata.Version
		data.Accuracy = a.Metadata.TestAccuracy * 100
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		log.Error().Err(err).Msg("Failed to render form page")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

var pageTemplate = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>{{.Title}}</title>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; margin: 0; padding: 20px; background-color: #f5f5f5; }
        .container { max-width: 900px; margin: 0 auto; }
        .header { background: linear-gradient(135deg, #e66465 0%, #9d3f5f 100%); color: white; padding: 20px; border-radius: 10px; margin-bottom: 20px; text-align: center; }
        .card { background: white; border-radius: 10px; padding: 20px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); margin-bottom: 20px; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(260px, 1fr)); gap: 12px; }
        label { display: block; font-weight: 500; color: #666; margin-bottom: 4px; }
        input, select { width: 100%; padding: 6px; box-sizing: border-box; }
        button { margin-top: 16px; padding: 10px 24px; border: none; border-radius: 6px; background: #9d3f5f; color: white; font-size: 1em; cursor: pointer; }
        .result-disease { color: #dc3545; }
        .result-healthy { color: #28a745; }
        .error { color: #dc3545; }
        .warning { background: #fff3cd; padding: 10px; border-radius: 6px; }
        #feed li { padding: 4px 0; border-bottom: 1px solid #eee; }
    </style>
</head>
<body>
<div class="container">
    <div class="header">
        <h1>{{.Title}}</h1>
        {{if .ModelLoaded}}<p>Model {{.Version}} &middot; test accuracy {{printf "%.1f" .Accuracy}}%</p>{{end}}
    </div>
    {{if not .ModelLoaded}}<div class="card warning">Model not loaded. Please ensure the model file exists.</div>{{end}}
    <div class="card">
        <form id="predict-form" method="post" action="/predict">
            <div class="grid">
            {{range .Fields}}
                <div>
                    <label for="{{.Name}}">{{.Label}}</label>
                    {{if .Options}}
                    <select id="{{.Name}}" name="{{.Name}}">
                        {{range .Options}}<option value="{{.Value}}">{{.Label}}</option>{{end}}
                    </select>
                    {{else}}
                    <input type="number" id="{{.Name}}" name="{{.Name}}" min="{{.Min}}" max="{{.Max}}" step="{{.Step}}" value="{{.Default}}" required>
                    {{end}}
                </div>
            {{end}}
            </div>
            <button type="submit">Predict</button>
        </form>
    </div>
    <div class="card" id="result" hidden></div>
    {{if .FeedEnabled}}
    <div class="card">
        <h3>Recent predictions</h3>
        <ul id="feed"></ul>
    </div>
    {{end}}
</div>
<script>
const form = document.getElementById('predict-form');
const result = document.getElementById('result');
form.addEventListener('submit', async (e) => {
    e.preventDefault();
    const resp = await fetch('/predict', { method: 'POST', body: new URLSearchParams(new FormData(form)) });
    const body = await resp.json();
    result.hidden = false;
    if (!body.success) {
        result.innerHTML = '<p class="error"></p>';
        result.firstChild.textContent = body.error;
        return;
    }
    const cls = body.prediction === 1 ? 'result-disease' : 'result-healthy';
    result.innerHTML = '<h2 class="' + cls + '"></h2><p></p>';
    result.querySelector('h2').textContent = body.diagnosis;
    result.querySelector('p').textContent = 'Disease probability ' + body.disease_probability.toFixed(2) +
        '%, no disease ' + body.no_disease_probability.toFixed(2) + '%, confidence ' + body.confidence.toFixed(2) + '%';
});
{{if .FeedEnabled}}
const feed = document.getElementById('feed');
const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
const ws = new WebSocket(scheme + location.host + '/ws');
ws.onmessage = (msg) => {
    const ev = JSON.parse(msg.data);
    const li = document.createElement('li');
    li.textContent = new Date(ev.timestamp).toLocaleTimeString() + ' ' + ev.diagnosis + ' (' + ev.disease_probability.toFixed(1) + '%)';
    feed.prepend(li);
    while (feed.children.length > 20) feed.removeChild(feed.lastChild);
};
{{end}}
</script>
</body>
</html>
`))
