package meal

import (
	"fmt"
	"html/template"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/zombor/calorie-scan/internal/analysis"
)

// Bar scales for the nutrient rows, in grams
const (
	ProteinMax = 50
	CarbsMax   = 100
	FatMax     = 50
)

// BarWidth is the fill percentage of a nutrient bar: min(value/max, 1) * 100
func BarWidth(value, max float64) float64 {
	if max <= 0 || value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Min(value/max, 1) * 100
}

// clampPercent keeps a percentage inside 0-100 for display
func clampPercent(value float64) float64 {
	if value <= 0 || math.IsNaN(value) {
		return 0
	}
	return math.Min(value, 100)
}

// PageLabels are the user-visible strings of the page
type PageLabels struct {
	Lang             string
	Title            string
	Subtitle         string
	UploadTitle      string
	UploadHint       string
	Formats          string
	ImageAlt         string
	Clear            string
	Analyze          string
	Analyzing        string
	AnalyzingOverlay string
	Confidence       string
	Kcal             string
	Protein          string
	Carbs            string
	Fat              string
	Fiber            string
	TipTitle         string
	Disclaimer       string
}

var labelSets = map[string]PageLabels{
	"zh": {
		Lang:             "zh-CN",
		Title:            "AI 卡路里分析",
		Subtitle:         "上传食物图片，AI 为你分析营养成分",
		UploadTitle:      "上传食物图片",
		UploadHint:       "拖拽图片到这里，或点击选择图片",
		Formats:          "支持 JPG, PNG, WebP 格式",
		ImageAlt:         "食物图片",
		Clear:            "清除",
		Analyze:          "开始分析",
		Analyzing:        "分析中...",
		AnalyzingOverlay: "AI 分析中...",
		Confidence:       "置信度",
		Kcal:             "千卡",
		Protein:          "蛋白质",
		Carbs:            "碳水化合物",
		Fat:              "脂肪",
		Fiber:            "膳食纤维",
		TipTitle:         "健康小贴士",
		Disclaimer:       "AI 分析结果仅供参考，实际营养成分可能因份量和烹饪方式而异",
	},
	"en": {
		Lang:             "en",
		Title:            "AI Calorie Analysis",
		Subtitle:         "Upload a food photo and let AI estimate its nutrition",
		UploadTitle:      "Upload a food photo",
		UploadHint:       "Drag an image here, or click to choose one",
		Formats:          "JPG, PNG and WebP supported",
		ImageAlt:         "Food photo",
		Clear:            "Clear",
		Analyze:          "Analyze",
		Analyzing:        "Analyzing...",
		AnalyzingOverlay: "AI is analyzing...",
		Confidence:       "Confidence",
		Kcal:             "kcal",
		Protein:          "Protein",
		Carbs:            "Carbs",
		Fat:              "Fat",
		Fiber:            "Fiber",
		TipTitle:         "Healthy tip",
		Disclaimer:       "AI estimates are for reference only; actual nutrition varies with portion size and cooking method",
	},
}

// failureMessages is the single generic message shown for any analysis failure
var failureMessages = map[string]string{
	"zh": "分析失败，请重试",
	"en": "Analysis failed, please try again",
}

// FailureMessage returns the generic analysis failure message for a language
func FailureMessage(language string) string {
	if msg, ok := failureMessages[language]; ok {
		return msg
	}
	return failureMessages["en"]
}

// NutrientView is one macronutrient tile
type NutrientView struct {
	Key   string
	Label string
	Value float64
	Unit  string
	Width float64
}

// ResultView is the display model of an Analysis
type ResultView struct {
	Name            string
	Calories        float64
	Confidence      float64
	ConfidenceWidth float64
	Nutrients       []NutrientView
	Fiber           *float64
	Tips            string
}

// PageView is everything the page template needs
type PageView struct {
	Labels      PageLabels
	Phase       Phase
	State       State
	Result      *ResultView
	ImageSrc    template.URL
	ShowAnalyze bool
}

// NewResultView maps an Analysis onto the fixed layout
func NewResultView(a *analysis.Analysis, labels PageLabels) *ResultView {
	if a == nil {
		return nil
	}

	return &ResultView{
		Name:            a.Name,
		Calories:        a.Calories,
		Confidence:      a.Confidence,
		ConfidenceWidth: clampPercent(a.Confidence),
		Nutrients: []NutrientView{
			{Key: "protein", Label: labels.Protein, Value: a.Protein, Unit: "g", Width: BarWidth(a.Protein, ProteinMax)},
			{Key: "carbs", Label: labels.Carbs, Value: a.Carbs, Unit: "g", Width: BarWidth(a.Carbs, CarbsMax)},
			{Key: "fat", Label: labels.Fat, Value: a.Fat, Unit: "g", Width: BarWidth(a.Fat, FatMax)},
		},
		Fiber: a.Fiber,
		Tips:  a.Tips,
	}
}

// Renderer draws the page and its panel fragment from a session State
type Renderer struct {
	tmpl   *template.Template
	labels PageLabels
}

// formatNumber prints at most one decimal and drops a trailing ".0"
func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*10)/10, 'f', -1, 64)
}

// NewRenderer parses the embedded templates for a UI language
func NewRenderer(language string) (*Renderer, error) {
	labels, ok := labelSets[language]
	if !ok {
		return nil, fmt.Errorf("unsupported UI language %q", language)
	}

	tmpl, err := template.New("index.html").Funcs(template.FuncMap{
		"num": formatNumber,
	}).ParseFS(templatesFS, "static/index.html", "static/panel.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Renderer{tmpl: tmpl, labels: labels}, nil
}

// imageSrc marks our own base64 image data URLs as safe for an img src attribute
func imageSrc(dataURL string) template.URL {
	if !strings.HasPrefix(dataURL, "data:image/") || !strings.Contains(dataURL, ";base64,") {
		return ""
	}
	return template.URL(dataURL)
}

// View builds the display model for a state
func (r *Renderer) View(state State) PageView {
	phase := state.Phase()
	return PageView{
		Labels:      r.labels,
		Phase:       phase,
		State:       state,
		Result:      NewResultView(state.Result, r.labels),
		ImageSrc:    imageSrc(state.ImageDataURL),
		ShowAnalyze: phase == PhaseHasImage || phase == PhaseAnalyzing || phase == PhaseError,
	}
}

// RenderPage writes the full HTML page
func (r *Renderer) RenderPage(w io.Writer, state State) error {
	return r.tmpl.ExecuteTemplate(w, "index.html", r.View(state))
}

// RenderPanel writes only the uploader/result panel
func (r *Renderer) RenderPanel(w io.Writer, state State) error {
	return r.tmpl.ExecuteTemplate(w, "panel", r.View(state))
}
