package dashboard

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/aquabill/aquabill-web/internal/billing"
)

const (
	chartWidth   = 720
	chartHeight  = 260
	chartPadding = 40.0
	chartTicks   = 4
)

// MonthlyChart renders the paid-vs-unpaid series as an inline SVG grouped
// bar chart. Amounts are never negative, so the zero line is the x axis.
func MonthlyChart(points []billing.MonthlyPoint) (template.HTML, error) {
	if len(points) == 0 {
		return "", fmt.Errorf("dashboard: chart requires at least one month")
	}

	maxVal := 0.0
	for _, p := range points {
		if p.Paid > maxVal {
			maxVal = p.Paid
		}
		if p.Unpaid > maxVal {
			maxVal = p.Unpaid
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	plotWidth := float64(chartWidth) - 2*chartPadding
	plotHeight := float64(chartHeight) - 2*chartPadding
	scale := plotHeight / maxVal
	baseline := chartPadding + plotHeight
	groupWidth := plotWidth / float64(len(points))
	barWidth := groupWidth / 3

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-label=\"Monthly payments versus unpaid bills\">", chartWidth, chartHeight))

	for i := 0; i <= chartTicks; i++ {
		ratio := float64(i) / float64(chartTicks)
		y := baseline - ratio*plotHeight
		b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"#cbd5f5\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\"></line>", chartPadding, y, chartPadding+plotWidth, y))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"#475569\" font-size=\"10\" text-anchor=\"end\">%.0f</text>", chartPadding-6, y+4, maxVal*ratio))
	}

	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"#475569\" stroke-width=\"1\"></line>", chartPadding, baseline, chartPadding+plotWidth, baseline))

	for i, p := range points {
		baseX := chartPadding + float64(i)*groupWidth
		paidH := p.Paid * scale
		unpaidH := p.Unpaid * scale
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"#3b82f6\" aria-label=\"Paid %s\"></rect>", baseX+barWidth*0.3, baseline-paidH, barWidth, paidH, template.HTMLEscapeString(p.Month)))
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"#ef4444\" aria-label=\"Unpaid %s\"></rect>", baseX+barWidth*1.4, baseline-unpaidH, barWidth, unpaidH, template.HTMLEscapeString(p.Month)))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"#475569\" font-size=\"10\" text-anchor=\"middle\">%s</text>", baseX+groupWidth/2, baseline+14, template.HTMLEscapeString(p.Month)))
	}

	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"#3b82f6\"></rect>", chartPadding, 14.0))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"#475569\" font-size=\"10\">Paid</text>", chartPadding+14, 23.0))
	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"#ef4444\"></rect>", chartPadding+90, 14.0))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"#475569\" font-size=\"10\">Unpaid</text>", chartPadding+104, 23.0))

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}
