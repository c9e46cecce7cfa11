// Package report renders ledger validation reports.
package report

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/models"
)

// Supported formats.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatText = "text"
)

// xmlReport names the XML root element.
type xmlReport struct {
	XMLName xml.Name `xml:"report"`
	models.Report
}

// Generator renders validation reports in various formats.
type Generator struct {
	logger logging.Logger
}

// NewGenerator creates a new instance of Generator.
func NewGenerator(logger logging.Logger) *Generator {
	return &Generator{logger: logging.For(logger, "report_generator")}
}

// Generate renders report as json, xml or text.
func (g *Generator) Generate(report models.Report, format string) ([]byte, error) {
	if report.Issues == nil {
		report.Issues = []models.Issue{}
	}
	switch strings.ToLower(format) {
	case FormatJSON:
		return g.generateJSON(report)
	case FormatXML:
		return g.generateXML(report)
	case FormatText, "":
		return []byte(Text(report)), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

func (g *Generator) generateJSON(report models.Report) ([]byte, error) {
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal JSON report")
		return nil, fmt.Errorf("failed to marshal JSON report: %w", err)
	}
	return out, nil
}

func (g *Generator) generateXML(report models.Report) ([]byte, error) {
	out, err := xml.MarshalIndent(xmlReport{Report: report}, "", "  ")
	if err != nil {
		g.logger.WithError(err).Error("Failed to marshal XML report")
		return nil, fmt.Errorf("failed to marshal XML report: %w", err)
	}
	return []byte(xml.Header + string(out)), nil
}

// Text is the human-readable rendering, one issue per line.
func Text(report models.Report) string {
	var sb strings.Builder
	status := report.Status
	if status == "" {
		status = models.StatusFor(report.Issues)
	}
	fmt.Fprintf(&sb, "Status: %s\n", status)
	if len(report.Issues) == 0 {
		sb.WriteString("No issues found\n")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Issues: %d\n", len(report.Issues))
	for _, issue := range report.Issues {
		fmt.Fprintf(&sb, "  %s\n", issue)
	}
	return sb.String()
}
