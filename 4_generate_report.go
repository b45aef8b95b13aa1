package geonarrative

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

//go:embed templates/report.html
var htmlTemplate string

//go:embed templates/styles.css
var cssStyles string

const reportTitle = "Regional Narratives"

var GenerateReportCmd = &cobra.Command{
	Use:   "generate-report",
	Short: "Generate the narrative report in both markdown and HTML formats",
	Run: func(cmd *cobra.Command, args []string) {
		settings := LoadSettings(Config.SettingsPath)
		if err := generateReport(settings.Paths); err != nil {
			log.Printf("Failed to generate report: %v", err)
			return
		}
		log.Println("Report generation complete.")
	},
}

func generateReport(paths Paths) error {
	result, err := ReadResult(filepath.Join(paths.Clusters, ResultFile))
	if err != nil {
		return err
	}

	report := FormatReport(result)
	if err := os.WriteFile(paths.Report, []byte(report), 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	log.Printf("Report generated: %s", paths.Report)

	page, err := RenderHTML(report, result.CreatedAt)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(paths.Site, 0755); err != nil {
		return fmt.Errorf("failed to create site directory: %w", err)
	}
	out := filepath.Join(paths.Site, "index.html")
	if err := os.WriteFile(out, []byte(page), 0644); err != nil {
		return fmt.Errorf("failed to write HTML file: %w", err)
	}
	log.Printf("HTML report generated: %s", out)
	return nil
}

// FormatReport renders a clustering result as markdown.
func FormatReport(r *Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", reportTitle)
	fmt.Fprintf(&b, "*Run %s on %s: %d articles, %d clusters*\n\n",
		r.RunID, r.CreatedAt.Format("2 January 2006"), r.NArticles, len(r.Clusters))

	if r.Empty {
		b.WriteString("No narrative clusters survived filtering.\n\n")
		fmt.Fprintf(&b, "> %s\n\n", r.EmptyReason)
	}

	writeQualitySection(&b, r)

	for _, c := range r.Clusters {
		fmt.Fprintf(&b, "## Cluster %d: %d articles\n\n", c.ClusterID+1, c.Size)
		fmt.Fprintf(&b, "📍 Centered at %.4f, %.4f within %.0f km · mean spatial weight %.2f\n\n",
			c.CentroidCoordinates.Lat, c.CentroidCoordinates.Lon, c.GeographicRadiusKm, c.MeanSpatialWeight)

		var mix []string
		for _, class := range Classifications {
			if n := c.Classifications[class]; n > 0 {
				mix = append(mix, fmt.Sprintf("%s %d", class, n))
			}
		}
		if len(mix) > 0 {
			fmt.Fprintf(&b, "**Sources:** %s\n\n", strings.Join(mix, ", "))
		}

		for _, text := range c.RepresentativeTexts {
			fmt.Fprintf(&b, "- %s\n", excerpt(text, 280))
		}
		b.WriteString("\n---\n\n")
	}

	if n := r.National; n != nil {
		b.WriteString("## National Baseline\n\n")
		fmt.Fprintf(&b, "%d syndicated articles, %d unique stories, %.0f%% duplication across %d locations.\n\n",
			n.TotalInstances, n.UniqueStories, n.DuplicationRate*100, n.GeographicSpread)
		if len(n.TopSources) > 0 {
			b.WriteString("| Source | Articles |\n|---|---|\n")
			for _, s := range n.TopSources {
				fmt.Fprintf(&b, "| %s | %d |\n", tableCell(s.Source), s.Count)
			}
			b.WriteString("\n")
		}
		for _, s := range n.TopStories {
			fmt.Fprintf(&b, "- (%d×) %s\n", s.Count, excerpt(s.Text, 200))
		}
		b.WriteString("\n")
	}

	if warnings := sortedUnique(r.Warnings); len(warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- ⚠️ %s\n", markdownEscaper.Replace(w))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func writeQualitySection(b *strings.Builder, r *Result) {
	q := r.Quality
	if q == nil {
		return
	}
	b.WriteString("## Quality\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	rows := []struct {
		name string
		v    *float64
	}{
		{"Silhouette", q.SilhouetteScore},
		{"Davies-Bouldin", q.DaviesBouldin},
		{"Calinski-Harabasz", q.CalinskiHarabasz},
		{"Largest cluster", q.LargestClusterPct},
		{"Balance entropy", q.BalanceEntropy},
	}
	for _, row := range rows {
		value := "n/a"
		if row.v != nil {
			value = fmt.Sprintf("%.3f", *row.v)
		}
		fmt.Fprintf(b, "| %s | %s |\n", row.name, value)
	}
	b.WriteString("\n")
	if q.Assessment != "" {
		fmt.Fprintf(b, "**Assessment:** %s\n\n", q.Assessment)
	}
	for _, rec := range q.Recommendations {
		fmt.Fprintf(b, "- 💡 %s\n", rec)
	}
	if len(q.Recommendations) > 0 {
		b.WriteString("\n")
	}
}

// markdownEscaper neutralizes HTML in article text, which comes from
// third-party publishers.
var markdownEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// excerpt collapses whitespace, shortens text to limit runes and escapes it
// for inclusion in the report.
func excerpt(text string, limit int) string {
	text = strings.Join(strings.Fields(text), " ")
	if cut := leadingRunes(text, limit); cut != text {
		text = cut + "…"
	}
	return markdownEscaper.Replace(text)
}

func tableCell(text string) string {
	return strings.ReplaceAll(markdownEscaper.Replace(text), "|", `\|`)
}

// RenderHTML converts a markdown report into a standalone HTML page.
func RenderHTML(markdownContent string, date time.Time) (string, error) {
	// The page template renders the title itself.
	body := strings.TrimPrefix(markdownContent, "# "+reportTitle+"\n")

	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Linkify,
			extension.Strikethrough,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
		),
	)

	var buf bytes.Buffer
	if err := md.Convert([]byte(body), &buf); err != nil {
		return "", fmt.Errorf("failed to convert markdown to HTML: %w", err)
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML template: %w", err)
	}

	if date.IsZero() {
		date = time.Now()
	}
	data := struct {
		Title string
		Date  string
		Body  template.HTML
		CSS   template.CSS
	}{
		Title: reportTitle,
		Date:  date.Format("2 January 2006"),
		Body:  template.HTML(buf.String()),
		CSS:   template.CSS(cssStyles),
	}

	var result bytes.Buffer
	if err := tmpl.Execute(&result, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}
	return result.String(), nil
}
