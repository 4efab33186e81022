package reporter

import (
	"context"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/kevinfinalboss/lxcferry/internal/logger"
	"github.com/kevinfinalboss/lxcferry/pkg/types"
)

var reportTemplate = template.Must(template.New("report").Parse(reportHTML))

type HTMLReporter struct {
	logger     *logger.Logger
	reportsDir string
	settings   types.ReportSettings
	now        func() time.Time
}

func NewHTMLReporter(logger *logger.Logger, reportsDir string, settings types.ReportSettings) *HTMLReporter {
	return &HTMLReporter{
		logger:     logger,
		reportsDir: reportsDir,
		settings:   settings,
		now:        time.Now,
	}
}

func (r *HTMLReporter) Name() string {
	return "html_report"
}

// Record writes the report for a finished run.
func (r *HTMLReporter) Record(ctx context.Context, summary *types.MigrationSummary) error {
	_, err := r.GenerateReport(summary)
	return err
}

func (r *HTMLReporter) GenerateReport(summary *types.MigrationSummary) (string, error) {
	if err := os.MkdirAll(r.reportsDir, 0755); err != nil {
		return "", fmt.Errorf("falha ao criar diretório de relatórios: %w", err)
	}

	timestamp := r.now()
	prefix := "lxcferry-report"
	if summary.DryRun {
		prefix = "lxcferry-dryrun"
	}
	filename := fmt.Sprintf("%s-%s.html", prefix, timestamp.Format("2006-01-02_15-04-05"))
	reportPath := filepath.Join(r.reportsDir, filename)

	data := r.buildReportData(summary, timestamp)

	htmlContent, err := generateHTML(data)
	if err != nil {
		return "", fmt.Errorf("falha ao gerar HTML: %w", err)
	}

	if err := os.WriteFile(reportPath, []byte(htmlContent), 0644); err != nil {
		return "", fmt.Errorf("falha ao salvar relatório: %w", err)
	}

	r.logger.Info("html_report_generated").
		Str("file", reportPath).
		Str("mode", getExecutionMode(summary.DryRun)).
		Int("total_containers", summary.TotalContainers).
		Send()

	return reportPath, nil
}

func (r *HTMLReporter) buildReportData(summary *types.MigrationSummary, timestamp time.Time) types.ReportData {
	settings := r.settings
	settings.DestinationHost = summary.DestinationHost

	return types.ReportData{
		Title:             getReportTitle(summary.DryRun),
		Timestamp:         timestamp.Format("2006-01-02 15:04:05"),
		ExecutionMode:     getExecutionMode(summary.DryRun),
		Summary:           summary,
		Config:            settings,
		Statistics:        calculateStatistics(summary),
		ContainersByState: buildContainerStatusList(summary),
		HasFailures:       summary.HasFailures(),
	}
}

func calculateStatistics(summary *types.MigrationSummary) types.ReportStatistics {
	total := float64(summary.TotalContainers)
	if total == 0 {
		total = 1
	}

	stats := types.ReportStatistics{
		TotalContainers:  summary.TotalContainers,
		SuccessRate:      float64(summary.SuccessCount) / total * 100,
		FailureRate:      float64(summary.FailureCount) / total * 100,
		ProcessingTime:   summary.Duration.Round(time.Second).String(),
		LargestContainer: "N/A",
	}

	var transferred, largest uint64
	for _, result := range summary.Results {
		if result.Retries > 0 {
			stats.RetriedContainers++
			stats.TotalRetries += result.Retries
		}
		if !result.Succeeded() {
			continue
		}
		transferred += result.SourceSize
		if result.SourceSize > largest {
			largest = result.SourceSize
			stats.LargestContainer = fmt.Sprintf("%s (%s)", result.Name, humanize.IBytes(result.SourceSize))
		}
	}
	stats.TotalTransferred = humanize.IBytes(transferred)

	return stats
}

func buildContainerStatusList(summary *types.MigrationSummary) []types.ContainerStatus {
	containers := make([]types.ContainerStatus, 0, len(summary.Results))

	for _, result := range summary.Results {
		statusClass := "success"
		switch {
		case result.Outcome == types.OutcomeAborted:
			statusClass = "warning"
		case !result.Succeeded():
			statusClass = "danger"
		case result.VerifiedAfterRetries():
			statusClass = "info"
		}

		size := "-"
		if result.SourceSize > 0 {
			size = humanize.IBytes(result.SourceSize)
		}

		containers = append(containers, types.ContainerStatus{
			Name:        result.Name,
			Outcome:     outcomeLabel(result.Outcome),
			StatusClass: statusClass,
			FailedStep:  string(result.FailedStep),
			Retries:     result.Retries,
			Size:        size,
			Duration:    result.Duration.Round(time.Millisecond).String(),
			Error:       result.ErrorMessage(),
		})
	}

	return containers
}

func outcomeLabel(outcome types.Outcome) string {
	switch outcome {
	case types.OutcomeSuccess:
		return "Sucesso"
	case types.OutcomeStopFailed:
		return "Falha ao parar"
	case types.OutcomeProvisionFailed:
		return "Falha no provisionamento"
	case types.OutcomeConfigTransferFailed:
		return "Falha ao copiar config"
	case types.OutcomeVerificationExhausted:
		return "Verificação esgotada"
	case types.OutcomeAborted:
		return "Abortado"
	case types.OutcomeInvalidName:
		return "Nome inválido"
	default:
		return string(outcome)
	}
}

func generateHTML(data types.ReportData) (string, error) {
	var buf strings.Builder
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func getReportTitle(isDryRun bool) string {
	if isDryRun {
		return "lxcferry - Relatório de Simulação"
	}
	return "lxcferry - Relatório de Migração"
}

func getExecutionMode(isDryRun bool) string {
	if isDryRun {
		return "Simulação (Dry Run)"
	}
	return "Produção (Real)"
}

const reportHTML = `<!DOCTYPE html>
<html lang="pt-BR">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - {{.Timestamp}}</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background: #f4f6f8; color: #333; line-height: 1.6; }
        .container { max-width: 1200px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #2f4858 0%, #33658a 100%); color: white; padding: 30px; border-radius: 10px; margin-bottom: 30px; }
        .header h1 { font-size: 2.2rem; margin-bottom: 10px; }
        .stats-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(220px, 1fr)); gap: 20px; margin-bottom: 30px; }
        .stat-card { background: white; padding: 25px; border-radius: 10px; box-shadow: 0 5px 15px rgba(0,0,0,0.08); border-left: 5px solid #33658a; }
        .stat-card h3 { color: #33658a; font-size: 2rem; margin-bottom: 5px; }
        .section { background: white; margin-bottom: 30px; border-radius: 10px; overflow: hidden; box-shadow: 0 5px 15px rgba(0,0,0,0.08); }
        .section-header { background: #33658a; color: white; padding: 20px; font-size: 1.3rem; font-weight: 600; }
        .section-content { padding: 25px; }
        .table { width: 100%; border-collapse: collapse; }
        .table th, .table td { padding: 12px; text-align: left; border-bottom: 1px solid #eee; }
        .table th { background: #f8f9fa; }
        .badge { padding: 4px 12px; border-radius: 20px; font-size: 0.85rem; font-weight: 500; }
        .badge.success { background: #d4edda; color: #155724; }
        .badge.info { background: #d1ecf1; color: #0c5460; }
        .badge.warning { background: #fff3cd; color: #856404; }
        .badge.danger { background: #f8d7da; color: #721c24; }
        .progress-bar { width: 100%; height: 8px; background: #eee; border-radius: 4px; overflow: hidden; }
        .progress-fill { height: 100%; }
        .progress-success { background: #28a745; }
        .progress-danger { background: #dc3545; }
        .config-grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(200px, 1fr)); gap: 15px; }
        .config-item { padding: 15px; background: #f8f9fa; border-radius: 8px; border-left: 3px solid #33658a; }
        .footer { text-align: center; padding: 30px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Relatório gerado em {{.Timestamp}} | Modo: {{.ExecutionMode}} | Execução {{.Summary.RunID}}</p>
        </div>

        <div class="stats-grid">
            <div class="stat-card"><h3>{{.Statistics.TotalContainers}}</h3><p>Containers</p></div>
            <div class="stat-card"><h3>{{.Summary.SuccessCount}}</h3><p>Migrados</p></div>
            <div class="stat-card"><h3>{{.Summary.FailureCount}}</h3><p>Falhas</p></div>
            <div class="stat-card"><h3>{{.Statistics.TotalTransferred}}</h3><p>Transferido</p></div>
        </div>

        <div class="section">
            <div class="section-header">📊 Estatísticas</div>
            <div class="section-content">
                <div style="margin-bottom: 20px;">
                    <span>Taxa de Sucesso {{printf "%.1f%%" .Statistics.SuccessRate}}</span>
                    <div class="progress-bar"><div class="progress-fill progress-success" style="width: {{printf "%.1f" .Statistics.SuccessRate}}%"></div></div>
                </div>
                {{if .HasFailures}}
                <div style="margin-bottom: 20px;">
                    <span>Taxa de Falhas {{printf "%.1f%%" .Statistics.FailureRate}}</span>
                    <div class="progress-bar"><div class="progress-fill progress-danger" style="width: {{printf "%.1f" .Statistics.FailureRate}}%"></div></div>
                </div>
                {{end}}
                <p>Containers com retentativas: {{.Statistics.RetriedContainers}} ({{.Statistics.TotalRetries}} retentativas)</p>
                <p>Maior container: {{.Statistics.LargestContainer}}</p>
                <p>Duração: {{.Statistics.ProcessingTime}}</p>
            </div>
        </div>

        <div class="section">
            <div class="section-header">⚙️ Configuração da Execução</div>
            <div class="section-content">
                <div class="config-grid">
                    <div class="config-item"><strong>Destino:</strong><br>{{.Config.DestinationHost}}</div>
                    <div class="config-item"><strong>Origem:</strong><br>{{.Config.SourceRoot}}</div>
                    <div class="config-item"><strong>Raiz no destino:</strong><br>{{.Config.DestinationRoot}}</div>
                    <div class="config-item"><strong>Armazenamento:</strong><br>{{.Config.StorageBackend}}</div>
                    <div class="config-item"><strong>Concorrência:</strong><br>{{.Config.Concurrency}}</div>
                    <div class="config-item"><strong>Retentativas:</strong><br>{{.Config.RetryPolicy}}</div>
                    <div class="config-item"><strong>Idioma:</strong><br>{{.Config.Language}}</div>
                </div>
            </div>
        </div>

        <div class="section">
            <div class="section-header">📋 Containers</div>
            <div class="section-content">
                <table class="table">
                    <thead>
                        <tr>
                            <th>Container</th>
                            <th>Resultado</th>
                            <th>Etapa</th>
                            <th>Retentativas</th>
                            <th>Tamanho</th>
                            <th>Duração</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .ContainersByState}}
                        <tr>
                            <td><strong>{{.Name}}</strong></td>
                            <td><span class="badge {{.StatusClass}}">{{.Outcome}}</span></td>
                            <td>{{.FailedStep}}</td>
                            <td>{{.Retries}}</td>
                            <td>{{.Size}}</td>
                            <td>{{.Duration}}</td>
                        </tr>
                        {{if .Error}}
                        <tr style="background: #fff3cd;">
                            <td colspan="6" style="font-size: 0.9rem; color: #856404;"><strong>Erro:</strong> {{.Error}}</td>
                        </tr>
                        {{end}}
                        {{end}}
                    </tbody>
                </table>
            </div>
        </div>

        <div class="footer">
            <p><strong>lxcferry</strong> | Relatório gerado automaticamente</p>
        </div>
    </div>
</body>
</html>`
