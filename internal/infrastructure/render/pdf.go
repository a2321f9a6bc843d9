package render

import (
	"context"
	"encoding/base64"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/turtacn/KeyIP-Analytics/internal/config"
	"github.com/turtacn/KeyIP-Analytics/internal/domain/report"
	"github.com/turtacn/KeyIP-Analytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/KeyIP-Analytics/pkg/errors"
)

const pdfFooter = `<div style="width:100%;text-align:center;font-size:9px;color:#666;">` +
	`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`

// PDF prints the HTML rendering through headless Chrome.
type PDF struct {
	html       *HTML
	chromePath string
	timeout    time.Duration
	logger     logging.Logger
}

// NewPDF returns the PDF renderer. An empty ChromePath searches the usual
// install locations before falling back to chromedp's own lookup.
func NewPDF(cfg config.RenderConfig, logger logging.Logger) *PDF {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	p := &PDF{
		html:       NewHTML(),
		chromePath: cfg.ChromePath,
		timeout:    cfg.PDFTimeout,
		logger:     logger.Named("pdf"),
	}
	if p.chromePath == "" {
		p.chromePath = detectChromePath()
	}
	if p.timeout <= 0 {
		p.timeout = config.DefaultPDFRenderTimeout
	}
	return p
}

func (*PDF) Format() report.Format { return report.FormatPDF }

func (p *PDF) Render(ctx context.Context, r *report.Report) ([]byte, error) {
	doc, err := p.html.Render(ctx, r)
	if err != nil {
		return nil, err
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	}
	if p.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(p.chromePath))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(timeoutCtx, append(chromedp.DefaultExecAllocatorOptions[:], opts...)...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	var pdf []byte
	dataURL := "data:text/html;base64," + base64.StdEncoding.EncodeToString(doc)
	err = chromedp.Run(taskCtx,
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			out, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithDisplayHeaderFooter(true).
				WithHeaderTemplate(`<div></div>`).
				WithFooterTemplate(pdfFooter).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithMarginTop(0.5).
				WithMarginBottom(0.75).
				WithMarginLeft(0.45).
				WithMarginRight(0.45).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = out
			return nil
		}),
	)
	if err != nil {
		if ctxErr := timeoutCtx.Err(); ctxErr != nil {
			return nil, errors.FromContext(ctxErr)
		}
		p.logger.Warn("headless chrome failed", logging.String("chrome_path", p.chromePath), logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeUnavailable, "pdf rendering unavailable")
	}
	return pdf, nil
}

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
