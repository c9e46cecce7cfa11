// Package pipeline runs a statement through the loader, layout detector,
// table extractor, field normalizer, transaction assembler and validator.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/statement-ledger/internal/assembler"
	"fjacquet/statement-ledger/internal/classifier"
	"fjacquet/statement-ledger/internal/detector"
	"fjacquet/statement-ledger/internal/extractor"
	"fjacquet/statement-ledger/internal/loader"
	"fjacquet/statement-ledger/internal/logging"
	"fjacquet/statement-ledger/internal/metrics"
	"fjacquet/statement-ledger/internal/models"
	"fjacquet/statement-ledger/internal/normalizer"
	"fjacquet/statement-ledger/internal/parsererror"
	"fjacquet/statement-ledger/internal/templates"
	"fjacquet/statement-ledger/internal/validator"
)

// DefaultConfidenceFloor is the detector floor used when none is configured.
const DefaultConfidenceFloor = 0.5

// ErrUnknownTemplate is returned when a forced template is not in the registry.
var ErrUnknownTemplate = errors.New("unknown template")

// Options configures an Engine. Classifier and Metrics are optional.
type Options struct {
	Timeout         time.Duration
	ConfidenceFloor float64
	Workers         int
	Loader          loader.Options
	Validation      validator.Options
	Classifier      classifier.Classifier
	Metrics         *metrics.Metrics
}

// DefaultOptions returns the engine defaults without classifier or metrics.
func DefaultOptions() Options {
	return Options{
		Timeout:         60 * time.Second,
		ConfidenceFloor: DefaultConfidenceFloor,
		Loader:          loader.DefaultOptions(),
		Validation:      validator.DefaultOptions(),
	}
}

// Engine processes statements against a template registry. It is safe for
// concurrent use.
type Engine struct {
	registry   *templates.Registry
	loader     *loader.Loader
	detector   *detector.Detector
	extractor  *extractor.Extractor
	normalizer *normalizer.Normalizer
	assembler  *assembler.Assembler
	validator  *validator.Validator
	classifier classifier.Classifier
	metrics    *metrics.Metrics
	logger     logging.Logger
	timeout    time.Duration
	workers    int
}

// New wires an Engine. A nil registry is treated as empty.
func New(registry *templates.Registry, opts Options, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}
	if registry == nil {
		registry, _ = templates.NewRegistry()
	}
	n := normalizer.New(logger)
	return &Engine{
		registry:   registry,
		loader:     loader.New(opts.Loader, logger),
		detector:   detector.New(opts.ConfidenceFloor, logger),
		extractor:  extractor.New(logger),
		normalizer: n,
		assembler:  assembler.New(n, logger),
		validator:  validator.New(opts.Validation, logger),
		classifier: opts.Classifier,
		metrics:    opts.Metrics,
		logger:     logger,
		timeout:    opts.Timeout,
		workers:    opts.Workers,
	}
}

// Registry returns the templates the engine detects against.
func (e *Engine) Registry() *templates.Registry { return e.registry }

// Process loads data and runs the full pipeline. Only loader failures,
// cancellation and the processing deadline are returned as errors; every
// other problem is recorded in the ledger report.
func (e *Engine) Process(ctx context.Context, data []byte, mime string) (*models.Ledger, error) {
	return e.process(ctx, data, mime, "")
}

// ProcessWithTemplate is Process with detection replaced by the named template.
func (e *Engine) ProcessWithTemplate(ctx context.Context, data []byte, mime, name string) (*models.Ledger, error) {
	if _, ok := e.registry.Get(name); !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownTemplate, name)
	}
	return e.process(ctx, data, mime, name)
}

func (e *Engine) process(ctx context.Context, data []byte, mime, forced string) (*models.Ledger, error) {
	start := time.Now()
	ctx, cancel := e.budget(ctx)
	defer cancel()

	doc, err := e.loader.Load(ctx, data, mime)
	if err != nil {
		err = e.fail(ctx, err)
		e.logger.WithError(err).Warn("Document rejected",
			logging.F(logging.FieldBytes, len(data)),
			logging.F(logging.FieldReason, parsererror.Kind(err)))
		return nil, err
	}
	return e.run(ctx, doc, forced, start)
}

// Run processes an already loaded document.
func (e *Engine) Run(ctx context.Context, doc *models.Document) (*models.Ledger, error) {
	ctx, cancel := e.budget(ctx)
	defer cancel()
	return e.run(ctx, doc, "", time.Now())
}

// Detect loads data and scores every template without extracting anything.
func (e *Engine) Detect(ctx context.Context, data []byte, mime string) (detector.Detection, error) {
	ctx, cancel := e.budget(ctx)
	defer cancel()

	doc, err := e.loader.Load(ctx, data, mime)
	if err != nil {
		return detector.Detection{}, e.fail(ctx, err)
	}
	return e.detector.Detect(doc, e.registry.Templates()), nil
}

func (e *Engine) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) run(ctx context.Context, doc *models.Document, forced string, start time.Time) (*models.Ledger, error) {
	if doc == nil {
		return nil, &parsererror.CorruptFileError{Format: "unknown", Reason: "no document"}
	}
	if err := ctx.Err(); err != nil {
		return nil, e.fail(ctx, err)
	}

	tmpl, detection := e.resolveTemplate(ctx, doc, forced)
	if err := ctx.Err(); err != nil {
		return nil, e.fail(ctx, err)
	}

	table, err := e.extractor.ExtractTable(ctx, doc, tmpl)
	if err != nil {
		return nil, e.fail(ctx, err)
	}

	results := make([]models.RowResult, 0, len(table.Rows))
	for i, row := range table.Rows {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, e.fail(ctx, err)
			}
		}
		results = append(results, e.normalizer.Normalize(row, tmpl))
	}

	info := e.normalizer.NormalizeSummary(e.extractor.ExtractSummary(doc, tmpl), tmpl)
	if info.Bank == "" {
		info.Bank = extractor.BankName(doc)
	}

	ledger := e.assembler.Assemble(results, tmpl, info)
	ledger.Detection = detection
	ledger.PagesProcessed = doc.PageCount()
	ledger.DetectedHeaders = table.Headers
	if err := ctx.Err(); err != nil {
		return nil, e.fail(ctx, err)
	}

	report := e.validator.Validate(ledger)
	if detection.Unknown {
		report.Add(models.Issue{
			Kind:     models.IssueLayoutUnknown,
			Severity: models.SeverityWarning,
			Message:  layoutMessage(detection),
			Index:    -1,
		})
	}
	ledger.Report = report

	e.observe(ledger, time.Since(start))
	e.logger.Info("Statement processed",
		logging.F(logging.FieldDigest, doc.Digest()),
		logging.F(logging.FieldTemplate, ledger.Template),
		logging.F(logging.FieldConfidence, detection.Confidence),
		logging.F(logging.FieldCount, ledger.Count()),
		logging.F(logging.FieldDefective, len(ledger.Defective)),
		logging.F(logging.FieldStatus, string(report.Status)),
		logging.F(logging.FieldDuration, time.Since(start).String()))
	return ledger, nil
}

// resolveTemplate picks the template for doc: the forced one, the detected
// one, a classifier suggestion, or an inferred generic template. The
// template is nil when nothing tabular was found.
func (e *Engine) resolveTemplate(ctx context.Context, doc *models.Document, forced string) (*models.Template, models.DetectionInfo) {
	if forced != "" {
		tmpl, _ := e.registry.Get(forced)
		return tmpl, models.DetectionInfo{Template: tmpl.Name, Confidence: 1, Source: models.DetectionForced}
	}

	det := e.detector.Detect(doc, e.registry.Templates())
	if e.metrics != nil {
		e.metrics.DetectionConfidence.Observe(det.Confidence)
	}
	if !det.Unknown {
		return det.Template, models.DetectionInfo{
			Template:   det.Template.Name,
			Confidence: det.Confidence,
			Source:     models.DetectionTemplate,
		}
	}

	if tmpl, confidence, ok := e.classify(ctx, doc); ok {
		return tmpl, models.DetectionInfo{
			Template:   tmpl.Name,
			Confidence: confidence,
			Source:     models.DetectionClassifier,
			Unknown:    true,
		}
	}

	info := models.DetectionInfo{Confidence: det.Confidence, Source: models.DetectionHeuristic, Unknown: true}
	tmpl, err := e.extractor.InferTemplate(doc)
	if err != nil {
		e.logger.Debug("No table could be inferred", logging.F(logging.FieldReason, err.Error()))
		return nil, info
	}
	info.Template = tmpl.Name
	return tmpl, info
}

// classify asks the classifier about doc. A failure or a weak answer is not
// an error: the caller falls back to inference.
func (e *Engine) classify(ctx context.Context, doc *models.Document) (*models.Template, float64, bool) {
	if e.classifier == nil || doc.IsEmpty() || e.registry.Len() == 0 {
		return nil, 0, false
	}

	candidates := make([]classifier.Candidate, 0, e.registry.Len())
	for _, t := range e.registry.Templates() {
		candidates = append(candidates, classifier.Candidate{Name: t.Name, Bank: t.Bank})
	}

	suggestion, err := e.classifier.Classify(ctx, doc.Text(1), candidates)
	if err != nil {
		e.countClassifier("error")
		e.logger.WithError(err).Warn("Layout classifier failed, inferring the layout")
		return nil, 0, false
	}
	tmpl, ok := e.registry.Get(suggestion.Template)
	if !ok || suggestion.Confidence < e.detector.Floor() {
		e.countClassifier("rejected")
		e.logger.Debug("Classifier suggestion rejected",
			logging.F(logging.FieldTemplate, suggestion.Template),
			logging.F(logging.FieldConfidence, suggestion.Confidence))
		return nil, 0, false
	}
	e.countClassifier("accepted")
	return tmpl, suggestion.Confidence, true
}

func (e *Engine) countClassifier(outcome string) {
	if e.metrics != nil {
		e.metrics.ClassifierRequests.WithLabelValues(outcome).Inc()
	}
}

// fail maps context endings to the pipeline error taxonomy.
func (e *Engine) fail(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		err = &parsererror.ResourceLimitError{Resource: "processing time", Limit: int64(e.timeout / time.Second)}
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		err = fmt.Errorf("%w: %v", parsererror.ErrCancelled, err)
	}
	if e.metrics != nil {
		e.metrics.LoaderErrors.WithLabelValues(parsererror.Kind(err)).Inc()
	}
	return err
}

func (e *Engine) observe(ledger *models.Ledger, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.DocumentsProcessed.WithLabelValues(string(ledger.Report.Status)).Inc()
	e.metrics.ProcessingDuration.Observe(elapsed.Seconds())
	e.metrics.TransactionsTotal.Add(float64(ledger.Count()))
	e.metrics.DefectiveRows.Add(float64(len(ledger.Defective)))
}

func layoutMessage(d models.DetectionInfo) string {
	switch {
	case d.Source == models.DetectionClassifier:
		return fmt.Sprintf("no template cleared the confidence floor; classifier chose %s", d.Template)
	case d.Template != "":
		return "no template cleared the confidence floor; columns were inferred"
	default:
		return "no template cleared the confidence floor and no table was found"
	}
}
