// Package pipeline runs site resolution over a downloaded EDGAR tree: load
// the gazetteer once, resolve each filing to one site, then emit the results.
package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/minesite-cli/internal/coords"
	"github.com/sells-group/minesite-cli/internal/emit"
	"github.com/sells-group/minesite-cli/internal/filing"
	"github.com/sells-group/minesite-cli/internal/gazetteer"
	"github.com/sells-group/minesite-cli/internal/matcher"
	"github.com/sells-group/minesite-cli/internal/model"
	"github.com/sells-group/minesite-cli/internal/resolver"
	"github.com/sells-group/minesite-cli/internal/store"
)

// Options configures a single run.
type Options struct {
	EdgarRoot string
	Gazetteer string
	// Limit caps the number of filings processed; 0 means no limit.
	Limit   int
	Matcher matcher.Options
	Emit    emit.Options
}

// Result is what a run produced.
type Result struct {
	RunID   string
	Sites   *model.SiteCollection
	Summary model.RunSummary
	Output  emit.Result
}

// Pipeline wires the gazetteer, extractor, matcher, resolver and emitter.
type Pipeline struct {
	store     store.Store
	loader    *gazetteer.Loader
	extractor *coords.Extractor
}

// New creates a Pipeline. A nil store disables run history; a nil loader
// reads local gazetteers only.
func New(st store.Store, loader *gazetteer.Loader) *Pipeline {
	if loader == nil {
		loader = &gazetteer.Loader{}
	}
	return &Pipeline{
		store:     st,
		loader:    loader,
		extractor: coords.New(),
	}
}

// Run resolves every filing under opts.EdgarRoot and writes the outputs.
// Filings without coordinates or matches are recorded as unresolved; only
// gazetteer format errors and output failures abort the run.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("edgar_root", opts.EdgarRoot))
	log.Info("pipeline: starting site resolution")

	result := &Result{Sites: &model.SiteCollection{}}

	var runID string
	if p.store != nil {
		run, err := p.store.CreateRun(ctx, opts.EdgarRoot, opts.Gazetteer)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: create run")
		}
		runID = run.ID
		result.RunID = runID
		log = log.With(zap.String("run_id", runID))
	}

	fail := func(err error) (*Result, error) {
		summary := model.SummaryOf(result.Sites)
		summary.Error = err.Error()
		result.Summary = summary
		p.complete(ctx, log, runID, model.RunStatusFailed, summary)
		return result, err
	}

	phase := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		fields := []zap.Field{zap.String("phase", name), zap.Int64("duration_ms", time.Since(start).Milliseconds())}
		if err != nil {
			log.Error("pipeline: phase failed", append(fields, zap.Error(err))...)
			return err
		}
		log.Info("pipeline: phase complete", fields...)
		return nil
	}

	var g *gazetteer.Gazetteer
	if err := phase("gazetteer", func() error {
		var err error
		g, err = p.loader.Load(ctx, opts.Gazetteer)
		return err
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: load gazetteer"))
	}

	m := matcher.New(g, opts.Matcher)

	if err := phase("resolve", func() error {
		_, err := filing.Walk(ctx, opts.EdgarRoot, opts.Limit, func(doc model.FilingDocument) error {
			site := p.ResolveDocument(doc, m)
			result.Sites.Append(site)
			log.Debug("filing resolved",
				zap.String("filing_id", site.FilingID),
				zap.String("method", string(site.Method)),
				zap.Float64("confidence", site.Confidence),
			)
			return nil
		})
		return err
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: resolve filings"))
	}

	if err := phase("emit", func() error {
		out, err := emit.Emit(opts.Emit, result.Sites)
		result.Output = out
		return err
	}); err != nil {
		return fail(eris.Wrap(err, "pipeline: emit"))
	}

	summary := model.SummaryOf(result.Sites)
	summary.GeoJSON = result.Output.GeoJSONPath
	summary.HTMLMap = result.Output.MapPath
	result.Summary = summary

	if p.store != nil {
		if err := p.store.SaveSites(ctx, runID, result.Sites.Sites()); err != nil {
			log.Warn("pipeline: failed to save sites", zap.Error(err))
		}
	}
	p.complete(ctx, log, runID, model.RunStatusComplete, summary)

	log.Info("pipeline: site resolution complete",
		zap.Int("filings", summary.Filings),
		zap.Int("explicit", summary.Explicit),
		zap.Int("fuzzy_match", summary.FuzzyMatch),
		zap.Int("unresolved", summary.Unresolved),
	)
	return result, nil
}

// ResolveDocument extracts coordinates and name matches from one filing and
// merges them into its site record.
func (p *Pipeline) ResolveDocument(doc model.FilingDocument, m *matcher.Matcher) model.ResolvedSite {
	found := p.extractor.All(doc.Text)
	var candidates []model.MatchCandidate
	if m != nil {
		candidates = m.MatchWithin(doc.Text, doc.Jurisdiction)
	}
	return resolver.Resolve(doc, found, candidates)
}

func (p *Pipeline) complete(ctx context.Context, log *zap.Logger, runID string, status model.RunStatus, summary model.RunSummary) {
	if p.store == nil || runID == "" {
		return
	}
	if err := p.store.CompleteRun(ctx, runID, status, summary); err != nil {
		log.Warn("pipeline: failed to complete run", zap.String("status", string(status)), zap.Error(err))
	}
}
