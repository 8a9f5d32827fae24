package monitor

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"telegram-userbot/internal/domain/fingerprint"
	"telegram-userbot/internal/domain/locale"
	"telegram-userbot/internal/domain/scrape"
	"telegram-userbot/internal/domain/trigger"
	"telegram-userbot/internal/domain/update"
	"telegram-userbot/internal/infra/logger"

	"golang.org/x/sync/semaphore"
)

// defaultFetchConcurrency bounds how many locale fetches run at once,
// to respect Apple's origin.
const defaultFetchConcurrency = 4

// Paths collects every file the tick orchestration reads or writes,
// all relative to the shared data directory (§6 of the external
// contract).
type Paths struct {
	DataDir string
}

func (p Paths) catalogPath() string     { return filepath.Join(p.DataDir, "language_urls.json") }
func (p Paths) namesPath() string       { return filepath.Join(p.DataDir, "language_names.json") }
func (p Paths) fingerprintPath() string { return filepath.Join(p.DataDir, "updates_tracking.json") }
func (p Paths) triggerPath() string     { return filepath.Join(p.DataDir, "new_updates_trigger.json") }
func (p Paths) localeStorePath(tag string) string {
	return filepath.Join(p.DataDir, "updates", tag+".json")
}

// Orchestrator runs one full monitor tick: index reconcile -> bounded-
// concurrency per-locale scrape -> strictly sequential id-assign and
// fingerprint update -> trigger write.
type Orchestrator struct {
	paths            Paths
	indexURL         string
	httpClient       *http.Client
	fetchConcurrency int64
}

// NewOrchestrator builds an Orchestrator rooted at dataDir, fetching
// Apple's locale index from indexURL.
func NewOrchestrator(dataDir, indexURL string, client *http.Client) *Orchestrator {
	if client == nil {
		client = http.DefaultClient
	}
	return &Orchestrator{
		paths:            Paths{DataDir: dataDir},
		indexURL:         indexURL,
		httpClient:       client,
		fetchConcurrency: defaultFetchConcurrency,
	}
}

// localeOutcome is the per-locale result of a single tick, collected
// concurrently then applied sequentially.
type localeOutcome struct {
	tag    string
	result scrape.Result
	err    error
}

// Tick runs one full pass of the monitor pipeline.
func (o *Orchestrator) Tick(ctx context.Context) error {
	catalog, err := locale.LoadCatalog(o.paths.catalogPath())
	if err != nil {
		return fmt.Errorf("monitor: load catalog: %w", err)
	}
	names, err := locale.LoadNames(o.paths.namesPath())
	if err != nil {
		return fmt.Errorf("monitor: load names: %w", err)
	}
	ledger, err := fingerprint.Load(o.paths.fingerprintPath())
	if err != nil {
		return fmt.Errorf("monitor: load fingerprint ledger: %w", err)
	}

	indexResult, err := o.fetchIndex(ctx, catalog.Snapshot())
	if err != nil {
		return fmt.Errorf("monitor: fetch locale index: %w", err)
	}

	if len(indexResult.Classification.Updated) > 0 || len(indexResult.Classification.Added) > 0 ||
		len(indexResult.Classification.Removed) > 0 {
		logger.Infof("monitor: locale index reconciled: added=%v removed=%v updated=%v",
			indexResult.Classification.Added, indexResult.Classification.Removed, indexResult.Classification.Updated)
	}

	for _, removedTag := range indexResult.Classification.Removed {
		if priorURL, ok := catalog.URL(removedTag); ok {
			ledger.Delete(priorURL)
		}
	}

	outcomes := o.scrapeAll(ctx, indexResult.URLs, ledger)

	novelty := make(map[string][]int)

	for _, outcome := range outcomes {
		if outcome.err != nil {
			logger.Errorf("monitor: scrape %s failed, fingerprint left unchanged: %v", outcome.tag, outcome.err)
			continue
		}
		if outcome.result.Unchanged {
			continue
		}

		localeURL := indexResult.URLs[outcome.tag]
		storePath := o.paths.localeStorePath(outcome.tag)

		existing, err := update.LoadStore(storePath)
		if err != nil {
			logger.Errorf("monitor: load store for %s failed, fingerprint left unchanged: %v", outcome.tag, err)
			continue
		}

		assigned := update.Assign(outcome.result.Records, existing)
		newStore := &update.Store{Updates: assigned.Updates}
		if err := newStore.Save(storePath); err != nil {
			logger.Errorf("monitor: save store for %s failed, aborting tick for this locale: %v", outcome.tag, err)
			continue
		}

		ledger.Set(localeURL, outcome.result.Fingerprint)

		if len(assigned.Novelty) > 0 {
			novelty[outcome.tag] = assigned.Novelty
		}
	}

	catalog.Replace(indexResult.URLs)
	if err := catalog.Save(o.paths.catalogPath()); err != nil {
		return fmt.Errorf("monitor: save catalog: %w", err)
	}
	for tag, name := range indexResult.Names {
		names.Set(tag, name)
	}
	if err := names.Save(o.paths.namesPath()); err != nil {
		return fmt.Errorf("monitor: save names: %w", err)
	}
	if err := ledger.Save(o.paths.fingerprintPath()); err != nil {
		return fmt.Errorf("monitor: save fingerprint ledger: %w", err)
	}

	if len(novelty) > 0 {
		if err := trigger.Write(o.paths.triggerPath(), novelty); err != nil {
			return fmt.Errorf("monitor: write trigger: %w", err)
		}
		logger.Infof("monitor: trigger written for %d locale(s)", len(novelty))
	}

	return nil
}

func (o *Orchestrator) fetchIndex(ctx context.Context, prior map[string]string) (locale.ReconcileResult, error) {
	doc, err := scrape.FetchDocument(ctx, o.httpClient, o.indexURL)
	if err != nil {
		return locale.ReconcileResult{}, err
	}
	return locale.Reconcile(doc, o.indexURL, prior)
}

func (o *Orchestrator) scrapeAll(ctx context.Context, urls map[string]string, ledger *fingerprint.Ledger) []localeOutcome {
	sem := semaphore.NewWeighted(o.fetchConcurrency)
	outcomes := make([]localeOutcome, len(urls))
	tags := make([]string, 0, len(urls))
	for tag := range urls {
		tags = append(tags, tag)
	}

	var wg sync.WaitGroup
	for i, tag := range tags {
		if err := sem.Acquire(ctx, 1); err != nil {
			outcomes[i] = localeOutcome{tag: tag, err: err}
			continue
		}
		wg.Add(1)
		go func(i int, tag, localeURL string) {
			defer wg.Done()
			defer sem.Release(1)

			prior, _ := ledger.Get(localeURL)
			result, err := scrape.Fetch(ctx, o.httpClient, localeURL, prior)
			outcomes[i] = localeOutcome{tag: tag, result: result, err: err}
		}(i, tag, urls[tag])
	}
	wg.Wait()

	return outcomes
}
