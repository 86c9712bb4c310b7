package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"papersearch/config"
	"papersearch/internal/adapter/cache"
	"papersearch/internal/adapter/embedding"
	"papersearch/internal/adapter/store"
	"papersearch/internal/domain"
	"papersearch/internal/metric"
	"papersearch/internal/port"
	"papersearch/internal/usecase"
)

func newEmbedder(cfg *config.Config, m *metric.Metrics) (*embedding.Adapter, error) {
	model, err := embedding.New(cfg.Embedding, embedding.AdapterOptions{
		Logger:  logger,
		Metrics: m,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return model, nil
}

// openIndex opens the configured collection. Read-only opens require an
// existing index so queries never create an empty one.
func openIndex(cfg *config.Config, readOnly bool) (store.Collection, error) {
	dbPath := config.IndexDBPath(cfg.Store.Path, cfg.Store.Backend)
	if readOnly {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("no index found at %s, run 'papersearch index' first: %w", dbPath, domain.ErrStoreUnavailable)
		}
	}
	st, err := store.Open(cfg.Store, readOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return st, nil
}

// newRetriever wires the retrieval service, wrapped in a query cache when
// retrieve.cache_size is set. It warns when the index was built with another
// embedding configuration.
func newRetriever(cfg *config.Config, st store.Collection, m *metric.Metrics) (port.Retriever, error) {
	if info, err := st.SchemaInfo(); err == nil && info.ConfigHash != "" {
		if info.ConfigHash != store.ComputeConfigHash(cfg) {
			logger.Warn("Index was built with a different embedding configuration, results may be meaningless; re-run 'papersearch index'")
		}
	}

	model, err := newEmbedder(cfg, m)
	if err != nil {
		return nil, err
	}

	var r port.Retriever = usecase.NewRetrieveUseCase(model, st, logger, m)
	if cfg.Retrieve.CacheSize > 0 {
		r = cache.NewCachedRetriever(r, cache.NewQueryCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL), m)
	}
	return r, nil
}

// newProgress returns a progress callback drawing a bar on w.
func newProgress(w io.Writer, description string) usecase.ProgressFunc {
	var bar *progressbar.ProgressBar
	var startTime time.Time

	return func(done, total int) {
		if bar == nil {
			startTime = time.Now()
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(w)
				}),
			)
		}

		bar.Set(done)

		if done > 0 {
			elapsed := time.Since(startTime)
			rate := float64(done) / elapsed.Seconds()
			if rate > 0 {
				eta := time.Duration(float64(total-done)/rate) * time.Second
				bar.Describe(fmt.Sprintf("[cyan]%s[reset] ETA: %s", description, formatDuration(eta)))
			}
		}
	}
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "<1s"
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%dm", h, m)
}

func snippet(text string, max int) string {
	r := []rune(text)
	if max <= 0 || len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
