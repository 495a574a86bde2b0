// Package cmd implements the ai-visibility-audit command line.
//
// Architecture overview:
//   - HTTP API: internal/api.Server accepts audit submissions, validates and
//     normalizes the domains, and persists a pending job.
//   - Worker: internal/worker.Worker holds a single-instance lease and polls
//     the job store, running one job at a time through crawling, evidence
//     extraction, generation and archiving.
//   - Crawl pipeline: the Colly fetcher handles robots.txt, sitemaps and
//     pages; thin script-heavy homepages can be re-rendered with chromedp.
//   - Persistence and fanout: jobs, pages and artifacts live in memory or
//     Postgres; finished documents are archived to memory, local disk or GCS
//     and announced on Pub/Sub when configured.
//   - Configuration and plumbing: Viper loads config files and AUDIT_*
//     environment overrides, zap provides structured logging and Prometheus
//     metrics are served on /metrics.
//
// Quick checklist:
//   - Set AUDIT_LLM_API_KEY (or llm.api_key) before running worker.
//   - Run locally: go run . worker --config config.yaml
//   - Audit a site once: go run . crawl example.com rival.com (add
//     --skip-audit to stop after evidence extraction)
package cmd
