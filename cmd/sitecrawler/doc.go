// Command sitecrawler crawls a single site and reports the status code of
// every page it can reach from a seed URL.
//
// Architecture overview:
//   - Session: internal/session owns the visited registry, the frontier, the
//     result store and the coordinator for one seed. Nothing is shared between
//     sessions.
//   - Workers: a fixed pool (crawler.workers) claims URLs from the coordinator,
//     fetches them with the Colly-based fetcher (or headless Chrome with
//     --headless), records a visit or a failure,
//     and enqueues the in-scope links it discovers. The registry's atomic
//     insert-if-absent guarantees each URL is fetched once.
//   - Termination: the crawl ends when the frontier is empty and no worker is
//     between claiming a URL and finishing it. SIGINT/SIGTERM end it early and
//     the partial report is still printed.
//   - Report: status-code, not-found and failure tables on stdout, then the
//     optional JSON file, GCS object, Postgres rows and Pub/Sub message.
//   - Plumbing: Viper reads flags, env (SITECRAWLER_*) and an optional config
//     file; zap logs to stderr; Prometheus metrics and a live /v1/status are
//     served when metrics.addr is set.
//
// Usage:
//
//	sitecrawler [--workers N] [--report-json out.json] [--metrics-addr :9100] [--headless] <seed-url>
//
// Exit status is 2 for configuration errors (bad seed, bad flags, bad config
// file), 1 when the crawl or an export fails, and 0 otherwise.
package main
