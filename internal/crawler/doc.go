// Package crawler defines the shared vocabulary of the site crawl engine: the
// record types produced for every visited URL, the collaborator interfaces the
// worker pool depends on, the error taxonomy, and the scope rules that decide
// which discovered links may enter the frontier.
package crawler
