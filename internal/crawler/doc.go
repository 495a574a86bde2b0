// Package crawler holds the audit crawl core: the shared job and page types,
// the consumer-side interfaces, the safety gate, URL canonicalization, the
// priority frontier, the debug recorder and the sequential crawl controller.
package crawler
