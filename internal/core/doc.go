// Package core provides the business logic for publishing JSON uploads as
// Power BI datasets.
//
// The package sits between the web layer and the two domain packages:
// [tabular] turns a JSON document into a table and [powerbi] sends a table
// to the dataset API. It has no knowledge of HTTP requests or HTML.
//
// # Flow
//
//  1. [Service.Normalize] reads an upload, converts it and stores the full
//     table in a [Session]. The caller gets a [Preview] of the first rows.
//  2. [Service.Publish] looks the session up, takes a slot from the
//     [PublishLimiter], and hands the table to the [Publisher].
//  3. Every attempt is written to a [HistoryStore], Postgres when a
//     database is configured and memory otherwise.
//
// Sessions expire after their TTL; [Service.StartSessionSweeper] removes
// them in the background.
//
// # Errors
//
// Errors from the domain packages are returned unchanged, wrapped with
// context. [MapError] turns any of them into a [UserMessage] with a support
// code and the provider's verbatim detail.
package core
