// Package feed publishes transcript events to the feed server as JSON
// notifications. Delivery is best effort: a failed notification is
// reported to the caller and otherwise forgotten.
package feed
