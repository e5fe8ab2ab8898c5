// Package pipeline replays recorded browser captures through the
// surveillance coordinator.
//
// A capture is a newline-delimited JSON file of event documents, optionally
// zstd-compressed. Each capture is processed by a Pipeline of Steps acting on
// a Run: the replay step feeds every decodable line into an isolated
// Coordinator whose clock follows the event timestamps, later steps turn the
// accumulated state into a report and optionally save it.
//
// BatchProcessor replays several captures concurrently using errgroup.
package pipeline
